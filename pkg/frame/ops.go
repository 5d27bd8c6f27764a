package frame

import (
	"slices"
	"strings"

	"github.com/matzehuels/stepbook/pkg/errors"
)

// OpNames is the operation vocabulary, in the order the runtime documents it.
var OpNames = []string{
	"filter_isin", "filter_not_isin", "filter_not_null",
	"str_upper", "str_lower", "str_strip",
	"set_value", "copy_column", "rename_columns", "select_columns",
	"drop_columns", "fill_null", "drop_duplicates", "head",
}

func filterRows(t *Table, keep func(row []Value) bool) *Table {
	out := &Table{Columns: append([]string(nil), t.Columns...)}
	for _, r := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, append([]Value(nil), r...))
		}
	}
	return out
}

func contains(values []Value, v Value) bool {
	for _, x := range values {
		if Equal(x, v) {
			return true
		}
	}
	return false
}

// FilterIsin keeps rows whose column value is one of values.
func FilterIsin(t *Table, column string, values []Value) (*Table, error) {
	c, err := t.col("filter_isin", column)
	if err != nil {
		return nil, err
	}
	return filterRows(t, func(r []Value) bool { return contains(values, r[c]) }), nil
}

// FilterNotIsin drops rows whose column value is one of values. Null values
// are kept.
func FilterNotIsin(t *Table, column string, values []Value) (*Table, error) {
	c, err := t.col("filter_not_isin", column)
	if err != nil {
		return nil, err
	}
	return filterRows(t, func(r []Value) bool { return !contains(values, r[c]) }), nil
}

// FilterNotNull keeps rows where column is not null.
func FilterNotNull(t *Table, column string) (*Table, error) {
	c, err := t.col("filter_not_null", column)
	if err != nil {
		return nil, err
	}
	return filterRows(t, func(r []Value) bool { return r[c] != nil }), nil
}

func mapString(op string, t *Table, column, target string, f func(string) string) (*Table, error) {
	c, err := t.col(op, column)
	if err != nil {
		return nil, err
	}
	if target == "" {
		target = column
	}
	out, dst := withColumn(t, target)
	for _, r := range out.Rows {
		if s, ok := r[c].(string); ok {
			r[dst] = f(s)
		} else {
			r[dst] = r[c]
		}
	}
	return out, nil
}

// withColumn clones t, appending an all-null column when name is new, and
// returns the clone with the column position.
func withColumn(t *Table, name string) (*Table, int) {
	out := t.Clone()
	if c, ok := out.Index(name); ok {
		return out, c
	}
	out.Columns = append(out.Columns, name)
	for i := range out.Rows {
		out.Rows[i] = append(out.Rows[i], nil)
	}
	return out, len(out.Columns) - 1
}

// StrUpper upper-cases string values of column, writing to target when set.
func StrUpper(t *Table, column, target string) (*Table, error) {
	return mapString("str_upper", t, column, target, strings.ToUpper)
}

// StrLower lower-cases string values of column, writing to target when set.
func StrLower(t *Table, column, target string) (*Table, error) {
	return mapString("str_lower", t, column, target, strings.ToLower)
}

// StrStrip trims surrounding whitespace, writing to target when set.
func StrStrip(t *Table, column, target string) (*Table, error) {
	return mapString("str_strip", t, column, target, strings.TrimSpace)
}

// SetValue sets column to value on every row, creating it if needed.
func SetValue(t *Table, column string, value Value) (*Table, error) {
	out, c := withColumn(t, column)
	for _, r := range out.Rows {
		r[c] = value
	}
	return out, nil
}

// CopyColumn copies source into target.
func CopyColumn(t *Table, source, target string) (*Table, error) {
	s, err := t.col("copy_column", source)
	if err != nil {
		return nil, err
	}
	out, c := withColumn(t, target)
	for _, r := range out.Rows {
		r[c] = r[s]
	}
	return out, nil
}

// RenameColumns renames columns per mapping. Every key must name an existing
// column; the renamed set must stay unique.
func RenameColumns(t *Table, mapping map[string]string) (*Table, error) {
	var missing []string
	for old := range mapping {
		if _, ok := t.Index(old); !ok {
			missing = append(missing, old)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, errors.New(errors.ErrCodeRuntime,
			"rename_columns: columns %v not found (available: %s)", missing, strings.Join(t.Columns, ", "))
	}
	out := t.Clone()
	seen := make(map[string]bool, len(out.Columns))
	for i, c := range out.Columns {
		if n, ok := mapping[c]; ok {
			out.Columns[i] = n
		}
		if seen[out.Columns[i]] {
			return nil, errors.New(errors.ErrCodeRuntime, "rename_columns: duplicate column %q", out.Columns[i])
		}
		seen[out.Columns[i]] = true
	}
	return out, nil
}

// SelectColumns keeps only columns, in the given order.
func SelectColumns(t *Table, columns []string) (*Table, error) {
	idx := make([]int, len(columns))
	for i, name := range columns {
		c, err := t.col("select_columns", name)
		if err != nil {
			return nil, err
		}
		idx[i] = c
	}
	out := New(columns...)
	for _, r := range t.Rows {
		row := make([]Value, len(idx))
		for i, c := range idx {
			row[i] = r[c]
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// DropColumns removes columns.
func DropColumns(t *Table, columns []string) (*Table, error) {
	drop := make(map[string]bool, len(columns))
	for _, name := range columns {
		if _, err := t.col("drop_columns", name); err != nil {
			return nil, err
		}
		drop[name] = true
	}
	var keep []string
	for _, c := range t.Columns {
		if !drop[c] {
			keep = append(keep, c)
		}
	}
	return SelectColumns(t, keep)
}

// FillNull replaces nulls in column with value, writing to target when set.
func FillNull(t *Table, column string, value Value, target string) (*Table, error) {
	c, err := t.col("fill_null", column)
	if err != nil {
		return nil, err
	}
	if target == "" {
		target = column
	}
	out, dst := withColumn(t, target)
	for _, r := range out.Rows {
		if r[c] == nil {
			r[dst] = value
		} else {
			r[dst] = r[c]
		}
	}
	return out, nil
}

// DropDuplicates removes rows that repeat an earlier row on columns. With
// keepLast the last occurrence survives instead of the first. An empty
// column list compares whole rows.
func DropDuplicates(t *Table, columns []string, keepLast bool) (*Table, error) {
	idx := make([]int, 0, len(columns))
	for _, name := range columns {
		c, err := t.col("drop_duplicates", name)
		if err != nil {
			return nil, err
		}
		idx = append(idx, c)
	}
	if len(idx) == 0 {
		for i := range t.Columns {
			idx = append(idx, i)
		}
	}
	keyOf := func(r []Value) string {
		vals := make([]Value, len(idx))
		for i, c := range idx {
			vals[i] = r[c]
		}
		return key(vals)
	}

	winner := make(map[string]int, len(t.Rows))
	for i, r := range t.Rows {
		k := keyOf(r)
		if _, ok := winner[k]; !ok || keepLast {
			winner[k] = i
		}
	}
	out := &Table{Columns: append([]string(nil), t.Columns...)}
	for i, r := range t.Rows {
		if winner[keyOf(r)] == i {
			out.Rows = append(out.Rows, append([]Value(nil), r...))
		}
	}
	return out, nil
}

// Head returns the first n rows.
func Head(t *Table, n int) (*Table, error) {
	if n < 0 {
		return nil, errors.New(errors.ErrCodeRuntime, "head: n must be non-negative, got %d", n)
	}
	out := t.Clone()
	if n < len(out.Rows) {
		out.Rows = out.Rows[:n]
	}
	return out, nil
}
