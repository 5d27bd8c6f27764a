package frame

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/matzehuels/stepbook/pkg/errors"
)

// Value is a single cell: nil, string, int64, float64 or bool.
type Value = any

// Table is an ordered set of named columns with rows of values.
type Table struct {
	Columns []string
	Rows    [][]Value
}

// New returns an empty table with the given columns.
func New(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// Append adds a row. Missing trailing values are null.
func (t *Table) Append(values ...Value) {
	row := make([]Value, len(t.Columns))
	copy(row, values)
	t.Rows = append(t.Rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Index returns the position of column name.
func (t *Table) Index(name string) (int, bool) {
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}
	return -1, false
}

// Get returns the value at row i of column name, or nil if either is absent.
func (t *Table) Get(i int, name string) Value {
	c, ok := t.Index(name)
	if !ok || i < 0 || i >= len(t.Rows) {
		return nil
	}
	return t.Rows[i][c]
}

// Column returns a copy of the values of column name.
func (t *Table) Column(name string) ([]Value, error) {
	c, err := t.col("column", name)
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[c]
	}
	return out, nil
}

// Clone returns a deep copy of t.
func (t *Table) Clone() *Table {
	out := &Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([][]Value, len(t.Rows)),
	}
	for i, r := range t.Rows {
		out.Rows[i] = append([]Value(nil), r...)
	}
	return out
}

func (t *Table) col(op, name string) (int, error) {
	if c, ok := t.Index(name); ok {
		return c, nil
	}
	return -1, errors.New(errors.ErrCodeRuntime,
		"%s: column %q not found (available: %s)", op, name, strings.Join(t.Columns, ", "))
}

// Format renders at most maxRows rows as aligned plain text. A non-positive
// maxRows renders every row.
func (t *Table) Format(maxRows int) string {
	rows := t.Rows
	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	width := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		width[i] = len(c)
	}
	cells := make([][]string, len(rows))
	for r, row := range rows {
		cells[r] = make([]string, len(row))
		for i, v := range row {
			s := FormatValue(v)
			cells[r][i] = s
			width[i] = max(width[i], len(s))
		}
	}

	var b strings.Builder
	line := func(vals []string) {
		for i, v := range vals {
			if i > 0 {
				b.WriteString("  ")
			}
			fmt.Fprintf(&b, "%-*s", width[i], v)
		}
		b.WriteString("\n")
	}
	line(t.Columns)
	for _, r := range cells {
		line(r)
	}
	if len(rows) < len(t.Rows) {
		fmt.Fprintf(&b, "... %d more rows\n", len(t.Rows)-len(rows))
	}
	return b.String()
}

// FormatValue renders a cell the way a table display shows it.
func FormatValue(v Value) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		if v {
			return "true"
		}
		return "false"
	}
	return fmt.Sprint(v)
}

// Equal reports whether two cell values are equal. Integers and floats
// compare numerically.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case int64:
		switch y := b.(type) {
		case int64:
			return x == y
		case float64:
			return float64(x) == y
		}
		return false
	case float64:
		switch y := b.(type) {
		case int64:
			return x == float64(y)
		case float64:
			return x == y
		}
		return false
	}
	return a == b
}

func key(vals []Value) string {
	var b strings.Builder
	for _, v := range vals {
		switch v := v.(type) {
		case int64:
			fmt.Fprintf(&b, "n%g|", float64(v))
		case float64:
			fmt.Fprintf(&b, "n%g|", v)
		default:
			fmt.Fprintf(&b, "%T:%q|", v, FormatValue(v))
		}
	}
	return b.String()
}
