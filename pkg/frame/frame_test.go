package frame

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/stepbook/pkg/errors"
)

func people() *Table {
	t := New("Name", "Status", "City")
	t.Append("x", "Active", " Oslo ")
	t.Append("y", "Inactive", nil)
	t.Append("z", "Active", "Rome")
	return t
}

func names(t *Table) []string {
	var out []string
	for i := range t.Rows {
		out = append(out, FormatValue(t.Get(i, "Name")))
	}
	return out
}

func TestOps(t *testing.T) {
	tests := []struct {
		name string
		op   func(*Table) (*Table, error)
		cols string
		want string
	}{
		{
			name: "filter_isin",
			op:   func(t *Table) (*Table, error) { return FilterIsin(t, "Status", []Value{"Active"}) },
			cols: "Name,Status,City",
			want: "x,z",
		},
		{
			name: "filter_not_isin",
			op:   func(t *Table) (*Table, error) { return FilterNotIsin(t, "Status", []Value{"Active"}) },
			cols: "Name,Status,City",
			want: "y",
		},
		{
			name: "filter_not_null",
			op:   func(t *Table) (*Table, error) { return FilterNotNull(t, "City") },
			cols: "Name,Status,City",
			want: "x,z",
		},
		{
			name: "str_upper",
			op:   func(t *Table) (*Table, error) { return StrUpper(t, "Name", "") },
			cols: "Name,Status,City",
			want: "X,Y,Z",
		},
		{
			name: "str_upper target",
			op:   func(t *Table) (*Table, error) { return StrUpper(t, "Name", "Upper") },
			cols: "Name,Status,City,Upper",
			want: "x,y,z",
		},
		{
			name: "select_columns",
			op:   func(t *Table) (*Table, error) { return SelectColumns(t, []string{"City", "Name"}) },
			cols: "City,Name",
			want: "x,y,z",
		},
		{
			name: "drop_columns",
			op:   func(t *Table) (*Table, error) { return DropColumns(t, []string{"Status"}) },
			cols: "Name,City",
			want: "x,y,z",
		},
		{
			name: "rename_columns",
			op: func(t *Table) (*Table, error) {
				return RenameColumns(t, map[string]string{"City": "Town"})
			},
			cols: "Name,Status,Town",
			want: "x,y,z",
		},
		{
			name: "head",
			op:   func(t *Table) (*Table, error) { return Head(t, 2) },
			cols: "Name,Status,City",
			want: "x,y",
		},
		{
			name: "drop_duplicates first",
			op:   func(t *Table) (*Table, error) { return DropDuplicates(t, []string{"Status"}, false) },
			cols: "Name,Status,City",
			want: "x,y",
		},
		{
			name: "drop_duplicates last",
			op:   func(t *Table) (*Table, error) { return DropDuplicates(t, []string{"Status"}, true) },
			cols: "Name,Status,City",
			want: "y,z",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := people()
			got, err := tt.op(in)
			if err != nil {
				t.Fatalf("op: %v", err)
			}
			if c := strings.Join(got.Columns, ","); c != tt.cols {
				t.Errorf("columns = %s, want %s", c, tt.cols)
			}
			if n := strings.Join(names(got), ","); n != tt.want {
				t.Errorf("names = %s, want %s", n, tt.want)
			}
			if n := strings.Join(names(in), ","); n != "x,y,z" || len(in.Columns) != 3 {
				t.Errorf("input modified: %s %v", n, in.Columns)
			}
		})
	}
}

func TestColumnEdits(t *testing.T) {
	in := people()

	out, err := FillNull(in, "City", "unknown", "")
	if err != nil {
		t.Fatal(err)
	}
	if got := out.Get(1, "City"); got != "unknown" {
		t.Errorf("fill_null = %v", got)
	}

	out, err = StrStrip(in, "City", "")
	if err != nil {
		t.Fatal(err)
	}
	if got := out.Get(0, "City"); got != "Oslo" {
		t.Errorf("str_strip = %q", got)
	}
	if out.Get(1, "City") != nil {
		t.Error("str_strip changed a null")
	}

	out, err = SetValue(in, "Company", "ArrowCorp")
	if err != nil {
		t.Fatal(err)
	}
	if got := out.Get(2, "Company"); got != "ArrowCorp" {
		t.Errorf("set_value = %v", got)
	}

	out, err = CopyColumn(in, "Name", "Alias")
	if err != nil {
		t.Fatal(err)
	}
	if got := out.Get(2, "Alias"); got != "z" {
		t.Errorf("copy_column = %v", got)
	}
}

func TestOpsMissingColumn(t *testing.T) {
	ops := map[string]func(*Table) (*Table, error){
		"filter_isin":    func(t *Table) (*Table, error) { return FilterIsin(t, "Nope", nil) },
		"str_lower":      func(t *Table) (*Table, error) { return StrLower(t, "Nope", "") },
		"copy_column":    func(t *Table) (*Table, error) { return CopyColumn(t, "Nope", "X") },
		"rename_columns": func(t *Table) (*Table, error) { return RenameColumns(t, map[string]string{"Nope": "X"}) },
		"select_columns": func(t *Table) (*Table, error) { return SelectColumns(t, []string{"Nope"}) },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			_, err := op(people())
			if !errors.Is(err, errors.ErrCodeRuntime) {
				t.Fatalf("error = %v, want RUNTIME_ERROR", err)
			}
			if !strings.Contains(err.Error(), name) {
				t.Errorf("error %q does not name %s", err, name)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	if !Equal(int64(2), 2.0) {
		t.Error("int and float should compare numerically")
	}
	if Equal("2", int64(2)) {
		t.Error("string and int must differ")
	}
	if !Equal(nil, nil) {
		t.Error("nil should equal nil")
	}
}

func TestLoader(t *testing.T) {
	dir := t.TempDir()
	csv := "Name,Status\nx,Active\ny,\nz,Active\n"
	if err := os.WriteFile(filepath.Join(dir, "DAT-1.csv"), []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	l := Loader{Dir: dir}
	tbl, err := l.Load("DAT-1", 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tbl.Len() != 3 {
		t.Fatalf("rows = %d, want 3", tbl.Len())
	}
	if tbl.Get(1, "Status") != nil {
		t.Error("empty field should load as null")
	}

	tbl, err = Loader{Dir: dir, Sample: 5}.Load("DAT-1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 2 {
		t.Errorf("sampled rows = %d, want 2", tbl.Len())
	}

	if _, err := l.Load("DAT-2", 0); !errors.Is(err, errors.ErrCodeSourceNotFound) {
		t.Errorf("missing source error = %v", err)
	}
	if _, err := l.Load("../etc/passwd", 0); !errors.Is(err, errors.ErrCodeInvalidSourceID) {
		t.Errorf("traversal error = %v", err)
	}
}

func TestCSVRoundTrip(t *testing.T) {
	var b strings.Builder
	if err := WriteCSV(&b, people()); err != nil {
		t.Fatal(err)
	}
	back, err := ReadCSV(strings.NewReader(b.String()), 0)
	if err != nil {
		t.Fatal(err)
	}
	if back.Len() != 3 || back.Get(1, "City") != nil || back.Get(0, "City") != " Oslo " {
		t.Errorf("round trip = %+v", back.Rows)
	}
}

func TestFormat(t *testing.T) {
	got := people().Format(2)
	want := "Name  Status    City  \n" +
		"x     Active     Oslo \n" +
		"y     Inactive  null  \n" +
		"... 1 more rows\n"
	if got != want {
		t.Errorf("Format =\n%q\nwant\n%q", got, want)
	}
}
