package analysis

import (
	"reflect"
	"testing"

	"github.com/matzehuels/stepbook/pkg/script"
)

func analyze(t *testing.T, src string, known ...string) *Usage {
	t.Helper()
	mod, err := script.Parse(src)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	ops := map[string]bool{}
	for _, k := range known {
		ops[k] = true
	}
	return Analyze(mod.Body, Options{KnownOps: ops})
}

func TestAnalyzeReadsWrites(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		known  []string
		reads  []string
		writes []string
		opaque []string
	}{
		{
			name:   "rebinding from own read",
			src:    "df = filter_isin(df, \"Status\", [\"A\"])\n",
			known:  []string{"filter_isin"},
			reads:  []string{"df", "filter_isin"},
			writes: []string{"df"},
		},
		{
			name:   "definite assignment makes later loads local",
			src:    "x = 1\ny = x\n",
			reads:  []string{},
			writes: []string{"x", "y"},
		},
		{
			name:   "conditional write keeps later load a read",
			src:    "if c:\n    x = 1\ny = x\n",
			reads:  []string{"c", "x"},
			writes: []string{"x", "y"},
		},
		{
			name:   "augmented assignment reads and writes",
			src:    "total += 1\n",
			reads:  []string{"total"},
			writes: []string{"total"},
		},
		{
			name:   "attribute and subscript targets only read",
			src:    "obj.attr = v\nd[k] = v\n",
			reads:  []string{"d", "k", "obj", "v"},
			writes: []string{},
		},
		{
			name:   "parameters and comprehension targets are local",
			src:    "def f(a):\n    return a + b\ng = lambda q: q + c\nh = [i for i in items if i > lim]\n",
			reads:  []string{"b", "c", "items", "lim"},
			writes: []string{"f", "g", "h"},
		},
		{
			name:   "opaque helper call",
			src:    "df = helper(df, lambda r: r[col])\n",
			reads:  []string{"col", "df", "helper"},
			writes: []string{"df"},
			opaque: []string{"helper"},
		},
		{
			name:   "builtins are not opaque",
			src:    "n = len(df)\n",
			reads:  []string{"df", "len"},
			writes: []string{"n"},
		},
		{
			name:   "loop target is a conditional write",
			src:    "for row in rows:\n    last = row\nout = last\n",
			reads:  []string{"last", "row", "rows"},
			writes: []string{"last", "out", "row"},
		},
		{
			name:   "global declaration writes chunk name",
			src:    "def f():\n    global counter\n    counter = 1\n",
			reads:  []string{},
			writes: []string{"counter", "f"},
		},
		{
			name:   "import binds",
			src:    "import os\np = os.path.join(a)\n",
			reads:  []string{"a"},
			writes: []string{"os", "p"},
		},
		{
			name:   "fstring fields are read",
			src:    "msg = f\"{count} rows\"\n",
			reads:  []string{"count"},
			writes: []string{"msg"},
		},
		{
			name:   "with and except targets",
			src:    "with open(p) as fh:\n    data = fh.read()\ntry:\n    n = int(data)\nexcept ValueError as err:\n    n = 0\n",
			reads:  []string{"ValueError", "data", "fh", "int", "open", "p"},
			writes: []string{"data", "err", "fh", "n"},
		},
		{
			name:   "keyword names and strings are not identifiers",
			src:    "df = set_value(df, \"target\", value=other)\n",
			known:  []string{"set_value"},
			reads:  []string{"df", "other", "set_value"},
			writes: []string{"df"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := analyze(t, tt.src, tt.known...)
			if got := u.Reads.Sorted(); !reflect.DeepEqual(got, tt.reads) {
				t.Errorf("Reads = %v, want %v", got, tt.reads)
			}
			if got := u.Writes.Sorted(); !reflect.DeepEqual(got, tt.writes) {
				t.Errorf("Writes = %v, want %v", got, tt.writes)
			}
			want := tt.opaque
			if want == nil {
				want = []string{}
			}
			if !reflect.DeepEqual(u.Opaque, want) {
				t.Errorf("Opaque = %v, want %v", u.Opaque, want)
			}
		})
	}
}

func TestAnalyzeSites(t *testing.T) {
	u := analyze(t, "df = f(df)\nprint(df)\ndf = g(df)\n")
	sites := u.Sites["df"]
	if len(sites) != 5 {
		t.Fatalf("got %d sites for df, want 5", len(sites))
	}
	wantStore := []bool{false, true, false, false, true}
	wantStmt := []int{0, 0, 1, 2, 2}
	for i, n := range sites {
		if u.Stores[n] != wantStore[i] {
			t.Errorf("site %d store = %v, want %v", i, u.Stores[n], wantStore[i])
		}
		if u.StmtOf[n] != wantStmt[i] {
			t.Errorf("site %d stmt = %d, want %d", i, u.StmtOf[n], wantStmt[i])
		}
	}
	if got := u.Definite["df"]; got != 0 {
		t.Errorf("Definite[df] = %d, want 0", got)
	}
	if got := len(u.BindingSites("df")); got != 2 {
		t.Errorf("BindingSites(df) = %d, want 2", got)
	}
}

func TestMaybeWritten(t *testing.T) {
	u := analyze(t, "if c:\n    x = 1\ny = 2\nz += 1\n")
	tests := []struct {
		name string
		want bool
	}{
		{"x", true},
		{"y", false},
		{"z", true},
		{"c", false},
	}
	for _, tt := range tests {
		if got := u.MaybeWritten(tt.name); got != tt.want {
			t.Errorf("MaybeWritten(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	src := "a = f(b, c)\nif a:\n    d = g(a, e)\nh = [x for x in d]\n"
	first := analyze(t, src)
	for i := 0; i < 10; i++ {
		u := analyze(t, src)
		if !reflect.DeepEqual(u.Reads.Sorted(), first.Reads.Sorted()) || !reflect.DeepEqual(u.Opaque, first.Opaque) {
			t.Fatal("Analyze() is not deterministic")
		}
	}
}
