package rename

import (
	"slices"
	"strings"
	"testing"

	"github.com/matzehuels/stepbook/pkg/errors"
	"github.com/matzehuels/stepbook/pkg/script"
	"github.com/matzehuels/stepbook/pkg/transformer"
)

func parse(t *testing.T, src string) *transformer.Info {
	t.Helper()
	info, err := transformer.Parse(src, transformer.Options{})
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	return info
}

// entry builds a script from an entry body given as unindented lines.
func entry(header string, body ...string) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("def transform(sources):\n")
	for _, l := range body {
		for _, line := range strings.Split(l, "\n") {
			b.WriteString("    " + line + "\n")
		}
	}
	return b.String()
}

func TestApplySteps(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		steps  []string
		final  string
		result string
	}{
		{
			name: "chain",
			src: entry("from migrator_studio import step, filter_isin, str_upper\n\n",
				`df = sources["DAT-1"]`,
				`step("Filter active")`,
				`df = filter_isin(df, "Status", ["A"])`,
				`step("Uppercase name")`,
				`df = str_upper(df, "Name")`,
				`return df`),
			steps: []string{
				"df_1 = filter_isin(df, \"Status\", [\"A\"])\n",
				"df_2 = str_upper(df_1, \"Name\")\n",
			},
			final:  "df_2",
			result: "result",
		},
		{
			name: "conditional write carries over",
			src: entry("",
				`df = sources["A"]`,
				`step("Maybe")`,
				"if flag:\n    df = f(df)",
				`return df`),
			steps:  []string{"df_1 = df\nif flag:\n    df_1 = f(df_1)\n"},
			final:  "df_1",
			result: "result",
		},
		{
			name: "augmented assignment carries over",
			src: entry("",
				`total = 0`,
				`step("Count")`,
				`total += 1`,
				`return total`),
			steps:  []string{"total_1 = total\ntotal_1 += 1\n"},
			final:  "total_1",
			result: "result",
		},
		{
			name: "fresh names skip used identifiers",
			src: entry("df_1 = 0\nresult = 1\n\n\n",
				`df = sources["A"]`,
				`step("One")`,
				`df = g(df, key=df_1)`,
				`return df`),
			steps:  []string{"df_2 = g(df, key=df_1)\n"},
			final:  "df_2",
			result: "result_1",
		},
		{
			name: "strings attributes and keywords untouched",
			src: entry("",
				`df = sources["A"]`,
				`step("Rename")`,
				`df = rename_columns(df, {"df": "x"}, df=df.df)`,
				`return df`),
			steps:  []string{"df_1 = rename_columns(df, {\"df\": \"x\"}, df=df.df)\n"},
			final:  "df_1",
			result: "result",
		},
		{
			name: "loads before the definite assignment keep the old binding",
			src: entry("",
				`df = sources["A"]`,
				`step("Two")`,
				"n = len(df)\ndf = h(df, n)\nshow(df)",
				`return df`),
			steps:  []string{"n = len(df)\ndf_1 = h(df, n)\nshow(df_1)\n"},
			final:  "df_1",
			result: "result",
		},
		{
			name: "reads substituted across steps",
			src: entry("",
				`df = sources["A"]`,
				`lookup = sources["B"]`,
				`step("One")`,
				`lookup = dedupe(lookup)`,
				`step("Two")`,
				`df = merge(df, lookup)`,
				`return df`),
			steps: []string{
				"lookup_1 = dedupe(lookup)\n",
				"df_1 = merge(df, lookup_1)\n",
			},
			final:  "df_1",
			result: "result",
		},
		{
			name: "import rebinding gets an alias",
			src: entry("import json\n\n",
				`x = 1`,
				`step("Local import")`,
				`import json`,
				`return json.dumps(x)`),
			steps:  []string{"import json as json_1\n"},
			final:  "json_1.dumps(x)",
			result: "result",
		},
		{
			name: "global declarations follow the binding",
			src: entry("",
				`df = sources["A"]`,
				`step("Helper")`,
				"def bump():\n    global df\n    df = df + 1",
				`return df`),
			steps:  []string{"df_1 = df\ndef bump():\n    global df_1\n    df_1 = df_1 + 1\n"},
			final:  "df_1",
			result: "result",
		},
		{
			name: "closure defined before the rebinding carries over",
			src: entry("",
				`step("A")`,
				`x = 1`,
				`step("B")`,
				"def g():\n    return x",
				`x = 2`,
				`y = g()`,
				`return y`),
			steps: []string{
				"x = 1\n",
				"x_1 = x\ndef g():\n    return x_1\nx_1 = 2\ny = g()\n",
			},
			final:  "y",
			result: "result",
		},
		{
			name: "lambda defined before the rebinding carries over",
			src: entry("",
				`step("A")`,
				`x = 1`,
				`step("B")`,
				`g = lambda: x`,
				`x = 2`,
				`return g()`),
			steps: []string{
				"x = 1\n",
				"x_1 = x\ng = lambda: x_1\nx_1 = 2\n",
			},
			final:  "g()",
			result: "result",
		},
		{
			name: "closure defined after the rebinding reads the fresh name",
			src: entry("",
				`x = sources["A"]`,
				`step("B")`,
				`x = f(x)`,
				`g = lambda: x`,
				`return g()`),
			steps:  []string{"x_1 = f(x)\ng = lambda: x_1\n"},
			final:  "g()",
			result: "result",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := Apply(parse(t, tt.src), Options{})
			if err != nil {
				t.Fatalf("Apply() error: %v", err)
			}
			if len(prog.Steps) != len(tt.steps) {
				t.Fatalf("got %d steps, want %d", len(prog.Steps), len(tt.steps))
			}
			for i, want := range tt.steps {
				if got := script.Format(prog.Steps[i].Body); got != want {
					t.Errorf("step %d:\ngot:\n%s\nwant:\n%s", i, got, want)
				}
			}
			if got := script.FormatExpr(prog.Final); got != tt.final {
				t.Errorf("final = %q, want %q", got, tt.final)
			}
			if prog.Result != tt.result {
				t.Errorf("result = %q, want %q", prog.Result, tt.result)
			}
		})
	}
}

func TestApplyRegionSets(t *testing.T) {
	src := entry("from migrator_studio import step, filter_isin\n\n",
		`df = sources["DAT-1"]`,
		`step("Filter")`,
		`df = filter_isin(df, "Status", ["A"])`,
		`print(len(df))`,
		`return df`)
	prog, err := Apply(parse(t, src), Options{KnownOps: map[string]bool{"filter_isin": true}})
	if err != nil {
		t.Fatal(err)
	}
	if got := prog.Imports.Writes; !slices.Equal(got, []string{"filter_isin", "step"}) {
		t.Errorf("imports writes = %v", got)
	}
	if got := prog.Setup.Writes; !slices.Equal(got, []string{"df"}) {
		t.Errorf("setup writes = %v", got)
	}
	if got := prog.Setup.Reads; !slices.Equal(got, []string{"sources"}) {
		t.Errorf("setup reads = %v", got)
	}
	st := prog.Steps[0]
	if !slices.Equal(st.Reads, []string{"df", "filter_isin"}) {
		t.Errorf("step reads = %v", st.Reads)
	}
	if !slices.Equal(st.Writes, []string{"df_1"}) || st.Primary != "df_1" {
		t.Errorf("step writes = %v, primary %q", st.Writes, st.Primary)
	}
	if len(st.Opaque) != 0 {
		t.Errorf("step opaque = %v", st.Opaque)
	}
	if st.Renamed["df"] != "df_1" {
		t.Errorf("renamed = %v", st.Renamed)
	}
	if prog.Bindings["df"] != "df_1" || !slices.Equal(prog.FinalReads, []string{"df_1"}) {
		t.Errorf("bindings = %v, final reads = %v", prog.Bindings, prog.FinalReads)
	}
	if prog.Helpers != nil {
		t.Error("helpers region should be absent")
	}
	if got := len(prog.Regions()); got != 3 {
		t.Errorf("got %d regions, want 3", got)
	}
}

func TestApplyPrimary(t *testing.T) {
	src := entry("",
		`df = sources["A"]`,
		`step("Split")`,
		`a, b = split(df)`,
		`step("Nothing")`,
		`log(a)`,
		`return b`)
	prog, err := Apply(parse(t, src), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := prog.Steps[0].Primary; got != "b" {
		t.Errorf("primary = %q, want b", got)
	}
	if got := prog.Steps[1]; got.Primary != "" || len(got.Writes) != 0 {
		t.Errorf("empty step = primary %q, writes %v", got.Primary, got.Writes)
	}
}

func TestApplyDoesNotModifyInfo(t *testing.T) {
	info := parse(t, entry("",
		`df = sources["A"]`,
		`step("One")`,
		`df = f(df)`,
		`return df`))
	before := script.Format(info.Steps[0].Body)
	if _, err := Apply(info, Options{}); err != nil {
		t.Fatal(err)
	}
	if after := script.Format(info.Steps[0].Body); after != before {
		t.Errorf("info modified:\n%s", after)
	}
	if got := script.FormatExpr(info.Final); got != "df" {
		t.Errorf("final modified: %s", got)
	}
}

func TestApplyClosureRebindLater(t *testing.T) {
	tests := []struct {
		name string
		body []string
		line int
	}{
		{
			name: "def",
			body: []string{
				`x = sources["A"]`,
				`step("Define")`,
				"def g():\n    return x",
				`step("Rebind")`,
				`x = 2`,
				`return g()`,
			},
			line: 6,
		},
		{
			name: "lambda",
			body: []string{
				`x = sources["A"]`,
				`step("Define")`,
				`g = lambda: x`,
				`step("Rebind")`,
				`x = f(x)`,
				`return g()`,
			},
			line: 5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apply(parse(t, entry("", tt.body...)), Options{})
			if !errors.Is(err, errors.ErrCodeStructure) {
				t.Fatalf("err = %v, want STRUCTURE_ERROR", err)
			}
			if line, _ := errors.Position(err); line != tt.line+1 {
				t.Errorf("line = %d, want %d", line, tt.line+1)
			}
			var e *errors.Error
			if errors.As(err, &e) && e.Name != "x" {
				t.Errorf("name = %q, want x", e.Name)
			}
		})
	}
}

func TestApplyDottedImport(t *testing.T) {
	src := entry("import os\n\n",
		`x = 1`,
		`step("Path")`,
		`import os.path`,
		`return os.path.join(x)`)
	_, err := Apply(parse(t, src), Options{})
	if !errors.Is(err, errors.ErrCodeStructure) {
		t.Fatalf("err = %v, want STRUCTURE_ERROR", err)
	}
	if line, _ := errors.Position(err); line != 6 {
		t.Errorf("line = %d, want 6", line)
	}
}

func TestApplyDeterministic(t *testing.T) {
	src := entry("",
		`a = sources["A"]`,
		`b = sources["B"]`,
		`step("Swap")`,
		`a, b = b, a`,
		`step("Again")`,
		`b, a = a, b`,
		`return a`)
	var first string
	for i := 0; i < 5; i++ {
		prog, err := Apply(parse(t, src), Options{})
		if err != nil {
			t.Fatal(err)
		}
		var b strings.Builder
		for _, reg := range prog.Regions() {
			b.WriteString(script.Format(reg.Body))
		}
		if i == 0 {
			first = b.String()
			continue
		}
		if b.String() != first {
			t.Fatalf("run %d differs:\n%s\nvs\n%s", i, b.String(), first)
		}
	}
	if !strings.Contains(first, "a_1, b_1 = b, a") || !strings.Contains(first, "b_2, a_2 = a_1, b_1") {
		t.Errorf("unexpected output:\n%s", first)
	}
}
