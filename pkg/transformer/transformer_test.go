package transformer

import (
	"testing"

	"github.com/matzehuels/stepbook/pkg/errors"
	"github.com/matzehuels/stepbook/pkg/script"
)

const sample = `"""TFRM-TEST: sample."""
from migrator_studio import step, filter_isin, str_upper

SOURCES = ["DAT-1"]


def transform(sources):
    """Entry."""
    df = sources["DAT-1"]

    step("Filter active")
    df = filter_isin(df, "Status", ["A"])

    step("Uppercase name", "Names in caps")
    df = str_upper(df, "Name")

    return df


if __name__ == "__main__":
    print(transform({}))
`

func TestParseSample(t *testing.T) {
	info, err := Parse(sample, Options{})
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if info.Docstring != "TFRM-TEST: sample." {
		t.Errorf("Docstring = %q", info.Docstring)
	}
	if len(info.Imports) != 1 {
		t.Errorf("got %d imports, want 1", len(info.Imports))
	}
	if len(info.Helpers) != 0 {
		t.Errorf("got %d helpers, want 0", len(info.Helpers))
	}
	if info.Param != "sources" {
		t.Errorf("Param = %q, want sources", info.Param)
	}
	if len(info.SourceIDs) != 1 || info.SourceIDs[0] != "DAT-1" {
		t.Errorf("SourceIDs = %v", info.SourceIDs)
	}
	if len(info.Setup) != 1 {
		t.Errorf("got %d setup statements, want 1", len(info.Setup))
	}
	if len(info.Main) != 1 {
		t.Errorf("got %d main statements, want 1", len(info.Main))
	}
	if len(info.Steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(info.Steps))
	}

	tests := []struct {
		title, desc string
		lines       Lines
	}{
		{"Filter active", "", Lines{11, 12}},
		{"Uppercase name", "Names in caps", Lines{14, 15}},
	}
	for i, tt := range tests {
		st := info.Steps[i]
		if st.Title != tt.title || st.Description != tt.desc {
			t.Errorf("step %d = %q/%q, want %q/%q", i, st.Title, st.Description, tt.title, tt.desc)
		}
		if st.Lines != tt.lines {
			t.Errorf("step %d lines = %+v, want %+v", i, st.Lines, tt.lines)
		}
		if st.Implicit {
			t.Errorf("step %d should not be implicit", i)
		}
		if len(st.Body) != 1 {
			t.Errorf("step %d has %d statements, want 1", i, len(st.Body))
		}
	}
	if n, ok := info.Final.(*script.Name); !ok || n.ID != "df" || info.FinalLine != 17 {
		t.Errorf("Final = %v at line %d", info.Final, info.FinalLine)
	}
}

func TestParseImplicitStep(t *testing.T) {
	src := `def transform(sources):
    a = sources["A"]
    b = sources["B"]
    c = merge(a, b)
    return c
`
	info, err := Parse(src, Options{})
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(info.Setup) != 2 {
		t.Errorf("got %d setup statements, want 2", len(info.Setup))
	}
	if len(info.Steps) != 1 {
		t.Fatalf("got %d steps, want 1", len(info.Steps))
	}
	st := info.Steps[0]
	if !st.Implicit || st.Title != ImplicitTitle || len(st.Body) != 1 {
		t.Errorf("implicit step = %+v", st)
	}
	if st.Lines != (Lines{4, 4}) {
		t.Errorf("lines = %+v, want {4 4}", st.Lines)
	}
}

func TestParseCommentsMoveToNextStep(t *testing.T) {
	src := `def transform(sources):
    df = sources["A"]
    # filter the rows
    step("Filter")
    df = f(df)
    return df
`
	info, err := Parse(src, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Setup) != 1 {
		t.Errorf("got %d setup statements, want 1", len(info.Setup))
	}
	body := info.Steps[0].Body
	if len(body) != 2 {
		t.Fatalf("got %d step statements, want 2", len(body))
	}
	if c, ok := body[0].(*script.Comment); !ok || c.Text != "# filter the rows" {
		t.Errorf("first step statement = %#v", body[0])
	}
}

func TestParseCustomNames(t *testing.T) {
	src := `def run(inputs):
    x = inputs["X"]
    section("Only")
    x = g(x)
    return x
`
	info, err := Parse(src, Options{Entry: "run", Marker: "section"})
	if err != nil {
		t.Fatal(err)
	}
	if info.Param != "inputs" || len(info.Steps) != 1 || info.Steps[0].Title != "Only" {
		t.Errorf("info = %+v", info)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code errors.Code
		line int
	}{
		{
			name: "syntax",
			src:  "def transform(sources):\n    x = (\n",
			code: errors.ErrCodeSyntax,
		},
		{
			name: "no entry",
			src:  "def other(sources):\n    return 1\n",
			code: errors.ErrCodeStructure,
		},
		{
			name: "non-literal title",
			src:  "def transform(sources):\n    name = \"A\"\n    step(name)\n    return name\n",
			code: errors.ErrCodeStructure,
			line: 3,
		},
		{
			name: "fstring title",
			src:  "def transform(sources):\n    n = 1\n    step(f\"Step {n}\")\n    return n\n",
			code: errors.ErrCodeStructure,
			line: 3,
		},
		{
			name: "nested marker",
			src:  "def transform(sources):\n    x = 1\n    if x:\n        step(\"Inner\")\n    return x\n",
			code: errors.ErrCodeStructure,
			line: 4,
		},
		{
			name: "marker in expression",
			src:  "def transform(sources):\n    x = step(\"A\")\n    return x\n",
			code: errors.ErrCodeStructure,
			line: 2,
		},
		{
			name: "missing return",
			src:  "def transform(sources):\n    x = 1\n",
			code: errors.ErrCodeStructure,
			line: 2,
		},
		{
			name: "bare return",
			src:  "def transform(sources):\n    x = 1\n    return\n",
			code: errors.ErrCodeStructure,
			line: 3,
		},
		{
			name: "early return",
			src:  "def transform(sources):\n    if a:\n        return 1\n    return 2\n",
			code: errors.ErrCodeStructure,
			line: 3,
		},
		{
			name: "too many params",
			src:  "def transform(a, b):\n    return a\n",
			code: errors.ErrCodeStructure,
			line: 1,
		},
		{
			name: "missing title",
			src:  "def transform(sources):\n    step()\n    return 1\n",
			code: errors.ErrCodeStructure,
			line: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src, Options{})
			if err == nil {
				t.Fatal("Parse() succeeded, want error")
			}
			if !errors.Is(err, tt.code) {
				t.Fatalf("code = %v, want %v (%v)", errors.GetCode(err), tt.code, err)
			}
			if line, _ := errors.Position(err); tt.line > 0 && line != tt.line {
				t.Errorf("line = %d, want %d", line, tt.line)
			}
		})
	}
}

func TestSourceLoad(t *testing.T) {
	mod, err := script.Parse("x = sources[\"DAT-9\"]\ny = other[\"DAT-9\"]\nz = sources[key]\n")
	if err != nil {
		t.Fatal(err)
	}
	name, id, ok := SourceLoad(mod.Body[0], "sources")
	if !ok || name.ID != "x" || id != "DAT-9" {
		t.Errorf("SourceLoad() = %v, %q, %v", name, id, ok)
	}
	for _, s := range mod.Body[1:] {
		if _, _, ok := SourceLoad(s, "sources"); ok {
			t.Errorf("SourceLoad(%s) matched", script.Format([]script.Stmt{s}))
		}
	}
}
