package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/stepbook/pkg/config"
	"github.com/matzehuels/stepbook/pkg/errors"
)

const script = `"""Customer cleanup."""
from migrator_studio import step, filter_isin, str_upper

SOURCES = ["DAT-1"]


def transform(sources):
    df = sources["DAT-1"]

    step("Filter active")
    df = filter_isin(df, "Status", ["Active"])

    step("Uppercase name")
    df = str_upper(df, "Name")

    return df
`

func testConfig() config.Config { return config.Default() }

// workspace writes the script and its source data into a temp directory
// and isolates config and cache lookups from the user's home.
func workspace(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "TFRM-001.py"), []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "data"), 0o755); err != nil {
		t.Fatal(err)
	}
	csv := "Name,Status\nx,Active\ny,Inactive\nz,Active\n"
	if err := os.WriteFile(filepath.Join(dir, "data", "DAT-1.csv"), []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

// runCLI executes the root command and returns what it wrote to Out.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c := New(io.Discard, LogInfo)
	c.Out = &out
	root := c.RootCommand()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()

	want := []string{"generate", "export", "graph", "run", "inspect", "serve", "cache", "completion"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	if root.PersistentFlags().Lookup("no-cache") == nil || root.PersistentFlags().Lookup("config") == nil {
		t.Error("root should define --config and --no-cache")
	}
}

func TestCompletion(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"bash script", []string{"completion", "bash"}, []string{"stepbook"}},
		{"script argument", []string{"__complete", "generate", ""}, []string{"py", ":8"}},
		{"notebook argument", []string{"__complete", "export", ""}, []string{"py", ":8"}},
		{"second argument", []string{"__complete", "run", "TFRM-001.py", ""}, []string{":4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, tt.args...)
			if err != nil {
				t.Fatal(err)
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestGenerateAndExport(t *testing.T) {
	dir := workspace(t)
	path := filepath.Join(dir, "TFRM-001.py")

	if _, err := runCLI(t, "generate", path); err != nil {
		t.Fatalf("generate: %v", err)
	}
	nb := filepath.Join(dir, ".stepbook", "TFRM-001.nb.py")
	data, err := os.ReadFile(nb)
	if err != nil {
		t.Fatalf("notebook not written: %v", err)
	}
	if !strings.HasPrefix(string(data), "# stepbook notebook v1\n# source: TFRM-001.py\n") {
		t.Errorf("notebook preamble:\n%s", data)
	}

	// The script path resolves to its generated notebook.
	out, err := runCLI(t, "export", path, "-o", "-")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	for _, want := range []string{"def transform(sources):", `step("Filter active")`, `step("Uppercase name")`} {
		if !strings.Contains(out, want) {
			t.Errorf("exported script missing %q:\n%s", want, out)
		}
	}

	exported := filepath.Join(dir, "exported.py")
	if _, err := runCLI(t, "export", nb, "-o", exported, "--main-block"); err != nil {
		t.Fatalf("export -o: %v", err)
	}
	data, err = os.ReadFile(exported)
	if err != nil || !strings.Contains(string(data), `if __name__ == "__main__":`) {
		t.Errorf("--main-block output:\n%s (err %v)", data, err)
	}
}

func TestGenerateSample(t *testing.T) {
	dir := workspace(t)
	out, err := runCLI(t, "generate", filepath.Join(dir, "TFRM-001.py"), "--sample", "5", "-o", "-", "--no-cache")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "sample=5") {
		t.Errorf("--sample not applied:\n%s", out)
	}
}

func TestGenerateConfig(t *testing.T) {
	dir := workspace(t)
	cfg := "sample = 7\n"
	if err := os.WriteFile(filepath.Join(dir, config.FileName), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "TFRM-001.py")

	out, err := runCLI(t, "generate", path, "-o", "-", "--no-cache")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "sample=7") {
		t.Errorf("config sample not applied:\n%s", out)
	}

	out, err = runCLI(t, "generate", path, "-o", "-", "--no-cache", "--sample", "3")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "sample=3") {
		t.Errorf("flag should override config:\n%s", out)
	}
}

func TestGenerateErrors(t *testing.T) {
	dir := workspace(t)

	tests := []struct {
		name string
		src  string
		want string
	}{
		{"syntax", "def transform(sources)\n    return 1\n", "bad.py:1: SYNTAX_ERROR: "},
		{"no entry", "x = 1\n", "STRUCTURE_ERROR: "},
		{"dynamic title", "from migrator_studio import step\n\ndef transform(sources):\n    t = \"a\"\n    step(t)\n    return 1\n", "bad.py:5: STRUCTURE_ERROR: "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "bad.py")
			if err := os.WriteFile(path, []byte(tt.src), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := runCLI(t, "generate", path, "-o", "-", "--no-cache")
			if err == nil {
				t.Fatal("expected an error")
			}
			msg := err.Error()
			if !strings.HasPrefix(msg, path) || !strings.Contains(msg, tt.want) {
				t.Errorf("error = %q, want %s and %q", msg, path, tt.want)
			}
		})
	}

	_, err := runCLI(t, "generate", filepath.Join(dir, "missing.py"))
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("missing file: err = %v", err)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"input error", errors.New(errors.ErrCodeSyntax, "unexpected token"), ExitFailure},
		{"internal error", inFile("a.py", errors.New(errors.ErrCodeInternal, "unbalanced scope")), ExitInternal},
		{"uncoded error", io.ErrUnexpectedEOF, ExitFailure},
		{"interrupt", fmt.Errorf("run: %w", context.Canceled), ExitInterrupt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestFormatError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"line", errors.New(errors.ErrCodeSyntax, "unexpected token").AtLine(3), "a.py:3: SYNTAX_ERROR: unexpected token"},
		{"no line", errors.New(errors.ErrCodeStructure, "no entry function transform"), "a.py: STRUCTURE_ERROR: no entry function transform"},
		{"cell", errors.New(errors.ErrCodeMalformed, "bad header").AtLine(9).InCell(2), "a.py:9: MALFORMED_CELL: bad header (cell 2)"},
		{"cause", errors.Wrap(errors.ErrCodeInvalidInput, io.ErrUnexpectedEOF, "read input"), "a.py: INVALID_INPUT: read input: unexpected EOF"},
		{"plain", io.EOF, "a.py: EOF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatError("a.py", tt.err); got != tt.want {
				t.Errorf("FormatError() = %q, want %q", got, tt.want)
			}
		})
	}

	if inFile("a.py", context.Canceled) != context.Canceled {
		t.Error("cancellation should pass through inFile")
	}
	if inFile("a.py", nil) != nil {
		t.Error("inFile(nil) should be nil")
	}
}

func TestGraph(t *testing.T) {
	dir := workspace(t)
	path := filepath.Join(dir, "TFRM-001.py")

	out, err := runCLI(t, "graph", path, "--format", "dot", "--no-cache")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "digraph") || !strings.Contains(out, "Filter active") {
		t.Errorf("dot output:\n%s", out)
	}

	jsonPath := filepath.Join(dir, "graph.json")
	if _, err := runCLI(t, "graph", path, "-o", jsonPath, "--reduce", "--no-cache"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(jsonPath)
	if err != nil || !strings.Contains(string(data), `"nodes"`) {
		t.Errorf("json graph inferred from extension:\n%s (err %v)", data, err)
	}

	if _, err := runCLI(t, "graph", path, "--format", "gif", "--no-cache"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("bad format: err = %v", err)
	}
}

func TestGraphFormat(t *testing.T) {
	tests := []struct {
		format, output, want string
	}{
		{"svg", "-", "svg"},
		{"", "cells.dot", "dot"},
		{"", "cells.PNG", ""},
		{"", "-", ""},
		{"json", "cells.svg", "json"},
	}
	for _, tt := range tests {
		if got := graphFormat(tt.format, tt.output); got != tt.want {
			t.Errorf("graphFormat(%q, %q) = %q, want %q", tt.format, tt.output, got, tt.want)
		}
	}
}

func TestRun(t *testing.T) {
	dir := workspace(t)
	path := filepath.Join(dir, "TFRM-001.py")

	checkRun := func(t *testing.T, out string) {
		t.Helper()
		if !strings.Contains(out, " X ") || !strings.Contains(out, " Z ") {
			t.Errorf("result should hold X and Z:\n%s", out)
		}
		if strings.Contains(out, " Y ") || strings.Contains(out, " y ") {
			t.Errorf("inactive row should be filtered:\n%s", out)
		}
	}

	t.Run("script", func(t *testing.T) {
		out, err := runCLI(t, "run", path)
		if err != nil {
			t.Fatal(err)
		}
		checkRun(t, out)
	})

	t.Run("notebook", func(t *testing.T) {
		nb := filepath.Join(dir, "cells.nb.py")
		if _, err := runCLI(t, "generate", path, "-o", nb, "--no-cache"); err != nil {
			t.Fatal(err)
		}
		out, err := runCLI(t, "run", nb, "--data", filepath.Join(dir, "data"))
		if err != nil {
			t.Fatal(err)
		}
		checkRun(t, out)
	})

	t.Run("missing source", func(t *testing.T) {
		_, err := runCLI(t, "run", path, "--data", t.TempDir())
		if err == nil || !strings.HasPrefix(err.Error(), path) {
			t.Errorf("err = %v, want one naming %s", err, path)
		}
	})
}

func TestInspectList(t *testing.T) {
	dir := workspace(t)
	out, err := runCLI(t, "inspect", filepath.Join(dir, "TFRM-001.py"), "--list", "--no-cache")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"imports", "Filter active", "Uppercase name", "final"} {
		if !strings.Contains(out, want) {
			t.Errorf("cell table missing %q:\n%s", want, out)
		}
	}
}

func TestCachePath(t *testing.T) {
	workspace(t)
	t.Chdir(t.TempDir())

	out, err := runCLI(t, "cache", "path")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(os.Getenv("XDG_CACHE_HOME"), appName)
	if strings.TrimSpace(out) != want {
		t.Errorf("cache path = %q, want %q", out, want)
	}

	if _, err := runCLI(t, "cache", "clear"); err != nil {
		t.Fatalf("cache clear: %v", err)
	}
}

func TestExampleProject(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := filepath.Join("..", "..", "examples", "customers", "TFRM-001.py")

	out, err := runCLI(t, "run", path)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{" ADA ", " LINUS "} {
		if !strings.Contains(out, want) {
			t.Errorf("result missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "GRACE") || strings.Count(out, " ADA ") != 1 {
		t.Errorf("inactive and duplicate rows should be dropped:\n%s", out)
	}

	nb, err := runCLI(t, "generate", path, "-o", "-", "--no-cache")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(nb, "sample=100") || !strings.Contains(nb, `"kind":"helpers"`) {
		t.Errorf("notebook should carry the configured sample and a helpers cell:\n%s", nb)
	}
}
