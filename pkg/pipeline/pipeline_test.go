package pipeline

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stepbook/pkg/cache"
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

func quiet() *log.Logger { return log.New(io.Discard) }

func TestValidateAndSetDefaults(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"defaults", Options{}, false},
		{"custom", Options{Entry: "run", RuntimeModule: "studio.nb", Sample: 3}, false},
		{"bad entry", Options{Entry: "run-it"}, true},
		{"bad module", Options{RuntimeModule: "a..b"}, true},
		{"negative sample", Options{Sample: -1}, true},
		{"bad format", Options{Format: "gif"}, true},
		{"bad input", Options{Input: "yaml"}, true},
		{"bad source", Options{Source: "a\nb.py"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeInvalidInput) && !errors.Is(err, errors.ErrCodeInvalidPath) {
				t.Errorf("err code = %s", errors.GetCode(err))
			}
		})
	}

	var o Options
	_ = o.ValidateAndSetDefaults()
	if o.Entry != "transform" || o.Format != "json" || len(o.KnownOps) == 0 {
		t.Errorf("defaults not applied: %+v", o)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Sample = 9
	o := FromConfig(cfg, "x.py")
	if o.Source != "x.py" || o.Sample != 9 || o.Param != "sources" {
		t.Errorf("FromConfig = %+v", o)
	}
}

func TestDetectInput(t *testing.T) {
	if DetectInput(script) != InputScript {
		t.Error("script detected as notebook")
	}
	if DetectInput("# stepbook notebook v1\n") != InputNotebook {
		t.Error("notebook not detected")
	}
}

func TestGenerateAndExport(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(cache.NewMemoryCache(0), nil, quiet())
	defer r.Close()

	res, err := r.Generate(ctx, script, Options{Source: "TFRM-001.py"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.CacheHit {
		t.Error("first Generate should miss")
	}
	if res.Stats.Steps != 2 {
		t.Errorf("steps = %d, want 2", res.Stats.Steps)
	}
	if !strings.HasPrefix(res.Notebook, "# stepbook notebook v1\n# source: TFRM-001.py\n") {
		t.Errorf("notebook preamble:\n%s", res.Notebook)
	}
	if res.Hash != cache.HashString(script) {
		t.Error("Hash should be the script content hash")
	}

	again, err := r.Generate(ctx, script, Options{Source: "TFRM-001.py"})
	if err != nil {
		t.Fatal(err)
	}
	if !again.CacheHit || again.Notebook != res.Notebook {
		t.Error("second Generate should hit with identical text")
	}
	if again.Document == nil || len(again.Document.Cells) != len(res.Document.Cells) {
		t.Error("cache hit should carry the parsed document")
	}

	refreshed, err := r.Generate(ctx, script, Options{Source: "TFRM-001.py", Refresh: true})
	if err != nil || refreshed.CacheHit {
		t.Errorf("Refresh should bypass the cache: hit=%v err=%v", refreshed.CacheHit, err)
	}

	sampled, err := r.Generate(ctx, script, Options{Source: "TFRM-001.py", Sample: 10})
	if err != nil {
		t.Fatal(err)
	}
	if sampled.CacheHit || !strings.Contains(sampled.Notebook, "sample=10") {
		t.Error("different options should produce a different notebook")
	}

	exp, err := r.Export(ctx, res.Notebook, Options{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.Contains(exp.Script, "def transform(sources):") || !strings.Contains(exp.Script, `step("Filter active")`) {
		t.Errorf("exported script:\n%s", exp.Script)
	}
	exp2, err := r.Export(ctx, res.Notebook, Options{})
	if err != nil || !exp2.CacheHit || exp2.Script != exp.Script {
		t.Error("second Export should hit")
	}
}

func TestGenerateErrors(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(nil, nil, quiet())

	tests := []struct {
		name string
		src  string
		code errors.Code
		line int
	}{
		{"syntax", "def transform(sources)\n    return 1\n", errors.ErrCodeSyntax, 1},
		{"no entry", "x = 1\n", errors.ErrCodeStructure, 0},
		{"dynamic title", "from migrator_studio import step\n\ndef transform(sources):\n    t = \"a\"\n    step(t)\n    return 1\n", errors.ErrCodeStructure, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Generate(ctx, tt.src, Options{})
			if !errors.Is(err, tt.code) {
				t.Fatalf("err = %v, want %s", err, tt.code)
			}
			if line, _ := errors.Position(err); tt.line > 0 && line != tt.line {
				t.Errorf("line = %d, want %d", line, tt.line)
			}
		})
	}

	big := strings.Repeat("#", MaxInputSize+1)
	if _, err := r.Generate(ctx, big, Options{}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("oversized input: err = %v", err)
	}
}

func TestGenerateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewRunner(nil, nil, quiet())
	if _, err := r.Generate(ctx, script, Options{}); err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestGraph(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(cache.NewMemoryCache(0), nil, quiet())

	fromScript, err := r.Graph(ctx, script, Options{Format: "dot"})
	if err != nil {
		t.Fatalf("Graph(script): %v", err)
	}
	if fromScript.Input != InputScript {
		t.Errorf("Input = %q", fromScript.Input)
	}
	if !strings.HasPrefix(string(fromScript.Output), "digraph G {") {
		t.Errorf("dot output:\n%s", fromScript.Output)
	}

	gen, err := r.Generate(ctx, script, Options{})
	if err != nil {
		t.Fatal(err)
	}
	fromNotebook, err := r.Graph(ctx, gen.Notebook, Options{})
	if err != nil {
		t.Fatalf("Graph(notebook): %v", err)
	}
	if fromNotebook.Input != InputNotebook {
		t.Errorf("Input = %q", fromNotebook.Input)
	}
	if fromNotebook.Graph.NodeCount() != fromScript.Graph.NodeCount() ||
		fromNotebook.Graph.EdgeCount() != fromScript.Graph.EdgeCount() {
		t.Error("script and notebook graphs should match")
	}
	if !strings.Contains(string(fromNotebook.Output), `"nodes"`) {
		t.Errorf("json output:\n%s", fromNotebook.Output)
	}

	cached, err := r.Graph(ctx, script, Options{Format: "json"})
	if err != nil {
		t.Fatal(err)
	}
	if !cached.CacheHit || cached.Graph.NodeCount() != fromScript.Graph.NodeCount() {
		t.Error("graph should be served from cache regardless of format")
	}

	reduced, err := r.Graph(ctx, script, Options{Reduce: true})
	if err != nil {
		t.Fatal(err)
	}
	if reduced.CacheHit || reduced.Graph.EdgeCount() > fromScript.Graph.EdgeCount() {
		t.Error("reduced graph should be computed separately and have no more edges")
	}
}

func TestGenerateConcurrent(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(cache.NewMemoryCache(0), nil, quiet())

	var wg sync.WaitGroup
	results := make([]string, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := r.Generate(ctx, script, Options{})
			errs[i] = err
			if err == nil {
				results[i] = res.Notebook
			}
		}(i)
	}
	wg.Wait()
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("call %d: %v", i, errs[i])
		}
		if results[i] != results[0] {
			t.Fatalf("call %d produced different output", i)
		}
	}
}
