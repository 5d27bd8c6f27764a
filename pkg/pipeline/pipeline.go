// Package pipeline runs stepbook conversions for the CLI and the server.
//
// Both entry points share one implementation of the stage sequence, the
// cache lookups and the instrumentation, so a notebook generated by
// `stepbook generate` is byte-identical to one served by POST /v1/generate.
//
// # Stages
//
// Generation runs parse → rename → generate → render:
//
//  1. Parse: read the script and its transformer structure
//  2. Rename: give every rebinding a unique name
//  3. Generate: lay the program out as cells
//  4. Render: write the notebook text
//
// Export parses notebook text and rebuilds the script. Graph derives the
// cell dependency graph from either input.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	res, err := runner.Generate(ctx, script, pipeline.Options{Source: "TFRM-001.py"})
//	if err != nil {
//	    return err
//	}
//	fmt.Print(res.Notebook)
package pipeline

import (
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stepbook/pkg/cache"
	"github.com/matzehuels/stepbook/pkg/config"
	"github.com/matzehuels/stepbook/pkg/dag"
	"github.com/matzehuels/stepbook/pkg/errors"
	"github.com/matzehuels/stepbook/pkg/frame"
	"github.com/matzehuels/stepbook/pkg/notebook"
	"github.com/matzehuels/stepbook/pkg/render"
	"github.com/matzehuels/stepbook/pkg/transformer"
)

// Input kinds accepted by Graph.
const (
	InputScript   = "script"
	InputNotebook = "notebook"
)

// MaxInputSize bounds scripts and notebooks accepted by the pipeline.
const MaxInputSize = 4 << 20

// DefaultGraphFormat is the graph output format.
const DefaultGraphFormat = render.FormatJSON

// Options configures every pipeline operation. Zero fields take the
// notebook package defaults. It is the JSON body of server requests.
type Options struct {
	// Source is the script file name recorded in generated notebooks.
	Source string `json:"source,omitempty"`

	Entry         string `json:"entry,omitempty"`
	Marker        string `json:"marker,omitempty"`
	SourcesVar    string `json:"sources_var,omitempty"`
	Param         string `json:"param,omitempty"`
	RuntimeModule string `json:"runtime_module,omitempty"`
	LoaderModule  string `json:"loader_module,omitempty"`

	// Sample adds sample=N to generated source loads when positive.
	Sample int `json:"sample,omitempty"`
	// MainBlock makes export append a development main block.
	MainBlock bool `json:"main_block,omitempty"`
	// KnownOps is the recognized operation vocabulary; nil means the frame
	// operations.
	KnownOps []string `json:"known_ops,omitempty"`

	// Graph options
	Input       string `json:"input,omitempty"` // "script", "notebook" or "" to detect
	Format      string `json:"format,omitempty"`
	Reduce      bool   `json:"reduce,omitempty"`
	SkipImports bool   `json:"skip_imports,omitempty"`
	Detailed    bool   `json:"detailed,omitempty"`

	// Refresh bypasses cache reads; results are still written.
	Refresh bool `json:"refresh,omitempty"`

	Logger *log.Logger `json:"-"`

	validated bool
}

// FromConfig returns options mirroring a loaded config file.
func FromConfig(cfg config.Config, source string) Options {
	return Options{
		Source:        source,
		Entry:         cfg.Entry,
		Marker:        cfg.Marker,
		SourcesVar:    cfg.SourcesVar,
		Param:         cfg.SourcesParam,
		RuntimeModule: cfg.RuntimeModule,
		LoaderModule:  cfg.LoaderModule,
		Sample:        cfg.Sample,
		MainBlock:     cfg.MainBlock,
		KnownOps:      slices.Clone(cfg.KnownOps),
	}
}

// ValidateAndSetDefaults fills zero fields and checks every value. It is
// idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Entry == "" {
		o.Entry = notebook.DefaultEntry
	}
	if o.Marker == "" {
		o.Marker = notebook.DefaultMarker
	}
	if o.SourcesVar == "" {
		o.SourcesVar = notebook.DefaultSourcesVar
	}
	if o.Param == "" {
		o.Param = notebook.DefaultParam
	}
	if o.RuntimeModule == "" {
		o.RuntimeModule = notebook.DefaultRuntimeModule
	}
	if o.LoaderModule == "" {
		o.LoaderModule = notebook.DefaultLoaderModule
	}
	if o.KnownOps == nil {
		o.KnownOps = slices.Clone(frame.OpNames)
	}
	if o.Format == "" {
		o.Format = DefaultGraphFormat
	}

	for _, f := range []struct{ kind, value string }{
		{"entry", o.Entry},
		{"marker", o.Marker},
		{"sources_var", o.SourcesVar},
		{"param", o.Param},
	} {
		if err := errors.ValidateIdentifier(f.kind, f.value); err != nil {
			return err
		}
	}
	for _, m := range []string{o.RuntimeModule, o.LoaderModule} {
		if err := validateModule(m); err != nil {
			return err
		}
	}
	if o.Source != "" {
		if err := errors.ValidatePath(o.Source); err != nil {
			return err
		}
	}
	if o.Sample < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "sample must be >= 0, got %d", o.Sample)
	}
	if !render.ValidFormat(o.Format) {
		return errors.New(errors.ErrCodeInvalidInput, "invalid format %q (valid: %s)", o.Format, strings.Join(render.Formats, ", "))
	}
	switch o.Input {
	case "", InputScript, InputNotebook:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "invalid input kind %q (valid: script, notebook)", o.Input)
	}
	o.validated = true
	return nil
}

func validateModule(m string) error {
	for _, part := range strings.Split(m, ".") {
		if err := errors.ValidateIdentifier("module name", part); err != nil {
			return errors.New(errors.ErrCodeInvalidInput, "invalid module name: %q", m)
		}
	}
	return nil
}

func (o Options) knownOps() map[string]bool {
	set := make(map[string]bool, len(o.KnownOps))
	for _, op := range o.KnownOps {
		set[op] = true
	}
	return set
}

func (o Options) transformerOptions() transformer.Options {
	return transformer.Options{
		Entry:      o.Entry,
		Marker:     o.Marker,
		SourcesVar: o.SourcesVar,
		Logger:     o.Logger,
	}
}

func (o Options) notebookOptions() notebook.Options {
	return notebook.Options{
		Source:        o.Source,
		RuntimeModule: o.RuntimeModule,
		LoaderModule:  o.LoaderModule,
		Sample:        o.Sample,
		Param:         o.Param,
		Entry:         o.Entry,
		Marker:        o.Marker,
		SourcesVar:    o.SourcesVar,
		MainBlock:     o.MainBlock,
		KnownOps:      o.knownOps(),
		Logger:        o.Logger,
	}
}

func (o Options) notebookKeyOpts() cache.NotebookKeyOpts {
	ops := slices.Clone(o.KnownOps)
	sort.Strings(ops)
	return cache.NotebookKeyOpts{
		Source:        o.Source,
		Entry:         o.Entry,
		Marker:        o.Marker,
		SourcesVar:    o.SourcesVar,
		Param:         o.Param,
		RuntimeModule: o.RuntimeModule,
		Sample:        o.Sample,
		KnownOps:      slices.Compact(ops),
	}
}

func (o Options) scriptKeyOpts() cache.ScriptKeyOpts {
	return cache.ScriptKeyOpts{
		Entry:         o.Entry,
		Marker:        o.Marker,
		SourcesVar:    o.SourcesVar,
		Param:         o.Param,
		RuntimeModule: o.RuntimeModule,
		LoaderModule:  o.LoaderModule,
		MainBlock:     o.MainBlock,
	}
}

func (o Options) graphKeyOpts(input string) cache.GraphKeyOpts {
	return cache.GraphKeyOpts{
		Input:       input,
		Reduce:      o.Reduce,
		SkipImports: o.SkipImports,
		Notebook:    o.notebookKeyOpts(),
	}
}

// DetectInput classifies text as a notebook when it starts with the format
// line, and as a script otherwise.
func DetectInput(text string) string {
	if strings.HasPrefix(text, "# "+notebook.FormatVersion) {
		return InputNotebook
	}
	return InputScript
}

// Result is the outcome of Generate.
type Result struct {
	// Notebook is the rendered notebook text.
	Notebook string
	Document *notebook.Document
	// Hash is the content hash of the input script.
	Hash     string
	Stats    Stats
	CacheHit bool
}

// Stats holds stage timings and sizes. Timings are zero on a cache hit.
type Stats struct {
	Cells        int
	Steps        int
	ParseTime    time.Duration
	RenameTime   time.Duration
	GenerateTime time.Duration
	RenderTime   time.Duration
	ExportTime   time.Duration
	GraphTime    time.Duration
}

// Total returns the sum of all stage timings.
func (s Stats) Total() time.Duration {
	return s.ParseTime + s.RenameTime + s.GenerateTime + s.RenderTime + s.ExportTime + s.GraphTime
}

// ExportResult is the outcome of Export.
type ExportResult struct {
	Script   string
	Hash     string
	Stats    Stats
	CacheHit bool
}

// GraphResult is the outcome of Graph.
type GraphResult struct {
	Graph *dag.DAG
	// Output is the graph rendered in Format.
	Output   []byte
	Format   string
	Input    string
	Stats    Stats
	CacheHit bool
}
