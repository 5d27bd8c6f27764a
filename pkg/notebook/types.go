package notebook

import (
	"io"

	"github.com/charmbracelet/log"
)

// FormatVersion is written on the first line of every notebook.
const FormatVersion = "stepbook notebook v1"

// Kind classifies a cell.
type Kind string

const (
	KindImports Kind = "imports"
	KindHelpers Kind = "helpers"
	KindSetup   Kind = "setup"
	KindStep    Kind = "step"
	KindFinal   Kind = "final"
)

// Valid reports whether k is a known cell kind.
func (k Kind) Valid() bool {
	switch k {
	case KindImports, KindHelpers, KindSetup, KindStep, KindFinal:
		return true
	}
	return false
}

// Display vocabulary provided by the runtime module.
const (
	FuncDisplay      = "display"
	FuncDisplayMD    = "display_md"
	FuncDisplayTable = "display_table"
	FuncLoadSource   = "load_source"
)

// Directives are the display calls stripped on export.
var Directives = map[string]bool{
	FuncDisplay:      true,
	FuncDisplayMD:    true,
	FuncDisplayTable: true,
}

// Defaults for generation and export.
const (
	DefaultRuntimeModule = "migrator_studio.notebook"
	DefaultLoaderModule  = "migrator_studio"
	DefaultParam         = "sources"
	DefaultEntry         = "transform"
	DefaultMarker        = "step"
	DefaultSourcesVar    = "SOURCES"
)

// Cell is one notebook cell.
type Cell struct {
	Index       int
	Kind        Kind
	Title       string
	Description string
	Inputs      []string
	Outputs     []string
	Code        string
	// Display is the binding shown at the end of the cell.
	Display  string
	Implicit bool
}

// Document is a parsed or generated notebook.
type Document struct {
	Format    string
	Source    string
	Docstring string
	Cells     []*Cell
}

// Steps returns the step cells in order.
func (d *Document) Steps() []*Cell {
	var out []*Cell
	for _, c := range d.Cells {
		if c.Kind == KindStep {
			out = append(out, c)
		}
	}
	return out
}

// Producer returns the index of the cell declaring name as an output, or
// -1.
func (d *Document) Producer(name string) int {
	for _, c := range d.Cells {
		for _, o := range c.Outputs {
			if o == name {
				return c.Index
			}
		}
	}
	return -1
}

// Options configures generation and export.
type Options struct {
	// Source is the script file name recorded in the notebook preamble.
	Source string

	// RuntimeModule provides the display vocabulary and load_source.
	RuntimeModule string
	// LoaderModule provides load_source to an exported dev main block.
	LoaderModule string

	// Sample adds sample=N to generated source loads when positive.
	Sample int

	Param      string
	Entry      string
	Marker     string
	SourcesVar string

	// MainBlock makes Export append a development main block.
	MainBlock bool

	KnownOps map[string]bool
	Logger   *log.Logger
}

// WithDefaults returns a copy of o with zero fields filled in.
func (o Options) WithDefaults() Options {
	if o.RuntimeModule == "" {
		o.RuntimeModule = DefaultRuntimeModule
	}
	if o.LoaderModule == "" {
		o.LoaderModule = DefaultLoaderModule
	}
	if o.Param == "" {
		o.Param = DefaultParam
	}
	if o.Entry == "" {
		o.Entry = DefaultEntry
	}
	if o.Marker == "" {
		o.Marker = DefaultMarker
	}
	if o.SourcesVar == "" {
		o.SourcesVar = DefaultSourcesVar
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	return o
}
