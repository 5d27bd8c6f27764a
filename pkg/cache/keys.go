package cache

import "github.com/matzehuels/stepbook/pkg/buildinfo"

// Key prefixes per artifact.
const (
	prefixNotebook = "notebook"
	prefixScript   = "script"
	prefixGraph    = "graph"
)

// Keyer derives cache keys from input hashes and the options that shape the
// output.
type Keyer interface {
	// NotebookKey keys a notebook generated from a script.
	NotebookKey(scriptHash string, opts NotebookKeyOpts) string
	// ScriptKey keys a script exported from a notebook.
	ScriptKey(notebookHash string, opts ScriptKeyOpts) string
	// GraphKey keys a cell graph built from either input kind.
	GraphKey(inputHash string, opts GraphKeyOpts) string
}

// NotebookKeyOpts are the generation options that change notebook text.
type NotebookKeyOpts struct {
	Source        string   `json:"source"`
	Entry         string   `json:"entry"`
	Marker        string   `json:"marker"`
	SourcesVar    string   `json:"sources_var"`
	Param         string   `json:"param"`
	RuntimeModule string   `json:"runtime_module"`
	Sample        int      `json:"sample"`
	KnownOps      []string `json:"known_ops"` // sorted
}

// ScriptKeyOpts are the export options that change script text.
type ScriptKeyOpts struct {
	Entry         string `json:"entry"`
	Marker        string `json:"marker"`
	SourcesVar    string `json:"sources_var"`
	Param         string `json:"param"`
	RuntimeModule string `json:"runtime_module"`
	LoaderModule  string `json:"loader_module"`
	MainBlock     bool   `json:"main_block"`
}

// GraphKeyOpts identify a cell graph. Input is "script" or "notebook".
type GraphKeyOpts struct {
	Input       string          `json:"input"`
	Reduce      bool            `json:"reduce"`
	SkipImports bool            `json:"skip_imports"`
	Notebook    NotebookKeyOpts `json:"notebook"`
}

// DefaultKeyer hashes key options with the build version, so entries written
// by another release never match.
type DefaultKeyer struct {
	version string
}

// NewDefaultKeyer creates a keyer bound to the running build version.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{version: buildinfo.Version}
}

// NotebookKey implements [Keyer].
func (k *DefaultKeyer) NotebookKey(scriptHash string, opts NotebookKeyOpts) string {
	return hashKey(prefixNotebook, k.version, scriptHash, opts)
}

// ScriptKey implements [Keyer].
func (k *DefaultKeyer) ScriptKey(notebookHash string, opts ScriptKeyOpts) string {
	return hashKey(prefixScript, k.version, notebookHash, opts)
}

// GraphKey implements [Keyer].
func (k *DefaultKeyer) GraphKey(inputHash string, opts GraphKeyOpts) string {
	return hashKey(prefixGraph, k.version, inputHash, opts)
}

var _ Keyer = (*DefaultKeyer)(nil)
