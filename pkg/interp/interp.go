package interp

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stepbook/pkg/errors"
	"github.com/matzehuels/stepbook/pkg/frame"
	"github.com/matzehuels/stepbook/pkg/notebook"
	"github.com/matzehuels/stepbook/pkg/script"
	"github.com/matzehuels/stepbook/pkg/transformer"
)

// maxDepth bounds the call stack of interpreted functions.
const maxDepth = 200

// Loader resolves source identifiers to tables. [frame.Loader] implements it.
type Loader interface {
	Load(id string, sample int) (*frame.Table, error)
}

// Options configures a run.
type Options struct {
	Loader Loader
	Sample int // default sample passed to the loader

	Entry         string
	Marker        string
	SourcesVar    string
	RuntimeModule string
	LoaderModule  string

	Stdout io.Writer // print output; discarded when nil
	Logger *log.Logger
}

// WithDefaults returns a copy of o with zero fields filled in.
func (o Options) WithDefaults() Options {
	if o.Entry == "" {
		o.Entry = notebook.DefaultEntry
	}
	if o.Marker == "" {
		o.Marker = notebook.DefaultMarker
	}
	if o.SourcesVar == "" {
		o.SourcesVar = notebook.DefaultSourcesVar
	}
	if o.RuntimeModule == "" {
		o.RuntimeModule = notebook.DefaultRuntimeModule
	}
	if o.LoaderModule == "" {
		o.LoaderModule = notebook.DefaultLoaderModule
	}
	if o.Stdout == nil {
		o.Stdout = io.Discard
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	return o
}

// DisplayKind classifies a display record.
type DisplayKind string

const (
	DisplayValue    DisplayKind = "value"
	DisplayMarkdown DisplayKind = "markdown"
	DisplayTable    DisplayKind = "table"
)

// Display is one call to a display function.
type Display struct {
	Cell  int // notebook cell, -1 for scripts
	Kind  DisplayKind
	Text  string
	Table *frame.Table
}

// StepRun records a step marker reached while running a script.
type StepRun struct {
	Title       string
	Description string
	Line        int
}

// Result is the outcome of a run.
type Result struct {
	Value    Value
	Table    *frame.Table // Value when it is a table
	Steps    []StepRun
	Displays []Display
}

// Interp is the state of one run.
type Interp struct {
	ctx     context.Context
	opts    Options
	globals *env
	modules map[string]*Module
	result  *Result
	cell    int
	depth   int
	// handling is the stack of exceptions being handled, for bare raise.
	handling []*Exception
}

func newInterp(ctx context.Context, opts Options) *Interp {
	in := &Interp{
		ctx:     ctx,
		opts:    opts,
		globals: newEnv(nil),
		result:  &Result{},
		cell:    -1,
	}
	in.globals.vars["__name__"] = "stepbook"
	in.modules = in.hostModules()
	return in
}

// RunScript executes a transformer script: the module body first, then the
// entry function called with a dict of its sources.
func RunScript(ctx context.Context, src string, opts Options) (*Result, error) {
	opts = opts.WithDefaults()
	info, err := transformer.Parse(src, transformer.Options{
		Entry:      opts.Entry,
		Marker:     opts.Marker,
		SourcesVar: opts.SourcesVar,
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	in := newInterp(ctx, opts)
	if err := in.run(info.Module.Body); err != nil {
		return nil, err
	}
	fn, ok := in.globals.vars[opts.Entry].(Callable)
	if !ok {
		return nil, errors.New(errors.ErrCodeRuntime, "entry %s is not callable", opts.Entry)
	}

	var args []Value
	if info.Param != "" {
		sources := NewDict()
		for _, id := range SourceIDs(info) {
			t, err := in.load(id, 0)
			if err != nil {
				return nil, in.convert(err)
			}
			if err := sources.Set(id, t); err != nil {
				return nil, in.convert(err)
			}
		}
		args = []Value{sources}
	}
	v, err := in.call(fn, args, nil)
	if err != nil {
		return nil, in.convert(err)
	}
	opts.Logger.Debug("ran script", "steps", len(in.result.Steps))
	return in.finish(v), nil
}

// RunNotebook executes the cells of doc in order in one namespace and
// returns the value bound by the final cell.
func RunNotebook(ctx context.Context, doc *notebook.Document, opts Options) (*Result, error) {
	opts = opts.WithDefaults()
	in := newInterp(ctx, opts)

	var final *notebook.Cell
	for i, c := range doc.Cells {
		in.cell = i
		m, err := script.Parse(c.Code)
		if err != nil {
			var e *errors.Error
			if errors.As(err, &e) {
				e.InCell(i)
			}
			return nil, err
		}
		if err := in.run(m.Body); err != nil {
			return nil, err
		}
		if c.Kind == notebook.KindFinal {
			final = c
		}
		opts.Logger.Debug("ran cell", "cell", i, "kind", c.Kind)
	}
	if final == nil {
		return nil, errors.New(errors.ErrCodeMalformed, "notebook has no final cell")
	}
	name := final.Display
	if name == "" && len(final.Outputs) > 0 {
		name = final.Outputs[0]
	}
	v, ok := in.globals.vars[name]
	if !ok {
		return nil, errors.New(errors.ErrCodeRuntime, "final cell did not bind %q", name).InCell(final.Index)
	}
	return in.finish(v), nil
}

// SourceIDs returns the identifiers a script's entry function loads: the
// SOURCES declaration followed by any literal subscripts of the parameter.
func SourceIDs(info *transformer.Info) []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, id := range info.SourceIDs {
		add(id)
	}
	if info.Param == "" {
		return ids
	}
	visit := func(n script.Node) bool {
		if s, ok := n.(*script.Subscript); ok {
			if x, ok := s.X.(*script.Name); ok && x.ID == info.Param {
				if id, ok := script.StringValue(s.Index); ok {
					add(id)
				}
			}
		}
		return true
	}
	script.InspectAll(info.Setup, visit)
	for _, st := range info.Steps {
		script.InspectAll(st.Body, visit)
	}
	return ids
}

func (in *Interp) finish(v Value) *Result {
	in.result.Value = v
	if t, ok := v.(*frame.Table); ok {
		in.result.Table = t
	}
	return in.result
}

func (in *Interp) run(stmts []script.Stmt) error {
	if _, err := in.execBlock(stmts, in.globals); err != nil {
		return in.convert(err)
	}
	return nil
}

func (in *Interp) load(id string, sample int) (*frame.Table, error) {
	if in.opts.Loader == nil {
		return nil, raise("FileNotFoundError", "no data directory configured for source %s", id)
	}
	if sample <= 0 {
		sample = in.opts.Sample
	}
	t, err := in.opts.Loader.Load(id, sample)
	if err != nil {
		return nil, hostError(err)
	}
	in.opts.Logger.Debug("loaded source", "id", id, "rows", t.Len())
	return t, nil
}

// pyError is an exception propagating through the interpreter.
type pyError struct {
	exc  *Exception
	line int
}

func (e *pyError) Error() string { return e.exc.Type + ": " + e.exc.Msg }

func raise(typ, format string, args ...any) error {
	return &pyError{exc: &Exception{Type: typ, Msg: fmt.Sprintf(format, args...)}}
}

// hostError turns a Go error from a host function into an exception the
// script can catch.
func hostError(err error) error {
	var pe *pyError
	if errors.As(err, &pe) {
		return err
	}
	typ := "ValueError"
	switch errors.GetCode(err) {
	case errors.ErrCodeSourceNotFound, errors.ErrCodeFileNotFound:
		typ = "FileNotFoundError"
	case errors.ErrCodeRuntime:
		typ = "KeyError"
	}
	return &pyError{exc: &Exception{Type: typ, Msg: errors.UserMessage(err)}}
}

// convert turns an uncaught exception into a RUNTIME_ERROR.
func (in *Interp) convert(err error) error {
	var pe *pyError
	if !errors.As(err, &pe) {
		return err
	}
	e := errors.New(errors.ErrCodeRuntime, "%s: %s", pe.exc.Type, pe.exc.Msg).AtLine(pe.line)
	if in.cell >= 0 {
		e.InCell(in.cell)
	}
	return e
}

// env is one scope. Module scope has no parent.
type env struct {
	vars    map[string]Value
	parent  *env
	root    *env
	globals map[string]bool
}

func newEnv(parent *env) *env {
	e := &env{vars: make(map[string]Value), parent: parent}
	if parent == nil {
		e.root = e
	} else {
		e.root = parent.root
	}
	return e
}

func (e *env) lookup(name string) (Value, bool) {
	if e.globals[name] {
		v, ok := e.root.vars[name]
		return v, ok
	}
	for s := e; s != nil; s = s.parent {
		if v, ok := s.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (e *env) set(name string, v Value) {
	if e.globals[name] {
		e.root.vars[name] = v
		return
	}
	e.vars[name] = v
}

func (e *env) del(name string) bool {
	target := e
	if e.globals[name] {
		target = e.root
	}
	if _, ok := target.vars[name]; !ok {
		return false
	}
	delete(target.vars, name)
	return true
}

func (e *env) declareGlobal(name string) {
	if e.root == e {
		return
	}
	if e.globals == nil {
		e.globals = make(map[string]bool)
	}
	e.globals[name] = true
}
