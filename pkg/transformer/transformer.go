// Package transformer parses transformer scripts and segments the entry
// function into setup, steps and the final return expression.
//
// A transformer script is a module with imports, optional helpers, an
// optional SOURCES declaration and an entry function (transform by default)
// whose body is divided into steps by marker calls:
//
//	def transform(sources):
//	    df = sources["DAT-1"]
//
//	    step("Filter active", "Keep status A")
//	    df = filter_isin(df, "Status", ["A"])
//
//	    return df
//
// Segmentation is a single pass over the top-level statements of the entry
// body. Code before the first marker is setup, each marker opens a step that
// runs to the next marker, and the trailing return becomes the final
// expression. A body without markers becomes one implicit step titled
// "Transform"; its setup is the leading run of source loads.
package transformer

import (
	"io"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stepbook/pkg/errors"
	"github.com/matzehuels/stepbook/pkg/script"
)

// Defaults for the script contract.
const (
	DefaultEntry      = "transform"
	DefaultMarker     = "step"
	DefaultSourcesVar = "SOURCES"
	ImplicitTitle     = "Transform"
)

// Options configures parsing.
type Options struct {
	Entry      string // entry function name
	Marker     string // step marker callee
	SourcesVar string // module-level source declaration
	Logger     *log.Logger
}

// WithDefaults returns a copy of o with zero fields filled in.
func (o Options) WithDefaults() Options {
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

// Lines is an inclusive 1-based line range.
type Lines struct {
	Start int
	End   int
}

// Step is one titled region of the entry function body.
type Step struct {
	Title       string
	Description string
	Body        []script.Stmt
	Lines       Lines
	Implicit    bool
}

// Info is the parsed form of a transformer script. It is read-only once
// returned.
type Info struct {
	Docstring string
	Imports   []script.Stmt

	// Helpers holds helper definitions and module-level statements other
	// than imports, the entry function, the SOURCES declaration and the
	// main block.
	Helpers []script.Stmt

	// Param is the entry function's parameter name, empty if it has none.
	Param     string
	SourceIDs []string
	Setup     []script.Stmt
	Steps     []*Step
	Final     script.Expr
	FinalLine int

	// Main is the body of an `if __name__ == "__main__":` block.
	Main []script.Stmt

	Module *script.Module
}

// Parse parses src and segments its entry function.
func Parse(src string, opts Options) (*Info, error) {
	opts = opts.WithDefaults()
	mod, err := script.Parse(src)
	if err != nil {
		return nil, err
	}
	info := &Info{Module: mod}

	var entry *script.FuncDef
	for i, s := range mod.Body {
		if i == 0 {
			if doc, ok := docstring(s); ok {
				info.Docstring = doc
				continue
			}
		}
		switch s := s.(type) {
		case *script.Import, *script.ImportFrom:
			info.Imports = append(info.Imports, s)
		case *script.FuncDef:
			if s.Name.ID == opts.Entry {
				if entry != nil {
					return nil, errors.New(errors.ErrCodeStructure, "entry function %q is defined twice", opts.Entry).AtLine(s.Position().Line)
				}
				entry = s
				continue
			}
			info.Helpers = append(info.Helpers, s)
		case *script.Assign:
			if ids, ok := sourceDecl(s, opts.SourcesVar); ok {
				info.SourceIDs = ids
				continue
			}
			info.Helpers = append(info.Helpers, s)
		case *script.If:
			if isMainGuard(s) {
				info.Main = s.Body
				continue
			}
			info.Helpers = append(info.Helpers, s)
		default:
			info.Helpers = append(info.Helpers, s)
		}
	}
	if entry == nil {
		return nil, errors.New(errors.ErrCodeStructure, "no entry function %q found", opts.Entry)
	}
	if err := entryParam(entry, info); err != nil {
		return nil, err
	}
	if err := segment(entry, info, opts); err != nil {
		return nil, err
	}
	opts.Logger.Debug("parsed transformer",
		"steps", len(info.Steps),
		"setup", len(info.Setup),
		"helpers", len(info.Helpers),
		"sources", len(info.SourceIDs))
	return info, nil
}

func docstring(s script.Stmt) (string, bool) {
	es, ok := s.(*script.ExprStmt)
	if !ok {
		return "", false
	}
	return script.StringValue(es.X)
}

func sourceDecl(s *script.Assign, name string) ([]string, bool) {
	if len(s.Targets) != 1 {
		return nil, false
	}
	if n, ok := s.Targets[0].(*script.Name); !ok || n.ID != name {
		return nil, false
	}
	var elts []script.Expr
	switch v := s.Value.(type) {
	case *script.List:
		elts = v.Elts
	case *script.Tuple:
		elts = v.Elts
	default:
		return nil, false
	}
	ids := make([]string, 0, len(elts))
	for _, e := range elts {
		id, ok := script.StringValue(e)
		if !ok {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

// isMainGuard matches `if __name__ == "__main__":` without an else branch.
func isMainGuard(s *script.If) bool {
	cmp, ok := s.Cond.(*script.Compare)
	if !ok || len(cmp.Ops) != 1 || cmp.Ops[0] != "==" || len(s.Else) > 0 {
		return false
	}
	n, ok := cmp.X.(*script.Name)
	if !ok || n.ID != "__name__" {
		return false
	}
	v, ok := script.StringValue(cmp.Comparators[0])
	return ok && v == "__main__"
}

func entryParam(f *script.FuncDef, info *Info) error {
	switch len(f.Params) {
	case 0:
		return nil
	case 1:
		p := f.Params[0]
		if p.Star != 0 || p.Default != nil {
			break
		}
		info.Param = p.Name
		return nil
	}
	return errors.New(errors.ErrCodeStructure, "entry function %q must take a single sources parameter", f.Name.ID).AtLine(f.Position().Line)
}

// marker describes a step marker statement.
type marker struct {
	title       string
	description string
	line        int
}

func segment(f *script.FuncDef, info *Info, opts Options) error {
	body := f.Body
	if len(body) > 0 {
		if _, ok := docstring(body[0]); ok {
			body = body[1:]
		}
	}
	end := len(body) - 1
	for end >= 0 {
		if _, ok := body[end].(*script.Comment); !ok {
			break
		}
		end--
	}
	if end < 0 {
		return errors.New(errors.ErrCodeStructure, "entry function %q has no return statement", f.Name.ID).AtLine(f.Position().Line)
	}
	ret, ok := body[end].(*script.Return)
	if !ok || ret.Value == nil {
		return errors.New(errors.ErrCodeStructure, "entry function %q must end with a return statement", f.Name.ID).AtLine(body[end].Position().Line)
	}
	info.Final = ret.Value
	info.FinalLine = ret.Position().Line
	body = body[:end]

	var markers []marker
	var regions [][]script.Stmt
	current := []script.Stmt{}
	for _, s := range body {
		m, isMarker, err := asMarker(s, opts.Marker)
		if err != nil {
			return err
		}
		if !isMarker {
			if err := checkNested(s, opts.Marker); err != nil {
				return err
			}
			current = append(current, s)
			continue
		}
		regions = append(regions, current)
		markers = append(markers, m)
		current = []script.Stmt{}
	}
	regions = append(regions, current)

	if len(markers) == 0 {
		implicitStep(regions[0], info, f)
		return nil
	}

	// Comments directly above a marker describe the step it opens.
	for i := 0; i < len(regions)-1; i++ {
		r := regions[i]
		cut := len(r)
		for cut > 0 {
			if _, ok := r[cut-1].(*script.Comment); !ok {
				break
			}
			cut--
		}
		regions[i] = r[:cut]
		regions[i+1] = append(append([]script.Stmt{}, r[cut:]...), regions[i+1]...)
	}

	info.Setup = regions[0]
	for i, m := range markers {
		stmts := regions[i+1]
		st := &Step{
			Title:       m.title,
			Description: m.description,
			Body:        stmts,
			Lines:       Lines{Start: m.line, End: m.line},
		}
		if n := len(stmts); n > 0 {
			st.Lines.End = max(m.line, stmts[n-1].EndLine())
		}
		info.Steps = append(info.Steps, st)
	}
	return nil
}

func implicitStep(stmts []script.Stmt, info *Info, f *script.FuncDef) {
	n := 0
	for n < len(stmts) && isSourceLoad(stmts[n], info.Param) {
		n++
	}
	info.Setup = stmts[:n]
	rest := stmts[n:]
	st := &Step{Title: ImplicitTitle, Body: rest, Implicit: true}
	switch {
	case len(rest) > 0:
		st.Lines = Lines{Start: rest[0].Position().Line, End: rest[len(rest)-1].EndLine()}
	default:
		st.Lines = Lines{Start: f.Position().Line, End: f.Position().Line}
	}
	info.Steps = []*Step{st}
}

// isSourceLoad reports whether s has the form `x = param["ID"]`.
func isSourceLoad(s script.Stmt, param string) bool {
	_, _, ok := SourceLoad(s, param)
	return ok
}

// SourceLoad matches `name = param["ID"]` and returns the bound name and
// the source identifier.
func SourceLoad(s script.Stmt, param string) (*script.Name, string, bool) {
	a, ok := s.(*script.Assign)
	if !ok || len(a.Targets) != 1 || param == "" {
		return nil, "", false
	}
	target, ok := a.Targets[0].(*script.Name)
	if !ok {
		return nil, "", false
	}
	sub, ok := a.Value.(*script.Subscript)
	if !ok {
		return nil, "", false
	}
	if base, ok := sub.X.(*script.Name); !ok || base.ID != param {
		return nil, "", false
	}
	id, ok := script.StringValue(sub.Index)
	if !ok {
		return nil, "", false
	}
	return target, id, true
}

// asMarker reports whether s is a standalone marker call and extracts its
// literal title and description.
func asMarker(s script.Stmt, name string) (marker, bool, error) {
	es, ok := s.(*script.ExprStmt)
	if !ok {
		return marker{}, false, nil
	}
	call, ok := es.X.(*script.Call)
	if !ok || script.CalleeName(call) != name {
		return marker{}, false, nil
	}
	line := s.Position().Line
	m := marker{line: line}
	var title, desc script.Expr
	for i, a := range call.Args {
		switch {
		case a.Star != 0:
			return m, true, errors.New(errors.ErrCodeStructure, "%s() does not accept unpacked arguments", name).AtLine(line)
		case a.Keyword == "title" || a.Keyword == "" && i == 0:
			title = a.Value
		case a.Keyword == "description" || a.Keyword == "" && i == 1:
			desc = a.Value
		default:
			return m, true, errors.New(errors.ErrCodeStructure, "unexpected argument to %s()", name).AtLine(line)
		}
	}
	if title == nil {
		return m, true, errors.New(errors.ErrCodeStructure, "%s() requires a title", name).AtLine(line)
	}
	t, ok := script.StringValue(title)
	if !ok {
		return m, true, errors.New(errors.ErrCodeStructure, "step title must be a string literal").AtLine(line)
	}
	m.title = t
	if desc != nil {
		d, ok := script.StringValue(desc)
		if !ok {
			return m, true, errors.New(errors.ErrCodeStructure, "step description must be a string literal").AtLine(line)
		}
		m.description = d
	}
	return m, true, nil
}

// checkNested rejects marker calls that are not standalone top-level
// statements and return statements inside step regions.
func checkNested(s script.Stmt, name string) error {
	var found error
	script.Inspect(s, func(n script.Node) bool {
		if found != nil {
			return false
		}
		switch n := n.(type) {
		case *script.Call:
			if script.CalleeName(n) == name {
				found = errors.New(errors.ErrCodeStructure, "%s() must be a top-level statement of the entry function", name).AtLine(lineOf(n, s))
			}
		case *script.Return:
			found = errors.New(errors.ErrCodeStructure, "return is only allowed as the last statement of the entry function").AtLine(n.Position().Line)
		case *script.FuncDef:
			// nested functions may return
			script.InspectAll(n.Body, func(inner script.Node) bool {
				if c, ok := inner.(*script.Call); ok && script.CalleeName(c) == name && found == nil {
					found = errors.New(errors.ErrCodeStructure, "%s() must be a top-level statement of the entry function", name).AtLine(lineOf(c, s))
				}
				return found == nil
			})
			return false
		}
		return true
	})
	return found
}

func lineOf(n script.Node, fallback script.Stmt) int {
	if p := n.Position(); p.IsValid() {
		return p.Line
	}
	return fallback.Position().Line
}
