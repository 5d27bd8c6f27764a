package notebook

import (
	"fmt"
	"slices"
	"strings"

	"github.com/matzehuels/stepbook/pkg/analysis"
	"github.com/matzehuels/stepbook/pkg/errors"
	"github.com/matzehuels/stepbook/pkg/script"
)

// parsedCell is a cell whose code has been parsed and stripped of notebook
// constructs.
type parsedCell struct {
	*Cell
	Body []script.Stmt
}

// Export converts notebook text into a transformer script.
func Export(text string, opts Options) (string, error) {
	doc, err := Parse(text)
	if err != nil {
		return "", err
	}
	return ExportDocument(doc, opts)
}

// ExportDocument converts a parsed notebook into a transformer script.
// Renaming is not reversed. The document is not modified.
func ExportDocument(doc *Document, opts Options) (string, error) {
	opts = opts.WithDefaults()
	opts.Param = entryParam(doc, opts.Param)
	cells, ids, err := prepare(doc, opts)
	if err != nil {
		return "", err
	}
	if err := checkReferences(cells, opts); err != nil {
		return "", err
	}

	var (
		imports, helpers, setup []script.Stmt
		final                   script.Expr
		body                    []script.Stmt
		stepNo                  int
	)
	for _, c := range cells {
		switch c.Kind {
		case KindImports:
			imports = append(imports, c.Body...)
		case KindHelpers:
			helpers = append(helpers, c.Body...)
		case KindSetup:
			setup = append(setup, c.Body...)
		case KindStep:
			stepNo++
			if !c.Implicit {
				title := c.Title
				if title == "" {
					title = fmt.Sprintf("Step %d", stepNo)
				}
				args := []script.Expr{script.NewStr(title)}
				if c.Description != "" {
					args = append(args, script.NewStr(c.Description))
				}
				body = append(body, script.NewExprStmt(script.NewCall(script.NewName(opts.Marker), args...)))
			}
			body = append(body, c.Body...)
		case KindFinal:
			final = c.Body[0].(*script.Assign).Value
		}
	}

	bound := analysis.Analyze(imports, analysis.Options{}).Writes
	if stepNo > 0 && !bound.Has(opts.Marker) && hasMarker(body, opts.Marker) {
		imports = append(imports, importFrom(opts.LoaderModule, opts.Marker))
	}

	entryBody := append(slices.Clone(setup), body...)
	for i, s := range entryBody {
		if i > 0 && isMarker(s, opts.Marker) {
			script.SetBlank(s, true)
		}
	}
	ret := &script.Return{Value: final}
	ret.Blank = len(entryBody) > 0
	entryBody = append(entryBody, ret)

	entry := &script.FuncDef{
		Name:   script.NewName(opts.Entry),
		Params: []*script.Param{{Name: opts.Param}},
		Body:   entryBody,
	}

	var pieces []string
	if doc.Docstring != "" {
		pieces = append(pieces, script.Format([]script.Stmt{script.NewExprStmt(script.NewStr(doc.Docstring))}))
	}
	if len(imports) > 0 {
		pieces = append(pieces, script.Format(imports))
	}
	if len(ids) > 0 {
		list := &script.List{}
		for _, id := range ids {
			list.Elts = append(list.Elts, script.NewStr(id))
		}
		pieces = append(pieces, script.Format([]script.Stmt{script.NewAssign(script.NewName(opts.SourcesVar), list)}))
	}
	if len(helpers) > 0 {
		pieces = append(pieces, script.Format(helpers))
	}
	pieces = append(pieces, script.Format([]script.Stmt{entry}))
	if opts.MainBlock {
		pieces = append(pieces, script.Format([]script.Stmt{mainBlock(ids, opts)}))
	}

	for i := range pieces {
		pieces[i] = strings.TrimRight(pieces[i], "\n")
	}
	opts.Logger.Debug("exported notebook", "cells", len(cells), "steps", stepNo, "sources", len(ids))
	return strings.Join(pieces, "\n\n\n") + "\n", nil
}

// prepare parses every cell body, strips display directives and the
// runtime import, converts source loads back to parameter lookups and
// validates the cell structure. It returns the source identifiers in order
// of first load.
func prepare(doc *Document, opts Options) ([]*parsedCell, []string, error) {
	var (
		cells []*parsedCell
		ids   []string
		owner = map[string]int{}
	)
	for i, c := range doc.Cells {
		mod, err := script.Parse(c.Code)
		if err != nil {
			return nil, nil, errors.Wrap(errors.ErrCodeMalformed, err, "cell body does not parse").AtLine(lineOf(err)).InCell(i)
		}
		for _, name := range c.Outputs {
			if prev, ok := owner[name]; ok {
				return nil, nil, errors.New(errors.ErrCodeMalformed, "%q is declared as an output of cells %d and %d", name, prev, i).
					InCell(i).WithName(name)
			}
			owner[name] = i
		}

		body := stripDirectives(mod.Body)
		if c.Kind == KindImports {
			body = stripRuntimeImport(body, opts.RuntimeModule)
		}
		body, ids = convertLoads(body, opts.Param, ids)

		for _, s := range body {
			if r, ok := s.(*script.Return); ok {
				return nil, nil, errors.New(errors.ErrCodeMalformed, "cell contains a top-level return").AtLine(r.Position().Line).InCell(i)
			}
		}
		if line := markerLine(body, opts.Marker); line > 0 {
			return nil, nil, errors.New(errors.ErrCodeMalformed, "cell contains a %s() marker", opts.Marker).AtLine(line).InCell(i)
		}
		if c.Kind == KindFinal {
			if i != len(doc.Cells)-1 {
				return nil, nil, errors.New(errors.ErrCodeMalformed, "final cell must be the last cell").InCell(i)
			}
			body = dropComments(body)
			a, ok := singleAssign(body)
			if !ok {
				return nil, nil, errors.New(errors.ErrCodeMalformed, "final cell must be a single assignment").InCell(i)
			}
			body = []script.Stmt{a}
		}
		cells = append(cells, &parsedCell{Cell: c, Body: body})
	}
	if len(cells) == 0 || cells[len(cells)-1].Kind != KindFinal {
		return nil, nil, errors.New(errors.ErrCodeMalformed, "notebook has no final cell")
	}
	return cells, ids, nil
}

// entryParam returns the name the setup cell binds to a dict of
// load_source calls, which is the entry parameter of the generating script.
// Without such a dict the configured parameter is used.
func entryParam(doc *Document, fallback string) string {
	for _, c := range doc.Cells {
		if c.Kind != KindSetup {
			continue
		}
		mod, err := script.Parse(c.Code)
		if err != nil {
			return fallback
		}
		for i, s := range mod.Body {
			a, ok := s.(*script.Assign)
			if !ok || len(a.Targets) != 1 {
				continue
			}
			n, ok := a.Targets[0].(*script.Name)
			if !ok {
				continue
			}
			// an empty dict only counts where the generator puts it
			if ids, ok := loadDict(a.Value); ok && (len(ids) > 0 || i == 0) {
				return n.ID
			}
		}
	}
	return fallback
}

func lineOf(err error) int {
	line, _ := errors.Position(err)
	return line
}

// checkReferences rejects cells reading names no strictly earlier cell
// produces. The entry parameter counts as produced.
func checkReferences(cells []*parsedCell, opts Options) error {
	produced := analysis.Set{opts.Param: true}
	for i, c := range cells {
		u := analysis.Analyze(c.Body, analysis.Options{KnownOps: opts.KnownOps})
		for _, name := range u.Reads.Sorted() {
			if produced.Has(name) || analysis.IsBuiltin(name) || boundInCell(u, name) {
				continue
			}
			return errors.New(errors.ErrCodeUnresolved, "%q has no producer in an earlier cell", name).InCell(i).WithName(name)
		}
		for name := range u.Writes {
			produced.Add(name)
		}
		for _, name := range c.Outputs {
			if c.Kind == KindImports && runtimeName(name) {
				continue
			}
			produced.Add(name)
		}
	}
	return nil
}

// boundInCell reports whether the cell's own bindings satisfy its reads of
// name: a binding precedes every immediate load, and loads inside function
// bodies only need a binding somewhere in the cell.
func boundInCell(u *analysis.Usage, name string) bool {
	stored := false
	for _, n := range u.Sites[name] {
		switch {
		case u.Stores[n]:
			stored = true
		case u.Deferred[n]:
		case !stored:
			return false
		}
	}
	return stored
}

func runtimeName(name string) bool {
	return Directives[name] || name == FuncLoadSource
}

// stripDirectives removes display calls used as statements, at any depth.
// A block left empty gets a pass statement.
func stripDirectives(stmts []script.Stmt) []script.Stmt {
	var out []script.Stmt
	for _, s := range stmts {
		if isDirective(s) {
			continue
		}
		switch s := s.(type) {
		case *script.If:
			s.Body, s.Else = stripBlock(s.Body), stripDirectives(s.Else)
		case *script.For:
			s.Body, s.Else = stripBlock(s.Body), stripDirectives(s.Else)
		case *script.While:
			s.Body, s.Else = stripBlock(s.Body), stripDirectives(s.Else)
		case *script.With:
			s.Body = stripBlock(s.Body)
		case *script.Try:
			s.Body = stripBlock(s.Body)
			for _, h := range s.Handlers {
				h.Body = stripBlock(h.Body)
			}
			s.Else, s.Finally = stripDirectives(s.Else), stripDirectives(s.Finally)
		case *script.FuncDef:
			s.Body = stripBlock(s.Body)
		}
		out = append(out, s)
	}
	return out
}

func stripBlock(stmts []script.Stmt) []script.Stmt {
	out := stripDirectives(stmts)
	if len(dropComments(out)) == 0 {
		out = append(out, &script.Pass{})
	}
	return out
}

func isDirective(s script.Stmt) bool {
	es, ok := s.(*script.ExprStmt)
	if !ok {
		return false
	}
	call, ok := es.X.(*script.Call)
	if !ok {
		return false
	}
	fn, ok := call.Func.(*script.Name)
	return ok && Directives[fn.ID]
}

// stripRuntimeImport removes the display vocabulary and load_source from
// imports of the runtime module, dropping statements left empty.
func stripRuntimeImport(stmts []script.Stmt, module string) []script.Stmt {
	var out []script.Stmt
	for _, s := range stmts {
		imp, ok := s.(*script.ImportFrom)
		if !ok || imp.Module != module || imp.Level != 0 {
			out = append(out, s)
			continue
		}
		var keep []*script.Alias
		for _, a := range imp.Names {
			if a.Name != nil && !a.As && runtimeName(a.Path) {
				continue
			}
			keep = append(keep, a)
		}
		if len(keep) > 0 {
			imp.Names = keep
			out = append(out, imp)
		}
	}
	return out
}

// convertLoads rewrites `x = load_source("ID", ...)` to `x = param["ID"]`
// and drops a `param = {...}` dict built from load_source calls.
func convertLoads(stmts []script.Stmt, param string, ids []string) ([]script.Stmt, []string) {
	var out []script.Stmt
	for _, s := range stmts {
		a, ok := s.(*script.Assign)
		if !ok || len(a.Targets) != 1 {
			out = append(out, s)
			continue
		}
		if n, ok := a.Targets[0].(*script.Name); ok && n.ID == param {
			if dictIDs, ok := loadDict(a.Value); ok {
				for _, id := range dictIDs {
					if !slices.Contains(ids, id) {
						ids = append(ids, id)
					}
				}
				continue
			}
		}
		if id, ok := loadID(a.Value); ok {
			a.Value = &script.Subscript{X: script.NewName(param), Index: script.NewStr(id)}
			if !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
		out = append(out, s)
	}
	return out, ids
}

// loadID matches load_source("ID"[, keywords]).
func loadID(e script.Expr) (string, bool) {
	call, ok := e.(*script.Call)
	if !ok || script.CalleeName(call) != FuncLoadSource || len(call.Args) == 0 {
		return "", false
	}
	first := call.Args[0]
	if first.Keyword != "" || first.Star != 0 {
		return "", false
	}
	for _, a := range call.Args[1:] {
		if a.Keyword == "" {
			return "", false
		}
	}
	return script.StringValue(first.Value)
}

func loadDict(e script.Expr) ([]string, bool) {
	d, ok := e.(*script.Dict)
	if !ok {
		return nil, false
	}
	var ids []string
	for i, k := range d.Keys {
		key, ok := script.StringValue(k)
		if !ok {
			return nil, false
		}
		id, ok := loadID(d.Values[i])
		if !ok || id != key {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

func isMarker(s script.Stmt, marker string) bool {
	es, ok := s.(*script.ExprStmt)
	if !ok {
		return false
	}
	call, ok := es.X.(*script.Call)
	return ok && script.CalleeName(call) == marker
}

func markerLine(stmts []script.Stmt, marker string) int {
	line := 0
	script.InspectAll(stmts, func(n script.Node) bool {
		if c, ok := n.(*script.Call); ok && line == 0 && script.CalleeName(c) == marker {
			line = c.Position().Line
		}
		return line == 0
	})
	return line
}

func hasMarker(stmts []script.Stmt, marker string) bool {
	return slices.ContainsFunc(stmts, func(s script.Stmt) bool { return isMarker(s, marker) })
}

func dropComments(stmts []script.Stmt) []script.Stmt {
	var out []script.Stmt
	for _, s := range stmts {
		if _, ok := s.(*script.Comment); !ok {
			out = append(out, s)
		}
	}
	return out
}

func singleAssign(stmts []script.Stmt) (*script.Assign, bool) {
	if len(stmts) != 1 {
		return nil, false
	}
	a, ok := stmts[0].(*script.Assign)
	if !ok || len(a.Targets) != 1 {
		return nil, false
	}
	_, ok = a.Targets[0].(*script.Name)
	return a, ok
}

func importFrom(module string, names ...string) *script.ImportFrom {
	imp := &script.ImportFrom{Module: module}
	for _, n := range names {
		imp.Names = append(imp.Names, &script.Alias{Path: n, Name: script.NewName(n)})
	}
	return imp
}

// mainBlock builds the development entry point:
//
//	if __name__ == "__main__":
//	    from migrator_studio import load_source
//
//	    sources = {"ID": load_source("ID")}
//	    result = transform(sources)
//	    print(f"Total rows: {len(result)}")
func mainBlock(ids []string, opts Options) script.Stmt {
	dict := &script.Dict{}
	for _, id := range ids {
		dict.Keys = append(dict.Keys, script.NewStr(id))
		dict.Values = append(dict.Values, script.NewCall(script.NewName(FuncLoadSource), script.NewStr(id)))
	}
	sources := script.NewAssign(script.NewName(opts.Param), dict)
	sources.Blank = true
	result := script.NewAssign(script.NewName("result"), script.NewCall(script.NewName(opts.Entry), script.NewName(opts.Param)))
	report := script.NewExprStmt(script.NewCall(script.NewName("print"), &script.FString{Parts: []*script.FStringPart{
		{Lit: "Total rows: "},
		{Expr: script.NewCall(script.NewName("len"), script.NewName("result"))},
	}}))
	return &script.If{
		Cond: &script.Compare{
			X:           script.NewName("__name__"),
			Ops:         []string{"=="},
			Comparators: []script.Expr{script.NewStr("__main__")},
		},
		Body: []script.Stmt{importFrom(opts.LoaderModule, FuncLoadSource), sources, result, report},
	}
}
