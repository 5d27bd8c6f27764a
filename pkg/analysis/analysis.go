// Package analysis computes read and write sets of script regions.
//
// [Analyze] walks a chunk of statements (the body of a step, the setup
// region, a notebook cell) and reports which chunk-level names the chunk
// reads from its environment, which names it binds, and every identifier
// node that refers to a chunk-level name. Renaming relies on these nodes
// to rewrite bindings structurally.
//
// # Rules
//
// A load is a read unless an earlier top-level statement of the chunk
// definitely bound the name. Bindings nested in compound statements (if,
// for, while, with, try) are conditional: they are writes, but later loads
// still read. Augmented assignment both reads and writes its target.
// Attribute and subscript targets (obj.attr = v, d[k] = v) read the object
// and never write it. Function parameters, lambda parameters and
// comprehension targets are local and never reported. Loads inside function
// and lambda bodies happen when the function is called; they are marked in
// [Usage.Deferred].
//
// A call to a plain name outside the known operations and the builtins is
// opaque. Its callee is listed in [Usage.Opaque]; its arguments are never
// considered written.
package analysis

import (
	"sort"

	"github.com/matzehuels/stepbook/pkg/script"
)

// Set is a set of identifiers.
type Set map[string]bool

// Add inserts name.
func (s Set) Add(name string) { s[name] = true }

// Has reports whether name is in the set.
func (s Set) Has(name string) bool { return s[name] }

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Options configures the analyzer.
type Options struct {
	// KnownOps is the recognized operation vocabulary. Calls to any other
	// non-builtin name are opaque.
	KnownOps map[string]bool
}

// Usage is the result of analyzing a chunk.
type Usage struct {
	Reads  Set
	Writes Set

	// Sites holds every chunk-level occurrence of each name, reads and
	// bindings alike, in evaluation order.
	Sites map[string][]*script.Name

	// Opaque lists the callees of opaque calls, sorted and deduplicated.
	Opaque []string

	// Stores marks the binding occurrences among Sites.
	Stores map[*script.Name]bool

	// StmtOf maps each site to the index of its enclosing top-level
	// statement in the analyzed chunk.
	StmtOf map[*script.Name]int

	// Definite maps a name to the index of the first top-level statement
	// that binds it unconditionally.
	Definite map[string]int

	// Deferred marks the load sites inside function and lambda bodies.
	Deferred map[*script.Name]bool
}

// DeferredReads returns the names loaded by deferred sites, with the first
// such site of each.
func (u *Usage) DeferredReads() map[string]*script.Name {
	out := map[string]*script.Name{}
	for name, sites := range u.Sites {
		for _, n := range sites {
			if u.Deferred[n] {
				out[name] = n
				break
			}
		}
	}
	return out
}

// MaybeWritten reports whether name is written only conditionally or by
// augmented assignment.
func (u *Usage) MaybeWritten(name string) bool {
	_, definite := u.Definite[name]
	return u.Writes[name] && !definite
}

// BindingSites returns the binding occurrences of name.
func (u *Usage) BindingSites(name string) []*script.Name {
	var out []*script.Name
	for _, n := range u.Sites[name] {
		if u.Stores[n] {
			out = append(out, n)
		}
	}
	return out
}

type scope struct {
	parent *scope
	locals Set
	// globals are declared `global` and resolve at chunk level.
	globals Set
	// outer are declared `nonlocal` and resolve in the parent scope.
	outer Set
	// fn is set for function and lambda scopes.
	fn bool
}

// deferred reports whether code in sc runs only when a function is called.
func deferred(sc *scope) bool {
	for s := sc; s != nil; s = s.parent {
		if s.fn {
			return true
		}
	}
	return false
}

// chunkLevel reports whether name, seen in sc, refers to a chunk-level
// binding. A nil scope is the chunk itself.
func chunkLevel(sc *scope, name string) bool {
	for s := sc; s != nil; s = s.parent {
		switch {
		case s.globals.Has(name):
			return true
		case s.outer.Has(name):
			continue
		case s.locals.Has(name):
			return false
		}
	}
	return true
}

type analyzer struct {
	opts    Options
	u       *Usage
	defined Set
	pending []string
	stmt    int
	opaque  Set
}

// Analyze computes the usage of a chunk of statements. It is pure and
// deterministic; the statements are not modified.
func Analyze(stmts []script.Stmt, opts Options) *Usage {
	a := &analyzer{
		opts: opts,
		u: &Usage{
			Reads:    Set{},
			Writes:   Set{},
			Sites:    map[string][]*script.Name{},
			Stores:   map[*script.Name]bool{},
			StmtOf:   map[*script.Name]int{},
			Definite: map[string]int{},
			Deferred: map[*script.Name]bool{},
		},
		defined: Set{},
		opaque:  Set{},
	}
	for i, s := range stmts {
		a.stmt = i
		a.pending = a.pending[:0]
		a.statement(s, nil, true)
		for _, name := range a.pending {
			a.defined.Add(name)
			if _, ok := a.u.Definite[name]; !ok {
				a.u.Definite[name] = i
			}
		}
	}
	a.u.Opaque = a.opaque.Sorted()
	return a.u
}

func (a *analyzer) site(n *script.Name, store bool) {
	a.u.Sites[n.ID] = append(a.u.Sites[n.ID], n)
	a.u.StmtOf[n] = a.stmt
	if store {
		a.u.Stores[n] = true
	}
}

func (a *analyzer) load(n *script.Name, sc *scope) {
	if !chunkLevel(sc, n.ID) {
		return
	}
	a.site(n, false)
	if deferred(sc) {
		a.u.Deferred[n] = true
	}
	if !a.defined.Has(n.ID) {
		a.u.Reads.Add(n.ID)
	}
}

// bind records a binding of n. definite is only honoured for top-level
// statements of the chunk.
func (a *analyzer) bind(n *script.Name, sc *scope, definite bool) {
	if sc != nil && !sc.globals.Has(n.ID) {
		if chunkLevel(sc, n.ID) {
			// nonlocal chains ending at the chunk
			a.site(n, true)
			a.u.Writes.Add(n.ID)
		}
		return
	}
	a.site(n, true)
	a.u.Writes.Add(n.ID)
	if definite && sc == nil {
		a.pending = append(a.pending, n.ID)
	}
}

func (a *analyzer) block(stmts []script.Stmt, sc *scope) {
	for _, s := range stmts {
		a.statement(s, sc, false)
	}
}

func (a *analyzer) statement(s script.Stmt, sc *scope, top bool) {
	switch s := s.(type) {
	case *script.Assign:
		a.expr(s.Value, sc)
		for _, t := range s.Targets {
			a.target(t, sc, top)
		}
	case *script.AnnAssign:
		a.expr(s.Annotation, sc)
		if s.Value == nil {
			if _, ok := s.Target.(*script.Name); !ok {
				a.target(s.Target, sc, false)
			}
			return
		}
		a.expr(s.Value, sc)
		a.target(s.Target, sc, top)
	case *script.AugAssign:
		a.expr(s.Value, sc)
		if n, ok := s.Target.(*script.Name); ok {
			a.load(n, sc)
			a.bind(n, sc, false)
			return
		}
		a.target(s.Target, sc, false)
	case *script.ExprStmt:
		a.expr(s.X, sc)
	case *script.Return:
		a.expr(s.Value, sc)
	case *script.If:
		a.expr(s.Cond, sc)
		a.block(s.Body, sc)
		a.block(s.Else, sc)
	case *script.For:
		a.expr(s.Iter, sc)
		a.target(s.Target, sc, false)
		a.block(s.Body, sc)
		a.block(s.Else, sc)
	case *script.While:
		a.expr(s.Cond, sc)
		a.block(s.Body, sc)
		a.block(s.Else, sc)
	case *script.With:
		for _, it := range s.Items {
			a.expr(it.Context, sc)
			if it.Target != nil {
				a.target(it.Target, sc, false)
			}
		}
		a.block(s.Body, sc)
	case *script.Try:
		a.block(s.Body, sc)
		for _, h := range s.Handlers {
			a.expr(h.Type, sc)
			if h.Name != nil {
				a.bind(h.Name, sc, false)
			}
			a.block(h.Body, sc)
		}
		a.block(s.Else, sc)
		a.block(s.Finally, sc)
	case *script.Raise:
		a.expr(s.Exc, sc)
		a.expr(s.Cause, sc)
	case *script.Assert:
		a.expr(s.Test, sc)
		a.expr(s.Msg, sc)
	case *script.Del:
		for _, t := range s.Targets {
			a.expr(t, sc)
		}
	case *script.Import:
		for _, al := range s.Names {
			a.bind(al.Name, sc, top)
		}
	case *script.ImportFrom:
		for _, al := range s.Names {
			if al.Name != nil {
				a.bind(al.Name, sc, top)
			}
		}
	case *script.FuncDef:
		a.funcDef(s, sc, top)
	}
}

// target records the bindings of an assignment target.
func (a *analyzer) target(e script.Expr, sc *scope, definite bool) {
	switch t := e.(type) {
	case *script.Name:
		a.bind(t, sc, definite)
	case *script.Tuple:
		for _, x := range t.Elts {
			a.target(x, sc, definite)
		}
	case *script.List:
		for _, x := range t.Elts {
			a.target(x, sc, definite)
		}
	case *script.Starred:
		a.target(t.X, sc, definite)
	case *script.Attribute:
		a.expr(t.X, sc)
	case *script.Subscript:
		a.expr(t.X, sc)
		a.expr(t.Index, sc)
	default:
		a.expr(e, sc)
	}
}

func (a *analyzer) params(params []*script.Param, sc *scope, annotations bool) Set {
	locals := Set{}
	for _, p := range params {
		if annotations {
			a.expr(p.Annotation, sc)
		}
		a.expr(p.Default, sc)
		if p.Name != "" {
			locals.Add(p.Name)
		}
	}
	return locals
}

func (a *analyzer) funcDef(f *script.FuncDef, sc *scope, top bool) {
	for _, d := range f.Decorators {
		a.expr(d, sc)
	}
	locals := a.params(f.Params, sc, true)
	a.expr(f.Returns, sc)
	a.bind(f.Name, sc, top)

	fn := &scope{parent: sc, locals: locals, globals: Set{}, outer: Set{}, fn: true}
	collectBindings(f.Body, fn)
	a.block(f.Body, fn)
}

// collectBindings fills the local, global and nonlocal sets of a function
// scope from its body. Nested function bodies are not entered.
func collectBindings(stmts []script.Stmt, fn *scope) {
	var visit func([]script.Stmt)
	addTarget := func(e script.Expr) {
		for _, n := range targetNames(e) {
			fn.locals.Add(n)
		}
	}
	visit = func(stmts []script.Stmt) {
		for _, s := range stmts {
			switch s := s.(type) {
			case *script.Assign:
				for _, t := range s.Targets {
					addTarget(t)
				}
			case *script.AnnAssign:
				if s.Value != nil {
					addTarget(s.Target)
				}
			case *script.AugAssign:
				addTarget(s.Target)
			case *script.For:
				addTarget(s.Target)
				visit(s.Body)
				visit(s.Else)
			case *script.While:
				visit(s.Body)
				visit(s.Else)
			case *script.If:
				visit(s.Body)
				visit(s.Else)
			case *script.With:
				for _, it := range s.Items {
					if it.Target != nil {
						addTarget(it.Target)
					}
				}
				visit(s.Body)
			case *script.Try:
				visit(s.Body)
				for _, h := range s.Handlers {
					if h.Name != nil {
						fn.locals.Add(h.Name.ID)
					}
					visit(h.Body)
				}
				visit(s.Else)
				visit(s.Finally)
			case *script.Import:
				for _, al := range s.Names {
					fn.locals.Add(al.Name.ID)
				}
			case *script.ImportFrom:
				for _, al := range s.Names {
					if al.Name != nil {
						fn.locals.Add(al.Name.ID)
					}
				}
			case *script.FuncDef:
				fn.locals.Add(s.Name.ID)
			case *script.Global:
				for _, n := range s.Names {
					if s.Nonlocal {
						fn.outer.Add(n)
					} else {
						fn.globals.Add(n)
					}
				}
			}
		}
	}
	visit(stmts)
}

// targetNames returns the plain names bound by an assignment target.
func targetNames(e script.Expr) []string {
	switch t := e.(type) {
	case *script.Name:
		return []string{t.ID}
	case *script.Tuple:
		var out []string
		for _, x := range t.Elts {
			out = append(out, targetNames(x)...)
		}
		return out
	case *script.List:
		var out []string
		for _, x := range t.Elts {
			out = append(out, targetNames(x)...)
		}
		return out
	case *script.Starred:
		return targetNames(t.X)
	}
	return nil
}

func (a *analyzer) expr(e script.Expr, sc *scope) {
	if e == nil {
		return
	}
	script.Inspect(e, func(n script.Node) bool {
		switch n := n.(type) {
		case *script.Name:
			a.load(n, sc)
		case *script.Call:
			if callee, ok := n.Func.(*script.Name); ok && a.isOpaque(callee.ID, sc) {
				a.opaque.Add(callee.ID)
			}
		case *script.Lambda:
			locals := a.params(n.Params, sc, false)
			a.expr(n.Body, &scope{parent: sc, locals: locals, fn: true})
			return false
		case *script.Comprehension:
			a.comprehension(n, sc)
			return false
		}
		return true
	})
}

func (a *analyzer) isOpaque(callee string, sc *scope) bool {
	if !chunkLevel(sc, callee) {
		return false
	}
	return !a.opts.KnownOps[callee] && !IsBuiltin(callee)
}

func (a *analyzer) comprehension(c *script.Comprehension, sc *scope) {
	if len(c.Generators) == 0 {
		return
	}
	a.expr(c.Generators[0].Iter, sc)
	inner := &scope{parent: sc, locals: Set{}}
	for _, g := range c.Generators {
		for _, n := range targetNames(g.Target) {
			inner.locals.Add(n)
		}
	}
	for i, g := range c.Generators {
		if i > 0 {
			a.expr(g.Iter, inner)
		}
		for _, cond := range g.Ifs {
			a.expr(cond, inner)
		}
	}
	a.expr(c.Elt, inner)
	a.expr(c.Value, inner)
}
