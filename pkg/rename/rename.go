// Package rename rewrites the regions of a parsed transformer so that every
// binding has exactly one producing region.
//
// The renamer makes one forward pass over the imports, helpers, setup and
// steps, keeping a table from each original name to the binding currently
// holding its value. The first region to bind a name keeps it; every later
// rebinding mints a fresh name_N never spelled anywhere in the module.
// Rewriting is structural: only the identifier nodes the analyzer recorded
// are touched, so string literals, attribute names and keyword argument
// names keep their spelling.
//
// Functions and lambdas defined inside the entry function read their free
// names when called. A region that defines such a closure before rebinding
// a name it reads carries the old value into the fresh binding, so the
// closure observes the rebinding. A closure cannot follow a rebinding made
// by a later region; that case is a structure error.
package rename

import (
	"fmt"
	"io"
	"maps"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stepbook/pkg/analysis"
	"github.com/matzehuels/stepbook/pkg/errors"
	"github.com/matzehuels/stepbook/pkg/script"
	"github.com/matzehuels/stepbook/pkg/transformer"
)

// DefaultResult is the binding the final expression is assigned to.
const DefaultResult = "result"

// Kind classifies a region.
type Kind string

const (
	KindImports Kind = "imports"
	KindHelpers Kind = "helpers"
	KindSetup   Kind = "setup"
	KindStep    Kind = "step"
)

// Options configures renaming.
type Options struct {
	// KnownOps is passed to the analyzer.
	KnownOps map[string]bool
	Logger   *log.Logger
}

// Region is one renamed chunk of the program.
type Region struct {
	Kind Kind
	Step *transformer.Step // nil unless Kind is KindStep
	Body []script.Stmt

	// Reads are the names the region takes from its environment after
	// renaming, builtins excluded.
	Reads  []string
	Writes []string
	Opaque []string

	// Primary is the last name bound in source order, empty when the region
	// binds nothing.
	Primary string

	// Renamed maps original names rebound by this region to their fresh
	// bindings.
	Renamed map[string]string
}

// Program is a transformer with single-producer bindings.
type Program struct {
	Info    *transformer.Info
	Imports *Region
	Helpers *Region // nil when the script has no helpers
	Setup   *Region
	Steps   []*Region

	Final      script.Expr
	FinalReads []string
	// Result is the name the final expression is bound to.
	Result string

	// Bindings maps every original name to its last binding.
	Bindings map[string]string
}

// Regions returns the regions in order, skipping an absent helpers region.
func (p *Program) Regions() []*Region {
	out := []*Region{p.Imports}
	if p.Helpers != nil {
		out = append(out, p.Helpers)
	}
	out = append(out, p.Setup)
	return append(out, p.Steps...)
}

type renamer struct {
	opts    analysis.Options
	log     *log.Logger
	table   map[string]string
	used    map[string]bool
	counter map[string]int
	// captured holds the names read by closures of earlier setup and step
	// regions, with the reading site.
	captured map[string]*script.Name
}

// Apply renames info into a Program. info is not modified.
func Apply(info *transformer.Info, opts Options) (*Program, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	r := &renamer{
		opts:     analysis.Options{KnownOps: opts.KnownOps},
		log:      logger,
		table:    map[string]string{},
		used:     usedIdentifiers(info),
		counter:  map[string]int{},
		captured: map[string]*script.Name{},
	}

	prog := &Program{Info: info}
	var err error
	if prog.Imports, err = r.region(KindImports, nil, info.Imports); err != nil {
		return nil, err
	}
	if len(info.Helpers) > 0 {
		if prog.Helpers, err = r.region(KindHelpers, nil, info.Helpers); err != nil {
			return nil, err
		}
	}
	if prog.Setup, err = r.region(KindSetup, nil, info.Setup); err != nil {
		return nil, err
	}
	for _, st := range info.Steps {
		reg, err := r.region(KindStep, st, st.Body)
		if err != nil {
			var e *errors.Error
			if errors.As(err, &e) && e.Line == 0 {
				e.AtLine(st.Lines.Start)
			}
			return nil, err
		}
		prog.Steps = append(prog.Steps, reg)
	}

	prog.Final = script.CloneExpr(info.Final)
	fu := analysis.Analyze([]script.Stmt{script.NewExprStmt(prog.Final)}, r.opts)
	for name, sites := range fu.Sites {
		if cur, ok := r.table[name]; ok {
			for _, n := range sites {
				n.ID = cur
			}
		}
	}
	prog.FinalReads = externalReads(fu.Reads, r.table)
	prog.Result = r.mint(DefaultResult, true)
	prog.Bindings = r.table

	r.log.Debug("renamed program", "steps", len(prog.Steps), "bindings", len(r.table))
	return prog, nil
}

// usedIdentifiers collects every identifier spelled in the module, the
// entry parameter included.
func usedIdentifiers(info *transformer.Info) map[string]bool {
	var body []script.Stmt
	if info.Module != nil {
		body = info.Module.Body
	}
	used := script.Identifiers(body)
	if info.Param != "" {
		used[info.Param] = true
	}
	return used
}

// mint returns a fresh name derived from base. When keep is set and base is
// unused, base itself is returned.
func (r *renamer) mint(base string, keep bool) string {
	if keep && !r.used[base] {
		r.used[base] = true
		return base
	}
	for {
		r.counter[base]++
		name := fmt.Sprintf("%s_%d", base, r.counter[base])
		if !r.used[name] {
			r.used[name] = true
			return name
		}
	}
}

func (r *renamer) region(kind Kind, st *transformer.Step, stmts []script.Stmt) (*Region, error) {
	body := script.Clone(stmts)
	u := analysis.Analyze(body, r.opts)
	reg := &Region{Kind: kind, Step: st, Renamed: map[string]string{}}

	// old bindings of names this region rebinds, for the consistency check
	prior := map[string]string{}
	carried := analysis.Set{}
	var prologue []script.Stmt

	for _, name := range u.Writes.Sorted() {
		stores := u.BindingSites(name)
		if len(stores) == 0 {
			return nil, errors.New(errors.ErrCodeInternal, "no binding recorded for %q", name).WithName(name)
		}
		old, rebinding := r.table[name]
		if !rebinding {
			continue
		}
		if site, ok := r.captured[name]; ok {
			return nil, errors.New(errors.ErrCodeStructure,
				"%q is rebound after a function defined on line %d reads it; pass it as an argument", name, site.Line).
				AtLine(stores[0].Line).WithName(name)
		}
		fresh := r.mint(name, false)
		prior[name] = old
		reg.Renamed[name] = fresh

		k, definite := u.Definite[name]
		if definite {
			for _, n := range u.Sites[name] {
				// closures defined up to the rebinding must see the new value
				if u.StmtOf[n] < k && u.Stores[n] || u.StmtOf[n] <= k && u.Deferred[n] {
					definite = false
					break
				}
			}
		}
		for _, n := range u.Sites[name] {
			switch idx := u.StmtOf[n]; {
			case !definite:
				n.ID = fresh
			case idx < k, idx == k && !u.Stores[n]:
				n.ID = old
			default:
				n.ID = fresh
			}
		}
		rewriteGlobals(body, name, old, fresh, k, definite)
		if !definite {
			carried.Add(old)
			prologue = append(prologue, script.NewAssign(script.NewName(fresh), script.NewName(old)))
		}
	}

	for name, sites := range u.Sites {
		if _, rebound := reg.Renamed[name]; rebound {
			continue
		}
		cur, ok := r.table[name]
		if !ok || cur == name {
			continue
		}
		for _, n := range sites {
			n.ID = cur
		}
	}
	if err := fixAliases(body); err != nil {
		return nil, err
	}
	reg.Body = append(prologue, body...)

	after := analysis.Analyze(reg.Body, r.opts)
	if err := r.check(u, after, reg, prior, carried); err != nil {
		return nil, err
	}

	for _, name := range u.Writes.Sorted() {
		if fresh, ok := reg.Renamed[name]; ok {
			r.table[name] = fresh
		} else {
			r.table[name] = name
		}
	}
	if kind == KindSetup || kind == KindStep {
		for name, site := range u.DeferredReads() {
			if _, ok := r.captured[name]; !ok {
				r.captured[name] = site
			}
		}
	}
	reg.Writes = after.Writes.Sorted()
	reg.Reads = externalReads(after.Reads, nil)
	reg.Opaque = after.Opaque
	reg.Primary = primary(reg.Body, after)
	return reg, nil
}

// check verifies that the renamed region binds exactly the expected names
// and reads exactly the renamed forms of its original reads.
func (r *renamer) check(before, after *analysis.Usage, reg *Region, prior map[string]string, carried analysis.Set) error {
	wantWrites := analysis.Set{}
	for name := range before.Writes {
		if fresh, ok := reg.Renamed[name]; ok {
			wantWrites.Add(fresh)
		} else {
			wantWrites.Add(name)
		}
	}
	wantReads := maps.Clone(carried)
	for name := range before.Reads {
		switch {
		case prior[name] != "":
			wantReads.Add(prior[name])
		case r.table[name] != "":
			wantReads.Add(r.table[name])
		default:
			wantReads.Add(name)
		}
	}
	if !maps.Equal(wantWrites, after.Writes) {
		return errors.New(errors.ErrCodeInternal, "renamed %s binds %s, want %s",
			reg.Kind, strings.Join(after.Writes.Sorted(), ", "), strings.Join(wantWrites.Sorted(), ", "))
	}
	if !maps.Equal(wantReads, after.Reads) {
		return errors.New(errors.ErrCodeInternal, "renamed %s reads %s, want %s",
			reg.Kind, strings.Join(after.Reads.Sorted(), ", "), strings.Join(wantReads.Sorted(), ", "))
	}
	return nil
}

// rewriteGlobals renames name in global declarations, following the same
// boundary as the identifier sites of the enclosing top-level statement.
func rewriteGlobals(body []script.Stmt, name, old, fresh string, k int, definite bool) {
	for i, s := range body {
		replacement := fresh
		if definite && i < k {
			replacement = old
		}
		script.Inspect(s, func(n script.Node) bool {
			if g, ok := n.(*script.Global); ok && !g.Nonlocal {
				for j, id := range g.Names {
					if id == name {
						g.Names[j] = replacement
					}
				}
			}
			return true
		})
	}
}

// fixAliases marks renamed imports with an explicit alias. A plain dotted
// import binds its first segment and cannot be renamed.
func fixAliases(body []script.Stmt) error {
	var err error
	script.InspectAll(body, func(n script.Node) bool {
		switch s := n.(type) {
		case *script.Import:
			for _, a := range s.Names {
				first, _, dotted := strings.Cut(a.Path, ".")
				if a.As || a.Name.ID == first {
					continue
				}
				if dotted && err == nil {
					err = errors.New(errors.ErrCodeStructure, "cannot rebind %q imported by `import %s`; add an alias", first, a.Path).
						AtLine(s.Position().Line).WithName(first)
				}
				a.As = true
			}
		case *script.ImportFrom:
			for _, a := range s.Names {
				if a.Name != nil && a.Name.ID != a.Path {
					a.As = true
				}
			}
		}
		return err == nil
	})
	return err
}

// externalReads drops builtins and, when table is set, maps names to their
// current bindings.
func externalReads(reads analysis.Set, table map[string]string) []string {
	out := analysis.Set{}
	for name := range reads {
		if analysis.IsBuiltin(name) {
			continue
		}
		if table != nil {
			if cur, ok := table[name]; ok {
				name = cur
			}
		}
		out.Add(name)
	}
	return out.Sorted()
}

func primary(body []script.Stmt, u *analysis.Usage) string {
	last := ""
	for _, n := range script.Names(body) {
		if u.Stores[n] {
			last = n.ID
		}
	}
	return last
}
