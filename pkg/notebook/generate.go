package notebook

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/matzehuels/stepbook/pkg/analysis"
	"github.com/matzehuels/stepbook/pkg/errors"
	"github.com/matzehuels/stepbook/pkg/rename"
	"github.com/matzehuels/stepbook/pkg/script"
	"github.com/matzehuels/stepbook/pkg/transformer"
)

type generator struct {
	opts     Options
	aopts    analysis.Options
	prog     *rename.Program
	doc      *Document
	produced map[string]int
	reads    [][]string
}

// Generate builds the notebook for a renamed program. It is deterministic
// and does not modify prog.
func Generate(prog *rename.Program, opts Options) (*Document, error) {
	opts = opts.WithDefaults()
	g := &generator{
		opts:     opts,
		aopts:    analysis.Options{KnownOps: opts.KnownOps},
		prog:     prog,
		doc:      &Document{Format: FormatVersion, Source: opts.Source, Docstring: prog.Info.Docstring},
		produced: map[string]int{},
	}

	// the script's own imports follow the runtime import without a gap
	scriptImports := script.Clone(prog.Imports.Body)
	if len(scriptImports) > 0 {
		script.SetBlank(scriptImports[0], false)
	}
	imports := append([]script.Stmt{g.runtimeImport()}, scriptImports...)
	if _, err := g.add(&Cell{Kind: KindImports}, imports); err != nil {
		return nil, err
	}
	if prog.Helpers != nil {
		if _, err := g.add(&Cell{Kind: KindHelpers}, prog.Helpers.Body); err != nil {
			return nil, err
		}
	}
	if _, err := g.add(&Cell{Kind: KindSetup}, g.setup()); err != nil {
		return nil, err
	}
	for i, reg := range prog.Steps {
		st := reg.Step
		heading := fmt.Sprintf("### Step %d: %s", i+1, st.Title)
		if st.Description != "" {
			heading += ": " + st.Description
		}
		stmts := []script.Stmt{directive(FuncDisplayMD, script.NewStr(heading))}
		stmts = append(stmts, reg.Body...)
		if reg.Primary != "" {
			stmts = append(stmts, directive(FuncDisplayTable, script.NewName(reg.Primary)))
		}
		cell := &Cell{
			Kind:        KindStep,
			Title:       st.Title,
			Description: st.Description,
			Display:     reg.Primary,
			Implicit:    st.Implicit,
		}
		if _, err := g.add(cell, stmts); err != nil {
			return nil, err
		}
	}
	final := []script.Stmt{
		script.NewAssign(script.NewName(prog.Result), prog.Final),
		directive(FuncDisplay, script.NewName(prog.Result)),
	}
	if _, err := g.add(&Cell{Kind: KindFinal, Display: prog.Result}, final); err != nil {
		return nil, err
	}

	if err := g.checkForwardReads(); err != nil {
		return nil, err
	}
	opts.Logger.Debug("generated notebook", "cells", len(g.doc.Cells), "steps", len(prog.Steps))
	return g.doc, nil
}

func (g *generator) runtimeImport() script.Stmt {
	names := []string{FuncDisplay, FuncDisplayMD, FuncDisplayTable, FuncLoadSource}
	imp := &script.ImportFrom{Module: g.opts.RuntimeModule}
	for _, n := range names {
		imp.Names = append(imp.Names, &script.Alias{Path: n, Name: script.NewName(n)})
	}
	return imp
}

func directive(fn string, arg script.Expr) script.Stmt {
	return script.NewExprStmt(script.NewCall(script.NewName(fn), arg))
}

// loadCall returns load_source("ID"[, sample=N]).
func (g *generator) loadCall(id string) *script.Call {
	call := script.NewCall(script.NewName(FuncLoadSource), script.NewStr(id))
	if g.opts.Sample > 0 {
		call.Args = append(call.Args, &script.Arg{Keyword: "sample", Value: &script.Num{Raw: strconv.Itoa(g.opts.Sample)}})
	}
	return call
}

// setup converts source loads into load_source calls. When the entry
// parameter is still read afterwards, the cell also defines it as a dict
// of loads over the declared sources.
func (g *generator) setup() []script.Stmt {
	info := g.prog.Info
	var stmts []script.Stmt
	var loaded []string
	for _, s := range g.prog.Setup.Body {
		name, id, ok := transformer.SourceLoad(s, info.Param)
		if !ok {
			stmts = append(stmts, s)
			continue
		}
		a := s.(*script.Assign)
		stmts = append(stmts, &script.Assign{
			StmtPos: a.StmtPos,
			Targets: []script.Expr{script.NewName(name.ID)},
			Value:   g.loadCall(id),
		})
		if !slices.Contains(loaded, id) {
			loaded = append(loaded, id)
		}
	}
	if info.Param == "" || !g.paramRead(stmts) {
		return stmts
	}
	ids := info.SourceIDs
	if len(ids) == 0 {
		ids = loaded
	}
	dict := &script.Dict{}
	for _, id := range ids {
		dict.Keys = append(dict.Keys, script.NewStr(id))
		dict.Values = append(dict.Values, g.loadCall(id))
	}
	return append([]script.Stmt{script.NewAssign(script.NewName(info.Param), dict)}, stmts...)
}

func (g *generator) paramRead(setup []script.Stmt) bool {
	param := g.prog.Info.Param
	if analysis.Analyze(setup, g.aopts).Reads.Has(param) {
		return true
	}
	for _, reg := range g.prog.Steps {
		if slices.Contains(reg.Reads, param) {
			return true
		}
	}
	if g.prog.Helpers != nil && slices.Contains(g.prog.Helpers.Reads, param) {
		return true
	}
	return slices.Contains(g.prog.FinalReads, param)
}

// add analyzes stmts, fills in the cell's code, outputs and inputs and
// appends it to the document.
func (g *generator) add(c *Cell, stmts []script.Stmt) (*Cell, error) {
	c.Index = len(g.doc.Cells)
	u := analysis.Analyze(stmts, g.aopts)
	c.Code = strings.TrimSuffix(script.Format(stmts), "\n")
	c.Outputs = u.Writes.Sorted()

	var reads []string
	inputs := analysis.Set{}
	for _, name := range u.Reads.Sorted() {
		if analysis.IsBuiltin(name) {
			continue
		}
		reads = append(reads, name)
		if _, ok := g.produced[name]; ok {
			inputs.Add(name)
		}
	}
	c.Inputs = inputs.Sorted()

	for _, name := range c.Outputs {
		if prev, ok := g.produced[name]; ok {
			return nil, errors.New(errors.ErrCodeInternal, "binding %q produced by cells %d and %d", name, prev, c.Index).
				InCell(c.Index).WithName(name)
		}
		g.produced[name] = c.Index
	}
	g.doc.Cells = append(g.doc.Cells, c)
	g.reads = append(g.reads, reads)
	return c, nil
}

// checkForwardReads rejects cells reading a binding first produced by a
// later cell.
func (g *generator) checkForwardReads() error {
	for i, reads := range g.reads {
		for _, name := range reads {
			if p, ok := g.produced[name]; ok && p > i {
				c := g.doc.Cells[i]
				err := errors.New(errors.ErrCodeStructure, "%q is read before it is assigned", name).InCell(i).WithName(name)
				if c.Kind == KindStep {
					if reg := g.stepRegion(i); reg != nil {
						err = err.AtLine(reg.Step.Lines.Start)
					}
				}
				return err
			}
		}
	}
	return nil
}

func (g *generator) stepRegion(cell int) *rename.Region {
	n := 0
	for _, c := range g.doc.Cells[:cell] {
		if c.Kind == KindStep {
			n++
		}
	}
	if n < len(g.prog.Steps) {
		return g.prog.Steps[n]
	}
	return nil
}
