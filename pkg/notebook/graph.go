package notebook

import (
	"fmt"

	"github.com/matzehuels/stepbook/pkg/dag"
	"github.com/matzehuels/stepbook/pkg/dag/transform"
)

// GraphOptions configures [Graph].
type GraphOptions struct {
	// Reduce removes edges implied by longer paths.
	Reduce bool
	// SkipImports leaves the imports cell out of the graph.
	SkipImports bool
}

// NodeID returns the graph node ID of the cell at index.
func NodeID(index int) string { return fmt.Sprintf("cell-%d", index) }

// Label is the human-readable name of a cell.
func (c *Cell) Label() string {
	switch {
	case c.Kind == KindStep && c.Title != "":
		return c.Title
	case c.Kind == KindStep:
		return fmt.Sprintf("step %d", c.Index)
	}
	return string(c.Kind)
}

// Graph derives the dependency graph of a document: one node per cell and
// an edge producer → consumer for every declared input, labeled with the
// names it carries. Nodes get rows by longest path.
func Graph(doc *Document, opts GraphOptions) (*dag.DAG, error) {
	g := dag.New(dag.Metadata{"source": doc.Source})
	included := map[int]bool{}
	for _, c := range doc.Cells {
		if opts.SkipImports && c.Kind == KindImports {
			continue
		}
		included[c.Index] = true
		err := g.AddNode(dag.Node{
			ID:    NodeID(c.Index),
			Label: c.Label(),
			Meta: dag.Metadata{
				"kind":     string(c.Kind),
				"index":    c.Index,
				"outputs":  c.Outputs,
				"display":  c.Display,
				"implicit": c.Implicit,
			},
		})
		if err != nil {
			return nil, err
		}
	}

	type link struct{ from, to int }
	var order []link
	names := map[link][]string{}
	for _, c := range doc.Cells {
		if !included[c.Index] {
			continue
		}
		for _, in := range c.Inputs {
			p := doc.Producer(in)
			if p < 0 || !included[p] || p == c.Index {
				continue
			}
			l := link{p, c.Index}
			if _, seen := names[l]; !seen {
				order = append(order, l)
			}
			names[l] = append(names[l], in)
		}
	}
	for _, l := range order {
		e := dag.Edge{From: NodeID(l.from), To: NodeID(l.to), Meta: dag.Metadata{"names": names[l]}}
		if err := g.AddEdge(e); err != nil {
			return nil, err
		}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if opts.Reduce {
		transform.TransitiveReduction(g)
	}
	transform.AssignLayers(g)
	return g, nil
}
