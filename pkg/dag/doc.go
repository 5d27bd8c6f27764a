// Package dag provides a small directed acyclic graph used to model the
// dependencies between notebook cells.
//
// Nodes are cells, and an edge producer → consumer exists for every binding
// the consumer reads from the producer. The graph remembers insertion
// order, so [DAG.Nodes], [DAG.Edges] and [DAG.TopologicalOrder] are
// deterministic:
//
//	g := dag.New(nil)
//	g.AddNode(dag.Node{ID: "cell-1", Label: "setup"})
//	g.AddNode(dag.Node{ID: "cell-2", Label: "Step 1: Filter"})
//	g.AddEdge(dag.Edge{From: "cell-1", To: "cell-2"})
//
// The [transform] subpackage provides transitive reduction and layer
// assignment for drawing.
//
// DAG instances are not safe for concurrent use.
//
// [transform]: github.com/matzehuels/stepbook/pkg/dag/transform
package dag
