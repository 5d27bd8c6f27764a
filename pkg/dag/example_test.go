package dag_test

import (
	"fmt"

	"github.com/matzehuels/stepbook/pkg/dag"
)

func ExampleDAG_basic() {
	g := dag.New(nil)
	_ = g.AddNode(dag.Node{ID: "setup"})
	_ = g.AddNode(dag.Node{ID: "step1"})
	_ = g.AddNode(dag.Node{ID: "final"})
	_ = g.AddEdge(dag.Edge{From: "setup", To: "step1"})
	_ = g.AddEdge(dag.Edge{From: "step1", To: "final"})

	fmt.Println("Nodes:", g.NodeCount())
	fmt.Println("Edges:", g.EdgeCount())
	// Output:
	// Nodes: 3
	// Edges: 2
}

func ExampleDAG_TopologicalOrder() {
	g := dag.New(nil)
	for _, id := range []string{"final", "imports", "setup"} {
		_ = g.AddNode(dag.Node{ID: id})
	}
	_ = g.AddEdge(dag.Edge{From: "imports", To: "final"})
	_ = g.AddEdge(dag.Edge{From: "setup", To: "final"})

	order, _ := g.TopologicalOrder()
	fmt.Println(order)
	// Output:
	// [imports setup final]
}

func ExampleDAG_Sources() {
	g := dag.New(nil)
	_ = g.AddNode(dag.Node{ID: "imports"})
	_ = g.AddNode(dag.Node{ID: "setup"})
	_ = g.AddNode(dag.Node{ID: "step1"})
	_ = g.AddEdge(dag.Edge{From: "imports", To: "step1"})
	_ = g.AddEdge(dag.Edge{From: "setup", To: "step1"})

	fmt.Println(dag.NodeIDs(g.Sources()))
	fmt.Println(dag.NodeIDs(g.Sinks()))
	// Output:
	// [imports setup]
	// [step1]
}
