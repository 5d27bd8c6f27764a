package transform

import (
	"testing"

	"github.com/matzehuels/stepbook/pkg/dag"
)

func build(t *testing.T, nodes []string, edges [][2]string) *dag.DAG {
	t.Helper()
	g := dag.New(nil)
	for _, id := range nodes {
		if err := g.AddNode(dag.Node{ID: id}); err != nil {
			t.Fatal(err)
		}
	}
	for _, e := range edges {
		if err := g.AddEdge(dag.Edge{From: e[0], To: e[1], Meta: dag.Metadata{"names": e[0] + e[1]}}); err != nil {
			t.Fatal(err)
		}
	}
	return g
}

func TestTransitiveReduction(t *testing.T) {
	tests := []struct {
		name  string
		nodes []string
		edges [][2]string
		want  int
	}{
		{"empty", nil, nil, 0},
		{"chain", []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}}, 2},
		{"shortcut", []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}, {"a", "c"}}, 2},
		{"diamond with shortcut", []string{"a", "b", "c", "d"},
			[][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}, {"a", "d"}}, 4},
		{"long shortcut", []string{"a", "b", "c", "d"},
			[][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}, {"a", "d"}, {"b", "d"}}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := build(t, tt.nodes, tt.edges)
			TransitiveReduction(g)
			if got := g.EdgeCount(); got != tt.want {
				t.Errorf("EdgeCount() = %d, want %d", got, tt.want)
			}
			for _, e := range g.Edges() {
				if e.Meta["names"] != e.From+e.To {
					t.Errorf("edge %s->%s lost its metadata", e.From, e.To)
				}
			}
		})
	}
}

func TestAssignLayers(t *testing.T) {
	g := build(t, []string{"a", "b", "c", "d"}, [][2]string{{"a", "b"}, {"b", "c"}, {"a", "c"}, {"a", "d"}})
	AssignLayers(g)
	want := map[string]int{"a": 0, "b": 1, "c": 2, "d": 1}
	for id, row := range want {
		n, _ := g.Node(id)
		if n.Row != row {
			t.Errorf("row(%s) = %d, want %d", id, n.Row, row)
		}
	}
	if g.MaxRow() != 2 {
		t.Errorf("MaxRow() = %d, want 2", g.MaxRow())
	}
}
