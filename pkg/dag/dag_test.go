package dag

import (
	"errors"
	"slices"
	"testing"
)

func TestAddNodeErrors(t *testing.T) {
	g := New(nil)
	if err := g.AddNode(Node{}); !errors.Is(err, ErrInvalidNodeID) {
		t.Errorf("empty ID: err = %v", err)
	}
	if err := g.AddNode(Node{ID: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := g.AddNode(Node{ID: "a"}); !errors.Is(err, ErrDuplicateNodeID) {
		t.Errorf("duplicate: err = %v", err)
	}
	n, _ := g.Node("a")
	if n.Meta == nil {
		t.Error("Meta not initialized")
	}
	if n.DisplayLabel() != "a" {
		t.Errorf("DisplayLabel() = %q", n.DisplayLabel())
	}
}

func TestAddEdge(t *testing.T) {
	g := New(nil)
	_ = g.AddNode(Node{ID: "a"})
	_ = g.AddNode(Node{ID: "b"})

	tests := []struct {
		name string
		edge Edge
		want error
	}{
		{"unknown source", Edge{From: "x", To: "b"}, ErrUnknownSourceNode},
		{"unknown target", Edge{From: "a", To: "x"}, ErrUnknownTargetNode},
		{"ok", Edge{From: "a", To: "b"}, nil},
		{"duplicate is a no-op", Edge{From: "a", To: "b"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := g.AddEdge(tt.edge); !errors.Is(err, tt.want) {
				t.Errorf("AddEdge() = %v, want %v", err, tt.want)
			}
		})
	}
	if g.EdgeCount() != 1 || !g.HasEdge("a", "b") {
		t.Errorf("edges = %v", g.Edges())
	}
	g.RemoveEdge("a", "b")
	if g.EdgeCount() != 0 || g.OutDegree("a") != 0 || g.InDegree("b") != 0 {
		t.Errorf("RemoveEdge left %v", g.Edges())
	}
}

func TestTopologicalOrder(t *testing.T) {
	tests := []struct {
		name    string
		nodes   []string
		edges   [][2]string
		want    []string
		wantErr error
	}{
		{"empty", nil, nil, nil, nil},
		{"insertion order kept", []string{"a", "b", "c"}, nil, []string{"a", "b", "c"}, nil},
		{"edges reorder", []string{"c", "b", "a"}, [][2]string{{"a", "b"}, {"b", "c"}}, []string{"a", "b", "c"}, nil},
		{"ties by insertion", []string{"x", "a", "b"}, [][2]string{{"a", "x"}, {"b", "x"}}, []string{"a", "b", "x"}, nil},
		{"cycle", []string{"a", "b"}, [][2]string{{"a", "b"}, {"b", "a"}}, nil, ErrGraphHasCycle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(nil)
			for _, id := range tt.nodes {
				_ = g.AddNode(Node{ID: id})
			}
			for _, e := range tt.edges {
				_ = g.AddEdge(Edge{From: e[0], To: e[1]})
			}
			got, err := g.TopologicalOrder()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("order = %v, want %v", got, tt.want)
			}
			if verr := g.Validate(); !errors.Is(verr, tt.wantErr) {
				t.Errorf("Validate() = %v", verr)
			}
		})
	}
}

func TestReachable(t *testing.T) {
	g := New(nil)
	for _, id := range []string{"a", "b", "c", "d"} {
		_ = g.AddNode(Node{ID: id})
	}
	_ = g.AddEdge(Edge{From: "a", To: "b"})
	_ = g.AddEdge(Edge{From: "b", To: "c"})

	tests := []struct {
		from, to string
		want     bool
	}{
		{"a", "c", true},
		{"a", "b", true},
		{"c", "a", false},
		{"a", "d", false},
		{"a", "a", false},
	}
	for _, tt := range tests {
		if got := g.Reachable(tt.from, tt.to); got != tt.want {
			t.Errorf("Reachable(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
