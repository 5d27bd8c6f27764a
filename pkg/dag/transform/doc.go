// Package transform provides graph transformations used when presenting a
// notebook dependency graph.
//
// # Transitive Reduction
//
// [TransitiveReduction] removes edges implied by other paths. If cell 2
// reads from cell 1, cell 3 reads from cell 2 and cell 3 also reads from
// cell 1, the edge 1→3 is removed. The graph's reachability is unchanged,
// only the drawing gets simpler.
//
// # Layer Assignment
//
// [AssignLayers] gives every node the length of the longest path reaching
// it, so producers always sit in rows above their consumers.
//
// # Usage
//
//	transform.TransitiveReduction(g)
//	transform.AssignLayers(g)
package transform
