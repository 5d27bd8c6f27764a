// Package nodelink draws cell graphs as node-link diagrams.
//
// [ToDOT] emits Graphviz DOT with one node per cell, styled by cell kind,
// and one edge per producer/consumer pair labeled with the names that flow
// along it. [RenderSVG] and [RenderPNG] lay the DOT out in process with
// go-graphviz, so no Graphviz installation is needed.
//
//	dot := nodelink.ToDOT(g, nodelink.Options{Detailed: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
package nodelink
