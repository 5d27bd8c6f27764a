// Package render turns cell graphs into images.
//
// The [nodelink] subpackage emits Graphviz DOT and renders it in process with
// go-graphviz. This package holds the output format vocabulary and the
// SVG-to-PDF conversion, which shells out to rsvg-convert from librsvg.
//
//	dot := nodelink.ToDOT(g, nodelink.Options{})
//	svg, err := nodelink.RenderSVG(dot)
//	pdf, err := render.ToPDF(svg)
package render
