// Package pkg provides the core libraries for stepbook.
//
// # Overview
//
// Stepbook converts transformer scripts, Python modules whose entry function
// is divided into titled steps by marker calls, into reactive notebooks with
// one cell per step, and converts such notebooks back into equivalent
// scripts. Every cell binds each name at most once, so the notebook runtime
// can order cells by the names they read and write.
//
// # Architecture
//
// The forward direction:
//
//	transformer script
//	         ↓
//	    [script] package (lex + parse the Python subset)
//	         ↓
//	    [transformer] package (entry function, steps, helpers, sources)
//	         ↓
//	    [analysis] + [rename] packages (read/write sets, single assignment)
//	         ↓
//	    [notebook] package (cells, headers, text format)
//
// The reverse direction parses notebook text with [notebook.Parse] and
// reassembles the entry function with [notebook.ExportDocument].
//
// # Quick Start
//
//	info, _ := transformer.Parse(src, transformer.Options{})
//	prog, _ := rename.Apply(info, rename.Options{})
//	doc, _ := notebook.Generate(prog, notebook.Options{Source: "TFRM-001.py"})
//	text := notebook.Render(doc)
//
//	back, _ := notebook.Parse(text)
//	script, _ := notebook.ExportDocument(back, notebook.Options{})
//
// Most callers use [pipeline], which runs these stages with caching and
// observability hooks.
//
// # Main Packages
//
// ## Engine
//
// [script] - Indentation-aware lexer, recursive-descent parser and printer
// for the script language.
//
// [transformer] - Recognizes the transformer structure: the entry function,
// step markers, helper definitions and declared sources.
//
// [analysis] - Per-statement read and write sets.
//
// [rename] - Renames rebound names so that each binding is unique.
//
// [notebook] - Cell generation, the notebook text format, export and the
// cell dependency graph.
//
// [interp] - Executes scripts and notebooks against [frame] tables.
//
// ## Graphs
//
// [dag] - Directed acyclic graph of cells, with [dag/transform] providing
// transitive reduction and layering.
//
// [io] - JSON node-link import and export.
//
// [render] and [render/nodelink] - DOT, SVG, PNG and PDF output.
//
// ## Infrastructure
//
// [pipeline] - Generate, export and graph with caching. Used by the CLI and
// the HTTP server so both behave identically.
//
// [cache] - Null, memory, file and Redis result caches with versioned keys.
//
// [config] - stepbook.toml loading.
//
// [observability] - Pipeline, cache and server hooks with a Prometheus
// implementation.
//
// [server] - HTTP API over the pipeline.
//
// [errors] - Coded errors with source positions.
//
// # Testing
//
//	go test ./pkg/...           # All tests
//	go test ./pkg/notebook/...  # Specific package
//	go test -run Example ./...  # Examples only
//
// [script]: https://pkg.go.dev/github.com/matzehuels/stepbook/pkg/script
// [transformer]: https://pkg.go.dev/github.com/matzehuels/stepbook/pkg/transformer
// [analysis]: https://pkg.go.dev/github.com/matzehuels/stepbook/pkg/analysis
// [rename]: https://pkg.go.dev/github.com/matzehuels/stepbook/pkg/rename
// [notebook]: https://pkg.go.dev/github.com/matzehuels/stepbook/pkg/notebook
// [notebook.Parse]: https://pkg.go.dev/github.com/matzehuels/stepbook/pkg/notebook#Parse
// [notebook.ExportDocument]: https://pkg.go.dev/github.com/matzehuels/stepbook/pkg/notebook#ExportDocument
// [interp]: https://pkg.go.dev/github.com/matzehuels/stepbook/pkg/interp
// [frame]: https://pkg.go.dev/github.com/matzehuels/stepbook/pkg/frame
// [dag]: https://pkg.go.dev/github.com/matzehuels/stepbook/pkg/dag
// [dag/transform]: https://pkg.go.dev/github.com/matzehuels/stepbook/pkg/dag/transform
// [io]: https://pkg.go.dev/github.com/matzehuels/stepbook/pkg/io
// [render]: https://pkg.go.dev/github.com/matzehuels/stepbook/pkg/render
// [render/nodelink]: https://pkg.go.dev/github.com/matzehuels/stepbook/pkg/render/nodelink
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/stepbook/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/matzehuels/stepbook/pkg/cache
// [config]: https://pkg.go.dev/github.com/matzehuels/stepbook/pkg/config
// [observability]: https://pkg.go.dev/github.com/matzehuels/stepbook/pkg/observability
// [server]: https://pkg.go.dev/github.com/matzehuels/stepbook/pkg/server
// [errors]: https://pkg.go.dev/github.com/matzehuels/stepbook/pkg/errors
package pkg
