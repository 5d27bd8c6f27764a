package pipeline

import (
	"context"
	"time"

	"github.com/matzehuels/stepbook/pkg/dag"
	"github.com/matzehuels/stepbook/pkg/errors"
	"github.com/matzehuels/stepbook/pkg/notebook"
	"github.com/matzehuels/stepbook/pkg/observability"
	"github.com/matzehuels/stepbook/pkg/rename"
	"github.com/matzehuels/stepbook/pkg/transformer"
)

// stage runs fn between the pipeline hooks and reports its duration.
func stage[T any](ctx context.Context, name string, fn func() (T, error)) (T, time.Duration, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, 0, err
	}
	hooks := observability.Pipeline()
	hooks.OnStageStart(ctx, name)
	start := time.Now()
	v, err := fn()
	d := time.Since(start)
	hooks.OnStageComplete(ctx, name, d, err)
	return v, d, err
}

func checkSize(text, what string) error {
	if len(text) > MaxInputSize {
		return errors.New(errors.ErrCodeInvalidInput, "%s too large (%d bytes, max %d)", what, len(text), MaxInputSize)
	}
	return nil
}

// Generate converts a script into a notebook without caching. opts must
// have been validated.
func Generate(ctx context.Context, src string, opts Options) (*Result, error) {
	if err := checkSize(src, "script"); err != nil {
		return nil, err
	}
	res := &Result{}

	info, d, err := stage(ctx, observability.StageParse, func() (*transformer.Info, error) {
		return transformer.Parse(src, opts.transformerOptions())
	})
	if err != nil {
		return nil, err
	}
	res.Stats.ParseTime = d

	prog, d, err := stage(ctx, observability.StageRename, func() (*rename.Program, error) {
		return rename.Apply(info, rename.Options{KnownOps: opts.knownOps(), Logger: opts.Logger})
	})
	if err != nil {
		return nil, err
	}
	res.Stats.RenameTime = d

	doc, d, err := stage(ctx, observability.StageGenerate, func() (*notebook.Document, error) {
		return notebook.Generate(prog, opts.notebookOptions())
	})
	if err != nil {
		return nil, err
	}
	res.Stats.GenerateTime = d

	text, d, _ := stage(ctx, observability.StageRender, func() (string, error) {
		return notebook.Render(doc), nil
	})
	res.Stats.RenderTime = d

	res.Notebook = text
	res.Document = doc
	res.Stats.Cells = len(doc.Cells)
	res.Stats.Steps = len(doc.Steps())
	observability.Pipeline().OnNotebook(ctx, res.Stats.Cells, res.Stats.Steps)
	return res, nil
}

// Export converts notebook text into a script without caching. opts must
// have been validated.
func Export(ctx context.Context, text string, opts Options) (*ExportResult, error) {
	if err := checkSize(text, "notebook"); err != nil {
		return nil, err
	}
	res := &ExportResult{}

	doc, d, err := stage(ctx, observability.StageParse, func() (*notebook.Document, error) {
		return notebook.Parse(text)
	})
	if err != nil {
		return nil, err
	}
	res.Stats.ParseTime = d
	res.Stats.Cells = len(doc.Cells)
	res.Stats.Steps = len(doc.Steps())

	script, d, err := stage(ctx, observability.StageExport, func() (string, error) {
		return notebook.ExportDocument(doc, opts.notebookOptions())
	})
	if err != nil {
		return nil, err
	}
	res.Stats.ExportTime = d
	res.Script = script
	return res, nil
}

// Document returns the notebook for either input kind: the notebook text
// is parsed, a script is generated.
func Document(ctx context.Context, text, input string, opts Options) (*notebook.Document, error) {
	if input == InputNotebook {
		if err := checkSize(text, "notebook"); err != nil {
			return nil, err
		}
		doc, _, err := stage(ctx, observability.StageParse, func() (*notebook.Document, error) {
			return notebook.Parse(text)
		})
		return doc, err
	}
	res, err := Generate(ctx, text, opts)
	if err != nil {
		return nil, err
	}
	return res.Document, nil
}

// BuildGraph derives the cell graph of a document.
func BuildGraph(ctx context.Context, doc *notebook.Document, opts Options) (*dag.DAG, time.Duration, error) {
	return stage(ctx, observability.StageGraph, func() (*dag.DAG, error) {
		g, err := notebook.Graph(doc, notebook.GraphOptions{Reduce: opts.Reduce, SkipImports: opts.SkipImports})
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "build cell graph")
		}
		return g, nil
	})
}
