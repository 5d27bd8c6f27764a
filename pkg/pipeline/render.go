package pipeline

import (
	"context"

	"github.com/matzehuels/stepbook/pkg/dag"
	"github.com/matzehuels/stepbook/pkg/errors"
	"github.com/matzehuels/stepbook/pkg/io"
	"github.com/matzehuels/stepbook/pkg/render"
	"github.com/matzehuels/stepbook/pkg/render/nodelink"
)

// RenderGraph writes g in the given format.
func RenderGraph(ctx context.Context, g *dag.DAG, format string, detailed bool) ([]byte, error) {
	if format == render.FormatJSON {
		return io.MarshalJSON(g)
	}
	dot := nodelink.ToDOT(g, nodelink.Options{Detailed: detailed, EdgeLabels: detailed})

	var (
		out []byte
		err error
	)
	switch format {
	case render.FormatDOT:
		return []byte(dot), nil
	case render.FormatSVG:
		out, err = nodelink.RenderSVG(ctx, dot)
	case render.FormatPNG:
		out, err = nodelink.RenderPNG(ctx, dot)
	case render.FormatPDF:
		var svg []byte
		if svg, err = nodelink.RenderSVG(ctx, dot); err == nil {
			out, err = render.ToPDF(svg)
		}
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "invalid format %q", format)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeUnsupported, err, "render %s", format)
	}
	return out, nil
}
