package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stepbook/pkg/pipeline"
	"github.com/matzehuels/stepbook/pkg/render"
)

// graphOpts holds the command-line flags for the graph command.
type graphOpts struct {
	output      string // output file, "-" for stdout
	format      string // json, dot, svg, png or pdf
	input       string // script, notebook or empty to detect
	reduce      bool   // transitive reduction
	skipImports bool   // drop the imports cell
	detailed    bool   // list outputs in node labels
}

// graphCommand creates the graph command, which draws the dependency graph
// between the cells of a script or notebook.
func (c *CLI) graphCommand() *cobra.Command {
	opts := graphOpts{output: stdoutPath}

	cmd := &cobra.Command{
		Use:   "graph <script|notebook>",
		Short: "Render the cell dependency graph",
		Long: `Render the dependency graph between notebook cells. An edge runs from the
cell that binds a name to every cell that reads it.

The format defaults to the extension of --output, then to json.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completePython,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGraph(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", opts.output, "output file (- for stdout)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: "+strings.Join(render.Formats, ", "))
	cmd.Flags().StringVar(&opts.input, "input", "", "input kind: script or notebook (default: detect)")
	cmd.Flags().BoolVar(&opts.reduce, "reduce", false, "apply transitive reduction")
	cmd.Flags().BoolVar(&opts.skipImports, "skip-imports", false, "leave out the imports cell")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show cell outputs in node labels")

	return cmd
}

func (c *CLI) runGraph(cmd *cobra.Command, path string, opts graphOpts) error {
	ctx := cmd.Context()

	text, err := readInput(path)
	if err != nil {
		return inFile(path, err)
	}
	cfg, err := c.loadConfig(path)
	if err != nil {
		return err
	}

	popts := pipeline.FromConfig(cfg, filepath.Base(path))
	popts.Format = graphFormat(opts.format, opts.output)
	popts.Input = opts.input
	popts.Reduce = opts.reduce
	popts.SkipImports = opts.skipImports
	popts.Detailed = opts.detailed
	popts.Logger = c.Logger

	runner := c.newRunner(ctx, cfg)
	defer runner.Close()

	prog := newProgress(loggerFromContext(ctx))
	res, err := runner.Graph(ctx, text, popts)
	if err != nil {
		return inFile(path, err)
	}
	if err := writeOutput(c.Out, opts.output, res.Output); err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Rendered %s graph of %s", res.Format, path))

	if opts.output == stdoutPath {
		return nil
	}
	printFile(opts.output)
	printStats(res.CacheHit, count(res.Graph.NodeCount(), "node"), count(res.Graph.EdgeCount(), "edge"))
	return nil
}

// graphFormat picks the explicit format, else one named by the output
// extension. An empty result leaves the pipeline default.
func graphFormat(format, output string) string {
	if format != "" {
		return format
	}
	if ext := strings.TrimPrefix(filepath.Ext(output), "."); render.ValidFormat(ext) {
		return ext
	}
	return ""
}
