package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stepbook/pkg/pipeline"
)

// generateOpts holds the command-line flags for the generate command.
type generateOpts struct {
	output  string // output file, "-" for stdout
	sample  int    // sample=N on generated source loads
	refresh bool   // ignore cached notebooks
}

// generateCommand creates the generate command, which converts a
// transformer script into a notebook.
func (c *CLI) generateCommand() *cobra.Command {
	var opts generateOpts

	cmd := &cobra.Command{
		Use:   "generate <script>",
		Short: "Convert a transformer script into a notebook",
		Long: `Convert a transformer script into a notebook with one cell per step.

The notebook is written to .stepbook/<name>.nb.py next to the script unless
--output is given. Use --output - to print it.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completePython,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGenerate(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: .stepbook/<name>.nb.py, - for stdout)")
	cmd.Flags().IntVar(&opts.sample, "sample", 0, "limit source loads to N rows")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "regenerate even when a cached notebook exists")

	return cmd
}

func (c *CLI) runGenerate(cmd *cobra.Command, path string, opts generateOpts) error {
	ctx := cmd.Context()

	src, err := readInput(path)
	if err != nil {
		return inFile(path, err)
	}
	cfg, err := c.loadConfig(path)
	if err != nil {
		return err
	}

	popts := pipeline.FromConfig(cfg, filepath.Base(path))
	if cmd.Flags().Changed("sample") {
		popts.Sample = opts.sample
	}
	popts.Refresh = opts.refresh
	popts.Logger = c.Logger

	runner := c.newRunner(ctx, cfg)
	defer runner.Close()

	prog := newProgress(loggerFromContext(ctx))
	res, err := runner.Generate(ctx, src, popts)
	if err != nil {
		return inFile(path, err)
	}

	out := opts.output
	if out == "" {
		out = notebookPathFor(path)
	}
	if err := writeOutput(c.Out, out, []byte(res.Notebook)); err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Generated %d cells from %s", res.Stats.Cells, path), "steps", res.Stats.Steps)

	if out == stdoutPath {
		return nil
	}
	printSuccess("Found %d steps", res.Stats.Steps)
	for i, s := range res.Document.Steps() {
		printDetail("%d. %s", i+1, s.Title)
	}
	printFile(out)
	printStats(res.CacheHit, count(res.Stats.Cells, "cell"), count(res.Stats.Steps, "step"))
	printNextStep("Export with", "stepbook export "+out)
	return nil
}
