package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stepbook/pkg/pipeline"
)

// exportOpts holds the command-line flags for the export command.
type exportOpts struct {
	output    string // output file, "-" for stdout
	mainBlock bool   // append a development main block
}

// exportCommand creates the export command, which converts a notebook back
// into a transformer script.
func (c *CLI) exportCommand() *cobra.Command {
	var opts exportOpts

	cmd := &cobra.Command{
		Use:   "export <notebook>",
		Short: "Convert a notebook back into a transformer script",
		Long: `Convert a notebook back into a transformer script.

The argument may also name the script a notebook was generated from; its
.stepbook/<name>.nb.py is then exported. The script is written next to the
.stepbook directory unless --output is given.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completePython,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runExport(cmd, resolveNotebook(args[0]), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: <name>.py beside .stepbook, - for stdout)")
	cmd.Flags().BoolVar(&opts.mainBlock, "main-block", false, "append an if __name__ == \"__main__\" block that loads the sources")

	return cmd
}

func (c *CLI) runExport(cmd *cobra.Command, path string, opts exportOpts) error {
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
	if cmd.Flags().Changed("main-block") {
		popts.MainBlock = opts.mainBlock
	}
	popts.Logger = c.Logger

	runner := c.newRunner(ctx, cfg)
	defer runner.Close()

	prog := newProgress(loggerFromContext(ctx))
	res, err := runner.Export(ctx, text, popts)
	if err != nil {
		return inFile(path, err)
	}

	out := opts.output
	if out == "" {
		out = scriptPathFor(path)
	}
	if err := writeOutput(c.Out, out, []byte(res.Script)); err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Exported %s", path))

	if out == stdoutPath {
		return nil
	}
	printSuccess("Exported transformer script")
	printFile(out)
	printStats(res.CacheHit, count(res.Stats.Cells, "cell"), count(res.Stats.Steps, "step"))
	return nil
}
