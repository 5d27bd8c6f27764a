package cli

import (
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stepbook/pkg/notebook"
	"github.com/matzehuels/stepbook/pkg/pipeline"
)

// inspectOpts holds the command-line flags for the inspect command.
type inspectOpts struct {
	input string // script, notebook or empty to detect
	list  bool   // print the cell table instead of starting the browser
}

// inspectCommand creates the inspect command, an interactive browser for
// the cells of a script or notebook.
func (c *CLI) inspectCommand() *cobra.Command {
	var opts inspectOpts

	cmd := &cobra.Command{
		Use:   "inspect <script|notebook>",
		Short: "Browse the cells of a script or notebook",
		Long: `Browse the cells a script generates, or the cells of a notebook, with
their kinds, titles, outputs and code. Use --list for a plain table.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completePython,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInspect(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.input, "input", "", "input kind: script or notebook (default: detect)")
	cmd.Flags().BoolVar(&opts.list, "list", false, "print the cells and exit")

	return cmd
}

func (c *CLI) runInspect(cmd *cobra.Command, path string, opts inspectOpts) error {
	ctx := cmd.Context()

	text, err := readInput(path)
	if err != nil {
		return inFile(path, err)
	}

	input := opts.input
	if input == "" {
		input = pipeline.DetectInput(text)
	}

	var doc *notebook.Document
	if input == pipeline.InputNotebook {
		doc, err = notebook.Parse(text)
	} else {
		doc, err = c.generateDocument(cmd, path, text)
	}
	if err != nil {
		return inFile(path, err)
	}
	if len(doc.Cells) == 0 {
		printWarning("%s has no cells", path)
		return nil
	}

	if opts.list {
		fmt.Fprintln(c.Out, cellTable(doc.Cells, 0, len(doc.Cells), -1))
		return nil
	}

	p := tea.NewProgram(NewCellListModel(doc), tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("inspect: %w", err)
	}
	return nil
}

// generateDocument runs a script through the cached generation pipeline.
func (c *CLI) generateDocument(cmd *cobra.Command, path, src string) (*notebook.Document, error) {
	ctx := cmd.Context()
	cfg, err := c.loadConfig(path)
	if err != nil {
		return nil, err
	}
	popts := pipeline.FromConfig(cfg, filepath.Base(path))
	popts.Logger = c.Logger

	runner := c.newRunner(ctx, cfg)
	defer runner.Close()

	res, err := runner.Generate(ctx, src, popts)
	if err != nil {
		return nil, err
	}
	return res.Document, nil
}
