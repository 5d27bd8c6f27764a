package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stepbook/pkg/frame"
	"github.com/matzehuels/stepbook/pkg/interp"
	"github.com/matzehuels/stepbook/pkg/notebook"
	"github.com/matzehuels/stepbook/pkg/pipeline"
)

// defaultPreviewRows bounds the rows printed for a result table.
const defaultPreviewRows = 20

// runOpts holds the command-line flags for the run command.
type runOpts struct {
	sample   int    // rows per source load
	rows     int    // rows of the result to print
	data     string // source directory override
	input    string // script, notebook or empty to detect
	displays bool   // print display() output as it happens
}

// runCommand creates the run command, which executes a script or notebook
// against CSV sources and prints the resulting table.
func (c *CLI) runCommand() *cobra.Command {
	opts := runOpts{rows: defaultPreviewRows}

	cmd := &cobra.Command{
		Use:   "run <script|notebook>",
		Short: "Execute a script or notebook and print its result",
		Long: `Execute a transformer script or notebook. Sources are read from
<data_path>/<id>.csv, where data_path comes from stepbook.toml or --data.

A script runs its entry function with the sources it declares; a notebook
runs its cells in order and reports the value bound by the final cell.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completePython,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRun(cmd, args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.sample, "sample", 0, "limit every source load to N rows")
	cmd.Flags().IntVar(&opts.rows, "rows", opts.rows, "rows of the result to print (0 for all)")
	cmd.Flags().StringVar(&opts.data, "data", "", "directory holding the source CSV files")
	cmd.Flags().StringVar(&opts.input, "input", "", "input kind: script or notebook (default: detect)")
	cmd.Flags().BoolVar(&opts.displays, "displays", false, "print cell displays")

	return cmd
}

func (c *CLI) runRun(cmd *cobra.Command, path string, opts runOpts) error {
	ctx := cmd.Context()

	text, err := readInput(path)
	if err != nil {
		return inFile(path, err)
	}
	cfg, err := c.loadConfig(path)
	if err != nil {
		return err
	}

	dir := opts.data
	if dir == "" {
		dir = dataDir(cfg, path)
	}
	iopts := interp.Options{
		Loader:        frame.Loader{Dir: dir},
		Sample:        opts.sample,
		Entry:         cfg.Entry,
		Marker:        cfg.Marker,
		SourcesVar:    cfg.SourcesVar,
		RuntimeModule: cfg.RuntimeModule,
		LoaderModule:  cfg.LoaderModule,
		Stdout:        c.Out,
		Logger:        c.Logger,
	}

	input := opts.input
	if input == "" {
		input = pipeline.DetectInput(text)
	}

	spin := newSpinner(ctx, os.Stderr, "Reading "+path)
	spin.start()
	prog := newProgress(loggerFromContext(ctx))
	res, err := execute(ctx, text, input, iopts, spin.stage)
	spin.stop()
	if err != nil {
		if spin.cancelled() {
			return ctx.Err()
		}
		return inFile(path, err)
	}
	prog.done(fmt.Sprintf("Ran %s", path))

	if opts.displays {
		for _, d := range res.Displays {
			printDisplay(c.Out, d, opts.rows)
		}
	}
	for i, s := range res.Steps {
		printDetail("step %d: %s", i+1, s.Title)
	}
	if res.Table == nil {
		printKeyValue("result", frame.FormatValue(res.Value))
		return nil
	}
	fmt.Fprintln(c.Out, renderTable(res.Table, opts.rows))
	printKeyValue("rows", fmt.Sprint(res.Table.Len()))
	printKeyValue("columns", fmt.Sprint(len(res.Table.Columns)))
	return nil
}

// execute runs a script or notebook, reporting each stage to stage.
func execute(ctx context.Context, text, input string, opts interp.Options, stage func(string)) (*interp.Result, error) {
	if input == pipeline.InputNotebook {
		stage("Parsing notebook")
		doc, err := notebook.Parse(text)
		if err != nil {
			return nil, err
		}
		stage(fmt.Sprintf("Running %s", count(len(doc.Cells), "cell")))
		return interp.RunNotebook(ctx, doc, opts)
	}
	stage("Running " + opts.WithDefaults().Entry)
	return interp.RunScript(ctx, text, opts)
}

// printDisplay writes one display record.
func printDisplay(w io.Writer, d interp.Display, rows int) {
	title := "display"
	if d.Cell >= 0 {
		title = fmt.Sprintf("cell %d", d.Cell)
	}
	fmt.Fprintln(w, StyleTitle.Render(title))
	switch {
	case d.Table != nil:
		fmt.Fprintln(w, renderTable(d.Table, rows))
	case d.Kind == interp.DisplayMarkdown:
		fmt.Fprintln(w, StyleValue.Render(d.Text))
	default:
		fmt.Fprintln(w, d.Text)
	}
}

// renderTable draws at most maxRows rows of t with a rounded border. A
// non-positive maxRows draws every row.
func renderTable(t *frame.Table, maxRows int) string {
	rows := t.Rows
	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	cells := make([][]string, len(rows))
	for i, row := range rows {
		cells[i] = make([]string, len(row))
		for j, v := range row {
			cells[i][j] = frame.FormatValue(v)
		}
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	cellStyle := lipgloss.NewStyle().Foreground(colorWhite).Padding(0, 1)
	nullStyle := lipgloss.NewStyle().Foreground(colorDim).Padding(0, 1)

	out := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers(t.Columns...).
		Rows(cells...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle.Padding(0, 1)
			}
			if row < len(rows) && col < len(rows[row]) && rows[row][col] == nil {
				return nullStyle
			}
			return cellStyle
		}).
		Render()

	if len(rows) < len(t.Rows) {
		out += "\n" + StyleDim.Render(fmt.Sprintf("... %d more rows", len(t.Rows)-len(rows)))
	}
	return out
}
