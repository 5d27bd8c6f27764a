// Package cli implements the stepbook command-line interface.
//
// The commands convert transformer scripts to notebooks and back, draw the
// cell dependency graph, execute scripts or notebooks against local CSV
// sources, browse a notebook interactively and serve the conversions over
// HTTP. The CLI is built using cobra and logs through charmbracelet/log.
//
// # Commands
//
// The main commands are:
//   - generate: Convert a transformer script into a notebook
//   - export: Convert a notebook back into a transformer script
//   - graph: Render the cell dependency graph (json, dot, svg, png, pdf)
//   - run: Execute a script or notebook and print the resulting table
//   - inspect: Browse the cells of a script or notebook
//   - serve: Serve the conversions over HTTP
//   - cache: Manage the result cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context to allow structured progress tracking.
//
// # Errors
//
// Conversion failures are reported as "file:line: KIND: message" by
// [FormatError], and the process exits non-zero.
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger returns the command logger. Lines carry a short clock time;
// cell-level detail from the converters is logged at debug and shows only
// with --verbose.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress times one command stage, such as generating a notebook or
// running a script, and reports it as a single info line.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg with the elapsed time, e.g. "Generated 7 cells from
// TFRM-001.py (12ms)". Extra key/value pairs are appended to the line.
func (p *progress) done(msg string, keyvals ...any) {
	elapsed := time.Since(p.start).Round(time.Millisecond)
	p.logger.Info(fmt.Sprintf("%s (%s)", msg, elapsed), keyvals...)
}

type ctxKey int

const loggerKey ctxKey = 0

// withLogger attaches l to ctx for the command's subroutines.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns the logger attached by withLogger, or
// log.Default when there is none.
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
