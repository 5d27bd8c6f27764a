package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/matzehuels/stepbook/pkg/errors"
)

// fileError ties a failure to the input file it was reported for.
type fileError struct {
	path string
	err  error
}

func (e *fileError) Error() string { return FormatError(e.path, e.err) }

func (e *fileError) Unwrap() error { return e.err }

// inFile attributes err to path. Cancellation passes through untouched so
// main can map it to the interrupt exit status.
func inFile(path string, err error) error {
	if err == nil || stderrors.Is(err, context.Canceled) {
		return err
	}
	return &fileError{path: path, err: err}
}

// FormatError renders err as "file:line: KIND: message". The line is
// omitted when unknown and uncoded errors skip the kind.
func FormatError(path string, err error) string {
	var b strings.Builder
	b.WriteString(path)
	line, cell := errors.Position(err)
	if line > 0 {
		b.WriteString(":" + strconv.Itoa(line))
	}
	b.WriteString(": ")
	if code := errors.GetCode(err); code != "" {
		b.WriteString(string(code) + ": ")
	}
	b.WriteString(errors.UserMessage(err))
	var e *errors.Error
	if errors.As(err, &e) && e.Cause != nil {
		b.WriteString(": " + e.Cause.Error())
	}
	if cell >= 0 {
		fmt.Fprintf(&b, " (cell %d)", cell)
	}
	return b.String()
}

// Process exit statuses.
const (
	ExitFailure   = 1   // bad input or a failed command
	ExitInternal  = 2   // conversion engine defect
	ExitInterrupt = 130 // SIGINT, following the shell convention
)

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case stderrors.Is(err, context.Canceled):
		return ExitInterrupt
	case errors.IsInternal(err):
		return ExitInternal
	default:
		return ExitFailure
	}
}
