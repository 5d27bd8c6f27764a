// Package errors provides structured error types for stepbook.
//
// Every failure the engine reports is an [*Error] carrying a machine-readable
// [Code] and, where it applies, the source position or notebook cell that
// caused it. The engine never falls back silently on ambiguous input; callers
// either get a complete result or one of these errors.
//
// # Error Codes
//
//   - SYNTAX_ERROR: the script or a cell body could not be parsed
//   - STRUCTURE_ERROR: the script parses but violates the transformer contract
//     (no entry function, non-literal step title, ...)
//   - INTERNAL_ERROR: an engine invariant was violated (indicates a defect)
//   - MALFORMED_CELL: a notebook cell cannot be decomposed
//   - UNRESOLVED_REFERENCE: a notebook cell reads a name no earlier cell produces
//
// # Usage
//
//	err := errors.New(errors.ErrCodeStructure, "step title must be a string literal").AtLine(12)
//	if errors.Is(err, errors.ErrCodeStructure) {
//	    // Handle contract violation
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeFileNotFound, origErr, "read %s", path)
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Engine errors
	ErrCodeSyntax     Code = "SYNTAX_ERROR"
	ErrCodeStructure  Code = "STRUCTURE_ERROR"
	ErrCodeInternal   Code = "INTERNAL_ERROR"
	ErrCodeMalformed  Code = "MALFORMED_CELL"
	ErrCodeUnresolved Code = "UNRESOLVED_REFERENCE"

	// Runtime errors raised while executing a script or notebook preview
	ErrCodeRuntime Code = "RUNTIME_ERROR"

	// Input validation errors
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidPath     Code = "INVALID_PATH"
	ErrCodeInvalidSourceID Code = "INVALID_SOURCE_ID"

	// Resource not found errors
	ErrCodeFileNotFound   Code = "FILE_NOT_FOUND"
	ErrCodeSourceNotFound Code = "SOURCE_NOT_FOUND"

	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code, an optional position and an
// optional cause.
//
// Line and Column are 1-based and zero when unknown. Cell is the notebook
// cell index, or -1 when the error is not tied to a cell.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Line    int    // 1-based source line (0 = unknown)
	Column  int    // 1-based source column (0 = unknown)
	Cell    int    // notebook cell index (-1 = none)
	Name    string // offending identifier, if any
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	if e.Line > 0 {
		if e.Column > 0 {
			fmt.Fprintf(&b, "line %d:%d: ", e.Line, e.Column)
		} else {
			fmt.Fprintf(&b, "line %d: ", e.Line)
		}
	}
	if e.Cell >= 0 {
		fmt.Fprintf(&b, "cell %d: ", e.Cell)
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// AtLine sets the source position and returns e for chaining.
func (e *Error) AtLine(line int) *Error {
	e.Line = line
	return e
}

// At sets line and column and returns e for chaining.
func (e *Error) At(line, col int) *Error {
	e.Line = line
	e.Column = col
	return e
}

// InCell sets the notebook cell index and returns e for chaining.
func (e *Error) InCell(index int) *Error {
	e.Cell = index
	return e
}

// WithName records the offending identifier and returns e for chaining.
func (e *Error) WithName(name string) *Error {
	e.Name = name
	return e
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cell:    -1,
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cell:    -1,
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// As is errors.As re-exported so callers importing this package under the
// name "errors" keep access to it.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// Position returns the line and cell recorded on err, if it is an *Error.
func Position(err error) (line, cell int) {
	var e *Error
	if errors.As(err, &e) {
		return e.Line, e.Cell
	}
	return 0, -1
}

// IsInternal reports whether err signals an engine defect rather than bad input.
func IsInternal(err error) bool {
	return Is(err, ErrCodeInternal)
}
