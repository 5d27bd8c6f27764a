package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidInput, "test message: %s", "value")

	if err.Code != ErrCodeInvalidInput {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidInput)
	}

	if err.Message != "test message: value" {
		t.Errorf("Message = %v, want %v", err.Message, "test message: value")
	}

	if err.Cell != -1 {
		t.Errorf("Cell = %d, want -1", err.Cell)
	}

	expected := "INVALID_INPUT: test message: value"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestErrorPosition(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"line only", New(ErrCodeStructure, "bad title").AtLine(7), "STRUCTURE_ERROR: line 7: bad title"},
		{"line and column", New(ErrCodeSyntax, "unexpected token").At(3, 9), "SYNTAX_ERROR: line 3:9: unexpected token"},
		{"cell", New(ErrCodeMalformed, "top-level return").InCell(2), "MALFORMED_CELL: cell 2: top-level return"},
		{"cell zero", New(ErrCodeMalformed, "bad header").InCell(0), "MALFORMED_CELL: cell 0: bad header"},
		{"name", New(ErrCodeUnresolved, "undefined name").InCell(4).WithName("df_1"), "UNRESOLVED_REFERENCE: cell 4: undefined name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeFileNotFound, cause, "failed to read")

	if err.Code != ErrCodeFileNotFound {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeFileNotFound)
	}

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}

	// Test Unwrap
	unwrapped := errors.Unwrap(err)
	if unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	// Test errors.Is with wrapped error
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}

	if got, want := err.Error(), "FILE_NOT_FOUND: failed to read: underlying error"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{
			name:     "matching code",
			err:      New(ErrCodeInvalidInput, "test"),
			code:     ErrCodeInvalidInput,
			expected: true,
		},
		{
			name:     "non-matching code",
			err:      New(ErrCodeInvalidInput, "test"),
			code:     ErrCodeSyntax,
			expected: false,
		},
		{
			name:     "wrapped error",
			err:      Wrap(ErrCodeStructure, New(ErrCodeSyntax, "inner"), "outer"),
			code:     ErrCodeStructure,
			expected: true,
		},
		{
			name:     "fmt wrapped",
			err:      fmt.Errorf("generate: %w", New(ErrCodeInternal, "binding mismatch")),
			code:     ErrCodeInternal,
			expected: true,
		},
		{
			name:     "non-Error type",
			err:      errors.New("plain error"),
			code:     ErrCodeInvalidInput,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			code:     ErrCodeInvalidInput,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(New(ErrCodeMalformed, "x")); got != ErrCodeMalformed {
		t.Errorf("GetCode() = %v, want %v", got, ErrCodeMalformed)
	}
	if got := GetCode(errors.New("plain")); got != "" {
		t.Errorf("GetCode() = %v, want empty", got)
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(New(ErrCodeStructure, "no entry function %q", "transform")); got != `no entry function "transform"` {
		t.Errorf("UserMessage() = %q", got)
	}
	if got := UserMessage(errors.New("plain")); got != "plain" {
		t.Errorf("UserMessage() = %q, want plain", got)
	}
}

func TestPosition(t *testing.T) {
	line, cell := Position(fmt.Errorf("wrap: %w", New(ErrCodeMalformed, "x").InCell(3)))
	if line != 0 || cell != 3 {
		t.Errorf("Position() = (%d, %d), want (0, 3)", line, cell)
	}
	line, cell = Position(errors.New("plain"))
	if line != 0 || cell != -1 {
		t.Errorf("Position() = (%d, %d), want (0, -1)", line, cell)
	}
}
