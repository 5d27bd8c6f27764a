package errors

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// sourceIDRegex matches source identifiers such as "DAT-00000001".
var sourceIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateSourceID validates a source identifier before it is turned into a
// file name under the data directory.
//
// The validation rules are intentionally conservative:
//   - No empty identifiers
//   - No control characters
//   - No path separators or traversal sequences
//   - Maximum length of 128 characters
func ValidateSourceID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidSourceID, "source identifier cannot be empty")
	}

	if len(id) > 128 {
		return New(ErrCodeInvalidSourceID, "source identifier too long (max 128 characters)")
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidSourceID, "source identifier contains invalid control characters")
		}
	}

	if strings.Contains(id, "..") {
		return New(ErrCodeInvalidSourceID, "source identifier contains invalid characters: %q", "..")
	}

	if !sourceIDRegex.MatchString(id) {
		return New(ErrCodeInvalidSourceID, "invalid source identifier: %q", id)
	}

	return nil
}

// ValidatePath validates a user-supplied file path for safety.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	return nil
}

// ValidateWithin checks that path, once cleaned, stays inside root.
// It is used when a source identifier is resolved to a file under a data directory.
func ValidateWithin(root, path string) error {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return Wrap(ErrCodeInvalidPath, err, "resolve %s", path)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return New(ErrCodeInvalidPath, "path %s escapes %s", path, root)
	}
	return nil
}

// identRegex matches Python-style identifiers.
var identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateIdentifier validates a configured identifier such as the entry
// function or the step-marker name.
func ValidateIdentifier(kind, name string) error {
	if !identRegex.MatchString(name) {
		return New(ErrCodeInvalidInput, "invalid %s: %q", kind, name)
	}
	return nil
}
