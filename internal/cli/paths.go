package cli

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/stepbook/pkg/errors"
)

const (
	// notebookDir holds generated notebooks next to their scripts.
	notebookDir = "." + appName

	// notebookExt marks notebook files.
	notebookExt = ".nb.py"

	// stdoutPath selects standard output for -o.
	stdoutPath = "-"
)

// notebookPathFor returns the default notebook location for a script:
// <dir>/.stepbook/<name>.nb.py.
func notebookPathFor(script string) string {
	stem := strings.TrimSuffix(filepath.Base(script), filepath.Ext(script))
	return filepath.Join(filepath.Dir(script), notebookDir, stem+notebookExt)
}

// scriptPathFor returns the default export location for a notebook. A
// notebook inside .stepbook/ exports to the directory above it.
func scriptPathFor(nb string) string {
	name := filepath.Base(nb)
	if strings.HasSuffix(name, notebookExt) {
		name = strings.TrimSuffix(name, notebookExt)
	} else {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	dir := filepath.Dir(nb)
	if filepath.Base(dir) == notebookDir {
		dir = filepath.Dir(dir)
	}
	return filepath.Join(dir, name+".py")
}

// resolveNotebook accepts either a notebook path or the script a notebook
// was generated from, and returns the notebook file to read. The generated
// notebook of a script wins over the script itself.
func resolveNotebook(arg string) string {
	if strings.HasSuffix(arg, notebookExt) {
		return arg
	}
	if p := notebookPathFor(arg); fileExists(p) {
		return p
	}
	return arg
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// readInput reads a script or notebook from path.
func readInput(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.New(errors.ErrCodeFileNotFound, "no such file")
		}
		return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "read input")
	}
	return string(data), nil
}

// writeOutput writes data to path, creating its directory, or to w when
// path is "-".
func writeOutput(w io.Writer, path string, data []byte) error {
	if path == stdoutPath {
		_, err := w.Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create output directory")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "write output")
	}
	return nil
}
