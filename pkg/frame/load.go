package frame

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"

	"github.com/matzehuels/stepbook/pkg/errors"
)

// Loader reads source tables from CSV files under Dir.
type Loader struct {
	Dir    string
	Sample int // rows to keep; zero or negative keeps all
}

// Path returns the file a source identifier resolves to.
func (l Loader) Path(id string) (string, error) {
	if err := errors.ValidateSourceID(id); err != nil {
		return "", err
	}
	dir := l.Dir
	if dir == "" {
		dir = "."
	}
	p := filepath.Join(dir, id+".csv")
	if err := errors.ValidateWithin(dir, p); err != nil {
		return "", err
	}
	return p, nil
}

// Load reads the table for id. A positive sample overrides l.Sample.
func (l Loader) Load(id string, sample int) (*Table, error) {
	p, err := l.Path(id)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeSourceNotFound, "source file not found: %s", p)
		}
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", p)
	}
	defer f.Close()

	if sample <= 0 {
		sample = l.Sample
	}
	t, err := ReadCSV(f, sample)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read %s", p)
	}
	return t, nil
}

// ReadCSV parses a CSV stream whose first record is the header. At most
// limit rows are read when limit is positive.
func ReadCSV(r io.Reader, limit int) (*Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return New(), nil
	}
	if err != nil {
		return nil, err
	}
	t := New(header...)
	for limit <= 0 || t.Len() < limit {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make([]Value, len(header))
		for i, s := range rec {
			if s != "" {
				row[i] = s
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// WriteCSV writes t with a header record. Nulls are written as empty fields.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	rec := make([]string, len(t.Columns))
	for _, r := range t.Rows {
		for i, v := range r {
			if v == nil {
				rec[i] = ""
			} else {
				rec[i] = FormatValue(v)
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
