package notebook

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/matzehuels/stepbook/pkg/errors"
)

const (
	headerPrefix = "# %% "
	sourcePrefix = "# source: "
)

// header is the JSON form of a cell header. Field order is the key order.
type header struct {
	Cell        int      `json:"cell"`
	Kind        Kind     `json:"kind"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Outputs     []string `json:"outputs"`
	Inputs      []string `json:"inputs"`
	Display     string   `json:"display,omitempty"`
	Implicit    bool     `json:"implicit,omitempty"`
}

// Render writes the notebook text. Identical documents render to identical
// bytes.
func Render(doc *Document) string {
	var b strings.Builder
	b.WriteString("# " + FormatVersion + "\n")
	if doc.Source != "" {
		b.WriteString(sourcePrefix + doc.Source + "\n")
	}
	if doc.Docstring != "" {
		b.WriteString("#\n")
		for _, line := range strings.Split(doc.Docstring, "\n") {
			if line == "" {
				b.WriteString("#\n")
				continue
			}
			b.WriteString("# " + line + "\n")
		}
	}
	for i, c := range doc.Cells {
		b.WriteString("\n")
		b.WriteString(headerPrefix + encodeHeader(i, c) + "\n")
		if code := strings.TrimRight(c.Code, "\n"); code != "" {
			b.WriteString(code + "\n")
		}
	}
	return b.String()
}

func encodeHeader(index int, c *Cell) string {
	h := header{
		Cell:        index,
		Kind:        c.Kind,
		Title:       c.Title,
		Description: c.Description,
		Outputs:     nonNil(c.Outputs),
		Inputs:      nonNil(c.Inputs),
		Display:     c.Display,
		Implicit:    c.Implicit,
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// encoding a struct of strings, ints and bools cannot fail
	_ = enc.Encode(h)
	return strings.TrimSuffix(buf.String(), "\n")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Parse reads notebook text. Cells are numbered by position; the "cell"
// key of a header is informational.
func Parse(text string) (*Document, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i == len(lines) || strings.TrimSpace(lines[i]) != "# "+FormatVersion {
		return nil, errors.New(errors.ErrCodeMalformed, "missing %q preamble", "# "+FormatVersion).AtLine(i + 1)
	}
	doc := &Document{Format: FormatVersion}
	i++

	var docLines []string
	inDoc := false
	for ; i < len(lines) && !strings.HasPrefix(lines[i], headerPrefix); i++ {
		line := lines[i]
		switch {
		case strings.TrimSpace(line) == "":
		case !inDoc && strings.HasPrefix(line, sourcePrefix):
			doc.Source = strings.TrimSpace(strings.TrimPrefix(line, sourcePrefix))
		case !inDoc && line == "#":
			inDoc = true
		case inDoc && line == "#":
			docLines = append(docLines, "")
		case inDoc && strings.HasPrefix(line, "# "):
			docLines = append(docLines, strings.TrimPrefix(line, "# "))
		default:
			return nil, errors.New(errors.ErrCodeMalformed, "unexpected line before the first cell").AtLine(i + 1)
		}
	}
	doc.Docstring = strings.TrimRight(strings.Join(docLines, "\n"), "\n")

	for i < len(lines) {
		index := len(doc.Cells)
		headerLine := i + 1
		var h header
		dec := json.NewDecoder(strings.NewReader(strings.TrimPrefix(lines[i], headerPrefix)))
		if err := dec.Decode(&h); err != nil {
			return nil, errors.Wrap(errors.ErrCodeMalformed, err, "unparsable cell header").AtLine(headerLine).InCell(index)
		}
		if !h.Kind.Valid() {
			return nil, errors.New(errors.ErrCodeMalformed, "unknown cell kind %q", h.Kind).AtLine(headerLine).InCell(index)
		}
		i++
		start := i
		for i < len(lines) && !strings.HasPrefix(lines[i], headerPrefix) {
			i++
		}
		body := lines[start:i]
		for len(body) > 0 && strings.TrimSpace(body[len(body)-1]) == "" {
			body = body[:len(body)-1]
		}
		for len(body) > 0 && strings.TrimSpace(body[0]) == "" {
			body = body[1:]
		}
		doc.Cells = append(doc.Cells, &Cell{
			Index:       index,
			Kind:        h.Kind,
			Title:       h.Title,
			Description: h.Description,
			Inputs:      nonNil(h.Inputs),
			Outputs:     nonNil(h.Outputs),
			Code:        strings.Join(body, "\n"),
			Display:     h.Display,
			Implicit:    h.Implicit,
		})
	}
	return doc, nil
}
