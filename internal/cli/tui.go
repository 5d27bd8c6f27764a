package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/stepbook/pkg/notebook"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
	codeStyle         = lipgloss.NewStyle().
				Border(lipgloss.NormalBorder(), false, false, false, true).
				BorderForeground(colorDim).
				PaddingLeft(1)
)

// kindStyles colors the kind column.
var kindStyles = map[notebook.Kind]lipgloss.Style{
	notebook.KindImports: lipgloss.NewStyle().Foreground(colorGray),
	notebook.KindHelpers: lipgloss.NewStyle().Foreground(colorBlue),
	notebook.KindSetup:   lipgloss.NewStyle().Foreground(colorYellow),
	notebook.KindStep:    lipgloss.NewStyle().Foreground(colorGreen),
	notebook.KindFinal:   lipgloss.NewStyle().Foreground(colorCyan),
}

// =============================================================================
// CellListModel - Interactive cell browser
// =============================================================================

// CellListModel is the bubbletea model for browsing notebook cells. The
// selected cell's code is shown below the list.
type CellListModel struct {
	Doc      *notebook.Document
	Cursor   int
	Height   int
	Offset   int
	ShowCode bool
}

// NewCellListModel creates a new cell list model.
func NewCellListModel(doc *notebook.Document) CellListModel {
	return CellListModel{
		Doc:      doc,
		Height:   12,
		ShowCode: true,
	}
}

func (m CellListModel) Init() tea.Cmd {
	return nil
}

func (m CellListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Doc.Cells)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "home", "g":
			m.Cursor, m.Offset = 0, 0
		case "end", "G":
			m.Cursor = max(len(m.Doc.Cells)-1, 0)
			m.Offset = max(m.Cursor-m.Height+1, 0)
		case "enter", " ":
			m.ShowCode = !m.ShowCode
		}
	case tea.WindowSizeMsg:
		// Leave half the screen for the code pane.
		m.Height = max(msg.Height/2-6, 5)
	}
	return m, nil
}

func (m CellListModel) View() string {
	var b strings.Builder

	title := "Cells"
	if m.Doc.Source != "" {
		title += " of " + m.Doc.Source
	}
	b.WriteString(StyleTitle.Render(title))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ toggle code  q quit"))
	b.WriteString("\n\n")
	b.WriteString(cellTable(m.Doc.Cells, m.Offset, m.Offset+m.Height, m.Cursor))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Doc.Cells))))

	if m.ShowCode && m.Cursor < len(m.Doc.Cells) {
		c := m.Doc.Cells[m.Cursor]
		b.WriteString("\n\n")
		if c.Description != "" {
			b.WriteString(StyleDim.Render(c.Description))
			b.WriteString("\n")
		}
		if len(c.Inputs) > 0 {
			b.WriteString(StyleDim.Render("reads  " + strings.Join(c.Inputs, ", ")))
			b.WriteString("\n")
		}
		b.WriteString(codeStyle.Render(strings.TrimRight(c.Code, "\n")))
	}

	return b.String()
}

// cellTable renders cells[start:end] as a table. The cursor row is
// highlighted; a negative cursor highlights nothing.
func cellTable(cells []*notebook.Cell, start, end, cursor int) string {
	end = min(end, len(cells))
	start = min(max(start, 0), end)

	rows := [][]string{}
	for i := start; i < end; i++ {
		c := cells[i]
		mark := "  "
		if i == cursor {
			mark = "▸ "
		}
		name := c.Title
		if name == "" {
			name = "—"
		}
		if c.Implicit {
			name += " (implicit)"
		}
		outputs := strings.Join(c.Outputs, ", ")
		if outputs == "" {
			outputs = "—"
		}
		rows = append(rows, []string{mark, fmt.Sprint(c.Index), string(c.Kind), name, outputs})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "#", "Kind", "Title", "Outputs").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			idx := start + row
			if idx >= end {
				return lipgloss.NewStyle()
			}
			if idx == cursor {
				return listSelectedStyle
			}
			if col == 2 {
				if s, ok := kindStyles[cells[idx].Kind]; ok {
					return s
				}
			}
			if col == 4 {
				return listDimStyle
			}
			return lipgloss.NewStyle().Foreground(colorWhite)
		})

	return t.Render()
}
