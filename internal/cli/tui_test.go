package cli

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/stepbook/pkg/notebook"
)

func testDocument() *notebook.Document {
	return &notebook.Document{
		Source: "TFRM-001.py",
		Cells: []*notebook.Cell{
			{Index: 0, Kind: notebook.KindImports, Code: "import marimo as mo\n"},
			{Index: 1, Kind: notebook.KindSetup, Outputs: []string{"df"}, Code: "df = load_source(\"DAT-1\")\n"},
			{Index: 2, Kind: notebook.KindStep, Title: "Filter active", Inputs: []string{"df"}, Outputs: []string{"df_1"}, Code: "df_1 = filter_isin(df, \"Status\", [\"Active\"])\n"},
			{Index: 3, Kind: notebook.KindFinal, Inputs: []string{"df_1"}, Outputs: []string{"result"}, Code: "result = df_1\n"},
		},
	}
}

func press(m tea.Model, keys ...tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		m, cmd = m.Update(k)
	}
	return m, cmd
}

func TestCellListModelNavigation(t *testing.T) {
	down := tea.KeyMsg{Type: tea.KeyDown}
	up := tea.KeyMsg{Type: tea.KeyUp}

	tests := []struct {
		name string
		keys []tea.KeyMsg
		want int
	}{
		{"down", []tea.KeyMsg{down}, 1},
		{"clamped at end", []tea.KeyMsg{down, down, down, down, down}, 3},
		{"clamped at start", []tea.KeyMsg{up, up}, 0},
		{"end key", []tea.KeyMsg{{Type: tea.KeyEnd}}, 3},
		{"vim keys", []tea.KeyMsg{{Type: tea.KeyRunes, Runes: []rune("j")}, {Type: tea.KeyRunes, Runes: []rune("j")}, {Type: tea.KeyRunes, Runes: []rune("k")}}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := press(NewCellListModel(testDocument()), tt.keys...)
			if got := m.(CellListModel).Cursor; got != tt.want {
				t.Errorf("Cursor = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCellListModelScroll(t *testing.T) {
	m := NewCellListModel(testDocument())
	m.Height = 2

	next, _ := press(m, tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyDown})
	got := next.(CellListModel)
	if got.Cursor != 2 || got.Offset != 1 {
		t.Errorf("Cursor, Offset = %d, %d; want 2, 1", got.Cursor, got.Offset)
	}
}

func TestCellListModelView(t *testing.T) {
	m, _ := press(NewCellListModel(testDocument()), tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyDown})
	view := m.View()
	for _, want := range []string{"Cells of TFRM-001.py", "Filter active", "reads  df", "filter_isin(df", "[3/4]"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	hidden, _ := press(m, tea.KeyMsg{Type: tea.KeyEnter})
	if strings.Contains(hidden.View(), "filter_isin(df") {
		t.Error("enter should hide the code pane")
	}
}

func TestCellListModelQuit(t *testing.T) {
	_, cmd := press(NewCellListModel(testDocument()), tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestCellTable(t *testing.T) {
	out := cellTable(testDocument().Cells, 0, 10, -1)
	for _, want := range []string{"Kind", "imports", "setup", "step", "final", "df_1", "—"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "▸") {
		t.Error("a negative cursor should mark no row")
	}
}

func TestStatsLine(t *testing.T) {
	line := statsLine(true, count(3, "cell"), count(0, "step"), count(1, "edge"))
	for _, want := range []string{"3 cells", "1 edge", iconCached} {
		if !strings.Contains(line, want) {
			t.Errorf("stats line %q missing %q", line, want)
		}
	}
	if strings.Contains(line, "step") {
		t.Errorf("zero counts should be omitted: %q", line)
	}
}
