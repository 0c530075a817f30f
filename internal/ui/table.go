package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Column is a table column. Width is in terminal cells.
type Column struct {
	Title string
	Width int
	Right bool // right-align, for amounts and numbers
}

// Row holds one value per column. Values may already be styled.
type Row []string

// Table renders fixed-width, lipgloss-styled rows.
type Table struct {
	Columns []Column
	Rows    []Row
}

// NewTable creates a new table.
func NewTable(cols []Column) *Table {
	return &Table{Columns: cols}
}

// AddRow appends a row.
func (t *Table) AddRow(r Row) {
	t.Rows = append(t.Rows, r)
}

// Render returns the table as a string, one line per row after the header
// and divider.
func (t *Table) Render() string {
	var sb strings.Builder

	headerStyle := lipgloss.NewStyle().Foreground(ColorHighlight).Bold(true)
	cellStyle := lipgloss.NewStyle().Foreground(ColorValue)
	dimStyle := lipgloss.NewStyle().Foreground(ColorMeta)

	line := func(cells []string) {
		sb.WriteString(strings.Join(cells, " "))
		sb.WriteString("\n")
	}

	headers := make([]string, len(t.Columns))
	divider := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		headers[i] = headerStyle.Render(fit(col.Title, col))
		divider[i] = dimStyle.Render(strings.Repeat("-", col.Width))
	}
	line(headers)
	line(divider)

	for _, row := range t.Rows {
		cells := make([]string, len(t.Columns))
		for j, col := range t.Columns {
			val := ""
			if j < len(row) {
				val = row[j]
			}
			cells[j] = cellStyle.Render(fit(val, col))
		}
		line(cells)
	}

	return sb.String()
}

// fit pads or truncates s to exactly col.Width cells. Width is measured on
// what the terminal shows, so escape sequences and multi-byte glyphs in an
// already styled value do not count and are never cut in half.
func fit(s string, col Column) string {
	w := ansi.StringWidth(s)
	if w > col.Width {
		s = ansi.Truncate(s, col.Width, "…")
		w = ansi.StringWidth(s)
	}
	gap := strings.Repeat(" ", col.Width-w)
	if col.Right {
		return gap + s
	}
	return s + gap
}

// KeyValueBlock renders a set of key-value pairs in a bordered box.
func KeyValueBlock(title string, pairs [][2]string) string {
	var sb strings.Builder
	if title != "" {
		sb.WriteString(StyleTitle.Render(title))
		sb.WriteString("\n")
	}
	for _, p := range pairs {
		key := StyleMeta.Render(fmt.Sprintf("%-20s", p[0]+":"))
		val := StyleValue.Render(p[1])
		sb.WriteString("  " + key + " " + val + "\n")
	}
	return StyleBorder.Render(sb.String())
}
