package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// ErrPickCancelled is returned when the picker is closed without a choice.
var ErrPickCancelled = errors.New("selection cancelled")

// PickerItem is one choice. An item with Disabled set is shown with that
// reason and cannot be chosen.
type PickerItem struct {
	Label    string
	SubLabel string
	Value    string
	Disabled string
}

type pickerModel struct {
	title    string
	items    []PickerItem
	cursor   int
	selected *PickerItem
	quitting bool
}

func newPicker(title string, items []PickerItem) pickerModel {
	m := pickerModel{title: title, items: items}
	m.cursor = m.next(-1, 1)
	return m
}

// next returns the first enabled index after from in direction dir, or from
// when there is none.
func (m pickerModel) next(from, dir int) int {
	for i := from + dir; i >= 0 && i < len(m.items); i += dir {
		if m.items[i].Disabled == "" {
			return i
		}
	}
	return from
}

func (m pickerModel) Init() tea.Cmd { return nil }

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch k := key.String(); k {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit
	case "up", "k":
		m.cursor = m.next(m.cursor, -1)
	case "down", "j":
		m.cursor = m.next(m.cursor, 1)
	case "enter", " ":
		return m.choose(m.cursor)
	default:
		if n, err := strconv.Atoi(k); err == nil {
			return m.choose(n - 1)
		}
	}
	return m, nil
}

func (m pickerModel) choose(i int) (tea.Model, tea.Cmd) {
	if i < 0 || i >= len(m.items) || m.items[i].Disabled != "" {
		return m, nil
	}
	item := m.items[i]
	m.cursor = i
	m.selected = &item
	return m, tea.Quit
}

func (m pickerModel) View() string {
	if m.quitting || m.selected != nil {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\n" + StyleTitle.Render("  "+m.title) + "\n\n")
	for i, item := range m.items {
		prefix := fmt.Sprintf("    %d ", i+1)
		if i == m.cursor {
			prefix = fmt.Sprintf("  ▸ %d ", i+1)
		}
		if item.Disabled != "" {
			sb.WriteString(StyleMeta.Render(prefix+item.Label+"  ("+item.Disabled+")") + "\n")
			continue
		}
		line := prefix + StyleValue.Render(item.Label)
		if item.SubLabel != "" {
			line += "  " + StyleMeta.Render(item.SubLabel)
		}
		if i == m.cursor {
			line = StyleSelected.Render(line)
		}
		sb.WriteString(line + "\n")
	}
	sb.WriteString("\n" + StyleMeta.Render("  [ ↑↓ / jk ] move   [ 1-9 / Enter ] choose   [ q ] cancel") + "\n")
	return sb.String()
}

// PickItem shows items on out, reads keys from in and returns the chosen
// Value. It returns ErrPickCancelled when the user backs out or ctx ends.
func PickItem(ctx context.Context, in io.Reader, out io.Writer, title string, items []PickerItem) (string, error) {
	m := newPicker(title, items)
	if m.cursor < 0 {
		return "", fmt.Errorf("%s: nothing available to choose", title)
	}

	final, err := tea.NewProgram(m, tea.WithContext(ctx), tea.WithInput(in), tea.WithOutput(out)).Run()
	if ctx.Err() != nil {
		return "", ErrPickCancelled
	}
	if err != nil {
		return "", fmt.Errorf("picker: %w", err)
	}
	fm := final.(pickerModel)
	if fm.selected == nil {
		return "", ErrPickCancelled
	}
	return fm.selected.Value, nil
}
