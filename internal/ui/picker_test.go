package ui

import (
	"context"
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func walletItems() []PickerItem {
	return []PickerItem{
		{Label: "Injected", SubLabel: "browser-style wallet endpoint", Value: "injected"},
		{Label: "Relay", SubLabel: "remote signer", Value: "relay"},
		{Label: "Local", SubLabel: "keyring key", Value: "local"},
	}
}

func press(m tea.Model, key string) tea.Model {
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, _ := m.Update(msg)
	return next
}

func TestPickerNavigatesAndSelects(t *testing.T) {
	var m tea.Model = newPicker("Connect with", walletItems())
	m = press(m, "down")
	m = press(m, "j")
	m = press(m, "down") // clamps at the last item
	m = press(m, "k")
	m = press(m, "enter")

	pm := m.(pickerModel)
	require.NotNil(t, pm.selected)
	assert.Equal(t, "relay", pm.selected.Value)
}

func TestPickerCursorDoesNotGoAboveTop(t *testing.T) {
	var m tea.Model = newPicker("t", walletItems())
	m = press(m, "up")
	assert.Equal(t, 0, m.(pickerModel).cursor)
}

func TestPickerNumberKeyChooses(t *testing.T) {
	m := press(newPicker("t", walletItems()), "3")
	pm := m.(pickerModel)
	require.NotNil(t, pm.selected)
	assert.Equal(t, "local", pm.selected.Value)

	m = press(newPicker("t", walletItems()), "9")
	assert.Nil(t, m.(pickerModel).selected, "out of range is ignored")
}

func TestPickerSkipsDisabled(t *testing.T) {
	items := walletItems()
	items[0].Disabled = "set injected_provider"
	items[1].Disabled = "set relay_endpoint"

	m := newPicker("t", items)
	assert.Equal(t, 2, m.cursor, "cursor starts on the first enabled item")

	var tm tea.Model = m
	tm = press(tm, "up")
	assert.Equal(t, 2, tm.(pickerModel).cursor)

	tm = press(tm, "1")
	assert.Nil(t, tm.(pickerModel).selected, "disabled item cannot be chosen")

	view := tm.View()
	assert.Contains(t, view, "set relay_endpoint")
}

func TestPickerCancel(t *testing.T) {
	var m tea.Model = newPicker("t", walletItems())
	m = press(m, "esc")
	pm := m.(pickerModel)
	assert.True(t, pm.quitting)
	assert.Nil(t, pm.selected)
	assert.Empty(t, pm.View())
}

func TestPickerViewShowsItems(t *testing.T) {
	view := newPicker("Connect with", walletItems()).View()
	assert.Contains(t, view, "Connect with")
	assert.Contains(t, view, "Injected")
	assert.Contains(t, view, "remote signer")
	assert.Contains(t, view, "▸ 1")
}

func TestPickItemRejectsEmpty(t *testing.T) {
	_, err := PickItem(context.Background(), strings.NewReader(""), io.Discard, "t", nil)
	assert.Error(t, err)
}

func TestPickItemRejectsAllDisabled(t *testing.T) {
	items := []PickerItem{{Label: "Injected", Value: "injected", Disabled: "not configured"}}
	_, err := PickItem(context.Background(), strings.NewReader(""), io.Discard, "Connect a wallet", items)
	assert.ErrorContains(t, err, "nothing available")
}

func TestPickItemReadsKeys(t *testing.T) {
	got, err := PickItem(context.Background(), strings.NewReader("2"), io.Discard, "t", walletItems())
	require.NoError(t, err)
	assert.Equal(t, "relay", got)
}

func TestPickItemCancelled(t *testing.T) {
	_, err := PickItem(context.Background(), strings.NewReader("q"), io.Discard, "t", walletItems())
	assert.ErrorIs(t, err, ErrPickCancelled)
}
