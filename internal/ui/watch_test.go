package ui

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWatch() BalanceWatch {
	return NewBalanceWatch("USD Coin (USDC)", "0xf39F...2266", "USDC", time.Second, func() (string, error) {
		return "1", nil
	})
}

func feed(t *testing.T, m tea.Model, msg tea.Msg) (BalanceWatch, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	w, ok := next.(BalanceWatch)
	require.True(t, ok)
	return w, cmd
}

// ---------------------------------------------------------------------------
// BalanceWatch
// ---------------------------------------------------------------------------

func TestBalanceWatchRecordsChanges(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m, cmd := feed(t, newWatch(), BalanceMsg{Balance: "12.5", At: at})
	assert.NotNil(t, cmd, "next poll should be scheduled")
	assert.Equal(t, "12.5", m.Balance())
	assert.Empty(t, m.Changes(), "first read is not a change")

	m, _ = feed(t, m, BalanceMsg{Balance: "12.5", At: at.Add(time.Second)})
	assert.Empty(t, m.Changes())

	m, _ = feed(t, m, BalanceMsg{Balance: "10", At: at.Add(2 * time.Second)})
	require.Len(t, m.Changes(), 1)
	assert.Equal(t, BalanceChange{At: at.Add(2 * time.Second), From: "12.5", To: "10"}, m.Changes()[0])

	view := m.View()
	assert.Contains(t, view, "USD Coin (USDC)")
	assert.Contains(t, view, "10 USDC")
	assert.Contains(t, view, "03:04:07")
}

func TestBalanceWatchKeepsBalanceOnError(t *testing.T) {
	m, _ := feed(t, newWatch(), BalanceMsg{Balance: "3", At: time.Now()})
	m, _ = feed(t, m, BalanceMsg{Err: errors.New("rpc down"), At: time.Now()})

	assert.Equal(t, "3", m.Balance())
	assert.Contains(t, m.View(), "rpc down")

	m, _ = feed(t, m, BalanceMsg{Balance: "3", At: time.Now()})
	assert.NotContains(t, m.View(), "rpc down")
}

func TestBalanceWatchCapsChanges(t *testing.T) {
	m := newWatch()
	for i := 0; i <= maxChanges+5; i++ {
		m, _ = feed(t, m, BalanceMsg{Balance: string(rune('a' + i)), At: time.Now()})
	}
	assert.Len(t, m.Changes(), maxChanges)
	assert.Equal(t, string(rune('a'+maxChanges+5)), m.Changes()[0].To)
}

func TestBalanceWatchPollSkippedWhileFetching(t *testing.T) {
	m := newWatch()
	_, cmd := feed(t, m, watchPollMsg{})
	assert.Nil(t, cmd)

	m, _ = feed(t, m, BalanceMsg{Balance: "1", At: time.Now()})
	m, cmd = feed(t, m, watchPollMsg{})
	assert.NotNil(t, cmd)
	assert.True(t, m.fetching)
}

func TestBalanceWatchFetchCmd(t *testing.T) {
	msg := newWatch().fetchCmd()()
	bm, ok := msg.(BalanceMsg)
	require.True(t, ok)
	assert.Equal(t, "1", bm.Balance)
	assert.NoError(t, bm.Err)
}

func TestBalanceWatchQuit(t *testing.T) {
	m, cmd := feed(t, newWatch(), tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.True(t, m.Quitting)
	assert.NotNil(t, cmd)
	assert.Empty(t, m.View())
}

func TestBalanceWatchLoadingView(t *testing.T) {
	assert.Contains(t, newWatch().View(), "loading...")
}
