package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// maxChanges caps the change log kept by a BalanceWatch.
const maxChanges = 20

// BalanceMsg is the result of one balance read.
type BalanceMsg struct {
	Balance string
	Err     error
	At      time.Time
}

// BalanceChange is a balance movement seen between two reads.
type BalanceChange struct {
	At       time.Time
	From, To string
}

type watchPollMsg struct{}

type watchTickMsg struct{}

// BalanceWatch is the Bubble Tea model for the live token balance view.
type BalanceWatch struct {
	Title   string
	Account string
	Symbol  string

	interval time.Duration
	fetch    func() (string, error)

	balance  string
	changes  []BalanceChange
	updated  time.Time
	err      string
	fetching bool
	frame    int
	Quitting bool
}

// NewBalanceWatch returns a view that calls fetch every interval.
func NewBalanceWatch(title, account, symbol string, interval time.Duration, fetch func() (string, error)) BalanceWatch {
	return BalanceWatch{
		Title:    title,
		Account:  account,
		Symbol:   symbol,
		interval: interval,
		fetch:    fetch,
		fetching: true,
	}
}

// Balance is the last balance read, empty before the first one.
func (m BalanceWatch) Balance() string { return m.balance }

// Changes lists balance movements, newest first.
func (m BalanceWatch) Changes() []BalanceChange { return m.changes }

func (m BalanceWatch) Init() tea.Cmd {
	return tea.Batch(m.fetchCmd(), watchSpinTick())
}

func (m BalanceWatch) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.Quitting = true
			return m, tea.Quit
		case "r":
			if !m.fetching {
				m.fetching = true
				return m, m.fetchCmd()
			}
		}

	case watchTickMsg:
		m.frame = (m.frame + 1) % len(spinnerFrames)
		return m, watchSpinTick()

	case watchPollMsg:
		if m.fetching {
			return m, nil
		}
		m.fetching = true
		return m, m.fetchCmd()

	case BalanceMsg:
		m.fetching = false
		if msg.Err != nil {
			m.err = msg.Err.Error()
		} else {
			m.err = ""
			if m.balance != "" && msg.Balance != m.balance {
				m.changes = append([]BalanceChange{{At: msg.At, From: m.balance, To: msg.Balance}}, m.changes...)
				if len(m.changes) > maxChanges {
					m.changes = m.changes[:maxChanges]
				}
			}
			m.balance = msg.Balance
			m.updated = msg.At
		}
		return m, tea.Tick(m.interval, func(time.Time) tea.Msg { return watchPollMsg{} })
	}

	return m, nil
}

func (m BalanceWatch) View() string {
	if m.Quitting {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(StyleTitle.Render(m.Title) + "\n")
	status := "q quit · r refresh"
	if !m.updated.IsZero() {
		status = fmt.Sprintf("Updated %s · %s", m.updated.Format("15:04:05"), status)
	}
	if m.fetching {
		status = StyleChain.Render(spinnerFrames[m.frame]) + " " + status
	}
	sb.WriteString(StyleMeta.Render(status) + "\n\n")

	sb.WriteString(KeyValueBlock("", [][2]string{
		{"Account", Addr(m.Account)},
		{"Balance", m.balanceText()},
	}) + "\n")

	if m.err != "" {
		sb.WriteString(Err(m.err) + "\n")
	}

	if len(m.changes) > 0 {
		t := NewTable([]Column{
			{Title: "Time", Width: 8},
			{Title: "From", Width: 18},
			{Title: "To", Width: 18},
		})
		for _, c := range m.changes {
			t.AddRow(Row{c.At.Format("15:04:05"), c.From, Val(c.To)})
		}
		sb.WriteString("\n" + t.Render() + "\n")
	}
	return sb.String()
}

func (m BalanceWatch) balanceText() string {
	if m.balance == "" {
		return Meta("loading...")
	}
	return Val(m.balance + " " + m.Symbol)
}

func (m BalanceWatch) fetchCmd() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		bal, err := fetch()
		return BalanceMsg{Balance: bal, Err: err, At: time.Now()}
	}
}

func watchSpinTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(time.Time) tea.Msg {
		return watchTickMsg{}
	})
}

// RunBalanceWatch runs m until the user quits or ctx is done.
func RunBalanceWatch(ctx context.Context, m BalanceWatch, in io.Reader, out io.Writer) error {
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithInput(in), tea.WithOutput(out))
	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
