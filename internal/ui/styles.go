package ui

import "github.com/charmbracelet/lipgloss"

// Version is stamped into the banner.
var Version = "0.1.0"

// Color palette.
var (
	ColorSuccess   = lipgloss.Color("#00D26A") // green  : receive, success
	ColorWarning   = lipgloss.Color("#FFB800") // yellow : send, warning
	ColorError     = lipgloss.Color("#FF4444") // red    : error, danger
	ColorAddress   = lipgloss.Color("#00B4D8") // cyan   : addresses, hashes
	ColorValue     = lipgloss.Color("#FFFFFF") // white bold : token values
	ColorMeta      = lipgloss.Color("#555555") // dim gray  : timestamps, metadata
	ColorBorder    = lipgloss.Color("#1E3A5F") // dark blue : UI chrome
	ColorChain     = lipgloss.Color("#9B5DE5") // purple    : chain names
	ColorHighlight = lipgloss.Color("#F15BB5") // pink      : selected rows
)

// Base styles.
var (
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	StyleError   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	StyleAddress = lipgloss.NewStyle().Foreground(ColorAddress)
	StyleValue   = lipgloss.NewStyle().Foreground(ColorValue).Bold(true)
	StyleMeta    = lipgloss.NewStyle().Foreground(ColorMeta)
	StyleChain   = lipgloss.NewStyle().Foreground(ColorChain).Bold(true)

	StyleBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	StyleHeader = lipgloss.NewStyle().
			Foreground(ColorHighlight).
			Bold(true).
			Underline(true)

	StyleSelected = lipgloss.NewStyle().
			Background(ColorHighlight).
			Foreground(lipgloss.Color("#000000")).
			Bold(true)

	StyleTitle = lipgloss.NewStyle().
			Foreground(ColorChain).
			Bold(true).
			MarginBottom(1)

	StyleDim = lipgloss.NewStyle().Foreground(ColorMeta)
)

// Banner returns the w3link header line.
func Banner() string {
	title := StyleChain.Render("w3link")
	tagline := StyleMeta.Render("ERC-20 wallet in your terminal  ·  v" + Version)
	return title + "  " + tagline + "\n"
}

// Success formats a success message.
func Success(msg string) string { return StyleSuccess.Render("✓ " + msg) }

// Warn formats a warning message.
func Warn(msg string) string { return StyleWarning.Render("⚠ " + msg) }

// Err formats an error message.
func Err(msg string) string { return StyleError.Render("✗ " + msg) }

// Info formats a pending or informational message.
func Info(msg string) string { return StyleAddress.Render("ℹ " + msg) }

// Hint formats a dimmed suggestion.
func Hint(msg string) string { return StyleMeta.Render("→ " + msg) }

// Addr formats an address.
func Addr(a string) string { return StyleAddress.Render(a) }

// Val formats a value.
func Val(v string) string { return StyleValue.Render(v) }

// Meta formats metadata text.
func Meta(m string) string { return StyleMeta.Render(m) }

// ChainName formats a chain name.
func ChainName(c string) string { return StyleChain.Render(c) }
