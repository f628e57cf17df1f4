package cmd

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorAccent  = lipgloss.Color("#EC4899")
	colorOK      = lipgloss.Color("#10B981")
	colorError   = lipgloss.Color("#EF4444")
	colorMuted   = lipgloss.Color("#6B7280")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	promptStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	okStyle = lipgloss.NewStyle().
		Foreground(colorOK)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	currentStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	cellStyle = lipgloss.NewStyle().
			PaddingRight(2)
)
