package views

import "github.com/charmbracelet/lipgloss"

var (
	ColorPrimary = lipgloss.Color("63")
	ColorSuccess = lipgloss.Color("42")
	ColorError   = lipgloss.Color("196")
	ColorWarning = lipgloss.Color("214")
	ColorMuted   = lipgloss.Color("241")

	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)

	StepPendingStyle    = lipgloss.NewStyle().Foreground(ColorMuted)
	StepInProgressStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	StepCompletedStyle  = lipgloss.NewStyle().Foreground(ColorSuccess)
	StepFailedStyle     = lipgloss.NewStyle().Foreground(ColorError)

	StatusDefaultStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	StatusThinkingStyle = lipgloss.NewStyle().Foreground(ColorPrimary)
	StatusReadyStyle    = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	StatusErrorStyle    = lipgloss.NewStyle().Foreground(ColorError).Bold(true)

	DiagnosticBoxStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorError).
				Padding(0, 1)
)
