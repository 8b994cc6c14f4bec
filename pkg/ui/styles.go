package ui

import "github.com/charmbracelet/lipgloss"

// Palette. Components repeat these hex values since they cannot import ui.
var (
	ColorPrimary   = lipgloss.Color("#7C3AED")
	ColorSecondary = lipgloss.Color("#10B981") // safe / healthy
	ColorWarning   = lipgloss.Color("#F59E0B")
	ColorDanger    = lipgloss.Color("#EF4444") // liquidatable / degraded
	ColorMuted     = lipgloss.Color("#6B7280")
	ColorBorder    = lipgloss.Color("#374151")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(ColorPrimary).
			Padding(0, 2)

	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).Padding(0, 1)

	// BoxStyle frames the two dashboard columns.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	HelpStyle  = lipgloss.NewStyle().Foreground(ColorMuted).Padding(0, 1)
	MutedValue = lipgloss.NewStyle().Foreground(ColorMuted)
	ErrorValue = lipgloss.NewStyle().Foreground(ColorDanger)
)

// Status bar.
var (
	StatusHealthy  = lipgloss.NewStyle().Bold(true).Foreground(ColorSecondary)
	StatusDegraded = lipgloss.NewStyle().Bold(true).Foreground(ColorDanger)
	StatusPaused   = lipgloss.NewStyle().Bold(true).Foreground(ColorWarning)
)
