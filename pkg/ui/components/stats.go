package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Stats holds counters for display.
type Stats struct {
	Refreshes    int64
	Symbols      int
	Positions    int
	Warning      int
	Liquidatable int
	LostCandles  int64
	Errors       int64
}

// StatsComponent renders statistics.
type StatsComponent struct {
	stats Stats
}

// NewStatsComponent creates a new stats component.
func NewStatsComponent() *StatsComponent {
	return &StatsComponent{}
}

// Update updates the statistics.
func (s *StatsComponent) Update(stats Stats) {
	s.stats = stats
}

// Stats returns the current statistics.
func (s *StatsComponent) Stats() Stats {
	return s.stats
}

// View renders the stats component.
func (s *StatsComponent) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	count := func(n int64) string {
		if n > 0 {
			return errorStyle.Render(fmt.Sprintf("%d", n))
		}
		return valueStyle.Render(fmt.Sprintf("%d", n))
	}

	return style.Render("STATS") + "\n" +
		fmt.Sprintf("Symbols: %s  │  Positions: %s  │  Warning: %s  │  Liquidatable: %s\n",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Symbols)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Positions)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Warning)),
			count(int64(s.stats.Liquidatable)),
		) +
		fmt.Sprintf("Refreshes: %s  │  Lost candles: %s  │  Errors: %s",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Refreshes)),
			count(s.stats.LostCandles),
			count(s.stats.Errors),
		)
}
