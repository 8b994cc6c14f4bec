package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// CheckStatus is the outcome of one health check.
type CheckStatus struct {
	Name    string
	Healthy bool
	Message string
}

// StatusComponent renders the health checks registered by the modules.
type StatusComponent struct {
	checks []CheckStatus
}

// NewStatusComponent creates a new status component.
func NewStatusComponent() *StatusComponent {
	return &StatusComponent{
		checks: make([]CheckStatus, 0),
	}
}

// Update replaces the check results.
func (s *StatusComponent) Update(checks []CheckStatus) {
	s.checks = checks
}

// Healthy reports whether every check passed.
func (s *StatusComponent) Healthy() bool {
	for _, c := range s.checks {
		if !c.Healthy {
			return false
		}
	}
	return true
}

// View renders the status component.
func (s *StatusComponent) View() string {
	if len(s.checks) == 0 {
		return "No health checks"
	}

	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	badStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var b strings.Builder
	for _, c := range s.checks {
		status := okStyle.Render("● ok")
		if !c.Healthy {
			status = badStyle.Render("○ degraded")
		}

		line := fmt.Sprintf("├─ %s: %s", c.Name, status)
		if c.Message != "" {
			line += dimStyle.Render(" (" + c.Message + ")")
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
