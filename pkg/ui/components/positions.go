package components

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/synth-indexer/internal/fixedpoint"
)

// PositionRow is one valued position.
type PositionRow struct {
	ID              string
	Asset           string
	CollateralToken string
	Ratio           fixedpoint.Decimal
	MintValue       fixedpoint.Decimal
	CollateralValue fixedpoint.Decimal
	Risk            string // safe | warning | liquidatable
}

// PositionsComponent renders a scrollable list of positions, riskiest first.
type PositionsComponent struct {
	rows      []PositionRow
	undefined int
	unpriced  int
	offset    int
	visible   int
}

// NewPositionsComponent creates a component showing visible rows at a time.
func NewPositionsComponent(visible int) *PositionsComponent {
	if visible <= 0 {
		visible = 10
	}
	return &PositionsComponent{
		rows:    make([]PositionRow, 0),
		visible: visible,
	}
}

// Update replaces the rows. undefined counts positions without debt, unpriced those
// whose assets have no price yet.
func (p *PositionsComponent) Update(rows []PositionRow, undefined, unpriced int) {
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b PositionRow) int { return a.Ratio.Cmp(b.Ratio) })

	p.rows = sorted
	p.undefined = undefined
	p.unpriced = unpriced
	p.clampOffset()
}

// Rows returns the rows in display order.
func (p *PositionsComponent) Rows() []PositionRow {
	return p.rows
}

// Offset returns the index of the first visible row.
func (p *PositionsComponent) Offset() int {
	return p.offset
}

// ScrollUp moves the window one row up.
func (p *PositionsComponent) ScrollUp() {
	p.offset--
	p.clampOffset()
}

// ScrollDown moves the window one row down.
func (p *PositionsComponent) ScrollDown() {
	p.offset++
	p.clampOffset()
}

func (p *PositionsComponent) clampOffset() {
	maxOffset := len(p.rows) - p.visible
	if maxOffset < 0 {
		maxOffset = 0
	}
	p.offset = min(max(p.offset, 0), maxOffset)
}

// View renders the positions component.
func (p *PositionsComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("POSITIONS (%d)", len(p.rows))))
	if p.undefined > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %d without debt", p.undefined)))
	}
	if p.unpriced > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %d awaiting price", p.unpriced)))
	}
	b.WriteString("\n")

	if len(p.rows) == 0 {
		b.WriteString(dimStyle.Render("No positions to value yet..."))
		return b.String()
	}

	b.WriteString("┌──────────────┬─────────┬─────────┬──────────┬──────────────┐\n")
	b.WriteString("│   Position   │  Asset  │ Coll.   │  Ratio   │     Risk     │\n")
	b.WriteString("├──────────────┼─────────┼─────────┼──────────┼──────────────┤\n")

	end := min(p.offset+p.visible, len(p.rows))
	for _, row := range p.rows[p.offset:end] {
		b.WriteString(fmt.Sprintf("│ %-12s │ %-7s │ %-7s │ %8s │ %s │\n",
			truncate(row.ID, 12),
			truncate(row.Asset, 7),
			truncate(row.CollateralToken, 7),
			row.Ratio.StringFixed(3),
			riskStyle(row.Risk).Render(fmt.Sprintf("%-12s", row.Risk)),
		))
	}

	b.WriteString("└──────────────┴─────────┴─────────┴──────────┴──────────────┘")
	if len(p.rows) > p.visible {
		b.WriteString(dimStyle.Render(fmt.Sprintf("\n  %d-%d of %d", p.offset+1, end, len(p.rows))))
	}
	return b.String()
}

func riskStyle(risk string) lipgloss.Style {
	switch risk {
	case "liquidatable":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	case "warning":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
