// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/synth-indexer/internal/fixedpoint"
)

// CandleView is the last sealed candle of a symbol.
type CandleView struct {
	Interval    string
	BucketStart int64
	Open        fixedpoint.Decimal
	High        fixedpoint.Decimal
	Low         fixedpoint.Decimal
	Close       fixedpoint.Decimal
	Count       int64
}

// PriceRow represents a row in the price table.
type PriceRow struct {
	Symbol string
	Price  fixedpoint.Decimal
	Candle *CandleView
	Err    string // set when no price could be resolved
}

// PricesComponent renders latest prices and the last candle per symbol.
type PricesComponent struct {
	rows     []PriceRow
	interval string
	places   int32
}

// NewPricesComponent creates a new prices component rendering places fractional digits.
func NewPricesComponent(places int32) *PricesComponent {
	return &PricesComponent{
		rows:   make([]PriceRow, 0),
		places: places,
	}
}

// Update replaces the price data.
func (p *PricesComponent) Update(interval string, rows []PriceRow) {
	p.interval = interval
	p.rows = rows
}

// Len returns the number of symbols shown.
func (p *PricesComponent) Len() int {
	return len(p.rows)
}

// View renders the prices component.
func (p *PricesComponent) View() string {
	if len(p.rows) == 0 {
		return "Waiting for price data..."
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	upStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	downStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("LATEST PRICES (%s candles)", p.interval)))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("  %-8s  %14s  %14s  %14s  %5s  %8s\n",
		"Symbol", "Price", "High", "Low", "Ticks", "Bucket"))
	b.WriteString(dimStyle.Render("  "+strings.Repeat("─", 72)) + "\n")

	for _, row := range p.rows {
		if row.Err != "" {
			b.WriteString(fmt.Sprintf("  %-8s  %s\n", row.Symbol, warnStyle.Render(row.Err)))
			continue
		}

		price := fmt.Sprintf("%14s", row.Price.StringFixed(p.places))
		high, low, ticks, bucket := "-", "-", "-", "-"
		if c := row.Candle; c != nil {
			switch c.Close.Cmp(c.Open) {
			case 1:
				price = upStyle.Render(price)
			case -1:
				price = downStyle.Render(price)
			}
			high = c.High.StringFixed(p.places)
			low = c.Low.StringFixed(p.places)
			ticks = fmt.Sprintf("%d", c.Count)
			bucket = time.Unix(c.BucketStart, 0).UTC().Format("15:04")
		}

		b.WriteString(fmt.Sprintf("  %-8s  %s  %14s  %14s  %5s  %8s\n",
			row.Symbol, price, high, low, ticks, dimStyle.Render(bucket)))
	}

	return b.String()
}
