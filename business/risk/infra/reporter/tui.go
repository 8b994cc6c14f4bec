package reporter

import (
	"context"

	"github.com/fd1az/synth-indexer/business/risk/domain"
	"github.com/fd1az/synth-indexer/pkg/ui"
)

// TUI forwards alerts to the dashboard log pane.
type TUI struct {
	send func(msg any)
}

// NewTUI creates a TUI reporter sending through ui.Send.
func NewTUI() *TUI {
	return &TUI{send: func(msg any) { ui.Send(msg) }}
}

// Start is a no-op; the program is owned by main.
func (r *TUI) Start(ctx context.Context) error { return nil }

// Report sends the alert as a log line.
func (r *TUI) Report(a domain.Alert) {
	level := "info"
	if a.Worsened() {
		level = "warn"
		if a.To == domain.RiskLiquidatable {
			level = "error"
		}
	}
	r.send(ui.LogMsg{Level: level, Message: a.String()})
}

// Stop is a no-op.
func (r *TUI) Stop() error { return nil }
