// Package ui provides the Bubble Tea dashboard of the indexer.
package ui

import (
	"context"
	"time"

	"github.com/fd1az/synth-indexer/pkg/ui/components"
)

// Message types for TUI updates

// SnapshotMsg carries one refresh of everything the dashboard shows.
// All values are computed by the engine; the UI only renders them.
type SnapshotMsg struct {
	Interval    string
	Prices      []components.PriceRow
	Positions   []components.PositionRow
	Undefined   int
	Unpriced    int
	Checks      []components.CheckStatus
	LostCandles int64
	At          time.Time
}

// Fetcher produces a snapshot. It is called from a tea.Cmd, off the UI goroutine.
type Fetcher func(ctx context.Context) (SnapshotMsg, error)

// RefreshMsg asks for a new snapshot.
type RefreshMsg struct{}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// StartModulesMsg signals that modules should start loading.
type StartModulesMsg struct{}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}

// StartupMsg is sent during application startup to show progress.
type StartupMsg struct {
	Step    string // config | chains | storage | sources | ingestion
	Status  string // "connecting", "done", "failed"
	Message string // Optional message
}
