package domain

import (
	"fmt"

	"github.com/fd1az/synth-indexer/internal/fixedpoint"
)

// Alert reports that a position moved to another risk band between two scans.
type Alert struct {
	PositionID string
	From       Risk // empty on the first scan that sees the position
	To         Risk
	Ratio      fixedpoint.Decimal
	At         int64
}

// Worsened reports whether the position moved toward liquidation.
func (a Alert) Worsened() bool {
	return a.To.severity() > a.From.severity()
}

func (a Alert) String() string {
	return fmt.Sprintf("%s: %s -> %s (ratio %s)", a.PositionID, a.From, a.To, a.Ratio)
}
