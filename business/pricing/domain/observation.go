// Package domain contains the core domain types for the pricing context.
package domain

import (
	"fmt"
	"time"

	"github.com/fd1az/synth-indexer/internal/asset"
	"github.com/fd1az/synth-indexer/internal/fixedpoint"
)

// SourceID names a price source ("oracle", "lending", "evm:bsc", "stream").
type SourceID string

// Observation is a single timestamped price reading from one source. Immutable.
type Observation struct {
	Symbol    asset.Symbol
	Source    SourceID
	Timestamp int64 // unix seconds
	Price     fixedpoint.Decimal
}

// NewObservation creates an observation stamped at t.
func NewObservation(symbol asset.Symbol, source SourceID, t time.Time, price fixedpoint.Decimal) Observation {
	return Observation{
		Symbol:    symbol,
		Source:    source,
		Timestamp: t.Unix(),
		Price:     price,
	}
}

// String returns a compact representation for logs.
func (o Observation) String() string {
	return fmt.Sprintf("%s@%d=%s (%s)", o.Symbol, o.Timestamp, o.Price, o.Source)
}
