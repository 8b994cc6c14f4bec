// Package app contains the ingestion scheduler and the pricing ports.
package app

import (
	"context"

	"github.com/fd1az/synth-indexer/business/pricing/domain"
	"github.com/fd1az/synth-indexer/internal/asset"
	"github.com/fd1az/synth-indexer/internal/fixedpoint"
)

// PriceSource normalizes one provider into decimal prices.
//
// FetchPrice fails with SOURCE_UNAVAILABLE on network/RPC failure or timeout and with
// PRICE_NOT_FOUND when the provider has no data at the requested point. Implementations
// do not retry. Clients are resolved lazily and released by Close.
type PriceSource interface {
	ID() domain.SourceID
	Symbols() []asset.Symbol
	FetchPrice(ctx context.Context, symbol asset.Symbol, at domain.At) (fixedpoint.Decimal, error)
	Close() error
}

// ObservationSink consumes observations produced by the scheduler.
type ObservationSink interface {
	Observe(ctx context.Context, obs domain.Observation)
}
