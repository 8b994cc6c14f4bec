// Package app contains the candle builder and the history read service.
package app

import (
	"context"

	"github.com/fd1az/synth-indexer/business/market/domain"
	"github.com/fd1az/synth-indexer/internal/asset"
)

// HistoryStore persists sealed candles.
//
// Append fails with DUPLICATE_BUCKET when the (symbol, interval, bucketStart) row exists and
// never overwrites it. Query returns candles with from <= bucketStart < to, ascending.
// Latest fails with PRICE_NOT_FOUND when the series is empty.
type HistoryStore interface {
	Append(ctx context.Context, c domain.Candle) error
	Query(ctx context.Context, symbol asset.Symbol, interval domain.Interval, from, to int64) ([]domain.Candle, error)
	Latest(ctx context.Context, symbol asset.Symbol, interval domain.Interval) (domain.Candle, error)
}

// Pinger is implemented by stores backed by a remote resource.
type Pinger interface {
	Ping(ctx context.Context) error
}
