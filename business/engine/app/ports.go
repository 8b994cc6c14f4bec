// Package app exposes the engine's read operations to outer layers.
package app

import (
	"context"

	marketDomain "github.com/fd1az/synth-indexer/business/market/domain"
	riskApp "github.com/fd1az/synth-indexer/business/risk/app"
	riskDomain "github.com/fd1az/synth-indexer/business/risk/domain"
	"github.com/fd1az/synth-indexer/internal/asset"
	"github.com/fd1az/synth-indexer/internal/fixedpoint"
)

// History reads stored candles.
type History interface {
	Query(ctx context.Context, symbol asset.Symbol, interval marketDomain.Interval, from, to int64) ([]marketDomain.Candle, error)
	LatestCandle(ctx context.Context, symbol asset.Symbol, interval marketDomain.Interval) (marketDomain.Candle, error)
	LatestPrice(ctx context.Context, symbol asset.Symbol) (fixedpoint.Decimal, error)
}

// Risk computes collateral ratios.
type Risk interface {
	ComputeCollateralRatio(ctx context.Context, positionID string) (riskDomain.CollateralRatio, error)
	ScanPositions(ctx context.Context, filter riskDomain.PositionFilter) (riskApp.ScanResult, error)
}

// IngestionStatus reports candle persistence health.
type IngestionStatus interface {
	Lost() int64
}
