// Package app contains the collateral risk calculator and its ports.
package app

import (
	"context"

	"github.com/fd1az/synth-indexer/business/risk/domain"
	"github.com/fd1az/synth-indexer/internal/asset"
	"github.com/fd1az/synth-indexer/internal/fixedpoint"
)

// PositionRepository reads positions owned by the protocol indexer.
// GetPosition fails with POSITION_NOT_FOUND for unknown ids.
type PositionRepository interface {
	GetPosition(ctx context.Context, id string) (domain.Position, error)
	ListPositions(ctx context.Context, filter domain.PositionFilter) ([]domain.Position, error)
}

// PriceResolver returns the latest resolved price of a symbol.
type PriceResolver interface {
	LatestPrice(ctx context.Context, symbol asset.Symbol) (fixedpoint.Decimal, error)
}

// Reporter publishes risk band changes found by the Monitor.
type Reporter interface {
	Start(ctx context.Context) error
	Report(alert domain.Alert)
	Stop() error
}
