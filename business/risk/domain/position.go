// Package domain contains the core domain types for the risk context.
package domain

import (
	"fmt"

	"github.com/fd1az/synth-indexer/internal/asset"
	"github.com/fd1az/synth-indexer/internal/fixedpoint"
)

// Position is a collateralized debt position. It is written by the protocol indexer
// and only read here.
type Position struct {
	ID               string
	Asset            asset.Symbol
	MintedAmount     fixedpoint.Decimal
	CollateralAmount fixedpoint.Decimal
	CollateralToken  asset.Symbol
}

// String returns a compact representation for logs.
func (p Position) String() string {
	return fmt.Sprintf("%s: %s %s against %s %s",
		p.ID, p.MintedAmount, p.Asset, p.CollateralAmount, p.CollateralToken)
}

// PositionFilter narrows a position listing. Zero fields match everything.
type PositionFilter struct {
	Asset           asset.Symbol
	CollateralToken asset.Symbol
	Limit           int
}

// Matches reports whether p passes the filter, ignoring Limit.
func (f PositionFilter) Matches(p Position) bool {
	if f.Asset != "" && p.Asset != f.Asset {
		return false
	}
	if f.CollateralToken != "" && p.CollateralToken != f.CollateralToken {
		return false
	}
	return true
}
