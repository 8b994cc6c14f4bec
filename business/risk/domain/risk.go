package domain

import (
	"github.com/fd1az/synth-indexer/internal/asset"
	"github.com/fd1az/synth-indexer/internal/fixedpoint"
)

// Risk classifies a collateral ratio against the asset's minimum.
type Risk string

const (
	// RiskSafe means the ratio clears the minimum plus the safety margin.
	RiskSafe Risk = "safe"

	// RiskWarning means the ratio is above the minimum but inside the margin.
	RiskWarning Risk = "warning"

	// RiskLiquidatable means the ratio is below the minimum.
	RiskLiquidatable Risk = "liquidatable"
)

// String returns the label used in logs and the dashboard.
func (r Risk) String() string {
	if r == "" {
		return "unknown"
	}
	return string(r)
}

// Thresholds holds the minimum collateral ratios.
type Thresholds struct {
	DefaultMin   fixedpoint.Decimal
	PerAsset     map[asset.Symbol]fixedpoint.Decimal
	SafetyMargin fixedpoint.Decimal // fraction of the minimum, 0.1 = 10%
}

// MinRatio returns the minimum ratio for a minted asset.
func (t Thresholds) MinRatio(symbol asset.Symbol) fixedpoint.Decimal {
	if m, ok := t.PerAsset[symbol]; ok {
		return m
	}
	return t.DefaultMin
}

// Classify grades ratio for a position minting symbol.
func (t Thresholds) Classify(symbol asset.Symbol, ratio fixedpoint.Decimal) Risk {
	minRatio := t.MinRatio(symbol)
	if ratio.LessThan(minRatio) {
		return RiskLiquidatable
	}
	warnBelow := minRatio.Mul(fixedpoint.One.Add(t.SafetyMargin))
	if ratio.LessThan(warnBelow) {
		return RiskWarning
	}
	return RiskSafe
}

func (r Risk) severity() int {
	switch r {
	case RiskSafe:
		return 1
	case RiskWarning:
		return 2
	case RiskLiquidatable:
		return 3
	}
	return 0
}
