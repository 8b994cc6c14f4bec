package domain

import (
	"fmt"

	"github.com/fd1az/synth-indexer/internal/apperror"
	"github.com/fd1az/synth-indexer/internal/fixedpoint"
)

// CollateralRatio is derived on every read and never stored.
type CollateralRatio struct {
	PositionID      string             `json:"positionId"`
	Ratio           fixedpoint.Decimal `json:"ratio"`
	MintValue       fixedpoint.Decimal `json:"mintValue"`
	CollateralValue fixedpoint.Decimal `json:"collateralValue"`
	ComputedAt      int64              `json:"computedAt"`
	Risk            Risk               `json:"risk"`
}

// ComputeRatio values both legs of p and divides collateral by debt.
// A position without debt has no ratio and fails with UNDEFINED_RATIO.
func ComputeRatio(p Position, assetPrice, collateralPrice fixedpoint.Decimal, computedAt int64) (CollateralRatio, error) {
	mintValue := p.MintedAmount.Mul(assetPrice)
	collateralValue := p.CollateralAmount.Mul(collateralPrice)

	if mintValue.IsZero() {
		return CollateralRatio{}, apperror.New(apperror.CodeUndefinedRatio,
			apperror.WithContextf("position %s has no mint value", p.ID))
	}

	ratio, err := collateralValue.Div(mintValue)
	if err != nil {
		return CollateralRatio{}, err
	}

	return CollateralRatio{
		PositionID:      p.ID,
		Ratio:           ratio,
		MintValue:       mintValue,
		CollateralValue: collateralValue,
		ComputedAt:      computedAt,
	}, nil
}

// String returns a compact representation for logs.
func (r CollateralRatio) String() string {
	return fmt.Sprintf("%s ratio=%s (%s/%s) %s", r.PositionID, r.Ratio, r.CollateralValue, r.MintValue, r.Risk)
}
