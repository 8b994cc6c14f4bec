package asset

import (
	"math/big"

	"github.com/fd1az/synth-indexer/internal/apperror"
	"github.com/fd1az/synth-indexer/internal/fixedpoint"
)

// FromRaw converts an amount in smallest units (e.g. uusd, wei) into a decimal quantity.
func FromRaw(raw *big.Int, decimals uint8) fixedpoint.Decimal {
	return fixedpoint.NewFromBigInt(raw, -int32(decimals))
}

// ParseRaw parses a base-10 integer string of smallest units, as stored by the chain indexer.
func ParseRaw(raw string, decimals uint8) (fixedpoint.Decimal, error) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return fixedpoint.Zero, apperror.New(apperror.CodeInvalidDecimal,
			apperror.WithContextf("raw amount %q", raw))
	}
	return FromRaw(v, decimals), nil
}

// Quantity converts a raw amount of this asset into a decimal quantity.
func (a *Asset) Quantity(raw *big.Int) fixedpoint.Decimal {
	return FromRaw(raw, a.decimals)
}
