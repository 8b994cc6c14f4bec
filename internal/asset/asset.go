// Package asset describes the assets the indexer prices and the positions reference.
package asset

import "strings"

// Symbol is the system-wide identifier of an asset (AssetSymbol).
// It joins price series, positions and orders.
type Symbol string

// String returns the symbol text.
func (s Symbol) String() string {
	return string(s)
}

// Valid reports whether s is non-empty and contains no separators used in cache keys.
func (s Symbol) Valid() bool {
	return s != "" && !strings.ContainsAny(string(s), ":/ ")
}

// Kind classifies an asset's role in the protocol.
type Kind string

const (
	KindSynthetic  Kind = "synthetic"  // minted against collateral (mAAPL, mTSLA)
	KindStable     Kind = "stable"     // quote currency (UST)
	KindCollateral Kind = "collateral" // accepted as collateral only (aUST, LUNA)
	KindGovernance Kind = "governance" // protocol token (MIR)
)

// Asset represents the metadata of an indexed asset.
// The symbol is its identity; decimals describe raw on-chain units.
type Asset struct {
	symbol   Symbol
	name     string
	decimals uint8
	kind     Kind
}

// NewAsset creates a new Asset with the given parameters.
func NewAsset(symbol Symbol, name string, decimals uint8, kind Kind) *Asset {
	if !symbol.Valid() {
		panic("asset: invalid symbol " + string(symbol))
	}
	if decimals > 36 {
		panic("asset: suspicious decimals (>36)")
	}

	return &Asset{
		symbol:   symbol,
		name:     name,
		decimals: decimals,
		kind:     kind,
	}
}

// Symbol returns the identifier.
func (a *Asset) Symbol() Symbol {
	return a.symbol
}

// Name returns the human-readable name, falling back to the symbol.
func (a *Asset) Name() string {
	if a.name == "" {
		return string(a.symbol)
	}
	return a.name
}

// Decimals returns the number of decimal places of raw amounts.
func (a *Asset) Decimals() uint8 {
	return a.decimals
}

// Kind returns the asset's role.
func (a *Asset) Kind() Kind {
	return a.kind
}

// String returns a human-readable representation.
func (a *Asset) String() string {
	return string(a.symbol)
}
