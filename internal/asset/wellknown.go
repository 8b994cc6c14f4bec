package asset

// Well-known protocol symbols
const (
	UST    Symbol = "UST"
	AUST   Symbol = "aUST"
	LUNA   Symbol = "LUNA"
	MIR    Symbol = "MIR"
	MAAPL  Symbol = "mAAPL"
	MTSLA  Symbol = "mTSLA"
	MGOOGL Symbol = "mGOOGL"
	MNFLX  Symbol = "mNFLX"
	MBTC   Symbol = "mBTC"
	METH   Symbol = "mETH"
)

// Terra-native assets use 6 decimals (micro units).
const microDecimals = 6

// DefaultRegistry returns a registry pre-populated with the protocol's assets.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(NewAsset(UST, "TerraUSD", microDecimals, KindStable))
	r.Register(NewAsset(AUST, "Anchor Terra USD", microDecimals, KindCollateral))
	r.Register(NewAsset(LUNA, "Terra Luna", microDecimals, KindCollateral))
	r.Register(NewAsset(MIR, "Mirror Token", microDecimals, KindGovernance))

	r.Register(NewAsset(MAAPL, "Mirror Apple", microDecimals, KindSynthetic))
	r.Register(NewAsset(MTSLA, "Mirror Tesla", microDecimals, KindSynthetic))
	r.Register(NewAsset(MGOOGL, "Mirror Alphabet", microDecimals, KindSynthetic))
	r.Register(NewAsset(MNFLX, "Mirror Netflix", microDecimals, KindSynthetic))
	r.Register(NewAsset(MBTC, "Mirror Bitcoin", microDecimals, KindSynthetic))
	r.Register(NewAsset(METH, "Mirror Ether", microDecimals, KindSynthetic))

	return r
}
