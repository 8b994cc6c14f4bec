package evmpair

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/synth-indexer/business/pricing/domain"
	"github.com/fd1az/synth-indexer/internal/apperror"
	"github.com/fd1az/synth-indexer/internal/asset"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

var (
	aaplPair = common.HexToAddress("0xaaaa000000000000000000000000000000000001")
	tslaPair = common.HexToAddress("0xbbbb000000000000000000000000000000000002")
)

// pairNode serves getReserves for a set of pools.
type pairNode struct {
	abi      abi.ABI
	reserves map[common.Address][2]*big.Int

	mu     sync.Mutex
	blocks []string
}

func newPairNode(t *testing.T) *pairNode {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(PairABI))
	require.NoError(t, err)
	return &pairNode{abi: parsed, reserves: make(map[common.Address][2]*big.Int)}
}

func (n *pairNode) Call(args map[string]interface{}, block string) (hexutil.Bytes, error) {
	n.mu.Lock()
	n.blocks = append(n.blocks, block)
	n.mu.Unlock()

	to, _ := args["to"].(string)
	r, ok := n.reserves[common.HexToAddress(to)]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return n.abi.Methods[methodGetReserves].Outputs.Pack(r[0], r[1], uint32(1700000000))
}

func units(n int64, decimals int) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
}

func newTestProvider(t *testing.T, node *pairNode, pairs []Pair, resolves *atomic.Int32) *Provider {
	t.Helper()
	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", node))
	t.Cleanup(srv.Stop)

	p, err := NewProvider(pairs, func(ctx context.Context, chain string) (RawCaller, error) {
		if resolves != nil {
			resolves.Add(1)
		}
		return rpc.DialInProc(srv), nil
	}, &mockLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestProvider_FetchPrice(t *testing.T) {
	node := newPairNode(t)
	node.reserves[aaplPair] = [2]*big.Int{units(1_000, 6), units(150_000, 6)}
	node.reserves[tslaPair] = [2]*big.Int{units(500_000, 6), units(2_000, 6)}

	pairs := []Pair{
		{Symbol: asset.MAAPL, Chain: "bsc", Address: aaplPair, BaseDecimals: 6, QuoteDecimals: 6},
		{Symbol: asset.MTSLA, Chain: "bsc", Address: tslaPair, BaseDecimals: 6, QuoteDecimals: 6, Invert: true},
	}
	var resolves atomic.Int32
	p := newTestProvider(t, node, pairs, &resolves)

	price, err := p.FetchPrice(context.Background(), asset.MAAPL, domain.Latest())
	require.NoError(t, err)
	assert.Equal(t, "150", price.String())

	price, err = p.FetchPrice(context.Background(), asset.MTSLA, domain.AtBlock(100))
	require.NoError(t, err)
	assert.Equal(t, "250", price.String())

	assert.Equal(t, int32(1), resolves.Load(), "one handle per chain")
	assert.Equal(t, []string{"latest", "0x64"}, node.blocks)
	assert.ElementsMatch(t, []asset.Symbol{asset.MAAPL, asset.MTSLA}, p.Symbols())
}

func TestProvider_NotFound(t *testing.T) {
	node := newPairNode(t)
	node.reserves[aaplPair] = [2]*big.Int{big.NewInt(0), units(10, 6)}

	p := newTestProvider(t, node, []Pair{
		{Symbol: asset.MAAPL, Chain: "ethereum", Address: aaplPair, BaseDecimals: 6, QuoteDecimals: 6},
		{Symbol: asset.MTSLA, Chain: "ethereum", Address: tslaPair, BaseDecimals: 6, QuoteDecimals: 6},
	}, nil)

	tests := []struct {
		name   string
		symbol asset.Symbol
		at     domain.At
	}{
		{"empty pool", asset.MAAPL, domain.Latest()},
		{"reverting pool", asset.MTSLA, domain.Latest()},
		{"time pinned", asset.MAAPL, domain.AtTime(1700000000)},
		{"unknown symbol", asset.MGOOGL, domain.Latest()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.FetchPrice(context.Background(), tt.symbol, tt.at)
			assert.True(t, apperror.IsCode(err, apperror.CodePriceNotFound), "got %v", err)
		})
	}
}

func TestProvider_ResolverFailureIsUnavailable(t *testing.T) {
	p, err := NewProvider([]Pair{{Symbol: asset.MAAPL, Chain: "bsc", Address: aaplPair}},
		func(ctx context.Context, chain string) (RawCaller, error) {
			return nil, apperror.New(apperror.CodeChainConnection, apperror.WithContext(chain))
		}, &mockLogger{})
	require.NoError(t, err)

	_, err = p.FetchPrice(context.Background(), asset.MAAPL, domain.Latest())
	assert.True(t, apperror.IsCode(err, apperror.CodeSourceUnavailable))
	assert.True(t, apperror.IsCode(err, apperror.CodeChainConnection))
}

func TestMidPrice_Decimals(t *testing.T) {
	tests := []struct {
		name   string
		r0, r1 *big.Int
		pair   Pair
		want   string
	}{
		{"18/6", units(2, 18), units(3_000, 6), Pair{BaseDecimals: 18, QuoteDecimals: 6}, "1500"},
		{"6/18 inverted", units(3_000, 18), units(2, 6), Pair{BaseDecimals: 6, QuoteDecimals: 18, Invert: true}, "1500"},
		{"truncated", units(3, 6), units(10, 6), Pair{BaseDecimals: 6, QuoteDecimals: 6}, "3.333333333333333333"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MidPrice(tt.r0, tt.r1, tt.pair)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}
