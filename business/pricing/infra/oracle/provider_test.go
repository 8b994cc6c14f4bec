package oracle

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
	"github.com/ethereum/go-ethereum/ethclient"
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

var feedAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")

type round struct {
	answer    int64
	updatedAt int64
}

// aggregator serves eth_call for a single in-process feed.
type aggregator struct {
	abi      abi.ABI
	decimals uint8
	rounds   map[int64]round
	latest   int64
	revert   atomic.Bool
	down     atomic.Bool

	decimalsCalls atomic.Int32

	mu     sync.Mutex
	blocks []string
}

func newAggregator(t *testing.T) *aggregator {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(AggregatorV3ABI))
	require.NoError(t, err)
	return &aggregator{
		abi:      parsed,
		decimals: 8,
		rounds: map[int64]round{
			1: {answer: 150_000_000_00, updatedAt: 100},
			2: {answer: 151_000_000_00, updatedAt: 200},
			3: {answer: 153_250_000_000, updatedAt: 300},
		},
		latest: 3,
	}
}

func (a *aggregator) Call(args map[string]interface{}, block string) (hexutil.Bytes, error) {
	a.mu.Lock()
	a.blocks = append(a.blocks, block)
	a.mu.Unlock()

	if a.down.Load() {
		return nil, errors.New("header not found")
	}
	if a.revert.Load() {
		return nil, errors.New("execution reverted")
	}

	raw, _ := args["input"].(string)
	if raw == "" {
		raw, _ = args["data"].(string)
	}
	data, err := hexutil.Decode(raw)
	if err != nil || len(data) < 4 {
		return nil, errors.New("bad input")
	}

	method, err := a.abi.MethodById(data[:4])
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case methodDecimals:
		a.decimalsCalls.Add(1)
		return method.Outputs.Pack(a.decimals)
	case methodLatestRoundData:
		return a.packRound(method, a.latest)
	case methodGetRoundData:
		in, err := method.Inputs.Unpack(data[4:])
		if err != nil {
			return nil, err
		}
		id := in[0].(*big.Int).Int64()
		if _, ok := a.rounds[id]; !ok {
			return nil, errors.New("execution reverted: no data present")
		}
		return a.packRound(method, id)
	}
	return nil, errors.New("unknown method")
}

func (a *aggregator) packRound(method *abi.Method, id int64) ([]byte, error) {
	r := a.rounds[id]
	return method.Outputs.Pack(
		big.NewInt(id),
		big.NewInt(r.answer),
		big.NewInt(r.updatedAt),
		big.NewInt(r.updatedAt),
		big.NewInt(id),
	)
}

func (a *aggregator) lastBlock() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.blocks[len(a.blocks)-1]
}

func newTestProvider(t *testing.T, agg *aggregator, resolves *atomic.Int32) *Provider {
	t.Helper()
	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", agg))
	t.Cleanup(srv.Stop)

	resolve := func(ctx context.Context) (ContractCaller, error) {
		if resolves != nil {
			resolves.Add(1)
		}
		return ethclient.NewClient(rpc.DialInProc(srv)), nil
	}

	p, err := NewProvider(ProviderConfig{
		Chain: "ethereum",
		Feeds: []Feed{{Symbol: asset.MAAPL, Address: feedAddr}},
	}, resolve, &mockLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestProvider_LatestScalesByFeedDecimals(t *testing.T) {
	agg := newAggregator(t)
	var resolves atomic.Int32
	p := newTestProvider(t, agg, &resolves)

	for i := 0; i < 3; i++ {
		price, err := p.FetchPrice(context.Background(), asset.MAAPL, domain.Latest())
		require.NoError(t, err)
		assert.Equal(t, "1532.5", price.String())
	}

	assert.Equal(t, int32(1), resolves.Load(), "client resolved once")
	assert.Equal(t, int32(1), agg.decimalsCalls.Load(), "decimals cached")
	assert.Equal(t, "latest", agg.lastBlock())
	assert.Equal(t, []asset.Symbol{asset.MAAPL}, p.Symbols())
}

func TestProvider_BlockPinnedCall(t *testing.T) {
	agg := newAggregator(t)
	p := newTestProvider(t, agg, nil)

	_, err := p.FetchPrice(context.Background(), asset.MAAPL, domain.AtBlock(100))
	require.NoError(t, err)
	assert.Equal(t, "0x64", agg.lastBlock())
}

func TestProvider_TimePinnedWalksRounds(t *testing.T) {
	agg := newAggregator(t)
	p := newTestProvider(t, agg, nil)

	tests := []struct {
		name string
		ts   int64
		want string
	}{
		{"after latest", 1000, "1532.5"},
		{"between rounds", 250, "151"},
		{"exact update", 100, "150"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, err := p.FetchPrice(context.Background(), asset.MAAPL, domain.AtTime(tt.ts))
			require.NoError(t, err)
			assert.Equal(t, tt.want, price.String())
		})
	}

	_, err := p.FetchPrice(context.Background(), asset.MAAPL, domain.AtTime(50))
	assert.True(t, apperror.IsCode(err, apperror.CodePriceNotFound))
}

func TestProvider_NotFoundCases(t *testing.T) {
	t.Run("unknown symbol", func(t *testing.T) {
		p := newTestProvider(t, newAggregator(t), nil)
		_, err := p.FetchPrice(context.Background(), asset.MTSLA, domain.Latest())
		assert.True(t, apperror.IsCode(err, apperror.CodePriceNotFound))
	})

	t.Run("revert", func(t *testing.T) {
		agg := newAggregator(t)
		agg.revert.Store(true)
		p := newTestProvider(t, agg, nil)
		_, err := p.FetchPrice(context.Background(), asset.MAAPL, domain.Latest())
		assert.True(t, apperror.IsCode(err, apperror.CodePriceNotFound))
	})

	t.Run("non-positive answer", func(t *testing.T) {
		agg := newAggregator(t)
		agg.rounds[3] = round{answer: -1, updatedAt: 300}
		p := newTestProvider(t, agg, nil)
		_, err := p.FetchPrice(context.Background(), asset.MAAPL, domain.Latest())
		assert.True(t, apperror.IsCode(err, apperror.CodePriceNotFound))
	})
}

func TestProvider_UnavailableCases(t *testing.T) {
	t.Run("node error", func(t *testing.T) {
		agg := newAggregator(t)
		agg.down.Store(true)
		p := newTestProvider(t, agg, nil)
		_, err := p.FetchPrice(context.Background(), asset.MAAPL, domain.Latest())
		assert.True(t, apperror.IsCode(err, apperror.CodeSourceUnavailable))
	})

	t.Run("resolver error", func(t *testing.T) {
		p, err := NewProvider(ProviderConfig{Feeds: []Feed{{Symbol: asset.MAAPL, Address: feedAddr}}},
			func(ctx context.Context) (ContractCaller, error) { return nil, errors.New("dial refused") },
			&mockLogger{})
		require.NoError(t, err)
		defer p.Close()

		_, err = p.FetchPrice(context.Background(), asset.MAAPL, domain.Latest())
		assert.True(t, apperror.IsCode(err, apperror.CodeSourceUnavailable))
	})

	t.Run("breaker opens", func(t *testing.T) {
		agg := newAggregator(t)
		agg.down.Store(true)
		p := newTestProvider(t, agg, nil)
		for i := 0; i < 6; i++ {
			_, err := p.FetchPrice(context.Background(), asset.MAAPL, domain.Latest())
			assert.True(t, apperror.IsCode(err, apperror.CodeSourceUnavailable))
		}
		_, err := p.FetchPrice(context.Background(), asset.MAAPL, domain.Latest())
		assert.True(t, apperror.IsCode(err, apperror.CodeCircuitOpen))
	})
}
