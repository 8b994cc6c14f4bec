// Package evmpair prices synthetic assets from AMM pair reserves on any EVM chain.
package evmpair

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/synth-indexer/business/pricing/app"
	"github.com/fd1az/synth-indexer/business/pricing/domain"
	"github.com/fd1az/synth-indexer/internal/apm"
	"github.com/fd1az/synth-indexer/internal/apperror"
	"github.com/fd1az/synth-indexer/internal/asset"
	"github.com/fd1az/synth-indexer/internal/circuitbreaker"
	"github.com/fd1az/synth-indexer/internal/fixedpoint"
	"github.com/fd1az/synth-indexer/internal/logger"
)

const (
	tracerName = "github.com/fd1az/synth-indexer/business/pricing/infra/evmpair"
	meterName  = "github.com/fd1az/synth-indexer/business/pricing/infra/evmpair"

	// SourceID identifies this source in observations and metrics.
	SourceID domain.SourceID = "evmpair"
)

var _ app.PriceSource = (*Provider)(nil)

// RawCaller issues JSON-RPC calls. *rpc.Client satisfies it.
type RawCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// Resolver returns the RPC handle of a chain. It is invoked lazily once per chain.
type Resolver func(ctx context.Context, chain string) (RawCaller, error)

// Pair locates the pool that prices a symbol.
type Pair struct {
	Symbol        asset.Symbol
	Chain         string
	Address       common.Address
	BaseDecimals  uint8
	QuoteDecimals uint8
	Invert        bool // the priced asset is token1
}

type chainHandle struct {
	caller RawCaller
	cb     *circuitbreaker.CircuitBreaker[hexutil.Bytes]
}

type providerMetrics struct {
	calls     metric.Int64Counter
	callError metric.Int64Counter
}

// Provider implements app.PriceSource over pair reserves.
type Provider struct {
	pairs    map[asset.Symbol]Pair
	symbols  []asset.Symbol
	pairABI  abi.ABI
	calldata hexutil.Bytes

	resolve  Resolver
	chains   map[string]*chainHandle
	chainsMu sync.Mutex

	logger  logger.LoggerInterface
	tracer  apm.Tracer
	metrics *providerMetrics
}

// NewProvider creates the pair source.
func NewProvider(pairs []Pair, resolve Resolver, log logger.LoggerInterface) (*Provider, error) {
	parsedABI, err := abi.JSON(strings.NewReader(PairABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pair ABI: %w", err)
	}
	data, err := parsedABI.Pack(methodGetReserves)
	if err != nil {
		return nil, fmt.Errorf("failed to encode getReserves: %w", err)
	}
	if resolve == nil {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("evmpair: nil resolver"))
	}

	p := &Provider{
		pairs:    make(map[asset.Symbol]Pair, len(pairs)),
		pairABI:  parsedABI,
		calldata: data,
		resolve:  resolve,
		chains:   make(map[string]*chainHandle),
		logger:   log,
		tracer:   apm.NewTracer(tracerName),
	}
	for _, pr := range pairs {
		p.pairs[pr.Symbol] = pr
		p.symbols = append(p.symbols, pr.Symbol)
	}

	if err := p.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return p, nil
}

func (p *Provider) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	p.metrics = &providerMetrics{}

	p.metrics.calls, err = meter.Int64Counter(
		"evmpair_calls_total",
		metric.WithDescription("getReserves calls"),
	)
	if err != nil {
		return err
	}

	p.metrics.callError, err = meter.Int64Counter(
		"evmpair_call_errors_total",
		metric.WithDescription("getReserves calls that failed"),
	)
	return err
}

func (p *Provider) ID() domain.SourceID { return SourceID }

func (p *Provider) Symbols() []asset.Symbol { return p.symbols }

// FetchPrice returns the pool mid price (quote reserve / base reserve, decimal adjusted).
// Pairs keep no time index, so time-pinned reads report PRICE_NOT_FOUND.
func (p *Provider) FetchPrice(ctx context.Context, symbol asset.Symbol, at domain.At) (fixedpoint.Decimal, error) {
	ctx, span := p.tracer.StartSpanFromContext(ctx, "evmpair.fetch_price",
		trace.WithAttributes(
			attribute.String("symbol", string(symbol)),
			attribute.String("at", at.String()),
		),
	)
	defer span.End()

	price, err := p.fetch(ctx, symbol, at)
	if err != nil {
		span.NoticeError(err)
		return fixedpoint.Zero, err
	}

	span.SetOK()
	return price, nil
}

func (p *Provider) fetch(ctx context.Context, symbol asset.Symbol, at domain.At) (fixedpoint.Decimal, error) {
	pair, ok := p.pairs[symbol]
	if !ok {
		return fixedpoint.Zero, apperror.PriceNotFound(fmt.Sprintf("%s: no pair", symbol))
	}
	if _, pinned := at.Time(); pinned {
		return fixedpoint.Zero, apperror.PriceNotFound(fmt.Sprintf("%s @ %s: pairs are block-indexed", symbol, at))
	}

	h, err := p.handle(ctx, pair.Chain)
	if err != nil {
		return fixedpoint.Zero, apperror.SourceUnavailable(string(SourceID)+"/"+pair.Chain, err)
	}

	blockArg := "latest"
	if n, ok := at.Block(); ok {
		blockArg = hexutil.EncodeUint64(n)
	}

	attrs := metric.WithAttributes(attribute.String("chain", pair.Chain))
	p.metrics.calls.Add(ctx, 1, attrs)

	raw, err := h.cb.Execute(func() (hexutil.Bytes, error) {
		var out hexutil.Bytes
		err := h.caller.CallContext(ctx, &out, "eth_call", map[string]interface{}{
			"to":    pair.Address,
			"input": p.calldata,
		}, blockArg)
		return out, err
	})
	if err != nil {
		p.metrics.callError.Add(ctx, 1, attrs)
		if isRevert(err) {
			return fixedpoint.Zero, apperror.New(apperror.CodePriceNotFound,
				apperror.WithCause(err), apperror.WithContextf("%s @ %s", symbol, at))
		}
		return fixedpoint.Zero, apperror.New(apperror.CodeSourceUnavailable,
			apperror.WithCause(apperror.New(apperror.CodeContractCallFailed, apperror.WithCause(err))),
			apperror.WithContextf("%s/%s @ %s", SourceID, pair.Chain, at))
	}
	if len(raw) == 0 {
		return fixedpoint.Zero, apperror.PriceNotFound(fmt.Sprintf("%s @ %s: empty result", symbol, at))
	}

	out, err := p.pairABI.Unpack(methodGetReserves, raw)
	if err != nil || len(out) < 2 {
		return fixedpoint.Zero, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err), apperror.WithContextf("%s: decode getReserves", symbol))
	}
	r0, ok0 := out[0].(*big.Int)
	r1, ok1 := out[1].(*big.Int)
	if !ok0 || !ok1 {
		return fixedpoint.Zero, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithContextf("%s: unexpected reserve types %T/%T", symbol, out[0], out[1]))
	}

	return MidPrice(r0, r1, pair)
}

// MidPrice converts raw reserves into the price of the pair's base asset.
func MidPrice(reserve0, reserve1 *big.Int, pair Pair) (fixedpoint.Decimal, error) {
	base, quote := reserve0, reserve1
	if pair.Invert {
		base, quote = reserve1, reserve0
	}
	if base.Sign() == 0 || quote.Sign() == 0 {
		return fixedpoint.Zero, apperror.PriceNotFound(fmt.Sprintf("%s: empty pool", pair.Symbol))
	}

	b := asset.FromRaw(base, pair.BaseDecimals)
	q := asset.FromRaw(quote, pair.QuoteDecimals)
	return q.Div(b)
}

// Close drops the cached chain handles. Connections belong to the chain pool.
func (p *Provider) Close() error {
	p.chainsMu.Lock()
	p.chains = make(map[string]*chainHandle)
	p.chainsMu.Unlock()
	return nil
}

func (p *Provider) handle(ctx context.Context, chain string) (*chainHandle, error) {
	p.chainsMu.Lock()
	defer p.chainsMu.Unlock()

	if h, ok := p.chains[chain]; ok {
		return h, nil
	}

	caller, err := p.resolve(ctx, chain)
	if err != nil {
		return nil, err
	}

	cbCfg := circuitbreaker.DefaultConfig("evmpair-" + chain)
	cbCfg.IsSuccessful = func(err error) bool { return err == nil || isRevert(err) }

	h := &chainHandle{caller: caller, cb: circuitbreaker.New[hexutil.Bytes](cbCfg)}
	p.chains[chain] = h
	p.logger.Debug(ctx, "evm pair chain handle resolved", "chain", chain)
	return h, nil
}

func isRevert(err error) bool {
	return err != nil && strings.Contains(err.Error(), "execution reverted") && !errors.Is(err, context.DeadlineExceeded)
}
