// Package oracle reads prices from Chainlink-style aggregator contracts.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/synth-indexer/business/pricing/app"
	"github.com/fd1az/synth-indexer/business/pricing/domain"
	"github.com/fd1az/synth-indexer/internal/apm"
	"github.com/fd1az/synth-indexer/internal/apperror"
	"github.com/fd1az/synth-indexer/internal/asset"
	"github.com/fd1az/synth-indexer/internal/cache"
	"github.com/fd1az/synth-indexer/internal/circuitbreaker"
	"github.com/fd1az/synth-indexer/internal/fixedpoint"
	"github.com/fd1az/synth-indexer/internal/logger"
)

const (
	tracerName = "github.com/fd1az/synth-indexer/business/pricing/infra/oracle"
	meterName  = "github.com/fd1az/synth-indexer/business/pricing/infra/oracle"

	// SourceID identifies this source in observations and metrics.
	SourceID domain.SourceID = "oracle"

	defaultRoundWalk   = 64
	defaultDecimalsTTL = time.Hour
)

var _ app.PriceSource = (*Provider)(nil)

// ContractCaller is the slice of ethclient the source needs.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// CallerResolver returns the chain client. It is invoked lazily and its result is kept.
type CallerResolver func(ctx context.Context) (ContractCaller, error)

// Feed binds a symbol to an aggregator contract.
type Feed struct {
	Symbol  asset.Symbol
	Address common.Address
}

// ProviderConfig holds configuration for the oracle source.
type ProviderConfig struct {
	Chain        string
	Feeds        []Feed
	DecimalsTTL  time.Duration
	MaxRoundWalk int // rounds walked back for time-pinned reads
}

type providerMetrics struct {
	calls     metric.Int64Counter
	callError metric.Int64Counter
}

// Provider implements app.PriceSource over aggregator contracts.
type Provider struct {
	config  ProviderConfig
	feeds   map[asset.Symbol]common.Address
	symbols []asset.Symbol
	aggABI  abi.ABI

	resolve  CallerResolver
	caller   ContractCaller
	callerMu sync.Mutex

	decimals *cache.Cache[common.Address, uint8]
	cb       *circuitbreaker.CircuitBreaker[[]byte]
	logger   logger.LoggerInterface

	tracer  apm.Tracer
	metrics *providerMetrics
}

// NewProvider creates the oracle source. No chain call is made until the first fetch.
func NewProvider(cfg ProviderConfig, resolve CallerResolver, log logger.LoggerInterface) (*Provider, error) {
	parsedABI, err := abi.JSON(strings.NewReader(AggregatorV3ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse aggregator ABI: %w", err)
	}
	if resolve == nil {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("oracle: nil caller resolver"))
	}

	if cfg.DecimalsTTL <= 0 {
		cfg.DecimalsTTL = defaultDecimalsTTL
	}
	if cfg.MaxRoundWalk <= 0 {
		cfg.MaxRoundWalk = defaultRoundWalk
	}

	p := &Provider{
		config:   cfg,
		feeds:    make(map[asset.Symbol]common.Address, len(cfg.Feeds)),
		aggABI:   parsedABI,
		resolve:  resolve,
		decimals: cache.New[common.Address, uint8](cfg.DecimalsTTL),
		logger:   log,
		tracer:   apm.NewTracer(tracerName),
	}
	for _, f := range cfg.Feeds {
		p.feeds[f.Symbol] = f.Address
		p.symbols = append(p.symbols, f.Symbol)
	}

	cbCfg := circuitbreaker.DefaultConfig("oracle-" + cfg.Chain)
	// A revert means "no data", not an unhealthy node.
	cbCfg.IsSuccessful = func(err error) bool { return err == nil || isRevert(err) }
	p.cb = circuitbreaker.New[[]byte](cbCfg)

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
		"oracle_calls_total",
		metric.WithDescription("Aggregator contract calls"),
	)
	if err != nil {
		return err
	}

	p.metrics.callError, err = meter.Int64Counter(
		"oracle_call_errors_total",
		metric.WithDescription("Aggregator contract calls that failed"),
	)
	return err
}

func (p *Provider) ID() domain.SourceID { return SourceID }

func (p *Provider) Symbols() []asset.Symbol { return p.symbols }

// FetchPrice reads the aggregator answer for symbol at the requested point.
// Time-pinned reads walk rounds backwards until one was updated at or before the timestamp.
func (p *Provider) FetchPrice(ctx context.Context, symbol asset.Symbol, at domain.At) (fixedpoint.Decimal, error) {
	ctx, span := p.tracer.StartSpanFromContext(ctx, "oracle.fetch_price",
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

	span.SetAttributes(attribute.String("price", price.String()))
	span.SetOK()
	return price, nil
}

func (p *Provider) fetch(ctx context.Context, symbol asset.Symbol, at domain.At) (fixedpoint.Decimal, error) {
	feed, ok := p.feeds[symbol]
	if !ok {
		return fixedpoint.Zero, apperror.PriceNotFound(fmt.Sprintf("%s: no oracle feed", symbol))
	}

	caller, err := p.client(ctx)
	if err != nil {
		return fixedpoint.Zero, apperror.SourceUnavailable(string(SourceID), err)
	}

	var block *big.Int
	if h, ok := at.Block(); ok {
		block = new(big.Int).SetUint64(h)
	}

	dec, err := p.feedDecimals(ctx, caller, feed, block)
	if err != nil {
		return fixedpoint.Zero, p.classify(symbol, at, err)
	}

	round, err := p.latestRound(ctx, caller, feed, block)
	if err != nil {
		return fixedpoint.Zero, p.classify(symbol, at, err)
	}

	if ts, ok := at.Time(); ok {
		round, err = p.roundAtOrBefore(ctx, caller, feed, round, ts)
		if err != nil {
			return fixedpoint.Zero, p.classify(symbol, at, err)
		}
	}

	if !round.valid() {
		return fixedpoint.Zero, apperror.PriceNotFound(fmt.Sprintf("%s @ %s: empty round", symbol, at))
	}

	return fixedpoint.NewFromBigInt(round.Answer, -int32(dec)), nil
}

// Close drops the cached client reference and stops the decimals cache.
// The connection itself belongs to the chain pool.
func (p *Provider) Close() error {
	p.callerMu.Lock()
	p.caller = nil
	p.callerMu.Unlock()
	p.decimals.Close()
	return nil
}

func (p *Provider) client(ctx context.Context) (ContractCaller, error) {
	p.callerMu.Lock()
	defer p.callerMu.Unlock()

	if p.caller != nil {
		return p.caller, nil
	}
	c, err := p.resolve(ctx)
	if err != nil {
		return nil, err
	}
	p.caller = c
	return c, nil
}

func (p *Provider) feedDecimals(ctx context.Context, caller ContractCaller, feed common.Address, block *big.Int) (uint8, error) {
	if d, ok := p.decimals.Get(ctx, feed); ok {
		return d, nil
	}

	out, err := p.call(ctx, caller, feed, block, methodDecimals)
	if err != nil {
		return 0, err
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals: unexpected type %T", out[0])
	}

	p.decimals.Set(ctx, feed, d, p.config.DecimalsTTL)
	return d, nil
}

func (p *Provider) latestRound(ctx context.Context, caller ContractCaller, feed common.Address, block *big.Int) (RoundData, error) {
	out, err := p.call(ctx, caller, feed, block, methodLatestRoundData)
	if err != nil {
		return RoundData{}, err
	}
	return toRound(out)
}

func (p *Provider) roundAtOrBefore(ctx context.Context, caller ContractCaller, feed common.Address, round RoundData, ts int64) (RoundData, error) {
	target := big.NewInt(ts)
	one := big.NewInt(1)

	for i := 0; i <= p.config.MaxRoundWalk; i++ {
		if round.UpdatedAt != nil && round.UpdatedAt.Sign() > 0 && round.UpdatedAt.Cmp(target) <= 0 {
			return round, nil
		}
		if round.RoundID == nil || round.RoundID.Cmp(one) <= 0 {
			break
		}

		prev := new(big.Int).Sub(round.RoundID, one)
		out, err := p.call(ctx, caller, feed, nil, methodGetRoundData, prev)
		if err != nil {
			return RoundData{}, err
		}
		if round, err = toRound(out); err != nil {
			return RoundData{}, err
		}
	}

	return RoundData{}, errNoRound
}

var (
	errNoRound     = errors.New("no round at or before the requested time")
	errEmptyResult = errors.New("empty call result")
)

func (p *Provider) call(ctx context.Context, caller ContractCaller, to common.Address, block *big.Int, method string, args ...any) ([]any, error) {
	data, err := p.aggABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", method, err)
	}

	attrs := metric.WithAttributes(attribute.String("method", method))
	p.metrics.calls.Add(ctx, 1, attrs)

	result, err := p.cb.Execute(func() ([]byte, error) {
		return caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, block)
	})
	if err != nil {
		p.metrics.callError.Add(ctx, 1, attrs)
		return nil, err
	}
	if len(result) == 0 {
		return nil, errEmptyResult
	}

	out, err := p.aggABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", method, err)
	}
	return out, nil
}

// classify maps call failures to the source error taxonomy.
func (p *Provider) classify(symbol asset.Symbol, at domain.At, err error) error {
	ctxInfo := fmt.Sprintf("%s @ %s", symbol, at)

	switch {
	case isRevert(err), errors.Is(err, errEmptyResult), errors.Is(err, errNoRound):
		return apperror.New(apperror.CodePriceNotFound, apperror.WithCause(err), apperror.WithContext(ctxInfo))
	case circuitbreaker.IsRejection(err):
		return apperror.New(apperror.CodeSourceUnavailable,
			apperror.WithCause(apperror.New(apperror.CodeCircuitOpen, apperror.WithCause(err))),
			apperror.WithContext(ctxInfo))
	}

	return apperror.New(apperror.CodeSourceUnavailable,
		apperror.WithCause(apperror.New(apperror.CodeContractCallFailed, apperror.WithCause(err))),
		apperror.WithContext(ctxInfo))
}

func toRound(out []any) (RoundData, error) {
	if len(out) < 5 {
		return RoundData{}, fmt.Errorf("unexpected output length: %d", len(out))
	}
	vals := make([]*big.Int, 5)
	for i := range vals {
		v, ok := out[i].(*big.Int)
		if !ok {
			return RoundData{}, fmt.Errorf("round field %d: unexpected type %T", i, out[i])
		}
		vals[i] = v
	}
	return RoundData{
		RoundID:         vals[0],
		Answer:          vals[1],
		StartedAt:       vals[2],
		UpdatedAt:       vals[3],
		AnsweredInRound: vals[4],
	}, nil
}

// isRevert recognizes an EVM revert reported by the node.
func isRevert(err error) bool {
	if err == nil {
		return false
	}
	if strings.Contains(err.Error(), "execution reverted") {
		return true
	}
	var de rpc.DataError
	return errors.As(err, &de) && de.ErrorData() != nil
}
