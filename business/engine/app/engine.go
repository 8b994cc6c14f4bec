package app

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	marketDomain "github.com/fd1az/synth-indexer/business/market/domain"
	riskApp "github.com/fd1az/synth-indexer/business/risk/app"
	riskDomain "github.com/fd1az/synth-indexer/business/risk/domain"
	"github.com/fd1az/synth-indexer/internal/apm"
	"github.com/fd1az/synth-indexer/internal/asset"
	"github.com/fd1az/synth-indexer/internal/bounds"
	"github.com/fd1az/synth-indexer/internal/fixedpoint"
	"github.com/fd1az/synth-indexer/internal/logger"
)

const tracerName = "github.com/fd1az/synth-indexer/business/engine"

// QueryResult is a bounded page of candles.
type QueryResult struct {
	Candles []marketDomain.Candle `json:"candles"`
	// Range is the window actually read. When Truncated, the next page starts at Range.To.
	Range     bounds.Range `json:"range"`
	Truncated bool         `json:"truncated"`
}

// Engine is the only entry point outer layers (dashboard, transports) call.
type Engine struct {
	history    History
	risk       Risk
	status     IngestionStatus
	queryLimit int
	logger     logger.LoggerInterface
	tracer     apm.Tracer
}

// New creates the facade. queryLimit caps every Query; non-positive means no cap.
func New(history History, risk Risk, status IngestionStatus, queryLimit int, log logger.LoggerInterface) *Engine {
	return &Engine{
		history:    history,
		risk:       risk,
		status:     status,
		queryLimit: queryLimit,
		logger:     log,
		tracer:     apm.NewTracer(tracerName),
	}
}

// Query returns at most limit candles starting at from. The effective limit is the smaller
// of limit and the configured cap.
func (e *Engine) Query(ctx context.Context, symbol asset.Symbol, interval string, from, to int64, limit int) (QueryResult, error) {
	ctx, span := e.tracer.StartSpanFromContext(ctx, "engine.Query", trace.WithAttributes(
		attribute.String("symbol", string(symbol)),
		attribute.String("interval", interval),
		attribute.Int64("from", from),
		attribute.Int64("to", to),
		attribute.Int("limit", limit),
	))
	defer span.End()

	iv, err := marketDomain.ParseInterval(interval)
	if err != nil {
		span.NoticeError(err)
		return QueryResult{}, err
	}

	limit = e.effectiveLimit(limit)
	r := bounds.LimitedRange(from, to, iv.Seconds(), limit)
	// A partial trailing bucket may still hold a bucket start; stop the read after limit of them.
	if limit > 0 {
		r.To = min(r.To, from+iv.Seconds()*int64(limit))
	}

	candles, err := e.history.Query(ctx, symbol, iv, r.From, r.To)
	if err != nil {
		span.NoticeError(err)
		return QueryResult{}, err
	}

	res := QueryResult{
		Candles:   candles,
		Range:     r,
		Truncated: r.To < to,
	}
	span.SetAttributes(attribute.Int("candles", len(candles)), attribute.Bool("truncated", res.Truncated))
	span.SetOK()
	return res, nil
}

func (e *Engine) effectiveLimit(limit int) int {
	switch {
	case e.queryLimit <= 0:
		return limit
	case limit <= 0 || limit > e.queryLimit:
		return e.queryLimit
	default:
		return limit
	}
}

// LatestPrice returns the close of the most recent sealed candle at the finest interval.
func (e *Engine) LatestPrice(ctx context.Context, symbol asset.Symbol) (fixedpoint.Decimal, error) {
	ctx, span := e.tracer.StartSpanFromContext(ctx, "engine.LatestPrice",
		trace.WithAttributes(attribute.String("symbol", string(symbol))))
	defer span.End()

	price, err := e.history.LatestPrice(ctx, symbol)
	if err != nil {
		span.NoticeError(err)
		return fixedpoint.Zero, err
	}
	span.SetOK()
	return price, nil
}

// LatestCandle returns the most recent sealed candle of a series.
func (e *Engine) LatestCandle(ctx context.Context, symbol asset.Symbol, interval string) (marketDomain.Candle, error) {
	iv, err := marketDomain.ParseInterval(interval)
	if err != nil {
		return marketDomain.Candle{}, err
	}
	return e.history.LatestCandle(ctx, symbol, iv)
}

// ComputeCollateralRatio values a position at the latest prices.
func (e *Engine) ComputeCollateralRatio(ctx context.Context, positionID string) (riskDomain.CollateralRatio, error) {
	ctx, span := e.tracer.StartSpanFromContext(ctx, "engine.ComputeCollateralRatio",
		trace.WithAttributes(attribute.String("position", positionID)))
	defer span.End()

	ratio, err := e.risk.ComputeCollateralRatio(ctx, positionID)
	if err != nil {
		span.NoticeError(err)
		return riskDomain.CollateralRatio{}, err
	}
	span.SetOK()
	return ratio, nil
}

// ScanPositions values every position matching filter.
func (e *Engine) ScanPositions(ctx context.Context, filter riskDomain.PositionFilter) (riskApp.ScanResult, error) {
	return e.risk.ScanPositions(ctx, filter)
}

// LostCandles returns how many sealed candles could not be persisted since start.
func (e *Engine) LostCandles() int64 {
	if e.status == nil {
		return 0
	}
	return e.status.Lost()
}
