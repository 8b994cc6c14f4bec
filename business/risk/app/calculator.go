package app

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/synth-indexer/business/risk/domain"
	"github.com/fd1az/synth-indexer/internal/apm"
	"github.com/fd1az/synth-indexer/internal/apperror"
	"github.com/fd1az/synth-indexer/internal/asset"
	"github.com/fd1az/synth-indexer/internal/fixedpoint"
	"github.com/fd1az/synth-indexer/internal/logger"
)

const (
	tracerName = "github.com/fd1az/synth-indexer/business/risk"
	meterName  = "github.com/fd1az/synth-indexer/business/risk"
)

// CalculatorConfig configures the calculator.
type CalculatorConfig struct {
	QuoteSymbol asset.Symbol // priced at exactly 1
	Thresholds  domain.Thresholds
}

// ScanResult is the outcome of ScanPositions.
type ScanResult struct {
	Ratios    []domain.CollateralRatio
	Undefined int // positions skipped for having no mint value
	Unpriced  int // positions skipped because an asset has no sealed price yet
}

// Calculator derives collateral ratios from live positions and latest prices.
// Nothing is cached: every call reads the repository and the prices again.
type Calculator struct {
	cfg       CalculatorConfig
	positions PositionRepository
	prices    PriceResolver
	logger    logger.LoggerInterface
	now       func() time.Time

	tracer       apm.Tracer
	computations metric.Int64Counter
}

// NewCalculator creates a calculator.
func NewCalculator(cfg CalculatorConfig, positions PositionRepository, prices PriceResolver, log logger.LoggerInterface) (*Calculator, error) {
	if cfg.QuoteSymbol == "" {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("risk: quote symbol is required"))
	}

	computations, err := otel.Meter(meterName).Int64Counter(
		"risk_ratio_computations_total",
		metric.WithDescription("Collateral ratio computations by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return &Calculator{
		cfg:          cfg,
		positions:    positions,
		prices:       prices,
		logger:       log,
		now:          time.Now,
		tracer:       apm.NewTracer(tracerName),
		computations: computations,
	}, nil
}

// ComputeCollateralRatio loads a position and values it at the latest prices.
func (c *Calculator) ComputeCollateralRatio(ctx context.Context, positionID string) (domain.CollateralRatio, error) {
	ctx, span := c.tracer.StartSpanFromContext(ctx, "risk.ComputeCollateralRatio",
		trace.WithAttributes(attribute.String("position", positionID)))
	defer span.End()

	pos, err := c.positions.GetPosition(ctx, positionID)
	if err != nil {
		span.NoticeError(err)
		return domain.CollateralRatio{}, err
	}

	ratio, err := c.Evaluate(ctx, pos)
	if err != nil {
		span.NoticeError(err)
		return domain.CollateralRatio{}, err
	}

	span.SetAttributes(attribute.String("risk", string(ratio.Risk)))
	span.SetOK()
	return ratio, nil
}

// Evaluate values an already loaded position.
func (c *Calculator) Evaluate(ctx context.Context, pos domain.Position) (domain.CollateralRatio, error) {
	ratio, err := c.evaluate(ctx, pos)
	c.computations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("asset", string(pos.Asset)),
		attribute.String("result", outcome(ratio, err)),
	))
	return ratio, err
}

func (c *Calculator) evaluate(ctx context.Context, pos domain.Position) (domain.CollateralRatio, error) {
	assetPrice, err := c.price(ctx, pos.Asset)
	if err != nil {
		return domain.CollateralRatio{}, err
	}
	collateralPrice, err := c.price(ctx, pos.CollateralToken)
	if err != nil {
		return domain.CollateralRatio{}, err
	}

	ratio, err := domain.ComputeRatio(pos, assetPrice, collateralPrice, c.now().Unix())
	if err != nil {
		return domain.CollateralRatio{}, err
	}
	ratio.Risk = c.cfg.Thresholds.Classify(pos.Asset, ratio.Ratio)
	return ratio, nil
}

func (c *Calculator) price(ctx context.Context, symbol asset.Symbol) (fixedpoint.Decimal, error) {
	if symbol == c.cfg.QuoteSymbol {
		return fixedpoint.One, nil
	}
	return c.prices.LatestPrice(ctx, symbol)
}

// ScanPositions computes the ratio of every position matching filter. Positions without
// debt or without a price yet are skipped and counted; any other failure aborts the scan.
func (c *Calculator) ScanPositions(ctx context.Context, filter domain.PositionFilter) (ScanResult, error) {
	ctx, span := c.tracer.StartSpanFromContext(ctx, "risk.ScanPositions")
	defer span.End()

	positions, err := c.positions.ListPositions(ctx, filter)
	if err != nil {
		span.NoticeError(err)
		return ScanResult{}, err
	}

	res := ScanResult{Ratios: make([]domain.CollateralRatio, 0, len(positions))}
	for _, pos := range positions {
		ratio, err := c.Evaluate(ctx, pos)
		switch {
		case apperror.IsCode(err, apperror.CodeUndefinedRatio):
			res.Undefined++
			continue
		case apperror.IsCode(err, apperror.CodePriceNotFound):
			res.Unpriced++
			continue
		case err != nil:
			err = fmt.Errorf("position %s: %w", pos.ID, err)
			span.NoticeError(err)
			return ScanResult{}, err
		}
		if ratio.Risk == domain.RiskLiquidatable {
			c.logger.Warn(ctx, "position below minimum collateral ratio", "ratio", ratio.String())
		}
		res.Ratios = append(res.Ratios, ratio)
	}

	span.SetAttributes(
		attribute.Int("positions", len(positions)),
		attribute.Int("undefined", res.Undefined),
		attribute.Int("unpriced", res.Unpriced))
	span.SetOK()
	return res, nil
}

func outcome(ratio domain.CollateralRatio, err error) string {
	switch {
	case err == nil:
		return ratio.Risk.String()
	case apperror.IsCode(err, apperror.CodeUndefinedRatio):
		return "undefined"
	case apperror.IsCode(err, apperror.CodePriceNotFound):
		return "no_price"
	default:
		return "error"
	}
}
