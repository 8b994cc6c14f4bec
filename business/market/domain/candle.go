package domain

import (
	"fmt"

	pricingDomain "github.com/fd1az/synth-indexer/business/pricing/domain"
	"github.com/fd1az/synth-indexer/internal/apperror"
	"github.com/fd1az/synth-indexer/internal/asset"
	"github.com/fd1az/synth-indexer/internal/fixedpoint"
)

// Candle is the OHLC summary of one (symbol, interval) bucket.
type Candle struct {
	Symbol           asset.Symbol       `json:"symbol"`
	Interval         Interval           `json:"interval"`
	BucketStart      int64              `json:"bucket_start"`
	Open             fixedpoint.Decimal `json:"open"`
	High             fixedpoint.Decimal `json:"high"`
	Low              fixedpoint.Decimal `json:"low"`
	Close            fixedpoint.Decimal `json:"close"`
	ObservationCount int64              `json:"observation_count"`
}

// Key identifies the series a candle belongs to.
func (c Candle) Key() SeriesKey {
	return SeriesKey{Symbol: c.Symbol, Interval: c.Interval}
}

func (c Candle) String() string {
	return fmt.Sprintf("%s/%s/%d o=%s h=%s l=%s c=%s n=%d",
		c.Symbol, c.Interval, c.BucketStart, c.Open, c.High, c.Low, c.Close, c.ObservationCount)
}

// Validate checks the OHLC invariants.
func (c Candle) Validate() error {
	switch {
	case !c.Symbol.Valid():
		return apperror.New(apperror.CodeValidationError, apperror.WithContextf("candle symbol %q", c.Symbol))
	case !c.Interval.Valid():
		return apperror.New(apperror.CodeInvalidInterval, apperror.WithContextf("%q", c.Interval))
	case c.Interval.BucketStart(c.BucketStart) != c.BucketStart:
		return apperror.New(apperror.CodeValidationError, apperror.WithContextf("bucket %d not aligned to %s", c.BucketStart, c.Interval))
	case c.ObservationCount < 1:
		return apperror.New(apperror.CodeValidationError, apperror.WithContext("empty candle"))
	case c.Low.GreaterThan(fixedpoint.Min(c.Open, c.Close)), c.High.LessThan(fixedpoint.Max(c.Open, c.Close)):
		return apperror.New(apperror.CodeValidationError, apperror.WithContextf("ohlc out of order: %s", c))
	}
	return nil
}

// SeriesKey identifies a candle series.
type SeriesKey struct {
	Symbol   asset.Symbol
	Interval Interval
}

func (k SeriesKey) String() string {
	return string(k.Symbol) + "/" + string(k.Interval)
}

// Accumulator builds the open candle of a bucket.
// Close follows the latest observation by timestamp (ties go to the later arrival);
// open follows the earliest.
type Accumulator struct {
	candle  Candle
	firstTs int64
	lastTs  int64
}

// NewAccumulator opens the bucket obs falls in.
func NewAccumulator(obs pricingDomain.Observation, interval Interval) *Accumulator {
	return &Accumulator{
		candle: Candle{
			Symbol:           obs.Symbol,
			Interval:         interval,
			BucketStart:      interval.BucketStart(obs.Timestamp),
			Open:             obs.Price,
			High:             obs.Price,
			Low:              obs.Price,
			Close:            obs.Price,
			ObservationCount: 1,
		},
		firstTs: obs.Timestamp,
		lastTs:  obs.Timestamp,
	}
}

// BucketStart returns the bucket being accumulated.
func (a *Accumulator) BucketStart() int64 { return a.candle.BucketStart }

// Apply folds an observation of the same bucket into the candle.
func (a *Accumulator) Apply(obs pricingDomain.Observation) {
	p := obs.Price
	c := &a.candle

	c.High = fixedpoint.Max(c.High, p)
	c.Low = fixedpoint.Min(c.Low, p)
	c.ObservationCount++

	if obs.Timestamp >= a.lastTs {
		c.Close = p
		a.lastTs = obs.Timestamp
	}
	if obs.Timestamp < a.firstTs {
		c.Open = p
		a.firstTs = obs.Timestamp
	}
}

// Candle returns a copy of the current state.
func (a *Accumulator) Candle() Candle { return a.candle }
