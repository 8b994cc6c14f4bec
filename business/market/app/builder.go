package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/synth-indexer/business/market/domain"
	pricingDomain "github.com/fd1az/synth-indexer/business/pricing/domain"
	"github.com/fd1az/synth-indexer/internal/apperror"
	"github.com/fd1az/synth-indexer/internal/logger"
)

const meterName = "github.com/fd1az/synth-indexer/business/market"

// BuilderConfig configures candle building and persistence.
type BuilderConfig struct {
	Intervals       []domain.Interval
	PersistAttempts uint
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
}

type builderMetrics struct {
	sealed  metric.Int64Counter
	lost    metric.Int64Counter
	dropped metric.Int64Counter
	retries metric.Int64Counter
}

// slot is the state of one (symbol, interval) series. Each slot has its own lock.
type slot struct {
	mu         sync.Mutex
	open       *domain.Accumulator
	lastSealed int64
	hasSealed  bool
}

// Builder folds observations into candles and persists them when their bucket closes.
type Builder struct {
	cfg     BuilderConfig
	store   HistoryStore
	logger  logger.LoggerInterface
	metrics *builderMetrics

	slots sync.Map // domain.SeriesKey -> *slot
	lost  atomic.Int64
}

// NewBuilder creates a builder over store.
func NewBuilder(cfg BuilderConfig, store HistoryStore, log logger.LoggerInterface) (*Builder, error) {
	if len(cfg.Intervals) == 0 {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("builder: no intervals"))
	}
	if cfg.PersistAttempts == 0 {
		cfg.PersistAttempts = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}

	b := &Builder{cfg: cfg, store: store, logger: log}
	if err := b.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return b, nil
}

func (b *Builder) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	b.metrics = &builderMetrics{}

	b.metrics.sealed, err = meter.Int64Counter(
		"candles_sealed_total",
		metric.WithDescription("Candles sealed and persisted"),
	)
	if err != nil {
		return err
	}

	b.metrics.lost, err = meter.Int64Counter(
		"candles_lost_total",
		metric.WithDescription("Sealed candles that could not be persisted"),
	)
	if err != nil {
		return err
	}

	b.metrics.dropped, err = meter.Int64Counter(
		"observations_dropped_total",
		metric.WithDescription("Observations for buckets that were already sealed"),
	)
	if err != nil {
		return err
	}

	b.metrics.retries, err = meter.Int64Counter(
		"candle_persist_retries_total",
		metric.WithDescription("Append attempts retried after a failure"),
	)
	return err
}

// Observe applies obs to every configured interval of its symbol.
func (b *Builder) Observe(ctx context.Context, obs pricingDomain.Observation) {
	for _, interval := range b.cfg.Intervals {
		if sealed, ok := b.apply(ctx, obs, interval); ok {
			// Persistence outlives a cancelled poll; attempts are bounded.
			b.persist(context.WithoutCancel(ctx), sealed)
		}
	}
}

// apply updates the slot under its lock and detaches the candle it sealed, if any.
func (b *Builder) apply(ctx context.Context, obs pricingDomain.Observation, interval domain.Interval) (domain.Candle, bool) {
	s := b.slot(domain.SeriesKey{Symbol: obs.Symbol, Interval: interval})
	bucket := interval.BucketStart(obs.Timestamp)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.open == nil:
		if s.hasSealed && bucket <= s.lastSealed {
			b.drop(ctx, obs, interval)
			return domain.Candle{}, false
		}
		s.open = domain.NewAccumulator(obs, interval)
		return domain.Candle{}, false

	case bucket == s.open.BucketStart():
		s.open.Apply(obs)
		return domain.Candle{}, false

	case bucket > s.open.BucketStart():
		sealed := s.open.Candle()
		s.lastSealed, s.hasSealed = sealed.BucketStart, true
		s.open = domain.NewAccumulator(obs, interval)
		return sealed, true
	}

	b.drop(ctx, obs, interval)
	return domain.Candle{}, false
}

func (b *Builder) drop(ctx context.Context, obs pricingDomain.Observation, interval domain.Interval) {
	b.metrics.dropped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("symbol", string(obs.Symbol)),
		attribute.String("interval", string(interval)),
	))
	b.logger.Debug(ctx, "observation for sealed bucket dropped", "observation", obs.String(), "interval", interval)
}

func (b *Builder) slot(key domain.SeriesKey) *slot {
	if s, ok := b.slots.Load(key); ok {
		return s.(*slot)
	}
	s, _ := b.slots.LoadOrStore(key, &slot{})
	return s.(*slot)
}

// Flush seals and persists every open candle. Used on shutdown.
// Persistence failures are logged and counted, never returned; the error reports ctx expiry.
func (b *Builder) Flush(ctx context.Context) error {
	var pending []domain.Candle

	b.slots.Range(func(_, v any) bool {
		s := v.(*slot)
		s.mu.Lock()
		if s.open != nil {
			c := s.open.Candle()
			s.lastSealed, s.hasSealed = c.BucketStart, true
			s.open = nil
			pending = append(pending, c)
		}
		s.mu.Unlock()
		return true
	})

	for i, c := range pending {
		if err := ctx.Err(); err != nil {
			for _, rest := range pending[i:] {
				b.markLost(context.WithoutCancel(ctx), rest, err)
			}
			return err
		}
		b.persist(ctx, c)
	}

	b.logger.Info(ctx, "candles flushed", "count", len(pending))
	return nil
}

// OpenCandle returns the in-progress candle of a series.
func (b *Builder) OpenCandle(key domain.SeriesKey) (domain.Candle, bool) {
	v, ok := b.slots.Load(key)
	if !ok {
		return domain.Candle{}, false
	}
	s := v.(*slot)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open == nil {
		return domain.Candle{}, false
	}
	return s.open.Candle(), true
}

// Lost returns the number of candles lost since start.
func (b *Builder) Lost() int64 {
	return b.lost.Load()
}

// CheckHealth reports degraded once a candle has been lost.
func (b *Builder) CheckHealth(_ context.Context) (bool, string) {
	if n := b.lost.Load(); n > 0 {
		return false, fmt.Sprintf("%d candles lost", n)
	}
	return true, ""
}

func (b *Builder) persist(ctx context.Context, c domain.Candle) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = b.cfg.InitialBackoff
	bo.MaxInterval = b.cfg.MaxBackoff

	attrs := metric.WithAttributes(attribute.String("interval", string(c.Interval)))

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := b.store.Append(ctx, c)
		if apperror.IsCode(err, apperror.CodeDuplicateBucket) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(b.cfg.PersistAttempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			b.metrics.retries.Add(ctx, 1, attrs)
			b.logger.Warn(ctx, "candle persist failed, retrying", "candle", c.String(), "error", err, "next", next)
		}),
	)

	switch {
	case err == nil:
		b.metrics.sealed.Add(ctx, 1, attrs)
		b.logger.Debug(ctx, "candle sealed", "candle", c.String())
	case apperror.IsCode(err, apperror.CodeDuplicateBucket):
		b.logger.Warn(ctx, "candle already stored, keeping the existing row", "candle", c.String())
	default:
		b.markLost(ctx, c, err)
	}
}

func (b *Builder) markLost(ctx context.Context, c domain.Candle, cause error) {
	b.lost.Add(1)
	b.metrics.lost.Add(ctx, 1, metric.WithAttributes(attribute.String("interval", string(c.Interval))))

	err := apperror.New(apperror.CodePersistFailure, apperror.WithCause(cause), apperror.WithContext(c.Key().String()))
	b.logger.Error(ctx, "candle lost",
		"candle", c.String(),
		"attempts", b.cfg.PersistAttempts,
		"error", err)
}
