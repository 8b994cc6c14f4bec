package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/synth-indexer/business/pricing/domain"
	"github.com/fd1az/synth-indexer/internal/apperror"
	"github.com/fd1az/synth-indexer/internal/asset"
	"github.com/fd1az/synth-indexer/internal/logger"
	"github.com/fd1az/synth-indexer/internal/ratelimit"
)

const meterName = "github.com/fd1az/synth-indexer/business/pricing"

// Fetch outcomes recorded on source_fetch_total.
const (
	resultOK          = "ok"
	resultUnavailable = "unavailable"
	resultNotFound    = "not_found"
)

// SchedulerConfig drives the polling tasks.
type SchedulerConfig struct {
	PollInterval      time.Duration
	SourceTimeout     time.Duration
	RequestsPerMinute int // per source
}

type schedulerMetrics struct {
	fetches metric.Int64Counter
	latency metric.Float64Histogram
}

// Scheduler runs one polling task per (source, symbol) pair and feeds the sink.
// Source failures never stop a task; they mean "no observation this round".
type Scheduler struct {
	cfg      SchedulerConfig
	sources  []PriceSource
	sink     ObservationSink
	limiters *ratelimit.Set
	logger   logger.LoggerInterface
	metrics  *schedulerMetrics
	now      func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewScheduler creates a scheduler over sources.
func NewScheduler(cfg SchedulerConfig, sources []PriceSource, sink ObservationSink, log logger.LoggerInterface) (*Scheduler, error) {
	if cfg.PollInterval <= 0 || cfg.SourceTimeout <= 0 {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("poll interval and source timeout must be positive"))
	}

	s := &Scheduler{
		cfg:      cfg,
		sources:  sources,
		sink:     sink,
		limiters: ratelimit.NewSet(cfg.RequestsPerMinute),
		logger:   log,
		now:      time.Now,
	}

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return s, nil
}

func (s *Scheduler) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &schedulerMetrics{}

	s.metrics.fetches, err = meter.Int64Counter(
		"source_fetch_total",
		metric.WithDescription("Price source fetches by outcome"),
	)
	if err != nil {
		return err
	}

	s.metrics.latency, err = meter.Float64Histogram(
		"source_fetch_latency_ms",
		metric.WithDescription("Price source fetch latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	return err
}

// Start launches the polling tasks. They run until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true

	ctx, s.cancel = context.WithCancel(ctx)

	tasks := 0
	for _, src := range s.sources {
		for _, sym := range src.Symbols() {
			s.wg.Add(1)
			go s.run(ctx, src, sym)
			tasks++
		}
	}

	s.logger.Info(ctx, "ingestion scheduler started",
		"sources", len(s.sources),
		"tasks", tasks,
		"poll_interval", s.cfg.PollInterval)
}

// Stop cancels every task and waits for in-flight fetches to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, src PriceSource, sym asset.Symbol) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if obs, ok := s.PollOnce(ctx, src, sym); ok {
			s.sink.Observe(ctx, obs)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PollOnce performs one rate-limited, timeout-bounded fetch.
// It reports false when the round produced no observation.
func (s *Scheduler) PollOnce(ctx context.Context, src PriceSource, sym asset.Symbol) (domain.Observation, bool) {
	if err := s.limiters.For(string(src.ID())).Wait(ctx); err != nil {
		return domain.Observation{}, false
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.SourceTimeout)
	defer cancel()

	start := time.Now()
	price, err := src.FetchPrice(fetchCtx, sym, domain.Latest())
	elapsed := float64(time.Since(start).Milliseconds())

	attrs := []attribute.KeyValue{attribute.String("source", string(src.ID()))}
	s.metrics.latency.Record(ctx, elapsed, metric.WithAttributes(attrs...))

	if err != nil {
		err = normalizeSourceError(fetchCtx, src.ID(), err)
		result := resultUnavailable
		if apperror.IsCode(err, apperror.CodePriceNotFound) {
			result = resultNotFound
			s.logger.Debug(ctx, "no price this round", "source", src.ID(), "symbol", sym)
		} else if ctx.Err() == nil {
			s.logger.Warn(ctx, "price source unavailable", "source", src.ID(), "symbol", sym, "error", err)
		}
		s.metrics.fetches.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String("result", result))...))
		return domain.Observation{}, false
	}

	s.metrics.fetches.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String("result", resultOK))...))
	return domain.NewObservation(sym, src.ID(), s.now(), price), true
}

// normalizeSourceError maps anything that is not PRICE_NOT_FOUND to SOURCE_UNAVAILABLE.
// A timeout is treated exactly like an unreachable source.
func normalizeSourceError(ctx context.Context, source domain.SourceID, err error) error {
	if apperror.IsCode(err, apperror.CodePriceNotFound) || apperror.IsCode(err, apperror.CodeSourceUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperror.New(apperror.CodeSourceUnavailable,
			apperror.WithCause(err),
			apperror.WithContextf("%s: timeout", source))
	}
	return apperror.SourceUnavailable(string(source), err)
}
