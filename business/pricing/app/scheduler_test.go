package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/synth-indexer/business/pricing/domain"
	"github.com/fd1az/synth-indexer/internal/apperror"
	"github.com/fd1az/synth-indexer/internal/asset"
	"github.com/fd1az/synth-indexer/internal/fixedpoint"
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

// stubSource answers from a function.
type stubSource struct {
	id      domain.SourceID
	symbols []asset.Symbol
	fetch   func(ctx context.Context, sym asset.Symbol) (fixedpoint.Decimal, error)
}

func (s *stubSource) ID() domain.SourceID     { return s.id }
func (s *stubSource) Symbols() []asset.Symbol { return s.symbols }
func (s *stubSource) Close() error            { return nil }
func (s *stubSource) FetchPrice(ctx context.Context, sym asset.Symbol, _ domain.At) (fixedpoint.Decimal, error) {
	return s.fetch(ctx, sym)
}

type collectingSink struct {
	mu  sync.Mutex
	obs []domain.Observation
}

func (c *collectingSink) Observe(_ context.Context, o domain.Observation) {
	c.mu.Lock()
	c.obs = append(c.obs, o)
	c.mu.Unlock()
}

func (c *collectingSink) snapshot() []domain.Observation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Observation(nil), c.obs...)
}

func newTestScheduler(t *testing.T, sources []PriceSource, sink ObservationSink) *Scheduler {
	t.Helper()
	s, err := NewScheduler(SchedulerConfig{
		PollInterval:  10 * time.Millisecond,
		SourceTimeout: 50 * time.Millisecond,
	}, sources, sink, &mockLogger{})
	require.NoError(t, err)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	return s
}

func TestPollOnce_Success(t *testing.T) {
	src := &stubSource{id: "oracle", fetch: func(context.Context, asset.Symbol) (fixedpoint.Decimal, error) {
		return fixedpoint.MustParse("150.25"), nil
	}}
	s := newTestScheduler(t, nil, &collectingSink{})

	obs, ok := s.PollOnce(context.Background(), src, asset.MAAPL)
	require.True(t, ok)
	assert.Equal(t, asset.MAAPL, obs.Symbol)
	assert.Equal(t, domain.SourceID("oracle"), obs.Source)
	assert.Equal(t, int64(1700000000), obs.Timestamp)
	assert.Equal(t, "150.25", obs.Price.String())
}

func TestPollOnce_SourceErrorsAreAbsorbed(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"not found", apperror.PriceNotFound("mAAPL")},
		{"unavailable", apperror.SourceUnavailable("oracle", errors.New("connection refused"))},
		{"untyped", errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &stubSource{id: "oracle", fetch: func(context.Context, asset.Symbol) (fixedpoint.Decimal, error) {
				return fixedpoint.Zero, tt.err
			}}
			s := newTestScheduler(t, nil, &collectingSink{})

			_, ok := s.PollOnce(context.Background(), src, asset.MAAPL)
			assert.False(t, ok)
		})
	}
}

func TestNormalizeSourceError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	err := normalizeSourceError(ctx, "lending", ctx.Err())
	assert.True(t, apperror.IsCode(err, apperror.CodeSourceUnavailable), "timeout is unavailable")

	err = normalizeSourceError(context.Background(), "lending", errors.New("eof"))
	assert.True(t, apperror.IsCode(err, apperror.CodeSourceUnavailable))

	nf := apperror.PriceNotFound("x")
	assert.Same(t, nf, normalizeSourceError(context.Background(), "lending", nf))
}

func TestPollOnce_TimeoutBoundsHungSource(t *testing.T) {
	src := &stubSource{id: "stuck", fetch: func(ctx context.Context, _ asset.Symbol) (fixedpoint.Decimal, error) {
		<-ctx.Done()
		return fixedpoint.Zero, ctx.Err()
	}}
	s := newTestScheduler(t, nil, &collectingSink{})

	start := time.Now()
	_, ok := s.PollOnce(context.Background(), src, asset.MAAPL)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}

func TestScheduler_FailingSourceDoesNotBlockHealthyOne(t *testing.T) {
	healthy := &stubSource{id: "oracle", symbols: []asset.Symbol{asset.MAAPL, asset.MTSLA},
		fetch: func(context.Context, asset.Symbol) (fixedpoint.Decimal, error) {
			return fixedpoint.NewFromInt(1), nil
		}}
	broken := &stubSource{id: "stuck", symbols: []asset.Symbol{asset.MAAPL},
		fetch: func(ctx context.Context, _ asset.Symbol) (fixedpoint.Decimal, error) {
			<-ctx.Done()
			return fixedpoint.Zero, ctx.Err()
		}}

	sink := &collectingSink{}
	s := newTestScheduler(t, []PriceSource{broken, healthy}, sink)

	s.Start(context.Background())
	time.Sleep(100 * time.Millisecond)
	s.Stop()
	s.Stop() // idempotent

	got := sink.snapshot()
	require.NotEmpty(t, got)

	seen := map[asset.Symbol]bool{}
	for _, o := range got {
		assert.Equal(t, domain.SourceID("oracle"), o.Source)
		seen[o.Symbol] = true
	}
	assert.True(t, seen[asset.MAAPL] && seen[asset.MTSLA], "one task per (source, symbol)")
}

func TestNewScheduler_RejectsBadConfig(t *testing.T) {
	_, err := NewScheduler(SchedulerConfig{}, nil, &collectingSink{}, &mockLogger{})
	assert.True(t, apperror.IsCode(err, apperror.CodeConfigurationError))
}
