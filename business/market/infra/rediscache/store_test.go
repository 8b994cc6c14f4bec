package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/synth-indexer/business/market/domain"
	"github.com/fd1az/synth-indexer/business/market/infra/memstore"
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

// countingStore counts Query calls on top of memstore.
type countingStore struct {
	*memstore.Store
	queries int
}

func (c *countingStore) Query(ctx context.Context, symbol asset.Symbol, interval domain.Interval, from, to int64) ([]domain.Candle, error) {
	c.queries++
	return c.Store.Query(ctx, symbol, interval, from, to)
}

const ttl = 5 * time.Minute

func candle(bucket int64) domain.Candle {
	p := fixedpoint.MustParse("150.5")
	return domain.Candle{
		Symbol: asset.MAAPL, Interval: domain.Interval1m, BucketStart: bucket,
		Open: p, High: p, Low: p, Close: p, ObservationCount: 1,
	}
}

func seeded(t *testing.T) *countingStore {
	t.Helper()
	inner := &countingStore{Store: memstore.New()}
	require.NoError(t, inner.Store.Append(context.Background(), candle(60)))
	return inner
}

const (
	genKey  = "candles:mAAPL:1m:gen"
	g0Range = "candles:mAAPL:1m:g0:0:300"
)

func TestStore_Query_CacheMissStoresResult(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer rdb.Close()

	inner := seeded(t)
	want, _ := json.Marshal([]domain.Candle{candle(60)})

	mock.ExpectGet(genKey).RedisNil()
	mock.ExpectGet(g0Range).RedisNil()
	mock.ExpectSet(g0Range, want, ttl).SetVal("OK")

	s, err := New(rdb, ttl, "", inner, &mockLogger{})
	require.NoError(t, err)

	rows, err := s.Query(context.Background(), asset.MAAPL, domain.Interval1m, 0, 300)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 1, inner.queries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Query_CacheHitSkipsStore(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer rdb.Close()

	inner := seeded(t)
	cached, _ := json.Marshal([]domain.Candle{candle(60), candle(120)})
	mock.ExpectGet(genKey).SetVal("3")
	mock.ExpectGet("candles:mAAPL:1m:g3:0:300").SetVal(string(cached))

	s, err := New(rdb, ttl, "", inner, &mockLogger{})
	require.NoError(t, err)

	rows, err := s.Query(context.Background(), asset.MAAPL, domain.Interval1m, 0, 300)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "150.5", rows[1].Close.String())
	assert.Zero(t, inner.queries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Query_CorruptedEntryIsDropped(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer rdb.Close()

	inner := seeded(t)
	want, _ := json.Marshal([]domain.Candle{candle(60)})

	mock.ExpectGet(genKey).RedisNil()
	mock.ExpectGet(g0Range).SetVal("{not json")
	mock.ExpectDel(g0Range).SetVal(1)
	mock.ExpectSet(g0Range, want, ttl).SetVal("OK")

	s, err := New(rdb, ttl, "", inner, &mockLogger{})
	require.NoError(t, err)

	_, err = s.Query(context.Background(), asset.MAAPL, domain.Interval1m, 0, 300)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.queries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Query_RedisDownFallsThrough(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer rdb.Close()

	inner := seeded(t)
	mock.ExpectGet(genKey).SetErr(errors.New("connection refused"))

	s, err := New(rdb, ttl, "", inner, &mockLogger{})
	require.NoError(t, err)

	rows, err := s.Query(context.Background(), asset.MAAPL, domain.Interval1m, 0, 300)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 1, inner.queries)
	assert.NoError(t, mock.ExpectationsWereMet(), "nothing is cached without a generation")
}

func TestStore_Append_BumpsGeneration(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer rdb.Close()

	inner := seeded(t)
	mock.ExpectIncr(genKey).SetVal(1)

	s, err := New(rdb, ttl, "", inner, &mockLogger{})
	require.NoError(t, err)

	require.NoError(t, s.Append(context.Background(), candle(120)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// appendDuringRead runs an Append after the inner read and before the cache write.
type appendDuringRead struct {
	*countingStore
	onRead func()
}

func (a *appendDuringRead) Query(ctx context.Context, symbol asset.Symbol, interval domain.Interval, from, to int64) ([]domain.Candle, error) {
	out, err := a.countingStore.Query(ctx, symbol, interval, from, to)
	if a.onRead != nil {
		f := a.onRead
		a.onRead = nil
		f()
	}
	return out, err
}

func TestStore_Query_ConcurrentAppendIsNotHidden(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer rdb.Close()
	ctx := context.Background()

	inner := &appendDuringRead{countingStore: seeded(t)}
	s, err := New(rdb, ttl, "", inner, &mockLogger{})
	require.NoError(t, err)
	inner.onRead = func() { require.NoError(t, s.Append(ctx, candle(120))) }

	stale, _ := json.Marshal([]domain.Candle{candle(60)})
	fresh, _ := json.Marshal([]domain.Candle{candle(60), candle(120)})

	mock.ExpectGet(genKey).RedisNil()
	mock.ExpectGet(g0Range).RedisNil()
	mock.ExpectIncr(genKey).SetVal(1)
	mock.ExpectSet(g0Range, stale, ttl).SetVal("OK")

	mock.ExpectGet(genKey).SetVal("1")
	mock.ExpectGet("candles:mAAPL:1m:g1:0:300").RedisNil()
	mock.ExpectSet("candles:mAAPL:1m:g1:0:300", fresh, ttl).SetVal("OK")

	rows, err := s.Query(ctx, asset.MAAPL, domain.Interval1m, 0, 300)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = s.Query(ctx, asset.MAAPL, domain.Interval1m, 0, 300)
	require.NoError(t, err)
	assert.Len(t, rows, 2, "the stale entry lives under the old generation")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Append_DuplicateSkipsInvalidation(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer rdb.Close()

	s, err := New(rdb, ttl, "", seeded(t), &mockLogger{})
	require.NoError(t, err)

	err = s.Append(context.Background(), candle(60))
	assert.True(t, apperror.IsCode(err, apperror.CodeDuplicateBucket))
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = s.Latest(context.Background(), asset.MAAPL, domain.Interval1m)
	assert.NoError(t, err)
}

func TestKeyPrefix_EscapesSeparatorsAndGlobs(t *testing.T) {
	s := &Store{namespace: "candles"}

	tests := map[string]string{
		"mAAPL":   "candles:mAAPL:1m:",
		"m AAPL":  "candles:m_AAPL:1m:",
		"a:b":     "candles:a_b:1m:",
		"m*":      "candles:m_:1m:",
		"m?[x]":   "candles:m__x_:1m:",
		"m\\AAPL": "candles:m_AAPL:1m:",
	}
	for symbol, want := range tests {
		assert.Equal(t, want, s.keyPrefix(asset.Symbol(symbol), domain.Interval1m), symbol)
	}
}
