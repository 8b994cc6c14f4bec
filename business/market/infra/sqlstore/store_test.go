package sqlstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/synth-indexer/business/market/domain"
	"github.com/fd1az/synth-indexer/internal/apperror"
	"github.com/fd1az/synth-indexer/internal/asset"
	"github.com/fd1az/synth-indexer/internal/config"
	"github.com/fd1az/synth-indexer/internal/database"
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

// setupStore prepares an in-memory SQLite store.
func setupStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.Open(config.StorageConfig{Driver: config.DriverSQLite, DSN: ":memory:"}, &mockLogger{})
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() { database.Close(db) })

	s := New(db)
	require.NoError(t, s.Migrate(context.Background()), "failed to migrate")
	return s
}

func candle(symbol asset.Symbol, interval domain.Interval, bucket int64, o, h, l, c string) domain.Candle {
	return domain.Candle{
		Symbol:           symbol,
		Interval:         interval,
		BucketStart:      bucket,
		Open:             fixedpoint.MustParse(o),
		High:             fixedpoint.MustParse(h),
		Low:              fixedpoint.MustParse(l),
		Close:            fixedpoint.MustParse(c),
		ObservationCount: 3,
	}
}

func TestStore_AppendAndQuery(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	for _, b := range []int64{180, 0, 120, 60} {
		require.NoError(t, s.Append(ctx, candle(asset.MAAPL, domain.Interval1m, b, "10", "12", "9", "11")))
	}
	require.NoError(t, s.Append(ctx, candle(asset.MAAPL, domain.Interval5m, 0, "10", "12", "9", "11")))
	require.NoError(t, s.Append(ctx, candle(asset.MTSLA, domain.Interval1m, 60, "1", "1", "1", "1")))

	rows, err := s.Query(ctx, asset.MAAPL, domain.Interval1m, 60, 180)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(60), rows[0].BucketStart)
	assert.Equal(t, int64(120), rows[1].BucketStart)
	assert.Equal(t, "11", rows[0].Close.String())
	assert.Equal(t, int64(3), rows[0].ObservationCount)

	rows, err = s.Query(ctx, asset.MAAPL, domain.Interval1m, 100, 100)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStore_DuplicateBucketNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	require.NoError(t, s.Append(ctx, candle(asset.MAAPL, domain.Interval1m, 60, "10", "12", "9", "11")))

	err := s.Append(ctx, candle(asset.MAAPL, domain.Interval1m, 60, "50", "50", "50", "50"))
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeDuplicateBucket))

	c, err := s.Latest(ctx, asset.MAAPL, domain.Interval1m)
	require.NoError(t, err)
	assert.Equal(t, "11", c.Close.String())
}

func TestStore_KeepsFullPrecision(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	v := "1.123456789012345678"
	require.NoError(t, s.Append(ctx, candle(asset.AUST, domain.Interval1h, 3600, v, v, v, v)))

	c, err := s.Latest(ctx, asset.AUST, domain.Interval1h)
	require.NoError(t, err)
	assert.Equal(t, v, c.Close.String())
}

func TestStore_LatestEmptySeries(t *testing.T) {
	s := setupStore(t)

	_, err := s.Latest(context.Background(), asset.MAAPL, domain.Interval1m)
	assert.True(t, apperror.IsCode(err, apperror.CodePriceNotFound))
	assert.NoError(t, s.Ping(context.Background()))
}
