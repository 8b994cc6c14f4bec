package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/synth-indexer/business/market/domain"
	"github.com/fd1az/synth-indexer/internal/apperror"
	"github.com/fd1az/synth-indexer/internal/asset"
	"github.com/fd1az/synth-indexer/internal/fixedpoint"
)

func candle(bucket int64, price string) domain.Candle {
	p := fixedpoint.MustParse(price)
	return domain.Candle{
		Symbol: asset.MAAPL, Interval: domain.Interval1m, BucketStart: bucket,
		Open: p, High: p, Low: p, Close: p, ObservationCount: 1,
	}
}

func TestStore_AppendRejectsDuplicateAndKeepsOriginal(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Append(ctx, candle(60, "10")))
	err := s.Append(ctx, candle(60, "99"))
	assert.True(t, apperror.IsCode(err, apperror.CodeDuplicateBucket))

	rows, err := s.Query(ctx, asset.MAAPL, domain.Interval1m, 0, 1000)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "10", rows[0].Close.String())
}

func TestStore_QueryAscendingHalfOpen(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, b := range []int64{240, 0, 120, 60, 180} {
		require.NoError(t, s.Append(ctx, candle(b, "1")))
	}

	rows, err := s.Query(ctx, asset.MAAPL, domain.Interval1m, 60, 240)
	require.NoError(t, err)

	var buckets []int64
	for _, r := range rows {
		buckets = append(buckets, r.BucketStart)
	}
	assert.Equal(t, []int64{60, 120, 180}, buckets)

	rows, err = s.Query(ctx, asset.MAAPL, domain.Interval1m, 300, 100)
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = s.Query(ctx, asset.MTSLA, domain.Interval1m, 0, 1000)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStore_Latest(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Latest(ctx, asset.MAAPL, domain.Interval1m)
	assert.True(t, apperror.IsCode(err, apperror.CodePriceNotFound))

	require.NoError(t, s.Append(ctx, candle(120, "12")))
	require.NoError(t, s.Append(ctx, candle(60, "11")))

	c, err := s.Latest(ctx, asset.MAAPL, domain.Interval1m)
	require.NoError(t, err)
	assert.Equal(t, int64(120), c.BucketStart)
	assert.Equal(t, 2, s.Len())
}

func TestStore_RejectsInvalidCandle(t *testing.T) {
	c := candle(61, "1")
	assert.Error(t, New().Append(context.Background(), c))
}
