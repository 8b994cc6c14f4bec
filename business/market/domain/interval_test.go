package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/synth-indexer/internal/apperror"
)

func TestBucketStart(t *testing.T) {
	tests := []struct {
		interval Interval
		ts       int64
		want     int64
	}{
		{Interval1m, 0, 0},
		{Interval1m, 59, 0},
		{Interval1m, 60, 60},
		{Interval1m, 125, 120},
		{Interval5m, 1_700_000_123, 1_700_000_100},
		{Interval1d, 1_700_000_123, 1_699_920_000},
		{Interval1m, -1, -60},
		{Interval1m, -60, -60},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.interval.BucketStart(tt.ts), "%s %d", tt.interval, tt.ts)
		assert.Zero(t, tt.interval.BucketStart(tt.ts)%tt.interval.Seconds())
	}
}

func TestParseInterval(t *testing.T) {
	for _, i := range AllIntervals() {
		got, err := ParseInterval(string(i))
		require.NoError(t, err)
		assert.Equal(t, i, got)
	}

	_, err := ParseInterval("2m")
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidInterval))
}

func TestParseIntervals_SortsAndDedups(t *testing.T) {
	got, err := ParseIntervals([]string{"1h", "1m", "1d", "1m"})
	require.NoError(t, err)
	assert.Equal(t, []Interval{Interval1m, Interval1h, Interval1d}, got)

	finest, ok := Finest([]Interval{Interval4h, Interval5m, Interval1h})
	assert.True(t, ok)
	assert.Equal(t, Interval5m, finest)

	_, ok = Finest(nil)
	assert.False(t, ok)
}
