// Package memstore is an in-memory HistoryStore for local runs and tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/fd1az/synth-indexer/business/market/app"
	"github.com/fd1az/synth-indexer/business/market/domain"
	"github.com/fd1az/synth-indexer/internal/apperror"
	"github.com/fd1az/synth-indexer/internal/asset"
)

var _ app.HistoryStore = (*Store)(nil)

// Store keeps each series sorted by bucket start.
type Store struct {
	mu     sync.RWMutex
	series map[domain.SeriesKey][]domain.Candle
}

// New creates an empty store.
func New() *Store {
	return &Store{series: make(map[domain.SeriesKey][]domain.Candle)}
}

// Append inserts c at its position, rejecting an existing bucket.
func (s *Store) Append(_ context.Context, c domain.Candle) error {
	if err := c.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := c.Key()
	rows := s.series[key]
	i := sort.Search(len(rows), func(i int) bool { return rows[i].BucketStart >= c.BucketStart })
	if i < len(rows) && rows[i].BucketStart == c.BucketStart {
		return apperror.New(apperror.CodeDuplicateBucket,
			apperror.WithContext(fmt.Sprintf("%s/%d", key, c.BucketStart)))
	}

	rows = append(rows, domain.Candle{})
	copy(rows[i+1:], rows[i:])
	rows[i] = c
	s.series[key] = rows
	return nil
}

// Query returns a copy of the rows in [from, to).
func (s *Store) Query(_ context.Context, symbol asset.Symbol, interval domain.Interval, from, to int64) ([]domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.series[domain.SeriesKey{Symbol: symbol, Interval: interval}]
	lo := sort.Search(len(rows), func(i int) bool { return rows[i].BucketStart >= from })
	hi := sort.Search(len(rows), func(i int) bool { return rows[i].BucketStart >= to })
	if hi < lo {
		hi = lo
	}

	out := make([]domain.Candle, hi-lo)
	copy(out, rows[lo:hi])
	return out, nil
}

// Latest returns the last row of a series.
func (s *Store) Latest(_ context.Context, symbol asset.Symbol, interval domain.Interval) (domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := domain.SeriesKey{Symbol: symbol, Interval: interval}
	rows := s.series[key]
	if len(rows) == 0 {
		return domain.Candle{}, apperror.PriceNotFound(key.String())
	}
	return rows[len(rows)-1], nil
}

// Len returns the number of stored candles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rows := range s.series {
		n += len(rows)
	}
	return n
}
