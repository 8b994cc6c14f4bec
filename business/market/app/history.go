package app

import (
	"context"

	"github.com/fd1az/synth-indexer/business/market/domain"
	"github.com/fd1az/synth-indexer/internal/apperror"
	"github.com/fd1az/synth-indexer/internal/asset"
	"github.com/fd1az/synth-indexer/internal/fixedpoint"
)

// HistoryService answers read queries over stored candles.
type HistoryService struct {
	store  HistoryStore
	finest domain.Interval
}

// NewHistoryService creates the service. latest prices are read at the finest of intervals.
func NewHistoryService(store HistoryStore, intervals []domain.Interval) (*HistoryService, error) {
	finest, ok := domain.Finest(intervals)
	if !ok {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("history: no intervals"))
	}
	return &HistoryService{store: store, finest: finest}, nil
}

// FinestInterval returns the interval LatestPrice reads.
func (s *HistoryService) FinestInterval() domain.Interval { return s.finest }

// Query returns candles with from <= bucketStart < to, ascending. An empty range yields no rows.
func (s *HistoryService) Query(ctx context.Context, symbol asset.Symbol, interval domain.Interval, from, to int64) ([]domain.Candle, error) {
	if !interval.Valid() {
		return nil, apperror.New(apperror.CodeInvalidInterval, apperror.WithContextf("%q", interval))
	}
	if to <= from {
		return []domain.Candle{}, nil
	}
	return s.store.Query(ctx, symbol, interval, from, to)
}

// LatestCandle returns the most recent sealed candle of a series.
func (s *HistoryService) LatestCandle(ctx context.Context, symbol asset.Symbol, interval domain.Interval) (domain.Candle, error) {
	return s.store.Latest(ctx, symbol, interval)
}

// LatestPrice returns the close of the most recent sealed candle at the finest interval.
func (s *HistoryService) LatestPrice(ctx context.Context, symbol asset.Symbol) (fixedpoint.Decimal, error) {
	c, err := s.store.Latest(ctx, symbol, s.finest)
	if err != nil {
		return fixedpoint.Zero, err
	}
	return c.Close, nil
}
