// Package sqlstore is the gorm-backed HistoryStore (postgres in production, sqlite locally).
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/fd1az/synth-indexer/business/market/app"
	"github.com/fd1az/synth-indexer/business/market/domain"
	"github.com/fd1az/synth-indexer/internal/apperror"
	"github.com/fd1az/synth-indexer/internal/asset"
	"github.com/fd1az/synth-indexer/internal/database"
	"github.com/fd1az/synth-indexer/internal/fixedpoint"
)

var (
	_ app.HistoryStore = (*Store)(nil)
	_ app.Pinger       = (*Store)(nil)
)

// CandleModel is the candles row. Prices are stored as decimal strings to keep every digit.
type CandleModel struct {
	ID          uint   `gorm:"primaryKey"`
	Symbol      string `gorm:"size:32;not null;uniqueIndex:idx_candles_series_bucket,priority:1"`
	Interval    string `gorm:"column:candle_interval;size:8;not null;uniqueIndex:idx_candles_series_bucket,priority:2"`
	BucketStart int64  `gorm:"not null;uniqueIndex:idx_candles_series_bucket,priority:3"`

	Open             string `gorm:"size:80;not null"`
	High             string `gorm:"size:80;not null"`
	Low              string `gorm:"size:80;not null"`
	Close            string `gorm:"size:80;not null"`
	ObservationCount int64  `gorm:"not null"`
}

func (CandleModel) TableName() string {
	return "candles"
}

func toModel(c domain.Candle) CandleModel {
	return CandleModel{
		Symbol:           string(c.Symbol),
		Interval:         string(c.Interval),
		BucketStart:      c.BucketStart,
		Open:             c.Open.String(),
		High:             c.High.String(),
		Low:              c.Low.String(),
		Close:            c.Close.String(),
		ObservationCount: c.ObservationCount,
	}
}

func toDomain(m CandleModel) (domain.Candle, error) {
	prices := make([]fixedpoint.Decimal, 4)
	for i, s := range []string{m.Open, m.High, m.Low, m.Close} {
		d, err := fixedpoint.NewFromString(s)
		if err != nil {
			return domain.Candle{}, apperror.New(apperror.CodeStoreFailure, apperror.WithCause(err),
				apperror.WithContextf("candle row %d", m.ID))
		}
		prices[i] = d
	}
	return domain.Candle{
		Symbol:           asset.Symbol(m.Symbol),
		Interval:         domain.Interval(m.Interval),
		BucketStart:      m.BucketStart,
		Open:             prices[0],
		High:             prices[1],
		Low:              prices[2],
		Close:            prices[3],
		ObservationCount: m.ObservationCount,
	}, nil
}

// Store implements app.HistoryStore on gorm.
type Store struct {
	db *gorm.DB
}

// New creates a store over db. Open db with database.Open so unique violations are translated.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the candles table. Production schemas are managed outside the indexer.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&CandleModel{})
}

// Append inserts c. An existing bucket fails with DUPLICATE_BUCKET and is left untouched.
func (s *Store) Append(ctx context.Context, c domain.Candle) error {
	if err := c.Validate(); err != nil {
		return err
	}

	row := toModel(c)
	err := s.db.WithContext(ctx).Create(&row).Error
	switch {
	case err == nil:
		return nil
	case isDuplicate(err):
		return apperror.New(apperror.CodeDuplicateBucket, apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("%s/%d", c.Key(), c.BucketStart)))
	}
	return apperror.Wrap(err, apperror.CodeStoreFailure, "append candle")
}

// Query returns rows with from <= bucket_start < to, ascending.
func (s *Store) Query(ctx context.Context, symbol asset.Symbol, interval domain.Interval, from, to int64) ([]domain.Candle, error) {
	if to <= from {
		return []domain.Candle{}, nil
	}

	var rows []CandleModel
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND candle_interval = ? AND bucket_start >= ? AND bucket_start < ?",
			string(symbol), string(interval), from, to).
		Order("bucket_start ASC").
		Find(&rows).Error
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeStoreFailure, "query candles")
	}

	out := make([]domain.Candle, 0, len(rows))
	for _, m := range rows {
		c, err := toDomain(m)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Latest returns the newest row of a series.
func (s *Store) Latest(ctx context.Context, symbol asset.Symbol, interval domain.Interval) (domain.Candle, error) {
	var row CandleModel
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND candle_interval = ?", string(symbol), string(interval)).
		Order("bucket_start DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Candle{}, apperror.PriceNotFound(domain.SeriesKey{Symbol: symbol, Interval: interval}.String())
	}
	if err != nil {
		return domain.Candle{}, apperror.Wrap(err, apperror.CodeStoreFailure, "latest candle")
	}
	return toDomain(row)
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return database.Ping(ctx, s.db)
}

// isDuplicate recognizes unique violations, also from dialects without error translation.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}
