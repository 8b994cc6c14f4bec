// Package rediscache decorates a HistoryStore with a read-through Redis cache for range queries.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/synth-indexer/business/market/app"
	"github.com/fd1az/synth-indexer/business/market/domain"
	"github.com/fd1az/synth-indexer/internal/asset"
	"github.com/fd1az/synth-indexer/internal/logger"
)

const meterName = "github.com/fd1az/synth-indexer/business/market/infra/rediscache"

var _ app.HistoryStore = (*Store)(nil)

// Store caches Query results per (symbol, interval, generation, from, to). Redis is best
// effort: any failure falls through to the inner store.
type Store struct {
	inner     app.HistoryStore
	rdb       redis.UniversalClient
	ttl       time.Duration
	namespace string
	logger    logger.LoggerInterface

	hits   metric.Int64Counter
	misses metric.Int64Counter
}

// New wraps inner. ttl defaults to 5 minutes and namespace to "candles".
func New(rdb redis.UniversalClient, ttl time.Duration, namespace string, inner app.HistoryStore, log logger.LoggerInterface) (*Store, error) {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if namespace == "" {
		namespace = "candles"
	}

	meter := otel.Meter(meterName)
	hits, err := meter.Int64Counter("store_query_cache_hits_total",
		metric.WithDescription("Candle range queries served from Redis"))
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	misses, err := meter.Int64Counter("store_query_cache_misses_total",
		metric.WithDescription("Candle range queries that fell through to the store"))
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return &Store{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
		logger:    log,
		hits:      hits,
		misses:    misses,
	}, nil
}

// Append writes through, then bumps the series generation so earlier cached ranges are
// no longer read. Entries of older generations expire with their TTL.
func (s *Store) Append(ctx context.Context, c domain.Candle) error {
	if err := s.inner.Append(ctx, c); err != nil {
		return err
	}
	if err := s.rdb.Incr(ctx, s.genKey(c.Symbol, c.Interval)).Err(); err != nil {
		s.logger.Warn(ctx, "candle cache invalidation failed", "series", c.Key().String(), "error", err)
	}
	return nil
}

// Query serves from Redis when possible. The generation is read before the inner store, so
// a result that misses a concurrent Append is cached under a generation already superseded.
func (s *Store) Query(ctx context.Context, symbol asset.Symbol, interval domain.Interval, from, to int64) ([]domain.Candle, error) {
	gen, err := s.generation(ctx, symbol, interval)
	if err != nil {
		s.logger.Debug(ctx, "candle cache generation read failed", "series", string(symbol)+"/"+string(interval), "error", err)
		s.misses.Add(ctx, 1)
		return s.inner.Query(ctx, symbol, interval, from, to)
	}
	key := s.key(symbol, interval, gen, from, to)

	if b, err := s.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out []domain.Candle
		if err := json.Unmarshal(b, &out); err == nil {
			s.hits.Add(ctx, 1)
			return out, nil
		}
		_ = s.rdb.Del(ctx, key).Err()
	} else if err != nil && !errors.Is(err, redis.Nil) {
		s.logger.Debug(ctx, "candle cache read failed", "key", key, "error", err)
	}
	s.misses.Add(ctx, 1)

	out, err := s.inner.Query(ctx, symbol, interval, from, to)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(out); err == nil {
		if err := s.rdb.Set(ctx, key, b, s.ttl).Err(); err != nil {
			s.logger.Debug(ctx, "candle cache write failed", "key", key, "error", err)
		}
	}
	return out, nil
}

// Latest is not cached; it changes with every sealed candle.
func (s *Store) Latest(ctx context.Context, symbol asset.Symbol, interval domain.Interval) (domain.Candle, error) {
	return s.inner.Latest(ctx, symbol, interval)
}

// Ping checks the inner store. Redis being down only disables caching.
func (s *Store) Ping(ctx context.Context) error {
	if p, ok := s.inner.(app.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// generation returns the series counter; a missing key is generation 0.
func (s *Store) generation(ctx context.Context, symbol asset.Symbol, interval domain.Interval) (int64, error) {
	gen, err := s.rdb.Get(ctx, s.genKey(symbol, interval)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (s *Store) key(symbol asset.Symbol, interval domain.Interval, gen, from, to int64) string {
	return fmt.Sprintf("%sg%d:%d:%d", s.keyPrefix(symbol, interval), gen, from, to)
}

func (s *Store) genKey(symbol asset.Symbol, interval domain.Interval) string {
	return s.keyPrefix(symbol, interval) + "gen"
}

func (s *Store) keyPrefix(symbol asset.Symbol, interval domain.Interval) string {
	return fmt.Sprintf("%s:%s:%s:", s.namespace, safe(string(symbol)), safe(string(interval)))
}

// keyEscaper replaces the key separator, whitespace and glob metacharacters.
var keyEscaper = strings.NewReplacer(" ", "_", ":", "_", "*", "_", "?", "_", "[", "_", "]", "_", "\\", "_")

func safe(s string) string {
	return keyEscaper.Replace(s)
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}
