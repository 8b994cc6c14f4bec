// Package market builds OHLC candles from price observations and serves history queries.
package market

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fd1az/synth-indexer/business/market/app"
	marketDI "github.com/fd1az/synth-indexer/business/market/di"
	"github.com/fd1az/synth-indexer/business/market/domain"
	"github.com/fd1az/synth-indexer/business/market/infra/memstore"
	"github.com/fd1az/synth-indexer/business/market/infra/rediscache"
	"github.com/fd1az/synth-indexer/business/market/infra/sqlstore"
	"github.com/fd1az/synth-indexer/internal/config"
	"github.com/fd1az/synth-indexer/internal/database"
	"github.com/fd1az/synth-indexer/internal/di"
	"github.com/fd1az/synth-indexer/internal/logger"
	"github.com/fd1az/synth-indexer/internal/monolith"
)

// Module implements the market bounded context.
type Module struct{}

// RegisterServices registers the history store, the candle builder and the history service.
func (m *Module) RegisterServices(c di.Container) error {
	database.Register(c)

	di.RegisterToken(c, marketDI.Redis, func(sr di.ServiceRegistry) *redis.Client {
		cfg := sr.Get("config").(*config.Config)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		rdb, err := rediscache.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			panic("failed to connect to redis: " + err.Error())
		}
		return rdb
	})

	di.RegisterToken(c, marketDI.Store, func(sr di.ServiceRegistry) app.HistoryStore {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		var store app.HistoryStore
		switch cfg.Storage.Driver {
		case config.DriverSQLite, config.DriverPostgres:
			sql := sqlstore.New(database.Get(sr))
			if err := sql.Migrate(context.Background()); err != nil {
				panic("failed to migrate candle store: " + err.Error())
			}
			store = sql
		default:
			store = memstore.New()
		}

		if !cfg.Redis.Enabled {
			return store
		}

		cached, err := rediscache.New(marketDI.GetRedis(sr), cfg.Redis.TTL, "candles", store, log)
		if err != nil {
			panic("failed to create candle cache: " + err.Error())
		}
		return cached
	})

	di.RegisterToken(c, marketDI.Builder, func(sr di.ServiceRegistry) *app.Builder {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		intervals, err := domain.ParseIntervals(cfg.Ingestion.Intervals)
		if err != nil {
			panic("invalid ingestion intervals: " + err.Error())
		}

		builder, err := app.NewBuilder(app.BuilderConfig{
			Intervals:       intervals,
			PersistAttempts: cfg.Ingestion.PersistAttempts,
			InitialBackoff:  cfg.Ingestion.PersistInitialBackoff,
			MaxBackoff:      cfg.Ingestion.PersistMaxBackoff,
		}, marketDI.GetStore(sr), log)
		if err != nil {
			panic("failed to create candle builder: " + err.Error())
		}
		return builder
	})

	di.RegisterToken(c, marketDI.History, func(sr di.ServiceRegistry) *app.HistoryService {
		cfg := sr.Get("config").(*config.Config)

		intervals, err := domain.ParseIntervals(cfg.Ingestion.Intervals)
		if err != nil {
			panic("invalid ingestion intervals: " + err.Error())
		}

		svc, err := app.NewHistoryService(marketDI.GetStore(sr), intervals)
		if err != nil {
			panic("failed to create history service: " + err.Error())
		}
		return svc
	})

	return nil
}

// Startup resolves the store eagerly so misconfiguration fails at boot, then wires
// health checks and the shutdown flush.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	log := mono.Logger()
	sr := mono.Services()

	store := marketDI.GetStore(sr)
	builder := marketDI.GetBuilder(sr)

	if pinger, ok := store.(app.Pinger); ok {
		mono.Health().RegisterCheck("store", func(ctx context.Context) (bool, string) {
			if err := pinger.Ping(ctx); err != nil {
				return false, err.Error()
			}
			return true, ""
		})
	}
	mono.Health().RegisterCheck("candles", builder.CheckHealth)

	// Hooks run newest first: the flush must land before the handles go away.
	if cfg.Storage.Driver != config.DriverMemory {
		db := database.Get(sr)
		mono.OnClose("database", func() error { return database.Close(db) })
	}
	if cfg.Redis.Enabled {
		rdb := marketDI.GetRedis(sr)
		mono.OnClose("redis", rdb.Close)
	}
	mono.OnClose("candles", func() error {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.Ingestion.FlushTimeout)
		defer cancel()
		return builder.Flush(flushCtx)
	})

	log.Info(ctx, "market module started",
		"storage", cfg.Storage.Driver,
		"redis", cfg.Redis.Enabled,
		"intervals", cfg.Ingestion.Intervals)
	return nil
}
