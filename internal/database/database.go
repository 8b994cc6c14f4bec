// Package database opens the gorm handle shared by the SQL-backed stores.
package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fd1az/synth-indexer/internal/config"
	"github.com/fd1az/synth-indexer/internal/di"
	"github.com/fd1az/synth-indexer/internal/logger"
)

// Token resolves the shared *gorm.DB. It is only registered for SQL drivers.
var Token = di.NewToken[*gorm.DB]("database")

// Open connects to the configured backend. Duplicate-key errors are translated to
// gorm.ErrDuplicatedKey.
func Open(cfg config.StorageConfig, log logger.LoggerInterface) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("database: driver %q is not SQL", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         NewGormLogger(log, 200*time.Millisecond),
	})
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Driver == config.DriverSQLite {
		// Every connection to :memory: is a distinct database.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// Register adds a lazy factory for Token unless one exists.
func Register(c di.Container) {
	if c.Has(Token.Name()) {
		return
	}
	di.RegisterToken(c, Token, func(sr di.ServiceRegistry) *gorm.DB {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		db, err := Open(cfg.Storage, log)
		if err != nil {
			panic("failed to open database: " + err.Error())
		}
		return db
	})
}

// Get resolves the shared handle.
func Get(sr di.ServiceRegistry) *gorm.DB {
	return di.GetToken(sr, Token)
}

// Ping checks connectivity.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
