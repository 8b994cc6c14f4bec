// Package chain owns the EVM JSON-RPC connections shared by the price sources.
package chain

import (
	"context"

	"github.com/fd1az/synth-indexer/business/chain/app"
	chainDI "github.com/fd1az/synth-indexer/business/chain/di"
	"github.com/fd1az/synth-indexer/internal/config"
	"github.com/fd1az/synth-indexer/internal/di"
	"github.com/fd1az/synth-indexer/internal/logger"
	"github.com/fd1az/synth-indexer/internal/monolith"
)

// Module implements the chain bounded context.
type Module struct{}

// RegisterServices registers the client pool.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, chainDI.Pool, func(sr di.ServiceRegistry) *app.Pool {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		pool, err := app.NewPool(cfg.Chains, log, nil)
		if err != nil {
			panic("failed to create chain pool: " + err.Error())
		}
		return pool
	})
	return nil
}

// Startup wires health checks and teardown. Clients are dialed on first use.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	pool := chainDI.GetPool(mono.Services())

	mono.Health().RegisterCheck("chains", pool.CheckHealth)
	mono.OnClose("chains", pool.Close)

	mono.Logger().Info(ctx, "chain module started", "chains", pool.Names())
	return nil
}
