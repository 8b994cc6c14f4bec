// Package engine wires the read facade over market history and risk.
package engine

import (
	"context"

	"github.com/fd1az/synth-indexer/business/engine/app"
	engineDI "github.com/fd1az/synth-indexer/business/engine/di"
	marketDI "github.com/fd1az/synth-indexer/business/market/di"
	riskDI "github.com/fd1az/synth-indexer/business/risk/di"
	"github.com/fd1az/synth-indexer/internal/config"
	"github.com/fd1az/synth-indexer/internal/di"
	"github.com/fd1az/synth-indexer/internal/logger"
	"github.com/fd1az/synth-indexer/internal/monolith"
)

// Module implements the engine context.
type Module struct{}

// RegisterServices registers the facade.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, engineDI.Engine, func(sr di.ServiceRegistry) *app.Engine {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		return app.New(
			marketDI.GetHistory(sr),
			riskDI.GetCalculator(sr),
			marketDI.GetBuilder(sr),
			cfg.Ingestion.QueryLimit,
			log,
		)
	})
	return nil
}

// Startup resolves the facade so wiring errors surface at boot.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	engineDI.GetEngine(mono.Services())
	mono.Logger().Info(ctx, "engine module started", "query_limit", mono.Config().Ingestion.QueryLimit)
	return nil
}
