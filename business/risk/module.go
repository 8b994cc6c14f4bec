// Package risk derives collateral ratios of debt positions from the latest candle prices.
package risk

import (
	"context"
	"os"

	marketDI "github.com/fd1az/synth-indexer/business/market/di"
	"github.com/fd1az/synth-indexer/business/risk/app"
	riskDI "github.com/fd1az/synth-indexer/business/risk/di"
	"github.com/fd1az/synth-indexer/business/risk/domain"
	"github.com/fd1az/synth-indexer/business/risk/infra/positions"
	"github.com/fd1az/synth-indexer/business/risk/infra/reporter"
	"github.com/fd1az/synth-indexer/internal/asset"
	"github.com/fd1az/synth-indexer/internal/config"
	"github.com/fd1az/synth-indexer/internal/database"
	"github.com/fd1az/synth-indexer/internal/di"
	"github.com/fd1az/synth-indexer/internal/fixedpoint"
	"github.com/fd1az/synth-indexer/internal/logger"
	"github.com/fd1az/synth-indexer/internal/monolith"
)

// Module implements the risk bounded context.
type Module struct{}

type seeder interface {
	Upsert(ctx context.Context, ps ...domain.Position) error
}

// RegisterServices registers the position repository and the calculator.
func (m *Module) RegisterServices(c di.Container) error {
	database.Register(c)

	di.RegisterToken(c, riskDI.Positions, func(sr di.ServiceRegistry) app.PositionRepository {
		cfg := sr.Get("config").(*config.Config)

		if cfg.Storage.Driver == config.DriverMemory {
			return positions.NewMemoryRepository()
		}

		repo := positions.NewRepository(database.Get(sr))
		if cfg.Storage.Driver == config.DriverSQLite {
			// Postgres tables belong to the protocol indexer.
			if err := repo.Migrate(context.Background()); err != nil {
				panic("failed to migrate positions: " + err.Error())
			}
		}
		return repo
	})

	di.RegisterToken(c, riskDI.Calculator, func(sr di.ServiceRegistry) *app.Calculator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		perAsset := make(map[asset.Symbol]fixedpoint.Decimal, len(cfg.Risk.MinRatios))
		for sym, ratio := range cfg.Risk.MinRatiosDecimal() {
			perAsset[asset.Symbol(sym)] = ratio
		}

		calc, err := app.NewCalculator(app.CalculatorConfig{
			QuoteSymbol: asset.Symbol(cfg.Risk.QuoteSymbol),
			Thresholds: domain.Thresholds{
				DefaultMin:   cfg.Risk.DefaultMinRatioDecimal(),
				PerAsset:     perAsset,
				SafetyMargin: cfg.Risk.SafetyMarginDecimal(),
			},
		}, riskDI.GetPositions(sr), marketDI.GetHistory(sr), log)
		if err != nil {
			panic("failed to create risk calculator: " + err.Error())
		}
		return calc
	})

	di.RegisterToken(c, riskDI.Monitor, func(sr di.ServiceRegistry) *app.Monitor {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		var rep app.Reporter = reporter.NewConsole(os.Stdout)
		if cfg.App.TUIMode {
			rep = reporter.NewTUI()
		}

		mon, err := app.NewMonitor(riskDI.GetCalculator(sr), rep, cfg.Risk.ScanInterval, log)
		if err != nil {
			panic("failed to create risk monitor: " + err.Error())
		}
		return mon
	})

	return nil
}

// Startup seeds configured positions and starts the risk monitor.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	repo := riskDI.GetPositions(mono.Services())

	if len(cfg.Risk.Positions) > 0 {
		s, ok := repo.(seeder)
		if !ok {
			mono.Logger().Warn(ctx, "position repository is read-only, seeds ignored")
		} else if err := s.Upsert(ctx, seeds(cfg.Risk.Positions)...); err != nil {
			return err
		}
	}

	if p, ok := repo.(interface{ Ping(context.Context) error }); ok {
		mono.Health().RegisterCheck("positions", func(ctx context.Context) (bool, string) {
			if err := p.Ping(ctx); err != nil {
				return false, err.Error()
			}
			return true, ""
		})
	}

	if cfg.Risk.ScanInterval > 0 {
		monitor := riskDI.GetMonitor(mono.Services())
		if err := monitor.Start(ctx); err != nil {
			return err
		}
		mono.OnClose("risk monitor", monitor.Stop)
	}

	mono.Logger().Info(ctx, "risk module started",
		"quote", cfg.Risk.QuoteSymbol,
		"seeded_positions", len(cfg.Risk.Positions))
	return nil
}

func seeds(in []config.PositionSeed) []domain.Position {
	out := make([]domain.Position, 0, len(in))
	for _, s := range in {
		out = append(out, domain.Position{
			ID:               s.ID,
			Asset:            asset.Symbol(s.Asset),
			MintedAmount:     fixedpoint.MustParse(s.MintedAmount),
			CollateralAmount: fixedpoint.MustParse(s.CollateralAmount),
			CollateralToken:  asset.Symbol(s.CollateralToken),
		})
	}
	return out
}
