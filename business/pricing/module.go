// Package pricing implements the pricing bounded context: price sources and the ingestion scheduler.
package pricing

import (
	"context"
	"errors"

	chainDI "github.com/fd1az/synth-indexer/business/chain/di"
	marketDI "github.com/fd1az/synth-indexer/business/market/di"
	"github.com/fd1az/synth-indexer/business/pricing/app"
	pricingDI "github.com/fd1az/synth-indexer/business/pricing/di"
	"github.com/fd1az/synth-indexer/business/pricing/infra/evmpair"
	"github.com/fd1az/synth-indexer/business/pricing/infra/lending"
	"github.com/fd1az/synth-indexer/business/pricing/infra/oracle"
	"github.com/fd1az/synth-indexer/business/pricing/infra/stream"
	"github.com/fd1az/synth-indexer/internal/asset"
	"github.com/fd1az/synth-indexer/internal/config"
	"github.com/fd1az/synth-indexer/internal/di"
	"github.com/fd1az/synth-indexer/internal/logger"
	"github.com/fd1az/synth-indexer/internal/monolith"
)

// Module implements the pricing bounded context.
type Module struct{}

// RegisterServices registers the configured price sources and the scheduler feeding the
// candle builder.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, pricingDI.Sources, func(sr di.ServiceRegistry) []app.PriceSource {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		sources, err := buildSources(cfg, sr, log)
		if err != nil {
			panic("failed to create price sources: " + err.Error())
		}
		return sources
	})

	di.RegisterToken(c, pricingDI.Scheduler, func(sr di.ServiceRegistry) *app.Scheduler {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		scheduler, err := app.NewScheduler(app.SchedulerConfig{
			PollInterval:      cfg.Ingestion.PollInterval,
			SourceTimeout:     cfg.Ingestion.SourceTimeout,
			RequestsPerMinute: cfg.Ingestion.RequestsPerMinute,
		}, pricingDI.GetSources(sr), marketDI.GetBuilder(sr), log)
		if err != nil {
			panic("failed to create scheduler: " + err.Error())
		}
		return scheduler
	})

	return nil
}

func buildSources(cfg *config.Config, sr di.ServiceRegistry, log logger.LoggerInterface) ([]app.PriceSource, error) {
	var sources []app.PriceSource

	if len(cfg.Oracle.Feeds) > 0 {
		feeds := make([]oracle.Feed, 0, len(cfg.Oracle.Feeds))
		for _, f := range cfg.Oracle.Feeds {
			feeds = append(feeds, oracle.Feed{Symbol: asset.Symbol(f.Symbol), Address: f.AddressHex()})
		}

		chain := cfg.Oracle.Chain
		resolve := func(ctx context.Context) (oracle.ContractCaller, error) {
			return chainDI.GetPool(sr).Eth(ctx, chain)
		}

		src, err := oracle.NewProvider(oracle.ProviderConfig{
			Chain:       chain,
			Feeds:       feeds,
			DecimalsTTL: cfg.Oracle.DecimalsCache,
		}, resolve, log)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	if len(cfg.Pairs) > 0 {
		pairs := make([]evmpair.Pair, 0, len(cfg.Pairs))
		for _, p := range cfg.Pairs {
			pairs = append(pairs, evmpair.Pair{
				Symbol:        asset.Symbol(p.Symbol),
				Chain:         p.Chain,
				Address:       p.AddressHex(),
				BaseDecimals:  p.BaseDecimals,
				QuoteDecimals: p.QuoteDecimals,
				Invert:        p.Invert,
			})
		}

		resolve := func(ctx context.Context, chain string) (evmpair.RawCaller, error) {
			return chainDI.GetPool(sr).RPC(ctx, chain)
		}

		src, err := evmpair.NewProvider(pairs, resolve, log)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	if len(cfg.Lending.Markets) > 0 {
		markets := make(map[asset.Symbol]string, len(cfg.Lending.Markets))
		for _, mm := range cfg.Lending.Markets {
			markets[asset.Symbol(mm.Symbol)] = mm.Market
		}

		src, err := lending.NewProvider(lending.ProviderConfig{
			BaseURL: cfg.Lending.BaseURL,
			Timeout: cfg.Lending.Timeout,
			Markets: markets,
		}, log)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	if cfg.Stream.Enabled {
		symbols := make([]asset.Symbol, 0, len(cfg.Stream.Symbols))
		for _, s := range cfg.Stream.Symbols {
			symbols = append(symbols, asset.Symbol(s))
		}

		src, err := stream.NewProvider(stream.ProviderConfig{
			URL:          cfg.Stream.URL,
			Symbols:      symbols,
			StaleTimeout: cfg.Stream.StaleTimeout,
		}, log)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	return sources, nil
}

// Startup starts ingestion. Stopping it is the first teardown hook to run.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	sources := pricingDI.GetSources(mono.Services())
	scheduler := pricingDI.GetScheduler(mono.Services())

	mono.OnClose("price sources", func() error {
		var errs []error
		for _, src := range sources {
			if err := src.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
	mono.OnClose("scheduler", func() error {
		scheduler.Stop()
		return nil
	})

	if len(sources) == 0 {
		log.Warn(ctx, "no price sources configured, ingestion is idle")
	}

	ids := make([]string, 0, len(sources))
	for _, src := range sources {
		ids = append(ids, string(src.ID()))
	}

	scheduler.Start(ctx)

	log.Info(ctx, "pricing module started", "sources", ids)
	return nil
}
