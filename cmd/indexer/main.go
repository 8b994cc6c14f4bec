// Package main is the entry point for the synthetic asset indexer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/fd1az/synth-indexer/business/chain"
	"github.com/fd1az/synth-indexer/business/engine"
	"github.com/fd1az/synth-indexer/business/market"
	"github.com/fd1az/synth-indexer/business/pricing"
	"github.com/fd1az/synth-indexer/business/risk"
	"github.com/fd1az/synth-indexer/internal/apm"
	"github.com/fd1az/synth-indexer/internal/config"
	"github.com/fd1az/synth-indexer/internal/fixedpoint"
	"github.com/fd1az/synth-indexer/internal/health"
	"github.com/fd1az/synth-indexer/internal/logger"
	"github.com/fd1az/synth-indexer/internal/metrics"
	"github.com/fd1az/synth-indexer/internal/monolith"
	"github.com/fd1az/synth-indexer/pkg/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	cliMode := flag.Bool("cli", false, "Run in CLI mode with logs (no TUI)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("synth-indexer %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	tuiMode := !*cliMode

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, tuiMode); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, tuiMode bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.App.TUIMode = tuiMode

	fixedpoint.SetPrecision(cfg.Decimal.Precision)

	// Only log to stderr in CLI mode
	var out io.Writer = os.Stderr
	if tuiMode {
		out = io.Discard
	}
	log := logger.New(out, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, apm.TraceID)
	log.Info(ctx, "starting synth indexer",
		"version", version,
		"environment", cfg.App.Environment,
		"precision", fixedpoint.Precision(),
	)

	traceProvider, err := apm.NewTraceProvider(cfg.Telemetry, log)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer traceProvider.Stop()

	meterProvider, err := initMetrics(ctx, cfg, log)
	if err != nil {
		return err
	}
	if meterProvider != nil {
		defer meterProvider.Shutdown(context.WithoutCancel(ctx))
	}

	healthServer := health.NewServer(cfg.Health.Port, version)
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", cfg.Health.Port)
	}
	defer healthServer.Stop(context.WithoutCancel(ctx))

	mono := monolith.New(cfg, log, healthServer)
	defer func() {
		if err := mono.Close(); err != nil {
			log.Error(ctx, "shutdown finished with errors", "error", err)
		}
	}()

	// Pricing starts last so its scheduler is the first thing stopped.
	modules := []monolith.Module{
		&chain.Module{},
		&market.Module{},
		&risk.Module{},
		&engine.Module{},
		&pricing.Module{},
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}

	if tuiMode {
		start := func() error {
			return startWithProgress(ctx, mono, modules)
		}
		fetch := func(ctx context.Context) (ui.SnapshotMsg, error) {
			return newDashboard(mono, healthServer).Snapshot(ctx)
		}
		return runTUI(ctx, start, fetch, cfg)
	}

	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}
	log.Info(ctx, "all modules started, ingesting prices")

	select {
	case <-ctx.Done():
	case err := <-healthServer.Errors():
		log.Error(ctx, "health server failed", "error", err)
	}

	log.Info(ctx, "shutting down")
	return nil
}

func initMetrics(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (metrics.MetricProvider, error) {
	if !cfg.Telemetry.Enabled {
		return nil, nil
	}

	providers := []metrics.OptionFn{
		metrics.WithServiceName(cfg.Telemetry.ServiceName),
		metrics.WithProviderConfig(metrics.NewPrometheusConfig()),
	}
	if cfg.Telemetry.OTLPEndpoint != "" {
		providers = append(providers, metrics.WithProviderConfig(
			metrics.NewOtelCollectorConfig(cfg.Telemetry.OTLPEndpoint, nil, true)))
	}
	provider, err := metrics.NewMetricProvider(providers...)
	if err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	port := cfg.Telemetry.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go func() {
		if err := metrics.ServePrometheusMetrics(ctx, port); err != nil {
			log.Error(ctx, "prometheus server failed", "error", err)
		}
	}()
	log.Info(ctx, "prometheus metrics server started", "port", port)
	return provider, nil
}

// startWithProgress starts the modules and reports each phase to the dashboard.
func startWithProgress(ctx context.Context, mono *monolith.App, modules []monolith.Module) error {
	ui.Send(ui.StartupMsg{Step: "config", Status: "done"})
	for _, step := range []string{"chains", "storage", "sources"} {
		ui.Send(ui.StartupMsg{Step: step, Status: "connecting"})
	}

	if err := mono.StartModules(ctx, modules...); err != nil {
		ui.Send(ui.StartupMsg{Step: "ingestion", Status: "failed", Message: err.Error()})
		return fmt.Errorf("failed to start modules: %w", err)
	}

	for _, step := range []string{"chains", "storage", "sources"} {
		ui.Send(ui.StartupMsg{Step: step, Status: "done"})
	}
	ui.Send(ui.StartupMsg{Step: "ingestion", Status: "done"})
	return nil
}

func runTUI(ctx context.Context, start func() error, fetch ui.Fetcher, cfg *config.Config) error {
	startSignal := make(chan struct{}, 1)
	ui.OnStartModules = func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}

	p := tea.NewProgram(ui.New(fetch, cfg.Ingestion.PollInterval, 4), tea.WithAltScreen(), tea.WithContext(ctx))
	ui.Program = p

	errCh := make(chan error, 1)
	go func() {
		select {
		case <-startSignal:
		case <-ctx.Done():
			errCh <- nil
			return
		}

		if err := start(); err != nil {
			ui.Send(ui.ErrorMsg{Error: err})
			errCh <- err
			return
		}
		errCh <- nil
	}()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", err)
	}

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}
