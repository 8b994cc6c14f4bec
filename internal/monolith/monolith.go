// Package monolith provides the application container and module interface.
package monolith

import (
	"context"
	"errors"
	"sync"

	"github.com/fd1az/synth-indexer/internal/asset"
	"github.com/fd1az/synth-indexer/internal/config"
	"github.com/fd1az/synth-indexer/internal/di"
	"github.com/fd1az/synth-indexer/internal/health"
	"github.com/fd1az/synth-indexer/internal/logger"
)

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	AssetRegistry() *asset.Registry
	Health() health.Checker
	Services() di.ServiceRegistry
	// OnClose registers a teardown hook. Hooks run in reverse registration order.
	OnClose(name string, fn func() error)
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

type closer struct {
	name string
	fn   func() error
}

// App implements the Monolith interface.
type App struct {
	config        *config.Config
	logger        logger.LoggerInterface
	assetRegistry *asset.Registry
	health        health.Checker
	container     di.Container

	closers []closer
	mu      sync.Mutex
}

// New creates a new Monolith instance. Asset overrides from config are applied on top
// of the default registry.
func New(cfg *config.Config, log logger.LoggerInterface, checker health.Checker) *App {
	assetRegistry := asset.DefaultRegistry()
	for _, a := range cfg.Assets {
		assetRegistry.Upsert(asset.NewAsset(asset.Symbol(a.Symbol), a.Name, a.Decimals, asset.Kind(a.Kind)))
	}

	container := di.NewContainer()

	container.Register("config", cfg)
	container.Register("logger", log)
	container.Register("assetRegistry", assetRegistry)
	container.Register("health", checker)

	return &App{
		config:        cfg,
		logger:        log,
		assetRegistry: assetRegistry,
		health:        checker,
		container:     container,
	}
}

func (a *App) Config() *config.Config {
	return a.config
}

func (a *App) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *App) AssetRegistry() *asset.Registry {
	return a.assetRegistry
}

func (a *App) Health() health.Checker {
	return a.health
}

func (a *App) Services() di.ServiceRegistry {
	return a.container
}

// Container returns the DI container for module registration.
func (a *App) Container() di.Container {
	return a.container
}

func (a *App) OnClose(name string, fn func() error) {
	a.mu.Lock()
	a.closers = append(a.closers, closer{name: name, fn: fn})
	a.mu.Unlock()
}

// RegisterModules registers all provided modules.
func (a *App) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules.
func (a *App) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close runs the registered hooks, newest first, and joins their errors.
func (a *App) Close() error {
	a.mu.Lock()
	closers := a.closers
	a.closers = nil
	a.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].fn(); err != nil {
			a.logger.Error(context.Background(), "close failed", "resource", closers[i].name, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
