// Package app holds the per-chain JSON-RPC client pool.
package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/synth-indexer/internal/apperror"
	"github.com/fd1az/synth-indexer/internal/circuitbreaker"
	"github.com/fd1az/synth-indexer/internal/config"
	"github.com/fd1az/synth-indexer/internal/logger"
)

const meterName = "github.com/fd1az/synth-indexer/business/chain"

// Dialer opens a JSON-RPC client for url.
type Dialer func(ctx context.Context, url string) (*rpc.Client, error)

// handle is the lazily dialed state of one chain.
type handle struct {
	cfg config.ChainConfig
	cb  *circuitbreaker.CircuitBreaker[*rpc.Client]

	mu  sync.Mutex
	rpc *rpc.Client
	eth *ethclient.Client
}

// Pool resolves chain clients on first use and keeps them for the process lifetime.
// Safe for concurrent use; a chain is dialed at most once unless dialing fails.
type Pool struct {
	log    logger.LoggerInterface
	dialer Dialer
	chains map[string]*handle

	dials metric.Int64Counter

	closeOnce sync.Once
}

// NewPool creates a pool over the configured chains. No connection is made here.
func NewPool(chains []config.ChainConfig, log logger.LoggerInterface, dialer Dialer) (*Pool, error) {
	if dialer == nil {
		dialer = rpc.DialContext
	}

	dials, err := otel.Meter(meterName).Int64Counter(
		"chain_dials_total",
		metric.WithDescription("Chain client dial attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	p := &Pool{
		log:    log,
		dialer: dialer,
		chains: make(map[string]*handle, len(chains)),
		dials:  dials,
	}
	for _, c := range chains {
		p.chains[c.Name] = &handle{
			cfg: c,
			cb:  circuitbreaker.New[*rpc.Client](circuitbreaker.DefaultConfig("chain-" + c.Name)),
		}
	}
	return p, nil
}

// Names lists the configured chains.
func (p *Pool) Names() []string {
	names := make([]string, 0, len(p.chains))
	for n := range p.chains {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RPC returns the raw JSON-RPC client of chain, dialing it on first use.
func (p *Pool) RPC(ctx context.Context, chain string) (*rpc.Client, error) {
	h, ok := p.chains[chain]
	if !ok {
		return nil, apperror.New(apperror.CodeChainNotConfigured, apperror.WithContext(chain))
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rpc != nil {
		return h.rpc, nil
	}

	client, err := h.cb.Execute(func() (*rpc.Client, error) {
		return p.dial(ctx, h.cfg)
	})
	p.dials.Add(ctx, 1, metric.WithAttributes(
		attribute.String("chain", chain),
		attribute.Bool("success", err == nil),
	))
	if err != nil {
		return nil, apperror.New(apperror.CodeChainConnection,
			apperror.WithCause(err),
			apperror.WithContext(chain))
	}

	h.rpc = client
	h.eth = ethclient.NewClient(client)

	p.log.Info(ctx, "chain client connected", "chain", chain, "chain_id", h.cfg.ChainID)
	return h.rpc, nil
}

// Eth returns the typed client of chain, dialing it on first use.
func (p *Pool) Eth(ctx context.Context, chain string) (*ethclient.Client, error) {
	if _, err := p.RPC(ctx, chain); err != nil {
		return nil, err
	}

	h := p.chains[chain]
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.eth, nil
}

func (p *Pool) dial(ctx context.Context, cfg config.ChainConfig) (*rpc.Client, error) {
	client, err := p.dialer(ctx, cfg.RPCURL)
	if err != nil {
		return nil, err
	}

	if cfg.ChainID == 0 {
		return client, nil
	}

	got, err := ethclient.NewClient(client).ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("eth_chainId: %w", err)
	}
	if got.Uint64() != cfg.ChainID {
		client.Close()
		return nil, fmt.Errorf("chain id mismatch: want %d, got %s", cfg.ChainID, got)
	}
	return client, nil
}

// CheckHealth pings every chain that has been dialed. Chains never used are not reported.
func (p *Pool) CheckHealth(ctx context.Context) (bool, string) {
	var failed []string
	for _, name := range p.Names() {
		h := p.chains[name]

		h.mu.Lock()
		eth := h.eth
		h.mu.Unlock()

		if eth == nil {
			continue
		}
		if _, err := eth.BlockNumber(ctx); err != nil {
			failed = append(failed, name)
		}
	}

	if len(failed) > 0 {
		return false, "unreachable: " + strings.Join(failed, ",")
	}
	return true, ""
}

// Close closes every dialed client. It is idempotent.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		for _, h := range p.chains {
			h.mu.Lock()
			if h.rpc != nil {
				h.rpc.Close()
				h.rpc, h.eth = nil, nil
			}
			h.mu.Unlock()
		}
	})
	return nil
}
