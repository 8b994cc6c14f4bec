package stream

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/synth-indexer/business/pricing/app"
	"github.com/fd1az/synth-indexer/business/pricing/domain"
	"github.com/fd1az/synth-indexer/internal/apm"
	"github.com/fd1az/synth-indexer/internal/apperror"
	"github.com/fd1az/synth-indexer/internal/asset"
	"github.com/fd1az/synth-indexer/internal/fixedpoint"
	"github.com/fd1az/synth-indexer/internal/logger"
)

// SourceID identifies this source in observations and metrics.
const SourceID domain.SourceID = "stream"

var _ app.PriceSource = (*Provider)(nil)

// ProviderConfig holds configuration for the stream source.
type ProviderConfig struct {
	URL          string
	Symbols      []asset.Symbol
	StaleTimeout time.Duration // last value older than this is not served
}

type quote struct {
	price    fixedpoint.Decimal
	ts       int64
	received time.Time
}

// Provider serves the last pushed price per symbol. It only answers "latest" reads.
type Provider struct {
	config ProviderConfig
	logger logger.LoggerInterface
	client *Client

	quotes   map[asset.Symbol]quote
	quotesMu sync.RWMutex

	startOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	now       func() time.Time

	tracer apm.Tracer
}

// NewProvider creates the source. The connection is opened on the first fetch.
func NewProvider(cfg ProviderConfig, log logger.LoggerInterface) (*Provider, error) {
	if cfg.StaleTimeout <= 0 {
		cfg.StaleTimeout = time.Minute
	}

	names := make([]string, len(cfg.Symbols))
	for i, s := range cfg.Symbols {
		names[i] = string(s)
	}

	client, err := NewClient(ClientConfig{URL: cfg.URL, Symbols: names}, log)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Provider{
		config: cfg,
		logger: log,
		client: client,
		quotes: make(map[asset.Symbol]quote),
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
		tracer: apm.NewTracer(tracerName),
	}

	client.OnTicker(p.handleTicker)
	return p, nil
}

func (p *Provider) ID() domain.SourceID { return SourceID }

func (p *Provider) Symbols() []asset.Symbol { return p.config.Symbols }

// FetchPrice returns the freshest pushed price for symbol.
func (p *Provider) FetchPrice(ctx context.Context, symbol asset.Symbol, at domain.At) (fixedpoint.Decimal, error) {
	_, span := p.tracer.StartSpanFromContext(ctx, "stream.fetch_price",
		trace.WithAttributes(
			attribute.String("symbol", string(symbol)),
			attribute.String("at", at.String()),
		),
	)
	defer span.End()

	price, err := p.latest(symbol, at)
	if err != nil {
		span.NoticeError(err)
		return fixedpoint.Zero, err
	}
	span.SetOK()
	return price, nil
}

func (p *Provider) latest(symbol asset.Symbol, at domain.At) (fixedpoint.Decimal, error) {
	if !at.IsLatest() {
		return fixedpoint.Zero, apperror.PriceNotFound(string(symbol) + " @ " + at.String() + ": stream has no history")
	}

	p.ensureStarted()

	if !p.client.IsConnected() {
		return fixedpoint.Zero, apperror.SourceUnavailable(string(SourceID), apperror.New(apperror.CodeWebSocketConnectionError))
	}

	p.quotesMu.RLock()
	q, ok := p.quotes[symbol]
	p.quotesMu.RUnlock()

	if !ok {
		return fixedpoint.Zero, apperror.PriceNotFound(string(symbol))
	}
	if p.now().Sub(q.received) > p.config.StaleTimeout {
		return fixedpoint.Zero, apperror.PriceNotFound(string(symbol) + ": stale")
	}
	return q.price, nil
}

// Close stops the connection.
func (p *Provider) Close() error {
	p.cancel()
	return p.client.Close()
}

func (p *Provider) ensureStarted() {
	p.startOnce.Do(func() {
		go func() {
			if err := p.client.Connect(p.ctx); err != nil && p.ctx.Err() == nil {
				p.logger.Error(p.ctx, "stream connect gave up", "error", err)
			}
		}()
	})
}

func (p *Provider) handleTicker(ctx context.Context, ev *TickerEvent) {
	if !ev.Price.IsPositive() {
		p.logger.Debug(ctx, "ignoring non-positive ticker", "symbol", ev.Symbol, "price", ev.Price)
		return
	}

	sym := asset.Symbol(ev.Symbol)
	q := quote{price: ev.Price, ts: ev.Ts, received: p.now()}

	p.quotesMu.Lock()
	defer p.quotesMu.Unlock()

	// Out-of-order frames do not replace a newer quote.
	if cur, ok := p.quotes[sym]; ok && ev.Ts != 0 && cur.ts > ev.Ts {
		return
	}
	p.quotes[sym] = q
}
