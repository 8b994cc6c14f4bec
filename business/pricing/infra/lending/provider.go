// Package lending reads deposit-token exchange rates from a money-market REST feed.
package lending

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/synth-indexer/business/pricing/app"
	"github.com/fd1az/synth-indexer/business/pricing/domain"
	"github.com/fd1az/synth-indexer/internal/apm"
	"github.com/fd1az/synth-indexer/internal/apperror"
	"github.com/fd1az/synth-indexer/internal/asset"
	"github.com/fd1az/synth-indexer/internal/fixedpoint"
	"github.com/fd1az/synth-indexer/internal/httpclient"
	"github.com/fd1az/synth-indexer/internal/logger"
)

const (
	tracerName = "github.com/fd1az/synth-indexer/business/pricing/infra/lending"

	// SourceID identifies this source in observations and metrics.
	SourceID domain.SourceID = "lending"

	defaultTimeout = 10 * time.Second
)

var _ app.PriceSource = (*Provider)(nil)

// ProviderConfig holds configuration for the lending feed.
type ProviderConfig struct {
	BaseURL string
	Timeout time.Duration
	Markets map[asset.Symbol]string // symbol -> market id
}

// ExchangeRateResponse is the feed payload.
type ExchangeRateResponse struct {
	Market       string `json:"market"`
	ExchangeRate string `json:"exchange_rate"`
	Height       uint64 `json:"height"`
	Timestamp    int64  `json:"timestamp"`
}

// Provider implements app.PriceSource over the exchange-rate endpoint.
type Provider struct {
	config  ProviderConfig
	symbols []asset.Symbol
	logger  logger.LoggerInterface
	tracer  apm.Tracer

	client   httpclient.Client
	clientMu sync.Mutex
	newFn    func() (httpclient.Client, error)
}

// NewProvider creates the lending source. The HTTP client is built on first use.
func NewProvider(cfg ProviderConfig, log logger.LoggerInterface) (*Provider, error) {
	if cfg.BaseURL == "" {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("lending: base url is required"))
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	p := &Provider{
		config: cfg,
		logger: log,
		tracer: apm.NewTracer(tracerName),
	}
	for sym := range cfg.Markets {
		p.symbols = append(p.symbols, sym)
	}
	slices.Sort(p.symbols)

	p.newFn = func() (httpclient.Client, error) {
		c, err := httpclient.NewInstrumentedClient(
			httpclient.WithProviderName(string(SourceID)),
			httpclient.WithBaseURL(cfg.BaseURL),
			httpclient.WithRequestTimeout(cfg.Timeout),
			httpclient.WithTracer(otel.Tracer(tracerName), true),
			httpclient.WithHeaders(map[string]string{
				"Accept": "application/json",
			}),
		)
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	return p, nil
}

func (p *Provider) ID() domain.SourceID { return SourceID }

func (p *Provider) Symbols() []asset.Symbol { return p.symbols }

// FetchPrice returns the market exchange rate (underlying per deposit token).
func (p *Provider) FetchPrice(ctx context.Context, symbol asset.Symbol, at domain.At) (fixedpoint.Decimal, error) {
	ctx, span := p.tracer.StartSpanFromContext(ctx, "lending.fetch_price",
		trace.WithAttributes(
			attribute.String("symbol", string(symbol)),
			attribute.String("at", at.String()),
		),
	)
	defer span.End()

	rate, height, err := p.fetch(ctx, symbol, at)
	if err != nil {
		span.NoticeError(err)
		return fixedpoint.Zero, err
	}

	span.SetAttributes(attribute.String("rate", rate.String()), attribute.Int64("height", int64(height)))
	span.SetOK()
	return rate, nil
}

func (p *Provider) fetch(ctx context.Context, symbol asset.Symbol, at domain.At) (fixedpoint.Decimal, uint64, error) {
	market, ok := p.config.Markets[symbol]
	if !ok {
		return fixedpoint.Zero, 0, apperror.PriceNotFound(fmt.Sprintf("%s: no lending market", symbol))
	}

	client, err := p.httpClient()
	if err != nil {
		return fixedpoint.Zero, 0, apperror.SourceUnavailable(string(SourceID), err)
	}

	var result ExchangeRateResponse
	req := client.NewRequestWithOptions(
		httpclient.WithLabels(
			attribute.String("endpoint", "exchange_rate"),
			attribute.String("market", market),
		),
		httpclient.WithResponseErrorHandler(errorHandler(symbol, at)),
	).SetResult(&result)

	if h, ok := at.Block(); ok {
		req = req.SetQueryParam("height", strconv.FormatUint(h, 10))
	}
	if ts, ok := at.Time(); ok {
		req = req.SetQueryParam("timestamp", strconv.FormatInt(ts, 10))
	}

	resp, err := req.Get(ctx, "/markets/"+url.PathEscape(market)+"/exchange-rate")
	if err != nil {
		if apperror.IsAppError(err) {
			return fixedpoint.Zero, 0, err
		}
		return fixedpoint.Zero, 0, apperror.SourceUnavailable(string(SourceID), err)
	}
	if resp.Result() == nil {
		return fixedpoint.Zero, 0, apperror.New(apperror.CodeSourceUnavailable,
			apperror.WithContextf("%s: undecodable response", SourceID))
	}

	if result.ExchangeRate == "" {
		return fixedpoint.Zero, 0, apperror.PriceNotFound(fmt.Sprintf("%s @ %s: empty rate", symbol, at))
	}
	rate, err := fixedpoint.NewFromString(result.ExchangeRate)
	if err != nil {
		return fixedpoint.Zero, 0, apperror.New(apperror.CodeSourceUnavailable, apperror.WithCause(err),
			apperror.WithContextf("%s: bad rate %q", SourceID, result.ExchangeRate))
	}
	if !rate.IsPositive() {
		return fixedpoint.Zero, 0, apperror.PriceNotFound(fmt.Sprintf("%s @ %s: non-positive rate", symbol, at))
	}
	return rate, result.Height, nil
}

// Close releases idle connections. A later fetch rebuilds the client.
func (p *Provider) Close() error {
	p.clientMu.Lock()
	defer p.clientMu.Unlock()

	if p.client != nil {
		p.client.CloseIdleConnections()
		p.client = nil
	}
	return nil
}

func (p *Provider) httpClient() (httpclient.Client, error) {
	p.clientMu.Lock()
	defer p.clientMu.Unlock()

	if p.client != nil {
		return p.client, nil
	}
	c, err := p.newFn()
	if err != nil {
		return nil, err
	}
	p.client = c
	return c, nil
}

func errorHandler(symbol asset.Symbol, at domain.At) httpclient.ResponseErrorHandler {
	return func(status int, body []byte) error {
		switch {
		case status < 400:
			return nil
		case status == http.StatusNotFound:
			return apperror.PriceNotFound(fmt.Sprintf("%s @ %s", symbol, at))
		default:
			return apperror.New(apperror.CodeSourceUnavailable,
				apperror.WithContextf("%s: http %d: %s", SourceID, status, string(body[:min(len(body), 200)])))
		}
	}
}
