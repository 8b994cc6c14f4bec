// Package stream is a price source fed by a websocket ticker stream.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/synth-indexer/internal/logger"
	"github.com/fd1az/synth-indexer/internal/wsconn"
)

const (
	tracerName = "github.com/fd1az/synth-indexer/business/pricing/infra/stream"
	meterName  = "github.com/fd1az/synth-indexer/business/pricing/infra/stream"
)

// ClientConfig holds configuration for the feed connection.
type ClientConfig struct {
	URL          string
	Symbols      []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type clientMetrics struct {
	messagesReceived metric.Int64Counter
	tickersReceived  metric.Int64Counter
	parseErrors      metric.Int64Counter
}

// Client keeps a subscribed, self-healing connection to the feed.
type Client struct {
	config ClientConfig
	logger logger.LoggerInterface
	conn   *wsconn.Client

	onTicker   func(context.Context, *TickerEvent)
	handlersMu sync.RWMutex

	metrics *clientMetrics
}

// NewClient creates a feed client. It does not dial.
func NewClient(cfg ClientConfig, log logger.LoggerInterface) (*Client, error) {
	wsCfg := wsconn.DefaultConfig(cfg.URL, "stream")
	if cfg.ReadTimeout > 0 {
		wsCfg.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		wsCfg.WriteTimeout = cfg.WriteTimeout
	}

	conn, err := wsconn.New(wsCfg)
	if err != nil {
		return nil, err
	}

	c := &Client{
		config: cfg,
		logger: log,
		conn:   conn,
	}

	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	conn.OnMessage(c.handleMessage)
	conn.OnConnect(c.subscribe)
	conn.OnStateChange(func(state wsconn.State, err error) {
		if err != nil {
			log.Warn(context.Background(), "stream state changed", "state", state, "error", err)
			return
		}
		log.Debug(context.Background(), "stream state changed", "state", state)
	})

	return c, nil
}

func (c *Client) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &clientMetrics{}

	c.metrics.messagesReceived, err = meter.Int64Counter(
		"stream_messages_total",
		metric.WithDescription("Total frames received from the ticker stream"),
	)
	if err != nil {
		return err
	}

	c.metrics.tickersReceived, err = meter.Int64Counter(
		"stream_tickers_total",
		metric.WithDescription("Total ticker events received"),
	)
	if err != nil {
		return err
	}

	c.metrics.parseErrors, err = meter.Int64Counter(
		"stream_parse_errors_total",
		metric.WithDescription("Frames that could not be decoded"),
	)
	return err
}

// OnTicker registers the ticker handler.
func (c *Client) OnTicker(handler func(context.Context, *TickerEvent)) {
	c.handlersMu.Lock()
	c.onTicker = handler
	c.handlersMu.Unlock()
}

// Connect dials with backoff and keeps the connection alive until Close.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.conn.ConnectWithRetry(ctx); err != nil {
		return err
	}
	c.logger.Info(ctx, "stream connected", "url", c.config.URL, "symbols", c.config.Symbols)
	return nil
}

// IsConnected reports whether the feed is currently up.
func (c *Client) IsConnected() bool {
	return c.conn.IsConnected()
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// subscribe runs after every (re)connection.
func (c *Client) subscribe(ctx context.Context) error {
	return c.conn.SendJSON(ctx, SubscribeRequest{Op: opSubscribe, Symbols: c.config.Symbols})
}

func (c *Client) handleMessage(ctx context.Context, data []byte) {
	c.metrics.messagesReceived.Add(ctx, 1)

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.metrics.parseErrors.Add(ctx, 1)
		c.logger.Debug(ctx, "failed to parse frame", "error", err, "data", string(data[:min(len(data), 200)]))
		return
	}

	switch {
	case env.isTicker():
		var ev TickerEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.metrics.parseErrors.Add(ctx, 1)
			c.logger.Warn(ctx, "failed to parse ticker", "error", err, "data", string(data[:min(len(data), 200)]))
			return
		}
		ev.Symbol = normalizeSymbol(ev.Symbol)
		c.metrics.tickersReceived.Add(ctx, 1)

		c.handlersMu.RLock()
		h := c.onTicker
		c.handlersMu.RUnlock()
		if h != nil {
			h(ctx, &ev)
		}
	case env.isControl():
		var msg controlMessage
		_ = json.Unmarshal(data, &msg)
		if msg.Error != "" {
			c.logger.Warn(ctx, "stream error message", "op", msg.Op, "error", msg.Error)
			return
		}
		c.logger.Debug(ctx, "stream control message", "op", msg.Op, "status", msg.Status)
	default:
		c.metrics.parseErrors.Add(ctx, 1)
	}
}
