// Package wsconn provides a WebSocket client with keep-alive and reconnection
// built on github.com/coder/websocket.
package wsconn

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"

	"github.com/fd1az/synth-indexer/internal/apperror"
)

// State represents the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

// Config holds WebSocket client configuration.
type Config struct {
	URL  string
	Name string // used in error context

	PingInterval   time.Duration // 0 disables pings
	ReadTimeout    time.Duration // 0 waits forever; expiry drops the connection
	WriteTimeout   time.Duration
	MaxMessageSize int64

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxReconnects  int // 0 = infinite
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(url, name string) Config {
	return Config{
		URL:            url,
		Name:           name,
		PingInterval:   30 * time.Second,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 1 << 20,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		MaxReconnects:  0,
	}
}

// MessageHandler receives every data frame.
type MessageHandler func(ctx context.Context, msg []byte)

// StateHandler observes state transitions; err is set on failures.
type StateHandler func(state State, err error)

// ConnectHandler runs after every successful (re)connection, e.g. to resubscribe.
type ConnectHandler func(ctx context.Context) error

// Client is a WebSocket client. Connect once, then it optionally heals itself.
type Client struct {
	config Config

	conn   *websocket.Conn
	connMu sync.RWMutex

	state   State
	stateMu sync.RWMutex

	onMessage     MessageHandler
	onStateChange StateHandler
	onConnect     ConnectHandler
	handlersMu    sync.RWMutex

	autoReconnect atomic.Bool
	reconnecting  atomic.Bool
	closed        atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new WebSocket client.
func New(config Config) (*Client, error) {
	if config.URL == "" {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("websocket url is required"))
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = time.Second
	}
	if config.MaxBackoff < config.InitialBackoff {
		config.MaxBackoff = config.InitialBackoff
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		config: config,
		state:  StateDisconnected,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// OnMessage registers the data frame handler.
func (c *Client) OnMessage(h MessageHandler) {
	c.handlersMu.Lock()
	c.onMessage = h
	c.handlersMu.Unlock()
}

// OnStateChange registers a state transition observer.
func (c *Client) OnStateChange(h StateHandler) {
	c.handlersMu.Lock()
	c.onStateChange = h
	c.handlersMu.Unlock()
}

// OnConnect registers a hook run after each successful connection.
func (c *Client) OnConnect(h ConnectHandler) {
	c.handlersMu.Lock()
	c.onConnect = h
	c.handlersMu.Unlock()
}

// Connect dials once. The connection is not re-established when it drops.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return apperror.New(apperror.CodeWebSocketClosed, apperror.WithContext(c.config.Name))
	}
	if c.IsConnected() {
		return nil
	}

	c.setState(StateConnecting, nil)

	conn, _, err := websocket.Dial(ctx, c.config.URL, nil)
	if err != nil {
		appErr := apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithCause(err),
			apperror.WithContext(c.config.Name))
		c.setState(StateDisconnected, appErr)
		return appErr
	}
	if c.config.MaxMessageSize > 0 {
		conn.SetReadLimit(c.config.MaxMessageSize)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.setState(StateConnected, nil)

	c.wg.Add(1)
	go c.readLoop(conn)

	if c.config.PingInterval > 0 {
		c.wg.Add(1)
		go c.pingLoop(conn)
	}

	c.handlersMu.RLock()
	hook := c.onConnect
	c.handlersMu.RUnlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			c.connMu.Lock()
			c.conn = nil
			c.connMu.Unlock()
			conn.CloseNow()
			c.setState(StateDisconnected, err)
			return err
		}
	}

	return nil
}

// ConnectWithRetry dials with exponential backoff and keeps reconnecting after drops.
func (c *Client) ConnectWithRetry(ctx context.Context) error {
	c.autoReconnect.Store(true)
	return c.connectWithBackoff(ctx)
}

func (c *Client) connectWithBackoff(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.InitialBackoff
	b.MaxInterval = c.config.MaxBackoff

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
	}
	if c.config.MaxReconnects > 0 {
		opts = append(opts, backoff.WithMaxTries(uint(c.config.MaxReconnects)))
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if c.closed.Load() {
			return struct{}{}, backoff.Permanent(apperror.New(apperror.CodeWebSocketClosed,
				apperror.WithContext(c.config.Name)))
		}
		return struct{}{}, c.Connect(ctx)
	}, opts...)
	return err
}

// Send writes a text frame.
func (c *Client) Send(ctx context.Context, msg []byte) error {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	if conn == nil || !c.IsConnected() {
		return apperror.New(apperror.CodeWebSocketClosed, apperror.WithContext(c.config.Name))
	}

	if c.config.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.WriteTimeout)
		defer cancel()
	}

	if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
		return apperror.New(apperror.CodeWebSocketSendError,
			apperror.WithCause(err),
			apperror.WithContext(c.config.Name))
	}
	return nil
}

// SendJSON encodes v and writes it as a text frame.
func (c *Client) SendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return apperror.New(apperror.CodeWebSocketSendError,
			apperror.WithCause(err),
			apperror.WithContext("marshal"))
	}
	return c.Send(ctx, data)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// IsConnected reports whether the client holds a live connection.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Close shuts the connection down and stops reconnecting. It is idempotent.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()

	if conn != nil {
		// the peer may already be gone; a failed close handshake is not an error here
		_ = conn.Close(websocket.StatusNormalClosure, "client closing")
	}
	c.cancel()

	c.setState(StateClosed, nil)
	c.wg.Wait()
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		ctx := c.ctx
		var cancel context.CancelFunc = func() {}
		if c.config.ReadTimeout > 0 {
			ctx, cancel = context.WithTimeout(c.ctx, c.config.ReadTimeout)
		}
		_, data, err := conn.Read(ctx)
		cancel()
		if err != nil {
			c.dropConnection(conn, err)
			return
		}

		c.handlersMu.RLock()
		h := c.onMessage
		c.handlersMu.RUnlock()
		if h != nil {
			h(c.ctx, data)
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if !c.isCurrent(conn) {
				return
			}
			ctx, cancel := context.WithTimeout(c.ctx, c.config.PingInterval)
			err := conn.Ping(ctx)
			cancel()
			if err != nil {
				c.dropConnection(conn, err)
				return
			}
		}
	}
}

func (c *Client) isCurrent(conn *websocket.Conn) bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn == conn
}

// dropConnection tears down conn if it is still the active one and schedules a reconnect.
func (c *Client) dropConnection(conn *websocket.Conn, cause error) {
	if c.closed.Load() {
		return
	}

	c.connMu.Lock()
	if c.conn != conn {
		c.connMu.Unlock()
		return
	}
	c.conn = nil
	c.connMu.Unlock()

	conn.CloseNow()

	var appErr error = apperror.New(apperror.CodeWebSocketConnectionError,
		apperror.WithCause(cause),
		apperror.WithContext(c.config.Name))
	if errors.Is(cause, context.Canceled) {
		appErr = nil
	}
	c.setState(StateDisconnected, appErr)

	if !c.autoReconnect.Load() || !c.reconnecting.CompareAndSwap(false, true) {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.reconnecting.Store(false)

		c.setState(StateReconnecting, nil)
		if err := c.connectWithBackoff(c.ctx); err != nil {
			c.setState(StateDisconnected, err)
		}
	}()
}

func (c *Client) setState(state State, err error) {
	c.stateMu.Lock()
	if c.state == StateClosed || c.state == state && err == nil {
		c.stateMu.Unlock()
		return
	}
	c.state = state
	c.stateMu.Unlock()

	c.handlersMu.RLock()
	h := c.onStateChange
	c.handlersMu.RUnlock()
	if h != nil {
		h(state, err)
	}
}
