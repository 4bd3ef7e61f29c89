package quotestream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"SignalCast/internal/domain/models"
	drepo "SignalCast/internal/domain/repository"
	"SignalCast/pkg/logger"
	"SignalCast/pkg/util"

	"github.com/gorilla/websocket"
)

// Source tags quotes produced by the stream.
const Source = "stream"

var errNotConnected = errors.New("quote stream not connected")

// Client implements QuoteStream over a websocket tick feed. The feed sends
// {"type":"trade","data":[{"s":SYMBOL,"p":PRICE,"t":MILLIS}]} frames and
// accepts {"type":"subscribe","symbol":SYMBOL}.
type Client struct {
	url            string
	token          string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	l              *logger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

func New(rawURL, token string, symbols []string, reconnectDelay, pingInterval time.Duration, l *logger.Logger) *Client {
	if l == nil {
		l = logger.Nop()
	}
	return &Client{
		url:            rawURL,
		token:          token,
		symbols:        symbols,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		l:              l.With(logger.String("component", "quotestream")),
	}
}

func (c *Client) dialURL() (string, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return "", fmt.Errorf("parse stream url: %w", err)
	}
	if c.token != "" {
		q := u.Query()
		q.Set("token", c.token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Connect establishes the websocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u, err := c.dialURL()
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.l.Info("stream connected")
	return nil
}

// Subscribe subscribes to configured symbols.
func (c *Client) Subscribe(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || !c.connected {
		return errNotConnected
	}
	for _, s := range c.symbols {
		msg := map[string]string{"type": "subscribe", "symbol": s}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
	}
	c.l.Info("stream subscribed", logger.Strings("symbols", c.symbols))
	return nil
}

type tick struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	T int64   `json:"t"` // ms
}

type frame struct {
	Type string `json:"type"`
	Data []tick `json:"data"`
}

func (c *Client) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// Read streams quotes and errors until ctx is done or the connection fails.
// Both channels are closed when reading stops.
func (c *Client) Read(ctx context.Context) (<-chan *models.Quote, <-chan error) {
	out := make(chan *models.Quote, 1024)
	errs := make(chan error, 1)

	conn := c.current()
	if conn == nil {
		errs <- errNotConnected
		close(out)
		close(errs)
		return out, errs
	}

	done := make(chan struct{})
	if c.pingInterval > 0 {
		go c.pingLoop(ctx, conn, done)
	}

	go func() {
		defer close(out)
		defer close(errs)
		defer close(done)

		// unblock ReadMessage on cancellation
		stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
		defer stop()

		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("stream read: %w", err)
				}
				return
			}
			var f frame
			if err := json.Unmarshal(b, &f); err != nil || f.Type != "trade" {
				continue
			}
			for _, d := range f.Data {
				if d.S == "" || d.P <= 0 {
					continue
				}
				q := &models.Quote{
					Symbol:    util.NormalizeSymbol(d.S),
					Price:     d.P,
					Timestamp: time.UnixMilli(d.T).UTC(),
					Source:    Source,
				}
				select {
				case out <- q:
				default:
					// drop on backpressure
				}
			}
		}
	}()

	return out, errs
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			c.mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.pingInterval))
			c.mu.Unlock()
			if err != nil {
				c.l.Warn("stream ping failed", logger.Error(err))
			}
		}
	}
}

// Reconnect closes, waits reconnectDelay and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.reconnectDelay):
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the websocket connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

var _ drepo.QuoteStream = (*Client)(nil)
