package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"
)

var ErrNotConnected = errors.New("bus not connected")

type Config struct {
	URL       string
	Name      string        // our address on the bus
	Reconnect time.Duration // first reconnect delay, doubled up to MaxDelay
	MaxDelay  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Name:      "lookout",
		Reconnect: time.Second,
		MaxDelay:  30 * time.Second,
	}
}

// Client keeps a websocket connection to the call bridge alive and hands
// every message addressed to us to a handler.
type Client struct {
	cfg    Config
	dialer *ws.Dialer

	mu   sync.Mutex // guards conn and serializes writes
	conn *ws.Conn
}

func NewClient(cfg Config) *Client {
	if cfg.Reconnect <= 0 {
		cfg.Reconnect = DefaultConfig().Reconnect
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultConfig().MaxDelay
	}
	return &Client{cfg: cfg, dialer: ws.DefaultDialer}
}

type HandlerFunc func(ctx context.Context, m Message)

// Run connects, reads until the connection drops, and reconnects, until ctx
// is done. Handlers run on the reader goroutine and must not block.
func (c *Client) Run(ctx context.Context, handle HandlerFunc) error {
	for {
		conn, err := c.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		err = c.readLoop(ctx, conn, handle)
		if ctx.Err() != nil {
			return nil
		}
		log.Warn("Bus connection lost, reconnecting", "url", c.cfg.URL, "err", err)
	}
}

func (c *Client) connect(ctx context.Context) (*ws.Conn, error) {
	backoff := retry.WithCappedDuration(c.cfg.MaxDelay, retry.NewExponential(c.cfg.Reconnect))

	var conn *ws.Conn
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		conn, _, err = c.dialer.DialContext(ctx, c.cfg.URL, nil)
		if err != nil {
			log.Debug("Failed to dial bus", "url", c.cfg.URL, "err", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dial bus: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	log.Info("Connected to bus", "url", c.cfg.URL)

	if err := c.Send(Message{Kind: KindHello, To: Broadcast}); err != nil {
		log.Warn("Failed to introduce ourselves", "err", err)
	}
	return conn, nil
}

func (c *Client) readLoop(ctx context.Context, conn *ws.Conn, handle HandlerFunc) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.Close()
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if isClosed(err) {
				return fmt.Errorf("closed: %w", err)
			}
			return fmt.Errorf("read: %w", err)
		}

		m, err := Parse(payload)
		if err != nil {
			log.Warn("Dropping bus message", "err", err)
			continue
		}
		if m.From == c.cfg.Name || !m.For(c.cfg.Name) {
			continue
		}

		log.Debug("Bus message", "from", m.From, "kind", m.Kind, "bytes", len(m.Data))
		handle(ctx, m)
	}
}

// Send writes m stamped with our name.
func (c *Client) Send(m Message) error {
	m.From = c.cfg.Name

	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}
	if err := c.conn.WriteMessage(ws.TextMessage, payload); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func isClosed(err error) bool {
	return ws.IsCloseError(err,
		ws.CloseNormalClosure,
		ws.CloseGoingAway,
		ws.CloseAbnormalClosure)
}
