package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tartilapp/tartil-server/internal/errors"
)

// Dialer establishes a connection to the session service. In-process
// callers return the shared service; remote callers may perform a real
// handshake.
type Dialer func(ctx context.Context) (*Service, error)

// Backoff bounds for Connect retries.
const (
	connectBackoffMin = 250 * time.Millisecond
	connectBackoffMax = 8 * time.Second
)

// Client is an observer-side connector. Commands sent while disconnected
// fail immediately with a transport error; they are never queued.
type Client struct {
	dial   Dialer
	logger *slog.Logger

	mu  sync.Mutex
	svc *Service
}

// NewClient creates a disconnected client.
func NewClient(dial Dialer, logger *slog.Logger) *Client {
	return &Client{dial: dial, logger: logger}
}

// Connect dials the service, retrying with exponential backoff until it
// succeeds or ctx is canceled. Calling Connect on a connected client is
// a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.svc != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	backoff := connectBackoffMin
	for {
		svc, err := c.dial(ctx)
		if err == nil {
			c.mu.Lock()
			c.svc = svc
			c.mu.Unlock()
			c.logger.Info("Session client connected")
			return nil
		}

		c.logger.Warn("Session connect failed, retrying", "backoff", backoff, "error", err)

		select {
		case <-ctx.Done():
			return errors.TransportUnavailable("connect canceled").WithCause(ctx.Err())
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > connectBackoffMax {
			backoff = connectBackoffMax
		}
	}
}

// Disconnect detaches from the service. Safe to call when disconnected.
func (c *Client) Disconnect() {
	c.mu.Lock()
	wasConnected := c.svc != nil
	c.svc = nil
	c.mu.Unlock()

	if wasConnected {
		c.logger.Info("Session client disconnected")
	}
}

// Connected reports whether the client holds a live connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.svc != nil
}

// Send dispatches a command over the connection.
func (c *Client) Send(ctx context.Context, cmd Command) (*Result, error) {
	c.mu.Lock()
	svc := c.svc
	c.mu.Unlock()

	if svc == nil {
		return nil, errors.TransportUnavailable("session transport not connected")
	}
	return svc.Dispatch(ctx, cmd)
}
