package growthstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"GapSight/internal/services/timeseries"
)

// Path is where the dashboard server publishes growth frames.
const Path = "/ws/growth"

var ErrNotConnected = errors.New("growthstream: not connected")

// Chart is the growth chart carried by a frame.
type Chart struct {
	Rows   []timeseries.AlignedRow `json:"rows"`
	Series []string                `json:"series"`
	Latest map[string]int64        `json:"latest"`
	Source string                  `json:"source"`
}

// Frame is one message from the server. Type is "growth" or "error".
type Frame struct {
	Type   string    `json:"type"`
	Data   *Chart    `json:"data,omitempty"`
	Error  string    `json:"error,omitempty"`
	SentAt time.Time `json:"sent_at"`
}

// Client follows the dashboard's growth websocket.
type Client struct {
	url            string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	dialer         *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
}

// New accepts the dashboard base URL (http, https, ws or wss).
func New(serverURL string, reconnectDelay, pingInterval time.Duration) (*Client, error) {
	u, err := StreamURL(serverURL)
	if err != nil {
		return nil, err
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Client{
		url:            u,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		dialer:         websocket.DefaultDialer,
	}, nil
}

// StreamURL turns "http://host:8080" into "ws://host:8080/ws/growth".
func StreamURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("growthstream url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("growthstream url: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + Path
	return u.String(), nil
}

func (c *Client) URL() string { return c.url }

func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("growthstream connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

// Read streams frames until the connection fails or ctx ends. Both channels are
// closed when reading stops; at most one error is sent.
func (c *Client) Read(ctx context.Context) (<-chan Frame, <-chan error) {
	frames := make(chan Frame, 16)
	errs := make(chan error, 1)

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		errs <- ErrNotConnected
		close(frames)
		close(errs)
		return frames, errs
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				// Unblocks ReadMessage below.
				_ = conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
		}
	}()

	go func() {
		defer close(frames)
		defer close(errs)
		defer close(done)
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					errs <- fmt.Errorf("growthstream read: %w", err)
				}
				return
			}
			var f Frame
			if err := json.Unmarshal(b, &f); err != nil {
				continue
			}
			select {
			case frames <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	return frames, errs
}

// Reconnect closes the current connection and dials again after the reconnect delay.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.reconnectDelay):
	}
	return c.Connect(ctx)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}
