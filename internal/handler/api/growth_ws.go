package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"GapSight/internal/domain/models"
	"GapSight/internal/services/timeseries"
	"GapSight/internal/usecase"
	xlogger "GapSight/pkg/logger"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsSendBuffer = 4
	wsLoadWait   = 15 * time.Second
)

// GrowthLoader produces the current aligned growth chart.
type GrowthLoader interface {
	GrowthChart(ctx context.Context, policy timeseries.DuplicatePolicy) (*timeseries.Aligned, string, error)
}

// GrowthFrame is one websocket message. Type is "growth" or "error".
type GrowthFrame struct {
	Type   string              `json:"type"`
	Data   *models.GrowthChart `json:"data,omitempty"`
	Error  string              `json:"error,omitempty"`
	SentAt time.Time           `json:"sent_at"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// GrowthHub pushes the growth chart to websocket clients: once on connect and
// again after every snapshot poll. Clients that fall behind are dropped.
type GrowthHub struct {
	logger   *xlogger.Logger
	loader   GrowthLoader
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	last    []byte
	closed  bool
}

var _ usecase.GrowthNotifier = (*GrowthHub)(nil)

// NewGrowthHub accepts any origin when origins is empty.
func NewGrowthHub(logger *xlogger.Logger, loader GrowthLoader, origins []string) *GrowthHub {
	h := &GrowthHub{
		logger:  logger,
		loader:  loader,
		clients: make(map[*wsClient]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return len(origins) == 0 || origin == "" || slices.Contains(origins, origin) || slices.Contains(origins, "*")
		},
	}
	return h
}

func (h *GrowthHub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/growth", h.Serve)
}

func (h *GrowthHub) Serve(c echo.Context) error {
	first := h.current(c.Request().Context())

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already answered with an HTTP error.
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err), xlogger.String("remote", c.RealIP()))
		return nil
	}
	cl := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}
	cl.send <- first
	if !h.add(cl) {
		_ = conn.Close()
		return nil
	}
	h.logger.Debug("websocket client connected", xlogger.String("remote", c.RealIP()))

	go h.writePump(cl)
	h.readPump(cl)
	return nil
}

// GrowthUpdated broadcasts a freshly polled chart.
func (h *GrowthHub) GrowthUpdated(a *timeseries.Aligned) {
	chart := models.NewGrowthChart(a, usecase.GrowthSourceUpstream)
	msg, err := encodeFrame(GrowthFrame{Type: "growth", Data: &chart})
	if err != nil {
		h.logger.Error("encode growth frame", xlogger.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = msg
	for cl := range h.clients {
		select {
		case cl.send <- msg:
		default:
			delete(h.clients, cl)
			close(cl.send)
			h.logger.Warn("websocket client too slow, dropped")
		}
	}
}

func (h *GrowthHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *GrowthHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for cl := range h.clients {
		delete(h.clients, cl)
		close(cl.send)
	}
}

// current is the last broadcast frame, or a freshly loaded one before the first poll.
func (h *GrowthHub) current(ctx context.Context) []byte {
	h.mu.Lock()
	last := h.last
	h.mu.Unlock()
	if last != nil {
		return last
	}

	ctx, cancel := context.WithTimeout(ctx, wsLoadWait)
	defer cancel()
	frame := GrowthFrame{Type: "growth"}
	a, source, err := h.loader.GrowthChart(ctx, timeseries.FirstWins)
	if err != nil {
		h.logger.Warn("websocket initial growth load failed", xlogger.Error(err))
		frame = GrowthFrame{Type: "error", Error: "growth chart unavailable"}
	} else {
		chart := models.NewGrowthChart(a, source)
		frame.Data = &chart
	}
	msg, err := encodeFrame(frame)
	if err != nil {
		msg = []byte(`{"type":"error","error":"encode failed"}`)
	}
	return msg
}

func (h *GrowthHub) add(cl *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[cl] = struct{}{}
	return true
}

func (h *GrowthHub) remove(cl *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
}

// readPump only services control frames; it returns when the peer goes away.
func (h *GrowthHub) readPump(cl *wsClient) {
	defer h.remove(cl)
	cl.conn.SetReadLimit(512)
	_ = cl.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *GrowthHub) writePump(cl *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func encodeFrame(f GrowthFrame) ([]byte, error) {
	f.SentAt = time.Now().UTC()
	return json.Marshal(f)
}
