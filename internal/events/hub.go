// Package events streams compile outcomes to browsers over WebSocket, so a
// page under development can reload when one of its assets is rebuilt.
//
// Architecture:
//   - Hub pattern: one goroutine owns registration, removal and fan-out
//   - every client has a buffered send channel drained by its own writer
//   - a client that cannot keep up is dropped rather than slowing the hub
package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/assetc/internal/logging"
	"github.com/conneroisu/assetc/internal/pipeline"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Event is the JSON message sent for one pipeline outcome.
type Event struct {
	Type       string    `json:"type"`
	RequestID  string    `json:"request_id"`
	Backend    string    `json:"backend"`
	Path       string    `json:"path"`
	Status     string    `json:"status"`
	Stage      string    `json:"stage"`
	Source     string    `json:"source,omitempty"`
	Dest       string    `json:"dest,omitempty"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans compile events out to the connected clients.
type Hub struct {
	clients map[*client]struct{}
	mu      sync.RWMutex

	broadcast  chan []byte
	register   chan *client
	unregister chan *client

	originPatterns []string
	logger         logging.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
}

// NewHub creates a hub and starts its goroutine. originPatterns are passed
// to the WebSocket handshake; requests without an Origin header are always
// accepted.
func NewHub(logger logging.Logger, originPatterns ...string) *Hub {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:        make(map[*client]struct{}),
		broadcast:      make(chan []byte, 256),
		register:       make(chan *client, 16),
		unregister:     make(chan *client, 16),
		originPatterns: originPatterns,
		logger:         logger.WithComponent("events"),
		ctx:            ctx,
		cancel:         cancel,
	}
	go h.run()
	return h
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.ctx.Err() != nil {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  h.originPatterns,
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		h.logger.Warn(r.Context(), err, "websocket upgrade failed", "remote_addr", r.RemoteAddr)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.ctx.Done():
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	go h.writeLoop(c)
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug(h.ctx, "event client connected", "clients", n)

		case c := <-h.unregister:
			h.remove(c)

		case msg := <-h.broadcast:
			h.mu.RLock()
			var slow []*client
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.RUnlock()
			for _, c := range slow {
				h.remove(c)
			}

		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) writeLoop(c *client) {
	// incoming messages are discarded; ctx ends when the peer goes away
	ctx := c.conn.CloseRead(h.ctx)
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.ctx.Done():
		}
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					h.logger.Debug(ctx, "event write failed", "error", err.Error())
				}
				return
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// Publish queues ev for every connected client. It never blocks; events are
// dropped when the hub is saturated or shut down.
func (h *Hub) Publish(ev Event) {
	if h.ctx.Err() != nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error(h.ctx, err, "cannot encode event")
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn(h.ctx, nil, "event buffer full, dropping event", "backend", ev.Backend, "path", ev.Path)
	}
}

// Observe publishes outcomes that reached a staleness decision.
func (h *Hub) Observe(_ context.Context, req *pipeline.Request, out pipeline.Outcome) {
	switch out.Status {
	case pipeline.StatusCompiled, pipeline.StatusSkipped, pipeline.StatusFailed:
	default:
		return
	}
	h.Publish(NewEvent(req, out))
}

// NewEvent describes out as an Event.
func NewEvent(req *pipeline.Request, out pipeline.Outcome) Event {
	ev := Event{
		Type:       "compile",
		RequestID:  req.ID,
		Backend:    out.Backend,
		Path:       out.RequestPath,
		Status:     string(out.Status),
		Stage:      out.Stage.String(),
		DurationMS: float64(out.Duration) / float64(time.Millisecond),
		Timestamp:  time.Now().UTC(),
	}
	if out.Failed() {
		ev.Stage = out.FailedAt().String()
	}
	if out.Artifact != nil {
		ev.Source = out.Artifact.Source
		ev.Dest = out.Artifact.Dest
	}
	if out.Err != nil && out.Failed() {
		ev.Error = out.Err.Error()
	}
	return ev
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown disconnects every client and stops the hub.
func (h *Hub) Shutdown(_ context.Context) error {
	h.shutdownOnce.Do(func() {
		h.cancel()
		h.mu.Lock()
		for c := range h.clients {
			delete(h.clients, c)
			close(c.send)
		}
		h.mu.Unlock()
	})
	return nil
}
