package hud

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/launchlab/shotcore/internal/lifecycle"
)

// ErrHubBusy is returned when the broadcast queue is full.
var ErrHubBusy = errors.New("hud: broadcast queue full")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type request struct {
	client *client
	cmd    command
}

// #region hub
// Hub pushes lifecycle state and decisions to WebSocket clients. Only Run
// touches the client set.
type Hub struct {
	source        StateSource
	log           *slog.Logger
	stateInterval time.Duration

	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	requests   chan request
	done       chan struct{}

	mu    sync.RWMutex
	count int
}

// NewHub creates a hub. stateInterval of zero disables periodic state pushes.
func NewHub(source StateSource, stateInterval time.Duration, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		source:        source,
		log:           log,
		stateInterval: stateInterval,
		clients:       make(map[*client]bool),
		register:      make(chan *client),
		unregister:    make(chan *client),
		broadcast:     make(chan []byte, 64),
		requests:      make(chan request, 64),
		done:          make(chan struct{}),
	}
}

// Run owns the client set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	var stateC <-chan time.Time
	if h.stateInterval > 0 && h.source != nil {
		t := time.NewTicker(h.stateInterval)
		defer t.Stop()
		stateC = t.C
	}

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			h.log.Info("hud: websocket hub stopped")
			return

		case c := <-h.register:
			h.clients[c] = true
			h.setCount()
			h.log.Info("hud: websocket client connected", "client_id", c.id, "remote", c.remote, "clients", len(h.clients))
			if msg, err := h.stateMessage(); err == nil {
				h.send(c, msg)
			}

		case c := <-h.unregister:
			if h.clients[c] {
				h.drop(c)
				h.log.Info("hud: websocket client disconnected", "client_id", c.id, "clients", len(h.clients))
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				h.send(c, msg)
			}

		case req := <-h.requests:
			if !h.clients[req.client] {
				continue
			}
			h.handle(req)

		case <-stateC:
			if len(h.clients) == 0 {
				continue
			}
			if msg, err := h.stateMessage(); err == nil {
				for c := range h.clients {
					h.send(c, msg)
				}
			}
		}
	}
}

// ServeHTTP upgrades the request and attaches a client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("hud: websocket upgrade failed", "error", err)
		return
	}
	c := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		id:     uuid.NewString(),
		remote: r.RemoteAddr,
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// Publish implements lifecycle.Sink.
func (h *Hub) Publish(_ context.Context, d lifecycle.Decision) error {
	msg, err := encode(TypeDecision, d)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- msg:
		return nil
	default:
		return ErrHubBusy
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}
// #endregion hub

// #region helpers
func (h *Hub) handle(req request) {
	var (
		msg []byte
		err error
	)
	switch req.cmd.Type {
	case "get_state":
		msg, err = h.stateMessage()
	case "ping":
		msg, err = encode(TypePong, nil)
	default:
		msg, err = encodeError("unknown command " + req.cmd.Type)
	}
	if err != nil {
		return
	}
	h.send(req.client, msg)
}

func (h *Hub) stateMessage() ([]byte, error) {
	if h.source == nil {
		return nil, errors.New("hud: no state source")
	}
	return encode(TypeState, h.source.State())
}

// send queues msg for c and drops clients that cannot keep up.
func (h *Hub) send(c *client, msg []byte) {
	select {
	case c.send <- msg:
	default:
		h.log.Warn("hud: websocket client too slow, dropping", "client_id", c.id)
		h.drop(c)
	}
}

func (h *Hub) drop(c *client) {
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.setCount()
}

func (h *Hub) setCount() {
	h.mu.Lock()
	h.count = len(h.clients)
	h.mu.Unlock()
}
// #endregion helpers
