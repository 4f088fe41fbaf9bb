// Package stream fans engine events out to renderers over WebSocket.
//
// Every connected client receives each event as a JSON envelope
// {"type": ..., "payload": ...}. A client that cannot keep up is
// disconnected instead of slowing the engine down.
package stream

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hupe1980/encounter/core"
	"github.com/hupe1980/encounter/engine"
	"github.com/hupe1980/encounter/logging"
)

// Envelope is the wire format pushed to clients.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Options configure a Hub.
type Options struct {
	// WriteWait bounds a single write. Defaults to 10s.
	WriteWait time.Duration
	// PongWait is how long a silent client is kept. Defaults to 60s.
	PongWait time.Duration
	// Buffer is the per-client queue length. Defaults to 64.
	Buffer int
	// CheckOrigin is passed to the upgrader. Defaults to allowing all
	// origins.
	CheckOrigin func(r *http.Request) bool
	// Hello, when set, is sent to every new client before any event.
	Hello func() Envelope
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Hub tracks connected clients and broadcasts envelopes to them.
type Hub struct {
	upgrader  websocket.Upgrader
	writeWait time.Duration
	pongWait  time.Duration
	buffer    int
	hello     func() Envelope
	logger    logging.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan Envelope
	once sync.Once
	done chan struct{}
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

// NewHub creates an empty hub.
func NewHub(optFns ...func(o *Options)) *Hub {
	opts := Options{
		WriteWait:   10 * time.Second,
		PongWait:    60 * time.Second,
		Buffer:      64,
		CheckOrigin: func(*http.Request) bool { return true },
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = 10 * time.Second
	}
	if opts.PongWait <= 0 {
		opts.PongWait = 60 * time.Second
	}
	return &Hub{
		upgrader:  websocket.Upgrader{CheckOrigin: opts.CheckOrigin},
		writeWait: opts.WriteWait,
		pongWait:  opts.PongWait,
		buffer:    opts.Buffer,
		hello:     opts.Hello,
		logger:    opts.Logger,
		clients:   make(map[*client]struct{}),
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish queues env for every client. Clients whose queue is full are
// dropped.
func (h *Hub) Publish(env Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- env:
		default:
			h.logger.Warn("dropping slow stream client", "remote", c.conn.RemoteAddr().String())
			delete(h.clients, c)
			c.stop()
		}
	}
}

// Callback returns an engine callback publishing every event.
func (h *Hub) Callback() engine.Callback {
	return engine.NewFunctionCallback(core.EventAny, func(_ context.Context, cc *engine.CallbackContext) error {
		h.Publish(Envelope{Type: string(cc.Event.Type), Payload: cc.Event})
		return nil
	})
}

// ServeHTTP upgrades the request and streams envelopes until the client
// disconnects or the hub is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("stream upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan Envelope, h.buffer), done: make(chan struct{})}
	if h.hello != nil {
		c.send <- h.hello()
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("stream client connected", "remote", conn.RemoteAddr().String())

	go h.writePump(c)
	h.readPump(c)
}

// readPump discards client input; it exists to process control frames and
// to notice disconnects.
func (h *Hub) readPump(c *client) {
	defer h.remove(c)
	c.conn.SetReadLimit(1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("stream client read failed", "error", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ping := time.NewTicker(h.pongWait * 9 / 10)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case env := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				h.logger.Debug("stream write failed", "error", err)
				h.remove(c)
				return
			}
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.stop()
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.stop()
	}
}
