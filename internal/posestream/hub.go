// Package posestream broadcasts integrated avatar frames to remote
// renderers over WebSocket and accepts pointer input back from them.
package posestream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/normanking/avatarcore/internal/avatar"
	"github.com/normanking/avatarcore/internal/observe"
)

var ErrHubClosed = errors.New("pose stream closed")

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = pongWait * 9 / 10
	// sendBuffer frames may queue per client before it is dropped.
	sendBuffer = 32
)

// InputHandler receives pointer input from clients. *avatar.Controller
// satisfies it.
type InputHandler interface {
	HandleHeadTap(p mgl32.Vec3) int64
	HandlePointerRay(origin, dir mgl32.Vec3) (int64, bool)
}

type Hub struct {
	session  string
	upgrader websocket.Upgrader
	logger   zerolog.Logger
	metrics  *observe.Metrics
	input    InputHandler

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

type Option func(*Hub)

func WithMetrics(m *observe.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// WithInput routes client tap and ray messages to in.
func WithInput(in InputHandler) Option {
	return func(h *Hub) { h.input = in }
}

func NewHub(session string, logger zerolog.Logger, opts ...Option) *Hub {
	h := &Hub{
		session: session,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  logger.With().Str("component", "posestream").Logger(),
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and serves the client until it leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	hello, err := json.Marshal(newHello(h.session))
	if err != nil {
		conn.Close()
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	c.send <- hello
	if err := h.register(c); err != nil {
		conn.Close()
		return
	}

	h.logger.Info().Str("remote", r.RemoteAddr).Msg("Pose stream client connected")
	go h.writePump(c)
	h.readPump(c)

	h.unregister(c)
	h.logger.Info().Str("remote", r.RemoteAddr).Msg("Pose stream client disconnected")
}

func (h *Hub) register(c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	h.clients[c] = struct{}{}
	if h.metrics != nil {
		h.metrics.StreamClients.Add(context.Background(), 1)
	}
	return nil
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if ok && h.metrics != nil {
		h.metrics.StreamClients.Add(context.Background(), -1)
	}
	c.close()
}

// Broadcast queues one frame for every client. Clients whose queue is
// full are dropped.
func (h *Hub) Broadcast(snap avatar.FrameSnapshot) {
	data, err := json.Marshal(NewFrameMessage(snap))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode frame")
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn().Msg("Dropping slow pose stream client")
		h.unregister(c)
	}
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregister(c)
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readPump(c *client) {
	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg InputMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug().Err(err).Msg("Pose stream read error")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		h.handleInput(msg)
	}
}

func (h *Hub) handleInput(msg InputMessage) {
	if h.input == nil {
		return
	}
	switch msg.Type {
	case TypeTap:
		h.input.HandleHeadTap(vec(msg.Point))
	case TypeRay:
		h.input.HandlePointerRay(vec(msg.Origin), vec(msg.Direction))
	default:
		h.logger.Debug().Str("type", msg.Type).Msg("Unknown client message")
	}
}
