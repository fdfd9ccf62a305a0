// ABOUTME: Connection hub emitting events to users, rooms, single connections or everyone
// ABOUTME: Never blocks on slow consumers; full queues drop frames with a warning

package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/time/rate"

	"github.com/2389/huddle-gateway/internal/metrics"
)

const (
	defaultQueueSize    = 64
	defaultWriteTimeout = 10 * time.Second
	disconnectTimeout   = 5 * time.Second
)

// Handler receives connection lifecycle callbacks and inbound frames.
type Handler interface {
	OnConnect(ctx context.Context, c *Conn)
	OnFrame(ctx context.Context, c *Conn, data []byte)
	OnDisconnect(ctx context.Context, c *Conn)
}

// Options tunes per-connection limits. Zero values pick defaults; a zero
// EventsPerSecond disables rate limiting.
type Options struct {
	QueueSize       int
	EventsPerSecond float64
	Burst           int
	MaxFrameBytes   int64
	WriteTimeout    time.Duration
}

// Hub tracks live connections and their room subscriptions.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*Conn            // connID -> conn
	users  map[string]map[string]*Conn // username -> connID -> conn
	rooms  map[int64]map[string]*Conn  // roomID -> connID -> conn
	roomOf map[string]int64            // connID -> roomID
	ws     map[string]*websocket.Conn  // connID -> socket, for shutdown
	opts   Options
	logger *slog.Logger
}

// New creates a hub.
func New(opts Options, logger *slog.Logger) *Hub {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.Burst <= 0 {
		opts.Burst = int(opts.EventsPerSecond) * 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		conns:  make(map[string]*Conn),
		users:  make(map[string]map[string]*Conn),
		rooms:  make(map[int64]map[string]*Conn),
		roomOf: make(map[string]int64),
		ws:     make(map[string]*websocket.Conn),
		opts:   opts,
		logger: logger.With("component", "hub"),
	}
}

// Register creates and tracks a connection for username.
func (h *Hub) Register(username string) *Conn {
	var limiter *rate.Limiter
	if h.opts.EventsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(h.opts.EventsPerSecond), h.opts.Burst)
	}
	c := newConn(username, h.opts.QueueSize, limiter)

	h.mu.Lock()
	h.conns[c.ID] = c
	if h.users[username] == nil {
		h.users[username] = make(map[string]*Conn)
	}
	h.users[username][c.ID] = c
	total := len(h.conns)
	h.mu.Unlock()

	metrics.ConnectionsActive.Inc()
	h.logger.Debug("connection registered", "conn_id", c.ID, "username", username, "total", total)
	return c
}

// Unregister drops the connection and its subscriptions and closes it.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	if _, ok := h.conns[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, c.ID)
	delete(h.ws, c.ID)
	if set := h.users[c.Username]; set != nil {
		delete(set, c.ID)
		if len(set) == 0 {
			delete(h.users, c.Username)
		}
	}
	h.unsubscribeLocked(c.ID)
	total := len(h.conns)
	h.mu.Unlock()

	c.close()
	metrics.ConnectionsActive.Dec()
	h.logger.Debug("connection unregistered", "conn_id", c.ID, "username", c.Username, "total", total)
}

// Subscribe puts the connection in roomID, leaving any previous room.
func (h *Hub) Subscribe(connID string, roomID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok {
		return
	}
	h.unsubscribeLocked(connID)
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]*Conn)
	}
	h.rooms[roomID][connID] = c
	h.roomOf[connID] = roomID
}

// SubscribeUser puts every connection of username in roomID.
func (h *Hub) SubscribeUser(username string, roomID int64) {
	for _, id := range h.connIDs(username) {
		h.Subscribe(id, roomID)
	}
}

// Unsubscribe removes the connection from its room, if any.
func (h *Hub) Unsubscribe(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(connID)
}

// UnsubscribeUser removes every connection of username from its room.
func (h *Hub) UnsubscribeUser(username string) {
	for _, id := range h.connIDs(username) {
		h.Unsubscribe(id)
	}
}

// RoomOf returns the room the connection is subscribed to.
func (h *Hub) RoomOf(connID string) (int64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	id, ok := h.roomOf[connID]
	return id, ok
}

func (h *Hub) unsubscribeLocked(connID string) {
	roomID, ok := h.roomOf[connID]
	if !ok {
		return
	}
	delete(h.roomOf, connID)
	if set := h.rooms[roomID]; set != nil {
		delete(set, connID)
		if len(set) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

func (h *Hub) connIDs(username string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.users[username]))
	for id := range h.users[username] {
		ids = append(ids, id)
	}
	return ids
}

// ToUser emits a frame to every connection of username.
func (h *Hub) ToUser(username string, frame any) {
	h.mu.RLock()
	targets := collect(h.users[username], "")
	h.mu.RUnlock()
	h.deliver(targets, frame)
}

// ToConn emits a frame to one connection.
func (h *Hub) ToConn(connID string, frame any) {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.deliver([]*Conn{c}, frame)
}

// ToRoom emits a frame to every connection in roomID except excludeConnID.
func (h *Hub) ToRoom(roomID int64, frame any, excludeConnID string) {
	h.mu.RLock()
	targets := collect(h.rooms[roomID], excludeConnID)
	h.mu.RUnlock()
	h.deliver(targets, frame)
}

// Broadcast emits a frame to every connection.
func (h *Hub) Broadcast(frame any) {
	h.mu.RLock()
	targets := collect(h.conns, "")
	h.mu.RUnlock()
	h.deliver(targets, frame)
}

// Connections returns the number of live connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// collect copies targets so sends happen outside the lock.
func collect(set map[string]*Conn, exclude string) []*Conn {
	out := make([]*Conn, 0, len(set))
	for id, c := range set {
		if id == exclude {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (h *Hub) deliver(targets []*Conn, frame any) {
	if len(targets) == 0 {
		return
	}
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("failed to encode frame", "error", err)
		return
	}
	for _, c := range targets {
		if !c.enqueue(data) {
			metrics.FramesDropped.Inc()
			h.logger.Warn("dropped frame for slow connection", "conn_id", c.ID, "username", c.Username)
		}
	}
}

// Serve runs a websocket connection for username until it closes. The
// handler sees OnConnect before any frame and OnDisconnect after the last.
func (h *Hub) Serve(ctx context.Context, ws *websocket.Conn, username string, handler Handler) {
	if h.opts.MaxFrameBytes > 0 {
		ws.SetReadLimit(h.opts.MaxFrameBytes)
	}

	c := h.Register(username)
	h.mu.Lock()
	h.ws[c.ID] = ws
	h.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writerDone := make(chan error, 1)
	go func() {
		err := c.writePump(ctx, ws, h.opts.WriteTimeout)
		cancel()
		writerDone <- err
	}()

	handler.OnConnect(ctx, c)

	err := c.readPump(ctx, ws, func(data []byte) {
		handler.OnFrame(ctx, c, data)
	})
	if !isNormalClose(err) {
		h.logger.Debug("connection read ended", "conn_id", c.ID, "username", username, "error", err)
	}

	dctx, dcancel := context.WithTimeout(context.WithoutCancel(ctx), disconnectTimeout)
	handler.OnDisconnect(dctx, c)
	dcancel()

	h.Unregister(c)
	cancel()
	<-writerDone
	_ = ws.Close(websocket.StatusNormalClosure, "")
}

// Close shuts down every connection, used on server shutdown.
func (h *Hub) Close() {
	h.mu.RLock()
	conns := collect(h.conns, "")
	sockets := make([]*websocket.Conn, 0, len(h.ws))
	for _, ws := range h.ws {
		sockets = append(sockets, ws)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.close()
	}
	for _, ws := range sockets {
		go func() { _ = ws.Close(websocket.StatusGoingAway, "server shutting down") }()
	}
	h.logger.Debug("hub closed", "connections", len(conns))
}
