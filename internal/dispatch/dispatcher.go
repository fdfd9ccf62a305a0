// ABOUTME: Routes decoded websocket events to chat engine operations and acks the caller
// ABOUTME: Implements hub.Handler with rate limiting, replay refusal and per-event timeouts

package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/2389/huddle-gateway/internal/chat"
	"github.com/2389/huddle-gateway/internal/dedupe"
	"github.com/2389/huddle-gateway/internal/hub"
	"github.com/2389/huddle-gateway/internal/metrics"
	"github.com/2389/huddle-gateway/internal/protocol"
)

// Ack error texts that are not policy errors.
const (
	msgInternal      = "internal error"
	msgUnknownEvent  = "unknown event"
	msgRateLimited   = "rate limit exceeded"
	msgDuplicate     = "duplicate event id"
	msgHandlerExpiry = "request timed out"
)

var errUnknownEvent = errors.New(msgUnknownEvent)

// Sender delivers an ack frame to one connection.
type Sender interface {
	ToConn(connID string, frame any)
}

// Options tunes event handling.
type Options struct {
	HandlerTimeout time.Duration
	ReplayWindow   time.Duration
	ReplayEntries  int
}

type handlerFunc func(ctx context.Context, s chat.Session, in *protocol.Inbound) (any, error)

// Dispatcher maps inbound event names to engine operations.
type Dispatcher struct {
	engine *chat.Engine
	out    Sender
	routes map[string]handlerFunc
	replay *dedupe.Window
	opts   Options
	logger *slog.Logger
}

// New creates a dispatcher. Call Close to stop its replay window.
func New(engine *chat.Engine, out Sender, opts Options, logger *slog.Logger) *Dispatcher {
	if opts.HandlerTimeout <= 0 {
		opts.HandlerTimeout = 10 * time.Second
	}
	if opts.ReplayWindow <= 0 {
		opts.ReplayWindow = 2 * time.Minute
	}
	if opts.ReplayEntries <= 0 {
		opts.ReplayEntries = 10000
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		engine: engine,
		out:    out,
		replay: dedupe.New(opts.ReplayWindow, opts.ReplayEntries),
		opts:   opts,
		logger: logger.With("component", "dispatch"),
	}
	d.routes = d.routeTable()
	return d
}

// Close stops background work.
func (d *Dispatcher) Close() {
	d.replay.Close()
}

// Events returns the sorted names of every routed event.
func (d *Dispatcher) Events() []string {
	names := make([]string, 0, len(d.routes))
	for name := range d.routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func session(c *hub.Conn) chat.Session {
	return chat.Session{ConnID: c.ID, Username: c.Username}
}

// OnConnect implements hub.Handler.
func (d *Dispatcher) OnConnect(ctx context.Context, c *hub.Conn) {
	if err := d.engine.Connect(ctx, session(c)); err != nil {
		d.logger.Error("connect failed", "username", c.Username, "conn_id", c.ID, "error", err)
	}
}

// OnDisconnect implements hub.Handler.
func (d *Dispatcher) OnDisconnect(ctx context.Context, c *hub.Conn) {
	d.engine.Disconnect(ctx, session(c))
}

// OnFrame implements hub.Handler. Frames are handled in arrival order on
// the connection's read goroutine.
func (d *Dispatcher) OnFrame(ctx context.Context, c *hub.Conn, data []byte) {
	in, err := protocol.Decode(data)
	if err != nil {
		metrics.EventsHandled.WithLabelValues("malformed", "error").Inc()
		d.logger.Debug("dropping malformed frame", "conn_id", c.ID, "username", c.Username, "error", err)
		return
	}

	if !c.Allow() {
		metrics.RateLimited.Inc()
		d.logger.Warn("rate limited", "conn_id", c.ID, "username", c.Username, "event", in.Event)
		d.ack(c.ID, in.ID, nil, msgRateLimited)
		return
	}

	replayKey := ""
	if in.ID != "" && in.Event != protocol.EventPing {
		replayKey = c.Username + "\x00" + in.ID
		if d.replay.Seen(replayKey) {
			d.ack(c.ID, in.ID, nil, msgDuplicate)
			return
		}
	}

	result, err := d.Handle(ctx, session(c), in)
	if err == nil {
		d.ack(c.ID, in.ID, result, "")
		return
	}

	msg := d.errorText(c, in, err)
	if replayKey != "" && !chat.IsPolicy(err) {
		// Nothing was applied, so the client may retry with the same id.
		d.replay.Forget(replayKey)
	}
	d.ack(c.ID, in.ID, nil, msg)
}

// Handle runs one event under the handler timeout and records metrics.
func (d *Dispatcher) Handle(ctx context.Context, s chat.Session, in *protocol.Inbound) (any, error) {
	h, ok := d.routes[in.Event]
	if !ok {
		metrics.EventsHandled.WithLabelValues("unknown", "error").Inc()
		return nil, errUnknownEvent
	}

	ctx, cancel := context.WithTimeout(ctx, d.opts.HandlerTimeout)
	defer cancel()

	start := time.Now()
	result, err := h(ctx, s, in)
	metrics.EventDuration.WithLabelValues(in.Event).Observe(time.Since(start).Seconds())
	metrics.EventsHandled.WithLabelValues(in.Event, outcome(err)).Inc()
	return result, err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case chat.IsPolicy(err):
		return "refused"
	default:
		return "error"
	}
}

func (d *Dispatcher) errorText(c *hub.Conn, in *protocol.Inbound, err error) string {
	switch {
	case errors.Is(err, errUnknownEvent):
		d.logger.Debug("unknown event", "conn_id", c.ID, "event", in.Event)
		return msgUnknownEvent
	case chat.IsPolicy(err):
		return err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		d.logger.Error("event timed out", "conn_id", c.ID, "username", c.Username, "event", in.Event, "error", err)
		return msgHandlerExpiry
	default:
		d.logger.Error("event failed", "conn_id", c.ID, "username", c.Username, "event", in.Event, "error", err)
		return msgInternal
	}
}

// ack answers the caller when the event carried an id.
func (d *Dispatcher) ack(connID, id string, result any, errText string) {
	if id == "" {
		return
	}
	if errText != "" {
		d.out.ToConn(connID, protocol.Fail(id, errText))
		return
	}
	d.out.ToConn(connID, protocol.OK(id, result))
}
