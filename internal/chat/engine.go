// ABOUTME: Chat coordination engine tying presence, rooms, friends, invitations and relay together
// ABOUTME: Each operation validates the session, calls the services and emits the resulting events

package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/huddle-gateway/internal/auth"
	"github.com/2389/huddle-gateway/internal/friends"
	"github.com/2389/huddle-gateway/internal/invites"
	"github.com/2389/huddle-gateway/internal/metrics"
	"github.com/2389/huddle-gateway/internal/presence"
	"github.com/2389/huddle-gateway/internal/relay"
	"github.com/2389/huddle-gateway/internal/rooms"
	"github.com/2389/huddle-gateway/internal/store"
)

// ReusePolicy decides which existing room a join may reuse.
type ReusePolicy string

const (
	// ReuseReceiver joins the receiver's current room, whoever else is in it.
	ReuseReceiver ReusePolicy = "receiver"
	// ReusePair only reuses a room that already holds both parties.
	ReusePair ReusePolicy = "pair"
)

// Session identifies the connection an event arrived on.
type Session struct {
	ConnID   string
	Username string
}

// Emitter delivers events and tracks which connections listen to which room.
type Emitter interface {
	ToUser(username string, frame any)
	ToConn(connID string, frame any)
	ToRoom(roomID int64, frame any, excludeConnID string)
	Broadcast(frame any)
	Subscribe(connID string, roomID int64)
	Unsubscribe(connID string)
}

// Users resolves identities through the auth service.
type Users interface {
	GetUser(ctx context.Context, username string) (*store.User, error)
}

// Deps are the services the engine coordinates.
type Deps struct {
	Presence *presence.Registry
	Rooms    *rooms.Directory
	Friends  *friends.Service
	Invites  *invites.Service
	Relay    *relay.Service
	Users    Users
	Emitter  Emitter
	Logger   *slog.Logger
}

// Options tunes room reuse and presence expiry.
type Options struct {
	Reuse            ReusePolicy
	HeartbeatTimeout time.Duration
	SweepInterval    time.Duration
}

// Engine is the coordination layer behind the websocket events.
type Engine struct {
	presence *presence.Registry
	rooms    *rooms.Directory
	friends  *friends.Service
	invites  *invites.Service
	relay    *relay.Service
	users    Users
	emit     Emitter
	opts     Options
	now      func() time.Time
	logger   *slog.Logger

	// joinMu makes the reuse-or-create decision atomic across joins.
	joinMu sync.Mutex
}

// New creates an engine.
func New(deps Deps, opts Options) *Engine {
	if opts.Reuse == "" {
		opts.Reuse = ReuseReceiver
	}
	if opts.HeartbeatTimeout <= 0 {
		opts.HeartbeatTimeout = 90 * time.Second
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 30 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		presence: deps.Presence,
		rooms:    deps.Rooms,
		friends:  deps.Friends,
		invites:  deps.Invites,
		relay:    deps.Relay,
		users:    deps.Users,
		emit:     deps.Emitter,
		opts:     opts,
		now:      time.Now,
		logger:   logger.With("component", "chat"),
	}
}

// Online returns the sorted online usernames.
func (e *Engine) Online() []string {
	return e.presence.Online()
}

// Rooms returns every live room.
func (e *Engine) Rooms() []rooms.Room {
	return e.rooms.Snapshot()
}

// RoomStats returns room counts.
func (e *Engine) RoomStats() rooms.Stats {
	return e.rooms.Stats()
}

// Run expires stale presence entries until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Sweep()
		}
	}
}

// Sweep removes presence entries whose heartbeat is older than the timeout
// and announces each as offline.
func (e *Engine) Sweep() []string {
	expired := e.presence.Expire(e.now().Add(-e.opts.HeartbeatTimeout))
	for _, username := range expired {
		e.emit.Broadcast(offlineEvent(username))
	}
	metrics.PresenceExpired.Add(float64(len(expired)))
	metrics.OnlineUsers.Set(float64(e.presence.Len()))
	metrics.ActiveRooms.Set(float64(e.rooms.Stats().Rooms))
	return expired
}

// requireSelf checks that the session acts as username.
func requireSelf(s Session, username string) error {
	if s.Username != username {
		return ErrNotAuthorized
	}
	return nil
}

// lookupUser returns the user, or nil when unknown.
func (e *Engine) lookupUser(ctx context.Context, username string) (*store.User, error) {
	u, err := e.users.GetUser(ctx, username)
	if errors.Is(err, auth.ErrUnknownUser) || errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return u, err
}
