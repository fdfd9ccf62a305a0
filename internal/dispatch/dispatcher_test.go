// ABOUTME: Tests for event routing over a real hub, engine and mock store
// ABOUTME: Covers acks, argument errors, rate limiting, replayed ids and internal failures

package dispatch

import (
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/huddle-gateway/internal/auth"
	"github.com/2389/huddle-gateway/internal/chat"
	"github.com/2389/huddle-gateway/internal/friends"
	"github.com/2389/huddle-gateway/internal/hub"
	"github.com/2389/huddle-gateway/internal/invites"
	"github.com/2389/huddle-gateway/internal/presence"
	"github.com/2389/huddle-gateway/internal/protocol"
	"github.com/2389/huddle-gateway/internal/relay"
	"github.com/2389/huddle-gateway/internal/rooms"
	"github.com/2389/huddle-gateway/internal/store"
)

type frame struct {
	Event  string `json:"event"`
	ID     string `json:"id"`
	Args   []any  `json:"args"`
	Result any    `json:"result"`
	Error  string `json:"error"`
}

type env struct {
	hub   *hub.Hub
	disp  *Dispatcher
	store *store.MockStore
}

func newEnv(t *testing.T, hubOpts hub.Options) *env {
	t.Helper()
	logger := slog.Default()
	st := store.NewMockStore()

	verifier, err := auth.NewJWTVerifier([]byte("dispatch-test-secret-0123456789abcdef"))
	require.NoError(t, err)
	authSvc := auth.NewService(st, verifier, auth.Options{Iterations: 1000}, logger)
	for _, u := range []string{"alice", "bob", "carol"} {
		_, err := authSvc.Register(t.Context(), u, "pw", "")
		require.NoError(t, err)
	}

	if hubOpts.QueueSize == 0 {
		hubOpts.QueueSize = 256
	}
	h := hub.New(hubOpts, logger)
	dir := rooms.NewDirectory(logger)
	engine := chat.New(chat.Deps{
		Presence: presence.NewRegistry(logger),
		Rooms:    dir,
		Friends:  friends.New(st, logger),
		Invites:  invites.New(st, dir, logger),
		Relay:    relay.New(authSvc, st, relay.StableKeys, logger),
		Users:    authSvc,
		Emitter:  h,
		Logger:   logger,
	}, chat.Options{})

	d := New(engine, h, Options{HandlerTimeout: time.Second}, logger)
	t.Cleanup(d.Close)
	return &env{hub: h, disp: d, store: st}
}

type client struct {
	t    *testing.T
	conn *hub.Conn
	disp *Dispatcher
}

// connect registers a connection, runs OnConnect and discards the snapshot.
func (e *env) connect(t *testing.T, username string) *client {
	t.Helper()
	c := &client{t: t, conn: e.hub.Register(username), disp: e.disp}
	e.disp.OnConnect(t.Context(), c.conn)
	c.frames()
	return c
}

func (c *client) emit(id, event string, args ...any) {
	c.t.Helper()
	if args == nil {
		args = []any{}
	}
	raw, err := json.Marshal(map[string]any{"event": event, "id": id, "args": args})
	require.NoError(c.t, err)
	c.disp.OnFrame(c.t.Context(), c.conn, raw)
}

// frames drains everything queued for the connection.
func (c *client) frames() []frame {
	c.t.Helper()
	var out []frame
	for {
		select {
		case data := <-c.conn.Outbound():
			var f frame
			require.NoError(c.t, json.Unmarshal(data, &f))
			out = append(out, f)
		default:
			return out
		}
	}
}

// ack drains the queue and returns the ack for id.
func (c *client) ack(id string) frame {
	c.t.Helper()
	for _, f := range c.frames() {
		if f.Event == protocol.EventAck && f.ID == id {
			return f
		}
	}
	c.t.Fatalf("no ack for id %q", id)
	return frame{}
}

func TestEvents_Catalog(t *testing.T) {
	e := newEnv(t, hub.Options{})
	assert.Equal(t, []string{
		"accept_chat_invitation",
		"add_friend_to_chat",
		"friend_removed",
		"friend_request_accepted",
		"friend_request_cancelled",
		"friend_request_rejected",
		"friend_request_sent",
		"get_chat_invitations",
		"join",
		"leave",
		"logoff",
		"ping",
		"reject_chat_invitation",
		"send",
	}, e.disp.Events())
}

func TestConnect_SendsSnapshot(t *testing.T) {
	e := newEnv(t, hub.Options{})
	c := &client{t: t, conn: e.hub.Register("alice"), disp: e.disp}
	e.disp.OnConnect(t.Context(), c.conn)

	var events []string
	for _, f := range c.frames() {
		events = append(events, f.Event)
	}
	assert.Equal(t, []string{
		protocol.EventFriendsList,
		protocol.EventFriendRequestsList,
		protocol.EventSentFriendRequestsList,
		protocol.EventChatInvitationsList,
		protocol.EventOnline,
	}, events)
}

func TestAliceBobConversation(t *testing.T) {
	e := newEnv(t, hub.Options{})
	alice := e.connect(t, "alice")
	bob := e.connect(t, "bob")
	alice.frames()

	alice.emit("1", protocol.EventFriendRequestSent, "alice", "bob")
	assert.Equal(t, true, alice.ack("1").Result)
	assert.Contains(t, bob.frames(), frame{Event: protocol.EventFriendRequestReceived, Args: []any{"alice"}})

	bob.emit("2", protocol.EventFriendRequestAccepted, "alice", "bob")
	assert.Equal(t, true, bob.ack("2").Result)
	alice.frames()

	alice.emit("3", protocol.EventJoin, "alice", "bob")
	assert.Equal(t, float64(1), alice.ack("3").Result)

	bob.emit("4", protocol.EventJoin, "bob", "alice")
	assert.Equal(t, float64(1), bob.ack("4").Result)
	assert.Contains(t, alice.frames(),
		frame{Event: protocol.EventIncoming, Args: []any{"bob has joined the room.", "green"}})

	alice.emit("5", protocol.EventSend, "alice", "bob", "c1", "k1", "m1", 1)
	want := frame{Event: protocol.EventIncoming, Args: []any{"alice", "c1", "k1", "m1"}}
	aliceFrames := alice.frames()
	assert.Contains(t, aliceFrames, want)
	assert.Contains(t, bob.frames(), want)

	var acked bool
	for _, f := range aliceFrames {
		if f.Event == protocol.EventAck && f.ID == "5" {
			acked = f.Result == true
		}
	}
	assert.True(t, acked)

	// A later join replays the stored envelope to the caller.
	bob.emit("6", protocol.EventLeave, "bob", "1")
	bob.ack("6")
	bob.emit("7", protocol.EventJoin, "bob", "alice")
	assert.Contains(t, bob.frames(), want)
}

func TestAckErrors(t *testing.T) {
	e := newEnv(t, hub.Options{})
	alice := e.connect(t, "alice")

	tests := []struct {
		name    string
		event   string
		args    []any
		wantErr string
	}{
		{"unknown event", "dance", nil, "unknown event"},
		{"missing args", protocol.EventJoin, []any{"alice"}, "bad arguments: missing argument 1"},
		{"wrong arg type", protocol.EventLeave, []any{"alice", "lobby"}, "bad arguments: argument 1 must be an integer"},
		{"not friends", protocol.EventJoin, []any{"alice", "bob"}, "You must be friends to join the chatroom!"},
		{"unknown receiver", protocol.EventJoin, []any{"alice", "zed"}, "Unknown receiver!"},
		{"impersonation", protocol.EventFriendRequestSent, []any{"bob", "carol"}, "not authorized"},
		{"send outside room", protocol.EventSend, []any{"alice", "zed", "c", "k", "m", 1}, "you are not in that room"},
		{"no invitation", protocol.EventAcceptChatInvitation, []any{99}, "invitation not found"},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := string(rune('a' + i))
			alice.emit(id, tt.event, tt.args...)
			got := alice.ack(id)
			assert.Equal(t, tt.wantErr, got.Error)
			assert.Nil(t, got.Result)
		})
	}
}

func TestNoAckWithoutID(t *testing.T) {
	e := newEnv(t, hub.Options{})
	alice := e.connect(t, "alice")

	alice.emit("", protocol.EventPing)
	alice.emit("", "dance")
	assert.Empty(t, alice.frames())

	e.disp.OnFrame(t.Context(), alice.conn, []byte("{not json"))
	e.disp.OnFrame(t.Context(), alice.conn, []byte(`{"id":"1"}`))
	assert.Empty(t, alice.frames())
}

func TestPingAndLogoff(t *testing.T) {
	e := newEnv(t, hub.Options{})
	alice := e.connect(t, "alice")

	alice.emit("p", protocol.EventPing)
	assert.Equal(t, "pong", alice.ack("p").Result)
	alice.emit("p", protocol.EventPing)
	assert.Equal(t, "pong", alice.ack("p").Result, "ping ids may repeat")

	alice.emit("bye", protocol.EventLogoff)
	frames := alice.frames()
	assert.Contains(t, frames, frame{Event: protocol.EventOffline, Args: []any{map[string]any{"username": "alice"}}})
	assert.Contains(t, frames, frame{Event: protocol.EventAck, ID: "bye", Result: true})
}

func TestRateLimit(t *testing.T) {
	e := newEnv(t, hub.Options{EventsPerSecond: 0.001, Burst: 1})
	alice := e.connect(t, "alice")

	alice.emit("1", protocol.EventPing)
	assert.Equal(t, "pong", alice.ack("1").Result)

	alice.emit("2", protocol.EventPing)
	assert.Equal(t, "rate limit exceeded", alice.ack("2").Error)
}

func TestReplayedIDRefused(t *testing.T) {
	e := newEnv(t, hub.Options{})
	alice := e.connect(t, "alice")
	bob := e.connect(t, "bob")

	alice.emit("1", protocol.EventFriendRequestSent, "alice", "bob")
	assert.Equal(t, true, alice.ack("1").Result)
	bob.frames()

	alice.emit("1", protocol.EventFriendRequestSent, "alice", "bob")
	assert.Equal(t, "duplicate event id", alice.ack("1").Error)
	assert.Empty(t, bob.frames(), "retry is not applied twice")

	// Ids are scoped per user.
	bob.emit("1", protocol.EventPing)
	assert.Equal(t, "pong", bob.ack("1").Result)
}

func TestInternalErrorAllowsRetry(t *testing.T) {
	e := newEnv(t, hub.Options{})
	alice := e.connect(t, "alice")

	e.store.FailWrites = errors.New("disk I/O error")
	alice.emit("1", protocol.EventFriendRequestSent, "alice", "bob")
	assert.Equal(t, "internal error", alice.ack("1").Error)

	e.store.FailWrites = nil
	alice.emit("1", protocol.EventFriendRequestSent, "alice", "bob")
	assert.Equal(t, true, alice.ack("1").Result)
}

func TestInvitationEvents(t *testing.T) {
	e := newEnv(t, hub.Options{})
	alice := e.connect(t, "alice")
	bob := e.connect(t, "bob")
	carol := e.connect(t, "carol")

	alice.emit("1", protocol.EventFriendRequestSent, "alice", "bob")
	bob.emit("2", protocol.EventFriendRequestAccepted, "alice", "bob")
	alice.emit("3", protocol.EventJoin, "alice", "bob")
	alice.frames()
	bob.frames()
	carol.frames()

	alice.emit("4", protocol.EventAddFriendToChat, 1, "carol")
	assert.Equal(t, float64(1), alice.ack("4").Result)

	invite := frame{Event: protocol.EventChatInvitationSent, Args: []any{
		map[string]any{"id": float64(1), "sender": "alice", "room_id": float64(1)},
	}}
	assert.Contains(t, carol.frames(), invite)

	carol.emit("5", protocol.EventGetChatInvitations)
	assert.Equal(t, []any{map[string]any{"id": float64(1), "sender": "alice", "room_id": float64(1)}},
		carol.ack("5").Result)

	carol.emit("6", protocol.EventAcceptChatInvitation, "1")
	assert.Equal(t, float64(1), carol.ack("6").Result)
	assert.Contains(t, alice.frames(),
		frame{Event: protocol.EventIncoming, Args: []any{"carol has joined the chat.", "green"}})

	carol.emit("7", protocol.EventRejectChatInvitation, 1)
	assert.Equal(t, false, carol.ack("7").Result)
}

func TestDisconnectNotifiesRoom(t *testing.T) {
	e := newEnv(t, hub.Options{})
	alice := e.connect(t, "alice")
	bob := e.connect(t, "bob")

	alice.emit("1", protocol.EventFriendRequestSent, "alice", "bob")
	bob.emit("2", protocol.EventFriendRequestAccepted, "alice", "bob")
	alice.emit("3", protocol.EventJoin, "alice", "bob")
	bob.emit("4", protocol.EventJoin, "bob", "alice")
	alice.frames()
	bob.frames()

	e.disp.OnDisconnect(t.Context(), bob.conn)
	assert.Equal(t, []frame{
		{Event: protocol.EventIncoming, Args: []any{"bob has disconnected", "red"}},
	}, alice.frames())
	assert.Empty(t, bob.frames())
}
