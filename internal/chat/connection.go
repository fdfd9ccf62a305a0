// ABOUTME: Connection lifecycle operations: connect, disconnect, logoff and heartbeat
// ABOUTME: Maintains presence and sends the initial friends snapshot

package chat

import (
	"context"
	"fmt"

	"github.com/2389/huddle-gateway/internal/protocol"
)

// Connect registers presence for the session, sends the friends snapshot to
// the new connection and broadcasts the online list. A user who still holds
// a room is resubscribed to it.
func (e *Engine) Connect(ctx context.Context, s Session) error {
	e.presence.Connect(s.Username, s.ConnID)

	if roomID, ok := e.rooms.GetRoom(s.Username); ok {
		e.emit.Subscribe(s.ConnID, roomID)
		e.emit.ToRoom(roomID, protocol.Notice(s.Username+" has connected", protocol.ColorGreen), "")
	}

	err := e.sendSnapshot(ctx, s)
	e.emit.Broadcast(onlineEvent(e.presence.Online()))

	e.logger.Info("user connected", "username", s.Username, "conn_id", s.ConnID, "online", e.presence.Len())
	return err
}

func (e *Engine) sendSnapshot(ctx context.Context, s Session) error {
	friendList, err := e.friends.GetFriends(ctx, s.Username)
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}
	incoming, err := e.friends.IncomingRequests(ctx, s.Username)
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}
	outgoing, err := e.friends.OutgoingRequests(ctx, s.Username)
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}
	invs, err := e.invites.List(ctx, s.Username)
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}

	e.emit.ToConn(s.ConnID, protocol.NewEvent(protocol.EventFriendsList, nonNil(friendList)))
	e.emit.ToConn(s.ConnID, protocol.NewEvent(protocol.EventFriendRequestsList, nonNil(incoming)))
	e.emit.ToConn(s.ConnID, protocol.NewEvent(protocol.EventSentFriendRequestsList, nonNil(outgoing)))
	e.emit.ToConn(s.ConnID, protocol.NewEvent(protocol.EventChatInvitationsList, invitationViews(invs)))
	return nil
}

// Disconnect is the best effort transport-level notice. It tells the user's
// room, if any, and leaves presence alone. A connection already superseded
// by a reconnect says nothing.
func (e *Engine) Disconnect(ctx context.Context, s Session) {
	if current, ok := e.presence.Lookup(s.Username); ok && current != s.ConnID {
		return
	}
	roomID, ok := e.rooms.GetRoom(s.Username)
	if !ok {
		return
	}
	e.emit.ToRoom(roomID, protocol.Notice(s.Username+" has disconnected", protocol.ColorRed), s.ConnID)
	e.logger.Debug("user disconnected", "username", s.Username, "conn_id", s.ConnID, "room_id", roomID)
}

// Logoff removes the session's presence entry and announces the user offline.
// Returns false when the connection held no entry.
func (e *Engine) Logoff(ctx context.Context, s Session) bool {
	username, ok := e.presence.Logoff(s.ConnID)
	if !ok {
		return false
	}
	e.emit.Broadcast(offlineEvent(username))
	e.logger.Info("user logged off", "username", username, "online", e.presence.Len())
	return true
}

// Heartbeat refreshes presence. A user expired while still connected is
// registered again and announced.
func (e *Engine) Heartbeat(ctx context.Context, s Session) {
	if e.presence.Touch(s.ConnID) {
		return
	}
	if _, ok := e.presence.Lookup(s.Username); ok {
		// Another connection owns the entry.
		return
	}
	e.presence.Connect(s.Username, s.ConnID)
	e.emit.Broadcast(onlineEvent(e.presence.Online()))
	e.logger.Debug("presence restored by heartbeat", "username", s.Username, "conn_id", s.ConnID)
}
