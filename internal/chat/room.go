// ABOUTME: Room operations: join with history replay, leave and encrypted send
// ABOUTME: Join requires friendship and reuses or creates a room per the reuse policy

package chat

import (
	"context"
	"fmt"

	"github.com/2389/huddle-gateway/internal/metrics"
	"github.com/2389/huddle-gateway/internal/protocol"
	"github.com/2389/huddle-gateway/internal/relay"
)

// Join puts sender in a room with receiver and returns the room id. History
// between the two is replayed to the calling connection first.
func (e *Engine) Join(ctx context.Context, s Session, sender, receiver string) (int64, error) {
	if err := requireSelf(s, sender); err != nil {
		return 0, err
	}

	ru, err := e.lookupUser(ctx, receiver)
	if err != nil {
		return 0, fmt.Errorf("resolving receiver: %w", err)
	}
	if ru == nil {
		return 0, ErrUnknownReceiver
	}
	su, err := e.lookupUser(ctx, sender)
	if err != nil {
		return 0, fmt.Errorf("resolving sender: %w", err)
	}
	if su == nil {
		return 0, ErrUnknownSender
	}

	ok, err := e.friends.AreFriends(ctx, sender, receiver)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNotFriends
	}

	history, err := e.relay.History(ctx, sender, receiver)
	if err != nil {
		return 0, err
	}
	for _, m := range history {
		e.emit.ToConn(s.ConnID, envelopeEvent(m))
	}

	e.joinMu.Lock()
	defer e.joinMu.Unlock()

	if roomID, ok := e.reusableRoom(sender, receiver); ok {
		e.rooms.JoinRoom(sender, roomID)
		e.emit.Subscribe(s.ConnID, roomID)
		e.emit.ToRoom(roomID, protocol.Notice(sender+" has joined the room.", protocol.ColorGreen), s.ConnID)
		e.emit.ToConn(s.ConnID, protocol.Notice(
			fmt.Sprintf("%s has joined the room. Now talking to %s.", sender, receiver), protocol.ColorGreen))

		e.logger.Info("joined existing room", "sender", sender, "receiver", receiver, "room_id", roomID)
		return roomID, nil
	}

	roomID := e.rooms.CreateRoom(sender, receiver)
	e.emit.Subscribe(s.ConnID, roomID)
	e.emit.ToRoom(roomID, protocol.Notice(
		fmt.Sprintf("%s has joined the room. Now talking to %s.", sender, receiver), protocol.ColorGreen), "")

	e.logger.Info("created room", "sender", sender, "receiver", receiver, "room_id", roomID)
	return roomID, nil
}

func (e *Engine) reusableRoom(sender, receiver string) (int64, bool) {
	if e.opts.Reuse == ReusePair {
		return e.rooms.RoomForPair(sender, receiver)
	}
	return e.rooms.GetRoom(receiver)
}

// Leave announces username's departure from roomID and drops the assignment.
func (e *Engine) Leave(ctx context.Context, s Session, username string, roomID int64) error {
	if err := requireSelf(s, username); err != nil {
		return err
	}
	if current, ok := e.rooms.GetRoom(username); !ok || current != roomID {
		return ErrNotInRoom
	}

	e.emit.ToRoom(roomID, protocol.Notice(username+" has left the room.", protocol.ColorRed), "")
	e.emit.Unsubscribe(s.ConnID)
	e.rooms.LeaveRoom(username)

	e.logger.Info("left room", "username", username, "room_id", roomID)
	return nil
}

// Send persists an encrypted envelope and fans it out to the room. Nothing is
// stored or emitted when a party is unknown.
func (e *Engine) Send(ctx context.Context, s Session, env relay.Envelope) error {
	if err := requireSelf(s, env.Sender); err != nil {
		return err
	}
	if current, ok := e.rooms.GetRoom(env.Sender); !ok || current != env.RoomID {
		return ErrNotInRoom
	}

	msg, err := e.relay.Send(ctx, env)
	if err != nil {
		return err
	}

	e.emit.ToRoom(env.RoomID, envelopeEvent(msg), "")
	metrics.MessagesRelayed.Inc()
	return nil
}
