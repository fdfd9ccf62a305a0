// ABOUTME: Event routing table mapping inbound event names to engine calls
// ABOUTME: Each handler unpacks positional args and calls exactly one operation

package dispatch

import (
	"context"

	"github.com/2389/huddle-gateway/internal/chat"
	"github.com/2389/huddle-gateway/internal/protocol"
	"github.com/2389/huddle-gateway/internal/relay"
)

func (d *Dispatcher) routeTable() map[string]handlerFunc {
	return map[string]handlerFunc{
		protocol.EventPing:                   d.ping,
		protocol.EventLogoff:                 d.logoff,
		protocol.EventSend:                   d.send,
		protocol.EventJoin:                   d.join,
		protocol.EventLeave:                  d.leave,
		protocol.EventFriendRequestSent:      d.pair(d.engine.SendFriendRequest),
		protocol.EventFriendRequestAccepted:  d.pair(d.engine.AcceptFriendRequest),
		protocol.EventFriendRequestRejected:  d.pair(d.engine.RejectFriendRequest),
		protocol.EventFriendRequestCancelled: d.pair(d.engine.CancelFriendRequest),
		protocol.EventFriendRemoved:          d.pair(d.engine.RemoveFriend),
		protocol.EventAddFriendToChat:        d.addFriendToChat,
		protocol.EventAcceptChatInvitation:   d.acceptChatInvitation,
		protocol.EventRejectChatInvitation:   d.rejectChatInvitation,
		protocol.EventGetChatInvitations:     d.getChatInvitations,
	}
}

func (d *Dispatcher) ping(ctx context.Context, s chat.Session, in *protocol.Inbound) (any, error) {
	d.engine.Heartbeat(ctx, s)
	return "pong", nil
}

func (d *Dispatcher) logoff(ctx context.Context, s chat.Session, in *protocol.Inbound) (any, error) {
	return d.engine.Logoff(ctx, s), nil
}

// send args: sender, receiver, ciphertext, key_artifact, mac, room_id
func (d *Dispatcher) send(ctx context.Context, s chat.Session, in *protocol.Inbound) (any, error) {
	var env relay.Envelope
	var err error
	fields := []*string{&env.Sender, &env.Receiver, &env.Ciphertext, &env.KeyArtifact, &env.MAC}
	for i, dst := range fields {
		if *dst, err = in.String(i); err != nil {
			return nil, err
		}
	}
	if env.RoomID, err = in.Int64(5); err != nil {
		return nil, err
	}
	if err := d.engine.Send(ctx, s, env); err != nil {
		return nil, err
	}
	return true, nil
}

func (d *Dispatcher) join(ctx context.Context, s chat.Session, in *protocol.Inbound) (any, error) {
	sender, receiver, err := twoStrings(in)
	if err != nil {
		return nil, err
	}
	return d.engine.Join(ctx, s, sender, receiver)
}

func (d *Dispatcher) leave(ctx context.Context, s chat.Session, in *protocol.Inbound) (any, error) {
	username, err := in.String(0)
	if err != nil {
		return nil, err
	}
	roomID, err := in.Int64(1)
	if err != nil {
		return nil, err
	}
	if err := d.engine.Leave(ctx, s, username, roomID); err != nil {
		return nil, err
	}
	return true, nil
}

// pair adapts the friend operations, which all take two usernames.
func (d *Dispatcher) pair(op func(context.Context, chat.Session, string, string) error) handlerFunc {
	return func(ctx context.Context, s chat.Session, in *protocol.Inbound) (any, error) {
		a, b, err := twoStrings(in)
		if err != nil {
			return nil, err
		}
		if err := op(ctx, s, a, b); err != nil {
			return nil, err
		}
		return true, nil
	}
}

func (d *Dispatcher) addFriendToChat(ctx context.Context, s chat.Session, in *protocol.Inbound) (any, error) {
	roomID, err := in.Int64(0)
	if err != nil {
		return nil, err
	}
	invitee, err := in.String(1)
	if err != nil {
		return nil, err
	}
	return d.engine.AddFriendToChat(ctx, s, roomID, invitee)
}

func (d *Dispatcher) acceptChatInvitation(ctx context.Context, s chat.Session, in *protocol.Inbound) (any, error) {
	id, err := in.Int64(0)
	if err != nil {
		return nil, err
	}
	return d.engine.AcceptChatInvitation(ctx, s, id)
}

func (d *Dispatcher) rejectChatInvitation(ctx context.Context, s chat.Session, in *protocol.Inbound) (any, error) {
	id, err := in.Int64(0)
	if err != nil {
		return nil, err
	}
	return d.engine.RejectChatInvitation(ctx, s, id)
}

func (d *Dispatcher) getChatInvitations(ctx context.Context, s chat.Session, in *protocol.Inbound) (any, error) {
	return d.engine.ChatInvitations(ctx, s)
}

func twoStrings(in *protocol.Inbound) (string, string, error) {
	a, err := in.String(0)
	if err != nil {
		return "", "", err
	}
	b, err := in.String(1)
	if err != nil {
		return "", "", err
	}
	return a, b, nil
}
