// ABOUTME: Friend graph operations and the notifications each transition emits
// ABOUTME: The session user must be the party allowed to make each transition

package chat

import (
	"context"

	"github.com/2389/huddle-gateway/internal/protocol"
)

// SendFriendRequest records sender's request to receiver and notifies both.
func (e *Engine) SendFriendRequest(ctx context.Context, s Session, sender, receiver string) error {
	if err := requireSelf(s, sender); err != nil {
		return err
	}
	if err := e.friends.SendRequest(ctx, sender, receiver); err != nil {
		return err
	}

	e.emit.ToUser(receiver, protocol.NewEvent(protocol.EventFriendRequestReceived, sender))
	e.emit.ToUser(sender, protocol.NewEvent(protocol.EventFriendRequestSentSuccess, receiver))
	return nil
}

// AcceptFriendRequest is called by receiver to accept sender's request.
func (e *Engine) AcceptFriendRequest(ctx context.Context, s Session, sender, receiver string) error {
	if err := requireSelf(s, receiver); err != nil {
		return err
	}
	ok, err := e.friends.AcceptRequest(ctx, sender, receiver)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRequestNotFound
	}

	e.emit.ToUser(sender, protocol.NewEvent(protocol.EventFriendAdded, receiver))
	e.emit.ToUser(receiver, protocol.NewEvent(protocol.EventFriendAdded, sender))
	e.emit.ToUser(receiver, protocol.NewEvent(protocol.EventFriendRequestRemoved, sender))
	e.emit.ToUser(sender, protocol.NewEvent(protocol.EventFriendRequestAccepted, sender, receiver))
	return e.pushFriendLists(ctx, sender, receiver)
}

// RejectFriendRequest is called by receiver to refuse sender's request.
func (e *Engine) RejectFriendRequest(ctx context.Context, s Session, sender, receiver string) error {
	if err := requireSelf(s, receiver); err != nil {
		return err
	}
	ok, err := e.friends.RejectRequest(ctx, sender, receiver)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRequestNotFound
	}

	e.emit.ToUser(receiver, protocol.NewEvent(protocol.EventFriendRequestRejected, sender))
	e.emit.ToUser(sender, protocol.NewEvent(protocol.EventFriendRequestRejectedSender, receiver))
	return nil
}

// CancelFriendRequest is called by sender to withdraw a request. Both sides
// are notified whether or not the request was still pending.
func (e *Engine) CancelFriendRequest(ctx context.Context, s Session, sender, receiver string) error {
	if err := requireSelf(s, sender); err != nil {
		return err
	}
	if _, err := e.friends.CancelRequest(ctx, sender, receiver); err != nil {
		return err
	}

	e.emit.ToUser(sender, protocol.NewEvent(protocol.EventFriendRequestCancelled, sender, receiver))
	e.emit.ToUser(receiver, protocol.NewEvent(protocol.EventFriendRequestCancelledReceiver, sender))
	return nil
}

// RemoveFriend ends the friendship between user1 and user2. Either may call it.
func (e *Engine) RemoveFriend(ctx context.Context, s Session, user1, user2 string) error {
	if s.Username != user1 && s.Username != user2 {
		return ErrNotAuthorized
	}
	if err := e.friends.RemoveFriendship(ctx, user1, user2); err != nil {
		return err
	}

	e.emit.ToUser(user1, protocol.NewEvent(protocol.EventFriendRemoved, user2))
	e.emit.ToUser(user2, protocol.NewEvent(protocol.EventFriendRemoved, user1))
	return e.pushFriendLists(ctx, user1, user2)
}

func (e *Engine) pushFriendLists(ctx context.Context, users ...string) error {
	for _, u := range users {
		list, err := e.friends.GetFriends(ctx, u)
		if err != nil {
			return err
		}
		e.emit.ToUser(u, protocol.NewEvent(protocol.EventFriendsListUpdated, nonNil(list)))
	}
	return nil
}
