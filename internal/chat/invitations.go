// ABOUTME: Chat invitation operations: invite into a room, accept, reject and list
// ABOUTME: Accepting subscribes the connection and announces the newcomer to the room

package chat

import (
	"context"

	"github.com/2389/huddle-gateway/internal/protocol"
)

// AddFriendToChat invites invitee into roomID, which the session user must occupy.
func (e *Engine) AddFriendToChat(ctx context.Context, s Session, roomID int64, invitee string) (int64, error) {
	inv, err := e.invites.Invite(ctx, s.Username, invitee, roomID)
	if err != nil {
		return 0, err
	}

	e.emit.ToUser(invitee, protocol.NewEvent(protocol.EventChatInvitationSent,
		InvitationView{ID: inv.ID, Sender: inv.Sender, RoomID: inv.RoomID}))
	return inv.ID, nil
}

// AcceptChatInvitation consumes the invitation and joins its room.
func (e *Engine) AcceptChatInvitation(ctx context.Context, s Session, id int64) (int64, error) {
	inv, err := e.invites.Accept(ctx, id, s.Username)
	if err != nil {
		return 0, err
	}

	e.emit.Subscribe(s.ConnID, inv.RoomID)
	e.emit.ToRoom(inv.RoomID, protocol.Notice(s.Username+" has joined the chat.", protocol.ColorGreen), "")

	e.logger.Info("joined room by invitation", "username", s.Username, "room_id", inv.RoomID)
	return inv.RoomID, nil
}

// RejectChatInvitation deletes the invitation. Returns whether it existed.
func (e *Engine) RejectChatInvitation(ctx context.Context, s Session, id int64) (bool, error) {
	return e.invites.Reject(ctx, id, s.Username)
}

// ChatInvitations lists the invitations pending for the session user.
func (e *Engine) ChatInvitations(ctx context.Context, s Session) ([]InvitationView, error) {
	invs, err := e.invites.List(ctx, s.Username)
	if err != nil {
		return nil, err
	}
	return invitationViews(invs), nil
}
