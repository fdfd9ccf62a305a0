// ABOUTME: Chat invitation service letting a room occupant invite a third user
// ABOUTME: Invitations are durable and single use; accepting requires a live room

package invites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/huddle-gateway/internal/store"
)

// Policy errors returned to callers.
var (
	ErrNotInRoom          = errors.New("you are not in that room")
	ErrSelfInvite         = errors.New("cannot invite yourself")
	ErrUnknownUser        = errors.New("unknown user")
	ErrInvitationNotFound = errors.New("invitation not found")
	ErrNotInvitee         = errors.New("invitation is addressed to another user")
	ErrRoomGone           = errors.New("that chat room no longer exists")
)

// InvitationStore defines what the service needs from storage.
type InvitationStore interface {
	CreateChatInvitation(ctx context.Context, inv *store.ChatInvitation) error
	GetChatInvitation(ctx context.Context, id int64) (*store.ChatInvitation, error)
	TakeChatInvitation(ctx context.Context, id int64) (*store.ChatInvitation, error)
	DeleteChatInvitation(ctx context.Context, id int64) (bool, error)
	ListChatInvitations(ctx context.Context, username string) ([]*store.ChatInvitation, error)
}

// RoomDirectory is the subset of rooms.Directory the service uses.
type RoomDirectory interface {
	GetRoom(username string) (int64, bool)
	Exists(roomID int64) bool
	JoinRoom(username string, roomID int64)
}

// Service manages chat invitations.
type Service struct {
	store  InvitationStore
	rooms  RoomDirectory
	logger *slog.Logger
}

// New creates an invitation service.
func New(st InvitationStore, rooms RoomDirectory, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		rooms:  rooms,
		logger: logger.With("component", "invites"),
	}
}

// Invite records an invitation from inviter, who must occupy roomID, to invitee.
func (s *Service) Invite(ctx context.Context, inviter, invitee string, roomID int64) (*store.ChatInvitation, error) {
	if inviter == invitee {
		return nil, ErrSelfInvite
	}
	if current, ok := s.rooms.GetRoom(inviter); !ok || current != roomID {
		return nil, ErrNotInRoom
	}

	inv := &store.ChatInvitation{Sender: inviter, Receiver: invitee, RoomID: roomID}
	if err := s.store.CreateChatInvitation(ctx, inv); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, fmt.Errorf("creating chat invitation: %w", err)
	}

	s.logger.Info("chat invitation sent",
		"invitation_id", inv.ID,
		"sender", inviter,
		"receiver", invitee,
		"room_id", roomID,
	)
	return inv, nil
}

// Accept consumes the invitation and assigns username to its room. The
// invitation is consumed even when the room has since emptied, in which case
// ErrRoomGone is returned along with the invitation.
func (s *Service) Accept(ctx context.Context, id int64, username string) (*store.ChatInvitation, error) {
	inv, err := s.store.GetChatInvitation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading chat invitation: %w", err)
	}
	if inv.Receiver != username {
		return nil, ErrNotInvitee
	}

	// Take is the single point of consumption; a concurrent accept loses here.
	inv, err = s.store.TakeChatInvitation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("consuming chat invitation: %w", err)
	}

	if !s.rooms.Exists(inv.RoomID) {
		s.logger.Info("chat invitation accepted for closed room", "invitation_id", id, "room_id", inv.RoomID)
		return inv, ErrRoomGone
	}
	s.rooms.JoinRoom(username, inv.RoomID)

	s.logger.Info("chat invitation accepted", "invitation_id", id, "username", username, "room_id", inv.RoomID)
	return inv, nil
}

// Reject deletes the invitation. Returns false when it did not exist.
func (s *Service) Reject(ctx context.Context, id int64, username string) (bool, error) {
	inv, err := s.store.GetChatInvitation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading chat invitation: %w", err)
	}
	if inv.Receiver != username {
		return false, ErrNotInvitee
	}

	ok, err := s.store.DeleteChatInvitation(ctx, id)
	if err != nil {
		return false, fmt.Errorf("deleting chat invitation: %w", err)
	}
	if ok {
		s.logger.Info("chat invitation rejected", "invitation_id", id, "username", username)
	}
	return ok, nil
}

// List returns the invitations pending for username, oldest first.
func (s *Service) List(ctx context.Context, username string) ([]*store.ChatInvitation, error) {
	invs, err := s.store.ListChatInvitations(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("listing chat invitations: %w", err)
	}
	return invs, nil
}
