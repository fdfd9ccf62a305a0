// ABOUTME: Friend graph service owning friend requests and friendships
// ABOUTME: Enforces one pending request per pair and transactional accept

package friends

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/2389/huddle-gateway/internal/store"
)

// Policy errors returned to callers.
var (
	ErrSelfRequest      = errors.New("cannot send a friend request to yourself")
	ErrUnknownUser      = errors.New("unknown user")
	ErrAlreadyFriends   = errors.New("already friends")
	ErrDuplicateRequest = errors.New("friend request already sent")
	ErrReverseRequest   = errors.New("this user already sent you a friend request")
)

// GraphStore defines what the service needs from storage.
type GraphStore interface {
	CreateFriendRequest(ctx context.Context, sender, receiver string) error
	AcceptFriendRequest(ctx context.Context, sender, receiver string) (bool, error)
	DeleteFriendRequest(ctx context.Context, sender, receiver string) (bool, error)
	ListIncomingRequests(ctx context.Context, username string) ([]*store.FriendRequest, error)
	ListOutgoingRequests(ctx context.Context, username string) ([]*store.FriendRequest, error)
	AreFriends(ctx context.Context, a, b string) (bool, error)
	DeleteFriendship(ctx context.Context, a, b string) error
	ListFriends(ctx context.Context, username string) ([]string, error)
}

// Service manages the friend graph.
type Service struct {
	store  GraphStore
	logger *slog.Logger
}

// New creates a friend graph service.
func New(st GraphStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		logger: logger.With("component", "friends"),
	}
}

// SendRequest records a pending request from sender to receiver.
func (s *Service) SendRequest(ctx context.Context, sender, receiver string) error {
	if sender == receiver {
		return ErrSelfRequest
	}

	err := s.store.CreateFriendRequest(ctx, sender, receiver)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		return ErrUnknownUser
	case errors.Is(err, store.ErrAlreadyFriends):
		return ErrAlreadyFriends
	case errors.Is(err, store.ErrDuplicate):
		return ErrDuplicateRequest
	case errors.Is(err, store.ErrReverseRequest):
		return ErrReverseRequest
	default:
		return fmt.Errorf("creating friend request: %w", err)
	}

	s.logger.Info("friend request sent", "sender", sender, "receiver", receiver)
	return nil
}

// AcceptRequest turns the pending sender->receiver request into a friendship.
// Returns false when no such request is pending.
func (s *Service) AcceptRequest(ctx context.Context, sender, receiver string) (bool, error) {
	ok, err := s.store.AcceptFriendRequest(ctx, sender, receiver)
	if err != nil {
		return false, fmt.Errorf("accepting friend request: %w", err)
	}
	if ok {
		s.logger.Info("friend request accepted", "sender", sender, "receiver", receiver)
	}
	return ok, nil
}

// RejectRequest removes a pending request at the receiver's initiative.
func (s *Service) RejectRequest(ctx context.Context, sender, receiver string) (bool, error) {
	ok, err := s.store.DeleteFriendRequest(ctx, sender, receiver)
	if err != nil {
		return false, fmt.Errorf("rejecting friend request: %w", err)
	}
	if ok {
		s.logger.Info("friend request rejected", "sender", sender, "receiver", receiver)
	}
	return ok, nil
}

// CancelRequest removes a pending request at the sender's initiative.
func (s *Service) CancelRequest(ctx context.Context, sender, receiver string) (bool, error) {
	ok, err := s.store.DeleteFriendRequest(ctx, sender, receiver)
	if err != nil {
		return false, fmt.Errorf("cancelling friend request: %w", err)
	}
	if ok {
		s.logger.Info("friend request cancelled", "sender", sender, "receiver", receiver)
	}
	return ok, nil
}

// AreFriends reports whether a and b are friends, in either order.
func (s *Service) AreFriends(ctx context.Context, a, b string) (bool, error) {
	ok, err := s.store.AreFriends(ctx, a, b)
	if err != nil {
		return false, fmt.Errorf("checking friendship: %w", err)
	}
	return ok, nil
}

// RemoveFriendship deletes the friendship between a and b. Idempotent.
func (s *Service) RemoveFriendship(ctx context.Context, a, b string) error {
	if err := s.store.DeleteFriendship(ctx, a, b); err != nil {
		return fmt.Errorf("removing friendship: %w", err)
	}
	s.logger.Info("friendship removed", "user1", a, "user2", b)
	return nil
}

// GetFriends returns username's friends, sorted.
func (s *Service) GetFriends(ctx context.Context, username string) ([]string, error) {
	friends, err := s.store.ListFriends(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("listing friends: %w", err)
	}
	sort.Strings(friends)
	return friends, nil
}

// IncomingRequests returns the senders of requests pending for username, sorted.
func (s *Service) IncomingRequests(ctx context.Context, username string) ([]string, error) {
	reqs, err := s.store.ListIncomingRequests(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("listing incoming requests: %w", err)
	}
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.Sender)
	}
	sort.Strings(out)
	return out, nil
}

// OutgoingRequests returns the receivers of requests username has pending, sorted.
func (s *Service) OutgoingRequests(ctx context.Context, username string) ([]string, error) {
	reqs, err := s.store.ListOutgoingRequests(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("listing outgoing requests: %w", err)
	}
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.Receiver)
	}
	sort.Strings(out)
	return out, nil
}
