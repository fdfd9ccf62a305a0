// ABOUTME: AdminService gRPC handlers for gateway stats and user moderation
// ABOUTME: Reports presence, rooms and row counts; mutes and unmutes users

package admin

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/2389/huddle-gateway/internal/auth"
	"github.com/2389/huddle-gateway/internal/rooms"
	"github.com/2389/huddle-gateway/internal/store"
)

// Engine is the live state the admin API reports on.
type Engine interface {
	Online() []string
	Rooms() []rooms.Room
	RoomStats() rooms.Stats
}

// Moderator changes a user's mute flag.
type Moderator interface {
	SetMuted(ctx context.Context, username string, muted bool) error
}

// StatsStore reports persisted row counts.
type StatsStore interface {
	Stats(ctx context.Context) (*store.Stats, error)
}

// AdminService implements AdminServer.
type AdminService struct {
	engine Engine
	users  Moderator
	store  StatsStore
	logger *slog.Logger
}

// NewAdminService creates the admin service.
func NewAdminService(engine Engine, users Moderator, st StatsStore, logger *slog.Logger) *AdminService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminService{
		engine: engine,
		users:  users,
		store:  st,
		logger: logger.With("component", "admin"),
	}
}

// GetStats returns live and persisted counts.
func (s *AdminService) GetStats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	counts, err := s.store.Stats(ctx)
	if err != nil {
		s.logger.Error("loading stats", "error", err)
		return nil, status.Error(codes.Internal, "failed to load stats")
	}
	rs := s.engine.RoomStats()

	return newStruct(map[string]any{
		"online":          len(s.engine.Online()),
		"rooms":           rs.Rooms,
		"assigned_users":  rs.AssignedUsers,
		"users":           counts.Users,
		"friendships":     counts.Friendships,
		"friend_requests": counts.FriendRequests,
		"invitations":     counts.Invitations,
		"messages":        counts.Messages,
	})
}

// ListOnline returns the online usernames.
func (s *AdminService) ListOnline(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return newStruct(map[string]any{"users": anyList(s.engine.Online())})
}

// ListRooms returns every live room with its members.
func (s *AdminService) ListRooms(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	list := make([]any, 0)
	for _, r := range s.engine.Rooms() {
		list = append(list, map[string]any{"id": r.ID, "members": anyList(r.Members)})
	}
	return newStruct(map[string]any{"rooms": list})
}

// MuteUser stops the user from sending messages.
func (s *AdminService) MuteUser(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	return s.setMuted(ctx, req.GetValue(), true)
}

// UnmuteUser lifts a mute.
func (s *AdminService) UnmuteUser(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	return s.setMuted(ctx, req.GetValue(), false)
}

func (s *AdminService) setMuted(ctx context.Context, username string, muted bool) (*emptypb.Empty, error) {
	if username == "" {
		return nil, status.Error(codes.InvalidArgument, "username required")
	}

	err := s.users.SetMuted(ctx, username, muted)
	if errors.Is(err, auth.ErrUnknownUser) {
		return nil, status.Errorf(codes.NotFound, "user %q not found", username)
	}
	if err != nil {
		s.logger.Error("setting mute flag", "username", username, "error", err)
		return nil, status.Error(codes.Internal, "failed to update user")
	}

	actor := ""
	if a := auth.FromContext(ctx); a != nil {
		actor = a.Username
	}
	s.logger.Info("mute flag changed", "actor", actor, "username", username, "muted", muted)
	return &emptypb.Empty{}, nil
}

func anyList(list []string) []any {
	out := make([]any, len(list))
	for i, v := range list {
		out[i] = v
	}
	return out
}

func newStruct(fields map[string]any) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	return st, nil
}
