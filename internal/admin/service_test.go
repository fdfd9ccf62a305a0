// ABOUTME: Tests for the admin gRPC service over an in-memory bufconn listener
// ABOUTME: Covers staff gating, stats, listings and mute round trips

package admin

import (
	"context"
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/2389/huddle-gateway/internal/auth"
	"github.com/2389/huddle-gateway/internal/rooms"
	"github.com/2389/huddle-gateway/internal/store"
)

type fakeEngine struct {
	online []string
	rooms  []rooms.Room
}

func (f *fakeEngine) Online() []string    { return f.online }
func (f *fakeEngine) Rooms() []rooms.Room { return f.rooms }
func (f *fakeEngine) RoomStats() rooms.Stats {
	assigned := 0
	for _, r := range f.rooms {
		assigned += len(r.Members)
	}
	return rooms.Stats{Rooms: len(f.rooms), AssignedUsers: assigned}
}

type testServer struct {
	conn  *grpc.ClientConn
	auth  *auth.Service
	store *store.MockStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.Default()
	st := store.NewMockStore()

	verifier, err := auth.NewJWTVerifier([]byte("admin-rpc-test-secret-0123456789ab"))
	require.NoError(t, err)
	authSvc := auth.NewService(st, verifier, auth.Options{Iterations: 1000}, logger)
	_, err = authSvc.Register(t.Context(), "sam", "pw", store.RoleStaff)
	require.NoError(t, err)
	_, err = authSvc.Register(t.Context(), "alice", "pw", store.RoleStudent)
	require.NoError(t, err)

	engine := &fakeEngine{
		online: []string{"alice", "sam"},
		rooms:  []rooms.Room{{ID: 1, Members: []string{"alice", "bob"}}},
	}

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		auth.UnaryInterceptor(authSvc, logger),
		auth.RequireStaff(ServicePrefix),
	))
	RegisterAdminServer(srv, NewAdminService(engine, authSvc, st, logger))
	healthpb.RegisterHealthServer(srv, health.NewServer())
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &testServer{conn: conn, auth: authSvc, store: st}
}

func (s *testServer) client(t *testing.T, username string) *Client {
	t.Helper()
	if username == "" {
		return NewClient(s.conn, "")
	}
	token, _, err := s.auth.IssueToken(username)
	require.NoError(t, err)
	return NewClient(s.conn, token)
}

func TestAdmin_RequiresStaff(t *testing.T) {
	s := newTestServer(t)
	ctx := t.Context()

	_, err := s.client(t, "").GetStats(ctx)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = NewClient(s.conn, "not-a-jwt").GetStats(ctx)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = s.client(t, "alice").GetStats(ctx)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	err = s.client(t, "alice").MuteUser(ctx, "sam")
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestAdmin_HealthWithoutToken(t *testing.T) {
	s := newTestServer(t)

	resp, err := healthpb.NewHealthClient(s.conn).Check(t.Context(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestAdmin_GetStats(t *testing.T) {
	s := newTestServer(t)

	stats, err := s.client(t, "sam").GetStats(t.Context())
	require.NoError(t, err)

	got := stats.AsMap()
	assert.Equal(t, float64(2), got["online"])
	assert.Equal(t, float64(1), got["rooms"])
	assert.Equal(t, float64(2), got["assigned_users"])
	assert.Equal(t, float64(2), got["users"])
	assert.Equal(t, float64(0), got["messages"])
}

func TestAdmin_Listings(t *testing.T) {
	s := newTestServer(t)
	c := s.client(t, "sam")

	online, err := c.ListOnline(t.Context())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"users": []any{"alice", "sam"}}, online.AsMap())

	list, err := c.ListRooms(t.Context())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"rooms": []any{map[string]any{"id": float64(1), "members": []any{"alice", "bob"}}},
	}, list.AsMap())
}

func TestAdmin_MuteRoundTrip(t *testing.T) {
	s := newTestServer(t)
	ctx := t.Context()
	c := s.client(t, "sam")

	require.NoError(t, c.MuteUser(ctx, "alice"))
	u, err := s.auth.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, u.Muted)

	require.NoError(t, c.UnmuteUser(ctx, "alice"))
	u, err = s.auth.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, u.Muted)
}

func TestAdmin_MuteErrors(t *testing.T) {
	s := newTestServer(t)
	c := s.client(t, "sam")

	err := c.MuteUser(t.Context(), "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	err = c.MuteUser(t.Context(), "nobody")
	assert.Equal(t, codes.NotFound, status.Code(err))
}
