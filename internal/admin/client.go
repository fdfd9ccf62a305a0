// ABOUTME: Client for the admin gRPC service used by huddle-admin
// ABOUTME: Attaches the bearer token to each call's metadata

package admin

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls AdminService over a gRPC connection.
type Client struct {
	cc    grpc.ClientConnInterface
	token string
}

// NewClient creates a client that authenticates with token.
func NewClient(cc grpc.ClientConnInterface, token string) *Client {
	return &Client{cc: cc, token: token}
}

func (c *Client) ctx(ctx context.Context) context.Context {
	if c.token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
}

func (c *Client) structCall(ctx context.Context, method string, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(c.ctx(ctx), ServicePrefix+method, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetStats fetches gateway counts.
func (c *Client) GetStats(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.structCall(ctx, "GetStats", opts)
}

// ListOnline fetches the online usernames.
func (c *Client) ListOnline(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.structCall(ctx, "ListOnline", opts)
}

// ListRooms fetches the live rooms.
func (c *Client) ListRooms(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.structCall(ctx, "ListRooms", opts)
}

// MuteUser mutes username.
func (c *Client) MuteUser(ctx context.Context, username string, opts ...grpc.CallOption) error {
	return c.cc.Invoke(c.ctx(ctx), ServicePrefix+"MuteUser", wrapperspb.String(username), &emptypb.Empty{}, opts...)
}

// UnmuteUser unmutes username.
func (c *Client) UnmuteUser(ctx context.Context, username string, opts ...grpc.CallOption) error {
	return c.cc.Invoke(c.ctx(ctx), ServicePrefix+"UnmuteUser", wrapperspb.String(username), &emptypb.Empty{}, opts...)
}
