// ABOUTME: Hand-written gRPC service description for huddle.admin.v1.AdminService
// ABOUTME: Messages are protobuf well-known types, so no generated code is needed

package admin

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "huddle.admin.v1.AdminService"

// ServicePrefix prefixes every admin method name, for interceptors.
const ServicePrefix = "/" + ServiceName + "/"

// AdminServer is the server side of the admin API.
type AdminServer interface {
	GetStats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListOnline(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListRooms(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	MuteUser(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	UnmuteUser(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
}

var _ AdminServer = (*AdminService)(nil)

// ServiceDesc describes AdminService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetStats", newEmpty, AdminServer.GetStats),
		unary("ListOnline", newEmpty, AdminServer.ListOnline),
		unary("ListRooms", newEmpty, AdminServer.ListRooms),
		unary("MuteUser", newString, AdminServer.MuteUser),
		unary("UnmuteUser", newString, AdminServer.UnmuteUser),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "huddle/admin/v1/admin.proto",
}

// RegisterAdminServer registers srv on s.
func RegisterAdminServer(s grpc.ServiceRegistrar, srv AdminServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func newEmpty() *emptypb.Empty { return new(emptypb.Empty) }
func newString() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }

// unary builds the method handler the protoc plugin would generate.
func unary[Req proto.Message, Resp proto.Message](
	method string,
	newReq func() Req,
	call func(AdminServer, context.Context, Req) (Resp, error),
) grpc.MethodDesc {
	fullMethod := ServicePrefix + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AdminServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AdminServer), ctx, req.(Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
