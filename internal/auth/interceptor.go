// ABOUTME: gRPC interceptors authenticating admin requests with session JWTs
// ABOUTME: Populates AuthContext and gates the admin service to staff users

package auth

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// healthServicePrefix is left unauthenticated so probes work without tokens.
const healthServicePrefix = "/grpc.health.v1.Health/"

// logAuthFailure logs an authentication failure with structured context.
func logAuthFailure(logger *slog.Logger, ctx context.Context, reason string, attrs ...any) {
	if logger == nil {
		return
	}
	baseAttrs := []any{"reason", reason}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		baseAttrs = append(baseAttrs, "peer_addr", p.Addr.String())
	}
	baseAttrs = append(baseAttrs, attrs...)
	logger.Warn("auth failure", baseAttrs...)
}

// UnaryInterceptor returns a gRPC unary interceptor that authenticates requests
// from the "authorization: Bearer <jwt>" metadata entry.
func UnaryInterceptor(authn Authenticator, logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, healthServicePrefix) {
			return handler(ctx, req)
		}

		authCtx, err := extractAuth(ctx, authn)
		if err != nil {
			logAuthFailure(logger, ctx, "jwt_auth_failed", "method", info.FullMethod, "error", err.Error())
			return nil, err
		}
		return handler(WithAuth(ctx, authCtx), req)
	}
}

// RequireStaff returns a unary interceptor enforcing the staff role for
// methods under servicePrefix (e.g. "/huddle.admin.v1.AdminService/").
func RequireStaff(servicePrefix string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, servicePrefix) {
			return handler(ctx, req)
		}

		authCtx := FromContext(ctx)
		if authCtx == nil {
			return nil, status.Error(codes.Unauthenticated, "authentication required")
		}
		if !authCtx.IsStaff() {
			return nil, status.Error(codes.PermissionDenied, "staff role required")
		}
		return handler(ctx, req)
	}
}

func extractAuth(ctx context.Context, authn Authenticator) (*AuthContext, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing metadata")
	}

	values := md.Get("authorization")
	if len(values) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing authorization header")
	}

	token, errMsg := extractBearerToken(values[0])
	if errMsg != "" {
		return nil, status.Error(codes.Unauthenticated, errMsg)
	}

	user, err := authn.Authenticate(ctx, token)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
	}

	return &AuthContext{Username: user.Username, Role: user.Role}, nil
}
