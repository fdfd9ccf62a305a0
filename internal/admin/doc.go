// Package admin implements the gRPC admin API, huddle.admin.v1.AdminService.
//
// The service is described by hand in desc.go. Its requests and responses are
// protobuf well-known types, so no .proto compilation step is involved:
//
//   - GetStats, ListOnline, ListRooms take google.protobuf.Empty and return a
//     google.protobuf.Struct.
//   - MuteUser and UnmuteUser take a google.protobuf.StringValue username.
//
// Callers authenticate with a session JWT in the "authorization" metadata
// entry and must have the staff role. The gateway enforces this with
// auth.UnaryInterceptor and auth.RequireStaff(ServicePrefix).
//
// Client wraps a connection for the huddle-admin CLI.
package admin
