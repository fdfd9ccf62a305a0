// Package auth provides identities for huddle-gateway.
//
// # Credentials
//
// Passwords are hashed with PBKDF2-SHA256 (100000 iterations by default)
// using a random per-user salt. Hash and salt are stored hex encoded.
// No complexity policy is enforced beyond a non-empty password.
//
// # Sessions
//
// Login returns an HS256 JWT whose "sub" claim is the username. The same
// token authenticates:
//
//   - the websocket upgrade (Authorization header or ?token= query)
//   - HTTP API calls via HTTPAuthMiddleware
//   - gRPC admin calls via UnaryInterceptor, with RequireStaff gating the
//     admin service to users with the staff role
//
// # Lookup
//
// The chat engine resolves users through Service.GetUser, which returns
// ErrUnknownUser for missing accounts.
package auth
