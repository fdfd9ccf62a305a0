// Package gateway orchestrates the huddle-gateway server components.
//
// # Overview
//
// The Gateway owns the SQLite store, the auth service, the websocket hub,
// the chat engine and its dispatcher, plus the admin gRPC server. New wires
// them together; Run serves until the context is canceled.
//
// # HTTP API
//
//   - POST /api/signup - Create a student account
//   - POST /api/login - Exchange credentials for a session token
//   - GET /api/me - Profile of the authenticated user
//   - POST /api/password - Change the caller's password
//   - GET /ws - Chat websocket (token via Authorization or ?token=)
//   - GET /health - Liveness check
//   - GET /health/ready - Readiness check (database ping)
//   - GET /metrics - Prometheus metrics, when enabled
//
// # gRPC
//
// The admin service (see package admin) and the standard gRPC health
// service share one server. Every admin call requires a staff token.
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	go gw.Run(ctx)
//	...
//	cancel() // Run shuts everything down before returning
//
// With tailscale.enabled the listeners come from a tsnet node instead of
// the configured addresses.
package gateway
