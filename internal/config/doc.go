// Package config handles configuration loading for huddle-gateway.
//
// # Configuration File
//
// The server binary reads the path from HUDDLE_CONFIG, falling back to
// ~/.config/huddle/gateway.yaml. Files ending in .toml are parsed as TOML;
// anything else is parsed as YAML.
//
// # Environment
//
// A .env file next to the config file is loaded before parsing, followed by
// HUDDLE_ENV_FILE when set. Variables already in the environment win.
// Values can then reference the environment:
//
//	auth:
//	  jwt_secret: "${HUDDLE_JWT_SECRET}"
//
// HUDDLE_DB_PATH overrides database.path after parsing.
//
// # Configuration Sections
//
//	server:
//	  grpc_addr: "localhost:50052"   # admin API
//	  http_addr: "localhost:8080"    # websocket, signup/login, health
//
//	database:
//	  driver: "sqlite"               # sqlite (pure Go) or sqlite3 (cgo)
//	  path: "/var/lib/huddle/huddle.db"
//
//	auth:
//	  jwt_secret: "${HUDDLE_JWT_SECRET}"
//	  session_ttl: "24h"
//	  pbkdf2_iterations: 100000
//
//	presence:
//	  heartbeat_timeout: "90s"
//	  sweep_interval: "30s"
//
//	rooms:
//	  reuse: "receiver"              # receiver or pair
//
//	relay:
//	  conversation_keys: "stable"    # stable or credential
//
//	limits:
//	  events_per_second: 20
//	  burst: 40
//	  handler_timeout: "10s"
//
//	logging:
//	  level: "info"                  # debug, info, warn, error
//	  format: "text"                 # text, json
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
package config
