// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, .env files, env var expansion, defaults and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, "gateway.yaml", `
server:
  grpc_addr: "0.0.0.0:50052"
  http_addr: "0.0.0.0:8080"

database:
  driver: "sqlite3"
  path: "./test.db"

auth:
  jwt_secret: "`+testSecret+`"
  session_ttl: "2h"
  pbkdf2_iterations: 1000

presence:
  heartbeat_timeout: "60s"
  sweep_interval: "15s"

rooms:
  reuse: "pair"

relay:
  conversation_keys: "credential"

limits:
  events_per_second: 5
  burst: 10
  handler_timeout: "3s"
  replay_window: "30s"

cors:
  allowed_origins:
    - "https://chat.example.com"

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
  path: "/internal/metrics"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.GRPCAddr != "0.0.0.0:50052" {
		t.Errorf("Server.GRPCAddr = %q, want %q", cfg.Server.GRPCAddr, "0.0.0.0:50052")
	}
	if cfg.Database.Driver != DriverCgo {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, DriverCgo)
	}
	if cfg.Auth.SessionTTL != 2*time.Hour {
		t.Errorf("Auth.SessionTTL = %v, want %v", cfg.Auth.SessionTTL, 2*time.Hour)
	}
	if cfg.Auth.PBKDF2Iterations != 1000 {
		t.Errorf("Auth.PBKDF2Iterations = %d, want 1000", cfg.Auth.PBKDF2Iterations)
	}
	if cfg.Presence.HeartbeatTimeout != 60*time.Second {
		t.Errorf("Presence.HeartbeatTimeout = %v, want %v", cfg.Presence.HeartbeatTimeout, 60*time.Second)
	}
	if cfg.Presence.SweepInterval != 15*time.Second {
		t.Errorf("Presence.SweepInterval = %v, want %v", cfg.Presence.SweepInterval, 15*time.Second)
	}
	if cfg.Rooms.Reuse != ReusePair {
		t.Errorf("Rooms.Reuse = %q, want %q", cfg.Rooms.Reuse, ReusePair)
	}
	if cfg.Relay.ConversationKeys != KeysCredential {
		t.Errorf("Relay.ConversationKeys = %q, want %q", cfg.Relay.ConversationKeys, KeysCredential)
	}
	if cfg.Limits.HandlerTimeout != 3*time.Second {
		t.Errorf("Limits.HandlerTimeout = %v, want %v", cfg.Limits.HandlerTimeout, 3*time.Second)
	}
	if cfg.Limits.ReplayWindow != 30*time.Second {
		t.Errorf("Limits.ReplayWindow = %v, want %v", cfg.Limits.ReplayWindow, 30*time.Second)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 {
		t.Errorf("CORS.AllowedOrigins len = %d, want 1", len(cfg.CORS.AllowedOrigins))
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
	if cfg.Metrics.Path != "/internal/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/internal/metrics")
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, "gateway.yaml", `
server:
  grpc_addr: "localhost:50052"
  http_addr: "localhost:8080"
database:
  path: ":memory:"
auth:
  jwt_secret: "`+testSecret+`"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Driver != DriverModernc {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, DriverModernc)
	}
	if cfg.Auth.PBKDF2Iterations != 100000 {
		t.Errorf("Auth.PBKDF2Iterations = %d, want 100000", cfg.Auth.PBKDF2Iterations)
	}
	if cfg.Rooms.Reuse != ReuseReceiver {
		t.Errorf("Rooms.Reuse = %q, want %q", cfg.Rooms.Reuse, ReuseReceiver)
	}
	if cfg.Relay.ConversationKeys != KeysStable {
		t.Errorf("Relay.ConversationKeys = %q, want %q", cfg.Relay.ConversationKeys, KeysStable)
	}
	if cfg.Presence.HeartbeatTimeout != 90*time.Second {
		t.Errorf("Presence.HeartbeatTimeout = %v, want %v", cfg.Presence.HeartbeatTimeout, 90*time.Second)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "gateway.toml", `
[server]
grpc_addr = "localhost:50052"
http_addr = "localhost:8080"

[database]
path = "huddle.db"

[auth]
jwt_secret = "`+testSecret+`"

[presence]
heartbeat_timeout = "2m"

[relay]
conversation_keys = "credential"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPAddr != "localhost:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "localhost:8080")
	}
	if cfg.Presence.HeartbeatTimeout != 2*time.Minute {
		t.Errorf("Presence.HeartbeatTimeout = %v, want %v", cfg.Presence.HeartbeatTimeout, 2*time.Minute)
	}
	if cfg.Relay.ConversationKeys != KeysCredential {
		t.Errorf("Relay.ConversationKeys = %q, want %q", cfg.Relay.ConversationKeys, KeysCredential)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_HUDDLE_SECRET", testSecret)
	t.Setenv("TEST_HUDDLE_DB", "/tmp/from-env.db")

	configPath := writeConfig(t, "gateway.yaml", `
server:
  grpc_addr: "localhost:50052"
  http_addr: "localhost:8080"
database:
  path: "${TEST_HUDDLE_DB}"
auth:
  jwt_secret: "${TEST_HUDDLE_SECRET}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.JWTSecret != testSecret {
		t.Errorf("Auth.JWTSecret = %q, want expanded secret", cfg.Auth.JWTSecret)
	}
	if cfg.Database.Path != "/tmp/from-env.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/from-env.db")
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	const key = "TEST_HUDDLE_DOTENV_SECRET"
	t.Cleanup(func() { os.Unsetenv(key) })

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(key+"="+testSecret+"\n"), 0600); err != nil {
		t.Fatalf("writing .env: %v", err)
	}
	configPath := filepath.Join(dir, "gateway.yaml")
	content := `
server:
  grpc_addr: "localhost:50052"
  http_addr: "localhost:8080"
database:
  path: "huddle.db"
auth:
  jwt_secret: "${` + key + `}"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.JWTSecret != testSecret {
		t.Errorf("Auth.JWTSecret = %q, want value from .env", cfg.Auth.JWTSecret)
	}
}

func TestLoad_DBPathOverride(t *testing.T) {
	t.Setenv("HUDDLE_DB_PATH", ":memory:")

	configPath := writeConfig(t, "gateway.yaml", `
server:
  grpc_addr: "localhost:50052"
  http_addr: "localhost:8080"
database:
  path: "ignored.db"
auth:
  jwt_secret: "`+testSecret+`"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != ":memory:" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, ":memory:")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
	if !strings.Contains(err.Error(), "reading config file") {
		t.Errorf("error = %v, want reading config file", err)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, "gateway.yaml", `
server:
  grpc_addr: "localhost:50052"
  http_addr: "localhost:8080"
database:
  path: "huddle.db"
auth:
  jwt_secret: "`+testSecret+`"
presence:
  heartbeat_timeout: "soon"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "presence.heartbeat_timeout") {
		t.Errorf("error = %v, want mention of presence.heartbeat_timeout", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := &Config{
			Server:   ServerConfig{GRPCAddr: "localhost:50052", HTTPAddr: "localhost:8080"},
			Database: DatabaseConfig{Path: "huddle.db"},
			Auth:     AuthConfig{JWTSecret: testSecret},
		}
		c.applyDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing grpc addr", func(c *Config) { c.Server.GRPCAddr = "" }, "server.grpc_addr"},
		{"missing http addr", func(c *Config) { c.Server.HTTPAddr = "" }, "server.http_addr"},
		{"tailscale without addrs", func(c *Config) {
			c.Server = ServerConfig{}
			c.Tailscale = TailscaleConfig{Enabled: true, Hostname: "huddle"}
		}, ""},
		{"tailscale without hostname", func(c *Config) { c.Tailscale.Enabled = true }, "tailscale.hostname"},
		{"missing db path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "postgres" }, "database.driver"},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "jwt_secret"},
		{"bad reuse", func(c *Config) { c.Rooms.Reuse = "any" }, "rooms.reuse"},
		{"bad keys", func(c *Config) { c.Relay.ConversationKeys = "hash" }, "relay.conversation_keys"},
		{"sweep longer than timeout", func(c *Config) {
			c.Presence.SweepInterval = 2 * time.Minute
			c.Presence.HeartbeatTimeout = time.Minute
		}, "sweep_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
