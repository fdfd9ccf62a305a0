// ABOUTME: Configuration loading and parsing for huddle-gateway
// ABOUTME: Supports YAML or TOML files with .env loading, env var expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Room reuse policies for the join protocol.
const (
	ReuseReceiver = "receiver"
	ReusePair     = "pair"
)

// Conversation key strategies for the message relay.
const (
	KeysStable     = "stable"
	KeysCredential = "credential"
)

// Database drivers.
const (
	DriverModernc = "sqlite"
	DriverCgo     = "sqlite3"
)

// Config represents the complete huddle-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Presence  PresenceConfig  `yaml:"presence" toml:"presence"`
	Rooms     RoomsConfig     `yaml:"rooms" toml:"rooms"`
	Relay     RelayConfig     `yaml:"relay" toml:"relay"`
	Limits    LimitsConfig    `yaml:"limits" toml:"limits"`
	CORS      CORSConfig      `yaml:"cors" toml:"cors"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	GRPCAddr string `yaml:"grpc_addr" toml:"grpc_addr"`
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	HTTPS     bool   `yaml:"https" toml:"https"`
	Funnel    bool   `yaml:"funnel" toml:"funnel"` // public Funnel, implies HTTPS
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	Path   string `yaml:"path" toml:"path"`
}

// AuthConfig holds session and credential configuration
type AuthConfig struct {
	JWTSecret        string        `yaml:"jwt_secret" toml:"jwt_secret"`
	PBKDF2Iterations int           `yaml:"pbkdf2_iterations" toml:"pbkdf2_iterations"`
	SessionTTL       time.Duration `yaml:"-" toml:"-"`

	SessionTTLRaw string `yaml:"session_ttl" toml:"session_ttl"`
}

// PresenceConfig holds heartbeat timing for the presence registry
type PresenceConfig struct {
	HeartbeatTimeout time.Duration `yaml:"-" toml:"-"`
	SweepInterval    time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	HeartbeatTimeoutRaw string `yaml:"heartbeat_timeout" toml:"heartbeat_timeout"`
	SweepIntervalRaw    string `yaml:"sweep_interval" toml:"sweep_interval"`
}

// RoomsConfig selects how a join finds an existing room
type RoomsConfig struct {
	Reuse string `yaml:"reuse" toml:"reuse"`
}

// RelayConfig selects how conversation keys are derived
type RelayConfig struct {
	ConversationKeys string `yaml:"conversation_keys" toml:"conversation_keys"`
}

// LimitsConfig bounds per-connection inbound traffic
type LimitsConfig struct {
	EventsPerSecond float64       `yaml:"events_per_second" toml:"events_per_second"`
	Burst           int           `yaml:"burst" toml:"burst"`
	MaxFrameBytes   int64         `yaml:"max_frame_bytes" toml:"max_frame_bytes"`
	HandlerTimeout  time.Duration `yaml:"-" toml:"-"`
	// ReplayWindow is how long an acked event id is remembered per user.
	ReplayWindow    time.Duration `yaml:"-" toml:"-"`

	HandlerTimeoutRaw string `yaml:"handler_timeout" toml:"handler_timeout"`
	ReplayWindowRaw   string `yaml:"replay_window" toml:"replay_window"`
}

// CORSConfig holds browser origin rules for the HTTP API
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// A .env file beside the config (and HUDDLE_ENV_FILE, if set) is loaded first
// without overriding variables already present in the environment.
// Environment variables in the format ${VAR_NAME} are expanded.
// Files ending in .toml are decoded as TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(path); err != nil {
		return nil, fmt.Errorf("loading env file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if envPath := os.Getenv("HUDDLE_DB_PATH"); envPath != "" {
		cfg.Database.Path = envPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv loads optional .env files. Missing files are not an error.
func loadDotEnv(configPath string) error {
	candidates := []string{filepath.Join(filepath.Dir(configPath), ".env")}
	if extra := os.Getenv("HUDDLE_ENV_FILE"); extra != "" {
		candidates = append(candidates, extra)
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in zero values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = DriverModernc
	}
	if c.Auth.PBKDF2Iterations == 0 {
		c.Auth.PBKDF2Iterations = 100000
	}
	if c.Auth.SessionTTL == 0 {
		c.Auth.SessionTTL = 24 * time.Hour
	}
	if c.Presence.HeartbeatTimeout == 0 {
		c.Presence.HeartbeatTimeout = 90 * time.Second
	}
	if c.Presence.SweepInterval == 0 {
		c.Presence.SweepInterval = 30 * time.Second
	}
	if c.Rooms.Reuse == "" {
		c.Rooms.Reuse = ReuseReceiver
	}
	if c.Relay.ConversationKeys == "" {
		c.Relay.ConversationKeys = KeysStable
	}
	if c.Limits.EventsPerSecond == 0 {
		c.Limits.EventsPerSecond = 20
	}
	if c.Limits.Burst == 0 {
		c.Limits.Burst = 40
	}
	if c.Limits.MaxFrameBytes == 0 {
		c.Limits.MaxFrameBytes = 1 << 20
	}
	if c.Limits.HandlerTimeout == 0 {
		c.Limits.HandlerTimeout = 10 * time.Second
	}
	if c.Limits.ReplayWindow == 0 {
		c.Limits.ReplayWindow = 2 * time.Minute
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// Server addresses are required unless Tailscale is enabled
	if !c.Tailscale.Enabled {
		if c.Server.GRPCAddr == "" {
			return fmt.Errorf("server.grpc_addr is required (or enable tailscale)")
		}
		if c.Server.HTTPAddr == "" {
			return fmt.Errorf("server.http_addr is required (or enable tailscale)")
		}
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	switch c.Database.Driver {
	case DriverModernc, DriverCgo:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverModernc, DriverCgo, c.Database.Driver)
	}

	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 bytes")
	}

	switch c.Rooms.Reuse {
	case ReuseReceiver, ReusePair:
	default:
		return fmt.Errorf("rooms.reuse must be %q or %q, got %q", ReuseReceiver, ReusePair, c.Rooms.Reuse)
	}

	switch c.Relay.ConversationKeys {
	case KeysStable, KeysCredential:
	default:
		return fmt.Errorf("relay.conversation_keys must be %q or %q, got %q", KeysStable, KeysCredential, c.Relay.ConversationKeys)
	}

	if c.Presence.SweepInterval > c.Presence.HeartbeatTimeout {
		return fmt.Errorf("presence.sweep_interval (%s) must not exceed presence.heartbeat_timeout (%s)",
			c.Presence.SweepInterval, c.Presence.HeartbeatTimeout)
	}

	if c.Limits.EventsPerSecond < 0 || c.Limits.Burst < 0 {
		return fmt.Errorf("limits must not be negative")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"auth.session_ttl", cfg.Auth.SessionTTLRaw, &cfg.Auth.SessionTTL},
		{"presence.heartbeat_timeout", cfg.Presence.HeartbeatTimeoutRaw, &cfg.Presence.HeartbeatTimeout},
		{"presence.sweep_interval", cfg.Presence.SweepIntervalRaw, &cfg.Presence.SweepInterval},
		{"limits.handler_timeout", cfg.Limits.HandlerTimeoutRaw, &cfg.Limits.HandlerTimeout},
		{"limits.replay_window", cfg.Limits.ReplayWindowRaw, &cfg.Limits.ReplayWindow},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
