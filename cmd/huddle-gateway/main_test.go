// ABOUTME: Tests for the gateway CLI helpers
// ABOUTME: Covers bootstrap argument parsing, generated config, bootstrap runs and log output

package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/huddle-gateway/internal/config"
	"github.com/2389/huddle-gateway/internal/store"
)

func TestParseBootstrapArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    bootstrapArgs
		wantErr string
	}{
		{"separate value", []string{"--username", "sam"}, bootstrapArgs{username: "sam"}, ""},
		{"equals form", []string{"--username=sam", "-p=secret"}, bootstrapArgs{username: "sam", password: "secret"}, ""},
		{"short flags", []string{"-u", "sam", "-p", "pw"}, bootstrapArgs{username: "sam", password: "pw"}, ""},
		{"missing username", []string{"--password", "pw"}, bootstrapArgs{}, "--username flag is required"},
		{"whitespace username", []string{"--username", "  "}, bootstrapArgs{}, "--username flag is required"},
		{"dangling flag", []string{"--username"}, bootstrapArgs{}, "--username requires a value"},
		{"unknown flag", []string{"--name", "sam"}, bootstrapArgs{}, "unknown flag: --name"},
		{"positional", []string{"sam"}, bootstrapArgs{}, "unexpected argument: sam"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBootstrapArgs(tt.args)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultConfigYAML_Loads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	content := defaultConfigYAML("localhost:50051", "localhost:8080", filepath.Join(dir, "huddle.db"), "0123456789abcdef0123456789abcdef")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.ReuseReceiver, cfg.Rooms.Reuse)
	assert.Equal(t, config.KeysStable, cfg.Relay.ConversationKeys)
	assert.Equal(t, config.DriverModernc, cfg.Database.Driver)
}

func TestRunBootstrap(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config", "gateway.yaml")
	t.Setenv("HUDDLE_CONFIG", configPath)
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))

	require.NoError(t, runBootstrap(t.Context(), []string{"--username", "sam", "--password", "pw"}))

	token, err := os.ReadFile(filepath.Join(dir, "config", "token"))
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	cfg, err := config.Load(configPath)
	require.NoError(t, err)
	s, err := store.NewSQLiteStoreWithDriver(cfg.Database.Driver, cfg.Database.Path)
	require.NoError(t, err)
	user, err := s.GetUser(t.Context(), "sam")
	require.NoError(t, err)
	assert.Equal(t, store.RoleStaff, user.Role)
	require.NoError(t, s.Close())

	err = runBootstrap(t.Context(), []string{"--username", "sam"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bootstrap already complete")
}

func TestColorHandler(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	var buf bytes.Buffer
	logger := slog.New(newColorHandler(&buf, slog.LevelInfo)).With("component", "hub")

	logger.Debug("hidden")
	logger.WithGroup("req").Info("served", "status", 200)
	logger.Error("failed", "error", "boom")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INF served component=hub req.status=200")
	assert.Contains(t, out, "ERR failed component=hub error=boom")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}
