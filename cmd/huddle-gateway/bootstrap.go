// ABOUTME: First-run setup commands: interactive init and one-shot bootstrap
// ABOUTME: Bootstrap writes a config with a random secret and creates the first staff account

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"github.com/2389/huddle-gateway/internal/auth"
	"github.com/2389/huddle-gateway/internal/config"
	"github.com/2389/huddle-gateway/internal/gateway"
	"github.com/2389/huddle-gateway/internal/store"
)

type bootstrapArgs struct {
	username string
	password string
}

// parseBootstrapArgs accepts "--flag value" and "--flag=value" forms.
func parseBootstrapArgs(args []string) (bootstrapArgs, error) {
	var out bootstrapArgs
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, value, hasValue := strings.Cut(arg, "=")

		var dst *string
		switch name {
		case "--username", "-u":
			dst = &out.username
		case "--password", "-p":
			dst = &out.password
		default:
			if strings.HasPrefix(arg, "-") {
				return out, fmt.Errorf("unknown flag: %s", arg)
			}
			return out, fmt.Errorf("unexpected argument: %s", arg)
		}

		if !hasValue {
			if i+1 >= len(args) {
				return out, fmt.Errorf("%s requires a value", name)
			}
			value = args[i+1]
			i++
		}
		*dst = value
	}

	out.username = strings.TrimSpace(out.username)
	if out.username == "" {
		return out, errors.New("--username flag is required")
	}
	return out, nil
}

func randomSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func defaultConfigYAML(grpcAddr, httpAddr, dbPath, secret string) string {
	return fmt.Sprintf(`# huddle-gateway configuration

server:
  grpc_addr: %q
  http_addr: %q

database:
  driver: "sqlite"
  path: %q

auth:
  jwt_secret: %q
  session_ttl: "24h"

presence:
  heartbeat_timeout: "90s"
  sweep_interval: "30s"

rooms:
  reuse: "receiver"

relay:
  conversation_keys: "stable"

limits:
  events_per_second: 20
  burst: 40
  handler_timeout: "10s"
  replay_window: "2m"

logging:
  level: "info"
  format: "text"

metrics:
  enabled: false
  path: "/metrics"
`, grpcAddr, httpAddr, dbPath, secret)
}

// runBootstrap creates the config (if missing), the database and the first
// staff account, then saves a session token for huddle-admin.
func runBootstrap(ctx context.Context, argv []string) error {
	args, err := parseBootstrapArgs(argv)
	if err != nil {
		return err
	}

	configPath := getConfigPath()
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		secret, err := randomSecret(32)
		if err != nil {
			return fmt.Errorf("generating JWT secret: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
		dbPath := filepath.Join(getDataPath(), "huddle.db")
		content := defaultConfigYAML("localhost:50051", "localhost:8080", dbPath, secret)
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
		green.Printf("  ✓ Created config: %s\n", configPath)
	} else {
		cyan.Printf("  Using existing config: %s\n", configPath)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	s, err := store.NewSQLiteStoreWithDriver(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()
	green.Printf("  ✓ Database: %s\n", cfg.Database.Path)

	authSvc, err := gateway.NewAuthService(cfg, s, slog.New(slog.DiscardHandler))
	if err != nil {
		return err
	}

	password := args.password
	generated := password == ""
	if generated {
		if password, err = randomSecret(12); err != nil {
			return fmt.Errorf("generating password: %w", err)
		}
	}

	if _, err := authSvc.Register(ctx, args.username, password, store.RoleStaff); err != nil {
		if errors.Is(err, auth.ErrUsernameTaken) {
			return fmt.Errorf("bootstrap already complete: user %q exists", args.username)
		}
		return fmt.Errorf("creating staff account: %w", err)
	}
	green.Printf("  ✓ Created staff account: %s\n", args.username)

	token, expiresAt, err := authSvc.IssueToken(args.username)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}
	tokenPath := filepath.Join(filepath.Dir(configPath), "token")
	if err := os.WriteFile(tokenPath, []byte(token), 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	green.Printf("  ✓ Saved token: %s\n", tokenPath)

	fmt.Println()
	green.Println("  Bootstrap complete!")
	fmt.Println()
	cyan.Println("  Staff Account")
	cyan.Println("  -------------")
	fmt.Printf("  Username: %s\n", args.username)
	if generated {
		fmt.Printf("  Password: %s\n", password)
		yellow.Println("  (generated; change it with POST /api/password)")
	}
	fmt.Printf("  Token:    %s (expires %s)\n", tokenPath, expiresAt.Format("Jan 02, 2006 15:04"))
	fmt.Println()

	yellow.Println("  Ready to go:")
	fmt.Println("    huddle-gateway serve    # start the gateway")
	fmt.Println("    huddle-admin stats      # check it answers")
	fmt.Println()

	return nil
}

// runInit prompts for the main settings and writes a config file.
func runInit(in io.Reader) error {
	reader := bufio.NewReader(in)

	fmt.Println("huddle-gateway configuration setup")
	fmt.Println("==================================")
	fmt.Println()

	outputFile := prompt(reader, "Config file path", getConfigPath())
	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, "File exists. Overwrite?", "no")) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server ---")
	grpcAddr := prompt(reader, "gRPC address", "localhost:50051")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")

	fmt.Println("\n--- Database ---")
	dbPath := prompt(reader, "SQLite database path", filepath.Join(getDataPath(), "huddle.db"))

	secret, err := randomSecret(32)
	if err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}
	content := defaultConfigYAML(grpcAddr, httpAddr, dbPath, secret)

	fmt.Println("\n--- Tailscale ---")
	if yes(prompt(reader, "Enable Tailscale?", "no")) {
		hostname := prompt(reader, "Tailscale hostname", "huddle-gateway")
		funnel := yes(prompt(reader, "Enable Funnel (public HTTPS)?", "no"))
		content += fmt.Sprintf("\ntailscale:\n  enabled: true\n  hostname: %q\n  funnel: %t\n", hostname, funnel)
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nNext:")
	fmt.Println("  huddle-gateway bootstrap --username <staff-name>")
	fmt.Println("  huddle-gateway serve")
	return nil
}

func yes(s string) bool {
	s = strings.ToLower(s)
	return s == "y" || s == "yes"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}
