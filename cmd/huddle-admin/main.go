// ABOUTME: Admin CLI for huddle-gateway moderation and inspection
// ABOUTME: Talks to the admin gRPC service with a staff session token

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/2389/huddle-gateway/internal/admin"
)

const banner = `
 _               _     _ _                 _           _
| |__  _   _  __| | __| | | ___   __ _  __| |_ __ ___ (_)_ __
| '_ \| | | |/ _' |/ _' | |/ _ \ / _' |/ _' | '_ ' _ \| | '_ \
| | | | |_| | (_| | (_| | |  __/| (_| | (_| | | | | | | | | | |
|_| |_|\__,_|\__,_|\__,_|_|\___| \__,_|\__,_|_| |_| |_|_|_| |_|
`

const callTimeout = 10 * time.Second

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	addr := getEnv("HUDDLE_GRPC_ADDR", "localhost:50051")
	token := getToken()

	cmd := os.Args[1]
	args := os.Args[2:]

	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		return
	}

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		color.Red("Error: connecting to %s: %v\n", addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	client := admin.NewClient(conn, token)

	switch cmd {
	case "status":
		err = cmdStatus(ctx, conn, addr, token)
	case "stats":
		err = requireToken(token, func() error { return cmdStats(ctx, client, os.Stdout) })
	case "online":
		err = requireToken(token, func() error { return cmdOnline(ctx, client, os.Stdout) })
	case "rooms":
		err = requireToken(token, func() error { return cmdRooms(ctx, client, os.Stdout) })
	case "mute":
		err = requireToken(token, func() error { return cmdMute(ctx, client, args, true) })
	case "unmute":
		err = requireToken(token, func() error { return cmdMute(ctx, client, args, false) })
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: huddle-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  status              Check that the gateway answers")
	fmt.Println("  stats               Show user, room, friendship and message counts")
	fmt.Println("  online              List online users")
	fmt.Println("  rooms               List live rooms and their members")
	fmt.Println("  mute <username>     Refuse messages from a user")
	fmt.Println("  unmute <username>   Allow messages from a user again")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  HUDDLE_GRPC_ADDR    Gateway gRPC address (default: localhost:50051)")
	fmt.Println("  HUDDLE_TOKEN        Staff session token (default: read ~/.config/huddle/token)")
	fmt.Println()
}

func requireToken(token string, fn func() error) error {
	if token == "" {
		return fmt.Errorf("HUDDLE_TOKEN is required (or run huddle-gateway bootstrap)")
	}
	return fn()
}

// cmdStatus checks the gRPC health service, which needs no token.
func cmdStatus(ctx context.Context, conn grpc.ClientConnInterface, addr, token string) error {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	color.New(color.FgCyan).Print(banner)
	fmt.Println()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: admin.ServiceName})
	if err != nil {
		yellow.Printf("  Gateway:  ")
		color.Red("UNREACHABLE (%v)\n", err)
		return nil
	}
	green.Printf("  Gateway:  ")
	fmt.Printf("%s at %s\n", resp.GetStatus(), addr)

	yellow.Printf("  Token:    ")
	if token == "" {
		fmt.Println("(none - set HUDDLE_TOKEN)")
	} else {
		fmt.Println("present")
	}
	fmt.Println()
	return nil
}

func cmdStats(ctx context.Context, client *admin.Client, w io.Writer) error {
	resp, err := client.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("GetStats: %w", err)
	}
	printStats(w, resp)
	return nil
}

// printStats writes the counters sorted by name.
func printStats(w io.Writer, s *structpb.Struct) {
	fields := s.GetFields()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(tw, "  %s\t%d\n", name, int64(fields[name].GetNumberValue()))
	}
	_ = tw.Flush()
}

func cmdOnline(ctx context.Context, client *admin.Client, w io.Writer) error {
	resp, err := client.ListOnline(ctx)
	if err != nil {
		return fmt.Errorf("ListOnline: %w", err)
	}
	users := resp.GetFields()["users"].GetListValue().GetValues()
	if len(users) == 0 {
		fmt.Fprintln(w, "  (nobody online)")
		return nil
	}
	for _, u := range users {
		fmt.Fprintf(w, "  %s\n", u.GetStringValue())
	}
	return nil
}

func cmdRooms(ctx context.Context, client *admin.Client, w io.Writer) error {
	resp, err := client.ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("ListRooms: %w", err)
	}
	printRooms(w, resp)
	return nil
}

func printRooms(w io.Writer, s *structpb.Struct) {
	rooms := s.GetFields()["rooms"].GetListValue().GetValues()
	if len(rooms) == 0 {
		fmt.Fprintln(w, "  (no rooms)")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  ROOM\tMEMBERS")
	for _, r := range rooms {
		fields := r.GetStructValue().GetFields()
		var members []string
		for _, m := range fields["members"].GetListValue().GetValues() {
			members = append(members, m.GetStringValue())
		}
		fmt.Fprintf(tw, "  %d\t%s\n", int64(fields["id"].GetNumberValue()), strings.Join(members, ", "))
	}
	_ = tw.Flush()
}

func cmdMute(ctx context.Context, client *admin.Client, args []string, mute bool) error {
	if len(args) != 1 || args[0] == "" {
		return fmt.Errorf("usage: huddle-admin %s <username>", map[bool]string{true: "mute", false: "unmute"}[mute])
	}
	username := args[0]

	if mute {
		if err := client.MuteUser(ctx, username); err != nil {
			return fmt.Errorf("MuteUser: %w", err)
		}
		color.Green("  ✓ Muted %s\n", username)
		return nil
	}
	if err := client.UnmuteUser(ctx, username); err != nil {
		return fmt.Errorf("UnmuteUser: %w", err)
	}
	color.Green("  ✓ Unmuted %s\n", username)
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getToken returns HUDDLE_TOKEN or the token file written by bootstrap.
func getToken() string {
	if token := os.Getenv("HUDDLE_TOKEN"); token != "" {
		return token
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	data, err := os.ReadFile(filepath.Join(configDir, "huddle", "token"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
