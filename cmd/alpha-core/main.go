// ABOUTME: Entry point for the alpha-core certification server
// ABOUTME: Dispatches serve, init, health, ignite, token, and secret commands

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/ahi-governance/alpha-core/internal/certify"
	"github.com/ahi-governance/alpha-core/internal/config"
	"github.com/ahi-governance/alpha-core/internal/gateway"
	"github.com/ahi-governance/alpha-core/internal/notify"
	"github.com/ahi-governance/alpha-core/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
        _       _
   __ _| |_ __ | |__   __ _        ___ ___  _ __ ___
  / _' | | '_ \| '_ \ / _' |_____ / __/ _ \| '__/ _ \
 | (_| | | |_) | | | | (_| |_____| (_| (_) | | |  __/
  \__,_|_| .__/|_| |_|\__,_|      \___\___/|_|  \___|
         |_|
`

// getConfigPath returns the path to the config file.
// Priority: ALPHA_CONFIG env var > XDG_CONFIG_HOME/alpha/core.yaml > ~/.config/alpha/core.yaml
func getConfigPath() string {
	if envPath := os.Getenv("ALPHA_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "core.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "alpha", "core.yaml")
}

// getDataPath returns the path to the alpha data directory.
// Priority: XDG_DATA_HOME/alpha > ~/.local/share/alpha
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "alpha")
}

func usage() {
	fmt.Println("Usage: alpha-core <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                          Start the certification server")
	fmt.Println("  init                           Create a new config file interactively")
	fmt.Println("  health                         Check server health")
	fmt.Println("  ready                          Check server readiness")
	fmt.Println("  ignite                         Record the genesis log without starting the server")
	fmt.Println("  token --subject NAME           Mint an invoker token for private variants")
	fmt.Println("        [--ttl 720h] [--variant NAME]...")
	fmt.Println("  secret set NAME JSON           Store a secret binding value")
	fmt.Println("  secret list                    List stored secret bindings")
	fmt.Println("  secret delete NAME             Delete a secret binding")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runProbe(ctx, "/health")
	case "ready":
		err = runProbe(ctx, "/health/ready")
	case "ignite":
		err = runIgnite(ctx)
	case "token":
		err = runToken(os.Args[2:])
	case "secret":
		err = runSecret(ctx, os.Args[2:])
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, string, error) {
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, configPath, fmt.Errorf("loading config: %w (run `alpha-core init` to create one)", err)
	}
	return cfg, configPath, nil
}

func runServe(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Node:      %s\n", cfg.Node.ID)
	if !cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	}

	for _, v := range cfg.Variants {
		green.Print("    ▶ ")
		fmt.Printf("Variant:   %s ", v.Name)
		cyan.Print(config.NormalizePrefix(v.PathPrefix) + "/")
		gray.Printf(" (%s)", v.Region)
		if v.Invoker == config.InvokerPrivate {
			yellow.Print(" [private]")
		}
		fmt.Println()
	}

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}

	fmt.Println()

	logger.Info("starting alpha-core",
		"config", configPath,
		"node_id", cfg.Node.ID,
		"http_addr", cfg.Server.HTTPAddr,
		"variants", len(cfg.Variants),
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

// runProbe calls one of the operations endpoints and prints its body.
func runProbe(ctx context.Context, path string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is not set; probe the tailscale hostname directly")
	}

	url := fmt.Sprintf("http://%s%s", cfg.Server.HTTPAddr, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	fmt.Println(strings.TrimSpace(string(body)))
	return nil
}

// runIgnite records the genesis log directly against the configured database.
func runIgnite(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	s, err := store.NewSQLiteStore(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	svc := certify.New(s, certify.SettingsFrom(cfg), logger, certify.WithNotifier(notify.Nop{}))
	if err := svc.Prepare(ctx); err != nil {
		return err
	}

	result, err := svc.Ignite(ctx)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	if result.Created {
		green.Print("  ✓ ")
	} else {
		color.New(color.FgYellow).Print("  • ")
	}
	fmt.Println(result.Message)
	fmt.Printf("    node_id:        %v\n", result.Log["node_id"])
	fmt.Printf("    integrity_hash: %v\n", result.Log["integrity_hash"])
	fmt.Printf("    timestamp:      %v\n", result.Log["timestamp"])
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("alpha-core configuration setup")
	fmt.Println("==============================")
	fmt.Println()

	defaultConfigPath := getConfigPath()
	defaultDbPath := filepath.Join(getDataPath(), "alpha.db")

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if !isYes(overwrite) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", config.DefaultHTTPAddr)

	fmt.Println("\n--- Node Configuration ---")
	nodeID := prompt(reader, "Node ID", config.DefaultNodeID)

	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)

	fmt.Println("\n--- Private Variant ---")
	private := isYes(prompt(reader, "Add a private v2 variant?", "no"))
	var jwtSecret string
	if private {
		secretBytes := make([]byte, 32)
		if _, err := rand.Read(secretBytes); err != nil {
			return fmt.Errorf("generating JWT secret: %w", err)
		}
		jwtSecret = base64.StdEncoding.EncodeToString(secretBytes)
	}

	fmt.Println("\n--- Tailscale Configuration ---")
	tailscaleEnabled := isYes(prompt(reader, "Enable Tailscale?", "no"))

	var tsHostname, tsAuthKey string
	var tsEphemeral, tsFunnel bool
	if tailscaleEnabled {
		tsHostname = prompt(reader, "Tailscale hostname", "alpha-core")
		tsAuthKey = prompt(reader, "Tailscale auth key (leave empty to use TS_AUTHKEY)", "")
		tsEphemeral = isYes(prompt(reader, "Ephemeral node?", "no"))
		tsFunnel = isYes(prompt(reader, "Enable Funnel (public HTTPS)?", "no"))
	}

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# alpha-core configuration\n")
	cfg.WriteString("# Generated by alpha-core init\n\n")

	if !tailscaleEnabled {
		cfg.WriteString("server:\n")
		cfg.WriteString(fmt.Sprintf("  http_addr: %q\n\n", httpAddr))
	}

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n\n", dbPath))

	cfg.WriteString("node:\n")
	cfg.WriteString(fmt.Sprintf("  id: %q\n\n", nodeID))

	if private {
		cfg.WriteString("auth:\n")
		cfg.WriteString(fmt.Sprintf("  jwt_secret: %q\n\n", jwtSecret))
	}

	cfg.WriteString("variants:\n")
	cfg.WriteString("  - name: alpha\n")
	cfg.WriteString("    path_prefix: /\n")
	cfg.WriteString("    mirror_headers: true\n")
	cfg.WriteString("    cors:\n")
	cfg.WriteString("      allowed_origins: [\"*\"]\n")
	if private {
		cfg.WriteString("  - name: v2\n")
		cfg.WriteString("    path_prefix: /v2\n")
		cfg.WriteString("    invoker: private\n")
	}
	cfg.WriteString("\n")

	cfg.WriteString("tailscale:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", tailscaleEnabled))
	if tailscaleEnabled {
		cfg.WriteString(fmt.Sprintf("  hostname: %q\n", tsHostname))
		if tsAuthKey != "" {
			cfg.WriteString(fmt.Sprintf("  auth_key: %q\n", tsAuthKey))
		}
		cfg.WriteString(fmt.Sprintf("  ephemeral: %t\n", tsEphemeral))
		cfg.WriteString(fmt.Sprintf("  funnel: %t\n", tsFunnel))
	}
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", logFormat))

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// The file may carry a JWT secret
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  alpha-core serve\n")
	if private {
		fmt.Println("\nTo mint a token for the v2 variant:")
		fmt.Printf("  alpha-core token --subject you@example.com --variant v2\n")
	}

	return nil
}

func isYes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
