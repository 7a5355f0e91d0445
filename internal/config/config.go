// ABOUTME: Configuration loading and parsing for alpha-core
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Invoker visibility values for a variant
const (
	InvokerPublic  = "public"
	InvokerPrivate = "private"
)

// StabilityThreshold is the fixed ξ constant. A configured
// certification.threshold may restate it but never change it.
const StabilityThreshold = 0.842

// Config represents the complete alpha-core configuration
type Config struct {
	Server        ServerConfig        `yaml:"server" toml:"server"`
	Database      DatabaseConfig      `yaml:"database" toml:"database"`
	Auth          AuthConfig          `yaml:"auth" toml:"auth"`
	Node          NodeConfig          `yaml:"node" toml:"node"`
	Genesis       GenesisConfig       `yaml:"genesis" toml:"genesis"`
	Certification CertificationConfig `yaml:"certification" toml:"certification"`
	Variants      []VariantConfig     `yaml:"variants" toml:"variants"`
	Secrets       SecretsConfig       `yaml:"secrets" toml:"secrets"`
	Notify        NotifyConfig        `yaml:"notify" toml:"notify"`
	Tailscale     TailscaleConfig     `yaml:"tailscale" toml:"tailscale"`
	Logging       LoggingConfig       `yaml:"logging" toml:"logging"`
}

// ServerConfig holds the HTTP listener configuration
type ServerConfig struct {
	HTTPAddr          string        `yaml:"http_addr" toml:"http_addr"`
	ReadHeaderTimeout time.Duration `yaml:"-" toml:"-"`
	ShutdownTimeout   time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	ReadHeaderTimeoutRaw string `yaml:"read_header_timeout" toml:"read_header_timeout"`
	ShutdownTimeoutRaw   string `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// AuthConfig holds authentication configuration for private variants
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
}

// NodeConfig identifies this node and the manifesto it ignites with
type NodeConfig struct {
	ID            string `yaml:"id" toml:"id"`
	Manifesto     string `yaml:"manifesto" toml:"manifesto"`
	ManifestoFile string `yaml:"manifesto_file" toml:"manifesto_file"`
}

// GenesisConfig holds genesis record storage settings
type GenesisConfig struct {
	Collection string `yaml:"collection" toml:"collection"`
	// EnforceUnique installs a unique index on node_id. nil means true.
	EnforceUnique *bool `yaml:"enforce_unique" toml:"enforce_unique"`
}

// CertificationConfig holds certification record settings
type CertificationConfig struct {
	Collection string  `yaml:"collection" toml:"collection"`
	EmitterID  string  `yaml:"emitter_id" toml:"emitter_id"`
	Version    string  `yaml:"version" toml:"version"`
	Threshold  float64 `yaml:"threshold" toml:"threshold"`
}

// VariantConfig describes one deployment of the genesis and certification handlers
type VariantConfig struct {
	Name          string     `yaml:"name" toml:"name"`
	PathPrefix    string     `yaml:"path_prefix" toml:"path_prefix"`
	Region        string     `yaml:"region" toml:"region"`
	CORS          CORSConfig `yaml:"cors" toml:"cors"`
	Secrets       []string   `yaml:"secrets" toml:"secrets"`
	Invoker       string     `yaml:"invoker" toml:"invoker"` // public, private
	MirrorHeaders bool       `yaml:"mirror_headers" toml:"mirror_headers"`
	PlainErrors   bool       `yaml:"plain_errors" toml:"plain_errors"`
}

// CORSConfig holds the CORS policy of a variant. No allowed origins disables CORS.
type CORSConfig struct {
	AllowedOrigins []string      `yaml:"allowed_origins" toml:"allowed_origins"`
	AllowedMethods []string      `yaml:"allowed_methods" toml:"allowed_methods"`
	AllowedHeaders []string      `yaml:"allowed_headers" toml:"allowed_headers"`
	MaxAge         time.Duration `yaml:"-" toml:"-"`
	MaxAgeRaw      string        `yaml:"max_age" toml:"max_age"`
}

// SecretsConfig selects where variant secret bindings are fetched from
type SecretsConfig struct {
	Backend   string `yaml:"backend" toml:"backend"` // store, env
	EnvPrefix string `yaml:"env_prefix" toml:"env_prefix"`
}

// NotifyConfig holds notification sinks
type NotifyConfig struct {
	Matrix MatrixConfig `yaml:"matrix" toml:"matrix"`
}

// MatrixConfig holds Matrix notification configuration
type MatrixConfig struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled"`
	Homeserver  string `yaml:"homeserver" toml:"homeserver"`
	UserID      string `yaml:"user_id" toml:"user_id"`
	AccessToken string `yaml:"access_token" toml:"access_token"`
	RoomID      string `yaml:"room_id" toml:"room_id"`
	QueueSize   int    `yaml:"queue_size" toml:"queue_size"`

	// Repeats of the same event inside this window are dropped
	SuppressWindow    time.Duration `yaml:"-" toml:"-"`
	SuppressWindowRaw string        `yaml:"suppress_window" toml:"suppress_window"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	HTTPS     bool   `yaml:"https" toml:"https"`   // Serve HTTPS with Tailscale certs on :443
	Funnel    bool   `yaml:"funnel" toml:"funnel"` // Enable public Funnel (implies HTTPS)
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
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

	if err := cfg.resolveManifesto(filepath.Dir(path)); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied, suitable for
// tests and for running without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	// Defaults are known-good duration strings
	_ = parseDurations(cfg)
	return cfg
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// resolveManifesto loads node.manifesto_file, relative to the config file directory.
func (c *Config) resolveManifesto(baseDir string) error {
	if c.Node.ManifestoFile == "" {
		return nil
	}
	if c.Node.Manifesto != "" {
		return errors.New("node.manifesto and node.manifesto_file are mutually exclusive")
	}
	path := c.Node.ManifestoFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading manifesto file: %w", err)
	}
	c.Node.Manifesto = string(data)
	return nil
}

// ApplyDefaults fills every unset field with its default value.
func (c *Config) ApplyDefaults() {
	if c.Server.HTTPAddr == "" && !c.Tailscale.Enabled {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Server.ReadHeaderTimeoutRaw == "" {
		c.Server.ReadHeaderTimeoutRaw = defaultReadHeaderTimeoutRaw
	}
	if c.Server.ShutdownTimeoutRaw == "" {
		c.Server.ShutdownTimeoutRaw = defaultShutdownTimeoutRaw
	}
	if c.Node.ID == "" {
		c.Node.ID = DefaultNodeID
	}
	if c.Node.Manifesto == "" {
		c.Node.Manifesto = DefaultManifesto
	}
	if c.Genesis.Collection == "" {
		c.Genesis.Collection = DefaultGenesisCollection
	}
	if c.Genesis.EnforceUnique == nil {
		enforce := true
		c.Genesis.EnforceUnique = &enforce
	}
	if c.Certification.Collection == "" {
		c.Certification.Collection = DefaultCertifyCollection
	}
	if c.Certification.EmitterID == "" {
		c.Certification.EmitterID = DefaultEmitterID
	}
	if c.Certification.Version == "" {
		c.Certification.Version = DefaultVersion
	}
	if c.Certification.Threshold == 0 {
		c.Certification.Threshold = StabilityThreshold
	}
	if len(c.Variants) == 0 {
		c.Variants = []VariantConfig{defaultVariant()}
	}
	for i := range c.Variants {
		v := &c.Variants[i]
		if v.PathPrefix == "" {
			v.PathPrefix = "/"
		}
		if v.Region == "" {
			v.Region = DefaultRegion
		}
		if v.Invoker == "" {
			v.Invoker = InvokerPublic
		}
		if len(v.CORS.AllowedOrigins) > 0 {
			if len(v.CORS.AllowedMethods) == 0 {
				v.CORS.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
			}
			if len(v.CORS.AllowedHeaders) == 0 {
				v.CORS.AllowedHeaders = []string{"Content-Type", "Authorization"}
			}
			if v.CORS.MaxAgeRaw == "" {
				v.CORS.MaxAgeRaw = defaultCORSMaxAgeRaw
			}
		}
	}
	if c.Secrets.Backend == "" {
		c.Secrets.Backend = DefaultSecretsBackend
	}
	if c.Secrets.EnvPrefix == "" {
		c.Secrets.EnvPrefix = DefaultSecretsEnvPrefix
	}
	if c.Notify.Matrix.QueueSize == 0 {
		c.Notify.Matrix.QueueSize = DefaultMatrixQueueSize
	}
	if c.Notify.Matrix.SuppressWindowRaw == "" {
		c.Notify.Matrix.SuppressWindowRaw = defaultSuppressWindowRaw
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// EnforceUniqueGenesis reports whether the genesis collection gets a unique node_id index.
func (c *Config) EnforceUniqueGenesis() bool {
	return c.Genesis.EnforceUnique == nil || *c.Genesis.EnforceUnique
}

// DatabasePath returns the SQLite path, with ALPHA_DB_PATH taking precedence
// over database.path.
func (c *Config) DatabasePath() string {
	if envPath := os.Getenv("ALPHA_DB_PATH"); envPath != "" {
		return envPath
	}
	return c.Database.Path
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if math.Abs(c.Certification.Threshold-StabilityThreshold) > 1e-12 {
		return fmt.Errorf("certification.threshold is fixed at %v, got %v", StabilityThreshold, c.Certification.Threshold)
	}

	switch c.Secrets.Backend {
	case "store", "env":
	default:
		return fmt.Errorf("secrets.backend must be \"store\" or \"env\", got %q", c.Secrets.Backend)
	}

	if err := c.validateVariants(); err != nil {
		return err
	}

	if c.Notify.Matrix.Enabled {
		m := c.Notify.Matrix
		if m.Homeserver == "" || m.UserID == "" || m.AccessToken == "" || m.RoomID == "" {
			return fmt.Errorf("notify.matrix requires homeserver, user_id, access_token and room_id when enabled")
		}
		if m.QueueSize < 0 {
			return fmt.Errorf("notify.matrix.queue_size must be positive")
		}
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}

	return nil
}

// validateVariants checks names, prefixes, and invoker settings of every variant.
func (c *Config) validateVariants() error {
	names := make(map[string]bool, len(c.Variants))
	prefixes := make(map[string]string, len(c.Variants))

	for i, v := range c.Variants {
		if v.Name == "" {
			return fmt.Errorf("variants[%d].name is required", i)
		}
		if names[v.Name] {
			return fmt.Errorf("variants[%d]: duplicate name %q", i, v.Name)
		}
		names[v.Name] = true

		if !strings.HasPrefix(v.PathPrefix, "/") {
			return fmt.Errorf("variant %q: path_prefix must start with /", v.Name)
		}
		if strings.ContainsAny(v.PathPrefix, "{}?# \t\r\n") {
			return fmt.Errorf("variant %q: path_prefix %q contains a character not allowed in a route", v.Name, v.PathPrefix)
		}
		prefix := NormalizePrefix(v.PathPrefix)
		if other, ok := prefixes[prefix]; ok {
			return fmt.Errorf("variant %q: path_prefix %q already used by variant %q", v.Name, v.PathPrefix, other)
		}
		prefixes[prefix] = v.Name

		switch v.Invoker {
		case InvokerPublic:
		case InvokerPrivate:
			if c.Auth.JWTSecret == "" {
				return fmt.Errorf("variant %q: private invoker requires auth.jwt_secret", v.Name)
			}
		default:
			return fmt.Errorf("variant %q: invoker must be %q or %q, got %q", v.Name, InvokerPublic, InvokerPrivate, v.Invoker)
		}

		for _, s := range v.Secrets {
			if s == "" {
				return fmt.Errorf("variant %q: empty secret binding", v.Name)
			}
		}
	}

	return nil
}

// NormalizePrefix returns prefix without a trailing slash; the root prefix becomes "".
func NormalizePrefix(prefix string) string {
	return strings.TrimRight(prefix, "/")
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Server.ReadHeaderTimeoutRaw != "" {
		cfg.Server.ReadHeaderTimeout, err = time.ParseDuration(cfg.Server.ReadHeaderTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing read_header_timeout %q: %w", cfg.Server.ReadHeaderTimeoutRaw, err)
		}
	}

	if cfg.Server.ShutdownTimeoutRaw != "" {
		cfg.Server.ShutdownTimeout, err = time.ParseDuration(cfg.Server.ShutdownTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing shutdown_timeout %q: %w", cfg.Server.ShutdownTimeoutRaw, err)
		}
	}

	if cfg.Notify.Matrix.SuppressWindowRaw != "" {
		cfg.Notify.Matrix.SuppressWindow, err = time.ParseDuration(cfg.Notify.Matrix.SuppressWindowRaw)
		if err != nil {
			return fmt.Errorf("parsing suppress_window %q: %w", cfg.Notify.Matrix.SuppressWindowRaw, err)
		}
	}

	for i := range cfg.Variants {
		cors := &cfg.Variants[i].CORS
		if cors.MaxAgeRaw == "" {
			continue
		}
		cors.MaxAge, err = time.ParseDuration(cors.MaxAgeRaw)
		if err != nil {
			return fmt.Errorf("parsing variant %q cors.max_age %q: %w", cfg.Variants[i].Name, cors.MaxAgeRaw, err)
		}
	}

	return nil
}
