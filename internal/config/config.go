// ABOUTME: Configuration loading and parsing for gate-console
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Transport kinds
const (
	TransportNATS      = "nats"
	TransportWebSocket = "websocket"
)

// Gate health modes
const (
	HealthHTTP = "http"
	HealthGRPC = "grpc"
)

// Config represents the complete gate-console configuration
type Config struct {
	Console     ConsoleConfig     `yaml:"console" toml:"console"`
	Transport   TransportConfig   `yaml:"transport" toml:"transport"`
	API         APIConfig         `yaml:"api" toml:"api"`
	GateControl GateControlConfig `yaml:"gate_control" toml:"gate_control"`
	Database    DatabaseConfig    `yaml:"database" toml:"database"`
	Notify      NotifyConfig      `yaml:"notify" toml:"notify"`
	Logging     LoggingConfig     `yaml:"logging" toml:"logging"`
}

// ConsoleConfig holds call handling settings
type ConsoleConfig struct {
	// AllowedAgents is the enumerable set of operator ids.
	AllowedAgents []int `yaml:"allowed_agents" toml:"allowed_agents"`

	DedupeWindow      time.Duration `yaml:"-" toml:"-"`
	ResolutionTimeout time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	DedupeWindowRaw      string `yaml:"dedupe_window" toml:"dedupe_window"`
	ResolutionTimeoutRaw string `yaml:"resolution_timeout" toml:"resolution_timeout"`
}

// TransportConfig selects and addresses the gate event channel
type TransportConfig struct {
	Kind            string `yaml:"kind" toml:"kind"`
	URL             string `yaml:"url" toml:"url"`
	GateSubject     string `yaml:"gate_subject" toml:"gate_subject"`
	RegisterSubject string `yaml:"register_subject" toml:"register_subject"`

	ReconnectWait    time.Duration `yaml:"-" toml:"-"`
	MaxReconnectWait time.Duration `yaml:"-" toml:"-"`

	ReconnectWaitRaw    string `yaml:"reconnect_wait" toml:"reconnect_wait"`
	MaxReconnectWaitRaw string `yaml:"max_reconnect_wait" toml:"max_reconnect_wait"`
}

// APIConfig holds the issue backend connection
type APIConfig struct {
	BaseURL string        `yaml:"base_url" toml:"base_url"`
	Token   string        `yaml:"token" toml:"token"`
	Timeout time.Duration `yaml:"-" toml:"-"`

	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// GateControlConfig holds the gate hardware endpoints
type GateControlConfig struct {
	BaseURL string `yaml:"base_url" toml:"base_url"`
	// Health is how gates are pinged: http or grpc.
	Health   string `yaml:"health" toml:"health"`
	GRPCAddr string `yaml:"grpc_addr" toml:"grpc_addr"`

	PingTimeout time.Duration `yaml:"-" toml:"-"`
	OpenTimeout time.Duration `yaml:"-" toml:"-"`

	PingTimeoutRaw string `yaml:"ping_timeout" toml:"ping_timeout"`
	OpenTimeoutRaw string `yaml:"open_timeout" toml:"open_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// NotifyConfig holds the call notification channels
type NotifyConfig struct {
	// QueueSize bounds each notifier's backlog.
	QueueSize int          `yaml:"queue_size" toml:"queue_size"`
	Bell      BellConfig   `yaml:"bell" toml:"bell"`
	Matrix    MatrixConfig `yaml:"matrix" toml:"matrix"`
	Slack     SlackConfig  `yaml:"slack" toml:"slack"`
}

// BellConfig controls the local audible alert
type BellConfig struct {
	Muted bool `yaml:"muted" toml:"muted"`
}

// MatrixConfig holds Matrix room notification settings
type MatrixConfig struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled"`
	Homeserver  string `yaml:"homeserver" toml:"homeserver"`
	UserID      string `yaml:"user_id" toml:"user_id"`
	AccessToken string `yaml:"access_token" toml:"access_token"`
	RoomID      string `yaml:"room_id" toml:"room_id"`
}

// SlackConfig holds Slack incoming webhook settings
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled" toml:"enabled"`
	WebhookURL string `yaml:"webhook_url" toml:"webhook_url"`
	Channel    string `yaml:"channel" toml:"channel"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// DefaultPath returns the config file location.
// Priority: GATE_CONSOLE_CONFIG env var > XDG_CONFIG_HOME/gate-console/console.yaml > ~/.config/gate-console/console.yaml
func DefaultPath() string {
	if envPath := os.Getenv("GATE_CONSOLE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "console.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "gate-console", "console.yaml")
}

// DefaultDatabasePath returns XDG_DATA_HOME/gate-console/console.db or ~/.local/share/gate-console/console.db.
func DefaultDatabasePath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "console.db"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "gate-console", "console.db")
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
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

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func (c *Config) applyDefaults() {
	if len(c.Console.AllowedAgents) == 0 {
		c.Console.AllowedAgents = []int{1, 2, 3}
	}
	if c.Console.DedupeWindowRaw == "" {
		c.Console.DedupeWindow = 30 * time.Second
	}
	if c.Console.ResolutionTimeout == 0 {
		c.Console.ResolutionTimeout = 15 * time.Second
	}

	if c.Transport.Kind == "" {
		c.Transport.Kind = TransportNATS
	}
	if c.Transport.GateSubject == "" {
		c.Transport.GateSubject = "gate.status"
	}
	if c.Transport.RegisterSubject == "" {
		c.Transport.RegisterSubject = "agent.register"
	}
	if c.Transport.ReconnectWait == 0 {
		c.Transport.ReconnectWait = time.Second
	}
	if c.Transport.MaxReconnectWait == 0 {
		c.Transport.MaxReconnectWait = 30 * time.Second
	}

	if c.API.Timeout == 0 {
		c.API.Timeout = 10 * time.Second
	}

	if c.GateControl.Health == "" {
		c.GateControl.Health = HealthHTTP
	}
	if c.GateControl.PingTimeout == 0 {
		c.GateControl.PingTimeout = 3 * time.Second
	}
	if c.GateControl.OpenTimeout == 0 {
		c.GateControl.OpenTimeout = 5 * time.Second
	}

	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath()
	}

	if c.Notify.QueueSize <= 0 {
		c.Notify.QueueSize = 16
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	seen := make(map[int]bool, len(c.Console.AllowedAgents))
	for _, id := range c.Console.AllowedAgents {
		if id <= 0 {
			return fmt.Errorf("console.allowed_agents must be positive, got %d", id)
		}
		if seen[id] {
			return fmt.Errorf("console.allowed_agents contains %d twice", id)
		}
		seen[id] = true
	}
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"console.dedupe_window", c.Console.DedupeWindow},
		{"console.resolution_timeout", c.Console.ResolutionTimeout},
		{"transport.reconnect_wait", c.Transport.ReconnectWait},
		{"transport.max_reconnect_wait", c.Transport.MaxReconnectWait},
		{"api.timeout", c.API.Timeout},
		{"gate_control.ping_timeout", c.GateControl.PingTimeout},
		{"gate_control.open_timeout", c.GateControl.OpenTimeout},
	} {
		if d.value < 0 {
			return fmt.Errorf("%s must not be negative, got %s", d.name, d.value)
		}
	}

	switch c.Transport.Kind {
	case TransportNATS, TransportWebSocket:
	default:
		return fmt.Errorf("transport.kind must be %q or %q, got %q", TransportNATS, TransportWebSocket, c.Transport.Kind)
	}
	if c.Transport.URL == "" {
		return fmt.Errorf("transport.url is required")
	}
	if c.Transport.Kind == TransportWebSocket {
		if err := requireScheme("transport.url", c.Transport.URL, "ws", "wss"); err != nil {
			return err
		}
	}

	if err := requireScheme("api.base_url", c.API.BaseURL, "http", "https"); err != nil {
		return err
	}
	if err := requireScheme("gate_control.base_url", c.GateControl.BaseURL, "http", "https"); err != nil {
		return err
	}

	switch c.GateControl.Health {
	case HealthHTTP:
	case HealthGRPC:
		if c.GateControl.GRPCAddr == "" {
			return fmt.Errorf("gate_control.grpc_addr is required when gate_control.health is grpc")
		}
	default:
		return fmt.Errorf("gate_control.health must be %q or %q, got %q", HealthHTTP, HealthGRPC, c.GateControl.Health)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if m := c.Notify.Matrix; m.Enabled {
		if m.Homeserver == "" || m.UserID == "" || m.AccessToken == "" || m.RoomID == "" {
			return fmt.Errorf("notify.matrix requires homeserver, user_id, access_token and room_id when enabled")
		}
	}
	if s := c.Notify.Slack; s.Enabled {
		if err := requireScheme("notify.slack.webhook_url", s.WebhookURL, "https", "http"); err != nil {
			return err
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}

	return nil
}

func requireScheme(field, raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s must use %s scheme", field, strings.Join(schemes, " or "))
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"console.dedupe_window", cfg.Console.DedupeWindowRaw, &cfg.Console.DedupeWindow},
		{"console.resolution_timeout", cfg.Console.ResolutionTimeoutRaw, &cfg.Console.ResolutionTimeout},
		{"transport.reconnect_wait", cfg.Transport.ReconnectWaitRaw, &cfg.Transport.ReconnectWait},
		{"transport.max_reconnect_wait", cfg.Transport.MaxReconnectWaitRaw, &cfg.Transport.MaxReconnectWait},
		{"api.timeout", cfg.API.TimeoutRaw, &cfg.API.Timeout},
		{"gate_control.ping_timeout", cfg.GateControl.PingTimeoutRaw, &cfg.GateControl.PingTimeout},
		{"gate_control.open_timeout", cfg.GateControl.OpenTimeoutRaw, &cfg.GateControl.OpenTimeout},
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
