package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main configuration for the podplay service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Security  SecurityConfig  `yaml:"security"`
	Agents    AgentsConfig    `yaml:"agents"`
	Models    ModelsConfig    `yaml:"models"`
	Memory    MemoryConfig    `yaml:"memory"`
	Sandbox   SandboxConfig   `yaml:"sandbox"`
	Events    EventsConfig    `yaml:"events"`
	Database  DatabaseConfig  `yaml:"database"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	HTTPPort     int           `yaml:"http_port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// SecurityConfig configures authentication and CORS
type SecurityConfig struct {
	EnableAuth     bool     `yaml:"enable_auth"`
	APIKeys        []string `yaml:"api_keys,omitempty"`
	JWTSecret      string   `yaml:"jwt_secret,omitempty"`
	AllowedOrigins []string `yaml:"allowed_origins"` // CORS
	KeyStorePath   string   `yaml:"key_store_path"`  // encrypted provider credential store
}

// AgentsConfig configures the Mama Bear agent variants
type AgentsConfig struct {
	DefaultVariant string `yaml:"default_variant"`
	PersonaPath    string `yaml:"persona_path"` // YAML file with persona overrides
	WatchPersonas  bool   `yaml:"watch_personas"`
}

// ModelsConfig configures model inference
type ModelsConfig struct {
	APIKey         string        `yaml:"api_key"` // falls back to ANTHROPIC_API_KEY
	Primary        string        `yaml:"primary"`
	Fallbacks      []string      `yaml:"fallbacks"`
	MaxTokens      int64         `yaml:"max_tokens"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// MemoryConfig configures the remote memory API and its Redis cache
type MemoryConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	APIKey       string        `yaml:"api_key"`
	SearchLimit  int           `yaml:"search_limit"`
	RedisURL     string        `yaml:"redis_url,omitempty"` // empty disables the cache
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	CacheEntries int           `yaml:"cache_entries"` // recent messages kept per user
}

// SandboxConfig configures the remote desktop sandbox API
type SandboxConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	APIKey         string        `yaml:"api_key"`
	DefaultKind    string        `yaml:"default_kind"` // "ubuntu" or "browser"
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxSessions    int           `yaml:"max_sessions"`
	SessionTTL     time.Duration `yaml:"session_ttl"` // idle sessions reaped after this
}

// EventsConfig configures the NATS event bus
type EventsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	URL        string `yaml:"url"`
	StreamName string `yaml:"stream_name"`
}

// DatabaseConfig configures the optional Postgres activity log
type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// TelemetryConfig configures OpenTelemetry export
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// LoadConfigFromFile loads configuration from a YAML file at the specified path.
// Environment variables (e.g. ${SCRAPYBARA_API_KEY}) are expanded before parsing.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	config := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks for configuration values that would fail at runtime.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d out of range", c.Server.HTTPPort)
	}
	if c.Sandbox.DefaultKind != "ubuntu" && c.Sandbox.DefaultKind != "browser" {
		return fmt.Errorf("sandbox.default_kind must be \"ubuntu\" or \"browser\", got %q", c.Sandbox.DefaultKind)
	}
	if c.Database.Enabled && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn required when database is enabled")
	}
	if c.Events.Enabled && c.Events.URL == "" {
		return fmt.Errorf("events.url required when events are enabled")
	}
	return nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:     5001,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Security: SecurityConfig{
			EnableAuth:     false,
			AllowedOrigins: []string{"*"},
			KeyStorePath:   "./.keys.json",
		},
		Agents: AgentsConfig{
			DefaultVariant: "scout-commander",
			PersonaPath:    "./personas.yaml",
			WatchPersonas:  false,
		},
		Models: ModelsConfig{
			Primary:        "claude-sonnet-4-20250514",
			Fallbacks:      []string{"claude-3-5-haiku-20241022"},
			MaxTokens:      4096,
			RequestTimeout: 120 * time.Second,
		},
		Memory: MemoryConfig{
			Endpoint:     "https://api.mem0.ai/v1",
			SearchLimit:  5,
			CacheTTL:     1 * time.Hour,
			CacheEntries: 20,
		},
		Sandbox: SandboxConfig{
			Endpoint:       "https://api.scrapybara.com/v1",
			DefaultKind:    "ubuntu",
			RequestTimeout: 60 * time.Second,
			MaxSessions:    10,
			SessionTTL:     30 * time.Minute,
		},
		Events: EventsConfig{
			Enabled:    false,
			URL:        "nats://localhost:4222",
			StreamName: "PODPLAY",
		},
		Database: DatabaseConfig{
			Enabled: false,
		},
		Telemetry: TelemetryConfig{
			Enabled:  false,
			Endpoint: "localhost:4317",
		},
	}
}
