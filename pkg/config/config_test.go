package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.HTTPPort != 5001 {
		t.Errorf("unexpected default port: %d", cfg.Server.HTTPPort)
	}
	if cfg.Sandbox.DefaultKind != "ubuntu" {
		t.Errorf("unexpected default kind: %s", cfg.Sandbox.DefaultKind)
	}
	if cfg.Agents.DefaultVariant != "scout-commander" {
		t.Errorf("unexpected default variant: %s", cfg.Agents.DefaultVariant)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `server:
  http_port: 9000
  read_timeout: 10s
agents:
  default_variant: research-specialist
sandbox:
  default_kind: browser
  max_sessions: 3
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFromFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.HTTPPort != 9000 {
		t.Errorf("unexpected port: %d", cfg.Server.HTTPPort)
	}
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("unexpected read timeout: %v", cfg.Server.ReadTimeout)
	}
	if cfg.Sandbox.DefaultKind != "browser" {
		t.Errorf("unexpected kind: %s", cfg.Sandbox.DefaultKind)
	}
	// Unset fields keep defaults.
	if cfg.Memory.Endpoint == "" {
		t.Error("expected default memory endpoint preserved")
	}
	if cfg.Server.WriteTimeout != 60*time.Second {
		t.Errorf("expected default write timeout, got %v", cfg.Server.WriteTimeout)
	}
}

func TestLoadConfigFromFile_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_SANDBOX_KEY", "scrapy-123")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `sandbox:
  api_key: ${TEST_SANDBOX_KEY}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Sandbox.APIKey != "scrapy-123" {
		t.Errorf("env not expanded: %s", cfg.Sandbox.APIKey)
	}
}

func TestLoadConfigFromFile_Missing(t *testing.T) {
	_, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.HTTPPort = 0 }},
		{"bad kind", func(c *Config) { c.Sandbox.DefaultKind = "windows" }},
		{"db enabled without dsn", func(c *Config) { c.Database.Enabled = true }},
		{"events enabled without url", func(c *Config) { c.Events.Enabled = true; c.Events.URL = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
