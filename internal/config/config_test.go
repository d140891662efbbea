package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
http:
  user_agent: copier-test
  timeout_seconds: 45
  probe_timeout_seconds: 3
  requests_per_second: 2.5
headless:
  enabled: true
  max_parallel: 2
  nav_timeout_seconds: 20
crawler:
  max_depth_default: 3
  max_pages_default: 50
  links_per_page: 4
archive:
  concurrency: 4
  fetch_timeout_seconds: 60
storage:
  provider: local
  base_dir: /tmp/archives
logging:
  development: false
  level: debug
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.HTTP.UserAgent != "copier-test" || cfg.HTTP.RequestsPerSecond != 2.5 {
		t.Fatalf("expected http overrides to apply: %+v", cfg.HTTP)
	}
	if got := cfg.HTTP.Timeout(); got != 45*time.Second {
		t.Fatalf("expected fetch timeout 45s, got %v", got)
	}
	if got := cfg.HTTP.ProbeTimeout(); got != 3*time.Second {
		t.Fatalf("expected probe timeout 3s, got %v", got)
	}
	if cfg.Crawler.MaxDepthDefault != 3 || cfg.Crawler.MaxPagesDefault != 50 || cfg.Crawler.LinksPerPage != 4 {
		t.Fatalf("expected crawler overrides to apply: %+v", cfg.Crawler)
	}
	if cfg.Archive.Concurrency != 4 || cfg.Archive.FetchTimeout() != time.Minute {
		t.Fatalf("expected archive overrides to apply: %+v", cfg.Archive)
	}
	if cfg.Storage.Provider != StorageLocal || cfg.Storage.BaseDir != "/tmp/archives" {
		t.Fatalf("expected storage overrides to apply: %+v", cfg.Storage)
	}
	if cfg.Storage.Prefix != "archives" {
		t.Fatalf("expected default prefix to survive, got %q", cfg.Storage.Prefix)
	}
	if cfg.Headless.IdleTimeout() != 10*time.Second {
		t.Fatalf("expected default idle timeout, got %v", cfg.Headless.IdleTimeout())
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 3000 {
		t.Fatalf("expected default port 3000, got %d", cfg.Server.Port)
	}
	if cfg.Crawler.MaxDepthDefault != 5 || cfg.Crawler.MaxPagesDefault != 100 {
		t.Fatalf("unexpected crawler defaults: %+v", cfg.Crawler)
	}
	if cfg.Storage.Provider != StorageNone {
		t.Fatalf("expected storage disabled by default, got %q", cfg.Storage.Provider)
	}
	if !cfg.Headless.Enabled {
		t.Fatalf("expected headless rendering enabled by default")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:   ServerConfig{Port: 8080},
		HTTP:     HTTPConfig{TimeoutSeconds: 10},
		Archive:  ArchiveConfig{Concurrency: 1},
		Storage:  StorageConfig{Provider: StorageNone},
		Headless: HeadlessConfig{Enabled: false},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"missing timeout", func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, "http.timeout_seconds"},
		{"negative rate", func(c *Config) { c.HTTP.RequestsPerSecond = -1 }, "http.requests_per_second"},
		{"headless missing max parallel", func(c *Config) { c.Headless.Enabled = true }, "headless.max_parallel"},
		{"archive concurrency", func(c *Config) { c.Archive.Concurrency = 0 }, "archive.concurrency"},
		{"auth missing api key", func(c *Config) { c.Auth.Enabled = true }, "auth.api_key"},
		{"local without dir", func(c *Config) { c.Storage.Provider = StorageLocal }, "storage.base_dir"},
		{"gcs without bucket", func(c *Config) { c.Storage.Provider = StorageGCS }, "storage.gcs_bucket"},
		{"unknown provider", func(c *Config) { c.Storage.Provider = "s3" }, "storage.provider"},
		{"topic without project", func(c *Config) { c.PubSub.TopicName = "archives" }, "pubsub.project_id"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
