// Package config loads and validates sitecopier configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Analyzer AnalyzerConfig `mapstructure:"analyzer"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Storage  StorageConfig  `mapstructure:"storage"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// HTTPConfig configures the static fetcher shared by scans, analysis, and archives.
type HTTPConfig struct {
	UserAgent           string  `mapstructure:"user_agent"`
	TimeoutSeconds      int     `mapstructure:"timeout_seconds"`
	ProbeTimeoutSeconds int     `mapstructure:"probe_timeout_seconds"`
	MaxRedirects        int     `mapstructure:"max_redirects"`
	MaxBodyBytes        int     `mapstructure:"max_body_bytes"`
	RequestsPerSecond   float64 `mapstructure:"requests_per_second"`
	Burst               int     `mapstructure:"burst"`
}

// HeadlessConfig configures the seed-page renderer.
type HeadlessConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	MaxParallel    int  `mapstructure:"max_parallel"`
	NavTimeoutSec  int  `mapstructure:"nav_timeout_seconds"`
	IdleTimeoutSec int  `mapstructure:"idle_timeout_seconds"`
}

// CrawlerConfig holds scan bounds applied when a request leaves them unset.
type CrawlerConfig struct {
	MaxDepthDefault int `mapstructure:"max_depth_default"`
	MaxPagesDefault int `mapstructure:"max_pages_default"`
	LinksPerPage    int `mapstructure:"links_per_page"`
}

// AnalyzerConfig configures single-page analysis.
type AnalyzerConfig struct {
	FetchTimeoutSeconds int `mapstructure:"fetch_timeout_seconds"`
}

// ArchiveConfig configures archive assembly.
type ArchiveConfig struct {
	FetchTimeoutSeconds int `mapstructure:"fetch_timeout_seconds"`
	Concurrency         int `mapstructure:"concurrency"`
}

// Storage providers.
const (
	StorageNone   = "none"
	StorageMemory = "memory"
	StorageLocal  = "local"
	StorageGCS    = "gcs"
)

// StorageConfig selects where finished archives are persisted.
type StorageConfig struct {
	Provider  string `mapstructure:"provider"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for archive notifications. An empty topic disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features and optional file rotation.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SITECOPIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.request_timeout_seconds", 300)
	v.SetDefault("server.shutdown_timeout_seconds", 15)
	v.SetDefault("http.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("http.probe_timeout_seconds", 5)
	v.SetDefault("http.max_redirects", 5)
	v.SetDefault("http.max_body_bytes", 64<<20)
	v.SetDefault("http.requests_per_second", 0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("headless.enabled", true)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 30)
	v.SetDefault("headless.idle_timeout_seconds", 10)
	v.SetDefault("crawler.max_depth_default", 5)
	v.SetDefault("crawler.max_pages_default", 100)
	v.SetDefault("crawler.links_per_page", 10)
	v.SetDefault("analyzer.fetch_timeout_seconds", 15)
	v.SetDefault("archive.fetch_timeout_seconds", 30)
	v.SetDefault("archive.concurrency", 1)
	v.SetDefault("storage.provider", StorageNone)
	v.SetDefault("storage.prefix", "archives")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("http.requests_per_second must be >= 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Archive.Concurrency <= 0 {
		return fmt.Errorf("archive.concurrency must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Storage.Provider {
	case StorageNone, StorageMemory:
	case StorageLocal:
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir must be set for the local provider")
		}
	case StorageGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs provider")
		}
	default:
		return fmt.Errorf("storage.provider %q is not one of none, memory, local, gcs", c.Storage.Provider)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	if c.Logging.Level != "" {
		if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
			return fmt.Errorf("logging.level: %w", err)
		}
	}
	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Timeout is the full-body fetch timeout.
func (h HTTPConfig) Timeout() time.Duration { return seconds(h.TimeoutSeconds) }

// ProbeTimeout is the metadata probe timeout.
func (h HTTPConfig) ProbeTimeout() time.Duration { return seconds(h.ProbeTimeoutSeconds) }

// NavTimeout bounds one rendered navigation.
func (h HeadlessConfig) NavTimeout() time.Duration { return seconds(h.NavTimeoutSec) }

// IdleTimeout bounds the network-idle wait after navigation.
func (h HeadlessConfig) IdleTimeout() time.Duration { return seconds(h.IdleTimeoutSec) }

// FetchTimeout is the per-page fetch timeout for analysis.
func (a AnalyzerConfig) FetchTimeout() time.Duration { return seconds(a.FetchTimeoutSeconds) }

// FetchTimeout is the per-entry fetch timeout for archive assembly.
func (a ArchiveConfig) FetchTimeout() time.Duration { return seconds(a.FetchTimeoutSeconds) }

// RequestTimeout bounds one API request.
func (s ServerConfig) RequestTimeout() time.Duration { return seconds(s.RequestTimeoutSeconds) }

// ShutdownTimeout bounds graceful shutdown.
func (s ServerConfig) ShutdownTimeout() time.Duration { return seconds(s.ShutdownTimeoutSeconds) }
