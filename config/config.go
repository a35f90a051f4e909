// Package config manages application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingCredential indicates a required credential is absent at startup.
var ErrMissingCredential = errors.New("config: missing required credential")

// ChannelConfig describes one channel the operator wants tracked.
type ChannelConfig struct {
	// Slug is the internal unique key for the channel.
	Slug string `yaml:"slug"`
	// Name is the channel display name, also used for search fallback.
	Name string `yaml:"name"`
	// RemoteID is the YouTube channel ID, if the operator already knows it.
	RemoteID string `yaml:"remote_id,omitempty"`
	// Visible is an optional tri-state visibility flag. Nil means unknown.
	Visible *bool `yaml:"visible,omitempty"`
}

// Config holds all application configuration.
type Config struct {
	// APIKey is the YouTube Data API key. Required for sync.
	APIKey string `yaml:"-"`
	// DatabaseURL is the Postgres connection string. Required everywhere.
	DatabaseURL string `yaml:"-"`

	// ExportDir is where CSV and JSON artifacts are written.
	ExportDir string `yaml:"export_dir"`
	// MaxVideos caps videos fetched per channel. 0 means no cap.
	MaxVideos int `yaml:"max_videos"`
	// MinDuration is the shortest video kept, in seconds. Anything under
	// this is treated as a short-form clip and dropped.
	MinDuration int `yaml:"min_duration_seconds"`
	// Schedule is the cron expression used by the run command.
	Schedule string `yaml:"schedule"`
	// RequestsPerSecond throttles YouTube API calls.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Retry settings for YouTube API calls.
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`

	// Channels is the operator-supplied list of channels to track.
	Channels []ChannelConfig `yaml:"channels"`
}

// DefaultConfig returns configuration with safe defaults.
func DefaultConfig() *Config {
	return &Config{
		ExportDir:         "exports",
		MaxVideos:         0,
		MinDuration:       120,
		Schedule:          "0 6 * * *",
		RequestsPerSecond: 2.5,
		MaxRetries:        5,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
	}
}

// Load loads configuration from .env, the YAML config file, and environment
// variables. Priority: env vars > config file > defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	path := os.Getenv("YTSTATS_CONFIG")
	if path == "" {
		path = "ytstats.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		// Config file is optional; channels may still come from it though,
		// so Validate will catch an empty channel list where it matters.
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	cfg.loadFromEnv()

	return cfg, nil
}

// loadFromEnv overrides config with environment variables.
func (c *Config) loadFromEnv() {
	c.APIKey = os.Getenv("YOUTUBE_API_KEY")
	c.DatabaseURL = os.Getenv("DATABASE_URL")

	if v := os.Getenv("YTSTATS_EXPORT_DIR"); v != "" {
		c.ExportDir = v
	}
	if v := os.Getenv("YTSTATS_MAX_VIDEOS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxVideos = n
		}
	}
	if v := os.Getenv("YTSTATS_SCHEDULE"); v != "" {
		c.Schedule = v
	}
	if v := os.Getenv("YTSTATS_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxRetries = n
		}
	}
	if v := os.Getenv("YTSTATS_INITIAL_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.InitialBackoff = d
		}
	}
	if v := os.Getenv("YTSTATS_MAX_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.MaxBackoff = d
		}
	}
}

// Validate checks the configuration needed by every command.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%w: DATABASE_URL", ErrMissingCredential)
	}
	if c.MaxVideos < 0 {
		return fmt.Errorf("max_videos must be non-negative")
	}
	if c.MinDuration < 0 {
		return fmt.Errorf("min_duration_seconds must be non-negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	if c.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be positive")
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("max_backoff must be >= initial_backoff")
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive")
	}
	return nil
}

// ValidateSync checks the additional configuration the sync command needs.
func (c *Config) ValidateSync() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("%w: YOUTUBE_API_KEY", ErrMissingCredential)
	}
	if len(c.Channels) == 0 {
		return fmt.Errorf("no channels configured")
	}
	seen := make(map[string]bool, len(c.Channels))
	for _, ch := range c.Channels {
		if ch.Slug == "" {
			return fmt.Errorf("channel with empty slug")
		}
		if seen[ch.Slug] {
			return fmt.Errorf("duplicate channel slug %q", ch.Slug)
		}
		seen[ch.Slug] = true
	}
	return nil
}
