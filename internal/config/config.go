// Package config holds all habitsync configuration: a YAML file for the
// durable settings plus environment overrides for the secrets, so the API
// token never has to live on disk.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the full habitsync configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`

	// TagPurposes maps a purpose label (e.g. "work", "habitsync") to the id
	// of the tag that marks it. Optional; features needing a purpose tag
	// stay off when its entry is absent.
	TagPurposes map[string]string `yaml:"tag_purposes"`
}

// APIConfig carries the service credentials and endpoint.
type APIConfig struct {
	UserID   string `yaml:"user_id" env:"HABITICA_USER_ID"`
	APIToken string `yaml:"api_token" env:"HABITICA_API_TOKEN"`
	BaseURL  string `yaml:"base_url" env:"HABITICA_BASE_URL"`
	Timeout  string `yaml:"timeout"` // Go duration string, e.g. "30s"
}

// RequestTimeout parses the configured timeout, falling back to 30s on a
// missing or malformed value.
func (a APIConfig) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(a.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// CacheConfig locates the local cache files (content catalog, challenge
// list). All of them are plain JSON and safe to delete.
type CacheConfig struct {
	Dir string `yaml:"dir" env:"HABITSYNC_CACHE_DIR"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	File   string `yaml:"file"`   // empty logs to stderr
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "https://habitica.com/api/v3",
			Timeout: "30s",
		},
		Cache: CacheConfig{
			Dir: defaultCacheDir(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		// Initialized so loading a saved config round-trips to an equal
		// struct (env.Parse allocates the map either way).
		TagPurposes: map[string]string{},
	}
}

func defaultCacheDir() string {
	if base, err := os.UserCacheDir(); err == nil {
		return filepath.Join(base, "habitsync")
	}
	return ".habitsync-cache"
}

// DefaultPath is where Load looks when no --config flag is given.
func DefaultPath() string {
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, "habitsync", "config.yaml")
	}
	return "habitsync.yaml"
}

// Load reads the YAML file at path (missing file means defaults), then
// applies environment overrides on top.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file, creating the directory as
// needed. Used by the init command to drop a starter config.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks the startup invariants. Missing credentials are fatal:
// the engine never prompts for or invents them.
func (c *Config) Validate() error {
	if c.API.UserID == "" {
		return fmt.Errorf("missing account id: set api.user_id or HABITICA_USER_ID")
	}
	if c.API.APIToken == "" {
		return fmt.Errorf("missing API token: set api.api_token or HABITICA_API_TOKEN")
	}
	return nil
}
