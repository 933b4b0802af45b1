// Package config loads the YAML configuration file and supplies defaults
// for everything it omits.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied for any field the config file omits.
const (
	DefaultFeedURL     = "https://roadmap-feed.microsoft.com/api/v1/features"
	DefaultLinkBaseURL = "https://www.microsoft.com/microsoft-365/roadmap?searchterms="
	DefaultStaleHours  = 24
	DefaultTimeoutSecs = 30
)

// Config holds every tunable of the mirror.
type Config struct {
	// FeedURL is the remote catalog endpoint.
	FeedURL string `yaml:"feed_url"`

	// DatabasePath is the store file location. Defaults to
	// roadmap/catalog.db under the per-user state directory.
	DatabasePath string `yaml:"database_path"`

	// SeedPath is an optional pre-built snapshot copied into place when no
	// database exists yet.
	SeedPath string `yaml:"seed_path"`

	// LinkBaseURL is the prefix search results build their reference URL
	// from; the feature ID is appended.
	LinkBaseURL string `yaml:"link_base_url"`

	// StaleHours is the checkpoint age at which data counts as stale:
	// non-forced syncs below it are skipped, IsSyncNeeded reports true at
	// or above it.
	StaleHours int `yaml:"stale_hours"`

	// FetchTimeoutSecs bounds each fetch attempt.
	FetchTimeoutSecs int `yaml:"fetch_timeout_secs"`
}

// FetchTimeout returns the per-attempt fetch timeout as a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSecs) * time.Second
}

// Default returns the built-in configuration.
func Default() (Config, error) {
	dir, err := stateDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		FeedURL:          DefaultFeedURL,
		DatabasePath:     filepath.Join(dir, "catalog.db"),
		LinkBaseURL:      DefaultLinkBaseURL,
		StaleHours:       DefaultStaleHours,
		FetchTimeoutSecs: DefaultTimeoutSecs,
	}, nil
}

// Load reads the YAML file at path over the defaults. A missing file is
// not an error - the defaults stand.
func Load(path string) (Config, error) {
	cfg, err := Default()
	if err != nil {
		return Config{}, err
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.merge(file)
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) merge(o Config) {
	if o.FeedURL != "" {
		c.FeedURL = o.FeedURL
	}
	if o.DatabasePath != "" {
		c.DatabasePath = o.DatabasePath
	}
	if o.SeedPath != "" {
		c.SeedPath = o.SeedPath
	}
	if o.LinkBaseURL != "" {
		c.LinkBaseURL = o.LinkBaseURL
	}
	if o.StaleHours != 0 {
		c.StaleHours = o.StaleHours
	}
	if o.FetchTimeoutSecs != 0 {
		c.FetchTimeoutSecs = o.FetchTimeoutSecs
	}
}

func (c *Config) validate() error {
	if c.StaleHours < 0 {
		return fmt.Errorf("stale_hours must be non-negative, got %d", c.StaleHours)
	}
	if c.FetchTimeoutSecs <= 0 {
		return fmt.Errorf("fetch_timeout_secs must be positive, got %d", c.FetchTimeoutSecs)
	}
	return nil
}

// stateDir returns the per-user directory the store file lives in.
func stateDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(base, "roadmap"), nil
}
