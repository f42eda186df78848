// Package config loads and validates seqhound's engine configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete seqhound engine configuration.
type Config struct {
	Rules    RulesConfig    `yaml:"rules"`
	Engine   EngineConfig   `yaml:"engine"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Log      LogConfig      `yaml:"log"`
}

// RulesConfig locates the rule document(s) and how to pick up changes.
type RulesConfig struct {
	Path     string `yaml:"path"`
	ReloadOn string `yaml:"reload_on"` // "fsnotify" or "off"
}

// EngineConfig tunes the correlation engine's internal storage.
type EngineConfig struct {
	ShardCount       int `yaml:"shard_count"`
	GCIntervalEvents int `yaml:"gc_interval_events"`
}

// SnapshotConfig controls periodic, off-hot-path persistence of
// correlation-state observability data.
type SnapshotConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Path     string        `yaml:"path"`
	Interval time.Duration `yaml:"interval"`
}

// LogConfig controls console logging verbosity.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads, expands, and validates the configuration file at path.
func Load(path string) (*Config, error) {
	return LoadWithOptions(path, false)
}

// LoadForReadOnly loads config without requiring snapshot settings to be
// fully valid, for commands (validate, test) that never touch the
// snapshot store.
func LoadForReadOnly(path string) (*Config, error) {
	return LoadWithOptions(path, true)
}

// LoadWithOptions reads configuration with optional validation skips.
func LoadWithOptions(path string, skipSnapshotValidation bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.ValidateWithOptions(skipSnapshotValidation); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Rules.Path == "" {
		c.Rules.Path = "/etc/seqhound/rules.yaml"
	}
	if c.Rules.ReloadOn == "" {
		c.Rules.ReloadOn = "fsnotify"
	}

	if c.Engine.ShardCount == 0 {
		c.Engine.ShardCount = 16
	}
	if c.Engine.GCIntervalEvents == 0 {
		c.Engine.GCIntervalEvents = 1
	}

	if c.Snapshot.Path == "" {
		c.Snapshot.Path = "/var/lib/seqhound/snapshot.db"
	}
	if c.Snapshot.Interval == 0 {
		c.Snapshot.Interval = 5 * time.Minute
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return c.ValidateWithOptions(false)
}

// ValidateWithOptions checks configuration with optional validation skips.
func (c *Config) ValidateWithOptions(skipSnapshot bool) error {
	if !isValidLogLevel(c.Log.Level) {
		return fmt.Errorf("log.level invalid: %s", c.Log.Level)
	}

	if !filepath.IsAbs(c.Rules.Path) {
		return fmt.Errorf("rules.path must be an absolute path")
	}
	if c.Rules.ReloadOn != "fsnotify" && c.Rules.ReloadOn != "off" {
		return fmt.Errorf("rules.reload_on must be 'fsnotify' or 'off'")
	}

	if c.Engine.ShardCount <= 0 {
		return fmt.Errorf("engine.shard_count must be positive")
	}
	if c.Engine.ShardCount > 4096 {
		return fmt.Errorf("engine.shard_count too large (max 4096)")
	}
	if c.Engine.GCIntervalEvents <= 0 {
		return fmt.Errorf("engine.gc_interval_events must be positive")
	}

	if !skipSnapshot && c.Snapshot.Enabled {
		if !filepath.IsAbs(c.Snapshot.Path) {
			return fmt.Errorf("snapshot.path must be an absolute path")
		}
		if c.Snapshot.Interval <= 0 {
			return fmt.Errorf("snapshot.interval must be positive")
		}
		if c.Snapshot.Interval > 24*time.Hour {
			return fmt.Errorf("snapshot.interval too large (max 24h)")
		}
	}

	return nil
}

func isValidLogLevel(level string) bool {
	level = strings.ToLower(level)
	return level == "debug" || level == "info" || level == "warn" || level == "error"
}
