// Package config loads updater settings from YAML.
//
// Configuration comes from a single file named by either the
// STALECACHE_CONFIG environment variable (via Load) or an explicit path
// (via LoadFile). There is no search path. Keys missing from the file
// keep the values from Default.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/krisalay/stalecache/refresh"
	"github.com/krisalay/stalecache/types"
)

// EnvVar names the environment variable read by Load.
const EnvVar = "STALECACHE_CONFIG"

// Config holds the tunables of the refresh subsystem.
type Config struct {
	// FreshnessThreshold is the maximum age of cached data before an
	// ensure policy refreshes it.
	// Default: 5s
	FreshnessThreshold string `yaml:"freshness_threshold"`

	// ProgressThreshold is the polling interval for task progress
	// reporting above this layer.
	// Default: 1s
	ProgressThreshold string `yaml:"progress_threshold"`

	// EmptyCollection is how collection updaters treat an empty result.
	// Values: "deleted", "value". "deleted" is the legacy convention: a
	// list that becomes empty is frozen at its last non-empty snapshot.
	// Default: value
	EmptyCollection string `yaml:"empty_collection"`

	// LogLevel is one of debug, info, warn, error.
	// Default: info
	LogLevel string `yaml:"log_level"`

	// RegistryCapacity bounds the number of proxies kept in a registry.
	// Default: 1024
	RegistryCapacity int `yaml:"registry_capacity"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		FreshnessThreshold: types.DefaultFreshnessThreshold.String(),
		ProgressThreshold:  types.DefaultProgressThreshold.String(),
		EmptyCollection:    "value",
		LogLevel:           "info",
		RegistryCapacity:   1024,
	}
}

// Load reads the file named by STALECACHE_CONFIG. An unset variable
// yields Default.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads and validates the YAML file at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field.
func (c *Config) Validate() error {
	var errs []error

	if _, err := parsePositive("freshness_threshold", c.FreshnessThreshold); err != nil {
		errs = append(errs, err)
	}
	if _, err := parsePositive("progress_threshold", c.ProgressThreshold); err != nil {
		errs = append(errs, err)
	}
	if c.EmptyCollection != "deleted" && c.EmptyCollection != "value" {
		errs = append(errs, fmt.Errorf("empty_collection must be \"deleted\" or \"value\", got %q", c.EmptyCollection))
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.RegistryCapacity <= 0 {
		errs = append(errs, fmt.Errorf("registry_capacity must be positive, got %d", c.RegistryCapacity))
	}

	return errors.Join(errs...)
}

// Freshness returns the parsed freshness threshold.
func (c *Config) Freshness() time.Duration {
	d, err := parsePositive("freshness_threshold", c.FreshnessThreshold)
	if err != nil {
		return types.DefaultFreshnessThreshold
	}
	return d
}

// Progress returns the parsed progress threshold.
func (c *Config) Progress() time.Duration {
	d, err := parsePositive("progress_threshold", c.ProgressThreshold)
	if err != nil {
		return types.DefaultProgressThreshold
	}
	return d
}

// EmptyMode maps EmptyCollection to a refresh.EmptyCollection.
func (c *Config) EmptyMode() refresh.EmptyCollection {
	if c.EmptyCollection == "value" {
		return refresh.EmptyIsValue
	}
	return refresh.EmptyIsDeleted
}

// Level returns the parsed log level, or Info when it does not parse.
func (c *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func parsePositive(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", name, value)
	}
	return d, nil
}
