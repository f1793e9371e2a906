// Package config loads and validates violette configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/edgerunner0x01/violette/internal/live"
	"github.com/edgerunner0x01/violette/internal/logging"
	"github.com/edgerunner0x01/violette/internal/store"
)

// Config represents the complete violette configuration.
type Config struct {
	// Store configuration
	Store store.Config `yaml:"store" json:"store"`

	// Scanning configuration
	Scanning ScanningConfig `yaml:"scanning" json:"scanning"`

	// Live view configuration
	Live live.Config `yaml:"live" json:"live"`

	// Logging configuration
	Logging logging.Config `yaml:"logging" json:"logging"`
}

// ScanningConfig holds scanning-related settings.
type ScanningConfig struct {
	// Number of concurrent probe workers
	Concurrency int `yaml:"concurrency" json:"concurrency" validate:"gt=0"`

	// Maximum probe duration per host
	TimeoutPerHost time.Duration `yaml:"timeout_per_host" json:"timeout_per_host" validate:"gt=0"`

	// Age beyond which a stored result no longer suppresses a re-probe
	RecencyThreshold time.Duration `yaml:"recency_threshold" json:"recency_threshold" validate:"gt=0"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Store: store.DefaultConfig(),
		Scanning: ScanningConfig{
			Concurrency:      10,
			TimeoutPerHost:   300 * time.Second,
			RecencyThreshold: 24 * time.Hour,
		},
		Live:    live.DefaultConfig(),
		Logging: logging.DefaultConfig(),
	}
}

// Load reads a YAML configuration file over the defaults. A missing file is
// not an error; the defaults stand.
func Load(path string) (*Config, error) {
	config := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// Validate checks structural constraints and value ranges.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if c.Store.Path == "" {
		return fmt.Errorf("store path is required")
	}
	if c.Live.Port <= 0 || c.Live.Port > 65535 {
		return fmt.Errorf("live view port must be between 1 and 65535")
	}

	switch c.Logging.Level {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
