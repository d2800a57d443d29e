package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any
// errors. Environment variables are not consulted; use LoadWithEnvOverrides
// for that.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention QUAESTOR_SECTION_FIELD (e.g., QUAESTOR_LOGGING_LEVEL) and
// always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadWithEnvOverrides(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	cfg := &Config{
		Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
	}
	ApplyDefaults(cfg)
	return cfg
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables use the format QUAESTOR_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Logging overrides
	if val := os.Getenv("QUAESTOR_LOGGING_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("QUAESTOR_LOGGING_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}
	if val := os.Getenv("QUAESTOR_LOGGING_ADD_SOURCE"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Logging.AddSource = b
		}
	}

	// Metrics overrides
	if val := os.Getenv("QUAESTOR_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("QUAESTOR_METRICS_LISTEN_ADDRESS"); val != "" {
		cfg.Metrics.ListenAddress = val
	}
	if val := os.Getenv("QUAESTOR_METRICS_PATH"); val != "" {
		cfg.Metrics.Path = val
	}

	// Budget overrides
	if val := os.Getenv("QUAESTOR_BUDGET_DEFAULT_POLICY"); val != "" {
		cfg.Budget.DefaultPolicy = val
	}

	// Sweeper overrides
	if val := os.Getenv("QUAESTOR_SWEEPER_SCHEDULE"); val != "" {
		cfg.Sweeper.Schedule = val
	}
	if val := os.Getenv("QUAESTOR_SWEEPER_RETENTION_AGE"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Sweeper.RetentionAge = d
		}
	}
}
