package config

import "time"

// Default values for configuration fields.
const (
	// Logging defaults
	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = "json"

	// Metrics defaults
	DefaultMetricsEnabled = true
	DefaultMetricsAddress = "127.0.0.1:9464"
	DefaultMetricsPath    = "/metrics"

	// Budget defaults
	DefaultPolicyName = "default_episode"

	// Throttle defaults
	DefaultThrottleMaxDelay               = 5 * time.Second
	DefaultThrottleBackoffFactor          = 2.0
	DefaultThrottleMinQualityFactor       = 0.1
	DefaultThrottleQualityDegradationRate = 0.2

	// Sweeper defaults
	DefaultSweeperSchedule     = "0 * * * *"
	DefaultSweeperRetentionAge = 24 * time.Hour
)

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}

	// Metrics defaults
	if cfg.Metrics.ListenAddress == "" {
		cfg.Metrics.ListenAddress = DefaultMetricsAddress
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}

	// Budget defaults
	if cfg.Budget.DefaultPolicy == "" {
		cfg.Budget.DefaultPolicy = DefaultPolicyName
	}
	for i, policy := range cfg.Budget.Policies {
		if policy.SoftLimitUSD == 0 {
			policy.SoftLimitUSD = policy.LimitUSD * 0.8
		}
		cfg.Budget.Policies[i] = policy
	}

	// Throttle defaults - applied to each operation
	for i, op := range cfg.Throttle.Operations {
		if op.MaxDelay == 0 {
			op.MaxDelay = DefaultThrottleMaxDelay
		}
		if op.BackoffFactor == 0 {
			op.BackoffFactor = DefaultThrottleBackoffFactor
		}
		if op.MinQualityFactor == 0 {
			op.MinQualityFactor = DefaultThrottleMinQualityFactor
		}
		if op.QualityDegradationRate == 0 {
			op.QualityDegradationRate = DefaultThrottleQualityDegradationRate
		}
		cfg.Throttle.Operations[i] = op
	}

	// Sweeper defaults
	if cfg.Sweeper.Schedule == "" {
		cfg.Sweeper.Schedule = DefaultSweeperSchedule
	}
	if cfg.Sweeper.RetentionAge == 0 {
		cfg.Sweeper.RetentionAge = DefaultSweeperRetentionAge
	}
}
