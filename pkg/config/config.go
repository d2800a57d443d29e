package config

import "time"

// Config is the root configuration structure for quaestor.
type Config struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains the Prometheus exposition configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Budget contains budget policies and admission settings.
	Budget BudgetConfig `yaml:"budget"`

	// Throttle contains per-operation throttle configurations.
	Throttle ThrottleConfig `yaml:"throttle"`

	// Sweeper contains usage bucket pruning configuration.
	Sweeper SweeperConfig `yaml:"sweeper"`

	// Profiles contains the known user profiles and their roles.
	Profiles []ProfileConfig `yaml:"profiles"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus exposition configuration.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// ListenAddress is the address for the metrics HTTP server.
	// Default: "127.0.0.1:9464"
	ListenAddress string `yaml:"listen_address"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`
}

// BudgetConfig contains budget policies and admission settings.
type BudgetConfig struct {
	// DefaultPolicy is the policy applied when a check names none.
	// Default: "default_episode"
	DefaultPolicy string `yaml:"default_policy"`

	// Policies contains additional policies installed at startup, on top
	// of the built-in system policies.
	Policies []PolicyConfig `yaml:"policies"`
}

// PolicyConfig declares one budget policy in the configuration file.
type PolicyConfig struct {
	// Name uniquely identifies the policy.
	Name string `yaml:"name"`

	// Period is the budget accounting period.
	// Options: "per_hour", "per_day", "per_week", "per_month",
	// "per_episode", "per_operation"
	Period string `yaml:"period"`

	// LimitUSD is the hard limit in dollars. Must be positive.
	LimitUSD float64 `yaml:"limit_usd"`

	// SoftLimitUSD is the warning threshold in dollars. Must be below
	// LimitUSD when set.
	// Default: 80% of LimitUSD
	SoftLimitUSD float64 `yaml:"soft_limit_usd"`

	// Action is taken when the hard limit is reached.
	// Options: "warn", "throttle", "block", "graceful_degradation"
	Action string `yaml:"action"`

	// Description is free text shown in summaries.
	Description string `yaml:"description"`

	// GracePeriod allows operations briefly past the hard limit.
	GracePeriod time.Duration `yaml:"grace_period"`

	// MaxTokensPerOperation caps tokens per operation (0 = unlimited).
	MaxTokensPerOperation int `yaml:"max_tokens_per_operation"`

	// MaxOperationsPerPeriod caps operation count per period (0 = unlimited).
	MaxOperationsPerPeriod int `yaml:"max_operations_per_period"`
}

// ThrottleConfig contains per-operation throttle configurations.
type ThrottleConfig struct {
	// Operations contains throttle configs keyed by operation class,
	// replacing or extending the built-in defaults.
	Operations []OperationThrottleConfig `yaml:"operations"`
}

// OperationThrottleConfig declares the throttle shape for one operation
// class.
type OperationThrottleConfig struct {
	// Operation is the operation class name (e.g. "llm_call").
	Operation string `yaml:"operation"`

	// BaseDelay is the delay at the first throttled call.
	BaseDelay time.Duration `yaml:"base_delay"`

	// MaxDelay caps the computed delay before jitter.
	// Default: 5s
	MaxDelay time.Duration `yaml:"max_delay"`

	// BackoffFactor is the exponential growth factor.
	// Default: 2.0
	BackoffFactor float64 `yaml:"backoff_factor"`

	// Jitter is the maximum absolute jitter added to the delay.
	Jitter time.Duration `yaml:"jitter"`

	// MinQualityFactor is the floor for quality degradation.
	// Default: 0.1
	MinQualityFactor float64 `yaml:"min_quality_factor"`

	// QualityDegradationRate is the per-throttle quality reduction.
	// Default: 0.2
	QualityDegradationRate float64 `yaml:"quality_degradation_rate"`
}

// SweeperConfig contains usage bucket pruning configuration.
type SweeperConfig struct {
	// Schedule is a cron expression for the pruning sweep.
	// Empty disables the sweeper.
	// Default: "0 * * * *" (hourly)
	Schedule string `yaml:"schedule"`

	// RetentionAge is how long single-use buckets are kept after their
	// last update. 0 keeps them forever.
	// Default: 24h
	RetentionAge time.Duration `yaml:"retention_age"`
}

// ProfileConfig declares one known user and their role.
type ProfileConfig struct {
	// UserID identifies the user.
	UserID string `yaml:"user_id"`

	// Role is the user's role.
	// Options: "user", "admin", "super_admin"
	Role string `yaml:"role"`
}
