package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"steward-hq/quaestor/pkg/budget"
	"steward-hq/quaestor/pkg/rbac"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "logging.level").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateMetrics(&cfg.Metrics)...)
	errs = append(errs, validateBudget(&cfg.Budget)...)
	errs = append(errs, validateThrottle(&cfg.Throttle)...)
	errs = append(errs, validateSweeper(&cfg.Sweeper)...)
	errs = append(errs, validateProfiles(cfg.Profiles)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateLogging(cfg *LoggingConfig) []FieldError {
	var errs []FieldError

	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level %q (must be debug, info, warn, or error)", cfg.Level),
		})
	}

	switch cfg.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid format %q (must be json or text)", cfg.Format),
		})
	}

	return errs
}

func validateMetrics(cfg *MetricsConfig) []FieldError {
	var errs []FieldError

	if cfg.Enabled && cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "metrics.listen_address",
			Message: "listen address is required when metrics are enabled",
		})
	}
	if cfg.Enabled && !strings.HasPrefix(cfg.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "metrics.path",
			Message: "path must start with /",
		})
	}

	return errs
}

func validateBudget(cfg *BudgetConfig) []FieldError {
	var errs []FieldError

	seen := make(map[string]bool, len(cfg.Policies))
	for i, policy := range cfg.Policies {
		field := func(name string) string {
			return fmt.Sprintf("budget.policies[%d].%s", i, name)
		}

		if policy.Name == "" {
			errs = append(errs, FieldError{
				Field:   field("name"),
				Message: "policy name is required",
			})
		}
		if seen[policy.Name] {
			errs = append(errs, FieldError{
				Field:   field("name"),
				Message: fmt.Sprintf("duplicate policy name %q", policy.Name),
			})
		}
		seen[policy.Name] = true

		if !budget.Period(policy.Period).Valid() {
			errs = append(errs, FieldError{
				Field:   field("period"),
				Message: fmt.Sprintf("invalid period %q", policy.Period),
			})
		}
		if !budget.Action(policy.Action).Valid() {
			errs = append(errs, FieldError{
				Field:   field("action"),
				Message: fmt.Sprintf("invalid action %q", policy.Action),
			})
		}
		if policy.LimitUSD <= 0 {
			errs = append(errs, FieldError{
				Field:   field("limit_usd"),
				Message: "limit must be positive",
			})
		}
		if policy.SoftLimitUSD < 0 || policy.SoftLimitUSD >= policy.LimitUSD {
			errs = append(errs, FieldError{
				Field:   field("soft_limit_usd"),
				Message: "soft limit must be non-negative and below the hard limit",
			})
		}
		if policy.GracePeriod < 0 {
			errs = append(errs, FieldError{
				Field:   field("grace_period"),
				Message: "grace period must be non-negative",
			})
		}
	}

	return errs
}

func validateThrottle(cfg *ThrottleConfig) []FieldError {
	var errs []FieldError

	seen := make(map[string]bool, len(cfg.Operations))
	for i, op := range cfg.Operations {
		field := func(name string) string {
			return fmt.Sprintf("throttle.operations[%d].%s", i, name)
		}

		if op.Operation == "" {
			errs = append(errs, FieldError{
				Field:   field("operation"),
				Message: "operation name is required",
			})
		}
		if seen[op.Operation] {
			errs = append(errs, FieldError{
				Field:   field("operation"),
				Message: fmt.Sprintf("duplicate operation %q", op.Operation),
			})
		}
		seen[op.Operation] = true

		if op.BaseDelay < 0 {
			errs = append(errs, FieldError{
				Field:   field("base_delay"),
				Message: "base delay must be non-negative",
			})
		}
		if op.MaxDelay < op.BaseDelay {
			errs = append(errs, FieldError{
				Field:   field("max_delay"),
				Message: "max delay must be at least the base delay",
			})
		}
		if op.BackoffFactor < 1 {
			errs = append(errs, FieldError{
				Field:   field("backoff_factor"),
				Message: "backoff factor must be at least 1",
			})
		}
		if op.Jitter < 0 {
			errs = append(errs, FieldError{
				Field:   field("jitter"),
				Message: "jitter must be non-negative",
			})
		}
		if op.MinQualityFactor <= 0 || op.MinQualityFactor > 1 {
			errs = append(errs, FieldError{
				Field:   field("min_quality_factor"),
				Message: "min quality factor must be in (0, 1]",
			})
		}
		if op.QualityDegradationRate < 0 || op.QualityDegradationRate > 1 {
			errs = append(errs, FieldError{
				Field:   field("quality_degradation_rate"),
				Message: "quality degradation rate must be in [0, 1]",
			})
		}
	}

	return errs
}

func validateSweeper(cfg *SweeperConfig) []FieldError {
	var errs []FieldError

	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "sweeper.schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.Schedule, err),
			})
		}
	}
	if cfg.RetentionAge < 0 {
		errs = append(errs, FieldError{
			Field:   "sweeper.retention_age",
			Message: "retention age must be non-negative",
		})
	}

	return errs
}

func validateProfiles(profiles []ProfileConfig) []FieldError {
	var errs []FieldError

	seen := make(map[string]bool, len(profiles))
	for i, profile := range profiles {
		field := func(name string) string {
			return fmt.Sprintf("profiles[%d].%s", i, name)
		}

		if profile.UserID == "" {
			errs = append(errs, FieldError{
				Field:   field("user_id"),
				Message: "user id is required",
			})
		}
		if seen[profile.UserID] {
			errs = append(errs, FieldError{
				Field:   field("user_id"),
				Message: fmt.Sprintf("duplicate user id %q", profile.UserID),
			})
		}
		seen[profile.UserID] = true

		if !rbac.Role(profile.Role).Valid() {
			errs = append(errs, FieldError{
				Field:   field("role"),
				Message: fmt.Sprintf("invalid role %q", profile.Role),
			})
		}
	}

	return errs
}
