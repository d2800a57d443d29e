package main

import (
	"fmt"
	"os"

	"steward-hq/quaestor/pkg/budget"
	"steward-hq/quaestor/pkg/config"
	"steward-hq/quaestor/pkg/rbac"
	"steward-hq/quaestor/pkg/throttle"
)

// loadConfig loads the configuration file, falling back to built-in
// defaults when the default file path does not exist. An explicitly named
// file that is missing or invalid is an error.
func loadConfig(explicit bool) (*config.Config, error) {
	if !explicit {
		if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
			return config.Default(), nil
		}
	}
	return config.LoadWithEnvOverrides(cfgFile)
}

// buildEngine assembles the budget manager and throttle service from the
// configuration: profiles, file-declared policies, and per-operation
// throttle configs.
func buildEngine(cfg *config.Config, metrics bool) (*budget.Manager, *throttle.Service, error) {
	registry := rbac.NewRegistry()
	for _, profile := range cfg.Profiles {
		registry.Register(rbac.NewProfile(profile.UserID, profile.UserID, rbac.Role(profile.Role)))
	}

	var budgetMetrics *budget.Metrics
	var throttleMetrics *throttle.Metrics
	if metrics {
		budgetMetrics = budget.NewMetrics(nil)
		throttleMetrics = throttle.NewMetrics(nil)
	}

	manager := budget.NewManager(budget.ManagerConfig{
		Profiles: registry,
		Metrics:  budgetMetrics,
	})

	if err := applyBudgetConfig(manager, &cfg.Budget); err != nil {
		return nil, nil, err
	}

	service := throttle.NewService(manager, throttle.ServiceConfig{
		Metrics: throttleMetrics,
	})
	applyThrottleConfig(service, &cfg.Throttle)

	return manager, service, nil
}

// applyBudgetConfig installs the file-declared policies through the
// trusted system path. Existing policies with the same name are replaced.
func applyBudgetConfig(manager *budget.Manager, cfg *config.BudgetConfig) error {
	for _, spec := range cfg.Policies {
		opts := []budget.PolicyOption{
			budget.WithSoftLimit(spec.SoftLimitUSD),
		}
		if spec.Description != "" {
			opts = append(opts, budget.WithDescription(spec.Description))
		}
		if spec.GracePeriod > 0 {
			opts = append(opts, budget.WithGracePeriod(spec.GracePeriod))
		}

		policy, err := budget.NewPolicy(
			spec.Name,
			budget.Period(spec.Period),
			spec.LimitUSD,
			budget.Action(spec.Action),
			opts...,
		)
		if err != nil {
			return fmt.Errorf("policy %q: %w", spec.Name, err)
		}
		policy.MaxTokensPerOperation = spec.MaxTokensPerOperation
		policy.MaxOperationsPerPeriod = spec.MaxOperationsPerPeriod

		if err := manager.AddPolicy(policy, ""); err != nil {
			return fmt.Errorf("policy %q: %w", spec.Name, err)
		}
	}
	return nil
}

// applyThrottleConfig registers the file-declared per-operation throttle
// configs, replacing built-in defaults of the same name.
func applyThrottleConfig(service *throttle.Service, cfg *config.ThrottleConfig) {
	for _, spec := range cfg.Operations {
		service.AddConfig(throttle.Config{
			Operation:              spec.Operation,
			BaseDelay:              spec.BaseDelay,
			MaxDelay:               spec.MaxDelay,
			BackoffFactor:          spec.BackoffFactor,
			Jitter:                 spec.Jitter,
			MinQualityFactor:       spec.MinQualityFactor,
			QualityDegradationRate: spec.QualityDegradationRate,
		})
	}
}
