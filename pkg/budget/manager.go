package budget

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"steward-hq/quaestor/pkg/rbac"
)

// DefaultPolicyName is the policy checked when a request names none.
const DefaultPolicyName = "default_episode"

// CheckRequest identifies one billable operation to be admitted.
type CheckRequest struct {
	// CostUSD is the declared incremental cost of the operation.
	CostUSD float64

	// Operation names the operation class (llm_call, tool_execution, ...).
	Operation string

	// Tokens is the token count attributed to the operation (optional).
	Tokens int

	// UserID identifies the calling user (optional).
	UserID string

	// SessionID identifies the agent episode (optional). Episode-period
	// buckets accumulate across checks sharing a session ID.
	SessionID string

	// Policy names the budget policy to evaluate. Defaults to
	// DefaultPolicyName.
	Policy string
}

// ManagerConfig configures a Manager. The zero value is usable.
type ManagerConfig struct {
	// Profiles is the user registry consulted by the RBAC gate. A fresh
	// empty registry is created when nil.
	Profiles *rbac.Registry

	// Metrics receives prometheus observations when non-nil.
	Metrics *Metrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Manager owns the policy and usage maps and performs admission checks.
//
// All mutating paths (bucket creation, cost recording, policy mutation)
// are serialized behind a single mutex; a Check is atomic. The Manager is
// an explicitly constructed service object - there is no package-level
// instance.
type Manager struct {
	policies map[string]*Policy
	usage    map[string]*Usage

	profiles *rbac.Registry
	gate     *rbac.Gate

	sinks   []AlertSink
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time

	mu sync.RWMutex
}

// NewManager creates a Manager with the default system policies seeded.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Profiles == nil {
		cfg.Profiles = rbac.NewRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	m := &Manager{
		policies: make(map[string]*Policy),
		usage:    make(map[string]*Usage),
		profiles: cfg.Profiles,
		gate:     rbac.NewGate(cfg.Profiles),
		metrics:  cfg.Metrics,
		logger:   cfg.Logger.With("component", "budget.manager"),
		now:      cfg.Clock,
	}

	m.seedDefaults()

	m.logger.Info("budget manager initialized", "policies", len(m.policies))
	return m
}

// seedDefaults installs the system policies through the trusted path.
func (m *Manager) seedDefaults() {
	seed := func(name string, period Period, limit float64, action Action, desc string) {
		policy, err := NewPolicy(name, period, limit, action,
			WithDescription(desc), AsSystemPolicy())
		if err != nil {
			// Seed values are compile-time constants; a failure here is a
			// programming error.
			panic(fmt.Sprintf("budget: invalid seed policy %q: %v", name, err))
		}
		policy.CreatedBy = "system"
		m.policies[policy.Name] = policy
	}

	seed(DefaultPolicyName, PeriodPerEpisode, 1.00, ActionThrottle,
		"Default per-episode limit for agent runs")
	seed("hourly_limit", PeriodPerHour, 10.00, ActionWarn,
		"Hourly limit for continuous operation")
	seed("daily_limit", PeriodPerDay, 50.00, ActionBlock,
		"Critical daily limit")
	seed("per_operation", PeriodPerOperation, 0.10, ActionWarn,
		"Limit for a single operation")
}

// RegisterProfile adds or replaces a user profile (idempotent upsert).
func (m *Manager) RegisterProfile(profile *rbac.Profile) {
	m.profiles.Register(profile)
	m.logger.Info("user profile registered",
		"user_id", profile.UserID,
		"username", profile.Username,
		"role", string(profile.Role),
	)
}

// Profiles returns the profile registry shared with the RBAC gate.
func (m *Manager) Profiles() *rbac.Registry {
	return m.profiles
}

// AddSink registers an alert sink. Sinks are invoked outside the manager
// lock; a sink error or panic is logged and never propagated.
func (m *Manager) AddSink(sink AlertSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, sink)
}

// Check decides whether an operation may proceed under the named policy.
//
// The thresholds are evaluated against the bucket's accumulation before
// this operation: Check gates the next operation given current spending,
// it does not look ahead at what this cost would push the total to. When
// the operation is admitted its cost is recorded immediately; rejected
// operations are never charged.
//
// An unknown policy name fails open with a warning - a configuration gap
// must not silently block the agent.
func (m *Manager) Check(ctx context.Context, req CheckRequest) *Decision {
	if req.Policy == "" {
		req.Policy = DefaultPolicyName
	}

	decision, alert := m.check(req)

	if alert != nil {
		m.dispatch(ctx, *alert)
	}

	if m.metrics != nil {
		m.metrics.RecordCheck(req.Policy, decision.Allowed)
		if decision.LimitUSD > 0 {
			m.metrics.UpdateUsage(req.Policy, decision.UsagePercentage)
		}
	}

	m.logger.Debug("budget check completed",
		"operation", req.Operation,
		"policy", req.Policy,
		"cost_usd", req.CostUSD,
		"allowed", decision.Allowed,
		"action", string(decision.Action),
		"usage_pct", decision.UsagePercentage,
	)

	return decision
}

// check performs the locked portion of Check and returns the decision plus
// any alert to dispatch once the lock is released.
func (m *Manager) check(req CheckRequest) (*Decision, *Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	policy, ok := m.policies[req.Policy]
	if !ok {
		m.logger.Warn("budget policy not found, failing open",
			"policy", req.Policy,
			"operation", req.Operation,
		)
		return &Decision{
			Allowed:         true,
			Action:          ActionWarn,
			Message:         fmt.Sprintf("policy %q not found", req.Policy),
			UsagePercentage: 0,
			RemainingUSD:    math.Inf(1),
			PolicyName:      req.Policy,
		}, nil
	}

	key := usageKey(policy.Period, req.SessionID, now)
	usage, ok := m.usage[key]
	if !ok {
		usage = &Usage{
			Period:      policy.Period,
			PeriodStart: periodStart(policy.Period, now),
		}
		m.usage[key] = usage
	}

	softExceeded := usage.CurrentUSD >= policy.SoftLimitUSD
	hardExceeded := usage.CurrentUSD >= policy.LimitUSD

	pct := usage.percentage(policy.LimitUSD)
	remaining := math.Max(0, policy.LimitUSD-usage.CurrentUSD)

	var (
		action  Action
		allowed bool
		message string
		alert   *Alert
	)

	switch {
	case hardExceeded:
		action = policy.OnExceed
		allowed = action != ActionBlock
		message = fmt.Sprintf("budget exceeded: $%.4f / $%.4f",
			usage.CurrentUSD, policy.LimitUSD)
		// Hard-limit alerts always fire; NotifyOnHardLimit is advisory
		// for sinks.
		alert = m.newAlertLocked(policy, usage, AlertHardLimit, now)

	case softExceeded:
		action = ActionWarn
		allowed = true
		message = fmt.Sprintf("soft limit reached: $%.4f / $%.4f",
			usage.CurrentUSD, policy.SoftLimitUSD)
		if policy.NotifyOnSoftLimit {
			alert = m.newAlertLocked(policy, usage, AlertSoftLimit, now)
		}

	default:
		action = ActionWarn
		allowed = true
		message = fmt.Sprintf("budget ok: $%.4f / $%.4f",
			usage.CurrentUSD, policy.LimitUSD)
	}

	decision := &Decision{
		Allowed:         allowed,
		Action:          action,
		Message:         message,
		UsagePercentage: pct,
		RemainingUSD:    remaining,
		PolicyName:      policy.Name,
		CurrentUsageUSD: usage.CurrentUSD,
		LimitUSD:        policy.LimitUSD,
	}

	if allowed {
		usage.record(req.CostUSD, req.Tokens, req.Operation, now)
	}

	return decision, alert
}

// newAlertLocked builds an alert and records its ID against the bucket.
// Caller holds the write lock.
func (m *Manager) newAlertLocked(policy *Policy, usage *Usage, alertType string, now time.Time) *Alert {
	severity := SeverityWarning
	if alertType == AlertHardLimit {
		severity = SeverityCritical
	}

	alert := &Alert{
		ID:              uuid.NewString(),
		Severity:        severity,
		PolicyName:      policy.Name,
		Type:            alertType,
		CurrentUsageUSD: usage.CurrentUSD,
		LimitUSD:        policy.LimitUSD,
		UsagePercentage: usage.percentage(policy.LimitUSD),
		Timestamp:       now,
		Message: fmt.Sprintf("budget policy %q: %s ($%.4f of $%.4f)",
			policy.Name, alertType, usage.CurrentUSD, policy.LimitUSD),
	}

	usage.Alerts = append(usage.Alerts, alert.ID)

	if m.metrics != nil {
		m.metrics.RecordAlert(policy.Name, alertType)
	}

	return alert
}

// dispatch fans an alert out to the registered sinks. A sink failure is
// logged and isolated; it never affects the admission decision.
func (m *Manager) dispatch(ctx context.Context, alert Alert) {
	m.mu.RLock()
	sinks := make([]AlertSink, len(m.sinks))
	copy(sinks, m.sinks)
	m.mu.RUnlock()

	for _, sink := range sinks {
		m.notify(sink, alert)
	}

	m.logger.Warn("budget alert generated",
		"alert_id", alert.ID,
		"policy", alert.PolicyName,
		"alert_type", alert.Type,
		"severity", alert.Severity,
		"usage_pct", alert.UsagePercentage,
	)
}

// notify delivers one alert to one sink, containing errors and panics.
func (m *Manager) notify(sink AlertSink, alert Alert) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("alert sink panicked",
				"alert_id", alert.ID,
				"panic", fmt.Sprint(r),
			)
		}
	}()

	if err := sink.Notify(alert); err != nil {
		m.logger.Error("alert sink failed",
			"alert_id", alert.ID,
			"error", err,
		)
	}
}

// CanModify reports whether the user may modify the named policy.
// Unknown users and unknown policies are both false.
func (m *Manager) CanModify(userID, policyName string) bool {
	m.mu.RLock()
	policy, ok := m.policies[policyName]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return m.gate.CanModify(userID, policyMeta(policy))
}

// AddPolicy installs a policy. A non-empty userID must pass the RBAC
// gate: a new name needs create permission, while reusing an existing
// name is a mutation of that policy and is gated on its ownership. A
// replacement keeps the existing policy's provenance and its system
// protection. An empty userID is the trusted system path used for
// seeding and config loading.
func (m *Manager) AddPolicy(policy *Policy, userID string) error {
	if err := policy.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	existing := m.policies[policy.Name]
	m.mu.Unlock()

	if userID != "" {
		if existing != nil {
			if err := m.gate.AssertCanMutate(userID, policyMeta(existing)); err != nil {
				return err
			}
		} else {
			if err := m.gate.AssertCanCreate(userID); err != nil {
				return err
			}
			policy.CreatedBy = userID
		}
	}

	if existing != nil {
		policy.System = existing.System
		policy.CreatedBy = existing.CreatedBy
		policy.CreatedAt = existing.CreatedAt
		policy.ModifiedBy = userID
		policy.ModifiedAt = m.now()
	}

	m.mu.Lock()
	m.policies[policy.Name] = policy
	m.mu.Unlock()

	m.logger.Info("budget policy added",
		"policy", policy.Name,
		"limit_usd", policy.LimitUSD,
		"period", string(policy.Period),
		"created_by", policy.CreatedBy,
	)
	return nil
}

// InstallPolicy validates and installs an externally built proposal (for
// example from the natural-language proposer) on behalf of userID,
// returning the installed policy.
func (m *Manager) InstallPolicy(proposal *Policy, userID string) (*Policy, error) {
	if err := m.AddPolicy(proposal, userID); err != nil {
		return nil, err
	}
	return proposal.clone(), nil
}

// ModifyPolicy applies a patch to an existing policy on behalf of userID.
// The patched policy is re-validated; an invalid patch leaves the policy
// unchanged.
func (m *Manager) ModifyPolicy(name string, patch PolicyPatch, userID string) (*Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	policy, ok := m.policies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPolicyNotFound, name)
	}

	if userID != "" {
		if err := m.gate.AssertCanMutate(userID, policyMeta(policy)); err != nil {
			return nil, err
		}
	}

	updated := policy.clone()
	patch.apply(updated)
	if err := updated.Validate(); err != nil {
		return nil, err
	}

	updated.ModifiedBy = userID
	updated.ModifiedAt = m.now()
	m.policies[name] = updated

	m.logger.Info("budget policy modified",
		"policy", name,
		"modified_by", userID,
	)
	return updated.clone(), nil
}

// RemovePolicy deletes a policy on behalf of userID. System policies are
// permanently undeletable, for every role including super admins.
func (m *Manager) RemovePolicy(name, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	policy, ok := m.policies[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrPolicyNotFound, name)
	}

	if userID != "" {
		if err := m.gate.AssertCanMutate(userID, policyMeta(policy)); err != nil {
			return err
		}
	}

	if policy.System {
		return fmt.Errorf("%w: %q", ErrSystemPolicy, name)
	}

	delete(m.policies, name)

	m.logger.Info("budget policy removed",
		"policy", name,
		"removed_by", userID,
	)
	return nil
}

// Policy returns a copy of the named policy.
func (m *Manager) Policy(name string) (*Policy, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	policy, ok := m.policies[name]
	if !ok {
		return nil, false
	}
	return policy.clone(), true
}

// Policies returns copies of all installed policies keyed by name.
func (m *Manager) Policies() map[string]*Policy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*Policy, len(m.policies))
	for name, policy := range m.policies {
		out[name] = policy.clone()
	}
	return out
}

// policyMeta projects a policy onto the slice the RBAC gate consumes.
func policyMeta(p *Policy) rbac.PolicyMeta {
	return rbac.PolicyMeta{
		Name:      p.Name,
		System:    p.System,
		CreatedBy: p.CreatedBy,
	}
}
