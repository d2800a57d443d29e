package budget

import (
	"time"
)

// Period determines how usage buckets are keyed to wall-clock time.
type Period string

const (
	// PeriodPerOperation creates a fresh single-use bucket per check.
	PeriodPerOperation Period = "per_operation"

	// PeriodPerEpisode scopes a bucket to one agent episode. The bucket is
	// shared by checks carrying the same session ID, and single-use when no
	// session ID is supplied.
	PeriodPerEpisode Period = "per_episode"

	// PeriodPerHour aligns buckets to the top of the hour.
	PeriodPerHour Period = "per_hour"

	// PeriodPerDay aligns buckets to midnight.
	PeriodPerDay Period = "per_day"

	// PeriodPerWeek aligns buckets to Monday 00:00.
	PeriodPerWeek Period = "per_week"

	// PeriodPerMonth aligns buckets to the first of the month, 00:00.
	PeriodPerMonth Period = "per_month"
)

// Valid reports whether the period is one of the known values.
func (p Period) Valid() bool {
	switch p {
	case PeriodPerOperation, PeriodPerEpisode, PeriodPerHour,
		PeriodPerDay, PeriodPerWeek, PeriodPerMonth:
		return true
	}
	return false
}

// Calendar reports whether buckets for this period align to wall-clock
// boundaries (as opposed to being created fresh per check/episode).
func (p Period) Calendar() bool {
	switch p {
	case PeriodPerHour, PeriodPerDay, PeriodPerWeek, PeriodPerMonth:
		return true
	}
	return false
}

// Action is what a policy prescribes once its hard limit is reached.
type Action string

const (
	// ActionWarn allows the operation and emits a warning.
	ActionWarn Action = "warn"

	// ActionThrottle allows the operation but signals it should be delayed.
	ActionThrottle Action = "throttle"

	// ActionBlock rejects the operation outright.
	ActionBlock Action = "block"

	// ActionDegrade allows the operation at reduced quality.
	ActionDegrade Action = "graceful_degradation"
)

// Valid reports whether the action is one of the known values.
func (a Action) Valid() bool {
	switch a {
	case ActionWarn, ActionThrottle, ActionBlock, ActionDegrade:
		return true
	}
	return false
}

// SoftLimitRatio is the default soft limit as a fraction of the hard limit.
const SoftLimitRatio = 0.8

// Policy is a named rule capping cost over a time window.
//
// Policies are constructed through NewPolicy so the invariants
// (limit > 0, soft limit < hard limit) hold for every instance.
type Policy struct {
	// Name uniquely identifies the policy.
	Name string

	// Period determines the usage bucket window.
	Period Period

	// LimitUSD is the hard spending cap (must be > 0).
	LimitUSD float64

	// SoftLimitUSD is the early-warning threshold (must be < LimitUSD).
	// Defaults to SoftLimitRatio x LimitUSD.
	SoftLimitUSD float64

	// OnExceed is the action taken once the hard limit is reached.
	OnExceed Action

	// Description is free-form documentation for operators.
	Description string

	// GracePeriod is how long to tolerate overage before the action
	// hardens. Informational; enforcement is immediate.
	GracePeriod time.Duration

	// MaxTokensPerOperation optionally caps tokens per single operation
	// (0 = unlimited). Informational for dashboards.
	MaxTokensPerOperation int

	// MaxOperationsPerPeriod optionally caps the operation count per
	// bucket (0 = unlimited). Informational for dashboards.
	MaxOperationsPerPeriod int

	// NotifyOnSoftLimit controls soft_limit_warning alert emission.
	NotifyOnSoftLimit bool

	// NotifyOnHardLimit is advisory for alert sinks; hard_limit_exceeded
	// alerts are always emitted.
	NotifyOnHardLimit bool

	// CreatedBy is the user ID that created the policy ("system" for
	// seeded policies).
	CreatedBy string

	// CreatedAt is when the policy was installed.
	CreatedAt time.Time

	// ModifiedBy is the user ID of the last modification, if any.
	ModifiedBy string

	// ModifiedAt is when the policy was last modified, if ever.
	ModifiedAt time.Time

	// System marks a seeded policy that can never be deleted.
	System bool
}

// PolicyOption customizes a policy at construction time.
type PolicyOption func(*Policy)

// WithSoftLimit overrides the default soft limit.
func WithSoftLimit(usd float64) PolicyOption {
	return func(p *Policy) { p.SoftLimitUSD = usd }
}

// WithDescription sets the policy description.
func WithDescription(desc string) PolicyOption {
	return func(p *Policy) { p.Description = desc }
}

// WithGracePeriod sets the grace period.
func WithGracePeriod(d time.Duration) PolicyOption {
	return func(p *Policy) { p.GracePeriod = d }
}

// AsSystemPolicy marks the policy as a seeded system policy.
func AsSystemPolicy() PolicyOption {
	return func(p *Policy) { p.System = true }
}

// NewPolicy constructs a validated policy.
//
// The soft limit defaults to 80% of the hard limit. Construction fails
// with ErrInvalidPolicy if the limit is not positive or the soft limit is
// not strictly below the hard limit; violations are rejected, never
// clamped.
func NewPolicy(name string, period Period, limitUSD float64, onExceed Action, opts ...PolicyOption) (*Policy, error) {
	policy := &Policy{
		Name:              name,
		Period:            period,
		LimitUSD:          limitUSD,
		OnExceed:          onExceed,
		GracePeriod:       5 * time.Minute,
		NotifyOnSoftLimit: true,
		NotifyOnHardLimit: true,
		CreatedAt:         time.Now(),
	}

	for _, opt := range opts {
		opt(policy)
	}

	if policy.SoftLimitUSD == 0 {
		policy.SoftLimitUSD = policy.LimitUSD * SoftLimitRatio
	}

	if err := policy.Validate(); err != nil {
		return nil, err
	}

	return policy, nil
}

// Validate checks the policy invariants.
func (p *Policy) Validate() error {
	if p.Name == "" {
		return errInvalid("policy name must not be empty")
	}
	if !p.Period.Valid() {
		return errInvalid("unknown period %q", p.Period)
	}
	if !p.OnExceed.Valid() {
		return errInvalid("unknown action %q", p.OnExceed)
	}
	if p.LimitUSD <= 0 {
		return errInvalid("limit must be positive, got %.4f", p.LimitUSD)
	}
	if p.SoftLimitUSD >= p.LimitUSD {
		return errInvalid("soft limit %.4f must be below hard limit %.4f",
			p.SoftLimitUSD, p.LimitUSD)
	}
	return nil
}

// clone returns a copy of the policy. The Manager hands out clones so
// callers cannot mutate installed policies behind the gate.
func (p *Policy) clone() *Policy {
	cp := *p
	return &cp
}

// PolicyPatch enumerates the mutable policy fields. Nil fields are left
// unchanged. The set is closed on purpose: name, period and the system
// flag cannot be patched.
type PolicyPatch struct {
	// LimitUSD replaces the hard limit.
	LimitUSD *float64

	// SoftLimitUSD replaces the soft limit.
	SoftLimitUSD *float64

	// OnExceed replaces the overflow action.
	OnExceed *Action

	// Description replaces the description.
	Description *string

	// GracePeriod replaces the grace period.
	GracePeriod *time.Duration
}

// apply copies the patch onto a policy. The result must be re-validated.
func (pp *PolicyPatch) apply(p *Policy) {
	if pp.LimitUSD != nil {
		p.LimitUSD = *pp.LimitUSD
	}
	if pp.SoftLimitUSD != nil {
		p.SoftLimitUSD = *pp.SoftLimitUSD
	}
	if pp.OnExceed != nil {
		p.OnExceed = *pp.OnExceed
	}
	if pp.Description != nil {
		p.Description = *pp.Description
	}
	if pp.GracePeriod != nil {
		p.GracePeriod = *pp.GracePeriod
	}
}

// Operation is one admitted entry in a usage bucket's log.
type Operation struct {
	// Timestamp is when the operation was admitted.
	Timestamp time.Time

	// Name identifies the operation (llm_call, tool_execution, ...).
	Name string

	// CostUSD is the declared incremental cost.
	CostUSD float64

	// Tokens is the token count attributed to the operation.
	Tokens int
}

// Usage is the accumulator for one policy window instance.
//
// CurrentUSD is monotonically non-decreasing for the bucket's lifetime;
// buckets are cleared only by explicit reset or retention pruning after
// the window has rolled over.
type Usage struct {
	// Period is the policy period this bucket belongs to.
	Period Period

	// PeriodStart is when the window began.
	PeriodStart time.Time

	// CurrentUSD is the accumulated admitted cost.
	CurrentUSD float64

	// OperationsCount is the number of admitted operations.
	OperationsCount int

	// TotalTokens is the accumulated token count.
	TotalTokens int

	// Operations is the ordered log of admitted operations.
	Operations []Operation

	// Alerts holds the IDs of alerts generated against this bucket.
	Alerts []string
}

// record appends an admitted operation. Caller holds the manager lock.
func (u *Usage) record(costUSD float64, tokens int, name string, now time.Time) {
	u.CurrentUSD += costUSD
	u.TotalTokens += tokens
	u.OperationsCount++
	u.Operations = append(u.Operations, Operation{
		Timestamp: now,
		Name:      name,
		CostUSD:   costUSD,
		Tokens:    tokens,
	})
}

// lastActivity returns the time of the most recent admitted operation,
// or the window start for an empty bucket.
func (u *Usage) lastActivity() time.Time {
	if n := len(u.Operations); n > 0 {
		return u.Operations[n-1].Timestamp
	}
	return u.PeriodStart
}

// percentage returns usage as a percentage of the given limit (0-100+).
func (u *Usage) percentage(limitUSD float64) float64 {
	if limitUSD == 0 {
		return 0
	}
	return u.CurrentUSD / limitUSD * 100
}

// Decision is the outcome of a budget check.
//
// A blocked operation is a normal Decision with Allowed=false, never an
// error.
type Decision struct {
	// Allowed indicates whether the operation may proceed.
	Allowed bool

	// Action is the recommended action (the policy's action when the hard
	// limit is exceeded, ActionWarn otherwise).
	Action Action

	// Message explains the decision.
	Message string

	// UsagePercentage is current usage / hard limit x 100, evaluated
	// before this operation's cost is recorded.
	UsagePercentage float64

	// RemainingUSD is max(0, limit - current usage). +Inf when the policy
	// was not found (fail-open).
	RemainingUSD float64

	// PolicyName is the policy that was evaluated.
	PolicyName string

	// CurrentUsageUSD is the bucket's accumulated cost before this
	// operation.
	CurrentUsageUSD float64

	// LimitUSD is the policy's hard limit (0 when the policy was not
	// found).
	LimitUSD float64
}
