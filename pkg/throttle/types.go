package throttle

import (
	"context"
	"time"

	"steward-hq/quaestor/pkg/budget"
)

// Level is the discretized severity of budget pressure. Levels are
// ordered: LevelNone < LevelLight < LevelModerate < LevelHeavy <
// LevelBlocked.
type Level int

const (
	// LevelNone applies no throttling.
	LevelNone Level = iota

	// LevelLight applies the base delay.
	LevelLight

	// LevelModerate doubles the delay.
	LevelModerate

	// LevelHeavy quadruples the delay.
	LevelHeavy

	// LevelBlocked marks a fully blocked operation (8x delay for callers
	// that retry anyway).
	LevelBlocked
)

// String returns the wire name of the level.
func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelLight:
		return "light"
	case LevelModerate:
		return "moderate"
	case LevelHeavy:
		return "heavy"
	case LevelBlocked:
		return "blocked"
	}
	return "unknown"
}

// multiplier returns the delay multiplier for the level.
func (l Level) multiplier() float64 {
	switch l {
	case LevelLight:
		return 1
	case LevelModerate:
		return 2
	case LevelHeavy:
		return 4
	case LevelBlocked:
		return 8
	}
	return 0
}

// Config is the per-operation throttling configuration. Config is
// immutable once registered; the mutable backoff counters live in the
// Service's per-operation state.
type Config struct {
	// Operation is the operation class this config applies to.
	Operation string

	// BaseDelay is the delay at one consecutive throttle, light level.
	BaseDelay time.Duration

	// MaxDelay caps the computed delay before jitter.
	MaxDelay time.Duration

	// BackoffFactor is the geometric growth factor per consecutive
	// throttle (> 1 for real backoff; 1 disables growth).
	BackoffFactor float64

	// Jitter is the half-width of the uniform jitter added to the delay.
	Jitter time.Duration

	// MinQualityFactor is the floor for quality degradation (0..1].
	MinQualityFactor float64

	// QualityDegradationRate is the quality lost per consecutive
	// throttle.
	QualityDegradationRate float64
}

// DefaultConfig returns a permissive zero-delay config for operations
// without an explicit registration.
func DefaultConfig(operation string) Config {
	return Config{
		Operation:              operation,
		BaseDelay:              0,
		MaxDelay:               5 * time.Second,
		BackoffFactor:          2.0,
		Jitter:                 100 * time.Millisecond,
		MinQualityFactor:       0.1,
		QualityDegradationRate: 0.2,
	}
}

// Decision is the outcome of a throttle evaluation.
type Decision struct {
	// ShouldThrottle is true for any level above LevelNone.
	ShouldThrottle bool

	// Level is the computed throttle level.
	Level Level

	// Delay is how long the caller should wait before proceeding.
	Delay time.Duration

	// QualityFactor is the recommended quality in (0, 1]; 1.0 means full
	// quality.
	QualityFactor float64

	// Reason explains the decision.
	Reason string

	// Operation is the operation class that was evaluated.
	Operation string

	// Timestamp is when the decision was made.
	Timestamp time.Time

	// Budget is the underlying admission decision.
	Budget *budget.Decision
}

// Request identifies one operation to evaluate for throttling. The
// identifying fields mirror budget.CheckRequest.
type Request struct {
	// Operation names the operation class.
	Operation string

	// CostUSD is the declared incremental cost.
	CostUSD float64

	// Tokens is the token count attributed to the operation (optional).
	Tokens int

	// UserID identifies the calling user (optional).
	UserID string

	// SessionID identifies the agent episode (optional).
	SessionID string

	// Policy names the budget policy to evaluate (defaults to the
	// budget package's default policy).
	Policy string
}

// Sink receives throttle decisions for operations that were throttled.
// Sink failures are logged and isolated.
type Sink interface {
	Notify(decision Decision) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(decision Decision) error

// Notify implements Sink.
func (f SinkFunc) Notify(decision Decision) error {
	return f(decision)
}

// BudgetChecker is the slice of the budget manager the service consumes.
type BudgetChecker interface {
	Check(ctx context.Context, req budget.CheckRequest) *budget.Decision
}
