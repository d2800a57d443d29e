package budget

import (
	"time"
)

// Alert types emitted by the Manager.
const (
	// AlertSoftLimit is emitted when a bucket crosses the soft limit.
	AlertSoftLimit = "soft_limit_warning"

	// AlertHardLimit is emitted when a bucket crosses the hard limit.
	AlertHardLimit = "hard_limit_exceeded"
)

// Alert severities.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert describes a budget threshold crossing.
type Alert struct {
	// ID uniquely identifies the alert.
	ID string

	// Severity is "critical" for hard limit alerts, "warning" otherwise.
	Severity string

	// PolicyName is the policy whose threshold was crossed.
	PolicyName string

	// Type is AlertSoftLimit or AlertHardLimit.
	Type string

	// CurrentUsageUSD is the bucket's accumulated cost at alert time.
	CurrentUsageUSD float64

	// LimitUSD is the policy's hard limit.
	LimitUSD float64

	// UsagePercentage is usage / hard limit x 100.
	UsagePercentage float64

	// Timestamp is when the alert was generated.
	Timestamp time.Time

	// Message is a human-readable summary.
	Message string
}

// AlertSink receives budget alerts. Sink failures are logged and isolated;
// they never affect the admission decision.
type AlertSink interface {
	Notify(alert Alert) error
}

// AlertSinkFunc adapts a function to the AlertSink interface.
type AlertSinkFunc func(alert Alert) error

// Notify implements AlertSink.
func (f AlertSinkFunc) Notify(alert Alert) error {
	return f(alert)
}
