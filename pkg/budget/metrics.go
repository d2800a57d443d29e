package budget

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for budget admission checks.
type Metrics struct {
	checks *prometheus.CounterVec
	alerts *prometheus.CounterVec
	usage  *prometheus.GaugeVec
}

// NewMetrics creates budget metrics registered against reg. Passing nil
// uses the default registerer; tests pass a private registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		checks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quaestor_budget_checks_total",
				Help: "Total number of budget admission checks performed",
			},
			[]string{"policy", "result"},
		),

		alerts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quaestor_budget_alerts_total",
				Help: "Total number of budget alerts generated",
			},
			[]string{"policy", "alert_type"},
		),

		usage: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quaestor_budget_usage_percentage",
				Help: "Current budget usage as a percentage of the hard limit",
			},
			[]string{"policy"},
		),
	}
}

// RecordCheck records an admission check outcome.
func (m *Metrics) RecordCheck(policy string, allowed bool) {
	result := "allowed"
	if !allowed {
		result = "blocked"
	}
	m.checks.WithLabelValues(policy, result).Inc()
}

// RecordAlert records an alert emission.
func (m *Metrics) RecordAlert(policy, alertType string) {
	m.alerts.WithLabelValues(policy, alertType).Inc()
}

// UpdateUsage updates the usage percentage gauge for a policy.
func (m *Metrics) UpdateUsage(policy string, percentage float64) {
	m.usage.WithLabelValues(policy).Set(percentage)
}
