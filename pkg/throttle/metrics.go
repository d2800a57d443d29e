package throttle

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for throttle decisions.
type Metrics struct {
	decisions *prometheus.CounterVec
	delay     *prometheus.HistogramVec
}

// NewMetrics creates throttle metrics registered against reg. Passing nil
// uses the default registerer; tests pass a private registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quaestor_throttle_decisions_total",
				Help: "Total number of throttle decisions by level",
			},
			[]string{"operation", "level"},
		),

		delay: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quaestor_throttle_delay_seconds",
				Help:    "Delay assigned to throttled operations in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
			},
			[]string{"operation"},
		),
	}
}

// RecordDecision records a throttle decision outcome.
func (m *Metrics) RecordDecision(operation string, level Level) {
	m.decisions.WithLabelValues(operation, level.String()).Inc()
}

// ObserveDelay records the delay assigned to a throttled operation.
func (m *Metrics) ObserveDelay(operation string, delay time.Duration) {
	m.delay.WithLabelValues(operation).Observe(delay.Seconds())
}
