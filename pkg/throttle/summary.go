package throttle

import (
	"time"
)

// ConfigStatus is the reporting view of one operation's config and
// backoff state.
type ConfigStatus struct {
	// Config is the registered configuration.
	Config Config

	// ConsecutiveThrottles is the current backoff counter.
	ConsecutiveThrottles int

	// TotalThrottleTime is the delay accumulated by Apply.
	TotalThrottleTime time.Duration
}

// Summary aggregates throttle configs, state and recent decisions.
type Summary struct {
	// Configs maps operation name to its config and backoff state.
	Configs map[string]ConfigStatus

	// RecentDecisions maps operation name to its most recent decisions
	// (10 when a single operation is requested, 5 each otherwise).
	RecentDecisions map[string][]Decision

	// TotalThrottledOperations sums the consecutive counters across
	// operations.
	TotalThrottledOperations int

	// TotalThrottleTime sums accumulated delay across operations.
	TotalThrottleTime time.Duration
}

// Summary reports throttle state. With a non-empty operation only that
// operation's history is included (last 10 decisions); otherwise every
// operation contributes its last 5.
func (s *Service) Summary(operation string) *Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := &Summary{
		Configs:         make(map[string]ConfigStatus, len(s.configs)),
		RecentDecisions: make(map[string][]Decision),
	}

	for name, cfg := range s.configs {
		status := ConfigStatus{Config: cfg}
		if state, ok := s.states[name]; ok {
			status.ConsecutiveThrottles = state.consecutive
			status.TotalThrottleTime = state.totalDelay
		}
		summary.Configs[name] = status
	}

	for _, state := range s.states {
		summary.TotalThrottledOperations += state.consecutive
		summary.TotalThrottleTime += state.totalDelay
	}

	if operation != "" {
		if history, ok := s.history[operation]; ok {
			summary.RecentDecisions[operation] = tail(history, 10)
		}
		return summary
	}

	for name, history := range s.history {
		summary.RecentDecisions[name] = tail(history, 5)
	}
	return summary
}

// tail returns a copy of the last n elements of history.
func tail(history []Decision, n int) []Decision {
	if len(history) > n {
		history = history[len(history)-n:]
	}
	out := make([]Decision, len(history))
	copy(out, history)
	return out
}
