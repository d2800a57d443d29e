package budget

import (
	"strings"
	"time"
)

// PolicySummary is the reporting view of one installed policy.
type PolicySummary struct {
	Period       Period
	LimitUSD     float64
	SoftLimitUSD float64
	OnExceed     Action
	Description  string
	System       bool
}

// UsageSummary is the reporting view of one usage bucket.
type UsageSummary struct {
	PolicyName      string
	Period          Period
	PeriodStart     time.Time
	CurrentUSD      float64
	OperationsCount int
	TotalTokens     int
	AlertsCount     int
}

// Summary aggregates policies, usage and alerts for dashboards and tests.
type Summary struct {
	// Policies maps policy name to its summary.
	Policies map[string]PolicySummary

	// CurrentUsage maps bucket key to its summary.
	CurrentUsage map[string]UsageSummary

	// Alerts lists the IDs of all alerts generated so far.
	Alerts []string

	// TotalCostUSD is the sum of all bucket accumulations.
	TotalCostUSD float64

	// TotalOperations is the total admitted operation count.
	TotalOperations int
}

// Summary reports the budget state. When sessionID is non-empty, episode
// buckets are restricted to that session; calendar buckets are shared and
// always included. userID is accepted for interface parity with callers
// that scope by user; buckets are not user-partitioned.
func (m *Manager) Summary(userID, sessionID string) *Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := &Summary{
		Policies:     make(map[string]PolicySummary, len(m.policies)),
		CurrentUsage: make(map[string]UsageSummary),
	}

	for name, policy := range m.policies {
		summary.Policies[name] = PolicySummary{
			Period:       policy.Period,
			LimitUSD:     policy.LimitUSD,
			SoftLimitUSD: policy.SoftLimitUSD,
			OnExceed:     policy.OnExceed,
			Description:  policy.Description,
			System:       policy.System,
		}
	}

	for key, usage := range m.usage {
		if sessionID != "" && usage.Period == PeriodPerEpisode &&
			!sessionKey(key, sessionID) {
			continue
		}

		summary.CurrentUsage[key] = UsageSummary{
			PolicyName:      m.policyNameForKeyLocked(key),
			Period:          usage.Period,
			PeriodStart:     usage.PeriodStart,
			CurrentUSD:      usage.CurrentUSD,
			OperationsCount: usage.OperationsCount,
			TotalTokens:     usage.TotalTokens,
			AlertsCount:     len(usage.Alerts),
		}

		summary.TotalCostUSD += usage.CurrentUSD
		summary.TotalOperations += usage.OperationsCount
		summary.Alerts = append(summary.Alerts, usage.Alerts...)
	}

	return summary
}

// policyNameForKeyLocked finds a policy whose period matches the bucket
// key. Multiple policies can share a period; the first match wins.
// Caller holds at least the read lock.
func (m *Manager) policyNameForKeyLocked(key string) string {
	for name, policy := range m.policies {
		if keyMatchesPeriod(key, policy.Period) {
			return name
		}
	}
	return "unknown"
}

// Reset clears usage for a specific session's episode buckets, or all
// usage when sessionID is empty. Policies and profiles persist.
func (m *Manager) Reset(userID, sessionID string) {
	if userID == "" && sessionID == "" {
		m.ResetAll()
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if sessionID != "" {
		for key := range m.usage {
			if sessionKey(key, sessionID) {
				delete(m.usage, key)
			}
		}
	}

	m.logger.Info("budget usage reset",
		"user_id", userID,
		"session_id", sessionID,
	)
}

// ResetAll clears all usage buckets and their alerts. Installed policies,
// including the seeded system policies, persist unchanged.
func (m *Manager) ResetAll() {
	m.mu.Lock()
	m.usage = make(map[string]*Usage)
	m.mu.Unlock()

	m.logger.Info("budget usage reset", "scope", "all")
}

// PruneExpired removes usage buckets whose window has rolled over:
// calendar buckets past their boundary, and operation/episode buckets
// idle for longer than retention since their last admitted operation
// (skipped when retention is zero). Live buckets are never touched, so a
// policy's current percentage can only be lowered by an explicit reset.
// Returns the number of buckets removed.
func (m *Manager) PruneExpired(retention time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0

	for key, usage := range m.usage {
		expired := false

		if usage.Period.Calendar() {
			expired = !now.Before(periodEnd(usage.Period, usage.PeriodStart))
		} else if retention > 0 {
			expired = now.Sub(usage.lastActivity()) > retention
		}

		if expired {
			delete(m.usage, key)
			removed++
		}
	}

	if removed > 0 {
		m.logger.Info("expired usage buckets pruned", "removed", removed)
	}

	return removed
}

// sessionKey reports whether a bucket key belongs to an episode session.
// Kept close to the key format definition in period.go.
func sessionKey(key, sessionID string) bool {
	return strings.HasPrefix(key, "episode_") && key == "episode_"+sessionID
}
