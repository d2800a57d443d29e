package budget

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// periodStart returns the wall-clock start of the window containing now.
// Single-use periods start at now itself.
func periodStart(period Period, now time.Time) time.Time {
	switch period {
	case PeriodPerHour:
		return now.Truncate(time.Hour)
	case PeriodPerDay:
		return startOfDay(now)
	case PeriodPerWeek:
		return startOfWeek(now)
	case PeriodPerMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	default:
		return now
	}
}

// periodEnd returns when the window starting at start rolls over.
// Single-use periods never roll over on their own; the zero time is
// returned for them.
func periodEnd(period Period, start time.Time) time.Time {
	switch period {
	case PeriodPerHour:
		return start.Add(time.Hour)
	case PeriodPerDay:
		return start.AddDate(0, 0, 1)
	case PeriodPerWeek:
		return start.AddDate(0, 0, 7)
	case PeriodPerMonth:
		return start.AddDate(0, 1, 0)
	default:
		return time.Time{}
	}
}

// usageKey derives the bucket key for a policy period.
//
// Calendar periods key on the window boundary so repeated checks within
// the same window share one bucket. Per-operation buckets are always
// fresh. Per-episode buckets bind to the session ID when one is supplied,
// and are fresh otherwise.
func usageKey(period Period, sessionID string, now time.Time) string {
	switch period {
	case PeriodPerOperation:
		return "operation_" + shortID()
	case PeriodPerEpisode:
		if sessionID != "" {
			return "episode_" + sessionID
		}
		return "episode_" + shortID()
	case PeriodPerHour:
		return "hour_" + periodStart(period, now).Format(time.RFC3339)
	case PeriodPerDay:
		return "day_" + periodStart(period, now).Format(time.RFC3339)
	case PeriodPerWeek:
		return "week_" + periodStart(period, now).Format(time.RFC3339)
	case PeriodPerMonth:
		return "month_" + periodStart(period, now).Format(time.RFC3339)
	}
	return "unknown_" + shortID()
}

// startOfDay truncates to midnight in the timestamp's location.
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// startOfWeek truncates to Monday 00:00 in the timestamp's location.
func startOfWeek(t time.Time) time.Time {
	// Weekday is Sunday=0; shift so Monday=0.
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	return startOfDay(t.AddDate(0, 0, -daysSinceMonday))
}

// shortID returns an 8-character random suffix for single-use bucket keys.
func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// parseUsageKey recovers the period class from a bucket key. Used by the
// retention sweeper; returns false for keys it does not recognize.
func parseUsageKey(key string) (Period, bool) {
	prefix, _, found := strings.Cut(key, "_")
	if !found {
		return "", false
	}
	switch prefix {
	case "operation":
		return PeriodPerOperation, true
	case "episode":
		return PeriodPerEpisode, true
	case "hour":
		return PeriodPerHour, true
	case "day":
		return PeriodPerDay, true
	case "week":
		return PeriodPerWeek, true
	case "month":
		return PeriodPerMonth, true
	}
	return "", false
}

// keyMatchesPeriod reports whether a bucket key belongs to the given
// period. Used when summarizing usage back to policies.
func keyMatchesPeriod(key string, period Period) bool {
	parsed, ok := parseUsageKey(key)
	return ok && parsed == period
}
