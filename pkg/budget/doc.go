// Package budget implements admission control for agent operation costs.
//
// # Overview
//
// Every billable agent step declares an incremental cost in USD. The
// Manager evaluates that step against a named Policy - a cap over a time
// window with an action taken on overflow - and returns a Decision:
// proceed, proceed with a warning, throttle, degrade, or block.
//
//   - Policies cap spending per operation, episode, hour, day, week or month.
//   - Usage accumulates in per-window buckets created lazily on first check.
//   - Soft limits warn early; hard limits trigger the policy's action.
//   - Alerts fan out to registered AlertSinks with per-sink isolation.
//   - Policy mutation is gated by rbac; system policies are undeletable.
//
// # Usage
//
//	manager := budget.NewManager(budget.ManagerConfig{})
//
//	decision := manager.Check(ctx, budget.CheckRequest{
//	    CostUSD:   0.02,
//	    Operation: "llm_call",
//	    Policy:    "default_episode",
//	})
//	if !decision.Allowed {
//	    // Handle the block; the cost was not charged.
//	}
//
// # Fail-open
//
// A check against an unknown policy name is allowed with a warning rather
// than rejected: a configuration gap must never silently stall the agent.
// This is deliberate and logged.
//
// # Thread safety
//
// The Manager guards its policy, usage and sink maps with a single RWMutex.
// A Check is atomic; summaries may observe slightly stale state across
// buckets. All state is in-memory and lost on process exit by design.
package budget
