package throttle

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"steward-hq/quaestor/pkg/budget"
)

// stubChecker returns a canned budget decision for every check.
type stubChecker struct {
	decision budget.Decision
}

func (s *stubChecker) Check(ctx context.Context, req budget.CheckRequest) *budget.Decision {
	d := s.decision
	return &d
}

func newTestService(action budget.Action, usagePct float64) (*Service, *stubChecker) {
	checker := &stubChecker{
		decision: budget.Decision{
			Allowed:         action != budget.ActionBlock,
			Action:          action,
			UsagePercentage: usagePct,
			PolicyName:      "default_episode",
		},
	}
	return NewService(checker, ServiceConfig{}), checker
}

// deterministicConfig has no jitter so delays are exact.
func deterministicConfig(operation string) Config {
	return Config{
		Operation:        operation,
		BaseDelay:        100 * time.Millisecond,
		MaxDelay:         10 * time.Second,
		BackoffFactor:    2.0,
		Jitter:           0,
		MinQualityFactor: 0.5,
	}
}

// ============================================================================
// Level Mapping Tests
// ============================================================================

func TestLevelFor(t *testing.T) {
	cases := []struct {
		action budget.Action
		usage  float64
		want   Level
	}{
		{budget.ActionBlock, 50, LevelBlocked},
		{budget.ActionBlock, 150, LevelBlocked},

		{budget.ActionThrottle, 95, LevelHeavy},
		{budget.ActionThrottle, 90, LevelHeavy},
		{budget.ActionThrottle, 80, LevelModerate},
		{budget.ActionThrottle, 75, LevelModerate},
		{budget.ActionThrottle, 65, LevelLight},
		{budget.ActionThrottle, 60, LevelLight},
		{budget.ActionThrottle, 59, LevelNone},

		{budget.ActionWarn, 85, LevelLight},
		{budget.ActionWarn, 80, LevelLight},
		{budget.ActionWarn, 79, LevelNone},

		{budget.ActionDegrade, 99, LevelNone},
	}

	for _, tc := range cases {
		name := fmt.Sprintf("%s_%.0f", tc.action, tc.usage)
		t.Run(name, func(t *testing.T) {
			if got := levelFor(tc.action, tc.usage); got != tc.want {
				t.Errorf("levelFor(%s, %.0f) = %s, want %s", tc.action, tc.usage, got, tc.want)
			}
		})
	}
}

func TestLevelOrdering(t *testing.T) {
	levels := []Level{LevelNone, LevelLight, LevelModerate, LevelHeavy, LevelBlocked}
	for i := 1; i < len(levels); i++ {
		if levels[i-1] >= levels[i] {
			t.Errorf("Expected %s < %s", levels[i-1], levels[i])
		}
	}
}

// ============================================================================
// Delay Computation Tests
// ============================================================================

func TestDelayFor_GeometricGrowth(t *testing.T) {
	cfg := deterministicConfig("unit_op")

	// Base 100ms, factor 2, light level: 100, 200, 400, 800.
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
	}
	for consecutive, expected := range want {
		if got := delayFor(cfg, consecutive, LevelLight); got != expected {
			t.Errorf("delayFor(consecutive=%d) = %v, want %v", consecutive, got, expected)
		}
	}
}

func TestDelayFor_LevelMultipliers(t *testing.T) {
	cfg := deterministicConfig("unit_op")

	cases := []struct {
		level Level
		want  time.Duration
	}{
		{LevelLight, 100 * time.Millisecond},
		{LevelModerate, 200 * time.Millisecond},
		{LevelHeavy, 400 * time.Millisecond},
		{LevelBlocked, 800 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := delayFor(cfg, 0, tc.level); got != tc.want {
			t.Errorf("delayFor(level=%s) = %v, want %v", tc.level, got, tc.want)
		}
	}
}

func TestDelayFor_CapAndZeroLevel(t *testing.T) {
	cfg := deterministicConfig("unit_op")
	cfg.MaxDelay = 300 * time.Millisecond

	if got := delayFor(cfg, 5, LevelLight); got != 300*time.Millisecond {
		t.Errorf("Expected delay capped at 300ms, got %v", got)
	}

	if got := delayFor(cfg, 5, LevelNone); got != 0 {
		t.Errorf("Expected zero delay for LevelNone, got %v", got)
	}
}

func TestDelayFor_JitterBoundedAndNonNegative(t *testing.T) {
	cfg := deterministicConfig("unit_op")
	cfg.BaseDelay = 10 * time.Millisecond
	cfg.Jitter = 50 * time.Millisecond

	for i := 0; i < 200; i++ {
		got := delayFor(cfg, 0, LevelLight)
		if got < 0 {
			t.Fatalf("Expected non-negative delay, got %v", got)
		}
		if got > 60*time.Millisecond {
			t.Fatalf("Expected delay within base+jitter, got %v", got)
		}
	}
}

// ============================================================================
// Quality Degradation Tests
// ============================================================================

func TestQualityFor(t *testing.T) {
	cfg := deterministicConfig("unit_op")
	cfg.QualityDegradationRate = 0.2
	cfg.MinQualityFactor = 0.5

	cases := []struct {
		consecutive int
		level       Level
		want        float64
	}{
		{0, LevelLight, 1.0},
		{1, LevelLight, 0.8},
		{2, LevelLight, 0.6},
		{3, LevelLight, 0.5}, // floored
		{10, LevelHeavy, 0.5},
		{10, LevelNone, 1.0}, // full quality when not throttled
	}
	for _, tc := range cases {
		got := qualityFor(cfg, tc.consecutive, tc.level)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("qualityFor(%d, %s) = %.2f, want %.2f", tc.consecutive, tc.level, got, tc.want)
		}
	}
}

// ============================================================================
// Service Decision Tests
// ============================================================================

func TestService_SeedsDefaultConfigs(t *testing.T) {
	service, _ := newTestService(budget.ActionWarn, 0)

	for _, op := range []string{"llm_call", "tool_execution", "planning"} {
		cfg := service.ConfigFor(op)
		if cfg.Operation != op || cfg.BaseDelay == 0 {
			t.Errorf("Expected seeded config for %q, got %+v", op, cfg)
		}
	}

	// Unknown operations get the permissive default.
	cfg := service.ConfigFor("mystery_op")
	if cfg.BaseDelay != 0 {
		t.Errorf("Expected zero base delay for unknown operation, got %v", cfg.BaseDelay)
	}
}

func TestService_NoThrottleUnderBudget(t *testing.T) {
	service, _ := newTestService(budget.ActionWarn, 10)

	decision := service.Apply(context.Background(), Request{Operation: "llm_call", CostUSD: 0.01})

	if decision.ShouldThrottle {
		t.Error("Expected no throttling well under budget")
	}
	if decision.Level != LevelNone || decision.Delay != 0 {
		t.Errorf("Expected none/0, got %s/%v", decision.Level, decision.Delay)
	}
	if decision.QualityFactor != 1.0 {
		t.Errorf("Expected full quality, got %.2f", decision.QualityFactor)
	}
	if decision.Budget == nil || !decision.Budget.Allowed {
		t.Error("Expected embedded budget decision to be carried through")
	}
}

func TestService_ApplyAdvancesBackoff(t *testing.T) {
	service, _ := newTestService(budget.ActionThrottle, 65) // light level
	service.AddConfig(deterministicConfig("unit_op"))
	ctx := context.Background()

	// Apply returns the delay computed from the pre-increment counter,
	// so repeated applies walk the geometric sequence.
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
	}
	for i, expected := range want {
		decision := service.Apply(ctx, Request{Operation: "unit_op", CostUSD: 0.01})
		if !decision.ShouldThrottle {
			t.Fatalf("Apply %d: expected throttling", i)
		}
		if decision.Delay != expected {
			t.Errorf("Apply %d: delay %v, want %v", i, decision.Delay, expected)
		}
	}
}

func TestService_DecideDoesNotAdvanceBackoff(t *testing.T) {
	service, _ := newTestService(budget.ActionThrottle, 65)
	service.AddConfig(deterministicConfig("unit_op"))
	ctx := context.Background()

	first := service.Decide(ctx, Request{Operation: "unit_op", CostUSD: 0.01})
	second := service.Decide(ctx, Request{Operation: "unit_op", CostUSD: 0.01})

	if first.Delay != second.Delay {
		t.Errorf("Expected repeated Decide to observe the same delay: %v then %v",
			first.Delay, second.Delay)
	}
	if first.Delay != 100*time.Millisecond {
		t.Errorf("Expected base delay from a cold state, got %v", first.Delay)
	}
}

func TestService_BlockedDecision(t *testing.T) {
	service, _ := newTestService(budget.ActionBlock, 120)

	decision := service.Apply(context.Background(), Request{Operation: "llm_call", CostUSD: 0.01})

	if !decision.ShouldThrottle || decision.Level != LevelBlocked {
		t.Errorf("Expected blocked decision, got %s", decision.Level)
	}
	if decision.Budget.Allowed {
		t.Error("Expected embedded budget decision to reject the operation")
	}
}

func TestService_ResetRestoresBaseDelay(t *testing.T) {
	service, _ := newTestService(budget.ActionThrottle, 65)
	service.AddConfig(deterministicConfig("unit_op"))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		service.Apply(ctx, Request{Operation: "unit_op", CostUSD: 0.01})
	}

	service.Reset("unit_op")

	decision := service.Apply(ctx, Request{Operation: "unit_op", CostUSD: 0.01})
	if decision.Delay != 100*time.Millisecond {
		t.Errorf("Expected base delay after reset, got %v", decision.Delay)
	}
}

func TestService_SinkNotifiedOnThrottleOnly(t *testing.T) {
	service, checker := newTestService(budget.ActionWarn, 10)
	service.AddConfig(deterministicConfig("unit_op"))

	var mu sync.Mutex
	var notified []Decision
	service.AddSink(SinkFunc(func(d Decision) error {
		mu.Lock()
		defer mu.Unlock()
		notified = append(notified, d)
		return nil
	}))

	ctx := context.Background()

	service.Apply(ctx, Request{Operation: "unit_op", CostUSD: 0.01})
	mu.Lock()
	quiet := len(notified)
	mu.Unlock()
	if quiet != 0 {
		t.Fatalf("Expected no sink calls for unthrottled decisions, got %d", quiet)
	}

	checker.decision.Action = budget.ActionThrottle
	checker.decision.UsagePercentage = 95

	service.Apply(ctx, Request{Operation: "unit_op", CostUSD: 0.01})
	mu.Lock()
	defer mu.Unlock()
	if len(notified) != 1 {
		t.Fatalf("Expected one sink call for the throttled decision, got %d", len(notified))
	}
	if notified[0].Level != LevelHeavy {
		t.Errorf("Expected heavy level in sink payload, got %s", notified[0].Level)
	}
}

func TestService_SinkPanicIsolated(t *testing.T) {
	service, _ := newTestService(budget.ActionThrottle, 95)
	service.AddConfig(deterministicConfig("unit_op"))
	service.AddSink(SinkFunc(func(Decision) error {
		panic("sink exploded")
	}))

	decision := service.Apply(context.Background(), Request{Operation: "unit_op", CostUSD: 0.01})
	if decision == nil || !decision.ShouldThrottle {
		t.Error("Expected decision despite sink panic")
	}
}

// ============================================================================
// Summary Tests
// ============================================================================

func TestService_Summary(t *testing.T) {
	service, _ := newTestService(budget.ActionThrottle, 65)
	service.AddConfig(deterministicConfig("unit_op"))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		service.Apply(ctx, Request{Operation: "unit_op", CostUSD: 0.01})
	}
	service.Decide(ctx, Request{Operation: "llm_call", CostUSD: 0.01})

	summary := service.Summary("")

	status, ok := summary.Configs["unit_op"]
	if !ok {
		t.Fatal("Expected unit_op in summary configs")
	}
	if status.ConsecutiveThrottles != 3 {
		t.Errorf("Expected 3 consecutive throttles, got %d", status.ConsecutiveThrottles)
	}
	if status.TotalThrottleTime != 700*time.Millisecond {
		t.Errorf("Expected accumulated delay 700ms, got %v", status.TotalThrottleTime)
	}
	if summary.TotalThrottledOperations != 3 {
		t.Errorf("Expected 3 throttled operations in totals, got %d", summary.TotalThrottledOperations)
	}
	if len(summary.RecentDecisions["unit_op"]) != 3 {
		t.Errorf("Expected 3 recent decisions for unit_op, got %d",
			len(summary.RecentDecisions["unit_op"]))
	}

	scoped := service.Summary("unit_op")
	if len(scoped.RecentDecisions) != 1 {
		t.Errorf("Expected only unit_op history in scoped summary, got %d operations",
			len(scoped.RecentDecisions))
	}
}

func TestService_HistoryBounded(t *testing.T) {
	service, _ := newTestService(budget.ActionThrottle, 65)
	cfg := deterministicConfig("unit_op")
	cfg.MaxDelay = 200 * time.Millisecond
	service.AddConfig(cfg)
	ctx := context.Background()

	for i := 0; i < historyLimit+20; i++ {
		service.Decide(ctx, Request{Operation: "unit_op", CostUSD: 0.01})
	}

	service.mu.RLock()
	length := len(service.history["unit_op"])
	service.mu.RUnlock()

	if length != historyLimit {
		t.Errorf("Expected history bounded at %d, got %d", historyLimit, length)
	}
}

// ============================================================================
// Wait Tests
// ============================================================================

func TestWait_ZeroDelayReturnsImmediately(t *testing.T) {
	start := time.Now()
	if err := Wait(context.Background(), 0); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("Expected immediate return, took %v", elapsed)
	}
}

func TestWait_HonorsDelay(t *testing.T) {
	start := time.Now()
	if err := Wait(context.Background(), 50*time.Millisecond); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Expected at least 50ms wait, took %v", elapsed)
	}
}

func TestWait_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Wait(ctx, 5*time.Second)
	if err == nil {
		t.Fatal("Expected context error from cancelled wait")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Expected prompt return on cancellation, took %v", elapsed)
	}
}
