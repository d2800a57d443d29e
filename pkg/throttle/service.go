package throttle

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"steward-hq/quaestor/pkg/budget"
)

// historyLimit bounds the per-operation decision history.
const historyLimit = 100

// opState is the mutable backoff memory for one operation class.
type opState struct {
	// consecutive counts throttled decisions since the last reset.
	consecutive int

	// totalDelay accumulates the delay charged to this operation.
	totalDelay time.Duration
}

// ServiceConfig configures a Service. The zero value is usable.
type ServiceConfig struct {
	// Metrics receives prometheus observations when non-nil.
	Metrics *Metrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Service is the throttle translator. It owns the per-operation configs,
// backoff state and decision history; the budget manager owns everything
// budget-shaped.
type Service struct {
	checker BudgetChecker

	configs map[string]Config
	states  map[string]*opState
	history map[string][]Decision

	sinks   []Sink
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time

	mu sync.RWMutex
}

// NewService creates a throttle service over the given budget checker,
// seeded with default configs for the known operation classes.
func NewService(checker BudgetChecker, cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	s := &Service{
		checker: checker,
		configs: make(map[string]Config),
		states:  make(map[string]*opState),
		history: make(map[string][]Decision),
		metrics: cfg.Metrics,
		logger:  cfg.Logger.With("component", "throttle.service"),
		now:     cfg.Clock,
	}

	s.seedDefaults()

	s.logger.Info("throttle service initialized", "configs", len(s.configs))
	return s
}

// seedDefaults installs configs for the known operation classes.
func (s *Service) seedDefaults() {
	defaults := []Config{
		{
			Operation:     "llm_call",
			BaseDelay:     100 * time.Millisecond,
			MaxDelay:      3 * time.Second,
			BackoffFactor: 1.5,
			Jitter:        50 * time.Millisecond,
		},
		{
			Operation:     "tool_execution",
			BaseDelay:     50 * time.Millisecond,
			MaxDelay:      time.Second,
			BackoffFactor: 1.3,
			Jitter:        25 * time.Millisecond,
		},
		{
			Operation:     "planning",
			BaseDelay:     200 * time.Millisecond,
			MaxDelay:      5 * time.Second,
			BackoffFactor: 2.0,
			Jitter:        100 * time.Millisecond,
		},
	}

	for _, cfg := range defaults {
		s.AddConfig(cfg)
	}
}

// AddConfig registers (or replaces) the throttle config for an operation.
// Zero quality fields fall back to the package defaults.
func (s *Service) AddConfig(cfg Config) {
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = 5 * time.Second
	}
	if cfg.BackoffFactor == 0 {
		cfg.BackoffFactor = 2.0
	}
	if cfg.MinQualityFactor == 0 {
		cfg.MinQualityFactor = 0.1
	}
	if cfg.QualityDegradationRate == 0 {
		cfg.QualityDegradationRate = 0.2
	}

	s.mu.Lock()
	s.configs[cfg.Operation] = cfg
	s.mu.Unlock()

	s.logger.Info("throttle config added",
		"operation", cfg.Operation,
		"base_delay", cfg.BaseDelay,
		"max_delay", cfg.MaxDelay,
	)
}

// ConfigFor returns the config for an operation, falling back to the
// permissive default for unknown operations.
func (s *Service) ConfigFor(operation string) Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cfg, ok := s.configs[operation]; ok {
		return cfg
	}
	return DefaultConfig(operation)
}

// AddSink registers a decision sink, invoked for throttled decisions.
func (s *Service) AddSink(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// Decide evaluates throttling for an operation without charging backoff
// state: repeated Decide calls observe the same delay. Use Apply on the
// hot path.
func (s *Service) Decide(ctx context.Context, req Request) *Decision {
	return s.decide(ctx, req, false)
}

// Apply evaluates throttling and, for any throttled level, increments the
// operation's consecutive-throttle counter and charges the delay to its
// total. The service does not sleep; callers honor Decision.Delay via
// Wait.
func (s *Service) Apply(ctx context.Context, req Request) *Decision {
	return s.decide(ctx, req, true)
}

func (s *Service) decide(ctx context.Context, req Request, charge bool) *Decision {
	check := s.checker.Check(ctx, budget.CheckRequest{
		CostUSD:   req.CostUSD,
		Operation: req.Operation,
		Tokens:    req.Tokens,
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Policy:    req.Policy,
	})

	level := levelFor(check.Action, check.UsagePercentage)
	cfg := s.ConfigFor(req.Operation)

	s.mu.Lock()
	state, ok := s.states[req.Operation]
	if !ok {
		state = &opState{}
		s.states[req.Operation] = state
	}

	delay := delayFor(cfg, state.consecutive, level)
	quality := qualityFor(cfg, state.consecutive, level)

	if charge && level != LevelNone {
		state.consecutive++
		state.totalDelay += delay
	}

	decision := &Decision{
		ShouldThrottle: level != LevelNone,
		Level:          level,
		Delay:          delay,
		QualityFactor:  quality,
		Reason:         reasonFor(check, level),
		Operation:      req.Operation,
		Timestamp:      s.now(),
		Budget:         check,
	}

	s.recordLocked(req.Operation, *decision)
	sinks := make([]Sink, len(s.sinks))
	copy(sinks, s.sinks)
	s.mu.Unlock()

	if decision.ShouldThrottle {
		for _, sink := range sinks {
			s.notify(sink, *decision)
		}
	}

	if s.metrics != nil {
		s.metrics.RecordDecision(req.Operation, level)
		if decision.ShouldThrottle {
			s.metrics.ObserveDelay(req.Operation, delay)
		}
	}

	s.logger.Debug("throttle decision made",
		"operation", req.Operation,
		"should_throttle", decision.ShouldThrottle,
		"level", level.String(),
		"delay", delay,
		"quality", quality,
	)

	return decision
}

// levelFor maps an admission outcome to a throttle level.
func levelFor(action budget.Action, usagePct float64) Level {
	switch action {
	case budget.ActionBlock:
		return LevelBlocked

	case budget.ActionThrottle:
		switch {
		case usagePct >= 90:
			return LevelHeavy
		case usagePct >= 75:
			return LevelModerate
		case usagePct >= 60:
			return LevelLight
		default:
			return LevelNone
		}

	case budget.ActionWarn:
		if usagePct >= 80 {
			return LevelLight
		}
		return LevelNone

	default:
		return LevelNone
	}
}

// delayFor computes the backoff delay for a level given the consecutive
// throttle count. LevelNone is unconditionally zero.
func delayFor(cfg Config, consecutive int, level Level) time.Duration {
	if level == LevelNone {
		return 0
	}

	delay := float64(cfg.BaseDelay) *
		math.Pow(cfg.BackoffFactor, float64(consecutive)) *
		level.multiplier()

	delay = math.Min(delay, float64(cfg.MaxDelay))

	if cfg.Jitter > 0 {
		delay += (rand.Float64()*2 - 1) * float64(cfg.Jitter)
	}

	return time.Duration(math.Max(0, delay))
}

// qualityFor computes the quality factor for a level given the
// consecutive throttle count. LevelNone is full quality.
func qualityFor(cfg Config, consecutive int, level Level) float64 {
	if level == LevelNone {
		return 1.0
	}

	quality := 1.0 - cfg.QualityDegradationRate*float64(consecutive)
	return math.Max(cfg.MinQualityFactor, quality)
}

// reasonFor explains a throttle decision.
func reasonFor(check *budget.Decision, level Level) string {
	switch level {
	case LevelBlocked:
		return fmt.Sprintf("operation blocked by policy %q: budget exhausted",
			check.PolicyName)
	case LevelHeavy, LevelModerate, LevelLight:
		return fmt.Sprintf("%s throttling: %.1f%% of budget used",
			level, check.UsagePercentage)
	default:
		return "no throttling: budget within limits"
	}
}

// recordLocked appends a decision to the bounded per-operation history.
// Caller holds the write lock.
func (s *Service) recordLocked(operation string, decision Decision) {
	history := append(s.history[operation], decision)
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	s.history[operation] = history
}

// notify delivers one decision to one sink, containing errors and panics.
func (s *Service) notify(sink Sink, decision Decision) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("throttle sink panicked",
				"operation", decision.Operation,
				"panic", fmt.Sprint(r),
			)
		}
	}()

	if err := sink.Notify(decision); err != nil {
		s.logger.Error("throttle sink failed",
			"operation", decision.Operation,
			"error", err,
		)
	}
}

// Reset clears the backoff state and history for one operation, restoring
// it to the base delay level.
func (s *Service) Reset(operation string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.states[operation]; ok {
		state.consecutive = 0
		state.totalDelay = 0
	}
	delete(s.history, operation)

	s.logger.Info("throttle state reset", "operation", operation)
}

// ResetAll clears backoff state and history for every operation.
func (s *Service) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, state := range s.states {
		state.consecutive = 0
		state.totalDelay = 0
	}
	s.history = make(map[string][]Decision)

	s.logger.Info("throttle state reset", "scope", "all")
}

// Wait blocks for the given delay, returning early with the context error
// if the context is cancelled first. This is the caller-side suspension
// point for honoring a Decision's delay; the Service itself never blocks.
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
