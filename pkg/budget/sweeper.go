package budget

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// SweeperConfig configures the retention sweeper.
type SweeperConfig struct {
	// Schedule is a standard cron expression (e.g. "0 * * * *" for
	// hourly). An empty schedule disables the sweeper.
	Schedule string

	// RetentionAge is how long single-use (per-operation / per-episode)
	// buckets are kept after their last admitted operation. Zero keeps
	// them forever.
	RetentionAge time.Duration
}

// Sweeper prunes rolled-over usage buckets on a cron schedule.
//
// Pruning only removes buckets whose window has already ended, so it never
// lowers a live percentage; it is housekeeping for long-running processes,
// not a budget reset.
type Sweeper struct {
	manager *Manager
	config  SweeperConfig
	cron    *cron.Cron
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewSweeper creates a sweeper over the given manager.
func NewSweeper(manager *Manager, config SweeperConfig) *Sweeper {
	return &Sweeper{
		manager: manager,
		config:  config,
		cron:    cron.New(),
		logger:  slog.Default().With("component", "budget.sweeper"),
	}
}

// Start begins scheduled pruning. It returns immediately; pruning runs in
// the cron goroutine until the context is cancelled or Stop is called.
// A sweeper with an empty schedule does nothing.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.Schedule == "" {
		s.logger.Info("sweep schedule not configured, skipping sweeper")
		return nil
	}

	if _, err := cron.ParseStandard(s.config.Schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.config.Schedule, err)
	}

	if _, err := s.cron.AddFunc(s.config.Schedule, s.sweep); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("budget sweeper started",
		"schedule", s.config.Schedule,
		"retention_age", s.config.RetentionAge,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// sweep executes one pruning cycle.
func (s *Sweeper) sweep() {
	removed := s.manager.PruneExpired(s.config.RetentionAge)
	if removed > 0 {
		s.logger.Info("sweep completed", "removed", removed)
	} else {
		s.logger.Debug("sweep completed, nothing to prune")
	}
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("budget sweeper stopped")
	}
}

// IsRunning reports whether the scheduler is active.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
