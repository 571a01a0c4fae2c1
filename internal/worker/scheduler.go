// Package worker runs the periodic group maintenance of the API server.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval is how often the scheduler sweeps groups.
const DefaultInterval = time.Second

// CaptureStarter moves due countdowns to photo taking.
type CaptureStarter interface {
	BeginDueCaptures(ctx context.Context) (int, error)
}

// Expirer expires groups past their expiry.
type Expirer interface {
	ExpireGroups(ctx context.Context) (int, error)
}

// Composer renders collages for groups with every photo uploaded.
type Composer interface {
	ComposeReady(ctx context.Context) (int, error)
}

// Scheduler sweeps the groups on a fixed interval: countdowns whose capture
// time passed move to photo taking, complete photo sets are composed, and
// expired groups are closed.
type Scheduler struct {
	captures CaptureStarter
	composer Composer
	expirer  Expirer
	interval time.Duration
	logger   *slog.Logger
}

// New creates a scheduler. A non-positive interval uses DefaultInterval.
func New(captures CaptureStarter, composer Composer, expirer Expirer, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		captures: captures,
		composer: composer,
		expirer:  expirer,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("Scheduler started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one maintenance pass. Each step runs even if an earlier one
// failed.
func (s *Scheduler) Sweep(ctx context.Context) {
	start := time.Now()

	started, err := s.captures.BeginDueCaptures(ctx)
	if err != nil {
		s.logger.Error("Failed to start due captures", "error", err)
	}
	composed, err := s.composer.ComposeReady(ctx)
	if err != nil {
		s.logger.Error("Failed to compose collages", "error", err)
	}
	expired, err := s.expirer.ExpireGroups(ctx)
	if err != nil {
		s.logger.Error("Failed to expire groups", "error", err)
	}

	if started+composed+expired > 0 {
		s.logger.Info("Sweep finished",
			"captures_started", started,
			"collages", composed,
			"expired", expired,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
