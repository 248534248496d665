// Package scheduler triggers crawl runs on a fixed interval.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/newsdesk/ft-harvester/internal/harvest"
)

// Runner executes one crawl run. Implemented by harvest.Orchestrator.
type Runner interface {
	RunOnce(ctx context.Context) harvest.CrawlRun
}

// Scheduler fires the runner immediately on Start and then on every
// interval tick until the context is canceled. Overlap protection lives
// in the runner; the scheduler just triggers.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *zap.Logger
}

// New builds a Scheduler. Intervals below one minute are raised to one
// minute to keep the source site out of trouble.
func New(runner Runner, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval < time.Minute {
		interval = time.Minute
	}
	return &Scheduler{runner: runner, interval: interval, logger: logger}
}

// Start blocks until ctx is canceled, triggering runs as they come due.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	s.trigger(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.trigger(ctx)
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	run := s.runner.RunOnce(ctx)
	if run.Status == harvest.RunSkipped {
		s.logger.Warn("scheduled trigger skipped, previous run still active")
	}
}
