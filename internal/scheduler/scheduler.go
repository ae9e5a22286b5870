// Package scheduler drives periodic processing cycles.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gridpulse/gridpulse/internal/pipeline"
	"github.com/gridpulse/gridpulse/internal/store"
)

const lockKey = "cycle:runner"

// Scheduler runs the pipeline on a fixed interval. A store-backed lock keeps
// concurrent replicas from running overlapping cycles.
type Scheduler struct {
	store    store.Store
	pipeline *pipeline.Pipeline
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Scheduler.
func New(st store.Store, p *pipeline.Pipeline, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{store: st, pipeline: p, interval: interval, logger: logger}
}

// Start begins the cycle loop. The first cycle runs immediately.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("scheduler started", "interval", s.interval)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("scheduler stopping")
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()
}

// Stop gracefully shuts down the scheduler, waiting for an in-flight cycle.
func (s *Scheduler) Stop(ctx context.Context) {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	acquired, err := s.store.AcquireLock(ctx, lockKey, s.interval*2)
	if err != nil {
		s.logger.Error("acquiring cycle lock", "error", err)
		return
	}
	if !acquired {
		// Another replica is running this cycle.
		return
	}
	defer func() {
		if err := s.store.ReleaseLock(ctx, lockKey); err != nil {
			s.logger.Error("releasing cycle lock", "error", err)
		}
	}()

	if _, err := s.pipeline.RunCycle(ctx); err != nil {
		s.logger.Error("cycle failed", "error", err)
	}
}
