// Package scheduler runs periodic sweeps over all tracked products.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/NasaVasa/itemwatcher/internal/domain"
	"go.uber.org/zap"
)

type Sweeper interface {
	CheckAll(ctx context.Context) domain.BatchResult
}

// Scheduler sweeps once on start and then every interval. A sweep that runs
// longer than the interval delays the next one instead of overlapping it.
type Scheduler struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(sweeper Sweeper, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{sweeper: sweeper, interval: interval, logger: logger}
}

// Start launches the loop in the background. Calling Start while running
// restarts it.
func (s *Scheduler) Start(ctx context.Context) {
	s.Stop()

	childCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.Run(childCtx)
	}()
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.logger.Warn("timeout stopping scheduler")
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Warn("scheduler disabled: non-positive interval", zap.Duration("interval", s.interval))
		return
	}
	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	defer s.logger.Info("scheduler stopped")

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	batch := s.sweeper.CheckAll(ctx)
	if batch.ListErr != nil {
		s.logger.Error("sweep failed to list products", zap.String("run_id", batch.RunID), zap.Error(batch.ListErr))
		return
	}
	checked, failed, skipped, alerts := batch.Summary()
	s.logger.Info(
		"sweep complete",
		zap.String("run_id", batch.RunID),
		zap.Int("checked", checked),
		zap.Int("failed", failed),
		zap.Int("skipped", skipped),
		zap.Int("alerts", alerts),
		zap.Duration("elapsed", time.Since(start)),
	)
}
