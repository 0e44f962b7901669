package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/tidy/internal/logger"
	"github.com/MrSnakeDoc/tidy/internal/refresh"
)

// Runner runs one weekday-gated refresh cycle.
type Runner interface {
	Run(ctx context.Context) (*refresh.Report, error)
}

// StarRefreshScheduler handles periodic star refresh cycles
type StarRefreshScheduler struct {
	runner   Runner
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewStarRefreshScheduler creates a new star refresh scheduler
func NewStarRefreshScheduler(runner Runner, log logger.Logger, interval time.Duration) *StarRefreshScheduler {
	return &StarRefreshScheduler{
		runner:   runner,
		logger:   log.With(logger.Component("scheduler")),
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs a cycle right away, then one per interval. Cycles never overlap.
func (s *StarRefreshScheduler) Start(ctx context.Context) {
	s.logger.Info("star refresh scheduler started",
		logger.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	go func() {
		defer close(s.doneCh)
		defer ticker.Stop()

		s.tick(ctx)
		for {
			select {
			case <-ticker.C:
				s.tick(ctx)
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the scheduler and waits for a running cycle to finish
func (s *StarRefreshScheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	<-s.doneCh
}

func (s *StarRefreshScheduler) tick(ctx context.Context) {
	rep, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Error("scheduled star refresh failed", logger.Error(err))
		return
	}
	if rep.Skipped {
		s.logger.Debug(rep.Message)
		return
	}
	s.logger.Info("scheduled star refresh done",
		logger.String("summary", rep.Summary()),
		logger.Strings("errors", rep.Errors))
}
