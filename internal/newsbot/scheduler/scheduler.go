// Package scheduler drives the periodic harvest loop and maintenance jobs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is a named unit of scheduled work.
type Job struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Scheduler runs its jobs in a loop, waiting the full interval after each
// pass completes. A slow pass therefore delays the next one.
type Scheduler struct {
	jobs     []Job
	logger   *zap.Logger
	done     chan struct{}
	stopOnce sync.Once
}

// NewScheduler creates a new scheduler.
func NewScheduler(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Add registers a job with the scheduler.
func (s *Scheduler) Add(job Job) {
	s.jobs = append(s.jobs, job)
}

// RunOnce executes every registered job once. A failing job does not stop
// the others; all failures are joined into the returned error.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs []error
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		s.logger.Info("running job", zap.String("name", job.Name))
		start := time.Now()
		if err := job.Fn(ctx); err != nil {
			s.logger.Error("job failed", zap.String("name", job.Name), zap.Error(err), zap.Duration("duration", time.Since(start)))
			errs = append(errs, fmt.Errorf("%s: %w", job.Name, err))
			continue
		}
		s.logger.Info("job completed", zap.String("name", job.Name), zap.Duration("duration", time.Since(start)))
	}
	return errors.Join(errs...)
}

// Start runs the jobs immediately and then again interval after each pass
// finishes, until ctx is cancelled or Stop is called. It blocks.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	s.logger.Info("scheduler started", zap.Duration("interval", interval), zap.Int("jobs", len(s.jobs)))

	_ = s.RunOnce(ctx)

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-s.done:
			s.logger.Info("scheduler stopped")
			return
		case <-timer.C:
			_ = s.RunOnce(ctx)
			timer.Reset(interval)
		}
	}
}

// Stop stops the scheduler. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}
