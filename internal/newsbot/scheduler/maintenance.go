package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Maintenance runs housekeeping jobs on cron schedules.
type Maintenance struct {
	cron   *cron.Cron
	parser cron.Parser
	logger *zap.Logger

	mu  sync.RWMutex
	ctx context.Context
}

// NewMaintenance creates a cron runner using standard 5-field expressions
// plus descriptors such as @daily.
func NewMaintenance(logger *zap.Logger) *Maintenance {
	if logger == nil {
		logger = zap.NewNop()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	cl := cronLogger{logger.Sugar()}
	return &Maintenance{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		parser: parser,
		logger: logger,
		ctx:    context.Background(),
	}
}

// Add schedules job on spec.
func (m *Maintenance) Add(spec string, job Job) error {
	if _, err := m.parser.Parse(spec); err != nil {
		return fmt.Errorf("schedule %s: %w", job.Name, err)
	}
	_, err := m.cron.AddFunc(spec, func() {
		m.mu.RLock()
		ctx := m.ctx
		m.mu.RUnlock()
		if err := job.Fn(ctx); err != nil {
			m.logger.Error("maintenance job failed", zap.String("name", job.Name), zap.Error(err))
			return
		}
		m.logger.Info("maintenance job completed", zap.String("name", job.Name))
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", job.Name, err)
	}
	m.logger.Info("maintenance job scheduled", zap.String("name", job.Name), zap.String("schedule", spec))
	return nil
}

// Len returns the number of scheduled jobs.
func (m *Maintenance) Len() int {
	return len(m.cron.Entries())
}

// Start begins running jobs in the background with ctx passed to each run.
func (m *Maintenance) Start(ctx context.Context) {
	m.mu.Lock()
	m.ctx = ctx
	m.mu.Unlock()
	m.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (m *Maintenance) Stop() {
	<-m.cron.Stop().Done()
}

// Purger removes stored rows belonging to the named sources.
type Purger interface {
	PurgeSources(ctx context.Context, names []string) (int64, error)
}

// PurgeJob returns the job that removes rows from banned sources.
func PurgeJob(p Purger, names []string, logger *zap.Logger) Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Job{
		Name: "purge-banned",
		Fn: func(ctx context.Context) error {
			if len(names) == 0 {
				return nil
			}
			n, err := p.PurgeSources(ctx, names)
			if err != nil {
				return err
			}
			logger.Info("banned sources purged", zap.Int64("rows", n))
			return nil
		},
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
