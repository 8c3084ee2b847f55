// Package jobs runs the API's recurring background work on cron schedules.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler wraps a cron runner and tracks registered jobs by name so a
// schedule cannot be registered twice.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger

	mu   sync.Mutex
	jobs map[string]cron.EntryID
}

// NewScheduler builds a scheduler. Expressions use the 6-field form with a
// leading seconds field; overlapping runs of the same job are skipped and
// panics inside a job are recovered.
func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds(), cron.WithChain(
			cron.SkipIfStillRunning(cron.DefaultLogger),
			cron.Recover(cron.DefaultLogger),
		)),
		logger: logger,
		jobs:   make(map[string]cron.EntryID),
	}
}

// AddJob registers fn under the given name and cron expression. Registering
// a name twice is an error.
func (s *Scheduler) AddJob(name, expr string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %q is already registered", name)
	}

	id, err := s.cron.AddFunc(expr, func() {
		start := time.Now()
		s.logger.Info("job started", zap.String("job", name))
		fn()
		s.logger.Info("job finished",
			zap.String("job", name),
			zap.Duration("duration", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("register job %q: %w", name, err)
	}

	s.jobs[name] = id
	s.logger.Info("job registered",
		zap.String("job", name),
		zap.String("schedule", expr))
	return nil
}

// Start begins executing registered jobs on their schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling new runs. The returned context is done once any
// in-flight job has finished, which the shutdown path waits on.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
