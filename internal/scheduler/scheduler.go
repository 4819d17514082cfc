// Package scheduler runs periodic jobs (data refresh, page capture) on cron
// schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "opsplan/internal/log"
)

// Scheduler wraps a cron instance whose jobs receive a context that is
// canceled when Run returns.
type Scheduler struct {
	c *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler evaluating specs in loc. Overlapping runs of the
// same job are skipped and panics are recovered.
func New(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	logger := cronLogger{}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		c: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers fn under a standard 5-field spec or a descriptor such as
// "@hourly" / "@every 10m".
func (s *Scheduler) Add(name, spec string, fn func(ctx context.Context) error) error {
	if spec == "" {
		return errors.New("scheduler: empty spec for " + name)
	}
	_, err := s.c.AddFunc(spec, func() {
		started := time.Now()
		if err := fn(s.ctx); err != nil {
			appLog.Error("scheduled job failed", err, "job", name)
			return
		}
		appLog.Debug("scheduled job done", "job", name, "elapsed", time.Since(started).String())
	})
	if err != nil {
		return fmt.Errorf("scheduler: job %s: %w", name, err)
	}
	appLog.Info("job scheduled", "job", name, "spec", spec)
	return nil
}

// Run starts the scheduler and blocks until ctx is done, then cancels
// running jobs and waits for them to return.
func (s *Scheduler) Run(ctx context.Context) {
	s.c.Start()
	<-ctx.Done()
	s.cancel()
	<-s.c.Stop().Done()
}

// cronLogger routes cron's own logging to the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
