// Package scheduler runs the sync job on a cron schedule, one run at a time.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"kbsync/internal/config"
	"kbsync/internal/logger"
)

// RunFunc is one job execution. Errors are logged; the schedule keeps going.
type RunFunc func(ctx context.Context) error

// Scheduler triggers RunFunc on a cron expression. A tick that fires while the
// previous run is still in flight is skipped.
type Scheduler struct {
	cron    *cron.Cron
	logger  *logger.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	entryID cron.EntryID
	spec    string
}

// New creates a scheduler for spec (five-field cron or a descriptor like "@daily").
func New(spec string, run RunFunc, log *logger.Logger) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{log: log}

	c := cron.New(
		cron.WithParser(config.CronParser()),
		// Recover sits inside the skip guard so a panicking run still releases it.
		cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
		cron.WithLogger(cl),
	)

	s := &Scheduler{
		cron:   c,
		logger: log,
		ctx:    ctx,
		cancel: cancel,
		spec:   spec,
	}

	id, err := c.AddFunc(spec, func() {
		started := time.Now()
		log.Info("Scheduled run starting", "schedule", spec)

		if err := run(s.ctx); err != nil {
			log.Error("Scheduled run failed", "error", err, "duration", time.Since(started))
			return
		}

		log.Info("Scheduled run finished", "duration", time.Since(started))
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidCron, err)
	}

	s.entryID = id

	return s, nil
}

// Start begins firing in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started", "schedule", s.spec, "next_run", s.Next())
}

// Next returns the next activation time, or zero if the scheduler is not running.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entryID).Next
}

// Stop prevents new runs, cancels the context of a run in flight, and blocks until
// it returns or ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.Info("Stopping scheduler")

	done := s.cron.Stop()
	s.cancel()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
