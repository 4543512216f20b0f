// Package scheduler runs in-process maintenance jobs on cron schedules,
// e.g. the periodic resync sweep that re-enqueues tasks whose queue job
// was lost.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// JobFunc is a maintenance job.
type JobFunc func(ctx context.Context) error

// JobID identifies a registered job.
type JobID = cron.EntryID

// JobOptions tunes a single job.
type JobOptions struct {
	// Name appears in logs.
	Name string
	// Timeout bounds a single run (0 = unbounded).
	Timeout time.Duration
	// SkipIfRunning drops a tick while the previous run is still going.
	SkipIfRunning bool
}

// Scheduler wraps robfig/cron with slog integration and per-job timeouts.
type Scheduler struct {
	cron     *cron.Cron
	log      *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// New creates a scheduler. Jobs do not run until Start.
func New(parentCtx context.Context, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger{log: log.With("component", "cron")}),
		),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddJob registers a job on a cron schedule, e.g. "@every 5m" or
// "30 3 * * *".
func (s *Scheduler) AddJob(schedule string, job JobFunc, opts JobOptions) (JobID, error) {
	chain := cron.NewChain()
	if opts.SkipIfRunning {
		chain = cron.NewChain(cron.SkipIfStillRunning(cronLogger{log: s.log}))
	}

	id, err := s.cron.AddJob(schedule, chain.Then(cron.FuncJob(func() {
		s.run(job, opts)
	})))
	if err != nil {
		return 0, fmt.Errorf("add cron job %q: %w", opts.Name, err)
	}
	s.log.Info("maintenance job registered", "schedule", schedule, "name", opts.Name, "id", id)
	return id, nil
}

// Start begins running registered jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to finish, honoring the
// context deadline.
func (s *Scheduler) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		s.cancel()
		done := s.cron.Stop()
		select {
		case <-done.Done():
			s.log.Info("maintenance scheduler stopped")
		case <-ctx.Done():
			s.log.Warn("maintenance scheduler stop deadline exceeded")
			err = ctx.Err()
		}
	})
	return err
}

func (s *Scheduler) run(job JobFunc, opts JobOptions) {
	name := opts.Name
	if name == "" {
		name = "unnamed"
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("maintenance job panicked", "name", name, "panic", r)
		}
	}()

	ctx := s.ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := job(ctx)
	duration := time.Since(start)
	if err != nil {
		s.log.Error("maintenance job failed", "name", name, "error", err, "duration", duration)
		return
	}
	s.log.Debug("maintenance job completed", "name", name, "duration", duration)
}

// cronLogger adapts cron's logger interface to slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Info(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	args := append([]any{"error", err}, keysAndValues...)
	l.log.Error(msg, args...)
}
