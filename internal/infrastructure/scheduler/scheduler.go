package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a periodic task. Runs of the same job never overlap.
type Job struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Observer receives the outcome of every job run.
type Observer interface {
	ObserveJob(name string, duration time.Duration, err error)
}

type Scheduler struct {
	cron     *cron.Cron
	logger   *slog.Logger
	observer Observer
	jobs     []Job
	ctx      context.Context
}

func New(logger *slog.Logger, observer Observer) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:   logger,
		observer: observer,
		ctx:      context.Background(),
	}
}

// Add registers job. Spec is a standard five-field cron expression or a
// descriptor such as "@every 1m".
func (s *Scheduler) Add(job Job) error {
	if job.Run == nil {
		return fmt.Errorf("scheduler: job %s has no run function", job.Name)
	}
	if _, err := s.cron.AddFunc(job.Spec, func() { s.runJob(s.ctx, job) }); err != nil {
		return fmt.Errorf("scheduler: job %s: invalid schedule %q: %w", job.Name, job.Spec, err)
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	for _, job := range s.jobs {
		s.logger.Info("job_scheduled", "job", job.Name, "spec", job.Spec)
	}
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler_stopped")
	return nil
}

func (s *Scheduler) runJob(parent context.Context, job Job) {
	if parent.Err() != nil {
		return
	}
	ctx := parent
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, job.Timeout)
		defer cancel()
	}

	started := time.Now()
	err := job.Run(ctx)
	elapsed := time.Since(started)
	if s.observer != nil {
		s.observer.ObserveJob(job.Name, elapsed, err)
	}
	if err != nil {
		s.logger.Error("job_failed", "job", job.Name, "duration_ms", elapsed.Milliseconds(), "error", err.Error())
		return
	}
	s.logger.Debug("job_finished", "job", job.Name, "duration_ms", elapsed.Milliseconds())
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron_"+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron_"+msg, append(keysAndValues, "error", err.Error())...)
}
