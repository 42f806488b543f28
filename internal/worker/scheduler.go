package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/aviation-mailbot/internal/service"
)

// Job is one unit of periodic work.
type Job func(ctx context.Context) error

type scheduledJob struct {
	name     string
	interval time.Duration
	run      Job
}

// Scheduler runs jobs on fixed intervals until its context is cancelled.
// Each job runs once on start, and a slow run delays the next tick rather
// than overlapping it.
type Scheduler struct {
	logger *zap.Logger
	jobs   []scheduledJob
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{logger: logger}
}

// Every registers a job.
func (s *Scheduler) Every(name string, interval time.Duration, job Job) {
	s.jobs = append(s.jobs, scheduledJob{name: name, interval: interval, run: job})
}

// Run blocks until ctx is done. Job errors are logged, never fatal.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, job := range s.jobs {
		job := job
		g.Go(func() error {
			s.loop(ctx, job)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job scheduledJob) {
	s.logger.Info("scheduler job started", zap.String("job", job.name), zap.Duration("interval", job.interval))
	ticker := time.NewTicker(job.interval)
	defer ticker.Stop()
	for {
		s.runOnce(ctx, job)
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler job stopped", zap.String("job", job.name))
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, job scheduledJob) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler job panicked", zap.String("job", job.name), zap.Any("panic", r))
		}
	}()
	if err := job.run(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("scheduler job failed",
			zap.String("job", job.name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
	}
}

// PollJob polls every configured mailbox.
func PollJob(intake *service.IntakeService) Job {
	return func(ctx context.Context) error {
		_, err := intake.ProcessAllMailboxes(ctx)
		return err
	}
}

// EscalationJob runs one escalation dispatch cycle.
func EscalationJob(escalations *service.EscalationService) Job {
	return func(ctx context.Context) error {
		_, err := escalations.ProcessDue(ctx)
		return err
	}
}
