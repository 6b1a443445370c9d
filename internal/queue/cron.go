package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// CronJob describes a job enqueued on a recurring schedule.
type CronJob struct {
	// Spec is a standard five-field cron expression.
	Spec string

	// Name is the job name to enqueue.
	Name string

	// Timeout bounds the execution of each enqueued job.
	Timeout time.Duration
}

// Scheduler enqueues jobs on cron schedules. Scheduled jobs go through
// the queue like any other, so workers execute them with the usual
// timeout and retry behavior.
type Scheduler struct {
	cron   *cron.Cron
	queue  *Queue
	logger *slog.Logger
}

// NewScheduler creates a Scheduler over the given queue. If logger is
// nil, the default logger is used.
func NewScheduler(queue *Queue, logger *slog.Logger) *Scheduler {
	if queue == nil {
		panic("queue cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(),
		queue:  queue,
		logger: logger.With(slog.String("component", "scheduler")),
	}
}

// Add registers a cron job. It fails when the cron expression does not
// parse.
func (s *Scheduler) Add(job CronJob) error {
	_, err := s.cron.AddFunc(job.Spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if _, err := s.queue.Enqueue(ctx, job.Name, nil, job.Timeout); err != nil {
			s.logger.Error("failed to enqueue scheduled job",
				slog.String("job", job.Name),
				slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron spec %q for job %q: %w", job.Spec, job.Name, err)
	}

	s.logger.Info("cron job registered",
		slog.String("job", job.Name),
		slog.String("spec", job.Spec))
	return nil
}

// Start launches the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and returns a context that completes once any
// in-flight enqueue has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
