// Package scheduler wraps gocron for the bot's background maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Task is a job body invoked on schedule.
type Task func(ctx context.Context) error

// Scheduler manages cron-scheduled tasks using the gocron library.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	mu        sync.Mutex
	running   bool
}

// New creates a scheduler ticking in UTC.
func New(logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	log := logger.With("component", "scheduler")

	s, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(newGocronLogger(log)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{scheduler: s, logger: log}, nil
}

// AddCronJob registers a named task with a cron expression. Job runs are
// wrapped with start/finish logging and error reporting.
func (s *Scheduler) AddCronJob(name, cronExpr string, task Task) error {
	_, err := s.scheduler.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(func(ctx context.Context) {
			s.logger.Info("Running scheduled task", "task_name", name)
			startTime := time.Now()
			if taskErr := task(ctx); taskErr != nil {
				s.logger.Error("Scheduled task failed", "task_name", name, "error", taskErr)
			}
			s.logger.Info("Finished scheduled task", "task_name", name, "duration", time.Since(startTime))
		}, context.Background()),
		gocron.WithName(name),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule job %q: %w", name, err)
	}

	s.logger.Info("Scheduled task", "task_name", name, "cron", cronExpr)
	return nil
}

// Start begins executing scheduled jobs.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.scheduler.Start()
	s.running = true
}

// Stop gracefully stops the scheduler, waiting for running jobs.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false

	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to shut down scheduler: %w", err)
	}
	return nil
}
