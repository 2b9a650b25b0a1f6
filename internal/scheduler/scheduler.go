// Package scheduler provides scheduling logic for CoachFlow.
//
// Its one recurring job sweeps the daily usage counters shortly after
// local midnight so they fold into lifetime totals even on days when no
// messages arrive.
package scheduler

import (
	"fmt"
	"log/slog"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler wraps a gocron scheduler running daily maintenance jobs.
type Scheduler struct {
	s gocron.Scheduler
}

// NewScheduler creates and starts a scheduler.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	s.Start()
	return &Scheduler{s: s}, nil
}

// AddDailyJob schedules task to run every day at the given local time.
func (s *Scheduler) AddDailyJob(hour, minute int, task func()) error {
	_, err := s.s.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(uint(hour), uint(minute), 0))),
		gocron.NewTask(task),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule daily job: %w", err)
	}
	slog.Debug("Scheduler.AddDailyJob scheduled", "hour", hour, "minute", minute)
	return nil
}

// Stop shuts the scheduler down and waits for running jobs to finish.
func (s *Scheduler) Stop() error {
	return s.s.Shutdown()
}
