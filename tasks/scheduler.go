// Package tasks drives serve mode: the cron schedule that triggers
// maintenance runs and the config file watcher that picks up settings
// changes between them.
package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// RunFunc is one scheduled maintenance run.
type RunFunc func(ctx context.Context) error

// Scheduler triggers maintenance runs on a cron schedule. A trigger that
// fires while the previous run is still in flight is skipped, not queued.
type Scheduler struct {
	schedule string
	run      RunFunc
	cron     *cron.Cron

	mu      sync.Mutex
	running bool
}

// NewScheduler validates the cron expression and prepares the scheduler.
// Standard five-field expressions and descriptors like "@daily" or
// "@every 12h" are accepted.
func NewScheduler(schedule string, run RunFunc) (*Scheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}

	cronLog := cron.PrintfLogger(log.StandardLogger())
	return &Scheduler{
		schedule: schedule,
		run:      run,
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cronLog),
		)),
	}, nil
}

// Start begins triggering runs and returns immediately. Cancelling ctx
// stops the schedule and waits for an in-flight run to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		log.Info("Scheduled run starting")
		if err := s.run(ctx); err != nil {
			log.Errorf("Scheduled run failed: %v", err)
			return
		}
		log.Info("Scheduled run finished")
	})
	if err != nil {
		return fmt.Errorf("scheduling runs: %w", err)
	}

	s.cron.Start()
	s.running = true
	if next := s.nextLocked(); !next.IsZero() {
		log.Infof("Scheduler started with schedule '%s', next run at %s", s.schedule, next.Format(time.RFC3339))
	}

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the schedule and waits for a running job to complete. Safe to
// call when the scheduler never started.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	log.Info("Scheduler stopped")
}

// NextRun returns the next trigger time, or the zero time when the
// scheduler is not running.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextLocked()
}

func (s *Scheduler) nextLocked() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
