// Package scheduler fires the periodic leaderboard resets and snapshots from a
// process-local ticker. It is best effort: a failed or missed window is logged
// and skipped, never retried.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"flexboard/internal/metrics"
	"flexboard/internal/model"
	"flexboard/internal/repository"
)

// Task names a scheduled action.
type Task string

// Scheduled tasks.
const (
	TaskMonthlyReset   Task = "monthly-reset"
	TaskWeeklyReset    Task = "weekly-reset"
	TaskHourlySnapshot Task = "hourly-snapshot"
)

// Tasks returns the scheduled tasks in evaluation order.
func Tasks() []Task {
	return []Task{TaskMonthlyReset, TaskWeeklyReset, TaskHourlySnapshot}
}

// Archiver performs the snapshot and reset actions.
type Archiver interface {
	ResetMonthly(ctx context.Context, region string) (*model.ResetResult, error)
	ResetWeekly(ctx context.Context, region string) (*model.ResetResult, error)
	CreateLeaderboardSnapshot(ctx context.Context, scope model.Scope, topN int) (*model.Snapshot, error)
}

// Scheduler owns the ticker and the per-task record of the last fired window.
type Scheduler struct {
	archiver Archiver
	regions  []string
	interval time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
	lastFired map[Task]string
}

// New creates a stopped Scheduler. Resets and regional snapshots run for the
// unfiltered scope plus every region in regions.
func New(archiver Archiver, regions []string, interval time.Duration, m *metrics.Metrics) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		archiver:  archiver,
		regions:   regions,
		interval:  interval,
		metrics:   m,
		now:       time.Now,
		lastFired: make(map[Task]string),
	}
}

// WithClock overrides the wall clock used by the guards.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Start runs one guard pass immediately and then one per interval until Stop
// is called or ctx ends. Calling Start on a running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)

	log.Info().Dur("interval", s.interval).Strs("regions", s.regions).Msg("Scheduler started")
}

// Stop cancels the ticker and waits for an in-flight pass to return. It is
// safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	log.Info().Msg("Scheduler stopped")
}

// Running reports whether the ticker is armed.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick evaluates every guard once and runs the tasks whose window is open and
// has not fired yet.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.now().UTC()
	for _, task := range Tasks() {
		if !Due(task, now) {
			continue
		}
		key := WindowKey(task, now)
		if !s.claim(task, key) {
			continue
		}
		s.run(ctx, task, func(ctx context.Context) error {
			return s.execute(ctx, task)
		})
	}
}

// claim marks the window of task as fired. It returns false if the window
// already fired.
func (s *Scheduler) claim(task Task, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastFired[task] == key {
		return false
	}
	s.lastFired[task] = key
	return true
}

// run executes fn and swallows its failure, including a panic.
func (s *Scheduler) run(ctx context.Context, task Task, fn func(context.Context) error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.metrics.SchedulerRun(string(task), "error")
			log.Error().Str("task", string(task)).Interface("panic", r).Msg("Scheduled task panicked")
		}
	}()

	if err := fn(ctx); err != nil {
		s.metrics.SchedulerRun(string(task), "error")
		log.Error().Err(err).Str("task", string(task)).Msg("Scheduled task failed")
		return
	}

	s.metrics.SchedulerRun(string(task), "ok")
	log.Info().Str("task", string(task)).Dur("duration", time.Since(start)).Msg("Scheduled task completed")
}

func (s *Scheduler) execute(ctx context.Context, task Task) error {
	switch task {
	case TaskMonthlyReset:
		return s.TriggerMonthlyReset(ctx)
	case TaskWeeklyReset:
		return s.TriggerWeeklyReset(ctx)
	case TaskHourlySnapshot:
		return s.TriggerSnapshots(ctx)
	}
	return fmt.Errorf("unknown task %q", task)
}

// TriggerMonthlyReset finalizes the previous month for the unfiltered scope and
// each configured region, bypassing the guard. Periods already finalized are
// skipped.
func (s *Scheduler) TriggerMonthlyReset(ctx context.Context) error {
	return s.resetAll(ctx, model.Monthly, s.archiver.ResetMonthly)
}

// TriggerWeeklyReset finalizes the previous ISO week, bypassing the guard.
func (s *Scheduler) TriggerWeeklyReset(ctx context.Context) error {
	return s.resetAll(ctx, model.Weekly, s.archiver.ResetWeekly)
}

func (s *Scheduler) resetAll(ctx context.Context, t model.LeaderboardType, reset func(context.Context, string) (*model.ResetResult, error)) error {
	var errs []error
	for _, region := range s.targets() {
		_, err := reset(ctx, region)
		switch {
		case errors.Is(err, repository.ErrResetExists):
			log.Info().Str("leaderboard_type", string(t)).Str("region", region).Msg("Period already reset")
		case err != nil:
			errs = append(errs, fmt.Errorf("%s reset (region %q): %w", t, region, err))
		}
	}
	return errors.Join(errs...)
}

// TriggerSnapshots snapshots global, monthly, weekly and every configured
// region, bypassing the guard.
func (s *Scheduler) TriggerSnapshots(ctx context.Context) error {
	scopes := []model.Scope{
		{Type: model.Global},
		{Type: model.Monthly},
		{Type: model.Weekly},
	}
	for _, region := range s.regions {
		if region != "" {
			scopes = append(scopes, model.Scope{Type: model.Regional, Region: region})
		}
	}

	var errs []error
	for _, scope := range scopes {
		if _, err := s.archiver.CreateLeaderboardSnapshot(ctx, scope, 0); err != nil {
			errs = append(errs, fmt.Errorf("%s snapshot: %w", scope, err))
		}
	}
	return errors.Join(errs...)
}

// targets is the unfiltered scope followed by each configured region.
func (s *Scheduler) targets() []string {
	out := []string{""}
	for _, r := range s.regions {
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}
