// Package cron schedules recurring work from a single declarative
// schedule, such as the nightly notes flush.
package cron

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Schedule kinds
const (
	ScheduleKindAt    = "at"
	ScheduleKindEvery = "every"
	ScheduleKindCron  = "cron"
)

// Schedule describes when a job fires
type Schedule struct {
	Kind    string `json:"kind"`
	At      string `json:"at,omitempty"`      // RFC3339 timestamp, kind "at"
	EveryMs int64  `json:"everyMs,omitempty"` // interval, kind "every"
	Expr    string `json:"expr,omitempty"`    // cron expression, kind "cron"
	TZ      string `json:"tz,omitempty"`      // IANA timezone, kind "cron"
}

// CalculateNextRun calculates the next run time for a schedule
func CalculateNextRun(schedule Schedule) (int64, error) {
	switch schedule.Kind {
	case ScheduleKindAt:
		return calculateAtSchedule(schedule)
	case ScheduleKindEvery:
		return calculateEverySchedule(schedule)
	case ScheduleKindCron:
		return calculateCronSchedule(schedule)
	default:
		return 0, fmt.Errorf("unknown schedule kind: %s", schedule.Kind)
	}
}

// calculateAtSchedule calculates next run for "at" schedule
func calculateAtSchedule(schedule Schedule) (int64, error) {
	if schedule.At == "" {
		return 0, fmt.Errorf("'at' schedule requires 'at' field")
	}

	// Parse ISO 8601 timestamp
	t, err := time.Parse(time.RFC3339, schedule.At)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp: %w", err)
	}

	return t.UnixMilli(), nil
}

// calculateEverySchedule calculates next run for "every" schedule
func calculateEverySchedule(schedule Schedule) (int64, error) {
	if schedule.EveryMs <= 0 {
		return 0, fmt.Errorf("'every' schedule requires positive 'everyMs' value")
	}

	return time.Now().UnixMilli() + schedule.EveryMs, nil
}

// calculateCronSchedule calculates next run for "cron" schedule
func calculateCronSchedule(schedule Schedule) (int64, error) {
	if schedule.Expr == "" {
		return 0, fmt.Errorf("'cron' schedule requires 'expr' field")
	}

	// Parse cron expression
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule.Expr)
	if err != nil {
		return 0, fmt.Errorf("invalid cron expression: %w", err)
	}

	// Get current time in appropriate timezone
	now := time.Now()
	if schedule.TZ != "" {
		loc, err := time.LoadLocation(schedule.TZ)
		if err != nil {
			return 0, fmt.Errorf("invalid timezone: %w", err)
		}
		now = now.In(loc)
	}

	// Calculate next run time
	next := sched.Next(now)

	return next.UnixMilli(), nil
}

// Scheduler fires a callback on a recurring schedule. It arms a single
// timer for the next run and re-arms after each fire.
type Scheduler struct {
	schedule Schedule
	fn       func()
	mu       sync.Mutex
	timer    *time.Timer
	stopped  bool
	nextRun  time.Time
}

// NewScheduler validates the schedule and returns an unstarted scheduler
func NewScheduler(schedule Schedule, fn func()) (*Scheduler, error) {
	if fn == nil {
		return nil, fmt.Errorf("callback is required")
	}
	if _, err := CalculateNextRun(schedule); err != nil {
		return nil, err
	}

	return &Scheduler{
		schedule: schedule,
		fn:       fn,
	}, nil
}

// Start arms the timer for the next run
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("scheduler is stopped")
	}

	return s.armLocked()
}

// armLocked schedules the next fire (must hold lock)
func (s *Scheduler) armLocked() error {
	nextRunAtMs, err := CalculateNextRun(s.schedule)
	if err != nil {
		return err
	}

	delay := nextRunAtMs - time.Now().UnixMilli()
	if delay < 0 {
		delay = 0
	}

	s.nextRun = time.UnixMilli(nextRunAtMs)
	s.timer = time.AfterFunc(time.Duration(delay)*time.Millisecond, s.fire)

	log.Debug().
		Int64("delayMs", delay).
		Time("nextRun", s.nextRun).
		Msg("Job scheduled")

	return nil
}

// fire runs the callback and re-arms for the next run
func (s *Scheduler) fire() {
	s.fn()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	// One-shot schedules do not recur
	if s.schedule.Kind == ScheduleKindAt {
		return
	}

	if err := s.armLocked(); err != nil {
		log.Error().Err(err).Msg("Failed to re-arm scheduler")
	}
}

// NextRun returns the time of the next scheduled fire
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRun
}

// Stop cancels the pending timer. A fire already in progress completes.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
	}
}
