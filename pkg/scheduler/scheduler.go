// Package scheduler runs registered tasks once at startup and then daily at a
// fixed local time of day. Tasks run sequentially on the Run goroutine.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hixichen/client-secret-rotator/pkg/constants"
)

// Task is a unit of scheduled work. Its outcome is the task's own concern;
// the scheduler only recovers panics and logs them.
type Task func(ctx context.Context)

// TimeOfDay is a wall-clock time in the scheduler's location.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// String returns the time as HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimeOfDay parses "HH:MM" (24h clock).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return TimeOfDay{}, fmt.Errorf("time of day %q must be HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// Next returns the first occurrence of t strictly after now, in now's location.
func (t TimeOfDay) Next(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), t.Hour, t.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(now.Year(), now.Month(), now.Day()+1, t.Hour, t.Minute, 0, 0, now.Location())
	}
	return next
}

type startupTask struct {
	name string
	task Task
}

type dailyTask struct {
	name string
	at   TimeOfDay
	task Task
	next time.Time
}

// Scheduler holds startup and daily tasks.
type Scheduler struct {
	mu      sync.Mutex
	startup []startupTask
	daily   []*dailyTask
	running bool

	logger  *slog.Logger
	nowFunc func() time.Time
	after   func(time.Duration) <-chan time.Time
}

// New creates a Scheduler using the local wall clock.
func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		logger:  logger.With("component", constants.ComponentNameScheduler),
		nowFunc: time.Now,
		after:   time.After,
	}
}

// SetTimeFunc sets the time function (for testing).
func (s *Scheduler) SetTimeFunc(f func() time.Time) {
	s.nowFunc = f
}

// setAfterFunc replaces the timer source (for testing).
func (s *Scheduler) setAfterFunc(f func(time.Duration) <-chan time.Time) {
	s.after = f
}

// RegisterAtStartup adds a task that runs once when Run starts.
func (s *Scheduler) RegisterAtStartup(name string, task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startup = append(s.startup, startupTask{name: name, task: task})
	s.logger.Debug("registered startup task", "task", name)
}

// RegisterDaily adds a task that runs every day at the given time.
func (s *Scheduler) RegisterDaily(name string, at TimeOfDay, task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.daily = append(s.daily, &dailyTask{name: name, at: at, task: task})
	s.logger.Debug("registered daily task", "task", name, "at", at.String())
}

// Registered returns the number of startup and daily tasks.
func (s *Scheduler) Registered() (startup, daily int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.startup), len(s.daily)
}

// Run executes startup tasks, then daily tasks as they come due, until ctx
// is cancelled. Run must not be called concurrently.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	startup := append([]startupTask(nil), s.startup...)
	daily := append([]*dailyTask(nil), s.daily...)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	for _, t := range startup {
		if ctx.Err() != nil {
			return nil
		}
		s.invoke(ctx, t.name, t.task)
	}

	if len(daily) == 0 {
		<-ctx.Done()
		return nil
	}

	now := s.nowFunc()
	for _, t := range daily {
		t.next = t.at.Next(now)
		s.logger.Info("daily task scheduled", "task", t.name, "next", t.next.Format(time.RFC3339))
	}

	for {
		sort.SliceStable(daily, func(i, j int) bool { return daily[i].next.Before(daily[j].next) })
		wait := daily[0].next.Sub(s.nowFunc())
		if wait < 0 {
			wait = 0
		}

		select {
		case <-ctx.Done():
			return nil
		case <-s.after(wait):
		}

		now := s.nowFunc()
		for _, t := range daily {
			if t.next.After(now) {
				continue
			}
			s.invoke(ctx, t.name, t.task)
			t.next = t.at.Next(now)
			s.logger.Debug("daily task rescheduled", "task", t.name, "next", t.next.Format(time.RFC3339))
		}
	}
}

func (s *Scheduler) invoke(ctx context.Context, name string, task Task) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled task panicked", "task", name, "panic", r)
		}
	}()

	start := s.nowFunc()
	s.logger.Debug("running scheduled task", "task", name)
	task(ctx)
	s.logger.Debug("scheduled task finished", "task", name, "duration", s.nowFunc().Sub(start))
}
