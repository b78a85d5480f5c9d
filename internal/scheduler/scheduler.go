// Package scheduler triggers scheduled workouts.
// Supports cron expressions or fixed intervals, optionally limited to a
// time-of-day window.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/marcus/morningshift/internal/config"
	"github.com/marcus/morningshift/internal/logging"
)

// Scheduler errors.
var (
	ErrNoSchedule     = errors.New("no cron or interval configured")
	ErrAlreadyRunning = errors.New("scheduler already running")
	ErrNotRunning     = errors.New("scheduler not running")
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Job is run on every trigger that falls inside the window.
type Job func(ctx context.Context) error

// TimeOfDay is a wall clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" (a single digit hour is accepted).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return TimeOfDay{}, fmt.Errorf("time of day %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return TimeOfDay{}, fmt.Errorf("time of day %q: bad hour", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("time of day %q: bad minute", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// Window is a daily time range. End is exclusive; an End before Start wraps
// past midnight.
type Window struct {
	Start    TimeOfDay
	End      TimeOfDay
	Location *time.Location
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if w.Location != nil {
		t = t.In(w.Location)
	}
	now := t.Hour()*60 + t.Minute()
	start, end := w.Start.Minutes(), w.End.Minutes()
	if start <= end {
		return now >= start && now < end
	}
	return now >= start || now < end
}

// Scheduler runs jobs on a cron expression or interval.
type Scheduler struct {
	mu sync.Mutex

	cronExpr string
	schedule cron.Schedule
	interval time.Duration
	window   *Window
	jobs     []Job

	running bool
	cron    *cron.Cron
	cancel  context.CancelFunc
	done    chan struct{}
	nextRun time.Time

	log *logging.Logger
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{log: logging.Component("scheduler")}
}

// NewFromConfig builds a scheduler from the schedule section.
func NewFromConfig(cfg *config.ScheduleConfig) (*Scheduler, error) {
	if cfg == nil || !cfg.HasSchedule() {
		return nil, ErrNoSchedule
	}

	s := New()
	if cfg.Cron != "" {
		if err := s.SetCron(cfg.Cron); err != nil {
			return nil, err
		}
	}
	if cfg.Interval != "" {
		d, err := time.ParseDuration(cfg.Interval)
		if err != nil {
			return nil, fmt.Errorf("parse interval %q: %w", cfg.Interval, err)
		}
		if err := s.SetInterval(d); err != nil {
			return nil, err
		}
	}
	if cfg.Window != nil {
		if err := s.SetWindow(cfg.Window); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// SetCron sets a five-field cron expression.
func (s *Scheduler) SetCron(expr string) error {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return fmt.Errorf("parse cron %q: %w", expr, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cronExpr = expr
	s.schedule = sched
	return nil
}

// SetInterval sets a fixed trigger interval.
func (s *Scheduler) SetInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("interval must be positive, got %v", d)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = d
	return nil
}

// SetWindow limits triggers to a daily window. nil clears it.
func (s *Scheduler) SetWindow(cfg *config.WindowConfig) error {
	if cfg == nil {
		s.mu.Lock()
		s.window = nil
		s.mu.Unlock()
		return nil
	}

	start, err := ParseTimeOfDay(cfg.Start)
	if err != nil {
		return fmt.Errorf("window start: %w", err)
	}
	end, err := ParseTimeOfDay(cfg.End)
	if err != nil {
		return fmt.Errorf("window end: %w", err)
	}
	loc := time.Local
	if cfg.Timezone != "" {
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return fmt.Errorf("window timezone: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.window = &Window{Start: start, End: end, Location: loc}
	return nil
}

// AddJob registers a job. Jobs run sequentially in registration order.
func (s *Scheduler) AddJob(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
}

// Start begins triggering. Cancelling ctx stops the triggers.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	if s.schedule == nil && s.interval <= 0 {
		return ErrNoSchedule
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	if s.schedule != nil {
		s.cron = cron.New(cron.WithParser(cronParser))
		s.cron.Schedule(s.schedule, cron.FuncJob(func() { s.trigger(runCtx) }))
		s.cron.Start()
		s.nextRun = s.schedule.Next(time.Now())
		go s.waitCron(runCtx)
	} else {
		s.nextRun = time.Now().Add(s.interval)
		go s.loopInterval(runCtx, s.interval)
	}

	s.log.Infof("scheduler started (%s)", s.describeLocked())
	return nil
}

// Stop halts triggers and waits for a running job to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.log.Info("scheduler stopped")
	return nil
}

// IsRunning reports whether Start has been called without Stop.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next trigger time, or zero when stopped.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return time.Time{}
	}
	return s.nextRun
}

// NextRuns returns up to n upcoming trigger times after from that fall
// inside the window. It works whether or not the scheduler is running.
func (s *Scheduler) NextRuns(n int, from time.Time) []time.Time {
	s.mu.Lock()
	sched, interval, w := s.schedule, s.interval, s.window
	s.mu.Unlock()
	if n <= 0 || (sched == nil && interval <= 0) {
		return nil
	}

	var runs []time.Time
	t := from
	// A window can reject most triggers; give up after a bounded scan.
	for tries := 0; len(runs) < n && tries < n*1440; tries++ {
		if sched != nil {
			t = sched.Next(t)
		} else {
			t = t.Add(interval)
		}
		if t.IsZero() {
			break
		}
		if w == nil || w.Contains(t) {
			runs = append(runs, t)
		}
	}
	return runs
}

// IsInWindow reports whether t is inside the window. No window means always.
func (s *Scheduler) IsInWindow(t time.Time) bool {
	s.mu.Lock()
	w := s.window
	s.mu.Unlock()
	return w == nil || w.Contains(t)
}

func (s *Scheduler) describeLocked() string {
	var parts []string
	if s.cronExpr != "" {
		parts = append(parts, "cron "+s.cronExpr)
	} else {
		parts = append(parts, "every "+s.interval.String())
	}
	if s.window != nil {
		parts = append(parts, fmt.Sprintf("window %s-%s %s", s.window.Start, s.window.End, s.window.Location))
	}
	return strings.Join(parts, ", ")
}

func (s *Scheduler) waitCron(ctx context.Context) {
	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	close(s.done)
}

func (s *Scheduler) loopInterval(ctx context.Context, interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.trigger(ctx)
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context) {
	now := time.Now()

	s.mu.Lock()
	if s.schedule != nil {
		s.nextRun = s.schedule.Next(now)
	} else {
		s.nextRun = now.Add(s.interval)
	}
	jobs := append([]Job(nil), s.jobs...)
	s.mu.Unlock()

	if !s.IsInWindow(now) {
		s.log.Debugf("trigger at %s outside window, skipping", now.Format(time.Kitchen))
		return
	}

	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		if err := job(ctx); err != nil {
			s.log.Errorf("scheduled job: %v", err)
		}
	}
}
