// Package timer runs a workout plan as a countdown state machine.
//
// An Engine owns one run: Start launches a background loop that counts each
// phase down against the wall clock, while Pause, Resume, Stop and Status may
// be called concurrently from any goroutine.
package timer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/marcus/morningshift/internal/workout"
)

// Constants for the countdown loop.
const (
	DefaultTickInterval = time.Second
	MaxTickInterval     = time.Second
)

// Control errors. None of them changes run state.
var (
	ErrAlreadyRunning = errors.New("timer already running")
	ErrNotRunning     = errors.New("timer not running")
	ErrNotPaused      = errors.New("timer not paused")
	ErrTerminal       = errors.New("timer already finished")
)

// RunState is the lifecycle state of an Engine.
type RunState int

const (
	StateIdle RunState = iota
	StateRunning
	StatePaused
	StateCompleted
	StateStopped
)

func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Terminal reports whether no transition can leave the state.
func (s RunState) Terminal() bool {
	return s == StateCompleted || s == StateStopped
}

// Snapshot is an immutable copy of an engine's run state.
type Snapshot struct {
	RunID         string
	Name          string
	State         RunState
	PhaseIndex    int
	TotalPhases   int
	PhaseKind     workout.PhaseKind
	PhaseDuration time.Duration
	Remaining     time.Duration
	Progress      float64
	Cycle         int
	TotalCycles   int
	Exercise      *workout.Exercise
}

// Option configures an Engine.
type Option func(*Engine)

// WithReporter sets the progress sink.
func WithReporter(r Reporter) Option {
	return func(e *Engine) {
		e.reporter = r
	}
}

// WithExercises sets the exercises the picker draws from at each work phase.
func WithExercises(exercises []workout.Exercise) Option {
	return func(e *Engine) {
		e.exercises = append([]workout.Exercise(nil), exercises...)
	}
}

// WithPicker sets the exercise picker.
func WithPicker(p *workout.Picker) Option {
	return func(e *Engine) {
		e.picker = p
	}
}

// WithTickInterval sets how often progress is recomputed and reported.
// Values above MaxTickInterval are capped.
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.tick = d
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// emission is a deferred Reporter call.
type emission func(Reporter)

// Engine executes a workout plan. It is single use: once Completed or
// Stopped a new Engine is required.
type Engine struct {
	name      string
	plan      *workout.Plan
	exercises []workout.Exercise
	picker    *workout.Picker
	reporter  Reporter
	tick      time.Duration
	now       func() time.Time

	// mu guards the run record below. emitMu is taken before mu is released
	// so reporter calls happen in state-change order.
	mu         sync.Mutex
	emitMu     sync.Mutex
	runID      string
	state      RunState
	index      int
	remaining  time.Duration
	phaseStart time.Time
	exercise   *workout.Exercise
	stopCh     chan struct{}
	done       chan struct{}

	snapshot atomic.Pointer[Snapshot]
}

// New creates an idle Engine for plan.
func New(name string, plan *workout.Plan, opts ...Option) *Engine {
	e := &Engine{
		name:   name,
		plan:   plan,
		tick:   DefaultTickInterval,
		now:    time.Now,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tick <= 0 {
		e.tick = DefaultTickInterval
	}
	if e.tick > MaxTickInterval {
		e.tick = MaxTickInterval
	}
	if e.reporter == nil {
		e.reporter = NopReporter{}
	}
	if e.picker == nil {
		e.picker = workout.NewPicker(nil)
	}
	if e.now == nil {
		e.now = time.Now
	}
	e.remaining = plan.Phase(0).Duration

	e.mu.Lock()
	e.publishLocked()
	e.mu.Unlock()
	return e
}

// Name returns the display name of the run.
func (e *Engine) Name() string {
	return e.name
}

// Plan returns the phase plan.
func (e *Engine) Plan() *workout.Plan {
	return e.plan
}

// Start begins phase 0 and launches the countdown loop.
func (e *Engine) Start() error {
	e.mu.Lock()
	switch e.state {
	case StateRunning, StatePaused:
		e.mu.Unlock()
		return ErrAlreadyRunning
	case StateCompleted, StateStopped:
		e.mu.Unlock()
		return ErrTerminal
	}

	e.runID = uuid.New().String()
	e.state = StateRunning
	e.index = 0
	e.enterPhaseLocked(e.now())
	e.publishLocked()

	first := e.plan.Phase(0)
	exercise := e.exercise
	go e.run()

	e.emitLocked(func(r Reporter) {
		r.OnPhaseStart(first.Kind, first.Duration, exercise)
	})
	return nil
}

// Pause freezes the countdown. It returns ErrNotRunning unless the engine
// is Running.
func (e *Engine) Pause() error {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return ErrNotRunning
	}

	// A phase that has already run out completes before the pause applies.
	events := e.catchUpLocked(e.now())
	if e.state == StateCompleted {
		e.publishLocked()
		e.emitLocked(events...)
		return ErrNotRunning
	}

	e.state = StatePaused
	e.publishLocked()
	events = append(events, func(r Reporter) { r.OnPaused() })
	e.emitLocked(events...)
	return nil
}

// Resume continues a paused countdown from the frozen remaining time.
func (e *Engine) Resume() error {
	e.mu.Lock()
	if e.state != StatePaused {
		e.mu.Unlock()
		return ErrNotPaused
	}

	phase := e.plan.Phase(e.index)
	e.phaseStart = e.now().Add(-(phase.Duration - e.remaining))
	e.state = StateRunning
	e.publishLocked()
	e.emitLocked(func(r Reporter) { r.OnResumed() })
	return nil
}

// Stop halts the run. Stopping a finished engine is a no-op; stopping an
// idle engine retires it without emitting events.
func (e *Engine) Stop() error {
	e.mu.Lock()
	switch e.state {
	case StateCompleted, StateStopped:
		e.mu.Unlock()
		return nil
	case StateIdle:
		e.state = StateStopped
		close(e.stopCh)
		close(e.done)
		e.publishLocked()
		e.mu.Unlock()
		return nil
	}

	if e.state == StateRunning {
		e.refreshLocked(e.now())
	}
	e.state = StateStopped
	close(e.stopCh)
	e.publishLocked()
	e.emitLocked(func(r Reporter) { r.OnStopped() })
	return nil
}

// Status returns the latest snapshot without waiting on the countdown loop.
func (e *Engine) Status() Snapshot {
	return *e.snapshot.Load()
}

// Done is closed once the countdown loop has exited.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until the run finishes or ctx is cancelled and returns the
// final state.
func (e *Engine) Wait(ctx context.Context) (RunState, error) {
	select {
	case <-e.done:
		return e.Status().State, nil
	case <-ctx.Done():
		return e.Status().State, ctx.Err()
	}
}

func (e *Engine) run() {
	defer close(e.done)

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			if !e.step() {
				return
			}
		}
	}
}

// step recomputes the current phase and advances when it has run out.
// It returns false once the run is over.
func (e *Engine) step() bool {
	e.mu.Lock()
	switch e.state {
	case StatePaused:
		e.mu.Unlock()
		return true
	case StateRunning:
	default:
		e.mu.Unlock()
		return false
	}

	now := e.now()
	e.refreshLocked(now)
	remaining, progress := e.remaining, e.progressLocked()
	events := []emission{func(r Reporter) { r.OnTick(remaining, progress) }}
	if remaining == 0 {
		events = append(events, e.catchUpLocked(now)...)
	}
	finished := e.state.Terminal()
	e.publishLocked()
	e.emitLocked(events...)
	return !finished
}

// refreshLocked recomputes remaining from elapsed wall-clock time.
func (e *Engine) refreshLocked(now time.Time) {
	phase := e.plan.Phase(e.index)
	remaining := phase.Duration - now.Sub(e.phaseStart)
	if remaining < 0 {
		remaining = 0
	}
	if remaining > phase.Duration {
		remaining = phase.Duration
	}
	e.remaining = remaining
}

// catchUpLocked completes every phase whose deadline is not after now. A
// late tick may therefore cross several short or zero-length phases.
func (e *Engine) catchUpLocked(now time.Time) []emission {
	var events []emission
	for e.state == StateRunning {
		e.refreshLocked(now)
		if e.remaining > 0 {
			break
		}
		events = append(events, e.advanceLocked()...)
	}
	return events
}

// advanceLocked completes the current phase and enters the next one, or
// completes the run after the last phase. The next phase starts at the
// deadline of the finished one, not when the tick was handled.
func (e *Engine) advanceLocked() []emission {
	done := e.plan.Phase(e.index)
	events := []emission{func(r Reporter) { r.OnPhaseComplete(done.Kind) }}

	if e.index == e.plan.Len()-1 {
		e.state = StateCompleted
		e.remaining = 0
		return append(events, func(r Reporter) { r.OnCompleted() })
	}

	deadline := e.phaseStart.Add(done.Duration)
	e.index++
	e.enterPhaseLocked(deadline)
	next := e.plan.Phase(e.index)
	exercise := e.exercise
	return append(events, func(r Reporter) {
		r.OnPhaseStart(next.Kind, next.Duration, exercise)
	})
}

func (e *Engine) enterPhaseLocked(now time.Time) {
	phase := e.plan.Phase(e.index)
	e.phaseStart = now
	e.remaining = phase.Duration
	if phase.Kind == workout.Work {
		ex := e.picker.Pick(e.exercises)
		e.exercise = &ex
	} else {
		e.exercise = nil
	}
}

func (e *Engine) progressLocked() float64 {
	if e.state == StateCompleted {
		return 1
	}
	d := e.plan.Phase(e.index).Duration
	if d <= 0 {
		return 1
	}
	return float64(d-e.remaining) / float64(d)
}

func (e *Engine) publishLocked() {
	phase := e.plan.Phase(e.index)
	e.snapshot.Store(&Snapshot{
		RunID:         e.runID,
		Name:          e.name,
		State:         e.state,
		PhaseIndex:    e.index,
		TotalPhases:   e.plan.Len(),
		PhaseKind:     phase.Kind,
		PhaseDuration: phase.Duration,
		Remaining:     e.remaining,
		Progress:      e.progressLocked(),
		Cycle:         e.plan.CycleOf(e.index),
		TotalCycles:   e.plan.Cycles(),
		Exercise:      e.exercise,
	})
}

// emitLocked hands off from mu to emitMu and delivers events in order.
// It must be called with mu held and returns with both released.
func (e *Engine) emitLocked(events ...emission) {
	e.emitMu.Lock()
	e.mu.Unlock()
	defer e.emitMu.Unlock()
	for _, ev := range events {
		ev(e.reporter)
	}
}
