// Package manager owns the preset set and the single active workout timer.
package manager

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marcus/morningshift/internal/logging"
	"github.com/marcus/morningshift/internal/presets"
	"github.com/marcus/morningshift/internal/timer"
	"github.com/marcus/morningshift/internal/workout"
)

// Manager errors. ErrAlreadyRunning is the timer package's sentinel so
// callers can check either.
var (
	ErrNotFound       = errors.New("preset not found")
	ErrConfig         = errors.New("presets unavailable")
	ErrNoActiveTimer  = errors.New("no active timer")
	ErrAlreadyRunning = timer.ErrAlreadyRunning
)

// Option configures a Manager.
type Option func(*Manager)

// WithReporters adds reporters attached to every engine the manager creates.
func WithReporters(rs ...timer.Reporter) Option {
	return func(m *Manager) {
		m.reporters = append(m.reporters, rs...)
	}
}

// WithTickInterval sets the tick of created engines.
func WithTickInterval(d time.Duration) Option {
	return func(m *Manager) {
		m.tick = d
	}
}

// WithPicker sets the exercise picker shared by created engines.
func WithPicker(p *workout.Picker) Option {
	return func(m *Manager) {
		m.picker = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) {
		m.log = l
	}
}

// Manager creates engines from presets and holds at most one of them as the
// current run. All methods are safe for concurrent use.
type Manager struct {
	reporters []timer.Reporter
	tick      time.Duration
	picker    *workout.Picker
	log       *logging.Logger

	mu      sync.Mutex
	presets []presets.Preset
	index   map[string]int
	current *timer.Engine
}

// New creates a manager with no presets loaded.
func New(opts ...Option) *Manager {
	m := &Manager{
		tick:  timer.DefaultTickInterval,
		index: map[string]int{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logging.Component("manager")
	}
	if m.picker == nil {
		m.picker = workout.NewPicker(nil)
	}
	return m
}

// Load replaces the preset set from src. On failure the manager keeps
// running with no presets and the error wraps ErrConfig.
func (m *Manager) Load(src presets.Source) error {
	list, err := src.Load()
	if err != nil {
		m.log.Errorf("load presets: %v", err)
		m.setPresets(nil)
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	m.setPresets(list)
	m.log.Infof("loaded %d presets", len(list))
	return nil
}

// Reload swaps in presets from src. On failure the current set is kept.
// The held engine is unaffected either way.
func (m *Manager) Reload(src presets.Source) error {
	list, err := src.Load()
	if err != nil {
		m.log.Warnf("reload presets, keeping previous set: %v", err)
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	m.setPresets(list)
	m.log.Infof("reloaded %d presets", len(list))
	return nil
}

func (m *Manager) setPresets(list []presets.Preset) {
	index := make(map[string]int, len(list))
	for i, p := range list {
		index[p.ID] = i
	}
	m.mu.Lock()
	m.presets = list
	m.index = index
	m.mu.Unlock()
}

// Presets returns the loaded presets in load order.
func (m *Manager) Presets() []presets.Preset {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]presets.Preset(nil), m.presets...)
}

// Preset looks a preset up by id.
func (m *Manager) Preset(id string) (presets.Preset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.presetLocked(id)
}

func (m *Manager) presetLocked(id string) (presets.Preset, error) {
	i, ok := m.index[id]
	if !ok {
		return presets.Preset{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return m.presets[i], nil
}

// Create builds an idle engine for preset id. The engine is not held; the
// caller owns it. Extra reporters are attached after the manager's own.
func (m *Manager) Create(id string, extra ...timer.Reporter) (*timer.Engine, error) {
	p, err := m.Preset(id)
	if err != nil {
		return nil, err
	}
	return m.build(p, extra)
}

func (m *Manager) build(p presets.Preset, extra []timer.Reporter) (*timer.Engine, error) {
	plan, err := p.Plan()
	if err != nil {
		return nil, err
	}
	rs := append(append([]timer.Reporter(nil), m.reporters...), extra...)
	return timer.New(p.Name, plan,
		timer.WithExercises(p.Exercises),
		timer.WithPicker(m.picker),
		timer.WithTickInterval(m.tick),
		timer.WithReporter(timer.Reporters(rs...)),
	), nil
}

// StartByID creates and starts an engine for preset id and holds it as the
// current run. It fails with ErrAlreadyRunning while the held engine has not
// finished.
func (m *Manager) StartByID(id string, extra ...timer.Reporter) (*timer.Engine, error) {
	m.mu.Lock()
	if m.current != nil && !m.current.Status().State.Terminal() {
		m.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	p, err := m.presetLocked(id)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	e, err := m.build(p, extra)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	// Holding the idle engine reserves the slot; Start runs unlocked because
	// it calls reporters.
	m.current = e
	m.mu.Unlock()

	if err := e.Start(); err != nil {
		return nil, err
	}
	m.log.WithRun(e.Status().RunID, p.ID).Info("workout started")
	return e, nil
}

// Current returns the held engine, or nil.
func (m *Manager) Current() *timer.Engine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// StopCurrent stops the held engine and releases it. ErrNoActiveTimer is
// informational.
func (m *Manager) StopCurrent() error {
	m.mu.Lock()
	e := m.current
	m.current = nil
	m.mu.Unlock()

	if e == nil {
		return ErrNoActiveTimer
	}
	if err := e.Stop(); err != nil {
		return err
	}
	m.log.InfoCtx("workout stopped", map[string]any{"run_id": e.Status().RunID})
	return nil
}

// Status returns a snapshot of the held engine.
func (m *Manager) Status() (timer.Snapshot, error) {
	e := m.Current()
	if e == nil {
		return timer.Snapshot{}, ErrNoActiveTimer
	}
	return e.Status(), nil
}

// Pause pauses the held engine.
func (m *Manager) Pause() error {
	e := m.Current()
	if e == nil {
		return ErrNoActiveTimer
	}
	return e.Pause()
}

// Resume resumes the held engine.
func (m *Manager) Resume() error {
	e := m.Current()
	if e == nil {
		return ErrNoActiveTimer
	}
	return e.Resume()
}
