package timer

import (
	"time"

	"github.com/marcus/morningshift/internal/workout"
)

// Reporter receives progress and lifecycle events from an Engine.
//
// Calls are made from the engine's goroutines in a total order. A Reporter
// must not call back into the same Engine synchronously; schedule control
// calls on another goroutine instead.
type Reporter interface {
	OnPhaseStart(kind workout.PhaseKind, duration time.Duration, exercise *workout.Exercise)
	OnTick(remaining time.Duration, progress float64)
	OnPhaseComplete(kind workout.PhaseKind)
	OnCompleted()
	OnStopped()
	OnPaused()
	OnResumed()
}

// NopReporter discards every event.
type NopReporter struct{}

func (NopReporter) OnPhaseStart(workout.PhaseKind, time.Duration, *workout.Exercise) {}
func (NopReporter) OnTick(time.Duration, float64)                                    {}
func (NopReporter) OnPhaseComplete(workout.PhaseKind)                                {}
func (NopReporter) OnCompleted()                                                     {}
func (NopReporter) OnStopped()                                                       {}
func (NopReporter) OnPaused()                                                        {}
func (NopReporter) OnResumed()                                                       {}

// MultiReporter fans every event out to each reporter in order.
type MultiReporter []Reporter

// Reporters builds a MultiReporter, skipping nil entries.
func Reporters(rs ...Reporter) MultiReporter {
	out := make(MultiReporter, 0, len(rs))
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (m MultiReporter) OnPhaseStart(kind workout.PhaseKind, d time.Duration, ex *workout.Exercise) {
	for _, r := range m {
		r.OnPhaseStart(kind, d, ex)
	}
}

func (m MultiReporter) OnTick(remaining time.Duration, progress float64) {
	for _, r := range m {
		r.OnTick(remaining, progress)
	}
}

func (m MultiReporter) OnPhaseComplete(kind workout.PhaseKind) {
	for _, r := range m {
		r.OnPhaseComplete(kind)
	}
}

func (m MultiReporter) OnCompleted() {
	for _, r := range m {
		r.OnCompleted()
	}
}

func (m MultiReporter) OnStopped() {
	for _, r := range m {
		r.OnStopped()
	}
}

func (m MultiReporter) OnPaused() {
	for _, r := range m {
		r.OnPaused()
	}
}

func (m MultiReporter) OnResumed() {
	for _, r := range m {
		r.OnResumed()
	}
}
