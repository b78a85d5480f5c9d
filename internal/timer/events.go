package timer

import (
	"time"

	"github.com/marcus/morningshift/internal/workout"
)

// EventType classifies engine lifecycle events.
type EventType int

const (
	EventPhaseStart    EventType = iota // entering a work or break phase
	EventTick                           // countdown progress
	EventPhaseComplete                  // phase countdown reached zero
	EventCompleted                      // last phase finished
	EventStopped                        // run stopped by a caller
	EventPaused
	EventResumed
)

func (t EventType) String() string {
	switch t {
	case EventPhaseStart:
		return "phase_start"
	case EventTick:
		return "tick"
	case EventPhaseComplete:
		return "phase_complete"
	case EventCompleted:
		return "completed"
	case EventStopped:
		return "stopped"
	case EventPaused:
		return "paused"
	case EventResumed:
		return "resumed"
	default:
		return "unknown"
	}
}

// Event carries the data of a single Reporter call.
type Event struct {
	Type      EventType
	Time      time.Time
	Kind      workout.PhaseKind // phase start/complete
	Duration  time.Duration     // phase start: full phase length
	Remaining time.Duration     // tick
	Progress  float64           // tick: 0..1
	Exercise  *workout.Exercise // phase start of a work phase
}

// EventHandler is a callback that receives engine events.
type EventHandler func(Event)

// HandlerReporter adapts an EventHandler to the Reporter interface.
type HandlerReporter struct {
	Handle EventHandler
}

// NewHandlerReporter returns a Reporter that forwards every call to h as an Event.
func NewHandlerReporter(h EventHandler) *HandlerReporter {
	return &HandlerReporter{Handle: h}
}

func (h *HandlerReporter) emit(ev Event) {
	if h.Handle == nil {
		return
	}
	ev.Time = time.Now()
	h.Handle(ev)
}

func (h *HandlerReporter) OnPhaseStart(kind workout.PhaseKind, d time.Duration, ex *workout.Exercise) {
	h.emit(Event{Type: EventPhaseStart, Kind: kind, Duration: d, Exercise: ex})
}

func (h *HandlerReporter) OnTick(remaining time.Duration, progress float64) {
	h.emit(Event{Type: EventTick, Remaining: remaining, Progress: progress})
}

func (h *HandlerReporter) OnPhaseComplete(kind workout.PhaseKind) {
	h.emit(Event{Type: EventPhaseComplete, Kind: kind})
}

func (h *HandlerReporter) OnCompleted() { h.emit(Event{Type: EventCompleted}) }
func (h *HandlerReporter) OnStopped()   { h.emit(Event{Type: EventStopped}) }
func (h *HandlerReporter) OnPaused()    { h.emit(Event{Type: EventPaused}) }
func (h *HandlerReporter) OnResumed()   { h.emit(Event{Type: EventResumed}) }
