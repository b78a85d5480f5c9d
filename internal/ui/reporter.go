package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/morningshift/internal/timer"
	"github.com/marcus/morningshift/internal/workout"
)

// Reporter forwards engine events to a running program. Send blocks until
// the program receives the message, so the model must never call the engine
// from Update.
type Reporter struct {
	send func(tea.Msg)
}

// NewReporter returns a Reporter that delivers messages to p.
func NewReporter(p *tea.Program) *Reporter {
	return &Reporter{send: p.Send}
}

func (r *Reporter) emit(msg tea.Msg) {
	if r == nil || r.send == nil {
		return
	}
	r.send(msg)
}

func (r *Reporter) OnPhaseStart(kind workout.PhaseKind, d time.Duration, ex *workout.Exercise) {
	r.emit(phaseStartMsg{kind: kind, duration: d, exercise: ex})
}

func (r *Reporter) OnTick(remaining time.Duration, progress float64) {
	r.emit(tickMsg{remaining: remaining, progress: progress})
}

func (r *Reporter) OnPhaseComplete(kind workout.PhaseKind) {
	r.emit(phaseCompleteMsg{kind: kind})
}

func (r *Reporter) OnCompleted() { r.emit(finishedMsg{state: timer.StateCompleted}) }
func (r *Reporter) OnStopped()   { r.emit(finishedMsg{state: timer.StateStopped}) }
func (r *Reporter) OnPaused()    { r.emit(pausedMsg{}) }
func (r *Reporter) OnResumed()   { r.emit(resumedMsg{}) }

var _ timer.Reporter = (*Reporter)(nil)
