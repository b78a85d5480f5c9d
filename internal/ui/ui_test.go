package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/morningshift/internal/timer"
	"github.com/marcus/morningshift/internal/workout"
)

type fakeController struct {
	calls []string
	err   error
}

func (f *fakeController) Pause() error  { f.calls = append(f.calls, "pause"); return f.err }
func (f *fakeController) Resume() error { f.calls = append(f.calls, "resume"); return f.err }
func (f *fakeController) Stop() error   { f.calls = append(f.calls, "stop"); return f.err }
func (f *fakeController) Status() timer.Snapshot {
	return timer.Snapshot{}
}

func testPlan(t *testing.T) *workout.Plan {
	t.Helper()
	plan, err := workout.BuildPlan(20*time.Minute, 5*time.Minute, 2)
	if err != nil {
		t.Fatal(err)
	}
	return plan
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	model, cmd := m.Update(msg)
	return model.(Model), cmd
}

func startedModel(t *testing.T, ctrl Controller) Model {
	t.Helper()
	m := New("Classic workout", testPlan(t), nil)
	m, _ = update(t, m, startedMsg{ctrl: ctrl})
	return m
}

func TestNew(t *testing.T) {
	m := New("Classic workout", testPlan(t), nil)

	if m.width != 60 {
		t.Errorf("expected width 60, got %d", m.width)
	}
	if m.kind != workout.Work {
		t.Errorf("expected first phase Work, got %v", m.kind)
	}
	if m.remaining != 20*time.Minute {
		t.Errorf("expected remaining 20m, got %v", m.remaining)
	}
	if m.styles == nil {
		t.Error("expected styles to be initialized")
	}
	if m.Init() != nil {
		t.Error("Init() without a start func should return nil")
	}
}

func TestInitStartsEngine(t *testing.T) {
	ctrl := &fakeController{}
	var got timer.Reporter
	m := New("x", testPlan(t), func(r timer.Reporter) (Controller, error) {
		got = r
		return ctrl, nil
	})
	m.reporter = &Reporter{}

	cmd := m.Init()
	if cmd == nil {
		t.Fatal("Init() should return a command")
	}
	msg := cmd()
	started, ok := msg.(startedMsg)
	if !ok {
		t.Fatalf("expected startedMsg, got %T", msg)
	}
	if started.ctrl != ctrl || got != m.reporter {
		t.Error("start func not called with the model's reporter")
	}

	m, _ = update(t, m, started)
	if m.ctrl != ctrl {
		t.Error("controller not stored")
	}
}

func TestStartFailureQuits(t *testing.T) {
	m := New("x", testPlan(t), nil)
	m, cmd := update(t, m, startedMsg{err: errors.New("already running")})
	if cmd == nil || !m.quitting {
		t.Error("expected quit after start failure")
	}
	if m.Err() == nil {
		t.Error("expected Err() to report the start failure")
	}
	if m.View() != "" {
		t.Error("View() should be empty when quitting")
	}
}

func TestPhaseLifecycle(t *testing.T) {
	m := startedModel(t, &fakeController{})
	ex := &workout.Exercise{Name: "Squats", Description: "Back straight"}

	m, _ = update(t, m, phaseStartMsg{kind: workout.Work, duration: 20 * time.Minute, exercise: ex})
	m, _ = update(t, m, tickMsg{remaining: 10 * time.Minute, progress: 0.5})
	if m.remaining != 10*time.Minute || m.progress != 0.5 {
		t.Errorf("tick not applied: remaining=%v progress=%v", m.remaining, m.progress)
	}
	if !strings.Contains(m.View(), "10:00") {
		t.Error("View missing countdown")
	}
	if !strings.Contains(m.View(), "Squats") {
		t.Error("View missing exercise")
	}

	m, _ = update(t, m, phaseCompleteMsg{kind: workout.Work})
	m, _ = update(t, m, phaseStartMsg{kind: workout.Break, duration: 5 * time.Minute})
	if m.phaseIndex != 1 {
		t.Errorf("expected phaseIndex 1, got %d", m.phaseIndex)
	}
	if m.cycle() != 1 {
		t.Errorf("break after first work belongs to cycle 1, got %d", m.cycle())
	}
	if strings.Contains(m.View(), "Back straight") {
		t.Error("break phases should not show the exercise")
	}

	m, _ = update(t, m, phaseCompleteMsg{kind: workout.Break})
	m, _ = update(t, m, phaseStartMsg{kind: workout.Work, duration: 20 * time.Minute})
	if m.cycle() != 2 {
		t.Errorf("expected cycle 2, got %d", m.cycle())
	}
	if !strings.Contains(m.View(), workout.FallbackExercise.Name) {
		t.Error("work phase without exercise should show the fallback")
	}

	history := m.History()
	if len(history) != 2 || history[0].Exercise != "Squats" || history[1].Kind != workout.Break {
		t.Errorf("unexpected history: %+v", history)
	}

	m, cmd := update(t, m, finishedMsg{state: timer.StateCompleted})
	if !m.finished || m.Final() != timer.StateCompleted || cmd == nil {
		t.Error("expected completed and quit")
	}
	if !strings.Contains(m.View(), "completed") {
		t.Error("final view should show completion")
	}
}

func TestKeyHandlingControls(t *testing.T) {
	ctrl := &fakeController{}
	m := startedModel(t, ctrl)

	// Space pauses through a command, never directly.
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if len(ctrl.calls) != 0 {
		t.Fatal("engine called from Update")
	}
	if cmd == nil {
		t.Fatal("expected pause command")
	}
	if msg := cmd().(controlMsg); msg.action != "pause" {
		t.Errorf("expected pause, got %s", msg.action)
	}

	m, _ = update(t, m, pausedMsg{})
	if !strings.Contains(m.View(), "paused") {
		t.Error("View should show paused")
	}

	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	if msg := cmd().(controlMsg); msg.action != "resume" {
		t.Errorf("expected resume, got %s", msg.action)
	}

	m, _ = update(t, m, resumedMsg{})
	if m.paused {
		t.Error("expected resumed")
	}

	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	if msg := cmd().(controlMsg); msg.action != "stop" {
		t.Errorf("expected stop, got %s", msg.action)
	}

	want := []string{"pause", "resume", "stop"}
	if strings.Join(ctrl.calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", ctrl.calls, want)
	}

	m, cmd = update(t, m, controlMsg{action: "stop"})
	if !m.quitting || cmd == nil {
		t.Error("expected quit after stop")
	}
}

func TestKeyHandlingQuitBeforeStart(t *testing.T) {
	m := New("x", testPlan(t), nil)
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if !m.quitting || cmd == nil {
		t.Error("expected quit when nothing is running")
	}
}

func TestUpdateWindowSize(t *testing.T) {
	m := New("x", testPlan(t), nil)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	if m.width != 120 {
		t.Errorf("expected width 120, got %d", m.width)
	}
	if m.bar.Width != 112 {
		t.Errorf("expected bar width 112, got %d", m.bar.Width)
	}
}

func TestHelpBar(t *testing.T) {
	m := New("x", testPlan(t), nil)
	help := m.renderHelpBar()
	for _, want := range []string{"space", "pause/resume", "stop", "quit"} {
		if !strings.Contains(help, want) {
			t.Errorf("help bar missing %q", want)
		}
	}
}

func TestReporterForwards(t *testing.T) {
	var got []tea.Msg
	r := &Reporter{send: func(msg tea.Msg) { got = append(got, msg) }}

	r.OnPhaseStart(workout.Work, time.Minute, nil)
	r.OnTick(30*time.Second, 0.5)
	r.OnPhaseComplete(workout.Work)
	r.OnPaused()
	r.OnResumed()
	r.OnStopped()

	if len(got) != 6 {
		t.Fatalf("expected 6 messages, got %d", len(got))
	}
	if fin, ok := got[5].(finishedMsg); !ok || fin.state != timer.StateStopped {
		t.Errorf("expected stopped finish, got %#v", got[5])
	}

	// Unbound reporters drop events.
	var nilReporter *Reporter
	nilReporter.OnCompleted()
	(&Reporter{}).OnCompleted()
}
