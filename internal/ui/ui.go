// Package ui provides a terminal UI for following a workout.
// Uses Bubbletea for the live countdown; engine events arrive through a
// timer.Reporter that forwards them to the program.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/morningshift/internal/timer"
	"github.com/marcus/morningshift/internal/workout"
)

// Controller is the part of an engine the UI drives.
type Controller interface {
	Pause() error
	Resume() error
	Stop() error
	Status() timer.Snapshot
}

// Messages forwarded from the engine.
type (
	phaseStartMsg struct {
		kind     workout.PhaseKind
		duration time.Duration
		exercise *workout.Exercise
	}
	tickMsg struct {
		remaining time.Duration
		progress  float64
	}
	phaseCompleteMsg struct{ kind workout.PhaseKind }
	finishedMsg      struct{ state timer.RunState }
	pausedMsg        struct{}
	resumedMsg       struct{}
)

// startedMsg carries the controller once the engine has started.
type startedMsg struct {
	ctrl Controller
	err  error
}

// controlMsg reports the outcome of a control request.
type controlMsg struct {
	action string
	err    error
}

// HistoryEntry is a finished phase.
type HistoryEntry struct {
	Kind     workout.PhaseKind
	Duration time.Duration
	Exercise string
	Cycle    int
}

type keyMap struct {
	Toggle key.Binding
	Stop   key.Binding
	Quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Toggle: key.NewBinding(key.WithKeys(" ", "p"), key.WithHelp("space", "pause/resume")),
		Stop:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) help() []key.Binding {
	return []key.Binding{k.Toggle, k.Stop, k.Quit}
}

// Model holds the TUI state.
type Model struct {
	// Display state
	width    int
	quitting bool
	keys     keyMap
	bar      progress.Model
	styles   *Styles

	// Run
	name       string
	plan       *workout.Plan
	start      func(timer.Reporter) (Controller, error)
	reporter   timer.Reporter
	ctrl       Controller
	err        error
	phaseIndex int
	kind       workout.PhaseKind
	duration   time.Duration
	remaining  time.Duration
	progress   float64
	exercise   *workout.Exercise
	paused     bool
	finished   bool
	final      timer.RunState
	history    []HistoryEntry
}

// Styles holds lipgloss styles for the UI.
type Styles struct {
	Border lipgloss.Style

	Title    lipgloss.Style
	Label    lipgloss.Style
	Value    lipgloss.Style
	Muted    lipgloss.Style
	Clock    lipgloss.Style
	Exercise lipgloss.Style

	Work   lipgloss.Style
	Break  lipgloss.Style
	Paused lipgloss.Style
	Done   lipgloss.Style
	Error  lipgloss.Style

	HelpKey  lipgloss.Style
	HelpText lipgloss.Style
}

// newStyles creates the default style set.
func newStyles() *Styles {
	subtle := lipgloss.AdaptiveColor{Light: "#666", Dark: "#888"}
	highlight := lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	green := lipgloss.AdaptiveColor{Light: "#22863a", Dark: "#3fb950"}
	yellow := lipgloss.AdaptiveColor{Light: "#b08800", Dark: "#d29922"}
	red := lipgloss.AdaptiveColor{Light: "#cb2431", Dark: "#f85149"}
	blue := lipgloss.AdaptiveColor{Light: "#0366d6", Dark: "#58a6ff"}

	return &Styles{
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlight).
			Padding(0, 1),

		Title:    lipgloss.NewStyle().Bold(true).Foreground(highlight),
		Label:    lipgloss.NewStyle().Foreground(subtle),
		Value:    lipgloss.NewStyle().Bold(true),
		Muted:    lipgloss.NewStyle().Foreground(subtle),
		Clock:    lipgloss.NewStyle().Bold(true).Padding(0, 2),
		Exercise: lipgloss.NewStyle().Bold(true).Foreground(blue),

		Work:   lipgloss.NewStyle().Bold(true).Foreground(green),
		Break:  lipgloss.NewStyle().Bold(true).Foreground(blue),
		Paused: lipgloss.NewStyle().Bold(true).Foreground(yellow),
		Done:   lipgloss.NewStyle().Bold(true).Foreground(green),
		Error:  lipgloss.NewStyle().Bold(true).Foreground(red),

		HelpKey:  lipgloss.NewStyle().Foreground(highlight).Bold(true),
		HelpText: lipgloss.NewStyle().Foreground(subtle),
	}
}

// New creates a model for a run of plan. start is invoked from Init with a
// reporter bound to the program and must start the engine.
func New(name string, plan *workout.Plan, start func(timer.Reporter) (Controller, error)) Model {
	m := Model{
		width:  60,
		keys:   newKeyMap(),
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		styles: newStyles(),
		name:   name,
		plan:   plan,
		start:  start,
	}
	if plan != nil && plan.Len() > 0 {
		first := plan.Phase(0)
		m.kind = first.Kind
		m.duration = first.Duration
		m.remaining = first.Duration
	}
	m.bar.Width = m.width - 8
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	if m.start == nil {
		return nil
	}
	start, r := m.start, m.reporter
	return func() tea.Msg {
		ctrl, err := start(r)
		return startedMsg{ctrl: ctrl, err: err}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(10, msg.Width-8)
		return m, nil

	case startedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.quitting = true
			return m, tea.Quit
		}
		m.ctrl = msg.ctrl
		return m, nil

	case phaseStartMsg:
		m.phaseIndex = len(m.history)
		m.kind = msg.kind
		m.duration = msg.duration
		m.remaining = msg.duration
		m.progress = 0
		m.exercise = msg.exercise
		return m, nil

	case tickMsg:
		m.remaining = msg.remaining
		m.progress = msg.progress
		return m, nil

	case phaseCompleteMsg:
		entry := HistoryEntry{Kind: msg.kind, Duration: m.duration, Cycle: m.cycle()}
		if msg.kind == workout.Work && m.exercise != nil {
			entry.Exercise = m.exercise.Name
		}
		m.history = append(m.history, entry)
		m.remaining = 0
		m.progress = 1
		return m, nil

	case pausedMsg:
		m.paused = true
		return m, nil

	case resumedMsg:
		m.paused = false
		return m, nil

	case finishedMsg:
		m.finished = true
		m.final = msg.state
		m.paused = false
		return m, tea.Quit

	case controlMsg:
		if msg.action == "stop" {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	return m, nil
}

// handleKey processes keyboard input. Engine calls run as commands because
// they report back into this program synchronously.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit), key.Matches(msg, m.keys.Stop):
		if m.ctrl == nil || m.finished {
			m.quitting = true
			return m, tea.Quit
		}
		return m, control("stop", m.ctrl.Stop)

	case key.Matches(msg, m.keys.Toggle):
		if m.ctrl == nil || m.finished {
			return m, nil
		}
		if m.paused {
			return m, control("resume", m.ctrl.Resume)
		}
		return m, control("pause", m.ctrl.Pause)
	}
	return m, nil
}

func control(action string, op func() error) tea.Cmd {
	return func() tea.Msg {
		return controlMsg{action: action, err: op()}
	}
}

func (m Model) cycle() int {
	if m.plan == nil {
		return 0
	}
	return m.plan.CycleOf(m.phaseIndex)
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting && !m.finished {
		return ""
	}

	var b strings.Builder

	b.WriteString(m.styles.Title.Render(m.name))
	if m.plan != nil {
		b.WriteString(m.styles.Muted.Render(fmt.Sprintf("  cycle %d of %d", m.cycle(), m.plan.Cycles())))
	}
	b.WriteString("\n\n")

	b.WriteString(m.renderPhase())
	b.WriteString("\n\n")
	b.WriteString(m.bar.ViewAs(m.progress))
	b.WriteString("\n")

	if m.kind == workout.Work {
		b.WriteString("\n")
		b.WriteString(m.renderExercise())
		b.WriteString("\n")
	}

	if len(m.history) > 0 {
		b.WriteString("\n")
		b.WriteString(m.renderHistory())
	}

	panel := m.styles.Border.Width(max(20, m.width-4)).Render(b.String())
	return lipgloss.JoinVertical(lipgloss.Left, panel, m.renderHelpBar())
}

func (m Model) renderPhase() string {
	label := m.styles.Work.Render("WORK")
	if m.kind == workout.Break {
		label = m.styles.Break.Render("BREAK")
	}

	state := ""
	switch {
	case m.finished && m.final == timer.StateCompleted:
		state = m.styles.Done.Render("completed")
	case m.finished:
		state = m.styles.Error.Render("stopped")
	case m.paused:
		state = m.styles.Paused.Render("paused")
	}

	line := label + m.styles.Clock.Render(workout.FormatClock(m.remaining)) +
		m.styles.Muted.Render("of "+workout.FormatDuration(m.duration))
	if state != "" {
		line += "  " + state
	}
	return line
}

func (m Model) renderExercise() string {
	ex := workout.FallbackExercise
	if m.exercise != nil {
		ex = *m.exercise
	}
	return m.styles.Exercise.Render(ex.Name) + "\n" + m.styles.Muted.Render(ex.Description)
}

func (m Model) renderHistory() string {
	var lines []string
	for _, h := range m.history {
		line := fmt.Sprintf("* %-5s %s", h.Kind, workout.FormatDuration(h.Duration))
		if h.Exercise != "" {
			line += "  " + h.Exercise
		}
		lines = append(lines, m.styles.Muted.Render(line))
	}
	return strings.Join(lines, "\n")
}

// renderHelpBar renders the help bar at the bottom.
func (m Model) renderHelpBar() string {
	var parts []string
	for _, b := range m.keys.help() {
		h := b.Help()
		parts = append(parts, fmt.Sprintf("%s %s",
			m.styles.HelpKey.Render(h.Key),
			m.styles.HelpText.Render(h.Desc),
		))
	}
	return "  " + strings.Join(parts, "  |  ")
}

// Final returns the terminal state observed, or StateIdle if none.
func (m Model) Final() timer.RunState {
	return m.final
}

// History returns the finished phases.
func (m Model) History() []HistoryEntry {
	return append([]HistoryEntry(nil), m.history...)
}

// Err returns the start error, if any.
func (m Model) Err() error {
	return m.err
}

// Run shows the workout until it ends or the user quits, stopping the run
// on quit. start must start the engine with the given reporter attached.
func Run(name string, plan *workout.Plan, start func(timer.Reporter) (Controller, error), opts ...tea.ProgramOption) (Model, error) {
	r := &Reporter{}
	m := New(name, plan, start)
	m.reporter = r

	p := tea.NewProgram(m, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)
	r.send = p.Send

	final, err := p.Run()
	if err != nil {
		return m, fmt.Errorf("running ui: %w", err)
	}
	fm := final.(Model)
	if fm.err != nil {
		return fm, fm.err
	}
	return fm, nil
}
