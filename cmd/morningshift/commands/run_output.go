package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/morningshift/internal/presets"
	"github.com/marcus/morningshift/internal/timer"
	"github.com/marcus/morningshift/internal/workout"
)

// runStyles holds lipgloss styles for plain (non-TUI) output.
type runStyles struct {
	Title   lipgloss.Style
	Work    lipgloss.Style
	Break   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Muted   lipgloss.Style
	Warn    lipgloss.Style
	Success lipgloss.Style
	Accent  lipgloss.Style
}

func newRunStyles() runStyles {
	return runStyles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69")),
		Work:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		Break:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81")),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Value:   lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Success: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		Accent:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81")),
	}
}

func (s runStyles) phase(kind workout.PhaseKind) lipgloss.Style {
	if kind == workout.Break {
		return s.Break
	}
	return s.Work
}

// printRunHeader shows what is about to run.
func printRunHeader(w io.Writer, p presets.Preset, plan *workout.Plan) {
	st := newRunStyles()
	fmt.Fprintf(w, "%s\n", st.Title.Render("Starting "+p.Name))
	if p.IsQuickTest() {
		fmt.Fprintf(w, "%s\n", st.Warn.Render("Test mode: short phases"))
	}
	fmt.Fprintf(w, "%s %s   %s %s   %s %d   %s %s\n",
		st.Label.Render("Work:"), st.Value.Render(workout.FormatDuration(p.Work())),
		st.Label.Render("Break:"), st.Value.Render(workout.FormatDuration(p.Break())),
		st.Label.Render("Cycles:"), plan.Cycles(),
		st.Label.Render("Total:"), st.Value.Render(workout.FormatDuration(plan.TotalDuration())),
	)
	if len(p.Exercises) == 0 {
		fmt.Fprintln(w)
		return
	}
	fmt.Fprintf(w, "%s %d\n", st.Label.Render("Exercises in program:"), len(p.Exercises))
	for i, ex := range p.Exercises {
		fmt.Fprintf(w, "  %d. %s\n", i+1, ex.Name)
	}
	fmt.Fprintln(w)
}

// printRunSummary reports how the run ended.
func printRunSummary(w io.Writer, name string, state timer.RunState, phases int, elapsed time.Duration) {
	st := newRunStyles()
	fmt.Fprintln(w)
	switch state {
	case timer.StateCompleted:
		fmt.Fprintf(w, "%s\n", st.Success.Render(name+" complete. Great job!"))
	case timer.StateStopped:
		fmt.Fprintf(w, "%s\n", st.Warn.Render(name+" stopped."))
	default:
		fmt.Fprintf(w, "%s %s\n", name, state)
	}
	fmt.Fprintf(w, "%s %d  %s %s\n",
		st.Label.Render("Phases finished:"), phases,
		st.Label.Render("Elapsed:"), elapsed.Round(time.Second))
}

// lineReporter renders engine events as plain lines, for pipes and
// terminals where the TUI is turned off. Events are delivered in order, one
// at a time, so no locking is needed.
type lineReporter struct {
	w      io.Writer
	plan   *workout.Plan
	styles runStyles

	index     int
	started   bool
	completed int
	kind      workout.PhaseKind
	lastShown string
}

func newLineReporter(w io.Writer, plan *workout.Plan) *lineReporter {
	return &lineReporter{w: w, plan: plan, styles: newRunStyles()}
}

func (r *lineReporter) OnPhaseStart(kind workout.PhaseKind, d time.Duration, ex *workout.Exercise) {
	if r.started {
		r.index++
	}
	r.started = true
	r.kind = kind
	r.lastShown = workout.FormatDuration(d)

	label := r.styles.phase(kind).Render(strings.ToUpper(kind.String()))
	fmt.Fprintf(r.w, "%s %s %s\n",
		label,
		r.styles.Muted.Render(fmt.Sprintf("cycle %d/%d", r.plan.CycleOf(r.index), r.plan.Cycles())),
		r.styles.Value.Render(r.lastShown))
	if kind == workout.Work && ex != nil {
		fmt.Fprintf(r.w, "  %s %s\n", r.styles.Accent.Render(ex.Name), r.styles.Muted.Render(ex.Description))
	}
}

// OnTick prints the remaining time whenever its rounded rendering changes.
// Under a minute that is every second, so it only prints at a few marks.
func (r *lineReporter) OnTick(remaining time.Duration, _ float64) {
	shown := workout.FormatDuration(remaining)
	if shown == r.lastShown || remaining <= 0 {
		return
	}
	if remaining < time.Minute && !isCountdownMark(remaining) {
		return
	}
	r.lastShown = shown
	fmt.Fprintf(r.w, "  %s %s\n", r.styles.Muted.Render("remaining"), shown)
}

func isCountdownMark(d time.Duration) bool {
	secs := int(d / time.Second)
	return secs == 30 || secs == 10
}

func (r *lineReporter) OnPhaseComplete(kind workout.PhaseKind) {
	r.completed++
	fmt.Fprintf(r.w, "  %s\n", r.styles.Muted.Render(kind.String()+" done"))
}

func (r *lineReporter) OnCompleted() {}
func (r *lineReporter) OnStopped()   {}

func (r *lineReporter) OnPaused() {
	fmt.Fprintf(r.w, "%s\n", r.styles.Warn.Render("paused"))
}

func (r *lineReporter) OnResumed() {
	fmt.Fprintf(r.w, "%s\n", r.styles.Warn.Render("resumed"))
}

// bellReporter rings the terminal bell at the end of each phase.
type bellReporter struct {
	timer.NopReporter
	w io.Writer
}

func (b bellReporter) OnPhaseComplete(workout.PhaseKind) {
	_, _ = io.WriteString(b.w, "\a")
}

// printPresetList renders presets the way `presets list` shows them.
func printPresetList(w io.Writer, list []presets.Preset) {
	st := newRunStyles()
	if len(list) == 0 {
		fmt.Fprintln(w, "No presets configured.")
		return
	}
	for i, p := range list {
		title := fmt.Sprintf("%d. %s", i+1, p.Name)
		if p.IsQuickTest() {
			title += " " + st.Warn.Render("(test mode)")
		}
		fmt.Fprintf(w, "%s %s\n", st.Title.Render(title), st.Muted.Render("["+p.ID+"]"))
		fmt.Fprintf(w, "   %s %s, %s %s, %s %d\n",
			st.Label.Render("work"), workout.FormatDuration(p.Work()),
			st.Label.Render("break"), workout.FormatDuration(p.Break()),
			st.Label.Render("cycles"), p.Cycles)
		if p.Description != "" {
			fmt.Fprintf(w, "   %s\n", p.Description)
		}
		printExerciseSample(w, st, p.Exercises, 3)
	}
}

func printExerciseSample(w io.Writer, st runStyles, exercises []workout.Exercise, n int) {
	if len(exercises) == 0 {
		return
	}
	shown := exercises
	if len(shown) > n {
		shown = shown[:n]
	}
	names := make([]string, len(shown))
	for i, ex := range shown {
		names[i] = ex.Name
	}
	line := strings.Join(names, ", ")
	if more := len(exercises) - len(shown); more > 0 {
		line += fmt.Sprintf(" ... and %d more", more)
	}
	fmt.Fprintf(w, "   %s %s\n", st.Label.Render("exercises:"), line)
}

// printExerciseProgram lists every exercise of a preset in full.
func printExerciseProgram(w io.Writer, p presets.Preset) {
	st := newRunStyles()
	fmt.Fprintf(w, "%s\n", st.Title.Render(p.Name+" exercise program"))
	if p.Description != "" {
		fmt.Fprintf(w, "%s\n", st.Muted.Render(p.Description))
	}
	if len(p.Exercises) == 0 {
		fmt.Fprintf(w, "No exercises; work phases show %q.\n", workout.FallbackExercise.Name)
		return
	}
	for i, ex := range p.Exercises {
		fmt.Fprintf(w, "%2d. %s\n", i+1, st.Accent.Render(ex.Name))
		if ex.Description != "" {
			fmt.Fprintf(w, "    %s\n", ex.Description)
		}
	}
}
