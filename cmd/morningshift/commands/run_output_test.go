package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/marcus/morningshift/internal/presets"
	"github.com/marcus/morningshift/internal/timer"
	"github.com/marcus/morningshift/internal/workout"
)

func mustPlan(t *testing.T, p presets.Preset) *workout.Plan {
	t.Helper()
	plan, err := p.Plan()
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	return plan
}

func findPreset(t *testing.T, id string) presets.Preset {
	t.Helper()
	for _, p := range presets.Defaults() {
		if p.ID == id {
			return p
		}
	}
	t.Fatalf("no default preset %s", id)
	return presets.Preset{}
}

func TestPrintPresetList(t *testing.T) {
	var buf bytes.Buffer
	printPresetList(&buf, presets.Defaults())
	out := buf.String()

	for _, want := range []string{
		"1. Classic workout",
		"[classic_20_5]",
		"work 20 min, break 5 min, cycles 4",
		"... and 3 more",
		"(test mode)",
		"work 10 sec",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("list missing %q\n%s", want, out)
		}
	}
	if strings.Count(out, "(test mode)") != 1 {
		t.Error("only quick_test should be marked as test mode")
	}
}

func TestPrintPresetList_Empty(t *testing.T) {
	var buf bytes.Buffer
	printPresetList(&buf, nil)
	if !strings.Contains(buf.String(), "No presets") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestPrintExerciseProgram(t *testing.T) {
	classic := findPreset(t, "classic_20_5")

	var buf bytes.Buffer
	printExerciseProgram(&buf, classic)
	out := buf.String()
	for i, ex := range classic.Exercises {
		if !strings.Contains(out, ex.Name) {
			t.Errorf("exercise %d (%s) missing", i+1, ex.Name)
		}
	}

	buf.Reset()
	printExerciseProgram(&buf, findPreset(t, presets.QuickTestID))
	if !strings.Contains(buf.String(), workout.FallbackExercise.Name) {
		t.Error("preset without exercises should mention the fallback")
	}
}

func TestPrintRunHeader(t *testing.T) {
	classic := findPreset(t, "classic_20_5")

	var buf bytes.Buffer
	printRunHeader(&buf, classic, mustPlan(t, classic))
	out := buf.String()
	for _, want := range []string{"Starting Classic workout", "Cycles: 4", "Total: 95 min", "Exercises in program: 6"} {
		if !strings.Contains(out, want) {
			t.Errorf("header missing %q\n%s", want, out)
		}
	}
}

func TestPrintRunSummary(t *testing.T) {
	tests := []struct {
		state timer.RunState
		want  string
	}{
		{timer.StateCompleted, "complete. Great job!"},
		{timer.StateStopped, "stopped."},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		printRunSummary(&buf, "Classic workout", tt.state, 3, 90*time.Second)
		if !strings.Contains(buf.String(), tt.want) {
			t.Errorf("%v: missing %q in %q", tt.state, tt.want, buf.String())
		}
		if !strings.Contains(buf.String(), "1m30s") {
			t.Errorf("%v: missing elapsed time", tt.state)
		}
	}
}

func TestLineReporter(t *testing.T) {
	plan, err := workout.BuildPlan(2*time.Minute, time.Minute, 2)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	r := newLineReporter(&buf, plan)

	r.OnPhaseStart(workout.Work, 2*time.Minute, &workout.Exercise{Name: "Squats", Description: "Back straight"})
	r.OnTick(119*time.Second, 0.01)
	r.OnTick(59*time.Second, 0.5)
	r.OnTick(30*time.Second, 0.75)
	r.OnTick(29*time.Second, 0.76)
	r.OnPhaseComplete(workout.Work)
	r.OnPhaseStart(workout.Break, time.Minute, nil)
	r.OnPaused()
	r.OnResumed()
	r.OnPhaseComplete(workout.Break)
	r.OnPhaseStart(workout.Work, 2*time.Minute, nil)

	out := buf.String()
	for _, want := range []string{
		"WORK cycle 1/2 2 min",
		"Squats Back straight",
		"remaining 1 min",
		"remaining 30 sec",
		"BREAK cycle 1/2 1 min",
		"paused",
		"resumed",
		"WORK cycle 2/2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "59 sec") || strings.Contains(out, "29 sec") {
		t.Errorf("seconds under a minute should only print at marks\n%s", out)
	}
	if r.completed != 2 {
		t.Errorf("completed = %d, want 2", r.completed)
	}
}

func TestBellReporter(t *testing.T) {
	var buf bytes.Buffer
	var r timer.Reporter = bellReporter{w: &buf}
	r.OnPhaseStart(workout.Work, time.Second, nil)
	r.OnPhaseComplete(workout.Work)
	r.OnCompleted()
	if buf.String() != "\a" {
		t.Errorf("bell output = %q", buf.String())
	}
}
