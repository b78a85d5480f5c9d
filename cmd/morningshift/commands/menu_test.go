package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/marcus/morningshift/internal/logging"
	"github.com/marcus/morningshift/internal/manager"
	"github.com/marcus/morningshift/internal/presets"
)

func newMenuManager(t *testing.T) *manager.Manager {
	t.Helper()
	mgr := manager.New(manager.WithLogger(logging.Nop()), manager.WithTickInterval(10*time.Millisecond))
	if err := mgr.Load(presets.Static(presets.Defaults())); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = mgr.StopCurrent() })
	return mgr
}

func runAction(mgr *manager.Manager, action string) string {
	var buf bytes.Buffer
	menuAction(&buf, mgr, action)
	return buf.String()
}

func TestMenuAction_Flow(t *testing.T) {
	mgr := newMenuManager(t)

	steps := []struct {
		action string
		want   string
	}{
		{actionStatus, "No workout is running."},
		{actionStop, "Nothing is running."},
		{startPrefix + "classic_20_5", "Starting Classic workout"},
		{startPrefix + "express_10_2", "already running"},
		{actionStatus, "Classic workout: work phase, cycle 1 of 4"},
		{actionPause, "Paused."},
		{actionPause, "Resumed."},
		{actionStop, "Workout stopped."},
		{actionStatus, "No workout is running."},
	}
	for _, s := range steps {
		got := runAction(mgr, s.action)
		if !strings.Contains(got, s.want) {
			t.Fatalf("%s: got %q, want it to contain %q", s.action, got, s.want)
		}
	}
}

func TestMenuAction_ListAndShow(t *testing.T) {
	mgr := newMenuManager(t)

	if got := runAction(mgr, actionList); !strings.Contains(got, "Express workout") {
		t.Errorf("list output %q", got)
	}
	if got := runAction(mgr, actionShow); !strings.Contains(got, "Classic workout exercise program") {
		t.Errorf("show output %q", got)
	}
	if got := runAction(mgr, startPrefix+"missing"); !strings.Contains(got, "preset not found") {
		t.Errorf("unknown preset output %q", got)
	}
}

func TestMenuOptions(t *testing.T) {
	var values []string
	for _, o := range menuOptions(presets.Defaults()) {
		values = append(values, o.Value)
	}
	got := strings.Join(values, ",")
	want := "list,show,start:classic_20_5,start:express_10_2,start:quick_test,status,pause,stop,exit"
	if got != want {
		t.Errorf("options = %s\nwant      %s", got, want)
	}

	var action string
	if menuForm(nil, &action) == nil {
		t.Fatal("nil form")
	}
	if n := len(menuOptions(nil)); n != 6 {
		t.Errorf("without presets expected 6 fixed options, got %d", n)
	}

	mgr := manager.New(manager.WithLogger(logging.Nop()))
	if got := runAction(mgr, actionShow); !strings.Contains(got, "preset not found") {
		t.Errorf("show without presets: %q", got)
	}
}
