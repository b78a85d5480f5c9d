package commands

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/marcus/morningshift/internal/config"
	"github.com/marcus/morningshift/internal/logging"
	"github.com/marcus/morningshift/internal/manager"
	"github.com/marcus/morningshift/internal/metrics"
	"github.com/marcus/morningshift/internal/presets"
)

func useTempStateDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	orig := stateDir
	stateDir = func() string { return dir }
	t.Cleanup(func() { stateDir = orig })
}

func TestPidFile(t *testing.T) {
	useTempStateDir(t)
	pf := daemonPidFile()

	if pid, ok := pf.live(); ok || pid != 0 {
		t.Fatalf("live() with no file = %d, %v", pid, ok)
	}

	if err := pf.write(os.Getpid()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if pid, ok := pf.live(); !ok || pid != os.Getpid() {
		t.Errorf("live() = %d, %v; want this process", pid, ok)
	}

	pf.remove()
	if _, err := pf.read(); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected missing pid file, got %v", err)
	}
}

func TestPidFile_Garbage(t *testing.T) {
	useTempStateDir(t)
	pf := daemonPidFile()
	if err := os.WriteFile(string(pf), []byte("not-a-pid\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := pf.read(); err == nil {
		t.Error("expected an error for a corrupt pid file")
	}
	if _, ok := pf.live(); ok {
		t.Error("corrupt pid file should not count as running")
	}
}

func TestWaitForExit_DeadProcess(t *testing.T) {
	// 1<<30 is above any kernel pid_max.
	if !waitForExit(1<<30, time.Second) {
		t.Error("waitForExit should return true for a pid that does not exist")
	}
}

func TestDescribeSchedule(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ScheduleConfig
		want []string
	}{
		{
			name: "cron with window",
			cfg: config.ScheduleConfig{
				Cron:   "30 6 * * 1-5",
				Preset: "classic_20_5",
				Window: &config.WindowConfig{Start: "06:00", End: "09:00", Timezone: "Europe/Berlin"},
			},
			want: []string{"Schedule: cron 30 6 * * 1-5", "Window: 06:00 - 09:00 (Europe/Berlin)", "Preset: classic_20_5"},
		},
		{
			name: "interval",
			cfg:  config.ScheduleConfig{Interval: "24h", Preset: "express_10_2"},
			want: []string{"Schedule: every 24h", "Preset: express_10_2"},
		},
		{
			name: "none",
			want: []string{"Schedule: none"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := describeSchedule(tt.cfg)
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("missing %q in %q", want, got)
				}
			}
		})
	}
}

func TestStartScheduledWorkout(t *testing.T) {
	mgr := manager.New(manager.WithLogger(logging.Nop()), manager.WithTickInterval(10*time.Millisecond))
	if err := mgr.Load(presets.Static(presets.Defaults())); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = mgr.StopCurrent() })
	met := metrics.New()
	log := logging.Nop()

	if err := startScheduledWorkout(mgr, met, "classic_20_5", log); err != nil {
		t.Fatalf("first trigger: %v", err)
	}
	first := mgr.Current()
	if first == nil {
		t.Fatal("expected a held engine")
	}

	// A trigger while the workout runs is skipped, not an error.
	if err := startScheduledWorkout(mgr, met, "classic_20_5", log); err != nil {
		t.Fatalf("second trigger: %v", err)
	}
	if mgr.Current() != first {
		t.Error("running workout was replaced")
	}

	if err := mgr.StopCurrent(); err != nil {
		t.Fatal(err)
	}
	if err := startScheduledWorkout(mgr, nil, "nope", log); !errors.Is(err, manager.ErrNotFound) {
		t.Errorf("unknown preset: got %v", err)
	}
}
