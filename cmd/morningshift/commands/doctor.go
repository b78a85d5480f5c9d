package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/marcus/morningshift/internal/config"
	"github.com/marcus/morningshift/internal/db"
	"github.com/marcus/morningshift/internal/presets"
	"github.com/marcus/morningshift/internal/scheduler"
)

type checkStatus string

const (
	statusOK   checkStatus = "OK"
	statusWarn checkStatus = "WARN"
	statusFail checkStatus = "FAIL"
)

type checkResult struct {
	name   string
	status checkStatus
	detail string
}

// checkup collects results; a FAIL makes the command exit non-zero.
type checkup struct {
	results []checkResult
	failed  bool
}

func (c *checkup) add(name string, status checkStatus, format string, args ...any) {
	if status == statusFail {
		c.failed = true
	}
	c.results = append(c.results, checkResult{name: name, status: status, detail: fmt.Sprintf(format, args...)})
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check morningshift configuration and environment",
	Long: `Run diagnostics on the configuration, preset sources, preset library,
schedule, log directory and daemon.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := &checkup{}
		cfg, err := loadConfig(cmd)
		if err != nil {
			c.add("config", statusFail, "%v", err)
		} else {
			c.add("config", statusOK, "loaded")
			runChecks(c, cfg, time.Now())
		}

		printCheckResults(cmd.OutOrStdout(), c.results)
		if c.failed {
			return errors.New("doctor found failures")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runChecks(c *checkup, cfg *config.Config, now time.Time) {
	checkPresetFile(c, cfg)
	checkLibrary(c, cfg)
	checkSchedule(c, cfg, now)
	checkLogDir(c, cfg)
	checkDaemon(c)
}

func checkPresetFile(c *checkup, cfg *config.Config) {
	if cfg.Presets.Path == "" {
		c.add("presets.file", statusOK, "not set, using library or built-in presets")
		return
	}
	list, err := presets.NewFile(cfg.Presets.Path).Load()
	switch {
	case err != nil:
		c.add("presets.file", statusFail, "%v", err)
	case len(list) == 0:
		c.add("presets.file", statusWarn, "%s has no presets", cfg.Presets.Path)
	default:
		c.add("presets.file", statusOK, "%d presets in %s", len(list), cfg.Presets.Path)
	}
}

func checkLibrary(c *checkup, cfg *config.Config) {
	database, err := db.Open(cfg.Presets.DBPath)
	if err != nil {
		c.add("library", statusFail, "%v", err)
		return
	}
	defer func() { _ = database.Close() }()

	version, err := db.CurrentVersion(context.Background(), database.SQL())
	if err != nil {
		c.add("library", statusFail, "%v", err)
		return
	}
	list, err := presets.NewStore(database).Load()
	if err != nil {
		c.add("library", statusFail, "%v", err)
		return
	}
	c.add("library", statusOK, "%s (schema v%d, %d presets)", database.Path(), version, len(list))
}

func checkSchedule(c *checkup, cfg *config.Config, now time.Time) {
	sched, err := scheduler.NewFromConfig(&cfg.Schedule)
	if errors.Is(err, scheduler.ErrNoSchedule) {
		c.add("schedule", statusWarn, "no schedule configured (cron or interval)")
		return
	}
	if err != nil {
		c.add("schedule", statusFail, "%v", err)
		return
	}

	if _, err := lookupPreset(cfg, cfg.Schedule.Preset); err != nil {
		c.add("schedule.preset", statusFail, "%v", err)
	} else {
		c.add("schedule.preset", statusOK, "%s", cfg.Schedule.Preset)
	}

	runs := sched.NextRuns(1, now)
	if len(runs) == 0 {
		c.add("schedule", statusWarn, "no trigger falls inside the window")
		return
	}
	c.add("schedule", statusOK, "next run %s", runs[0].Format("Mon 2006-01-02 15:04"))
}

// lookupPreset looks id up in the preset set the commands would use.
func lookupPreset(cfg *config.Config, id string) (presets.Preset, error) {
	src, cleanup, err := presetSource(cfg)
	if err != nil {
		return presets.Preset{}, err
	}
	defer cleanup()
	list, err := src.Load()
	if err != nil {
		return presets.Preset{}, err
	}
	for _, p := range list {
		if p.ID == id {
			return p, nil
		}
	}
	return presets.Preset{}, fmt.Errorf("preset %q not found", id)
}

func checkLogDir(c *checkup, cfg *config.Config) {
	dir := expandHome(cfg.Logging.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		c.add("logs", statusFail, "%v", err)
		return
	}
	probe, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		c.add("logs", statusFail, "%s is not writable: %v", dir, err)
		return
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())
	c.add("logs", statusOK, "%s", dir)
}

func checkDaemon(c *checkup) {
	pf := daemonPidFile()
	pid, ok := pf.live()
	switch {
	case ok:
		c.add("daemon", statusOK, "running (pid %d)", pid)
	case pid != 0:
		c.add("daemon", statusWarn, "pid file present but process %d is gone", pid)
	default:
		c.add("daemon", statusWarn, "not running")
	}
}

func printCheckResults(w io.Writer, results []checkResult) {
	styles := map[checkStatus]lipgloss.Style{
		statusOK:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		statusWarn: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		statusFail: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
	for _, r := range results {
		status := styles[r.status].Render(fmt.Sprintf("%-4s", r.status))
		fmt.Fprintf(w, "%s  %-16s %s\n", status, r.name, r.detail)
	}
}
