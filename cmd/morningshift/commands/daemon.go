package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/morningshift/internal/config"
	"github.com/marcus/morningshift/internal/logging"
	"github.com/marcus/morningshift/internal/manager"
	"github.com/marcus/morningshift/internal/metrics"
	"github.com/marcus/morningshift/internal/scheduler"
)

const (
	pidFileName = "morningshift.pid"
	stopTimeout = 10 * time.Second
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run scheduled workouts in the background",
	Long:  `Start, stop, or check status of the morningshift background daemon.`,
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start background daemon",
	Long: `Start the morningshift daemon as a background process.

The daemon starts schedule.preset according to the configured schedule
(cron or interval), only inside the configured time window. A trigger that
fires while a workout is still running is skipped.`,
	RunE: runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop background daemon",
	Long:  `Stop the running morningshift daemon by sending SIGTERM.`,
	RunE:  runDaemonStop,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check daemon status",
	Long:  `Check if the morningshift daemon is running and show its schedule.`,
	RunE:  runDaemonStatus,
}

var daemonForegroundFlag bool

func init() {
	daemonStartCmd.Flags().BoolVarP(&daemonForegroundFlag, "foreground", "f", false, "Run in foreground (don't daemonize)")
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
	rootCmd.AddCommand(daemonCmd)
}

// stateDir holds the daemon pid file. Tests point it at a temp dir.
var stateDir = func() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "morningshift")
}

// pidFile records which process is the daemon.
type pidFile string

func daemonPidFile() pidFile {
	return pidFile(filepath.Join(stateDir(), pidFileName))
}

func (p pidFile) write(pid int) error {
	if err := os.MkdirAll(filepath.Dir(string(p)), 0755); err != nil {
		return fmt.Errorf("creating pid dir: %w", err)
	}
	return os.WriteFile(string(p), []byte(strconv.Itoa(pid)+"\n"), 0644)
}

func (p pidFile) read() (int, error) {
	data, err := os.ReadFile(string(p))
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("pid file %s: %w", p, err)
	}
	return pid, nil
}

func (p pidFile) remove() {
	_ = os.Remove(string(p))
}

// live returns the recorded pid and whether that process still exists.
func (p pidFile) live() (int, bool) {
	pid, err := p.read()
	if err != nil {
		return 0, false
	}
	return pid, processAlive(pid)
}

// processAlive probes pid with signal 0.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	if pid, ok := daemonPidFile().live(); ok {
		return fmt.Errorf("daemon already running (pid %d)", pid)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !cfg.Schedule.HasSchedule() {
		return fmt.Errorf("no schedule configured (set schedule.cron or schedule.interval)")
	}

	if daemonForegroundFlag {
		return runDaemonLoop(cmd.Context(), cfg)
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("getting executable: %w", err)
	}

	// Re-exec in the foreground, detached from this process group. Flags
	// that shaped cfg are passed through.
	childArgs := []string{"daemon", "start", "--foreground"}
	if path, _ := cmd.Flags().GetString("presets"); path != "" {
		childArgs = append(childArgs, "--presets", path)
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		childArgs = append(childArgs, "--verbose")
	}
	child := exec.Command(executable, childArgs...)
	child.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	if err := child.Start(); err != nil {
		return fmt.Errorf("starting daemon: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "daemon started (pid %d)\n", child.Process.Pid)
	return nil
}

func runDaemonLoop(parent context.Context, cfg *config.Config) error {
	if err := initLogging(cfg); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	log := logging.Component("daemon")

	pf := daemonPidFile()
	if err := pf.write(os.Getpid()); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer pf.remove()

	log.Info("daemon starting")

	mgr, src, cleanup, err := newManager(cfg)
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		return err
	}
	if _, err := mgr.Preset(cfg.Schedule.Preset); err != nil {
		return fmt.Errorf("schedule.preset: %w", err)
	}

	var met *metrics.Metrics
	if cfg.Metrics.Enabled {
		met = metrics.New()
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := watchPresets(ctx, cfg, mgr, src); err != nil {
		return err
	}

	sched, err := scheduler.NewFromConfig(&cfg.Schedule)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	sched.AddJob(func(context.Context) error {
		return startScheduledWorkout(mgr, met, cfg.Schedule.Preset, log)
	})

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	log.InfoCtx("daemon running", map[string]any{
		"preset":   cfg.Schedule.Preset,
		"next_run": sched.NextRun().Format(time.RFC3339),
	})

	<-ctx.Done()
	log.Info("shutting down")

	if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrNotRunning) {
		log.Errorf("stopping scheduler: %v", err)
	}
	if err := mgr.StopCurrent(); err != nil && !errors.Is(err, manager.ErrNoActiveTimer) {
		log.Errorf("stopping workout: %v", err)
	}

	log.Info("daemon stopped")
	return nil
}

// startScheduledWorkout is the scheduler job. The workout runs on its own
// goroutine; a trigger that finds one still running is skipped.
func startScheduledWorkout(mgr *manager.Manager, met *metrics.Metrics, id string, log *logging.Logger) error {
	e, err := mgr.StartByID(id, met.Reporter(id))
	if errors.Is(err, manager.ErrAlreadyRunning) {
		log.Info("workout still running, skipping trigger")
		return nil
	}
	if err != nil {
		return fmt.Errorf("start %s: %w", id, err)
	}
	log.WithRun(e.Status().RunID, id).Infof("scheduled workout started, %s total", e.Plan().TotalDuration())
	return nil
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	pf := daemonPidFile()
	pid, ok := pf.live()
	switch {
	case !ok && pid != 0:
		pf.remove()
		fmt.Fprintln(out, "daemon not running (stale pid file removed)")
		return nil
	case !ok:
		fmt.Fprintln(out, "daemon not running")
		return nil
	}
	defer pf.remove()

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process: %w", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("sending SIGTERM: %w", err)
	}
	fmt.Fprintf(out, "stopping daemon (pid %d)...\n", pid)

	if waitForExit(pid, stopTimeout) {
		fmt.Fprintln(out, "daemon stopped")
		return nil
	}
	fmt.Fprintln(out, "daemon did not stop, sending SIGKILL")
	_ = proc.Signal(syscall.SIGKILL)
	return nil
}

// waitForExit polls until pid is gone or timeout passes. The daemon stops
// its workout before exiting, which can take a moment.
func waitForExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return !processAlive(pid)
}

func runDaemonStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	pf := daemonPidFile()
	pid, ok := pf.live()
	if !ok {
		fmt.Fprintln(out, "Status: not running")
		return nil
	}

	fmt.Fprintf(out, "Status: running\nPID: %d\n", pid)
	if cfg, err := loadConfig(cmd); err == nil {
		fmt.Fprint(out, describeSchedule(cfg.Schedule))
		if sched, err := scheduler.NewFromConfig(&cfg.Schedule); err == nil {
			for _, t := range sched.NextRuns(3, time.Now()) {
				fmt.Fprintf(out, "Next: %s\n", t.Format("Mon 2006-01-02 15:04"))
			}
		}
	}
	fmt.Fprintf(out, "PID file: %s\n", pf)
	return nil
}

// describeSchedule renders the schedule settings, one per line.
func describeSchedule(s config.ScheduleConfig) string {
	var b strings.Builder
	switch {
	case s.Cron != "":
		fmt.Fprintf(&b, "Schedule: cron %s\n", s.Cron)
	case s.Interval != "":
		fmt.Fprintf(&b, "Schedule: every %s\n", s.Interval)
	default:
		b.WriteString("Schedule: none\n")
	}
	if s.Window != nil {
		fmt.Fprintf(&b, "Window: %s - %s", s.Window.Start, s.Window.End)
		if s.Window.Timezone != "" {
			fmt.Fprintf(&b, " (%s)", s.Window.Timezone)
		}
		b.WriteString("\n")
	}
	if s.Preset != "" {
		fmt.Fprintf(&b, "Preset: %s\n", s.Preset)
	}
	return b.String()
}
