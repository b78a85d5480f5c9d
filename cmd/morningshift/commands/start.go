package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/marcus/morningshift/internal/manager"
	"github.com/marcus/morningshift/internal/timer"
	"github.com/marcus/morningshift/internal/ui"
)

var startCmd = &cobra.Command{
	Use:   "start [preset]",
	Short: "Run a workout in the foreground",
	Long: `Run a workout preset in the foreground.

Without an argument the classic_20_5 preset runs. In a terminal the live
countdown UI is shown (space pauses, s stops); otherwise progress is printed
line by line. Ctrl+C stops the workout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStart,
}

func init() {
	startCmd.Flags().Bool("no-tui", false, "Print progress lines instead of the live UI")
	startCmd.Flags().Bool("no-bell", false, "Do not ring the terminal bell between phases")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := initLogging(cfg); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	mgr, _, cleanup, err := newManager(cfg)
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		return err
	}

	id := defaultPresetID
	if len(args) == 1 {
		id = args[0]
	}
	noTUI, _ := cmd.Flags().GetBool("no-tui")
	noBell, _ := cmd.Flags().GetBool("no-bell")

	out := cmd.OutOrStdout()
	var extra []timer.Reporter
	if cfg.Timer.Bell && !noBell {
		extra = append(extra, bellReporter{w: out})
	}

	p := runParams{
		mgr:   mgr,
		id:    id,
		out:   out,
		extra: extra,
		tui:   !noTUI && isInteractive(),
	}
	return executeStart(cmd, p)
}

type runParams struct {
	mgr   *manager.Manager
	id    string
	out   io.Writer
	extra []timer.Reporter
	tui   bool
}

func executeStart(cmd *cobra.Command, p runParams) error {
	preset, err := p.mgr.Preset(p.id)
	if err != nil {
		if errors.Is(err, manager.ErrNotFound) {
			return fmt.Errorf("%w (see `morningshift presets list`)", err)
		}
		return err
	}
	plan, err := preset.Plan()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()

	if p.tui {
		model, err := ui.Run(preset.Name, plan, func(r timer.Reporter) (ui.Controller, error) {
			return p.mgr.StartByID(preset.ID, append(p.extra, r)...)
		}, tea.WithContext(ctx))
		state := finishRun(p.mgr)
		if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return err
		}
		if model.Final() != timer.StateIdle {
			state = model.Final()
		}
		printRunSummary(p.out, preset.Name, state, len(model.History()), time.Since(started))
		return nil
	}

	printRunHeader(p.out, preset, plan)
	lines := newLineReporter(p.out, plan)
	e, err := p.mgr.StartByID(preset.ID, append(p.extra, lines)...)
	if err != nil {
		return err
	}

	state, err := e.Wait(ctx)
	if err != nil {
		state = finishRun(p.mgr)
	}
	printRunSummary(p.out, preset.Name, state, lines.completed, time.Since(started))
	return nil
}

// finishRun stops whatever is still running and returns its final state.
func finishRun(mgr *manager.Manager) timer.RunState {
	e := mgr.Current()
	if e == nil {
		return timer.StateIdle
	}
	if st := e.Status().State; st.Terminal() {
		return st
	}
	_ = mgr.StopCurrent()
	<-e.Done()
	return e.Status().State
}
