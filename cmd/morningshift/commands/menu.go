package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/marcus/morningshift/internal/manager"
	"github.com/marcus/morningshift/internal/presets"
	"github.com/marcus/morningshift/internal/voice"
)

// Menu actions. Start actions carry the preset id after the prefix.
const (
	actionList   = "list"
	actionShow   = "show"
	actionStatus = "status"
	actionPause  = "pause"
	actionStop   = "stop"
	actionExit   = "exit"

	startPrefix = "start:"
)

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Interactive main menu",
	Long: `Open the interactive main menu.

Workouts started from the menu run in the background while the menu stays
open; use Status to check on them and Stop to end them. Leaving the menu
stops a running workout.`,
	Args: cobra.NoArgs,
	RunE: runMenu,
}

func init() {
	rootCmd.AddCommand(menuCmd)
}

func runMenu(cmd *cobra.Command, args []string) error {
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
	defer func() { _ = mgr.StopCurrent() }()

	out := cmd.OutOrStdout()
	for {
		var action string
		if err := menuForm(mgr.Presets(), &action).Run(); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			return err
		}
		if action == actionExit {
			return nil
		}
		menuAction(out, mgr, action)
		fmt.Fprintln(out)
	}
}

// menuOptions offers the start actions for the classic, express and test
// presets when they exist, plus the fixed actions.
func menuOptions(list []presets.Preset) []huh.Option[string] {
	options := []huh.Option[string]{
		huh.NewOption("List workouts", actionList),
		huh.NewOption("Show classic exercises", actionShow),
	}
	for _, p := range list {
		switch p.ID {
		case defaultPresetID, "express_10_2", presets.QuickTestID:
			options = append(options, huh.NewOption("Start "+p.Name, startPrefix+p.ID))
		}
	}
	return append(options,
		huh.NewOption("Status", actionStatus),
		huh.NewOption("Pause / resume", actionPause),
		huh.NewOption("Stop workout", actionStop),
		huh.NewOption("Exit", actionExit),
	)
}

func menuForm(list []presets.Preset, action *string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Morning workout").
				Options(menuOptions(list)...).
				Value(action),
		),
	).WithShowHelp(false)
}

func menuAction(w io.Writer, mgr *manager.Manager, action string) {
	switch {
	case action == actionList:
		printPresetList(w, mgr.Presets())

	case action == actionShow:
		p, err := mgr.Preset(defaultPresetID)
		if err != nil {
			fmt.Fprintln(w, err)
			return
		}
		printExerciseProgram(w, p)

	case strings.HasPrefix(action, startPrefix):
		id := strings.TrimPrefix(action, startPrefix)
		p, err := mgr.Preset(id)
		if err != nil {
			fmt.Fprintln(w, err)
			return
		}
		plan, err := p.Plan()
		if err != nil {
			fmt.Fprintln(w, err)
			return
		}
		if _, err := mgr.StartByID(id); err != nil {
			if errors.Is(err, manager.ErrAlreadyRunning) {
				fmt.Fprintln(w, "A workout is already running. Stop it first.")
				return
			}
			fmt.Fprintln(w, err)
			return
		}
		printRunHeader(w, p, plan)

	case action == actionStatus:
		snap, err := mgr.Status()
		if err != nil {
			fmt.Fprintln(w, "No workout is running.")
			return
		}
		fmt.Fprintln(w, voice.Describe(snap))

	case action == actionPause:
		if err := mgr.Pause(); err == nil {
			fmt.Fprintln(w, "Paused.")
			return
		}
		if err := mgr.Resume(); err == nil {
			fmt.Fprintln(w, "Resumed.")
			return
		}
		fmt.Fprintln(w, "No workout is running.")

	case action == actionStop:
		if err := mgr.StopCurrent(); errors.Is(err, manager.ErrNoActiveTimer) {
			fmt.Fprintln(w, "Nothing is running.")
			return
		}
		fmt.Fprintln(w, "Workout stopped.")
	}
}
