package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/marcus/morningshift/internal/config"
	"github.com/marcus/morningshift/internal/presets"
)

const starterPresetsName = "morningshift-presets.yaml"

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file",
	Long: `Create a commented morningshift.yaml in the current directory.

Use --global to write ~/.config/morningshift/config.yaml instead, and
--with-presets to also write the built-in presets to an editable file next
to it and point presets.path at that file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		global, _ := cmd.Flags().GetBool("global")
		force, _ := cmd.Flags().GetBool("force")
		withPresets, _ := cmd.Flags().GetBool("with-presets")

		path := config.GlobalConfigPath()
		if !global {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("get working directory: %w", err)
			}
			path = filepath.Join(cwd, config.ProjectConfigName)
		}

		confirm := confirmOverwrite
		if force {
			confirm = func(string) (bool, error) { return true, nil }
		} else if !isInteractive() {
			confirm = func(p string) (bool, error) {
				return false, fmt.Errorf("%s exists (use --force to overwrite)", p)
			}
		}
		return writeInitFiles(cmd.OutOrStdout(), path, withPresets, confirm)
	},
}

func init() {
	initCmd.Flags().Bool("global", false, "Create the global config instead of a project config")
	initCmd.Flags().BoolP("force", "f", false, "Overwrite existing files without asking")
	initCmd.Flags().Bool("with-presets", false, "Also write an editable presets file")
	rootCmd.AddCommand(initCmd)
}

func confirmOverwrite(path string) (bool, error) {
	ok := false
	err := huh.NewConfirm().
		Title(fmt.Sprintf("%s already exists. Overwrite?", path)).
		Value(&ok).
		Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	return ok, err
}

// writeInitFiles writes the config at path, plus the starter presets when
// withPresets is set. confirm is asked before replacing an existing file.
func writeInitFiles(w io.Writer, path string, withPresets bool, confirm func(string) (bool, error)) error {
	var presetsPath string
	if withPresets {
		presetsPath = filepath.Join(filepath.Dir(path), starterPresetsName)
	}

	for _, p := range []string{path, presetsPath} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		ok, err := confirm(p)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(w, "Aborted.")
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if presetsPath != "" {
		if err := presets.Write(presetsPath, presets.Defaults()); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, []byte(configTemplate(presetsPath)), 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	st := newRunStyles()
	fmt.Fprintf(w, "%s %s\n", st.Success.Render("Created"), path)
	if presetsPath != "" {
		fmt.Fprintf(w, "%s %s\n", st.Success.Render("Created"), presetsPath)
	}
	fmt.Fprintln(w, st.Title.Render("Next steps:"))
	fmt.Fprintln(w, "  1. Set schedule.cron and schedule.preset for morning workouts")
	fmt.Fprintln(w, "  2. Run 'morningshift doctor' to check the setup")
	fmt.Fprintln(w, "  3. Run 'morningshift daemon start'")
	return nil
}

func configTemplate(presetsPath string) string {
	var b strings.Builder
	b.WriteString(`# morningshift configuration
# A morningshift.yaml in the working directory overrides
# ~/.config/morningshift/config.yaml. MORNINGSHIFT_* variables (and a .env
# file) override both, e.g. MORNINGSHIFT_SCHEDULE_PRESET=express_10_2.

presets:
`)
	if presetsPath != "" {
		fmt.Fprintf(&b, "  path: %q                 # JSON or YAML, pomodoroPresets list\n", presetsPath)
	} else {
		b.WriteString("  # path: ~/workouts.yaml        # JSON or YAML, pomodoroPresets list\n")
	}
	b.WriteString(`  watch: false                     # reload the file on change (serve, daemon)
  db_path: ~/.local/share/morningshift/presets.db

timer:
  tick: 1s                         # countdown refresh, at most 1s
  bell: true                       # ring the terminal bell when a phase ends

schedule:
  # cron: "30 6 * * 1-5"           # weekdays at 06:30
  # interval: 24h                  # or a fixed interval, not both
  # window:
  #   start: "06:00"
  #   end: "09:00"
  #   timezone: "Europe/Berlin"
  preset: classic_20_5

voice:
  addr: 127.0.0.1:8080

metrics:
  enabled: false                   # expose /metrics on the voice server

logging:
  level: info                      # debug | info | warn | error
  format: json                     # json | text
  path: ~/.local/share/morningshift/logs
  retention_days: 7
`)
	return b.String()
}
