// Package commands implements the morningshift CLI commands using cobra.
package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is set at build time
	Version = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:   "morningshift",
	Short: "Interval timer for morning workouts",
	Long: `Morningshift runs interval workouts: timed work phases with a suggested
exercise, separated by breaks, repeated for a number of cycles.

Presets come from the built-in set, a presets file, or the local preset
library. Workouts can be started from the terminal, from a voice assistant
webhook, or on a schedule by the daemon.`,
	Version:      Version,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "Log at debug level")
	rootCmd.PersistentFlags().String("presets", "", "Presets file (JSON or YAML), overrides presets.path")
}
