package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/marcus/morningshift/internal/presets"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List and manage workout presets",
	Long: `List and manage workout presets.

Presets are read from presets.path when set, else from the preset library
(a SQLite database filled with "presets import"), else the built-in set.`,
}

var presetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available presets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := loadPresets(cmd)
		if err != nil {
			return err
		}
		printPresetList(cmd.OutOrStdout(), list)
		return nil
	},
}

var presetsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the full exercise program of a preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		src, cleanup, err := presetSource(cfg)
		if err != nil {
			return err
		}
		defer cleanup()
		return showPreset(cmd.Context(), cmd.OutOrStdout(), src, args[0])
	},
}

// showPreset prints one preset's program and, for library presets, the file
// it was imported from.
func showPreset(ctx context.Context, w io.Writer, src presets.Source, id string) error {
	list, err := src.Load()
	if err != nil {
		return fmt.Errorf("load presets: %w", err)
	}
	for _, p := range list {
		if p.ID != id {
			continue
		}
		printExerciseProgram(w, p)
		if store, ok := src.(*presets.Store); ok {
			if origin, err := store.Origin(ctx, id); err == nil && origin != "" {
				fmt.Fprintf(w, "\nImported from %s\n", origin)
			}
		}
		return nil
	}
	return fmt.Errorf("preset not found: %s (see `morningshift presets list`)", id)
}

var presetsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import presets from a JSON or YAML file into the library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		list, err := presets.NewFile(args[0]).Load()
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}

		store, closeDB, err := openLibrary(cfg)
		if err != nil {
			return err
		}
		defer closeDB()

		origin, err := filepath.Abs(args[0])
		if err != nil {
			origin = args[0]
		}
		if err := store.Save(cmd.Context(), list, origin); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d presets from %s\n", len(list), origin)
		return nil
	},
}

var presetsExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write the current presets to a JSON or YAML file",
	Long: `Write the presets currently in effect to a file. The format follows the
extension: .yaml/.yml writes YAML, anything else JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := loadPresets(cmd)
		if err != nil {
			return err
		}
		if err := presets.Write(args[0], list); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d presets to %s\n", len(list), args[0])
		return nil
	},
}

var presetsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a preset from the library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, closeDB, err := openLibrary(cfg)
		if err != nil {
			return err
		}
		defer closeDB()

		if err := store.Delete(cmd.Context(), args[0]); err != nil {
			if errors.Is(err, presets.ErrNotInStore) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is not in the library\n", args[0])
				return nil
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	presetsCmd.AddCommand(presetsListCmd)
	presetsCmd.AddCommand(presetsShowCmd)
	presetsCmd.AddCommand(presetsImportCmd)
	presetsCmd.AddCommand(presetsExportCmd)
	presetsCmd.AddCommand(presetsDeleteCmd)
	rootCmd.AddCommand(presetsCmd)
}

// loadPresets reads the preset set in effect.
func loadPresets(cmd *cobra.Command) ([]presets.Preset, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	src, cleanup, err := presetSource(cfg)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	list, err := src.Load()
	if err != nil {
		return nil, fmt.Errorf("load presets: %w", err)
	}
	return list, nil
}
