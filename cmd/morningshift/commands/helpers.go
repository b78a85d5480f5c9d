package commands

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/marcus/morningshift/internal/config"
	"github.com/marcus/morningshift/internal/db"
	"github.com/marcus/morningshift/internal/logging"
	"github.com/marcus/morningshift/internal/manager"
	"github.com/marcus/morningshift/internal/presets"
	"github.com/marcus/morningshift/internal/timer"
)

// defaultPresetID is started when no preset is named.
const defaultPresetID = "classic_20_5"

// isInteractive reports whether stdout is a terminal. Override in tests.
var isInteractive = func() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// loadConfig loads configuration and applies the persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if path, _ := cmd.Flags().GetString("presets"); path != "" {
		cfg.Presets.Path = path
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

func initLogging(cfg *config.Config) error {
	return logging.Init(logging.Config{
		Level:         cfg.Logging.Level,
		Path:          cfg.Logging.Path,
		Format:        cfg.Logging.Format,
		RetentionDays: cfg.Logging.RetentionDays,
	})
}

// openLibrary opens the SQLite preset library.
func openLibrary(cfg *config.Config) (*presets.Store, func(), error) {
	database, err := db.Open(cfg.Presets.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open preset library: %w", err)
	}
	return presets.NewStore(database), func() { _ = database.Close() }, nil
}

// presetSource picks where presets come from: the configured file, else the
// library when it holds anything, else the built-in set. The returned
// cleanup must be called once the source is no longer used.
func presetSource(cfg *config.Config) (presets.Source, func(), error) {
	if cfg.Presets.Path != "" {
		return presets.NewFile(cfg.Presets.Path), func() {}, nil
	}

	store, closeDB, err := openLibrary(cfg)
	if err != nil {
		logging.Component("presets").Warnf("preset library unavailable, using built-in presets: %v", err)
		return presets.Static(presets.Defaults()), func() {}, nil
	}
	list, err := store.Load()
	if err != nil || len(list) == 0 {
		closeDB()
		if err != nil {
			logging.Component("presets").Warnf("read preset library: %v", err)
		}
		return presets.Static(presets.Defaults()), func() {}, nil
	}
	return store, closeDB, nil
}

// newManager builds a manager with presets loaded from cfg. Every engine it
// creates logs through the timer component. A load failure is returned
// alongside a usable manager with no presets.
func newManager(cfg *config.Config, opts ...manager.Option) (*manager.Manager, presets.Source, func(), error) {
	src, cleanup, err := presetSource(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	base := []manager.Option{
		manager.WithTickInterval(cfg.TickInterval()),
		manager.WithReporters(timer.NewLogReporter(logging.Component("timer"))),
	}
	mgr := manager.New(append(base, opts...)...)
	return mgr, src, cleanup, mgr.Load(src)
}
