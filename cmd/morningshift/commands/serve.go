package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marcus/morningshift/internal/config"
	"github.com/marcus/morningshift/internal/logging"
	"github.com/marcus/morningshift/internal/manager"
	"github.com/marcus/morningshift/internal/metrics"
	"github.com/marcus/morningshift/internal/presets"
	"github.com/marcus/morningshift/internal/voice"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the voice assistant webhook",
	Long: `Serve the voice assistant webhook on voice.addr.

POST /voice answers skill requests, GET /healthz reports liveness and, when
metrics.enabled is set, GET /metrics exposes Prometheus metrics. With
presets.watch the presets file is reloaded when it changes.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides voice.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Voice.Addr = addr
	}
	if err := initLogging(cfg); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	log := logging.Component("serve")

	mgr, src, cleanup, err := newManager(cfg)
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		// Keep serving; the menu answers that nothing is configured.
		log.Warnf("serving without presets: %v", err)
	}
	defer func() { _ = mgr.StopCurrent() }()

	var met *metrics.Metrics
	if cfg.Metrics.Enabled {
		met = metrics.New()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := watchPresets(ctx, cfg, mgr, src); err != nil {
		return err
	}

	srv := voice.NewServer(cfg.Voice.Addr, mgr, met)
	log.InfoCtx("webhook listening", map[string]any{
		"addr":    cfg.Voice.Addr,
		"metrics": cfg.Metrics.Enabled,
	})
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s/voice\n", cfg.Voice.Addr)

	if err := srv.Run(ctx); err != nil {
		return err
	}
	log.Info("webhook stopped")
	return nil
}

// watchPresets reloads the manager from src whenever the presets file
// changes, until ctx is done. It does nothing unless presets.watch is set
// and presets come from a file.
func watchPresets(ctx context.Context, cfg *config.Config, mgr *manager.Manager, src presets.Source) error {
	if !cfg.Presets.Watch || cfg.Presets.Path == "" {
		return nil
	}
	log := logging.Component("presets")

	w, err := presets.NewWatcher(cfg.Presets.Path, presets.DefaultDebounce, func() {
		// Reload logs failures and keeps the previous set.
		_ = mgr.Reload(src)
	})
	if err != nil {
		return fmt.Errorf("watch presets: %w", err)
	}

	go func() {
		defer func() { _ = w.Close() }()
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			log.Errorf("presets watcher: %v", err)
		}
	}()
	return nil
}
