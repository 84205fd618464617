package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/transcodarr/internal/config"
	"github.com/jmylchreest/transcodarr/internal/observability"
	"github.com/jmylchreest/transcodarr/internal/startup"
	"github.com/jmylchreest/transcodarr/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the transcoding daemon",
	Long: `serve builds the full object graph - persistence, the folder watcher, the
window scheduler, the encoder pool, external sync, and the diagnostics
endpoint - and runs it until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := observability.NewLogger(cfg.Logging)
	observability.SetDefault(logger)

	logger.Info("starting transcodarr", "version", version.Short())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	graph, err := startup.Build(ctx, cfg, logger, version.Short())
	if err != nil {
		return fmt.Errorf("building object graph: %w", err)
	}

	if err := graph.Start(); err != nil {
		_ = graph.Shutdown()
		return fmt.Errorf("starting daemons: %w", err)
	}

	logger.Info("transcodarr started, waiting for shutdown signal")
	<-ctx.Done()

	logger.Info("shutdown signal received, stopping daemons")
	if err := graph.Shutdown(); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}

	logger.Info("transcodarr stopped cleanly")
	return nil
}
