package cmd

import (
	"fmt"
	"log/slog"

	"github.com/jmylchreest/transcodarr/internal/config"
	"github.com/jmylchreest/transcodarr/internal/database"
	"github.com/jmylchreest/transcodarr/internal/observability"
)

// openDB loads config from the --config flag (or its default search path)
// and opens the database, without running migrations or wiring any daemon.
// CLI subcommands that only need repository access use this instead of
// startup.Build, which also starts the full object graph.
func openDB() (*database.DB, *config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger := observability.NewLogger(cfg.Logging).With(slog.String("command", "cli"))

	db, err := database.New(cfg.Database, logger, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return db, cfg, logger, nil
}
