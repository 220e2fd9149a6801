package cmd

import (
	"fmt"
	"log/slog"

	"github.com/wellnessgrid/wellnessgrid/db"
	"github.com/wellnessgrid/wellnessgrid/internal/config"
)

// runMigrate applies pending database migrations and exits. The serve
// command migrates on startup too; this exists for deploy pipelines
// that migrate before rolling instances.
func runMigrate(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("applying migrations",
		"host", cfg.PostgresHost, "database", cfg.PostgresDBName)

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	logger.Info("migrations applied")
	return nil
}
