package cmd

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/wellnessgrid/wellnessgrid/db"
	"github.com/wellnessgrid/wellnessgrid/internal/config"
	"github.com/wellnessgrid/wellnessgrid/internal/database"
	"github.com/wellnessgrid/wellnessgrid/internal/inference"
	"github.com/wellnessgrid/wellnessgrid/internal/knowledge"
	"github.com/wellnessgrid/wellnessgrid/internal/rag"
)

// defaultRegistry returns the default embed-registry path under the
// user's config directory.
func defaultRegistry() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".wellnessgrid", "embed_registry.json")
}

// runIngest loads a JSON document file into the knowledge base.
func runIngest(logger *slog.Logger) error {
	ingestFlags := flag.NewFlagSet("ingest", flag.ContinueOnError)
	ingestFlags.SetOutput(os.Stderr)
	registry := ingestFlags.String("registry", defaultRegistry(),
		"Embed registry path; empty re-embeds everything")

	args := []string{}
	if len(os.Args) > 2 {
		args = os.Args[2:]
	}
	var path string
	if len(args) > 0 && args[0][0] != '-' {
		path = args[0]
		args = args[1:]
	}
	if err := ingestFlags.Parse(args); err != nil {
		return fmt.Errorf("parsing ingest flags: %w", err)
	}
	if path == "" {
		return fmt.Errorf("usage: wellnessgrid ingest <docs.json>")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	pool, err := database.Open(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	backend, err := inference.New(inference.Config{
		BaseURL: cfg.InferenceURL,
		Timeout: cfg.InferenceTimeout,
	}, logger.With("component", "inference"))
	if err != nil {
		return fmt.Errorf("creating inference client: %w", err)
	}

	store := knowledge.New(pool, logger.With("component", "knowledge"))
	indexer := rag.NewIndexer(store, backend, *registry, logger.With("component", "ingest"))

	stats, err := indexer.IngestFile(ctx, path)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", path, err)
	}

	logger.Info("ingest finished",
		"file", path,
		"documents", stats.Documents,
		"chunks", stats.Chunks,
		"skipped", stats.Skipped,
	)
	return nil
}
