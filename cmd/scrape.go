package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/wellnessgrid/wellnessgrid/db"
	"github.com/wellnessgrid/wellnessgrid/internal/config"
	"github.com/wellnessgrid/wellnessgrid/internal/database"
	"github.com/wellnessgrid/wellnessgrid/internal/inference"
	"github.com/wellnessgrid/wellnessgrid/internal/knowledge"
	"github.com/wellnessgrid/wellnessgrid/internal/rag"
	"github.com/wellnessgrid/wellnessgrid/internal/scrape"
)

// runScrape crawls the sites listed in a sources file and ingests the
// extracted articles. The sources file is a JSON array of
// scrape.Source entries:
//
//	[{"name": "cdc", "category": "general",
//	  "urls": ["https://www.cdc.gov/healthyweight/index.html"],
//	  "maxPages": 20}]
func runScrape(logger *slog.Logger) error {
	scrapeFlags := flag.NewFlagSet("scrape", flag.ContinueOnError)
	scrapeFlags.SetOutput(os.Stderr)
	registry := scrapeFlags.String("registry", defaultRegistry(),
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
	if err := scrapeFlags.Parse(args); err != nil {
		return fmt.Errorf("parsing scrape flags: %w", err)
	}
	if path == "" {
		return fmt.Errorf("usage: wellnessgrid scrape <sources.json>")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	var sources []scrape.Source
	if err := json.Unmarshal(data, &sources); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(sources) == 0 {
		return fmt.Errorf("%s lists no sources", path)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	scraper := scrape.New(scrape.Config{}, logger.With("component", "scrape"))
	docs, err := scraper.Scrape(sources)
	if err != nil {
		return fmt.Errorf("scraping: %w", err)
	}
	if len(docs) == 0 {
		logger.Warn("no articles extracted, nothing to ingest")
		return nil
	}

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

	stats, err := indexer.Ingest(ctx, docs)
	if err != nil {
		return fmt.Errorf("ingesting scraped articles: %w", err)
	}

	logger.Info("scrape finished",
		"articles", len(docs),
		"documents", stats.Documents,
		"chunks", stats.Chunks,
		"skipped", stats.Skipped,
	)
	return nil
}
