// Package cmd provides the wellnessgrid command line entry points.
//
// Commands:
//   - serve: HTTP API server (auth, trackers, assistant)
//   - migrate: apply pending database migrations and exit
//   - ingest: load documents into the knowledge base from a JSON file
//   - scrape: crawl configured health sites into the knowledge base
//
// Signal handling and graceful shutdown are implemented for all
// long-running commands via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/wellnessgrid/wellnessgrid/internal/log"
)

// Execute is the main entry point for the wellnessgrid CLI.
func Execute() error {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level, JSON: os.Getenv("WG_LOG_JSON") != ""})
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe(logger)
	case "migrate":
		return runMigrate(logger)
	case "ingest":
		return runIngest(logger)
	case "scrape":
		return runScrape(logger)
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("wellnessgrid - personal wellness tracking and assistant server")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  wellnessgrid serve [addr]        Start the HTTP API server (default: 127.0.0.1:8080)")
	fmt.Println("  wellnessgrid migrate             Apply pending database migrations")
	fmt.Println("  wellnessgrid ingest <docs.json>  Ingest documents into the knowledge base")
	fmt.Println("  wellnessgrid scrape <sources.json>  Crawl configured sites into the knowledge base")
	fmt.Println("  wellnessgrid --version           Show version information")
	fmt.Println("  wellnessgrid --help              Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  JWT_SECRET             Required for serve: token signing secret (32+ chars)")
	fmt.Println("  DATABASE_URL           Optional: overrides postgres_* config settings")
	fmt.Println("  INFERENCE_BACKEND_URL  Optional: embedding/generation backend (default: http://localhost:5001)")
	fmt.Println("  DEBUG                  Optional: enable debug logging")
	fmt.Println("  WG_LOG_JSON            Optional: JSON log output")
	fmt.Println()
	fmt.Println("Configuration file: ~/.wellnessgrid/config.yaml or ./config.yaml")
}
