package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/wellnessgrid/wellnessgrid/internal/knowledge"
)

// Adder stores embedded document chunks.
type Adder interface {
	Add(ctx context.Context, doc knowledge.Document, embedding []float32) error
}

// Indexer chunks, embeds and stores documents in the knowledge base.
// A JSON registry on disk records content hashes of everything already
// embedded, so repeated ingest runs skip unchanged material. The
// registry is guarded with a file lock because ingestion may run from
// a cron job while an operator runs it by hand.
type Indexer struct {
	store   Adder
	backend Backend
	logger  *slog.Logger

	registryPath string
	chunkSize    int
	chunkOverlap int
}

// NewIndexer creates an indexer writing its registry to registryPath.
// An empty path disables the registry and every document is embedded.
func NewIndexer(store Adder, backend Backend, registryPath string, logger *slog.Logger) *Indexer {
	return &Indexer{
		store:        store,
		backend:      backend,
		logger:       logger,
		registryPath: registryPath,
		chunkSize:    knowledge.DefaultChunkSize,
		chunkOverlap: knowledge.DefaultChunkOverlap,
	}
}

// IngestDoc is raw material for the knowledge base.
type IngestDoc struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Source   string `json:"source"`
	Category string `json:"category"`
	Content  string `json:"content"`
}

// IngestStats summarizes one ingestion run.
type IngestStats struct {
	Documents int
	Chunks    int
	Skipped   int
}

// lockTimeout bounds how long an ingest run waits for the registry lock.
const lockTimeout = 30 * time.Second

// Ingest embeds and stores docs, skipping chunks whose content hash is
// already in the registry.
func (ix *Indexer) Ingest(ctx context.Context, docs []IngestDoc) (IngestStats, error) {
	var stats IngestStats

	registry, unlock, err := ix.openRegistry(ctx)
	if err != nil {
		return stats, err
	}
	defer unlock()

	for _, doc := range docs {
		chunks := knowledge.Chunk(doc.Content, ix.chunkSize, ix.chunkOverlap)
		if len(chunks) == 0 {
			ix.logger.Warn("skipping empty document", "title", doc.Title, "url", doc.URL)
			continue
		}
		stats.Documents++

		for _, chunk := range chunks {
			id := knowledge.ContentID(chunk)
			if registry != nil && registry.Embedded[id] {
				stats.Skipped++
				continue
			}

			embedding, err := ix.backend.Embed(ctx, chunk)
			if err != nil {
				return stats, fmt.Errorf("ingest: embedding chunk of %q: %w", doc.Title, err)
			}

			err = ix.store.Add(ctx, knowledge.Document{
				ID:       id,
				Content:  chunk,
				Source:   doc.Source,
				Title:    doc.Title,
				URL:      doc.URL,
				Category: doc.Category,
			}, embedding)
			if err != nil {
				return stats, fmt.Errorf("ingest: storing chunk of %q: %w", doc.Title, err)
			}

			if registry != nil {
				registry.Embedded[id] = true
			}
			stats.Chunks++
		}
	}

	if registry != nil {
		if err := ix.saveRegistry(registry); err != nil {
			return stats, err
		}
	}

	ix.logger.Info("ingestion complete",
		"documents", stats.Documents, "chunks", stats.Chunks, "skipped", stats.Skipped)
	return stats, nil
}

// IngestFile reads a JSON array of documents from path and ingests it.
func (ix *Indexer) IngestFile(ctx context.Context, path string) (IngestStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return IngestStats{}, fmt.Errorf("ingest: reading %s: %w", path, err)
	}

	var docs []IngestDoc
	if err := json.Unmarshal(data, &docs); err != nil {
		return IngestStats{}, fmt.Errorf("ingest: parsing %s: %w", path, err)
	}
	return ix.Ingest(ctx, docs)
}

// embedRegistry records which chunk hashes are already stored.
type embedRegistry struct {
	Embedded map[string]bool `json:"embedded"`
}

// openRegistry loads the registry under an exclusive file lock. The
// returned unlock func must be called once, after saveRegistry.
func (ix *Indexer) openRegistry(ctx context.Context) (*embedRegistry, func(), error) {
	if ix.registryPath == "" {
		return nil, func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(ix.registryPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("ingest: creating registry dir: %w", err)
	}

	lock := flock.New(ix.registryPath + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(lockCtx, 200*time.Millisecond)
	if err != nil {
		return nil, nil, fmt.Errorf("ingest: acquiring registry lock: %w", err)
	}
	if !locked {
		return nil, nil, fmt.Errorf("ingest: registry is locked by another process")
	}
	unlock := func() {
		if err := lock.Unlock(); err != nil {
			ix.logger.Warn("releasing registry lock", "error", err)
		}
	}

	registry := &embedRegistry{Embedded: make(map[string]bool)}
	data, err := os.ReadFile(ix.registryPath)
	switch {
	case os.IsNotExist(err):
		// First run.
	case err != nil:
		unlock()
		return nil, nil, fmt.Errorf("ingest: reading registry: %w", err)
	default:
		if err := json.Unmarshal(data, registry); err != nil {
			unlock()
			return nil, nil, fmt.Errorf("ingest: parsing registry: %w", err)
		}
		if registry.Embedded == nil {
			registry.Embedded = make(map[string]bool)
		}
	}

	return registry, unlock, nil
}

func (ix *Indexer) saveRegistry(registry *embedRegistry) error {
	data, err := json.MarshalIndent(registry, "", "  ")
	if err != nil {
		return fmt.Errorf("ingest: encoding registry: %w", err)
	}
	if err := os.WriteFile(ix.registryPath, data, 0o644); err != nil {
		return fmt.Errorf("ingest: writing registry: %w", err)
	}
	return nil
}
