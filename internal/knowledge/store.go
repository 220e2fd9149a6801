// Package knowledge is the vector-search document store behind the
// assistant. Documents are chunks of curated medical content embedded
// with the backend's 768-dimension model and ranked by cosine
// similarity via pgvector.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// searchTimeout bounds a similarity query. ivfflat probes are fast;
// anything slower means the database is in trouble and the request
// should fail instead of queueing.
const searchTimeout = 10 * time.Second

// Document is one chunk of knowledge-base content.
type Document struct {
	ID       string
	Content  string
	Source   string
	Title    string
	URL      string
	Category string
}

// SearchResult pairs a document with its cosine similarity in [0, 1].
type SearchResult struct {
	Document
	Similarity float64
}

// Store persists and searches documents.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a knowledge store.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}

// Add upserts a document with its embedding. Re-ingesting the same ID
// replaces the stored content and vector.
func (s *Store) Add(ctx context.Context, doc Document, embedding []float32) error {
	if doc.ID == "" {
		return fmt.Errorf("adding document: empty id")
	}
	if doc.Content == "" {
		return fmt.Errorf("adding document %s: empty content", doc.ID)
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, content, embedding, source, title, url, category)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		     content = EXCLUDED.content,
		     embedding = EXCLUDED.embedding,
		     source = EXCLUDED.source,
		     title = EXCLUDED.title,
		     url = EXCLUDED.url,
		     category = EXCLUDED.category`,
		doc.ID, doc.Content, pgvector.NewVector(embedding),
		doc.Source, doc.Title, doc.URL, doc.Category,
	)
	if err != nil {
		return fmt.Errorf("adding document %s: %w", doc.ID, err)
	}
	return nil
}

// Search returns up to topK documents whose cosine similarity to the
// query embedding meets threshold, best match first.
func (s *Store) Search(ctx context.Context, embedding []float32, topK int, threshold float64) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}

	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	vec := pgvector.NewVector(embedding)
	rows, err := s.pool.Query(ctx,
		`SELECT id, content, source, title, url, category,
		        1 - (embedding <=> $1) AS similarity
		 FROM documents
		 WHERE 1 - (embedding <=> $1) >= $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		vec, threshold, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Content, &r.Source, &r.Title, &r.URL, &r.Category, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}

	s.logger.Debug("knowledge search", "results", len(results), "top_k", topK, "threshold", threshold)
	return results, nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// DeleteBySource removes every chunk ingested from source and returns
// how many were deleted.
func (s *Store) DeleteBySource(ctx context.Context, source string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE source = $1`, source)
	if err != nil {
		return 0, fmt.Errorf("deleting documents for source %s: %w", source, err)
	}
	return tag.RowsAffected(), nil
}

// Sources returns the distinct ingestion sources with chunk counts.
func (s *Store) Sources(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source, count(*) FROM documents GROUP BY source ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	defer rows.Close()

	sources := make(map[string]int)
	for rows.Next() {
		var source string
		var n int
		if err := rows.Scan(&source, &n); err != nil {
			return nil, fmt.Errorf("scanning source row: %w", err)
		}
		sources[source] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sources: %w", err)
	}
	return sources, nil
}
