package rag

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellnessgrid/wellnessgrid/internal/knowledge"
	"github.com/wellnessgrid/wellnessgrid/internal/log"
)

type fakeAdder struct {
	docs map[string]knowledge.Document
}

func newFakeAdder() *fakeAdder {
	return &fakeAdder{docs: make(map[string]knowledge.Document)}
}

func (f *fakeAdder) Add(_ context.Context, doc knowledge.Document, _ []float32) error {
	f.docs[doc.ID] = doc
	return nil
}

func TestIngest(t *testing.T) {
	store := newFakeAdder()
	registry := filepath.Join(t.TempDir(), "registry.json")
	ix := NewIndexer(store, &fakeBackend{}, registry, log.NewNop())

	docs := []IngestDoc{
		{Title: "Hydration", URL: "https://cdc.gov/hydration", Source: "cdc.gov", Category: "general",
			Content: "Drinking water regularly helps prevent headaches."},
		{Title: "Long guide", Source: "nih.gov", Category: "nutrition",
			Content: strings.Repeat("Nutrients matter for recovery. ", 100)},
	}

	stats, err := ix.Ingest(context.Background(), docs)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Documents)
	assert.Greater(t, stats.Chunks, 2, "long guide should split into multiple chunks")
	assert.Zero(t, stats.Skipped)
	assert.Len(t, store.docs, stats.Chunks)

	for _, doc := range store.docs {
		assert.NotEmpty(t, doc.Source)
		assert.NotEmpty(t, doc.Category)
	}
}

func TestIngestSkipsAlreadyEmbedded(t *testing.T) {
	registry := filepath.Join(t.TempDir(), "registry.json")
	docs := []IngestDoc{{Title: "Sleep", Source: "cdc.gov", Content: "Adults need seven to nine hours of sleep."}}

	first := NewIndexer(newFakeAdder(), &fakeBackend{}, registry, log.NewNop())
	stats, err := first.Ingest(context.Background(), docs)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Chunks)

	// Second run over the same content embeds nothing.
	store := newFakeAdder()
	second := NewIndexer(store, &fakeBackend{}, registry, log.NewNop())
	stats, err = second.Ingest(context.Background(), docs)
	require.NoError(t, err)

	assert.Zero(t, stats.Chunks)
	assert.Equal(t, 1, stats.Skipped)
	assert.Empty(t, store.docs)
}

func TestIngestWithoutRegistry(t *testing.T) {
	store := newFakeAdder()
	ix := NewIndexer(store, &fakeBackend{}, "", log.NewNop())

	docs := []IngestDoc{{Title: "Moods", Source: "local", Content: "Mood tracking builds self awareness over time."}}
	for range 2 {
		stats, err := ix.Ingest(context.Background(), docs)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Chunks)
	}
}

func TestIngestSkipsEmptyDocuments(t *testing.T) {
	ix := NewIndexer(newFakeAdder(), &fakeBackend{}, "", log.NewNop())

	stats, err := ix.Ingest(context.Background(), []IngestDoc{{Title: "Empty", Content: "   "}})
	require.NoError(t, err)
	assert.Zero(t, stats.Documents)
	assert.Zero(t, stats.Chunks)
}

func TestIngestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.json")
	docs := []IngestDoc{{Title: "Vitals", Source: "local", Category: "vitals",
		Content: "Track blood pressure at the same time each day."}}
	data, err := json.Marshal(docs)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	store := newFakeAdder()
	ix := NewIndexer(store, &fakeBackend{}, "", log.NewNop())

	stats, err := ix.IngestFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Chunks)
	require.Len(t, store.docs, 1)
	for _, doc := range store.docs {
		assert.Equal(t, "Vitals", doc.Title)
	}
}

func TestIngestFileMissing(t *testing.T) {
	ix := NewIndexer(newFakeAdder(), &fakeBackend{}, "", log.NewNop())
	_, err := ix.IngestFile(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}
