package knowledge_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellnessgrid/wellnessgrid/internal/knowledge"
	"github.com/wellnessgrid/wellnessgrid/internal/log"
	"github.com/wellnessgrid/wellnessgrid/internal/testutil"
)

func TestStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := knowledge.New(db.Pool, log.NewNop())

	docs := []knowledge.Document{
		{ID: "doc-hydration", Content: "Drinking water regularly helps prevent tension headaches.", Source: "cdc.gov", Title: "Hydration basics", Category: "general"},
		{ID: "doc-magnesium", Content: "Magnesium supplementation may reduce the frequency of migraines.", Source: "nih.gov", Title: "Magnesium", Category: "nutrition"},
		{ID: "doc-sleep", Content: "Adults need seven to nine hours of sleep for recovery.", Source: "cdc.gov", Title: "Sleep guidance", Category: "sleep"},
	}
	for _, doc := range docs {
		require.NoError(t, store.Add(ctx, doc, testutil.DeterministicEmbedding(doc.Content)))
	}

	t.Run("count", func(t *testing.T) {
		n, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("search finds exact content first", func(t *testing.T) {
		query := testutil.DeterministicEmbedding(docs[1].Content)
		results, err := store.Search(ctx, query, 5, 0.5)
		require.NoError(t, err)
		require.NotEmpty(t, results)

		assert.Equal(t, "doc-magnesium", results[0].ID)
		assert.InDelta(t, 1.0, results[0].Similarity, 0.01)
	})

	t.Run("threshold filters weak matches", func(t *testing.T) {
		query := testutil.DeterministicEmbedding("completely unrelated text about tax law")
		results, err := store.Search(ctx, query, 5, 0.95)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("top k limits results", func(t *testing.T) {
		query := testutil.DeterministicEmbedding(docs[0].Content)
		results, err := store.Search(ctx, query, 1, 0)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("add upserts on same id", func(t *testing.T) {
		updated := docs[0]
		updated.Content = "Hydration also supports kidney function."
		require.NoError(t, store.Add(ctx, updated, testutil.DeterministicEmbedding(updated.Content)))

		n, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		results, err := store.Search(ctx, testutil.DeterministicEmbedding(updated.Content), 1, 0.9)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, updated.Content, results[0].Content)
	})

	t.Run("sources", func(t *testing.T) {
		sources, err := store.Sources(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"cdc.gov": 2, "nih.gov": 1}, sources)
	})

	t.Run("delete by source", func(t *testing.T) {
		deleted, err := store.DeleteBySource(ctx, "cdc.gov")
		require.NoError(t, err)
		assert.EqualValues(t, 2, deleted)

		n, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("add rejects empty fields", func(t *testing.T) {
		err := store.Add(ctx, knowledge.Document{Content: "x"}, testutil.DeterministicEmbedding("x"))
		assert.Error(t, err)

		err = store.Add(ctx, knowledge.Document{ID: "y"}, testutil.DeterministicEmbedding("y"))
		assert.Error(t, err)
	})
}
