package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/wellnessgrid/wellnessgrid/internal/inference"
	"github.com/wellnessgrid/wellnessgrid/internal/knowledge"
	"github.com/wellnessgrid/wellnessgrid/internal/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSearcher struct {
	results []knowledge.SearchResult
	err     error

	gotTopK      int
	gotThreshold float64
}

func (f *fakeSearcher) Search(_ context.Context, _ []float32, topK int, threshold float64) ([]knowledge.SearchResult, error) {
	f.gotTopK = topK
	f.gotThreshold = threshold
	return f.results, f.err
}

type fakeBackend struct {
	answer      string
	embedErr    error
	generateErr error

	gotRequest inference.GenerateRequest
}

func (f *fakeBackend) Embed(_ context.Context, _ string) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return make([]float32, inference.EmbeddingDim), nil
}

func (f *fakeBackend) Generate(_ context.Context, req inference.GenerateRequest) (string, error) {
	f.gotRequest = req
	return f.answer, f.generateErr
}

func result(title, source, content string, similarity float64) knowledge.SearchResult {
	return knowledge.SearchResult{
		Document: knowledge.Document{
			ID:       knowledge.ContentID(content),
			Content:  content,
			Source:   source,
			Title:    title,
			Category: "general",
		},
		Similarity: similarity,
	}
}

func TestAsk(t *testing.T) {
	searcher := &fakeSearcher{results: []knowledge.SearchResult{
		result("Hydration", "cdc.gov", "Drinking water helps prevent tension headaches.", 0.91),
		result("Magnesium", "nih.gov", "Magnesium may reduce migraine frequency.", 0.78),
	}}
	backend := &fakeBackend{answer: "Staying hydrated and considering magnesium intake can help with headaches."}

	p := New(searcher, backend, Config{TopK: 3, Threshold: 0.6}, log.NewNop())
	answer, err := p.Ask(context.Background(), "what helps with headaches?", nil)
	require.NoError(t, err)

	assert.Equal(t, "what helps with headaches?", answer.Query)
	assert.Equal(t, backend.answer, answer.Answer)
	assert.False(t, answer.Metadata.Fallback)
	assert.Equal(t, 2, answer.Metadata.DocumentsUsed)
	assert.Equal(t, 2, answer.Metadata.TotalFound)
	assert.Positive(t, answer.Metadata.ContextLength)

	require.Len(t, answer.Sources, 2)
	assert.Equal(t, "Hydration", answer.Sources[0].Title)
	assert.InDelta(t, 0.91, answer.Sources[0].Similarity, 1e-9)

	// Config flows through to retrieval and generation.
	assert.Equal(t, 3, searcher.gotTopK)
	assert.InDelta(t, 0.6, searcher.gotThreshold, 1e-9)
	assert.Contains(t, backend.gotRequest.Context, "[Source 1: Hydration (cdc.gov)]")
	assert.Contains(t, backend.gotRequest.Context, "Drinking water helps prevent tension headaches.")
}

func TestAskPassesHistory(t *testing.T) {
	backend := &fakeBackend{answer: "Yes, consistency matters most for sleep quality."}
	p := New(&fakeSearcher{}, backend, Config{}, log.NewNop())

	history := []inference.HistoryTurn{
		{Role: "user", Content: "how much sleep do I need?"},
		{Role: "assistant", Content: "Most adults need seven to nine hours."},
	}
	_, err := p.Ask(context.Background(), "does consistency matter?", history)
	require.NoError(t, err)
	assert.Equal(t, history, backend.gotRequest.History)
}

func TestAskEmptyQuestion(t *testing.T) {
	p := New(&fakeSearcher{}, &fakeBackend{}, Config{}, log.NewNop())
	_, err := p.Ask(context.Background(), "   ", nil)
	require.Error(t, err)
}

func TestAskEmbedFailureFallsBack(t *testing.T) {
	backend := &fakeBackend{embedErr: errors.New("backend down")}
	p := New(&fakeSearcher{}, backend, Config{}, log.NewNop())

	answer, err := p.Ask(context.Background(), "can stress cause headaches?", nil)
	require.NoError(t, err)

	assert.True(t, answer.Metadata.Fallback)
	assert.Contains(t, answer.Answer, "can stress cause headaches?")
	assert.Contains(t, answer.Answer, "healthcare professional")
	assert.Empty(t, answer.Sources)
	assert.Zero(t, answer.Metadata.DocumentsUsed)
}

func TestAskSearchFailureFallsBack(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("db down")}
	p := New(searcher, &fakeBackend{}, Config{}, log.NewNop())

	answer, err := p.Ask(context.Background(), "anything", nil)
	require.NoError(t, err)

	assert.True(t, answer.Metadata.Fallback)
	assert.Contains(t, answer.Answer, "healthcare professional")
	assert.Empty(t, answer.Sources)
}

func TestAskGenerationFailureFallsBack(t *testing.T) {
	searcher := &fakeSearcher{results: []knowledge.SearchResult{
		result("Arthritis overview", "nih.gov", "Arthritis is inflammation of one or more joints, causing pain and stiffness.", 0.88),
	}}
	backend := &fakeBackend{generateErr: errors.New("model unavailable")}

	p := New(searcher, backend, Config{}, log.NewNop())
	answer, err := p.Ask(context.Background(), "what is arthritis?", nil)
	require.NoError(t, err)

	assert.True(t, answer.Metadata.Fallback)
	assert.Contains(t, answer.Answer, "inflammation of one or more joints")
	assert.Contains(t, answer.Answer, "healthcare professional")
	require.Len(t, answer.Sources, 1)
}

func TestAskShortGenerationFallsBack(t *testing.T) {
	searcher := &fakeSearcher{results: []knowledge.SearchResult{
		result("Sleep", "cdc.gov", "Adults need seven to nine hours of sleep nightly.", 0.8),
	}}
	backend := &fakeBackend{answer: "ok."}

	p := New(searcher, backend, Config{}, log.NewNop())
	answer, err := p.Ask(context.Background(), "how much sleep?", nil)
	require.NoError(t, err)

	assert.True(t, answer.Metadata.Fallback)
	assert.NotEqual(t, "ok.", answer.Answer)
}

func TestAskNoResultsFallbackMentionsQuestion(t *testing.T) {
	backend := &fakeBackend{generateErr: errors.New("down")}
	p := New(&fakeSearcher{}, backend, Config{}, log.NewNop())

	answer, err := p.Ask(context.Background(), "rare condition xyz", nil)
	require.NoError(t, err)
	assert.True(t, answer.Metadata.Fallback)
	assert.Contains(t, answer.Answer, "rare condition xyz")
	assert.Empty(t, answer.Sources)
	assert.Zero(t, answer.Metadata.DocumentsUsed)
}

func TestAssembleContextRespectsBudget(t *testing.T) {
	results := []knowledge.SearchResult{
		result("A", "a.org", strings.Repeat("a", 200), 0.9),
		result("B", "b.org", strings.Repeat("b", 200), 0.8),
		result("C", "c.org", strings.Repeat("c", 200), 0.7),
	}

	contextBlock, used := assembleContext(results, 500)
	assert.Len(t, used, 2)
	assert.LessOrEqual(t, len(contextBlock), 500)
	assert.Contains(t, contextBlock, "[Source 1: A (a.org)]")
	assert.NotContains(t, contextBlock, "[Source 3")
}

func TestAssembleContextAlwaysIncludesFirst(t *testing.T) {
	results := []knowledge.SearchResult{
		result("Big", "x.org", strings.Repeat("z", 5000), 0.9),
	}

	contextBlock, used := assembleContext(results, 100)
	assert.Len(t, used, 1)
	assert.NotEmpty(t, contextBlock)
}

func TestFallbackAnswerPhrasing(t *testing.T) {
	used := []knowledge.SearchResult{
		result("Flu", "cdc.gov", "Influenza is a contagious respiratory illness.", 0.9),
	}

	tests := []struct {
		question string
		want     string
	}{
		{"what is influenza?", "here's what you need to know about"},
		{"what are the symptoms of flu?", "key symptoms to be aware of"},
		{"how is flu diagnosed?", "typically diagnose"},
		{"should I worry about the flu?", "Based on reliable medical sources"},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			got := fallbackAnswer(tt.question, used)
			assert.Contains(t, got, tt.want)
			assert.Contains(t, got, "contagious respiratory illness")
		})
	}
}
