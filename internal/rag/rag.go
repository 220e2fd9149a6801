// Package rag answers health questions over the knowledge base.
//
// The pipeline embeds the question, retrieves similar documents from
// the vector store, assembles a budgeted context block and asks the
// generation backend for an answer. If generation is unavailable the
// pipeline degrades to an extractive answer built from the retrieved
// context, so the endpoint keeps working while the model is down.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wellnessgrid/wellnessgrid/internal/inference"
	"github.com/wellnessgrid/wellnessgrid/internal/knowledge"
)

// Searcher retrieves documents by embedding similarity.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, topK int, threshold float64) ([]knowledge.SearchResult, error)
}

// Backend produces embeddings and generated answers.
type Backend interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Generate(ctx context.Context, req inference.GenerateRequest) (string, error)
}

// Config tunes retrieval and generation.
type Config struct {
	TopK          int     // documents to retrieve
	Threshold     float64 // minimum cosine similarity
	ContextBudget int     // max context characters sent to the generator
	MaxTokens     int     // generation length cap
	Temperature   float64
}

func (c Config) withDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.Threshold == 0 {
		c.Threshold = 0.5
	}
	if c.ContextBudget <= 0 {
		c.ContextBudget = 4000
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 200
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	return c
}

// Source describes one document that informed an answer.
type Source struct {
	Title      string  `json:"title"`
	Source     string  `json:"source"`
	URL        string  `json:"url,omitempty"`
	Category   string  `json:"category"`
	Similarity float64 `json:"similarity"`
}

// Metadata describes how an answer was produced.
type Metadata struct {
	DocumentsUsed    int   `json:"documentsUsed"`
	TotalFound       int   `json:"totalFound"`
	ContextLength    int   `json:"contextLength"`
	ProcessingTimeMs int64 `json:"processingTime"`
	Fallback         bool  `json:"fallback,omitempty"`
}

// Answer is the full response to a question.
type Answer struct {
	Query    string   `json:"query"`
	Answer   string   `json:"answer"`
	Sources  []Source `json:"sources"`
	Metadata Metadata `json:"metadata"`
}

// Pipeline wires retrieval and generation together.
type Pipeline struct {
	store   Searcher
	backend Backend
	cfg     Config
	logger  *slog.Logger
}

// New creates a pipeline.
func New(store Searcher, backend Backend, cfg Config, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:   store,
		backend: backend,
		cfg:     cfg.withDefaults(),
		logger:  logger,
	}
}

// Ask answers question, optionally continuing from prior conversation
// turns. The assistant is best-effort at every stage: embedding, search
// and generation failures all degrade to a canned fallback answer
// rather than an error. Only an empty question is an error.
func (p *Pipeline) Ask(ctx context.Context, question string, history []inference.HistoryTurn) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("ask: empty question")
	}

	start := time.Now()

	embedding, err := p.backend.Embed(ctx, question)
	if err != nil {
		p.logger.Warn("embedding failed, using fallback answer", "error", err)
		return p.degraded(question, start), nil
	}

	results, err := p.store.Search(ctx, embedding, p.cfg.TopK, p.cfg.Threshold)
	if err != nil {
		p.logger.Warn("knowledge search failed, using fallback answer", "error", err)
		return p.degraded(question, start), nil
	}

	contextBlock, used := assembleContext(results, p.cfg.ContextBudget)

	answer := &Answer{
		Query:   question,
		Sources: make([]Source, 0, len(used)),
	}
	for _, r := range used {
		answer.Sources = append(answer.Sources, Source{
			Title:      r.Title,
			Source:     r.Source,
			URL:        r.URL,
			Category:   r.Category,
			Similarity: r.Similarity,
		})
	}

	text, genErr := p.backend.Generate(ctx, inference.GenerateRequest{
		Query:       question,
		Context:     contextBlock,
		History:     history,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
	})
	if genErr != nil || !usableAnswer(text) {
		if genErr != nil {
			p.logger.Warn("generation failed, using fallback answer", "error", genErr)
		} else {
			p.logger.Warn("generated answer unusable, using fallback", "length", len(text))
		}
		text = fallbackAnswer(question, used)
		answer.Metadata.Fallback = true
	}

	answer.Answer = text
	answer.Metadata.DocumentsUsed = len(used)
	answer.Metadata.TotalFound = len(results)
	answer.Metadata.ContextLength = len(contextBlock)
	answer.Metadata.ProcessingTimeMs = time.Since(start).Milliseconds()

	p.logger.Info("question answered",
		"documents_used", len(used),
		"total_found", len(results),
		"fallback", answer.Metadata.Fallback,
		"elapsed", time.Since(start))

	return answer, nil
}

// degraded builds a retrieval-free answer for questions that could not
// be embedded or searched.
func (p *Pipeline) degraded(question string, start time.Time) *Answer {
	return &Answer{
		Query:   question,
		Answer:  fallbackAnswer(question, nil),
		Sources: []Source{},
		Metadata: Metadata{
			Fallback:         true,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		},
	}
}

// assembleContext joins retrieved documents into a labeled context
// block, stopping before the character budget is exceeded. At least one
// document is always included so a single oversized chunk cannot empty
// the context.
func assembleContext(results []knowledge.SearchResult, budget int) (string, []knowledge.SearchResult) {
	var b strings.Builder
	var used []knowledge.SearchResult

	for i, r := range results {
		block := fmt.Sprintf("[Source %d: %s]\n%s", i+1, sourceLabel(r), r.Content)
		if len(used) > 0 && b.Len()+len(block)+2 > budget {
			break
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(block)
		used = append(used, r)
	}
	return b.String(), used
}

func sourceLabel(r knowledge.SearchResult) string {
	switch {
	case r.Title != "" && r.Source != "":
		return r.Title + " (" + r.Source + ")"
	case r.Title != "":
		return r.Title
	case r.Source != "":
		return r.Source
	default:
		return "knowledge base"
	}
}

// usableAnswer filters out empty and degenerate generations.
func usableAnswer(text string) bool {
	return len(strings.TrimSpace(text)) >= 20
}

// fallbackExcerptLen caps how much retrieved text a fallback answer quotes.
const fallbackExcerptLen = 800

// fallbackAnswer builds an extractive answer from retrieved documents
// when generation is unavailable. The phrasing varies with the question
// type so the degraded mode still reads naturally.
func fallbackAnswer(question string, used []knowledge.SearchResult) string {
	if len(used) == 0 {
		return fmt.Sprintf("I found limited information about %q. Please consult with a healthcare professional for comprehensive medical advice.", question)
	}

	parts := make([]string, 0, len(used))
	for _, r := range used {
		parts = append(parts, strings.TrimSpace(r.Content))
	}
	combined := strings.Join(parts, " ")
	if len(combined) > fallbackExcerptLen {
		combined = combined[:fallbackExcerptLen] + "..."
	}

	lower := strings.ToLower(question)
	switch {
	case strings.Contains(lower, "what is"):
		topic := strings.TrimSpace(strings.NewReplacer("what is", "", "What is", "").Replace(question))
		return fmt.Sprintf("Based on the medical information available, here's what you need to know about %s:\n\n%s\n\nFor personalized medical advice and diagnosis, please consult with a healthcare professional.", topic, combined)
	case strings.Contains(lower, "symptom"):
		return fmt.Sprintf("According to medical sources, here are the key symptoms to be aware of:\n\n%s\n\nIf you're experiencing any of these symptoms, it's important to consult with a healthcare professional for proper evaluation and diagnosis.", combined)
	case strings.Contains(lower, "diagnos") || strings.Contains(lower, "how do i know"):
		return fmt.Sprintf("Here's how medical professionals typically diagnose this condition:\n\n%s\n\nFor accurate diagnosis and testing, you should consult with a qualified healthcare provider who can evaluate your specific situation.", combined)
	default:
		return fmt.Sprintf("Based on reliable medical sources:\n\n%s\n\nFor specific medical advice tailored to your situation, please consult with a healthcare professional.", combined)
	}
}
