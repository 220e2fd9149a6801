package testutil

import (
	"encoding/json"
	"hash/fnv"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// MockInference is a fake model backend for tests. It serves the same
// three endpoints as the real service with deterministic output:
// embeddings are derived from the input text, so identical texts map to
// identical vectors and similarity search behaves predictably.
type MockInference struct {
	Server *httptest.Server

	// Answer is returned by /generate. Defaults to a fixed string.
	Answer string
	// FailEmbed makes /embed return 500 when set.
	FailEmbed atomic.Bool
	// FailGenerate makes /generate return 500 when set.
	FailGenerate atomic.Bool

	EmbedCalls    atomic.Int64
	GenerateCalls atomic.Int64
}

// NewMockInference starts the fake backend. It is stopped automatically
// when the test finishes.
func NewMockInference(t *testing.T) *MockInference {
	t.Helper()

	m := &MockInference{Answer: "Based on the available information, stay hydrated and rest."}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /embed", func(w http.ResponseWriter, r *http.Request) {
		m.EmbedCalls.Add(1)
		if m.FailEmbed.Load() {
			http.Error(w, `{"error":"model unavailable"}`, http.StatusInternalServerError)
			return
		}
		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
			http.Error(w, `{"error":"Missing 'text' field."}`, http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embedding": DeterministicEmbedding(req.Text),
		})
	})
	mux.HandleFunc("POST /generate", func(w http.ResponseWriter, r *http.Request) {
		m.GenerateCalls.Add(1)
		if m.FailGenerate.Load() {
			http.Error(w, `{"error":"model unavailable"}`, http.StatusInternalServerError)
			return
		}
		var req struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
			http.Error(w, `{"error":"Missing 'query' field."}`, http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"answer": m.Answer})
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	m.Server = httptest.NewServer(mux)
	t.Cleanup(m.Server.Close)
	return m
}

// URL returns the backend's base URL.
func (m *MockInference) URL() string { return m.Server.URL }

// DeterministicEmbedding maps text onto a unit vector of 768 dimensions.
// Texts sharing a prefix hash get nearby vectors, which is enough for
// search tests that only need stable, distinguishable embeddings.
func DeterministicEmbedding(text string) []float32 {
	const dim = 768

	vec := make([]float32, dim)
	var norm float64
	for i := range dim {
		h := fnv.New32a()
		_, _ = h.Write([]byte(text))
		_, _ = h.Write([]byte{byte(i), byte(i >> 8)})
		// Map the hash onto [-1, 1).
		v := float64(int32(h.Sum32())) / math.MaxInt32
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
