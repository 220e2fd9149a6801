package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wellnessgrid/wellnessgrid/internal/log"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL:           baseURL,
		Timeout:           5 * time.Second,
		MaxRetries:        2,
		InitialInterval:   time.Millisecond,
		MaxInterval:       5 * time.Millisecond,
		RequestsPerSecond: 1000,
	}, log.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}, log.NewNop()); err == nil {
		t.Fatal("expected error for empty base URL")
	}
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Text != "magnesium and sleep" {
			t.Errorf("text = %q", req.Text)
		}
		vec := make([]float32, EmbeddingDim)
		vec[0] = 1
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": vec})
	}))
	defer srv.Close()

	got, err := testClient(t, srv.URL).Embed(context.Background(), "magnesium and sleep")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != EmbeddingDim {
		t.Fatalf("len = %d, want %d", len(got), EmbeddingDim)
	}
	if got[0] != 1 {
		t.Errorf("got[0] = %v, want 1", got[0])
	}
}

func TestEmbedRejectsWrongDimension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{1, 2, 3}})
	}))
	defer srv.Close()

	if _, err := testClient(t, srv.URL).Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected dimension error")
	}
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Query == "" || req.Context == "" {
			t.Errorf("missing fields: %+v", req)
		}
		if len(req.History) != 2 || req.History[0].Role != "user" {
			t.Errorf("history = %+v", req.History)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"answer": "  Drink water.  "})
	}))
	defer srv.Close()

	answer, err := testClient(t, srv.URL).Generate(context.Background(), GenerateRequest{
		Query:   "what helps with headaches?",
		Context: "[Source 1] Hydration relieves tension headaches.",
		History: []HistoryTurn{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
		},
		MaxTokens:   200,
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if answer != "Drink water." {
		t.Errorf("answer = %q", answer)
	}
}

func TestGenerateEmptyQuery(t *testing.T) {
	if _, err := testClient(t, "http://localhost:1").Generate(context.Background(), GenerateRequest{}); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"answer": "ok"})
	}))
	defer srv.Close()

	answer, err := testClient(t, srv.URL).Generate(context.Background(), GenerateRequest{Query: "q"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if answer != "ok" {
		t.Errorf("answer = %q", answer)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"Missing 'query' field."}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	if _, err := testClient(t, srv.URL).Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestRetriesExhausted(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := testClient(t, srv.URL).Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error after retries")
	}
	// MaxRetries=2 means one initial attempt plus two retries.
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}))
	defer srv.Close()

	if err := testClient(t, srv.URL).Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
}

func TestHealthDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := testClient(t, srv.URL).Health(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
