package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/wellnessgrid/wellnessgrid/internal/domain"
	"github.com/wellnessgrid/wellnessgrid/internal/inference"
	"github.com/wellnessgrid/wellnessgrid/internal/postgres"
	"github.com/wellnessgrid/wellnessgrid/internal/rag"
)

// Asker answers questions over the knowledge base.
type Asker interface {
	Ask(ctx context.Context, question string, history []inference.HistoryTurn) (*rag.Answer, error)
}

// HealthProber reports whether the inference backend is reachable.
type HealthProber interface {
	Health(ctx context.Context) error
}

// DocumentCounter reports knowledge-base size for the probe endpoint.
type DocumentCounter interface {
	Count(ctx context.Context) (int, error)
}

// historyTurns caps how much prior conversation is replayed to the
// generator per question.
const historyTurns = 10

// askHandler serves the assistant endpoint.
type askHandler struct {
	pipeline  Asker
	backend   HealthProber
	documents DocumentCounter
	sessions  *postgres.Sessions
	validate  *validator.Validate
	logger    *slog.Logger
}

type askRequest struct {
	Query string `json:"query" validate:"required,max=2000"`
	// SessionID continues an existing conversation; empty starts one.
	SessionID *uuid.UUID `json:"sessionId"`
	// UserContext is optional free-text background supplied by the
	// client, e.g. tracked conditions the user opted to share.
	UserContext string `json:"userContext" validate:"omitempty,max=4000"`
}

type askResponse struct {
	*rag.Answer
	SessionID uuid.UUID `json:"sessionId"`
}

// ask answers a question. Retrieval or storage failures are 5xx, but a
// degraded (fallback) answer is still HTTP 200 with fallback metadata,
// matching how clients treat the assistant as best-effort.
func (h *askHandler) ask(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r, h.logger)
	if !ok {
		return
	}
	var req askRequest
	if !decodeAndValidate(w, r, h.validate, &req, h.logger) {
		return
	}

	ctx := r.Context()

	var (
		session *domain.ChatSession
		history []inference.HistoryTurn
		err     error
	)
	if req.SessionID != nil {
		session, err = h.sessions.Get(ctx, userID, *req.SessionID)
		if err != nil {
			writeDomainError(w, err, h.logger)
			return
		}
		history, err = h.loadHistory(ctx, userID, session.ID)
		if err != nil {
			writeDomainError(w, err, h.logger)
			return
		}
	} else {
		session, err = h.sessions.Create(ctx, userID, req.Query)
		if err != nil {
			writeDomainError(w, err, h.logger)
			return
		}
	}

	if req.UserContext != "" {
		history = append([]inference.HistoryTurn{
			{Role: domain.RoleUser, Content: "Background about me: " + req.UserContext},
		}, history...)
	}

	answer, err := h.pipeline.Ask(ctx, req.Query, history)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	// Persist the exchange. A transcript write failure should not eat
	// an answer the user already paid the latency for.
	if _, err := h.sessions.AppendMessage(ctx, userID, session.ID, domain.RoleUser, req.Query); err != nil {
		h.logger.Warn("persisting question failed", "session_id", session.ID, "error", err)
	} else if _, err := h.sessions.AppendMessage(ctx, userID, session.ID, domain.RoleAssistant, answer.Answer); err != nil {
		h.logger.Warn("persisting answer failed", "session_id", session.ID, "error", err)
	}

	WriteJSON(w, http.StatusOK, askResponse{Answer: answer, SessionID: session.ID})
}

// loadHistory converts the session tail into generator turns.
func (h *askHandler) loadHistory(ctx context.Context, userID, sessionID uuid.UUID) ([]inference.HistoryTurn, error) {
	messages, err := h.sessions.RecentMessages(ctx, userID, sessionID, historyTurns)
	if err != nil {
		return nil, err
	}

	history := make([]inference.HistoryTurn, 0, len(messages))
	for _, m := range messages {
		history = append(history, inference.HistoryTurn{Role: m.Role, Content: m.Content})
	}
	return history, nil
}

type askProbeResponse struct {
	Status    string `json:"status"` // "ok" or "degraded"
	Inference string `json:"inference"`
	Documents int    `json:"documents"`
}

// probeTimeout bounds the GET probe's backend check.
const probeTimeout = 5 * time.Second

// probe reports whether the assistant pipeline can serve real answers:
// the inference backend must respond and the knowledge base must be
// populated. A degraded pipeline still returns 200 because the ask
// endpoint keeps working through its fallback path.
func (h *askHandler) probe(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	resp := askProbeResponse{Status: "ok", Inference: "ok"}

	if err := h.backend.Health(ctx); err != nil {
		h.logger.Warn("inference backend unreachable", "error", err)
		resp.Status = "degraded"
		resp.Inference = "unreachable"
	}

	n, err := h.documents.Count(ctx)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	resp.Documents = n
	if n == 0 {
		resp.Status = "degraded"
	}

	WriteJSON(w, http.StatusOK, resp)
}
