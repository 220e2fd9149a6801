package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/wellnessgrid/wellnessgrid/internal/postgres"
)

// sessionHandler serves chat-session bookkeeping: starting a
// conversation, listing past ones, reading a transcript and deleting.
// The ask endpoint also creates a session implicitly when none is
// given.
type sessionHandler struct {
	sessions *postgres.Sessions
	validate *validator.Validate
	logger   *slog.Logger
}

type createSessionRequest struct {
	Title string `json:"title" validate:"required,max=2000"`
}

func (h *sessionHandler) create(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r, h.logger)
	if !ok {
		return
	}
	var req createSessionRequest
	if !decodeAndValidate(w, r, h.validate, &req, h.logger) {
		return
	}

	session, err := h.sessions.Create(r.Context(), userID, req.Title)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusCreated, session)
}

func (h *sessionHandler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r, h.logger)
	if !ok {
		return
	}
	f, err := listParams(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_query", "invalid list parameters", h.logger)
		return
	}

	sessions, err := h.sessions.List(r.Context(), userID, f.Limit, f.Offset)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, sessions)
}

func (h *sessionHandler) get(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	session, err := h.sessions.Get(r.Context(), userID, id)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, session)
}

func (h *sessionHandler) messages(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	limit, offset := 0, 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid_query", "invalid limit", h.logger)
			return
		}
		limit = n
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid_query", "invalid offset", h.logger)
			return
		}
		offset = n
	}

	messages, err := h.sessions.Messages(r.Context(), userID, id, limit, offset)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, messages)
}

func (h *sessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.sessions.Delete(r.Context(), userID, id); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
