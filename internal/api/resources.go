package api

import (
	"log/slog"
	"net/http"

	"github.com/wellnessgrid/wellnessgrid/internal/postgres"
)

// resourceHandler serves the read-only curated resource catalog.
type resourceHandler struct {
	resources *postgres.Resources
	logger    *slog.Logger
}

func (h *resourceHandler) list(w http.ResponseWriter, r *http.Request) {
	f, err := listParams(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_query", "invalid list parameters", h.logger)
		return
	}

	resources, err := h.resources.List(r.Context(), r.URL.Query().Get("category"), f.Limit, f.Offset)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, resources)
}

func (h *resourceHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	resource, err := h.resources.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, resource)
}
