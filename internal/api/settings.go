package api

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/wellnessgrid/wellnessgrid/internal/postgres"
)

// settingsHandler serves per-user notification preferences.
type settingsHandler struct {
	settings *postgres.Settings
	validate *validator.Validate
	logger   *slog.Logger
}

type settingsRequest struct {
	MedicationReminder bool `json:"medicationReminder"`
	SymptomReminder    bool `json:"symptomReminder"`
	WeeklySummary      bool `json:"weeklySummary"`
	ReminderHour       int  `json:"reminderHour" validate:"min=0,max=23"`
}

func (h *settingsHandler) get(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r, h.logger)
	if !ok {
		return
	}

	settings, err := h.settings.Get(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, settings)
}

func (h *settingsHandler) update(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r, h.logger)
	if !ok {
		return
	}
	var req settingsRequest
	if !decodeAndValidate(w, r, h.validate, &req, h.logger) {
		return
	}

	settings, err := h.settings.Update(r.Context(), userID, postgres.SettingsInput{
		MedicationReminder: req.MedicationReminder,
		SymptomReminder:    req.SymptomReminder,
		WeeklySummary:      req.WeeklySummary,
		ReminderHour:       req.ReminderHour,
	})
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, settings)
}
