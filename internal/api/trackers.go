package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/wellnessgrid/wellnessgrid/internal/postgres"
)

// trackerHandler serves the CRUD trackers: conditions, medications and
// the append-only entry logs (symptoms, moods, vitals).
type trackerHandler struct {
	conditions  *postgres.Conditions
	medications *postgres.Medications
	entries     *postgres.Entries
	validate    *validator.Validate
	logger      *slog.Logger
}

// listParams reads limit/offset and the optional from/to time range
// (RFC 3339) from the query string.
func listParams(r *http.Request) (postgres.EntryFilter, error) {
	q := r.URL.Query()
	f := postgres.EntryFilter{}

	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return f, err
		}
		f.Limit = n
	}
	if s := q.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return f, err
		}
		f.Offset = n
	}
	if s := q.Get("from"); s != "" {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return f, err
		}
		f.From = ts
	}
	if s := q.Get("to"); s != "" {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return f, err
		}
		f.To = ts
	}
	return f, nil
}

// mustUser pulls the authenticated user out of the context; the auth
// middleware guarantees it is present on protected routes.
func mustUser(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (uuid.UUID, bool) {
	userID, ok := UserID(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required", logger)
		return uuid.Nil, false
	}
	return userID, true
}

type conditionRequest struct {
	Name        string     `json:"name" validate:"required,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=2000"`
	DiagnosedAt *time.Time `json:"diagnosedAt"`
}

func (req conditionRequest) input() postgres.ConditionInput {
	return postgres.ConditionInput{
		Name:        req.Name,
		Description: req.Description,
		DiagnosedAt: req.DiagnosedAt,
	}
}

func (h *trackerHandler) createCondition(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r, h.logger)
	if !ok {
		return
	}
	var req conditionRequest
	if !decodeAndValidate(w, r, h.validate, &req, h.logger) {
		return
	}

	condition, err := h.conditions.Create(r.Context(), userID, req.input())
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusCreated, condition)
}

func (h *trackerHandler) listConditions(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r, h.logger)
	if !ok {
		return
	}
	f, err := listParams(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_query", "invalid list parameters", h.logger)
		return
	}

	conditions, err := h.conditions.List(r.Context(), userID, f.Limit, f.Offset)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, conditions)
}

func (h *trackerHandler) getCondition(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	condition, err := h.conditions.Get(r.Context(), userID, id)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, condition)
}

func (h *trackerHandler) updateCondition(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}
	var req conditionRequest
	if !decodeAndValidate(w, r, h.validate, &req, h.logger) {
		return
	}

	condition, err := h.conditions.Update(r.Context(), userID, id, req.input())
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, condition)
}

func (h *trackerHandler) deleteCondition(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.conditions.Delete(r.Context(), userID, id); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type medicationRequest struct {
	Name      string     `json:"name" validate:"required,max=200"`
	Dosage    *string    `json:"dosage" validate:"omitempty,max=100"`
	Frequency *string    `json:"frequency" validate:"omitempty,max=100"`
	Notes     *string    `json:"notes" validate:"omitempty,max=2000"`
	StartedAt *time.Time `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt"`
}

func (req medicationRequest) input() postgres.MedicationInput {
	return postgres.MedicationInput{
		Name:      req.Name,
		Dosage:    req.Dosage,
		Frequency: req.Frequency,
		Notes:     req.Notes,
		StartedAt: req.StartedAt,
		EndedAt:   req.EndedAt,
	}
}

func (h *trackerHandler) createMedication(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r, h.logger)
	if !ok {
		return
	}
	var req medicationRequest
	if !decodeAndValidate(w, r, h.validate, &req, h.logger) {
		return
	}
	if req.StartedAt != nil && req.EndedAt != nil && req.EndedAt.Before(*req.StartedAt) {
		WriteError(w, http.StatusBadRequest, "validation_failed", "endedAt must not be before startedAt", h.logger)
		return
	}

	med, err := h.medications.Create(r.Context(), userID, req.input())
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusCreated, med)
}

func (h *trackerHandler) listMedications(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r, h.logger)
	if !ok {
		return
	}
	f, err := listParams(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_query", "invalid list parameters", h.logger)
		return
	}

	meds, err := h.medications.List(r.Context(), userID, f.Limit, f.Offset)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, meds)
}

func (h *trackerHandler) getMedication(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	med, err := h.medications.Get(r.Context(), userID, id)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, med)
}

func (h *trackerHandler) updateMedication(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}
	var req medicationRequest
	if !decodeAndValidate(w, r, h.validate, &req, h.logger) {
		return
	}

	med, err := h.medications.Update(r.Context(), userID, id, req.input())
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, med)
}

func (h *trackerHandler) deleteMedication(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.medications.Delete(r.Context(), userID, id); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type symptomRequest struct {
	Symptom    string     `json:"symptom" validate:"required,max=200"`
	Severity   int        `json:"severity" validate:"required,min=1,max=10"`
	Notes      *string    `json:"notes" validate:"omitempty,max=2000"`
	RecordedAt *time.Time `json:"recordedAt"`
}

func (h *trackerHandler) createSymptom(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r, h.logger)
	if !ok {
		return
	}
	var req symptomRequest
	if !decodeAndValidate(w, r, h.validate, &req, h.logger) {
		return
	}

	entry, err := h.entries.CreateSymptom(r.Context(), userID, postgres.SymptomInput{
		Symptom:    req.Symptom,
		Severity:   req.Severity,
		Notes:      req.Notes,
		RecordedAt: recordedOrNow(req.RecordedAt),
	})
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusCreated, entry)
}

func (h *trackerHandler) listSymptoms(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r, h.logger)
	if !ok {
		return
	}
	f, err := listParams(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_query", "invalid list parameters", h.logger)
		return
	}

	entries, err := h.entries.ListSymptoms(r.Context(), userID, f)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, entries)
}

func (h *trackerHandler) deleteSymptom(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.entries.DeleteSymptom(r.Context(), userID, id); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type moodRequest struct {
	Score      int        `json:"score" validate:"required,min=1,max=10"`
	Notes      *string    `json:"notes" validate:"omitempty,max=2000"`
	RecordedAt *time.Time `json:"recordedAt"`
}

func (h *trackerHandler) createMood(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r, h.logger)
	if !ok {
		return
	}
	var req moodRequest
	if !decodeAndValidate(w, r, h.validate, &req, h.logger) {
		return
	}

	entry, err := h.entries.CreateMood(r.Context(), userID, postgres.MoodInput{
		Score:      req.Score,
		Notes:      req.Notes,
		RecordedAt: recordedOrNow(req.RecordedAt),
	})
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusCreated, entry)
}

func (h *trackerHandler) listMoods(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r, h.logger)
	if !ok {
		return
	}
	f, err := listParams(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_query", "invalid list parameters", h.logger)
		return
	}

	entries, err := h.entries.ListMoods(r.Context(), userID, f)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, entries)
}

func (h *trackerHandler) deleteMood(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.entries.DeleteMood(r.Context(), userID, id); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type vitalsRequest struct {
	Systolic    *int       `json:"systolic" validate:"omitempty,min=40,max=300"`
	Diastolic   *int       `json:"diastolic" validate:"omitempty,min=20,max=200"`
	HeartRate   *int       `json:"heartRate" validate:"omitempty,min=20,max=300"`
	Temperature *float64   `json:"temperature" validate:"omitempty,min=30,max=45"`
	WeightKg    *float64   `json:"weightKg" validate:"omitempty,gt=0,max=700"`
	GlucoseMgDl *float64   `json:"glucoseMgDl" validate:"omitempty,gt=0,max=1000"`
	Notes       *string    `json:"notes" validate:"omitempty,max=2000"`
	RecordedAt  *time.Time `json:"recordedAt"`
}

func (h *trackerHandler) createVitals(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r, h.logger)
	if !ok {
		return
	}
	var req vitalsRequest
	if !decodeAndValidate(w, r, h.validate, &req, h.logger) {
		return
	}

	entry, err := h.entries.CreateVitals(r.Context(), userID, postgres.VitalsInput{
		Systolic:    req.Systolic,
		Diastolic:   req.Diastolic,
		HeartRate:   req.HeartRate,
		Temperature: req.Temperature,
		WeightKg:    req.WeightKg,
		GlucoseMgDl: req.GlucoseMgDl,
		Notes:       req.Notes,
		RecordedAt:  recordedOrNow(req.RecordedAt),
	})
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusCreated, entry)
}

func (h *trackerHandler) listVitals(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r, h.logger)
	if !ok {
		return
	}
	f, err := listParams(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_query", "invalid list parameters", h.logger)
		return
	}

	entries, err := h.entries.ListVitals(r.Context(), userID, f)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, entries)
}

func (h *trackerHandler) deleteVitals(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.entries.DeleteVitals(r.Context(), userID, id); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func recordedOrNow(t *time.Time) time.Time {
	if t != nil {
		return *t
	}
	return time.Now().UTC()
}
