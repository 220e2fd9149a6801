package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// maxBodyBytes caps request bodies. Tracker payloads are small; anything
// bigger is abuse.
const maxBodyBytes = 1 << 20

// newValidator builds the request validator with the custom vitals rule
// registered at the struct level.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateVitals, vitalsRequest{})
	return v
}

// validateVitals enforces cross-field rules a tag cannot express: at
// least one measurement present, and systolic above diastolic when both
// blood pressure values are given.
func validateVitals(sl validator.StructLevel) {
	req := sl.Current().Interface().(vitalsRequest)

	if req.Systolic == nil && req.Diastolic == nil && req.HeartRate == nil &&
		req.Temperature == nil && req.WeightKg == nil && req.GlucoseMgDl == nil {
		sl.ReportError(req.Systolic, "systolic", "Systolic", "atleastonemeasurement", "")
		return
	}

	if (req.Systolic == nil) != (req.Diastolic == nil) {
		sl.ReportError(req.Systolic, "systolic", "Systolic", "bppair", "")
		return
	}
	if req.Systolic != nil && req.Diastolic != nil && *req.Systolic <= *req.Diastolic {
		sl.ReportError(req.Systolic, "systolic", "Systolic", "bporder", "")
	}
}

// decodeAndValidate reads the JSON body into dst and validates it.
// On failure it writes the error response and returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any, logger *slog.Logger) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large", logger)
			return false
		}
		WriteError(w, http.StatusBadRequest, "invalid_body", "invalid request body", logger)
		return false
	}

	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			WriteError(w, http.StatusBadRequest, "validation_failed", validationMessage(verrs), logger)
			return false
		}
		WriteError(w, http.StatusBadRequest, "validation_failed", "request failed validation", logger)
		return false
	}
	return true
}

// validationMessage renders field errors into one readable line.
func validationMessage(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "email":
			msgs = append(msgs, field+" must be a valid email address")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		case "atleastonemeasurement":
			msgs = append(msgs, "at least one measurement is required")
		case "bppair":
			msgs = append(msgs, "systolic and diastolic must be provided together")
		case "bporder":
			msgs = append(msgs, "systolic must be greater than diastolic")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		case "url":
			msgs = append(msgs, field+" must be a valid URL")
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

// pathID parses the {id} path segment as a UUID. Writes a 400 and
// returns false when it is malformed.
func pathID(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (id uuid.UUID, ok bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_id", "invalid resource ID", logger)
		return uuid.Nil, false
	}
	return id, true
}
