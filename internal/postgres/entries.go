package postgres

import (
	"context"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wellnessgrid/wellnessgrid/internal/domain"
)

// Entries persists the append-mostly tracker logs: symptoms, moods and
// vitals. Entries support create, list (with an optional time range) and
// delete; there is no update, a wrong entry is deleted and re-logged.
type Entries struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewEntries creates the tracker-entry repository.
func NewEntries(pool *pgxpool.Pool, logger *slog.Logger) *Entries {
	return &Entries{pool: pool, logger: logger}
}

// EntryFilter bounds a list query. Zero times mean unbounded.
type EntryFilter struct {
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

func (f EntryFilter) apply(query sq.SelectBuilder) sq.SelectBuilder {
	if !f.From.IsZero() {
		query = query.Where(sq.GtOrEq{"recorded_at": f.From})
	}
	if !f.To.IsZero() {
		query = query.Where(sq.LtOrEq{"recorded_at": f.To})
	}
	return query.
		OrderBy("recorded_at DESC").
		Limit(uint64(ClampLimit(f.Limit))).
		Offset(uint64(max(f.Offset, 0)))
}

// SymptomInput carries the writable fields of a symptom entry.
type SymptomInput struct {
	Symptom    string
	Severity   int
	Notes      *string
	RecordedAt time.Time
}

const symptomColumns = "id, user_id, symptom, severity, notes, recorded_at, created_at"

// CreateSymptom logs a symptom entry for the user.
func (r *Entries) CreateSymptom(ctx context.Context, userID uuid.UUID, in SymptomInput) (*domain.SymptomEntry, error) {
	query := builder.
		Insert("symptom_entries").
		Columns("user_id", "symptom", "severity", "notes", "recorded_at").
		Values(userID, in.Symptom, in.Severity, in.Notes, in.RecordedAt).
		Suffix("RETURNING " + symptomColumns)

	return getOne[domain.SymptomEntry](ctx, r.pool, "symptom_entries", query)
}

// ListSymptoms returns the user's symptom entries, newest first.
func (r *Entries) ListSymptoms(ctx context.Context, userID uuid.UUID, f EntryFilter) ([]domain.SymptomEntry, error) {
	query := f.apply(builder.
		Select(symptomColumns).
		From("symptom_entries").
		Where(sq.Eq{"user_id": userID}))

	return selectMany[domain.SymptomEntry](ctx, r.pool, "symptom_entries", query)
}

// DeleteSymptom removes a symptom entry owned by the user.
func (r *Entries) DeleteSymptom(ctx context.Context, userID, id uuid.UUID) error {
	query := builder.
		Delete("symptom_entries").
		Where(sq.Eq{"id": id, "user_id": userID})

	return exec(ctx, r.pool, "symptom_entries", query, true)
}

// MoodInput carries the writable fields of a mood entry.
type MoodInput struct {
	Score      int
	Notes      *string
	RecordedAt time.Time
}

const moodColumns = "id, user_id, score, notes, recorded_at, created_at"

// CreateMood logs a mood entry for the user.
func (r *Entries) CreateMood(ctx context.Context, userID uuid.UUID, in MoodInput) (*domain.MoodEntry, error) {
	query := builder.
		Insert("mood_entries").
		Columns("user_id", "score", "notes", "recorded_at").
		Values(userID, in.Score, in.Notes, in.RecordedAt).
		Suffix("RETURNING " + moodColumns)

	return getOne[domain.MoodEntry](ctx, r.pool, "mood_entries", query)
}

// ListMoods returns the user's mood entries, newest first.
func (r *Entries) ListMoods(ctx context.Context, userID uuid.UUID, f EntryFilter) ([]domain.MoodEntry, error) {
	query := f.apply(builder.
		Select(moodColumns).
		From("mood_entries").
		Where(sq.Eq{"user_id": userID}))

	return selectMany[domain.MoodEntry](ctx, r.pool, "mood_entries", query)
}

// DeleteMood removes a mood entry owned by the user.
func (r *Entries) DeleteMood(ctx context.Context, userID, id uuid.UUID) error {
	query := builder.
		Delete("mood_entries").
		Where(sq.Eq{"id": id, "user_id": userID})

	return exec(ctx, r.pool, "mood_entries", query, true)
}

// VitalsInput carries the writable fields of a vitals entry.
type VitalsInput struct {
	Systolic    *int
	Diastolic   *int
	HeartRate   *int
	Temperature *float64
	WeightKg    *float64
	GlucoseMgDl *float64
	Notes       *string
	RecordedAt  time.Time
}

const vitalsColumns = "id, user_id, systolic, diastolic, heart_rate, temperature, weight_kg, glucose_mg_dl, notes, recorded_at, created_at"

// CreateVitals logs a vitals entry for the user. The blood-pressure
// ordering check also lives in the schema, so a bad pair surfaces as
// domain.ErrValidation even if it slips past request validation.
func (r *Entries) CreateVitals(ctx context.Context, userID uuid.UUID, in VitalsInput) (*domain.VitalsEntry, error) {
	query := builder.
		Insert("vitals_entries").
		Columns("user_id", "systolic", "diastolic", "heart_rate", "temperature", "weight_kg", "glucose_mg_dl", "notes", "recorded_at").
		Values(userID, in.Systolic, in.Diastolic, in.HeartRate, in.Temperature, in.WeightKg, in.GlucoseMgDl, in.Notes, in.RecordedAt).
		Suffix("RETURNING " + vitalsColumns)

	return getOne[domain.VitalsEntry](ctx, r.pool, "vitals_entries", query)
}

// ListVitals returns the user's vitals entries, newest first.
func (r *Entries) ListVitals(ctx context.Context, userID uuid.UUID, f EntryFilter) ([]domain.VitalsEntry, error) {
	query := f.apply(builder.
		Select(vitalsColumns).
		From("vitals_entries").
		Where(sq.Eq{"user_id": userID}))

	return selectMany[domain.VitalsEntry](ctx, r.pool, "vitals_entries", query)
}

// DeleteVitals removes a vitals entry owned by the user.
func (r *Entries) DeleteVitals(ctx context.Context, userID, id uuid.UUID) error {
	query := builder.
		Delete("vitals_entries").
		Where(sq.Eq{"id": id, "user_id": userID})

	return exec(ctx, r.pool, "vitals_entries", query, true)
}
