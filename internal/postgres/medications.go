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

// Medications persists medication records, scoped to the owning user.
type Medications struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewMedications creates the medication repository.
func NewMedications(pool *pgxpool.Pool, logger *slog.Logger) *Medications {
	return &Medications{pool: pool, logger: logger}
}

// MedicationInput carries the writable fields of a medication.
type MedicationInput struct {
	Name      string
	Dosage    *string
	Frequency *string
	Notes     *string
	StartedAt *time.Time
	EndedAt   *time.Time
}

const medicationColumns = "id, user_id, name, dosage, frequency, notes, started_at, ended_at, created_at, updated_at"

// Create inserts a medication for the user.
func (r *Medications) Create(ctx context.Context, userID uuid.UUID, in MedicationInput) (*domain.Medication, error) {
	query := builder.
		Insert("medications").
		Columns("user_id", "name", "dosage", "frequency", "notes", "started_at", "ended_at").
		Values(userID, in.Name, in.Dosage, in.Frequency, in.Notes, in.StartedAt, in.EndedAt).
		Suffix("RETURNING " + medicationColumns)

	return getOne[domain.Medication](ctx, r.pool, "medications", query)
}

// List returns the user's medications, newest first.
func (r *Medications) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Medication, error) {
	query := builder.
		Select(medicationColumns).
		From("medications").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		Limit(uint64(ClampLimit(limit))).
		Offset(uint64(max(offset, 0)))

	return selectMany[domain.Medication](ctx, r.pool, "medications", query)
}

// Get fetches one medication owned by the user.
func (r *Medications) Get(ctx context.Context, userID, id uuid.UUID) (*domain.Medication, error) {
	query := builder.
		Select(medicationColumns).
		From("medications").
		Where(sq.Eq{"id": id, "user_id": userID})

	return getOne[domain.Medication](ctx, r.pool, "medications", query)
}

// Update replaces the writable fields of a medication owned by the user.
func (r *Medications) Update(ctx context.Context, userID, id uuid.UUID, in MedicationInput) (*domain.Medication, error) {
	query := builder.
		Update("medications").
		Set("name", in.Name).
		Set("dosage", in.Dosage).
		Set("frequency", in.Frequency).
		Set("notes", in.Notes).
		Set("started_at", in.StartedAt).
		Set("ended_at", in.EndedAt).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id, "user_id": userID}).
		Suffix("RETURNING " + medicationColumns)

	return getOne[domain.Medication](ctx, r.pool, "medications", query)
}

// Delete removes a medication owned by the user.
func (r *Medications) Delete(ctx context.Context, userID, id uuid.UUID) error {
	query := builder.
		Delete("medications").
		Where(sq.Eq{"id": id, "user_id": userID})

	return exec(ctx, r.pool, "medications", query, true)
}
