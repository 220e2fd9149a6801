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

// Conditions persists health conditions. Every query is scoped to the
// owning user so one account can never read or touch another's rows.
type Conditions struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewConditions creates the condition repository.
func NewConditions(pool *pgxpool.Pool, logger *slog.Logger) *Conditions {
	return &Conditions{pool: pool, logger: logger}
}

// ConditionInput carries the writable fields of a health condition.
type ConditionInput struct {
	Name        string
	Description *string
	DiagnosedAt *time.Time
}

const conditionColumns = "id, user_id, name, description, diagnosed_at, created_at, updated_at"

// Create inserts a condition for the user.
func (r *Conditions) Create(ctx context.Context, userID uuid.UUID, in ConditionInput) (*domain.HealthCondition, error) {
	query := builder.
		Insert("health_conditions").
		Columns("user_id", "name", "description", "diagnosed_at").
		Values(userID, in.Name, in.Description, in.DiagnosedAt).
		Suffix("RETURNING " + conditionColumns)

	return getOne[domain.HealthCondition](ctx, r.pool, "health_conditions", query)
}

// List returns the user's conditions, newest first.
func (r *Conditions) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.HealthCondition, error) {
	query := builder.
		Select(conditionColumns).
		From("health_conditions").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		Limit(uint64(ClampLimit(limit))).
		Offset(uint64(max(offset, 0)))

	return selectMany[domain.HealthCondition](ctx, r.pool, "health_conditions", query)
}

// Get fetches one condition owned by the user.
func (r *Conditions) Get(ctx context.Context, userID, id uuid.UUID) (*domain.HealthCondition, error) {
	query := builder.
		Select(conditionColumns).
		From("health_conditions").
		Where(sq.Eq{"id": id, "user_id": userID})

	return getOne[domain.HealthCondition](ctx, r.pool, "health_conditions", query)
}

// Update replaces the writable fields of a condition owned by the user.
func (r *Conditions) Update(ctx context.Context, userID, id uuid.UUID, in ConditionInput) (*domain.HealthCondition, error) {
	query := builder.
		Update("health_conditions").
		Set("name", in.Name).
		Set("description", in.Description).
		Set("diagnosed_at", in.DiagnosedAt).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id, "user_id": userID}).
		Suffix("RETURNING " + conditionColumns)

	return getOne[domain.HealthCondition](ctx, r.pool, "health_conditions", query)
}

// Delete removes a condition owned by the user.
func (r *Conditions) Delete(ctx context.Context, userID, id uuid.UUID) error {
	query := builder.
		Delete("health_conditions").
		Where(sq.Eq{"id": id, "user_id": userID})

	return exec(ctx, r.pool, "health_conditions", query, true)
}
