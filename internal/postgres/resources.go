package postgres

import (
	"context"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wellnessgrid/wellnessgrid/internal/domain"
)

// Resources persists the curated resource catalog. Resources are global:
// reads are open to any authenticated user, writes happen through the CLI.
type Resources struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewResources creates the resource repository.
func NewResources(pool *pgxpool.Pool, logger *slog.Logger) *Resources {
	return &Resources{pool: pool, logger: logger}
}

// ResourceInput carries the writable fields of a resource.
type ResourceInput struct {
	Title       string
	URL         string
	Category    string
	Description *string
}

const resourceColumns = "id, title, url, category, description, created_at"

// Create inserts a resource. The URL is unique; a duplicate returns
// domain.ErrAlreadyExists.
func (r *Resources) Create(ctx context.Context, in ResourceInput) (*domain.Resource, error) {
	query := builder.
		Insert("resources").
		Columns("title", "url", "category", "description").
		Values(in.Title, in.URL, in.Category, in.Description).
		Suffix("RETURNING " + resourceColumns)

	return getOne[domain.Resource](ctx, r.pool, "resources", query)
}

// List returns resources, optionally filtered by category, newest first.
func (r *Resources) List(ctx context.Context, category string, limit, offset int) ([]domain.Resource, error) {
	query := builder.
		Select(resourceColumns).
		From("resources").
		OrderBy("created_at DESC").
		Limit(uint64(ClampLimit(limit))).
		Offset(uint64(max(offset, 0)))
	if category != "" {
		query = query.Where(sq.Eq{"category": category})
	}

	return selectMany[domain.Resource](ctx, r.pool, "resources", query)
}

// Get fetches one resource.
func (r *Resources) Get(ctx context.Context, id uuid.UUID) (*domain.Resource, error) {
	query := builder.
		Select(resourceColumns).
		From("resources").
		Where(sq.Eq{"id": id})

	return getOne[domain.Resource](ctx, r.pool, "resources", query)
}

// Delete removes a resource.
func (r *Resources) Delete(ctx context.Context, id uuid.UUID) error {
	query := builder.
		Delete("resources").
		Where(sq.Eq{"id": id})

	return exec(ctx, r.pool, "resources", query, true)
}
