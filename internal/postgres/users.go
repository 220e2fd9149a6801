package postgres

import (
	"context"
	"log/slog"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wellnessgrid/wellnessgrid/internal/domain"
)

// Users persists accounts.
type Users struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewUsers creates the user repository.
func NewUsers(pool *pgxpool.Pool, logger *slog.Logger) *Users {
	return &Users{pool: pool, logger: logger}
}

// Create inserts a new account. Emails are stored lowercased so lookups
// are case-insensitive. Returns domain.ErrAlreadyExists on a duplicate.
func (r *Users) Create(ctx context.Context, email, passwordHash, displayName string) (*domain.User, error) {
	query := builder.
		Insert("users").
		Columns("email", "password_hash", "display_name").
		Values(strings.ToLower(strings.TrimSpace(email)), passwordHash, displayName).
		Suffix("RETURNING id, email, password_hash, display_name, created_at, updated_at")

	user, err := getOne[domain.User](ctx, r.pool, "users", query)
	if err != nil {
		return nil, err
	}

	r.logger.Info("user created", "user_id", user.ID)
	return user, nil
}

// GetByEmail fetches an account by email for login.
func (r *Users) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := builder.
		Select("id", "email", "password_hash", "display_name", "created_at", "updated_at").
		From("users").
		Where(sq.Eq{"email": strings.ToLower(strings.TrimSpace(email))})

	return getOne[domain.User](ctx, r.pool, "users", query)
}

// GetByID fetches an account by primary key.
func (r *Users) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := builder.
		Select("id", "email", "password_hash", "display_name", "created_at", "updated_at").
		From("users").
		Where(sq.Eq{"id": id})

	return getOne[domain.User](ctx, r.pool, "users", query)
}
