// Package postgres implements the persistence layer over pgx.
//
// Queries are built with squirrel (PostgreSQL placeholders) and scanned
// with scany. Driver errors are mapped onto domain sentinels so handlers
// can branch with errors.Is without importing pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wellnessgrid/wellnessgrid/internal/domain"
)

// Querier is the subset of pgxpool.Pool / pgx.Tx used by repositories.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pagination bounds for list queries.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// ClampLimit normalizes a requested page size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// builder is the shared squirrel builder with $N placeholders.
var builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Builder returns the statement builder configured for PostgreSQL.
func Builder() sq.StatementBuilderType {
	return builder
}

// PostgreSQL error codes mapped to domain sentinels.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// mapError converts pgx/pgconn errors into domain errors.
func mapError(err error, entity string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", entity, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", entity, domain.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%s: %w", entity, domain.ErrAlreadyExists)
		case codeForeignKeyViolation:
			return fmt.Errorf("%s: %w", entity, domain.ErrNotFound)
		case codeCheckViolation:
			return fmt.Errorf("%s: %w", entity, domain.ErrValidation)
		}
	}

	return fmt.Errorf("%s: %w", entity, err)
}

// getOne builds, runs and scans a single-row query.
func getOne[T any](ctx context.Context, q Querier, entity string, query sq.Sqlizer) (*T, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: building query: %w", entity, err)
	}

	var dst T
	if err := pgxscan.Get(ctx, q, &dst, sql, args...); err != nil {
		return nil, mapError(err, entity)
	}
	return &dst, nil
}

// selectMany builds, runs and scans a multi-row query.
func selectMany[T any](ctx context.Context, q Querier, entity string, query sq.Sqlizer) ([]T, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: building query: %w", entity, err)
	}

	var dst []T
	if err := pgxscan.Select(ctx, q, &dst, sql, args...); err != nil {
		return nil, mapError(err, entity)
	}
	if dst == nil {
		dst = []T{}
	}
	return dst, nil
}

// exec builds and runs a statement, mapping the result.
// When requireRow is set, zero affected rows becomes domain.ErrNotFound,
// which keeps user-scoped UPDATE/DELETE from silently succeeding on
// somebody else's rows.
func exec(ctx context.Context, q Querier, entity string, query sq.Sqlizer, requireRow bool) error {
	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("%s: building query: %w", entity, err)
	}

	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return mapError(err, entity)
	}
	if requireRow && tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", entity, domain.ErrNotFound)
	}
	return nil
}
