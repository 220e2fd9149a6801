package postgres

import (
	"context"
	"log/slog"
	"slices"
	"unicode/utf8"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wellnessgrid/wellnessgrid/internal/domain"
)

// Sessions persists chat sessions and their messages. The first user
// message in a session doubles as its title.
type Sessions struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewSessions creates the chat-session repository.
func NewSessions(pool *pgxpool.Pool, logger *slog.Logger) *Sessions {
	return &Sessions{pool: pool, logger: logger}
}

const sessionColumns = "id, user_id, title, created_at, updated_at"

// maxTitleLen caps the derived session title.
const maxTitleLen = 80

// sessionTitle derives a session title from the first question.
func sessionTitle(question string) string {
	if utf8.RuneCountInString(question) <= maxTitleLen {
		return question
	}
	runes := []rune(question)
	return string(runes[:maxTitleLen-1]) + "…"
}

// Create starts a new session titled after the opening question.
func (r *Sessions) Create(ctx context.Context, userID uuid.UUID, question string) (*domain.ChatSession, error) {
	query := builder.
		Insert("chat_sessions").
		Columns("user_id", "title").
		Values(userID, sessionTitle(question)).
		Suffix("RETURNING " + sessionColumns)

	session, err := getOne[domain.ChatSession](ctx, r.pool, "chat_sessions", query)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("chat session created", "session_id", session.ID, "user_id", userID)
	return session, nil
}

// Get fetches one session owned by the user, including its message count.
func (r *Sessions) Get(ctx context.Context, userID, id uuid.UUID) (*domain.ChatSession, error) {
	query := builder.
		Select("s.id", "s.user_id", "s.title", "s.created_at", "s.updated_at").
		Column("(SELECT count(*) FROM chat_messages m WHERE m.session_id = s.id) AS message_count").
		From("chat_sessions s").
		Where(sq.Eq{"s.id": id, "s.user_id": userID})

	return getOne[domain.ChatSession](ctx, r.pool, "chat_sessions", query)
}

// List returns the user's sessions, most recently active first.
func (r *Sessions) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.ChatSession, error) {
	query := builder.
		Select("s.id", "s.user_id", "s.title", "s.created_at", "s.updated_at").
		Column("(SELECT count(*) FROM chat_messages m WHERE m.session_id = s.id) AS message_count").
		From("chat_sessions s").
		Where(sq.Eq{"s.user_id": userID}).
		OrderBy("s.updated_at DESC").
		Limit(uint64(ClampLimit(limit))).
		Offset(uint64(max(offset, 0)))

	return selectMany[domain.ChatSession](ctx, r.pool, "chat_sessions", query)
}

// Delete removes a session owned by the user; messages cascade.
func (r *Sessions) Delete(ctx context.Context, userID, id uuid.UUID) error {
	query := builder.
		Delete("chat_sessions").
		Where(sq.Eq{"id": id, "user_id": userID})

	return exec(ctx, r.pool, "chat_sessions", query, true)
}

const messageColumns = "id, session_id, role, content, created_at"

// AppendMessage stores one turn and bumps the session's updated_at so
// List keeps the active conversation on top. Both writes share a tx.
func (r *Sessions) AppendMessage(ctx context.Context, userID, sessionID uuid.UUID, role, content string) (*domain.ChatMessage, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, mapError(err, "chat_messages")
	}
	defer tx.Rollback(ctx)

	// Ownership check doubles as the touch.
	touch := builder.
		Update("chat_sessions").
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": sessionID, "user_id": userID})
	if err := exec(ctx, tx, "chat_sessions", touch, true); err != nil {
		return nil, err
	}

	insert := builder.
		Insert("chat_messages").
		Columns("session_id", "role", "content").
		Values(sessionID, role, content).
		Suffix("RETURNING " + messageColumns)

	msg, err := getOne[domain.ChatMessage](ctx, tx, "chat_messages", insert)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapError(err, "chat_messages")
	}
	return msg, nil
}

// Messages returns a page of a session's messages in chronological
// order, after verifying the session belongs to the user.
func (r *Sessions) Messages(ctx context.Context, userID, sessionID uuid.UUID, limit, offset int) ([]domain.ChatMessage, error) {
	if _, err := r.Get(ctx, userID, sessionID); err != nil {
		return nil, err
	}

	query := builder.
		Select(messageColumns).
		From("chat_messages").
		Where(sq.Eq{"session_id": sessionID}).
		OrderBy("created_at ASC").
		Limit(uint64(ClampLimit(limit))).
		Offset(uint64(max(offset, 0)))

	return selectMany[domain.ChatMessage](ctx, r.pool, "chat_messages", query)
}

// RecentMessages returns the last n messages of a session in
// chronological order. This is the conversation tail replayed to the
// generator, so it must see the newest turns no matter how long the
// session has grown.
func (r *Sessions) RecentMessages(ctx context.Context, userID, sessionID uuid.UUID, n int) ([]domain.ChatMessage, error) {
	if _, err := r.Get(ctx, userID, sessionID); err != nil {
		return nil, err
	}

	query := builder.
		Select(messageColumns).
		From("chat_messages").
		Where(sq.Eq{"session_id": sessionID}).
		OrderBy("created_at DESC").
		Limit(uint64(ClampLimit(n)))

	messages, err := selectMany[domain.ChatMessage](ctx, r.pool, "chat_messages", query)
	if err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	return messages, nil
}
