package postgres

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wellnessgrid/wellnessgrid/internal/domain"
)

// Settings persists per-user notification preferences. The row is
// created lazily with defaults on first read.
type Settings struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewSettings creates the settings repository.
func NewSettings(pool *pgxpool.Pool, logger *slog.Logger) *Settings {
	return &Settings{pool: pool, logger: logger}
}

const settingsColumns = "user_id, medication_reminder, symptom_reminder, weekly_summary, reminder_hour, updated_at"

// Get returns the user's notification settings, inserting the default
// row if none exists yet.
func (r *Settings) Get(ctx context.Context, userID uuid.UUID) (*domain.NotificationSettings, error) {
	query := builder.
		Insert("notification_settings").
		Columns("user_id").
		Values(userID).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id").
		Suffix("RETURNING " + settingsColumns)

	return getOne[domain.NotificationSettings](ctx, r.pool, "notification_settings", query)
}

// SettingsInput carries the writable notification preferences.
type SettingsInput struct {
	MedicationReminder bool
	SymptomReminder    bool
	WeeklySummary      bool
	ReminderHour       int
}

// Update upserts the user's notification settings.
func (r *Settings) Update(ctx context.Context, userID uuid.UUID, in SettingsInput) (*domain.NotificationSettings, error) {
	query := builder.
		Insert("notification_settings").
		Columns("user_id", "medication_reminder", "symptom_reminder", "weekly_summary", "reminder_hour").
		Values(userID, in.MedicationReminder, in.SymptomReminder, in.WeeklySummary, in.ReminderHour).
		Suffix(`ON CONFLICT (user_id) DO UPDATE SET
			medication_reminder = EXCLUDED.medication_reminder,
			symptom_reminder = EXCLUDED.symptom_reminder,
			weekly_summary = EXCLUDED.weekly_summary,
			reminder_hour = EXCLUDED.reminder_hour,
			updated_at = now()`).
		Suffix("RETURNING " + settingsColumns)

	return getOne[domain.NotificationSettings](ctx, r.pool, "notification_settings", query)
}
