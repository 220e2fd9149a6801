package postgres

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellnessgrid/wellnessgrid/internal/domain"
	"github.com/wellnessgrid/wellnessgrid/internal/log"
	"github.com/wellnessgrid/wellnessgrid/internal/testutil"
)

func setup(t *testing.T) (*testutil.TestDB, context.Context) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	db, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)
	return db, context.Background()
}

func createUser(t *testing.T, db *testutil.TestDB, email string) *domain.User {
	t.Helper()
	users := NewUsers(db.Pool, log.NewNop())
	u, err := users.Create(context.Background(), email, "$2a$10$fakehashfakehashfakehash", "Test User")
	require.NoError(t, err)
	return u
}

func ptr[T any](v T) *T { return &v }

func TestUsers(t *testing.T) {
	db, ctx := setup(t)
	users := NewUsers(db.Pool, log.NewNop())

	t.Run("create normalizes email", func(t *testing.T) {
		u, err := users.Create(ctx, "Mixed.Case@Example.COM", "hash", "Mixed")
		require.NoError(t, err)
		assert.Equal(t, "mixed.case@example.com", u.Email)
		assert.NotZero(t, u.ID)
		assert.False(t, u.CreatedAt.IsZero())
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		_, err := users.Create(ctx, "dup@example.com", "hash", "First")
		require.NoError(t, err)
		_, err = users.Create(ctx, "DUP@example.com", "hash", "Second")
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("lookup", func(t *testing.T) {
		u, err := users.Create(ctx, "lookup@example.com", "hash", "Look Up")
		require.NoError(t, err)

		byEmail, err := users.GetByEmail(ctx, "lookup@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byEmail.ID)

		byID, err := users.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "lookup@example.com", byID.Email)

		_, err = users.GetByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestConditions(t *testing.T) {
	db, ctx := setup(t)
	conditions := NewConditions(db.Pool, log.NewNop())
	owner := createUser(t, db, "owner@example.com")
	other := createUser(t, db, "other@example.com")

	diagnosed := time.Date(2023, 4, 12, 0, 0, 0, 0, time.UTC)
	created, err := conditions.Create(ctx, owner.ID, ConditionInput{
		Name:        "Asthma",
		Description: ptr("childhood onset"),
		DiagnosedAt: &diagnosed,
	})
	require.NoError(t, err)
	assert.Equal(t, owner.ID, created.UserID)
	require.NotNil(t, created.DiagnosedAt)
	assert.True(t, created.DiagnosedAt.Equal(diagnosed))

	t.Run("update bumps updated_at", func(t *testing.T) {
		updated, err := conditions.Update(ctx, owner.ID, created.ID, ConditionInput{Name: "Mild asthma"})
		require.NoError(t, err)
		assert.Equal(t, "Mild asthma", updated.Name)
		assert.True(t, updated.UpdatedAt.After(created.UpdatedAt) || updated.UpdatedAt.Equal(created.UpdatedAt))
		// Description was not in the input, so it is cleared.
		assert.Nil(t, updated.Description)
	})

	t.Run("scoped to owner", func(t *testing.T) {
		_, err := conditions.Get(ctx, other.ID, created.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = conditions.Update(ctx, other.ID, created.ID, ConditionInput{Name: "hijack"})
		assert.ErrorIs(t, err, domain.ErrNotFound)

		err = conditions.Delete(ctx, other.ID, created.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		listed, err := conditions.List(ctx, other.ID, 0, 0)
		require.NoError(t, err)
		assert.Empty(t, listed)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, conditions.Delete(ctx, owner.ID, created.ID))
		assert.ErrorIs(t, conditions.Delete(ctx, owner.ID, created.ID), domain.ErrNotFound)
	})
}

func TestEntries(t *testing.T) {
	db, ctx := setup(t)
	entries := NewEntries(db.Pool, log.NewNop())
	user := createUser(t, db, "entries@example.com")

	t.Run("symptoms ordered newest first with range filter", func(t *testing.T) {
		base := time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)
		for i := 0; i < 3; i++ {
			_, err := entries.CreateSymptom(ctx, user.ID, SymptomInput{
				Symptom:    "headache",
				Severity:   4 + i,
				RecordedAt: base.AddDate(0, 0, i),
			})
			require.NoError(t, err)
		}

		all, err := entries.ListSymptoms(ctx, user.ID, EntryFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, 6, all[0].Severity) // newest first

		window, err := entries.ListSymptoms(ctx, user.ID, EntryFilter{
			From: base.AddDate(0, 0, 1),
			To:   base.AddDate(0, 0, 1),
		})
		require.NoError(t, err)
		require.Len(t, window, 1)
		assert.Equal(t, 5, window[0].Severity)
	})

	t.Run("mood score constraint", func(t *testing.T) {
		_, err := entries.CreateMood(ctx, user.ID, MoodInput{Score: 7, RecordedAt: time.Now()})
		require.NoError(t, err)

		_, err = entries.CreateMood(ctx, user.ID, MoodInput{Score: 11, RecordedAt: time.Now()})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("vitals sparse measurements", func(t *testing.T) {
		v, err := entries.CreateVitals(ctx, user.ID, VitalsInput{
			HeartRate:  ptr(62),
			RecordedAt: time.Now(),
		})
		require.NoError(t, err)
		require.NotNil(t, v.HeartRate)
		assert.Equal(t, 62, *v.HeartRate)
		assert.Nil(t, v.Systolic)
		assert.Nil(t, v.GlucoseMgDl)
	})

	t.Run("vitals blood pressure check", func(t *testing.T) {
		_, err := entries.CreateVitals(ctx, user.ID, VitalsInput{
			Systolic:   ptr(70),
			Diastolic:  ptr(110),
			RecordedAt: time.Now(),
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("delete scoped to owner", func(t *testing.T) {
		other := createUser(t, db, "entries-other@example.com")
		m, err := entries.CreateMood(ctx, user.ID, MoodInput{Score: 5, RecordedAt: time.Now()})
		require.NoError(t, err)

		assert.ErrorIs(t, entries.DeleteMood(ctx, other.ID, m.ID), domain.ErrNotFound)
		assert.NoError(t, entries.DeleteMood(ctx, user.ID, m.ID))
	})
}

func TestResources(t *testing.T) {
	db, ctx := setup(t)
	resources := NewResources(db.Pool, log.NewNop())

	created, err := resources.Create(ctx, ResourceInput{
		Title:    "Sleep hygiene basics",
		URL:      "https://example.org/sleep",
		Category: "sleep",
	})
	require.NoError(t, err)

	t.Run("duplicate url conflicts", func(t *testing.T) {
		_, err := resources.Create(ctx, ResourceInput{
			Title:    "Sleep again",
			URL:      "https://example.org/sleep",
			Category: "sleep",
		})
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("category filter", func(t *testing.T) {
		_, err := resources.Create(ctx, ResourceInput{
			Title:    "Stretching",
			URL:      "https://example.org/stretch",
			Category: "exercise",
		})
		require.NoError(t, err)

		sleep, err := resources.List(ctx, "sleep", 0, 0)
		require.NoError(t, err)
		require.Len(t, sleep, 1)
		assert.Equal(t, created.ID, sleep[0].ID)

		all, err := resources.List(ctx, "", 0, 0)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestSettings(t *testing.T) {
	db, ctx := setup(t)
	settings := NewSettings(db.Pool, log.NewNop())
	user := createUser(t, db, "settings@example.com")

	t.Run("get creates defaults", func(t *testing.T) {
		s, err := settings.Get(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, 9, s.ReminderHour)
		assert.False(t, s.MedicationReminder)
	})

	t.Run("update round trip", func(t *testing.T) {
		updated, err := settings.Update(ctx, user.ID, SettingsInput{
			MedicationReminder: true,
			WeeklySummary:      true,
			ReminderHour:       20,
		})
		require.NoError(t, err)
		assert.True(t, updated.MedicationReminder)
		assert.Equal(t, 20, updated.ReminderHour)

		again, err := settings.Get(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, 20, again.ReminderHour)
	})
}

func TestSessions(t *testing.T) {
	db, ctx := setup(t)
	sessions := NewSessions(db.Pool, log.NewNop())
	user := createUser(t, db, "sessions@example.com")

	t.Run("title derives from first question", func(t *testing.T) {
		s, err := sessions.Create(ctx, user.ID, "short question")
		require.NoError(t, err)
		assert.Equal(t, "short question", s.Title)

		long, err := sessions.Create(ctx, user.ID, strings.Repeat("q", 200))
		require.NoError(t, err)
		assert.Equal(t, 80, len([]rune(long.Title)))
		assert.True(t, strings.HasSuffix(long.Title, "…"))
	})

	t.Run("messages and count", func(t *testing.T) {
		s, err := sessions.Create(ctx, user.ID, "about hydration")
		require.NoError(t, err)
		assert.Zero(t, s.MessageCount)

		_, err = sessions.AppendMessage(ctx, user.ID, s.ID, domain.RoleUser, "how much water per day?")
		require.NoError(t, err)
		_, err = sessions.AppendMessage(ctx, user.ID, s.ID, domain.RoleAssistant, "Most adults do well with around two liters.")
		require.NoError(t, err)

		got, err := sessions.Get(ctx, user.ID, s.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.MessageCount)

		msgs, err := sessions.Messages(ctx, user.ID, s.ID, 0, 0)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, domain.RoleUser, msgs[0].Role)
		assert.Equal(t, domain.RoleAssistant, msgs[1].Role)

		limited, err := sessions.Messages(ctx, user.ID, s.ID, 1, 0)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})

	t.Run("long session tail and paging", func(t *testing.T) {
		s, err := sessions.Create(ctx, user.ID, "long conversation")
		require.NoError(t, err)

		// Past the default page size, the newest turns must still reach
		// the generator and the transcript must stay pageable.
		const total = 55
		for i := 1; i <= total; i++ {
			role := domain.RoleUser
			if i%2 == 0 {
				role = domain.RoleAssistant
			}
			_, err := sessions.AppendMessage(ctx, user.ID, s.ID, role, fmt.Sprintf("turn %d", i))
			require.NoError(t, err)
		}

		tail, err := sessions.RecentMessages(ctx, user.ID, s.ID, 10)
		require.NoError(t, err)
		require.Len(t, tail, 10)
		assert.Equal(t, "turn 46", tail[0].Content)
		assert.Equal(t, "turn 55", tail[9].Content)
		for i := 1; i < len(tail); i++ {
			assert.False(t, tail[i].CreatedAt.Before(tail[i-1].CreatedAt))
		}

		page, err := sessions.Messages(ctx, user.ID, s.ID, 0, 50)
		require.NoError(t, err)
		require.Len(t, page, total-50)
		assert.Equal(t, "turn 51", page[0].Content)
	})

	t.Run("append scoped to owner", func(t *testing.T) {
		other := createUser(t, db, "sessions-other@example.com")
		s, err := sessions.Create(ctx, user.ID, "private")
		require.NoError(t, err)

		_, err = sessions.AppendMessage(ctx, other.ID, s.ID, domain.RoleUser, "intrusion")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = sessions.Messages(ctx, other.ID, s.ID, 0, 0)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = sessions.RecentMessages(ctx, other.ID, s.ID, 10)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("delete cascades messages", func(t *testing.T) {
		s, err := sessions.Create(ctx, user.ID, "doomed")
		require.NoError(t, err)
		_, err = sessions.AppendMessage(ctx, user.ID, s.ID, domain.RoleUser, "hello")
		require.NoError(t, err)

		require.NoError(t, sessions.Delete(ctx, user.ID, s.ID))
		_, err = sessions.Get(ctx, user.ID, s.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
