// Package domain defines the core data model for the wellnessgrid server.
//
// These are plain records: IDs, optional fields as pointers, timestamps.
// Persistence lives in internal/postgres, invariants beyond simple field
// checks live in the API validation layer.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is an account holder. PasswordHash is never serialized.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// HealthCondition is a diagnosed or self-reported condition tracked by a user.
type HealthCondition struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"userId"`
	Name        string     `json:"name"`
	Description *string    `json:"description,omitempty"`
	DiagnosedAt *time.Time `json:"diagnosedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Medication is a tracked medication with an optional dosing schedule.
type Medication struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"userId"`
	Name      string     `json:"name"`
	Dosage    *string    `json:"dosage,omitempty"`    // e.g. "10 mg"
	Frequency *string    `json:"frequency,omitempty"` // e.g. "twice daily"
	Notes     *string    `json:"notes,omitempty"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// SymptomEntry is a single symptom log. Severity is 1-10.
type SymptomEntry struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"userId"`
	Symptom    string    `json:"symptom"`
	Severity   int       `json:"severity"`
	Notes      *string   `json:"notes,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
	CreatedAt  time.Time `json:"createdAt"`
}

// MoodEntry is a single mood log. Score is 1-10.
type MoodEntry struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"userId"`
	Score      int       `json:"score"`
	Notes      *string   `json:"notes,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
	CreatedAt  time.Time `json:"createdAt"`
}

// VitalsEntry is a single vital-signs log. All measurements are optional;
// when both blood-pressure values are present, systolic must exceed diastolic.
type VitalsEntry struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"userId"`
	Systolic    *int      `json:"systolic,omitempty"`    // mmHg
	Diastolic   *int      `json:"diastolic,omitempty"`   // mmHg
	HeartRate   *int      `json:"heartRate,omitempty"`   // bpm
	Temperature *float64  `json:"temperature,omitempty"` // °C
	WeightKg    *float64  `json:"weightKg,omitempty"`
	GlucoseMgDl *float64  `json:"glucoseMgDl,omitempty"`
	Notes       *string   `json:"notes,omitempty"`
	RecordedAt  time.Time `json:"recordedAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Resource is a curated wellness resource (article, tool, hotline) shown on
// the dashboard. Resources are global, not user-owned.
type Resource struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Category    string    `json:"category"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NotificationSettings holds per-user reminder preferences.
type NotificationSettings struct {
	UserID             uuid.UUID `json:"userId"`
	MedicationReminder bool      `json:"medicationReminder"`
	SymptomReminder    bool      `json:"symptomReminder"`
	WeeklySummary      bool      `json:"weeklySummary"`
	ReminderHour       int       `json:"reminderHour"` // 0-23, local time
	UpdatedAt          time.Time `json:"updatedAt"`
}

// ChatSession is a conversation with the assistant.
type ChatSession struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"userId"`
	Title        string    `json:"title"`
	MessageCount int       `json:"messageCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Message roles for chat history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single turn in a chat session.
type ChatMessage struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"sessionId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
