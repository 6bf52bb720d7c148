package models

import (
	"time"

	"github.com/google/uuid"
)

// ActivityLog is a best-effort audit row for staff actions. Writes are
// never allowed to fail the primary operation.
type ActivityLog struct {
	ID         int64      `json:"id" db:"id"`
	UserID     *uuid.UUID `json:"user_id" db:"user_id"`
	Action     string     `json:"action" db:"action"`
	EntityType string     `json:"entity_type" db:"entity_type"`
	EntityID   *string    `json:"entity_id" db:"entity_id"`
	Details    *string    `json:"details" db:"details"` // JSON blob
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}

func (ActivityLog) CreateTableSQL() string {
	return `
	CREATE TABLE IF NOT EXISTS activity_logs (
		id BIGSERIAL PRIMARY KEY,
		user_id UUID REFERENCES users(id) ON DELETE SET NULL,
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT,
		details JSONB,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT now()
	);`
}
