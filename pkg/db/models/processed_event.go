package models

import (
	"time"

	"github.com/google/uuid"
)

// ProcessedEvent records a provider event id that has already been applied.
// The unique index is what makes webhook processing at-most-once across
// restarts and concurrent instances.
type ProcessedEvent struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	EventID     string    `gorm:"column:event_id;not null;uniqueIndex"`
	EventType   string    `gorm:"column:event_type;not null"`
	ProcessedAt time.Time `gorm:"column:processed_at;not null;default:now()"`
}
