package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hauslist/hauslist-backend/pkg/db/models"
)

// Ledger records which provider events have already been applied, making
// webhook processing at-most-once across restarts and instances.
type Ledger interface {
	WithTx(tx *gorm.DB) Ledger
	Record(ctx context.Context, eventID, eventType string) (bool, error)
	Seen(ctx context.Context, eventID string) (bool, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type ledger struct {
	db *gorm.DB
}

// NewLedger returns an event ledger bound to the provided database.
func NewLedger(db *gorm.DB) Ledger {
	return &ledger{db: db}
}

func (l *ledger) WithTx(tx *gorm.DB) Ledger {
	if tx == nil {
		return l
	}
	return &ledger{db: tx}
}

// Record inserts the event id, reporting false when it was already present.
// The insert rides the caller's transaction so a rolled-back state write also
// rolls back the ledger entry and the redelivery can retry cleanly.
func (l *ledger) Record(ctx context.Context, eventID, eventType string) (bool, error) {
	entry := models.ProcessedEvent{
		ID:          uuid.New(),
		EventID:     eventID,
		EventType:   eventType,
		ProcessedAt: time.Now().UTC(),
	}
	res := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(&entry)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (l *ledger) Seen(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := l.db.WithContext(ctx).
		Model(&models.ProcessedEvent{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	return count > 0, err
}

// PurgeOlderThan deletes entries processed before the cutoff. Retention must
// stay comfortably longer than the provider's redelivery window.
func (l *ledger) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := l.db.WithContext(ctx).
		Where("processed_at < ?", cutoff).
		Delete(&models.ProcessedEvent{})
	return res.RowsAffected, res.Error
}
