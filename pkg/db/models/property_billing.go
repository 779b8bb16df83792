package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/hauslist/hauslist-backend/pkg/enums"
)

// PropertyBilling holds the internal billing state for one listed property.
// last_event_at is the ordering token: writes carrying an older token are
// rejected by the repository's conditional update.
type PropertyBilling struct {
	ID                   uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PropertyID           uuid.UUID           `gorm:"column:property_id;type:uuid;not null;uniqueIndex"`
	HostID               uuid.UUID           `gorm:"column:host_id;type:uuid;not null;index"`
	StripeCustomerID     *string             `gorm:"column:stripe_customer_id;index"`
	StripeSubscriptionID *string             `gorm:"column:stripe_subscription_id;index"`
	Status               enums.BillingStatus `gorm:"column:status;type:billing_status;not null;default:'pending_payment'"`
	IsActive             bool                `gorm:"column:is_active;not null;default:false"`
	TrialEndsAt          *time.Time          `gorm:"column:trial_ends_at"`
	LastEventAt          *time.Time          `gorm:"column:last_event_at"`
	CreatedAt            time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
