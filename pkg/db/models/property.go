package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/hauslist/hauslist-backend/pkg/enums"
)

// Property is a listing owned by a host. Billing state lives in
// PropertyBilling; visibility is gated on that record's is_active flag.
type Property struct {
	ID        uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	HostID    uuid.UUID            `gorm:"column:host_id;type:uuid;not null;index"`
	Title     string               `gorm:"type:text;not null"`
	Address   string               `gorm:"type:text;not null"`
	City      string               `gorm:"type:text;not null"`
	Region    *string              `gorm:"type:text"`
	Status    enums.PropertyStatus `gorm:"column:status;type:property_status;not null;default:'draft'"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
