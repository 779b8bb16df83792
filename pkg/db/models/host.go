package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/hauslist/hauslist-backend/pkg/enums"
)

// Host represents the canonical identity entity owning listings.
type Host struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email            string         `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash     string         `gorm:"column:password_hash;not null"`
	FirstName        string         `gorm:"column:first_name;not null"`
	LastName         string         `gorm:"column:last_name;not null"`
	Phone            *string        `gorm:"column:phone"`
	Role             enums.HostRole `gorm:"column:role;type:host_role;not null;default:'host'"`
	StripeCustomerID *string        `gorm:"column:stripe_customer_id;index"`
	IsActive         bool           `gorm:"column:is_active;not null;default:true"`
	LastLoginAt      *time.Time     `gorm:"column:last_login_at"`
	CreatedAt        time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
