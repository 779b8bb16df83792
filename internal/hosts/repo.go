package hosts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hauslist/hauslist-backend/internal/repo"
	"github.com/hauslist/hauslist-backend/pkg/db/models"
)

// Repository exposes persistence helpers for host profiles.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Host, error)
	SetStripeCustomerID(ctx context.Context, hostID uuid.UUID, customerID string) error
}

type repository struct {
	base repo.Base
}

// NewRepository returns a hosts repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: repo.NewBase(tx)}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Host, error) {
	var host models.Host
	err := r.base.DB(ctx).Where("id = ?", id).First(&host).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &host, nil
}

func (r *repository) SetStripeCustomerID(ctx context.Context, hostID uuid.UUID, customerID string) error {
	return r.base.DB(ctx).
		Model(&models.Host{}).
		Where("id = ?", hostID).
		UpdateColumn("stripe_customer_id", customerID).Error
}
