package properties

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hauslist/hauslist-backend/internal/repo"
	"github.com/hauslist/hauslist-backend/pkg/db/models"
)

// Repository exposes the property lookups the billing engine depends on.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByIDAndHost(ctx context.Context, id, hostID uuid.UUID) (*models.Property, error)
}

type repository struct {
	base repo.Base
}

// NewRepository returns a properties repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: repo.NewBase(tx)}
}

func (r *repository) FindByIDAndHost(ctx context.Context, id, hostID uuid.UUID) (*models.Property, error) {
	var property models.Property
	err := r.base.DB(ctx).Where("id = ? AND host_id = ?", id, hostID).First(&property).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &property, nil
}
