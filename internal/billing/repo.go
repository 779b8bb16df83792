package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hauslist/hauslist-backend/pkg/db/models"
	"github.com/hauslist/hauslist-backend/pkg/enums"
)

// StateChange carries one reconciled observation of provider state, ready to
// be applied to a property's billing record. EventAt is the ordering token:
// for webhooks it is the provider event timestamp, for synchronous paths the
// observation time.
type StateChange struct {
	PropertyID     uuid.UUID
	HostID         uuid.UUID
	Status         enums.BillingStatus
	IsActive       bool
	CustomerID     *string
	SubscriptionID *string
	TrialEndsAt    *time.Time
	EventAt        time.Time
}

// Repository handles property billing persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, record *models.PropertyBilling) error
	FindByPropertyID(ctx context.Context, propertyID uuid.UUID) (*models.PropertyBilling, error)
	FindByPropertyAndHost(ctx context.Context, propertyID, hostID uuid.UUID) (*models.PropertyBilling, error)
	FindBySubscriptionID(ctx context.Context, subscriptionID string) ([]models.PropertyBilling, error)
	FindPendingByHost(ctx context.Context, hostID uuid.UUID) (*models.PropertyBilling, error)
	CountBilledByHost(ctx context.Context, hostID uuid.UUID) (int64, error)
	ListStale(ctx context.Context, limit int, lookback time.Duration) ([]models.PropertyBilling, error)
	ApplyState(ctx context.Context, change StateChange) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a billing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, record *models.PropertyBilling) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) FindByPropertyID(ctx context.Context, propertyID uuid.UUID) (*models.PropertyBilling, error) {
	var record models.PropertyBilling
	err := r.db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repository) FindByPropertyAndHost(ctx context.Context, propertyID, hostID uuid.UUID) (*models.PropertyBilling, error) {
	var record models.PropertyBilling
	err := r.db.WithContext(ctx).
		Where("property_id = ? AND host_id = ?", propertyID, hostID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repository) FindBySubscriptionID(ctx context.Context, subscriptionID string) ([]models.PropertyBilling, error) {
	if subscriptionID == "" {
		return nil, nil
	}
	var records []models.PropertyBilling
	if err := r.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", subscriptionID).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) FindPendingByHost(ctx context.Context, hostID uuid.UUID) (*models.PropertyBilling, error) {
	var record models.PropertyBilling
	err := r.db.WithContext(ctx).
		Where("host_id = ? AND status = ?", hostID, enums.BillingStatusPendingPayment).
		Order("created_at ASC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repository) CountBilledByHost(ctx context.Context, hostID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PropertyBilling{}).
		Where("host_id = ? AND status NOT IN (?)", hostID, []enums.BillingStatus{
			enums.BillingStatusPendingPayment,
			enums.BillingStatusCanceled,
		}).
		Count(&count).Error
	return count, err
}

func (r *repository) ListStale(ctx context.Context, limit int, lookback time.Duration) ([]models.PropertyBilling, error) {
	if limit <= 0 {
		limit = 200
	}
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	cutoff := time.Now().UTC().Add(-lookback)
	statuses := []enums.BillingStatus{
		enums.BillingStatusTrial,
		enums.BillingStatusActive,
		enums.BillingStatusPaused,
		enums.BillingStatusCancelScheduled,
	}
	var records []models.PropertyBilling
	if err := r.db.WithContext(ctx).
		Where("status IN (?) AND updated_at < ?", statuses, cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// ApplyState writes the change as a compare-and-set on last_event_at. The
// update only lands when the stored ordering token is absent or not newer
// than the incoming one; a stale change reports applied=false and leaves the
// row untouched. Re-observing state identical to what is stored is also a
// no-op, so repeated sweeps over unchanged provider data never advance the
// ordering token. A missing row is created, scoped to the owning host.
func (r *repository) ApplyState(ctx context.Context, change StateChange) (bool, error) {
	eventAt := change.EventAt.UTC()

	existing, err := r.FindByPropertyAndHost(ctx, change.PropertyID, change.HostID)
	if err != nil {
		return false, err
	}
	if existing != nil && stateUnchanged(existing, change) {
		return false, nil
	}

	updates := map[string]any{
		"status":        change.Status,
		"is_active":     change.IsActive,
		"trial_ends_at": change.TrialEndsAt,
		"last_event_at": eventAt,
	}
	if change.CustomerID != nil {
		updates["stripe_customer_id"] = *change.CustomerID
	}
	if change.SubscriptionID != nil {
		updates["stripe_subscription_id"] = *change.SubscriptionID
	}

	res := r.db.WithContext(ctx).
		Model(&models.PropertyBilling{}).
		Where("property_id = ? AND host_id = ?", change.PropertyID, change.HostID).
		Where("last_event_at IS NULL OR last_event_at <= ?", eventAt).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	existing, err = r.FindByPropertyAndHost(ctx, change.PropertyID, change.HostID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		// Row exists with a newer ordering token: stale write, no-op.
		return false, nil
	}

	record := &models.PropertyBilling{
		ID:                   uuid.New(),
		PropertyID:           change.PropertyID,
		HostID:               change.HostID,
		StripeCustomerID:     change.CustomerID,
		StripeSubscriptionID: change.SubscriptionID,
		Status:               change.Status,
		IsActive:             change.IsActive,
		TrialEndsAt:          change.TrialEndsAt,
		LastEventAt:          &eventAt,
	}
	if err := r.Create(ctx, record); err != nil {
		return false, err
	}
	return true, nil
}

// stateUnchanged reports whether the incoming change carries exactly the
// state already stored. Nil refs on the change mean "leave as is" and do not
// count as a difference.
func stateUnchanged(existing *models.PropertyBilling, change StateChange) bool {
	if existing.Status != change.Status || existing.IsActive != change.IsActive {
		return false
	}
	if !equalTimePtr(existing.TrialEndsAt, change.TrialEndsAt) {
		return false
	}
	if change.CustomerID != nil && !equalStrPtr(existing.StripeCustomerID, change.CustomerID) {
		return false
	}
	if change.SubscriptionID != nil && !equalStrPtr(existing.StripeSubscriptionID, change.SubscriptionID) {
		return false
	}
	return true
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.UTC().Equal(b.UTC())
}

func equalStrPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
