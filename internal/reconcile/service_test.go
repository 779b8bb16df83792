package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/hauslist/hauslist-backend/internal/billing"
	"github.com/hauslist/hauslist-backend/internal/hosts"
	"github.com/hauslist/hauslist-backend/pkg/db/models"
	"github.com/hauslist/hauslist-backend/pkg/enums"
	pkgerrors "github.com/hauslist/hauslist-backend/pkg/errors"
)

type stubProvider struct {
	customers []*stripe.Customer
	sessions  []*stripe.CheckoutSession
	subs      []*stripe.Subscription
	subsErr   error
}

func (s *stubProvider) ListRecentCheckoutSessions(ctx context.Context, limit int64) ([]*stripe.CheckoutSession, error) {
	return s.sessions, nil
}

func (s *stubProvider) ListSubscriptionsByCustomer(ctx context.Context, customerID string, limit int64) ([]*stripe.Subscription, error) {
	if s.subsErr != nil {
		return nil, s.subsErr
	}
	return s.subs, nil
}

func (s *stubProvider) SearchCustomersByEmail(ctx context.Context, email string, limit int64) ([]*stripe.Customer, error) {
	return s.customers, nil
}

type stubBillingRepo struct {
	applied []billing.StateChange
	// unchanged makes ApplyState report that the stored state already
	// matches, the way the repository does for a repeat observation.
	unchanged bool
}

func (s *stubBillingRepo) WithTx(tx *gorm.DB) billing.Repository { return s }
func (s *stubBillingRepo) Create(ctx context.Context, record *models.PropertyBilling) error {
	return nil
}
func (s *stubBillingRepo) FindByPropertyID(ctx context.Context, propertyID uuid.UUID) (*models.PropertyBilling, error) {
	return nil, nil
}
func (s *stubBillingRepo) FindByPropertyAndHost(ctx context.Context, propertyID, hostID uuid.UUID) (*models.PropertyBilling, error) {
	return nil, nil
}
func (s *stubBillingRepo) FindBySubscriptionID(ctx context.Context, subscriptionID string) ([]models.PropertyBilling, error) {
	return nil, nil
}
func (s *stubBillingRepo) FindPendingByHost(ctx context.Context, hostID uuid.UUID) (*models.PropertyBilling, error) {
	return nil, nil
}
func (s *stubBillingRepo) CountBilledByHost(ctx context.Context, hostID uuid.UUID) (int64, error) {
	return 0, nil
}
func (s *stubBillingRepo) ListStale(ctx context.Context, limit int, lookback time.Duration) ([]models.PropertyBilling, error) {
	return nil, nil
}
func (s *stubBillingRepo) ApplyState(ctx context.Context, change billing.StateChange) (bool, error) {
	if s.unchanged {
		return false, nil
	}
	s.applied = append(s.applied, change)
	return true, nil
}

type stubHostRepo struct {
	host       *models.Host
	customerID string
}

func (s *stubHostRepo) WithTx(tx *gorm.DB) hosts.Repository { return s }
func (s *stubHostRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Host, error) {
	return s.host, nil
}
func (s *stubHostRepo) SetStripeCustomerID(ctx context.Context, hostID uuid.UUID, customerID string) error {
	s.customerID = customerID
	return nil
}

func hostWithCustomer(hostID uuid.UUID, customerID string) *models.Host {
	h := &models.Host{ID: hostID, Email: "host@example.com"}
	if customerID != "" {
		h.StripeCustomerID = &customerID
	}
	return h
}

func activeSub(propertyID uuid.UUID) *stripe.Subscription {
	return &stripe.Subscription{
		ID:       "sub_7",
		Status:   stripe.SubscriptionStatusActive,
		Metadata: map[string]string{"property_id": propertyID.String()},
	}
}

func newTestService(t *testing.T, provider *stubProvider, billingRepo *stubBillingRepo, hostRepo *stubHostRepo) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		BillingRepo: billingRepo,
		HostRepo:    hostRepo,
		Provider:    provider,
	})
	require.NoError(t, err)
	return svc
}

func TestSyncAppliesProviderState(t *testing.T) {
	hostID := uuid.New()
	propertyID := uuid.New()
	billingRepo := &stubBillingRepo{}
	hostRepo := &stubHostRepo{host: hostWithCustomer(hostID, "cus_known")}
	provider := &stubProvider{subs: []*stripe.Subscription{activeSub(propertyID)}}
	svc := newTestService(t, provider, billingRepo, hostRepo)

	result, err := svc.Sync(context.Background(), hostID)
	require.NoError(t, err)
	assert.True(t, result.Synced)
	assert.Equal(t, 1, result.Count)

	require.Len(t, billingRepo.applied, 1)
	change := billingRepo.applied[0]
	assert.Equal(t, propertyID, change.PropertyID)
	assert.Equal(t, enums.BillingStatusActive, change.Status)
	assert.True(t, change.IsActive)
	assert.Empty(t, hostRepo.customerID, "stored customer needs no re-persist")
}

func TestSyncRepeatedWithUnchangedStateIsWriteFree(t *testing.T) {
	hostID := uuid.New()
	propertyID := uuid.New()
	billingRepo := &stubBillingRepo{}
	hostRepo := &stubHostRepo{host: hostWithCustomer(hostID, "cus_known")}
	provider := &stubProvider{subs: []*stripe.Subscription{activeSub(propertyID)}}
	svc := newTestService(t, provider, billingRepo, hostRepo)

	first, err := svc.Sync(context.Background(), hostID)
	require.NoError(t, err)
	assert.True(t, first.Synced)
	assert.Equal(t, 1, first.Count)

	// Provider state has not moved, so the repository rejects the repeat
	// observation and the sweep must report zero applied records.
	billingRepo.unchanged = true
	second, err := svc.Sync(context.Background(), hostID)
	require.NoError(t, err)
	assert.False(t, second.Synced)
	assert.Equal(t, 0, second.Count)
	assert.Len(t, billingRepo.applied, 1)
}

func TestSyncResolvesCustomerByEmail(t *testing.T) {
	hostID := uuid.New()
	propertyID := uuid.New()
	billingRepo := &stubBillingRepo{}
	hostRepo := &stubHostRepo{host: hostWithCustomer(hostID, "")}
	provider := &stubProvider{
		customers: []*stripe.Customer{{ID: "cus_found"}},
		subs:      []*stripe.Subscription{activeSub(propertyID)},
	}
	svc := newTestService(t, provider, billingRepo, hostRepo)

	result, err := svc.Sync(context.Background(), hostID)
	require.NoError(t, err)
	assert.True(t, result.Synced)
	assert.Equal(t, "cus_found", hostRepo.customerID, "resolved customer must be stored")
}

func TestSyncResolvesCustomerFromCheckoutSessions(t *testing.T) {
	hostID := uuid.New()
	propertyID := uuid.New()
	billingRepo := &stubBillingRepo{}
	hostRepo := &stubHostRepo{host: hostWithCustomer(hostID, "")}
	provider := &stubProvider{
		sessions: []*stripe.CheckoutSession{
			{Customer: &stripe.Customer{ID: "cus_other"}, Metadata: map[string]string{"host_id": uuid.NewString()}},
			{Customer: &stripe.Customer{ID: "cus_mine"}, Metadata: map[string]string{"host_id": hostID.String()}},
		},
		subs: []*stripe.Subscription{activeSub(propertyID)},
	}
	svc := newTestService(t, provider, billingRepo, hostRepo)

	result, err := svc.Sync(context.Background(), hostID)
	require.NoError(t, err)
	assert.True(t, result.Synced)
	assert.Equal(t, "cus_mine", hostRepo.customerID)
}

func TestSyncNoCustomerAnywhere(t *testing.T) {
	hostID := uuid.New()
	billingRepo := &stubBillingRepo{}
	svc := newTestService(t, &stubProvider{}, billingRepo, &stubHostRepo{host: hostWithCustomer(hostID, "")})

	result, err := svc.Sync(context.Background(), hostID)
	require.NoError(t, err, "nothing to sync is not an error")
	assert.False(t, result.Synced)
	assert.Zero(t, result.Count)
	assert.Empty(t, billingRepo.applied)
}

func TestSyncSkipsSubscriptionsWithoutCorrelation(t *testing.T) {
	hostID := uuid.New()
	billingRepo := &stubBillingRepo{}
	provider := &stubProvider{
		subs: []*stripe.Subscription{{ID: "sub_orphan", Status: stripe.SubscriptionStatusActive}},
	}
	svc := newTestService(t, provider, billingRepo, &stubHostRepo{host: hostWithCustomer(hostID, "cus_known")})

	result, err := svc.Sync(context.Background(), hostID)
	require.NoError(t, err)
	assert.False(t, result.Synced)
	assert.Empty(t, billingRepo.applied)
}

func TestSyncUnknownHost(t *testing.T) {
	svc := newTestService(t, &stubProvider{}, &stubBillingRepo{}, &stubHostRepo{})

	_, err := svc.Sync(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestSyncProviderOutage(t *testing.T) {
	hostID := uuid.New()
	provider := &stubProvider{subsErr: errors.New("stripe 500")}
	svc := newTestService(t, provider, &stubBillingRepo{}, &stubHostRepo{host: hostWithCustomer(hostID, "cus_known")})

	_, err := svc.Sync(context.Background(), hostID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(err).Code())
}
