package subscriptions

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
	"github.com/hauslist/hauslist-backend/internal/properties"
	"github.com/hauslist/hauslist-backend/pkg/config"
	"github.com/hauslist/hauslist-backend/pkg/db/models"
	"github.com/hauslist/hauslist-backend/pkg/enums"
	pkgerrors "github.com/hauslist/hauslist-backend/pkg/errors"
)

type stubBillingRepo struct {
	pending     *models.PropertyBilling
	record      *models.PropertyBilling
	billedCount int64
	applied     []billing.StateChange
	applyErr    error
}

func (s *stubBillingRepo) WithTx(tx *gorm.DB) billing.Repository { return s }
func (s *stubBillingRepo) Create(ctx context.Context, record *models.PropertyBilling) error {
	return nil
}
func (s *stubBillingRepo) FindByPropertyID(ctx context.Context, propertyID uuid.UUID) (*models.PropertyBilling, error) {
	return s.record, nil
}
func (s *stubBillingRepo) FindByPropertyAndHost(ctx context.Context, propertyID, hostID uuid.UUID) (*models.PropertyBilling, error) {
	if s.record != nil && s.record.HostID == hostID {
		return s.record, nil
	}
	return nil, nil
}
func (s *stubBillingRepo) FindBySubscriptionID(ctx context.Context, subscriptionID string) ([]models.PropertyBilling, error) {
	return nil, nil
}
func (s *stubBillingRepo) FindPendingByHost(ctx context.Context, hostID uuid.UUID) (*models.PropertyBilling, error) {
	return s.pending, nil
}
func (s *stubBillingRepo) CountBilledByHost(ctx context.Context, hostID uuid.UUID) (int64, error) {
	return s.billedCount, nil
}
func (s *stubBillingRepo) ListStale(ctx context.Context, limit int, lookback time.Duration) ([]models.PropertyBilling, error) {
	return nil, nil
}
func (s *stubBillingRepo) ApplyState(ctx context.Context, change billing.StateChange) (bool, error) {
	if s.applyErr != nil {
		return false, s.applyErr
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

type stubPropertyRepo struct {
	property *models.Property
}

func (s *stubPropertyRepo) WithTx(tx *gorm.DB) properties.Repository { return s }
func (s *stubPropertyRepo) FindByIDAndHost(ctx context.Context, id, hostID uuid.UUID) (*models.Property, error) {
	if s.property != nil && s.property.HostID == hostID {
		return s.property, nil
	}
	return nil, nil
}
type stubProvider struct {
	createdParams *stripe.CheckoutSessionParams
	session       *stripe.CheckoutSession
	createErr     error

	updatedID     string
	updatedParams *stripe.SubscriptionParams
	subscription  *stripe.Subscription
	updateErr     error
}

func (s *stubProvider) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	s.createdParams = params
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.session, nil
}

func (s *stubProvider) UpdateSubscription(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	s.updatedID = id
	s.updatedParams = params
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	return s.subscription, nil
}

func testStripeConfig() config.StripeConfig {
	return config.StripeConfig{
		PrimaryPriceID:    "price_primary",
		AdditionalPriceID: "price_additional",
		TrialDays:         60,
		RedirectBaseURL:   "https://hauslist.test",
	}
}

func newTestService(t *testing.T, billingRepo *stubBillingRepo, hostRepo *stubHostRepo, provider *stubProvider) Service {
	t.Helper()
	propertyRepo := &stubPropertyRepo{}
	if billingRepo.pending != nil {
		propertyRepo.property = &models.Property{
			ID:     billingRepo.pending.PropertyID,
			HostID: billingRepo.pending.HostID,
			Status: enums.PropertyStatusApproved,
		}
	}
	svc, err := NewService(ServiceParams{
		BillingRepo:  billingRepo,
		HostRepo:     hostRepo,
		PropertyRepo: propertyRepo,
		Provider:     provider,
		Stripe:       testStripeConfig(),
	})
	require.NoError(t, err)
	return svc
}

func TestCreateCheckoutSessionFirstListingGetsTrial(t *testing.T) {
	hostID := uuid.New()
	propertyID := uuid.New()
	billingRepo := &stubBillingRepo{
		pending: &models.PropertyBilling{
			PropertyID: propertyID,
			HostID:     hostID,
			Status:     enums.BillingStatusPendingPayment,
		},
		billedCount: 0,
	}
	hostRepo := &stubHostRepo{host: &models.Host{ID: hostID, Email: "host@example.com"}}
	provider := &stubProvider{session: &stripe.CheckoutSession{ID: "cs_123", URL: "https://checkout.test/cs_123"}}

	svc := newTestService(t, billingRepo, hostRepo, provider)

	result, err := svc.CreateCheckoutSession(context.Background(), hostID)
	require.NoError(t, err)
	assert.Equal(t, "cs_123", result.SessionID)

	params := provider.createdParams
	require.NotNil(t, params)
	require.Len(t, params.LineItems, 1)
	assert.Equal(t, "price_primary", *params.LineItems[0].Price)
	require.NotNil(t, params.SubscriptionData.TrialPeriodDays)
	assert.Equal(t, int64(60), *params.SubscriptionData.TrialPeriodDays)
	assert.Equal(t, propertyID.String(), params.Metadata["property_id"])
	assert.Equal(t, hostID.String(), params.Metadata["host_id"])
	require.NotNil(t, params.CustomerEmail)
	assert.Equal(t, "host@example.com", *params.CustomerEmail)
}

func TestCreateCheckoutSessionAdditionalListingNoTrial(t *testing.T) {
	hostID := uuid.New()
	customerID := "cus_42"
	billingRepo := &stubBillingRepo{
		pending: &models.PropertyBilling{
			PropertyID: uuid.New(),
			HostID:     hostID,
			Status:     enums.BillingStatusPendingPayment,
		},
		billedCount: 1,
	}
	hostRepo := &stubHostRepo{host: &models.Host{ID: hostID, Email: "host@example.com", StripeCustomerID: &customerID}}
	provider := &stubProvider{session: &stripe.CheckoutSession{ID: "cs_456"}}

	svc := newTestService(t, billingRepo, hostRepo, provider)

	_, err := svc.CreateCheckoutSession(context.Background(), hostID)
	require.NoError(t, err)

	params := provider.createdParams
	assert.Equal(t, "price_additional", *params.LineItems[0].Price)
	assert.Nil(t, params.SubscriptionData.TrialPeriodDays)
	require.NotNil(t, params.Customer)
	assert.Equal(t, customerID, *params.Customer)
	assert.Nil(t, params.CustomerEmail)
}

func TestCreateCheckoutSessionNoPendingListing(t *testing.T) {
	svc := newTestService(t, &stubBillingRepo{}, &stubHostRepo{host: &models.Host{}}, &stubProvider{})

	_, err := svc.CreateCheckoutSession(context.Background(), uuid.New())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestCreateCheckoutSessionUnapprovedListingIsRejected(t *testing.T) {
	hostID := uuid.New()
	propertyID := uuid.New()
	billingRepo := &stubBillingRepo{
		pending: &models.PropertyBilling{
			PropertyID: propertyID,
			HostID:     hostID,
			Status:     enums.BillingStatusPendingPayment,
		},
	}
	propertyRepo := &stubPropertyRepo{
		property: &models.Property{ID: propertyID, HostID: hostID, Status: enums.PropertyStatusPendingReview},
	}
	provider := &stubProvider{}
	svc, err := NewService(ServiceParams{
		BillingRepo:  billingRepo,
		HostRepo:     &stubHostRepo{host: &models.Host{ID: hostID}},
		PropertyRepo: propertyRepo,
		Provider:     provider,
		Stripe:       testStripeConfig(),
	})
	require.NoError(t, err)

	_, err = svc.CreateCheckoutSession(context.Background(), hostID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
	assert.Nil(t, provider.createdParams, "no checkout session for an unapproved listing")
}

func TestCreateCheckoutSessionProviderFailure(t *testing.T) {
	hostID := uuid.New()
	billingRepo := &stubBillingRepo{
		pending: &models.PropertyBilling{PropertyID: uuid.New(), HostID: hostID},
	}
	hostRepo := &stubHostRepo{host: &models.Host{ID: hostID, Email: "host@example.com"}}
	provider := &stubProvider{createErr: errors.New("stripe down")}

	svc := newTestService(t, billingRepo, hostRepo, provider)

	_, err := svc.CreateCheckoutSession(context.Background(), hostID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(err).Code())
}

func TestCancelSchedulesAtPeriodEnd(t *testing.T) {
	hostID := uuid.New()
	propertyID := uuid.New()
	subID := "sub_789"
	periodEnd := time.Now().Add(20 * 24 * time.Hour).Unix()

	billingRepo := &stubBillingRepo{
		record: &models.PropertyBilling{
			PropertyID:           propertyID,
			HostID:               hostID,
			StripeSubscriptionID: &subID,
			Status:               enums.BillingStatusActive,
		},
	}
	provider := &stubProvider{
		subscription: &stripe.Subscription{
			ID:                subID,
			Status:            stripe.SubscriptionStatusActive,
			CancelAtPeriodEnd: true,
			CancelAt:          periodEnd,
			Items: &stripe.SubscriptionItemList{
				Data: []*stripe.SubscriptionItem{{CurrentPeriodEnd: periodEnd}},
			},
		},
	}

	svc := newTestService(t, billingRepo, &stubHostRepo{host: &models.Host{}}, provider)

	result, err := svc.Cancel(context.Background(), hostID, propertyID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.NotNil(t, result.CancelAt)
	require.NotNil(t, result.CurrentPeriodEnd)

	assert.Equal(t, subID, provider.updatedID)
	require.NotNil(t, provider.updatedParams.CancelAtPeriodEnd)
	assert.True(t, *provider.updatedParams.CancelAtPeriodEnd)

	require.Len(t, billingRepo.applied, 1)
	change := billingRepo.applied[0]
	assert.Equal(t, enums.BillingStatusCancelScheduled, change.Status)
	assert.True(t, change.IsActive, "listing must stay visible through the paid window")
}

func TestCancelUnknownPropertyIsNotFound(t *testing.T) {
	svc := newTestService(t, &stubBillingRepo{}, &stubHostRepo{host: &models.Host{}}, &stubProvider{})

	_, err := svc.Cancel(context.Background(), uuid.New(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestCancelOtherHostsPropertyIsNotFound(t *testing.T) {
	owner := uuid.New()
	subID := "sub_1"
	billingRepo := &stubBillingRepo{
		record: &models.PropertyBilling{
			PropertyID:           uuid.New(),
			HostID:               owner,
			StripeSubscriptionID: &subID,
		},
	}
	svc := newTestService(t, billingRepo, &stubHostRepo{host: &models.Host{}}, &stubProvider{})

	_, err := svc.Cancel(context.Background(), uuid.New(), billingRepo.record.PropertyID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}
