package subscriptions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/hauslist/hauslist-backend/internal/billing"
	"github.com/hauslist/hauslist-backend/internal/hosts"
	"github.com/hauslist/hauslist-backend/internal/properties"
	"github.com/hauslist/hauslist-backend/pkg/config"
	"github.com/hauslist/hauslist-backend/pkg/enums"
	pkgerrors "github.com/hauslist/hauslist-backend/pkg/errors"
	"github.com/hauslist/hauslist-backend/pkg/logger"
)

// checkoutProvider is the slice of the provider surface this service uses.
type checkoutProvider interface {
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	UpdateSubscription(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
}

// Service drives the subscription lifecycle a host can trigger directly:
// starting checkout for a pending listing and requesting cancellation.
type Service interface {
	CreateCheckoutSession(ctx context.Context, hostID uuid.UUID) (*CheckoutSessionResult, error)
	Cancel(ctx context.Context, hostID, propertyID uuid.UUID) (*CancelResult, error)
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	BillingRepo  billing.Repository
	HostRepo     hosts.Repository
	PropertyRepo properties.Repository
	Provider     checkoutProvider
	Stripe       config.StripeConfig
	Logger       *logger.Logger
}

// CheckoutSessionResult carries the session reference the client redirects to.
type CheckoutSessionResult struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// CancelResult reports the scheduled cancellation window.
type CancelResult struct {
	Success          bool       `json:"success"`
	CancelAt         *time.Time `json:"cancel_at,omitempty"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
}

type service struct {
	billingRepo  billing.Repository
	hostRepo     hosts.Repository
	propertyRepo properties.Repository
	provider     checkoutProvider
	cfg          config.StripeConfig
	logger       *logger.Logger
}

// NewService builds a subscription service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.BillingRepo == nil {
		return nil, fmt.Errorf("billing repo required")
	}
	if params.HostRepo == nil {
		return nil, fmt.Errorf("host repo required")
	}
	if params.PropertyRepo == nil {
		return nil, fmt.Errorf("property repo required")
	}
	if params.Provider == nil {
		return nil, fmt.Errorf("provider client required")
	}
	if strings.TrimSpace(params.Stripe.PrimaryPriceID) == "" {
		return nil, fmt.Errorf("primary price id required")
	}
	if strings.TrimSpace(params.Stripe.AdditionalPriceID) == "" {
		return nil, fmt.Errorf("additional price id required")
	}
	if strings.TrimSpace(params.Stripe.RedirectBaseURL) == "" {
		return nil, fmt.Errorf("redirect base url required")
	}
	return &service{
		billingRepo:  params.BillingRepo,
		hostRepo:     params.HostRepo,
		propertyRepo: params.PropertyRepo,
		provider:     params.Provider,
		cfg:          params.Stripe,
		logger:       params.Logger,
	}, nil
}

// CreateCheckoutSession resolves the host's listing awaiting payment and
// opens a provider checkout session for it. The first billed listing gets
// the primary price with a trial; additional listings get the add-on price
// with none.
func (s *service) CreateCheckoutSession(ctx context.Context, hostID uuid.UUID) (*CheckoutSessionResult, error) {
	pending, err := s.billingRepo.FindPendingByHost(ctx, hostID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "lookup pending listing")
	}
	if pending == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no listing awaiting payment")
	}

	// Billing follows editorial approval; a listing pulled back into review
	// cannot be paid for.
	property, err := s.propertyRepo.FindByIDAndHost(ctx, pending.PropertyID, hostID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "lookup property")
	}
	if property == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	if property.Status != enums.PropertyStatusApproved {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "listing is not approved for publication")
	}

	billedCount, err := s.billingRepo.CountBilledByHost(ctx, hostID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "count billed listings")
	}

	priceID := s.cfg.AdditionalPriceID
	var trialDays *int64
	if billedCount == 0 {
		priceID = s.cfg.PrimaryPriceID
		if s.cfg.TrialDays > 0 {
			days := int64(s.cfg.TrialDays)
			trialDays = &days
		}
	}

	host, err := s.hostRepo.FindByID(ctx, hostID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "lookup host")
	}
	if host == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "host not found")
	}

	metadata := map[string]string{
		"property_id": pending.PropertyID.String(),
		"host_id":     hostID.String(),
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL: stripe.String(s.cfg.RedirectBaseURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(s.cfg.RedirectBaseURL + "/billing/canceled"),
		Metadata:   metadata,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata:        metadata,
			TrialPeriodDays: trialDays,
		},
	}
	if host.StripeCustomerID != nil && *host.StripeCustomerID != "" {
		params.Customer = stripe.String(*host.StripeCustomerID)
	} else {
		params.CustomerEmail = stripe.String(host.Email)
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	if s.logger != nil {
		ctx = s.logger.WithPropertyID(ctx, pending.PropertyID.String())
		s.logger.Info(ctx, "checkout session created")
	}

	return &CheckoutSessionResult{SessionID: sess.ID, URL: sess.URL}, nil
}

// Cancel asks the provider to end the subscription at period end and
// optimistically records cancel_scheduled. The listing stays visible through
// the paid window; webhooks and the sweep re-confirm the final state.
func (s *service) Cancel(ctx context.Context, hostID, propertyID uuid.UUID) (*CancelResult, error) {
	record, err := s.billingRepo.FindByPropertyAndHost(ctx, propertyID, hostID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "lookup billing record")
	}
	if record == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no billing record for property")
	}
	if record.StripeSubscriptionID == nil || *record.StripeSubscriptionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "property has no provider subscription")
	}

	sub, err := s.provider.UpdateSubscription(ctx, *record.StripeSubscriptionID, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "schedule cancellation")
	}

	change, err := billing.ChangeFromSubscription(sub, propertyID, hostID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if _, err := s.billingRepo.ApplyState(ctx, change); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "record scheduled cancellation")
	}

	return &CancelResult{
		Success:          true,
		CancelAt:         billing.UnixTime(sub.CancelAt),
		CurrentPeriodEnd: billing.PeriodEnd(sub),
	}, nil
}
