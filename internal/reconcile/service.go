package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/hauslist/hauslist-backend/internal/billing"
	"github.com/hauslist/hauslist-backend/internal/hosts"
	pkgerrors "github.com/hauslist/hauslist-backend/pkg/errors"
	"github.com/hauslist/hauslist-backend/pkg/logger"
)

const (
	customerSearchLimit = 5
	sessionScanLimit    = 100
	subscriptionLimit   = 25
)

// reconcileProvider is the slice of the billing provider the sync path uses.
type reconcileProvider interface {
	ListRecentCheckoutSessions(ctx context.Context, limit int64) ([]*stripe.CheckoutSession, error)
	ListSubscriptionsByCustomer(ctx context.Context, customerID string, limit int64) ([]*stripe.Subscription, error)
	SearchCustomersByEmail(ctx context.Context, email string, limit int64) ([]*stripe.Customer, error)
}

// SyncResult reports what a host-triggered sync found on the provider side.
type SyncResult struct {
	Synced bool `json:"synced"`
	Count  int  `json:"count"`
}

// Service pulls the host's real subscription state from the provider and
// folds it into the local billing records. It is the fallback for hosts whose
// webhook or redirect confirmation was lost.
type Service interface {
	Sync(ctx context.Context, hostID uuid.UUID) (*SyncResult, error)
}

// ServiceParams groups dependencies for the reconciliation service.
type ServiceParams struct {
	BillingRepo billing.Repository
	HostRepo    hosts.Repository
	Provider    reconcileProvider
	Logger      *logger.Logger
	Now         func() time.Time
}

type service struct {
	billingRepo billing.Repository
	hostRepo    hosts.Repository
	provider    reconcileProvider
	logger      *logger.Logger
	now         func() time.Time
}

// NewService builds a reconciliation service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.BillingRepo == nil {
		return nil, fmt.Errorf("billing repo required")
	}
	if params.HostRepo == nil {
		return nil, fmt.Errorf("host repo required")
	}
	if params.Provider == nil {
		return nil, fmt.Errorf("provider client required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		billingRepo: params.BillingRepo,
		hostRepo:    params.HostRepo,
		provider:    params.Provider,
		logger:      params.Logger,
		now:         now,
	}, nil
}

func (s *service) Sync(ctx context.Context, hostID uuid.UUID) (*SyncResult, error) {
	host, err := s.hostRepo.FindByID(ctx, hostID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load host")
	}
	if host == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "host not found")
	}

	customerID, resolvedLate, err := s.resolveCustomer(ctx, hostID, host.Email, host.StripeCustomerID)
	if err != nil {
		return nil, err
	}
	if customerID == "" {
		s.info(ctx, hostID, "no provider customer found for host")
		return &SyncResult{Synced: false, Count: 0}, nil
	}
	if resolvedLate {
		// Remember the customer so the next sync starts from the fast path.
		if err := s.hostRepo.SetStripeCustomerID(ctx, hostID, customerID); err != nil {
			s.warn(ctx, hostID, "persist resolved customer reference failed")
		}
	}

	subs, err := s.provider.ListSubscriptionsByCustomer(ctx, customerID, subscriptionLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscriptions")
	}
	if len(subs) == 0 {
		return &SyncResult{Synced: false, Count: 0}, nil
	}

	count := 0
	eventAt := s.now().UTC()
	for _, sub := range subs {
		if sub == nil {
			continue
		}
		rawProperty := strings.TrimSpace(sub.Metadata["property_id"])
		if rawProperty == "" {
			s.info(ctx, hostID, "subscription missing property correlation; skipping")
			continue
		}
		propertyID, err := uuid.Parse(rawProperty)
		if err != nil {
			s.warn(ctx, hostID, "subscription carries invalid property correlation; skipping")
			continue
		}
		change, err := billing.ChangeFromSubscription(sub, propertyID, hostID, eventAt)
		if err != nil {
			return nil, err
		}
		applied, err := s.billingRepo.ApplyState(ctx, change)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "apply synced state")
		}
		if applied {
			count++
		}
	}
	if count == 0 {
		return &SyncResult{Synced: false, Count: 0}, nil
	}
	return &SyncResult{Synced: true, Count: count}, nil
}

// resolveCustomer finds the provider customer for a host. The stored
// reference wins; otherwise it falls back to an email search and finally to
// scanning recent checkout sessions for the host's correlation metadata.
// resolvedLate is true when the id came from a fallback and should be stored.
func (s *service) resolveCustomer(ctx context.Context, hostID uuid.UUID, email string, stored *string) (customerID string, resolvedLate bool, err error) {
	if stored != nil && strings.TrimSpace(*stored) != "" {
		return strings.TrimSpace(*stored), false, nil
	}

	customers, err := s.provider.SearchCustomersByEmail(ctx, email, customerSearchLimit)
	if err != nil {
		return "", false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search customers")
	}
	if len(customers) > 0 && customers[0] != nil {
		return customers[0].ID, true, nil
	}

	sessions, err := s.provider.ListRecentCheckoutSessions(ctx, sessionScanLimit)
	if err != nil {
		return "", false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "scan checkout sessions")
	}
	for _, sess := range sessions {
		if sess == nil || sess.Customer == nil {
			continue
		}
		if sess.Metadata["host_id"] == hostID.String() {
			return sess.Customer.ID, true, nil
		}
	}
	return "", false, nil
}

func (s *service) info(ctx context.Context, hostID uuid.UUID, msg string) {
	if s.logger == nil {
		return
	}
	s.logger.Info(s.logger.WithHostID(ctx, hostID.String()), msg)
}

func (s *service) warn(ctx context.Context, hostID uuid.UUID, msg string) {
	if s.logger == nil {
		return
	}
	s.logger.Warn(s.logger.WithHostID(ctx, hostID.String()), msg)
}
