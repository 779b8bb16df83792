package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/hauslist/hauslist-backend/internal/billing"
	"github.com/hauslist/hauslist-backend/internal/hosts"
	"github.com/hauslist/hauslist-backend/pkg/enums"
	pkgerrors "github.com/hauslist/hauslist-backend/pkg/errors"
	"github.com/hauslist/hauslist-backend/pkg/logger"
)

const persistRetryBackoff = 200 * time.Millisecond

// sessionProvider is the slice of the provider surface the verifier uses.
type sessionProvider interface {
	GetCheckoutSession(ctx context.Context, id string, expand ...string) (*stripe.CheckoutSession, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Result is the outcome of a post-redirect verification. Verified false with
// a nil error means the session simply has not completed yet; the client may
// poll again or wait for the webhook path.
type Result struct {
	Verified   bool                `json:"verified"`
	PropertyID uuid.UUID           `json:"property_id,omitempty"`
	Status     enums.BillingStatus `json:"status,omitempty"`
	RawState   string              `json:"raw_state,omitempty"`
}

// Service confirms checkout sessions synchronously after the billing
// redirect. This is the primary activation path and never waits on webhook
// delivery.
type Service interface {
	Verify(ctx context.Context, sessionID string, hostID uuid.UUID) (*Result, error)
}

// ServiceParams groups dependencies for the checkout verifier.
type ServiceParams struct {
	BillingRepo billing.Repository
	HostRepo    hosts.Repository
	Provider    sessionProvider
	TxRunner    txRunner
	Logger      *logger.Logger
}

type service struct {
	billingRepo billing.Repository
	hostRepo    hosts.Repository
	provider    sessionProvider
	txRunner    txRunner
	logger      *logger.Logger
}

// NewService builds a checkout verifier with the required dependencies.
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
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		billingRepo: params.BillingRepo,
		hostRepo:    params.HostRepo,
		provider:    params.Provider,
		txRunner:    params.TxRunner,
		logger:      params.Logger,
	}, nil
}

func (s *service) Verify(ctx context.Context, sessionID string, hostID uuid.UUID) (*Result, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	sess, err := s.provider.GetCheckoutSession(ctx, sessionID, "subscription")
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "checkout session not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve checkout session")
	}

	// Ownership check before anything else: a forged session id belonging to
	// another host must not leak state or trigger writes.
	if sess.Metadata["host_id"] != hostID.String() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "checkout session belongs to another account")
	}

	if sess.Status != stripe.CheckoutSessionStatusComplete || sess.Subscription == nil {
		return &Result{Verified: false, RawState: string(sess.Status)}, nil
	}

	rawProperty := strings.TrimSpace(sess.Metadata["property_id"])
	if rawProperty == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDataIntegrity, "checkout session missing property correlation").
			WithDetails(map[string]any{"session_id": sessionID})
	}
	propertyID, err := uuid.Parse(rawProperty)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDataIntegrity, err, "invalid property correlation metadata")
	}

	change, err := billing.ChangeFromSubscription(sess.Subscription, propertyID, hostID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	customerID := ""
	if sess.Customer != nil {
		customerID = sess.Customer.ID
	}

	if err := s.persistWithRetry(ctx, change, hostID, customerID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "persist verified state")
	}

	if s.logger != nil {
		lctx := s.logger.WithPropertyID(ctx, propertyID.String())
		s.logger.Info(lctx, "checkout session verified")
	}

	return &Result{
		Verified:   true,
		PropertyID: propertyID,
		Status:     change.Status,
		RawState:   string(sess.Status),
	}, nil
}

// persistWithRetry applies the state write and customer ref in one
// transaction, retrying the whole unit exactly once on failure.
func (s *service) persistWithRetry(ctx context.Context, change billing.StateChange, hostID uuid.UUID, customerID string) error {
	backoff := retry.WithMaxRetries(1, retry.NewConstant(persistRetryBackoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
			if _, err := s.billingRepo.WithTx(tx).ApplyState(ctx, change); err != nil {
				return err
			}
			if customerID != "" {
				return s.hostRepo.WithTx(tx).SetStripeCustomerID(ctx, hostID, customerID)
			}
			return nil
		})
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
