package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/hauslist/hauslist-backend/internal/billing"
	"github.com/hauslist/hauslist-backend/pkg/db/models"
	"github.com/hauslist/hauslist-backend/pkg/enums"
	pkgerrors "github.com/hauslist/hauslist-backend/pkg/errors"
	"github.com/hauslist/hauslist-backend/pkg/logger"
)

// subscriptionFetcher re-fetches a subscription when the event payload only
// carries its id, as invoice events do.
type subscriptionFetcher interface {
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// notifier dispatches host-facing billing alerts. Dispatch failures are
// logged and never fail the webhook.
type notifier interface {
	NotifyBillingPaused(ctx context.Context, hostID, propertyID uuid.UUID) error
	NotifyTrialEnding(ctx context.Context, hostID, propertyID uuid.UUID, endsAt time.Time) error
}

// ServiceParams groups dependencies for the webhook ingestor.
type ServiceParams struct {
	BillingRepo billing.Repository
	Ledger      billing.Ledger
	Provider    subscriptionFetcher
	TxRunner    txRunner
	Notifier    notifier
	Logger      *logger.Logger

	// TrialNotifyWindow overrides how close to trial end the alert fires.
	TrialNotifyWindow time.Duration
}

// Service applies provider webhook events to local billing state. Events are
// deduplicated through a persisted ledger and ordered by their provider
// timestamp, so redeliveries and out-of-order arrivals are safe.
type Service struct {
	billingRepo billing.Repository
	ledger      billing.Ledger
	provider    subscriptionFetcher
	txRunner    txRunner
	notifier    notifier
	logger      *logger.Logger
	trialWindow time.Duration
}

// NewService builds the webhook ingestor.
func NewService(params ServiceParams) (*Service, error) {
	if params.BillingRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing repo required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "event ledger required")
	}
	if params.Provider == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "provider client required")
	}
	if params.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		billingRepo: params.BillingRepo,
		ledger:      params.Ledger,
		provider:    params.Provider,
		txRunner:    params.TxRunner,
		notifier:    params.Notifier,
		logger:      params.Logger,
		trialWindow: params.TrialNotifyWindow,
	}, nil
}

// HandleEvent processes one verified provider event. Unhandled event types
// return nil so the provider stops redelivering them.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event data required")
	}

	logCtx := s.logger.WithFields(ctx, map[string]any{
		"event_id":   event.ID,
		"event_type": string(event.Type),
	})

	seen, err := s.ledger.Seen(logCtx, event.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "check event ledger")
	}
	if seen {
		s.logger.Info(logCtx, "duplicate event delivery; skipping")
		return nil
	}

	switch event.Type {
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted,
		stripe.EventTypeCustomerSubscriptionTrialWillEnd:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
		}
		return s.applySubscription(logCtx, event, &sub)
	case stripe.EventTypeInvoicePaid, stripe.EventTypeInvoicePaymentFailed:
		subscriptionID := event.GetObjectValue("subscription")
		if subscriptionID == "" {
			subscriptionID = event.GetObjectValue("parent", "subscription_details", "subscription")
		}
		if subscriptionID == "" {
			s.logger.Info(logCtx, "invoice without subscription; skipping")
			return nil
		}
		// Invoice payloads carry stale subscription snapshots; re-fetch so
		// the mapped state reflects what the provider holds now.
		sub, err := s.provider.GetSubscription(logCtx, subscriptionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch subscription")
		}
		return s.applySubscription(logCtx, event, sub)
	default:
		return nil
	}
}

func (s *Service) applySubscription(ctx context.Context, event *stripe.Event, sub *stripe.Subscription) error {
	if sub == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription payload required")
	}

	propertyID, hostID, err := s.correlate(ctx, sub)
	if err != nil {
		return err
	}
	if propertyID == uuid.Nil {
		s.logger.Warn(ctx, "subscription has no local billing record or correlation metadata; skipping")
		return nil
	}

	eventAt := time.Unix(event.Created, 0).UTC()
	change, err := billing.ChangeFromSubscription(sub, propertyID, hostID, eventAt)
	if err != nil {
		return err
	}

	var prior *models.PropertyBilling
	var applied bool
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		fresh, err := s.ledger.WithTx(tx).Record(ctx, event.ID, string(event.Type))
		if err != nil {
			return err
		}
		if !fresh {
			// Another worker recorded it between our Seen check and here.
			return nil
		}
		repo := s.billingRepo.WithTx(tx)
		prior, err = repo.FindByPropertyAndHost(ctx, propertyID, hostID)
		if err != nil {
			return err
		}
		applied, err = repo.ApplyState(ctx, change)
		return err
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "apply webhook state")
	}

	resultCtx := s.logger.WithFields(s.logger.WithPropertyID(ctx, propertyID.String()), map[string]any{
		"status":  string(change.Status),
		"applied": applied,
	})
	if !applied {
		s.logger.Info(resultCtx, "stored state already current; no-op")
		return nil
	}
	s.logger.Info(resultCtx, "billing state updated from webhook")

	s.dispatchAlerts(ctx, event, change, prior)
	return nil
}

// correlate resolves which property a subscription belongs to. Metadata wins;
// otherwise the stored subscription reference is used. A nil property id with
// nil error means the event cannot be correlated and is a benign no-op.
func (s *Service) correlate(ctx context.Context, sub *stripe.Subscription) (uuid.UUID, uuid.UUID, error) {
	rawProperty := strings.TrimSpace(sub.Metadata["property_id"])
	rawHost := strings.TrimSpace(sub.Metadata["host_id"])
	if rawProperty != "" && rawHost != "" {
		propertyID, err := uuid.Parse(rawProperty)
		if err != nil {
			return uuid.Nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDataIntegrity, err, "invalid property correlation metadata")
		}
		hostID, err := uuid.Parse(rawHost)
		if err != nil {
			return uuid.Nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDataIntegrity, err, "invalid host correlation metadata")
		}
		return propertyID, hostID, nil
	}

	if sub.ID == "" {
		return uuid.Nil, uuid.Nil, nil
	}
	records, err := s.billingRepo.FindBySubscriptionID(ctx, sub.ID)
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "lookup subscription reference")
	}
	switch len(records) {
	case 0:
		return uuid.Nil, uuid.Nil, nil
	case 1:
		return records[0].PropertyID, records[0].HostID, nil
	default:
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeDataIntegrity, "subscription mapped to multiple properties").
			WithDetails(map[string]any{"subscription_id": sub.ID})
	}
}

func (s *Service) dispatchAlerts(ctx context.Context, event *stripe.Event, change billing.StateChange, prior *models.PropertyBilling) {
	if s.notifier == nil {
		return
	}

	if change.Status == enums.BillingStatusPaused && (prior == nil || prior.Status != enums.BillingStatusPaused) {
		if err := s.notifier.NotifyBillingPaused(ctx, change.HostID, change.PropertyID); err != nil {
			s.logger.Error(ctx, "dispatch paused notification", err)
		}
	}

	trialAlert := event.Type == stripe.EventTypeCustomerSubscriptionTrialWillEnd ||
		billing.TrialEndingSoon(change.TrialEndsAt, time.Now().UTC(), s.trialWindow)
	if trialAlert && change.TrialEndsAt != nil && change.Status == enums.BillingStatusTrial {
		if err := s.notifier.NotifyTrialEnding(ctx, change.HostID, change.PropertyID, *change.TrialEndsAt); err != nil {
			s.logger.Error(ctx, "dispatch trial ending notification", err)
		}
	}
}
