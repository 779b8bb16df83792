package cron

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/hauslist/hauslist-backend/internal/billing"
	"github.com/hauslist/hauslist-backend/pkg/db/models"
	"github.com/hauslist/hauslist-backend/pkg/logger"
)

const (
	defaultSweepLimit    = 200
	defaultSweepLookback = 24 * time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type subscriptionFetcher interface {
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
}

// BillingReconcileJobParams configures the stale-state sweep cron job.
type BillingReconcileJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	BillingRepo billing.Repository
	Provider    subscriptionFetcher
	Limit       int
	Lookback    time.Duration
	Now         func() time.Time
}

// NewBillingReconcileJob builds the sweep that catches listings whose webhook
// or redirect confirmation was lost.
func NewBillingReconcileJob(params BillingReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.BillingRepo == nil {
		return nil, fmt.Errorf("billing repository required")
	}
	if params.Provider == nil {
		return nil, fmt.Errorf("provider client required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	lookback := params.Lookback
	if lookback <= 0 {
		lookback = defaultSweepLookback
	}
	return &billingReconcileJob{
		logg:        params.Logger,
		db:          params.DB,
		billingRepo: params.BillingRepo,
		provider:    params.Provider,
		now:         now,
		limit:       limit,
		lookback:    lookback,
	}, nil
}

type billingReconcileJob struct {
	logg        *logger.Logger
	db          txRunner
	billingRepo billing.Repository
	provider    subscriptionFetcher
	now         func() time.Time
	limit       int
	lookback    time.Duration
}

func (j *billingReconcileJob) Name() string { return "billing-reconcile" }

func (j *billingReconcileJob) Run(ctx context.Context) error {
	logCtx := j.logg.WithField(ctx, "job", j.Name())
	logCtx = j.logg.WithField(logCtx, "event", "cron.job")
	stale, err := j.billingRepo.ListStale(logCtx, j.limit, j.lookback)
	if err != nil {
		return fmt.Errorf("list stale billing records: %w", err)
	}
	var errs error
	scanned := len(stale)
	synced := 0
	for i := range stale {
		if err := j.reconcileRecord(logCtx, &stale[i]); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		synced++
	}
	reportCtx := j.logg.WithFields(logCtx, map[string]any{
		"candidates": scanned,
		"synced":     synced,
	})
	j.logg.Info(reportCtx, "billing reconcile sweep complete")
	return errs
}

func (j *billingReconcileJob) reconcileRecord(ctx context.Context, record *models.PropertyBilling) error {
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"property_id": record.PropertyID,
		"host_id":     record.HostID,
	})
	if record.StripeSubscriptionID == nil || strings.TrimSpace(*record.StripeSubscriptionID) == "" {
		j.logg.Info(logCtx, "record has no subscription reference; skipping")
		return nil
	}

	sub, err := j.provider.GetSubscription(logCtx, *record.StripeSubscriptionID)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			// Subscription deleted at the provider; the listing comes down.
			sub = &stripe.Subscription{
				ID:     *record.StripeSubscriptionID,
				Status: stripe.SubscriptionStatusCanceled,
			}
		} else {
			return fmt.Errorf("fetch subscription for property %s: %w", record.PropertyID, err)
		}
	}

	change, err := billing.ChangeFromSubscription(sub, record.PropertyID, record.HostID, j.now().UTC())
	if err != nil {
		return fmt.Errorf("map subscription for property %s: %w", record.PropertyID, err)
	}

	var applied bool
	if err := j.db.WithTx(logCtx, func(tx *gorm.DB) error {
		applied, err = j.billingRepo.WithTx(tx).ApplyState(logCtx, change)
		return err
	}); err != nil {
		return fmt.Errorf("persist reconciled state for property %s: %w", record.PropertyID, err)
	}

	resultCtx := j.logg.WithFields(logCtx, map[string]any{
		"status":  string(change.Status),
		"applied": applied,
	})
	j.logg.Info(resultCtx, "billing record reconciled")
	return nil
}
