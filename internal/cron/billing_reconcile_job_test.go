package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/hauslist/hauslist-backend/internal/billing"
	"github.com/hauslist/hauslist-backend/pkg/db/models"
	"github.com/hauslist/hauslist-backend/pkg/enums"
	"github.com/hauslist/hauslist-backend/pkg/logger"
)

type fakeBillingRepo struct {
	stale    []models.PropertyBilling
	staleErr error
	applied  []billing.StateChange
	applyErr error
}

func (f *fakeBillingRepo) WithTx(tx *gorm.DB) billing.Repository { return f }
func (f *fakeBillingRepo) Create(ctx context.Context, record *models.PropertyBilling) error {
	return nil
}
func (f *fakeBillingRepo) FindByPropertyID(ctx context.Context, propertyID uuid.UUID) (*models.PropertyBilling, error) {
	return nil, nil
}
func (f *fakeBillingRepo) FindByPropertyAndHost(ctx context.Context, propertyID, hostID uuid.UUID) (*models.PropertyBilling, error) {
	return nil, nil
}
func (f *fakeBillingRepo) FindBySubscriptionID(ctx context.Context, subscriptionID string) ([]models.PropertyBilling, error) {
	return nil, nil
}
func (f *fakeBillingRepo) FindPendingByHost(ctx context.Context, hostID uuid.UUID) (*models.PropertyBilling, error) {
	return nil, nil
}
func (f *fakeBillingRepo) CountBilledByHost(ctx context.Context, hostID uuid.UUID) (int64, error) {
	return 0, nil
}
func (f *fakeBillingRepo) ListStale(ctx context.Context, limit int, lookback time.Duration) ([]models.PropertyBilling, error) {
	return f.stale, f.staleErr
}
func (f *fakeBillingRepo) ApplyState(ctx context.Context, change billing.StateChange) (bool, error) {
	if f.applyErr != nil {
		return false, f.applyErr
	}
	f.applied = append(f.applied, change)
	return true, nil
}

type fakeSubscriptionFetcher struct {
	subs map[string]*stripe.Subscription
	err  error
}

func (f *fakeSubscriptionFetcher) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.subs[id], nil
}

type billingFakeTxRunner struct{}

func (billingFakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func staleRecord(subID string) models.PropertyBilling {
	return models.PropertyBilling{
		PropertyID:           uuid.New(),
		HostID:               uuid.New(),
		StripeSubscriptionID: &subID,
		Status:               enums.BillingStatusActive,
	}
}

func newBillingReconcileJob(t *testing.T, repo *fakeBillingRepo, fetcher *fakeSubscriptionFetcher) Job {
	t.Helper()
	job, err := NewBillingReconcileJob(BillingReconcileJobParams{
		Logger:      logger.New(logger.Options{ServiceName: "test"}),
		DB:          billingFakeTxRunner{},
		BillingRepo: repo,
		Provider:    fetcher,
	})
	if err != nil {
		t.Fatalf("NewBillingReconcileJob: %v", err)
	}
	return job
}

func TestBillingReconcileJobAppliesProviderState(t *testing.T) {
	record := staleRecord("sub_live")
	repo := &fakeBillingRepo{stale: []models.PropertyBilling{record}}
	fetcher := &fakeSubscriptionFetcher{subs: map[string]*stripe.Subscription{
		"sub_live": {ID: "sub_live", Status: stripe.SubscriptionStatusPastDue},
	}}
	job := newBillingReconcileJob(t, repo, fetcher)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(repo.applied) != 1 {
		t.Fatalf("expected one state write, got %d", len(repo.applied))
	}
	change := repo.applied[0]
	if change.PropertyID != record.PropertyID {
		t.Fatalf("expected property %s, got %s", record.PropertyID, change.PropertyID)
	}
	if change.Status != enums.BillingStatusPaused {
		t.Fatalf("expected paused, got %s", change.Status)
	}
	if change.IsActive {
		t.Fatal("past_due must deactivate the listing")
	}
}

func TestBillingReconcileJobTreatsMissingSubscriptionAsCanceled(t *testing.T) {
	record := staleRecord("sub_gone")
	repo := &fakeBillingRepo{stale: []models.PropertyBilling{record}}
	fetcher := &fakeSubscriptionFetcher{err: &stripe.Error{Code: stripe.ErrorCodeResourceMissing}}
	job := newBillingReconcileJob(t, repo, fetcher)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(repo.applied) != 1 {
		t.Fatalf("expected one state write, got %d", len(repo.applied))
	}
	if repo.applied[0].Status != enums.BillingStatusCanceled {
		t.Fatalf("expected canceled, got %s", repo.applied[0].Status)
	}
}

func TestBillingReconcileJobSkipsRecordsWithoutReference(t *testing.T) {
	record := models.PropertyBilling{PropertyID: uuid.New(), HostID: uuid.New()}
	repo := &fakeBillingRepo{stale: []models.PropertyBilling{record}}
	job := newBillingReconcileJob(t, repo, &fakeSubscriptionFetcher{})

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(repo.applied) != 0 {
		t.Fatalf("expected no writes, got %d", len(repo.applied))
	}
}

func TestBillingReconcileJobCollectsPerRecordErrors(t *testing.T) {
	good := staleRecord("sub_ok")
	bad := staleRecord("sub_broken")
	repo := &fakeBillingRepo{stale: []models.PropertyBilling{bad, good}}
	fetcher := &fakeSubscriptionFetcher{subs: map[string]*stripe.Subscription{
		"sub_ok": {ID: "sub_ok", Status: stripe.SubscriptionStatusActive},
		// sub_broken resolves to nil, which fails mapping.
	}}
	job := newBillingReconcileJob(t, repo, fetcher)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected aggregated error")
	}
	if len(repo.applied) != 1 {
		t.Fatalf("one record should still sync, got %d writes", len(repo.applied))
	}
	if repo.applied[0].PropertyID != good.PropertyID {
		t.Fatal("the healthy record should be the one synced")
	}
}

func TestBillingReconcileJobPropagatesListErrors(t *testing.T) {
	repo := &fakeBillingRepo{staleErr: errors.New("db down")}
	job := newBillingReconcileJob(t, repo, &fakeSubscriptionFetcher{})

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
