package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/hauslist/hauslist-backend/pkg/enums"
	pkgerrors "github.com/hauslist/hauslist-backend/pkg/errors"
)

func TestMapProviderStatus(t *testing.T) {
	tests := []struct {
		name              string
		providerStatus    stripe.SubscriptionStatus
		cancelAtPeriodEnd bool
		wantStatus        enums.BillingStatus
		wantActive        bool
	}{
		{name: "trialing", providerStatus: stripe.SubscriptionStatusTrialing, wantStatus: enums.BillingStatusTrial, wantActive: true},
		{name: "active", providerStatus: stripe.SubscriptionStatusActive, wantStatus: enums.BillingStatusActive, wantActive: true},
		{name: "active with pending cancel", providerStatus: stripe.SubscriptionStatusActive, cancelAtPeriodEnd: true, wantStatus: enums.BillingStatusCancelScheduled, wantActive: true},
		{name: "trialing with pending cancel", providerStatus: stripe.SubscriptionStatusTrialing, cancelAtPeriodEnd: true, wantStatus: enums.BillingStatusCancelScheduled, wantActive: true},
		{name: "past due", providerStatus: stripe.SubscriptionStatusPastDue, wantStatus: enums.BillingStatusPaused, wantActive: false},
		{name: "unpaid", providerStatus: stripe.SubscriptionStatusUnpaid, wantStatus: enums.BillingStatusPaused, wantActive: false},
		{name: "incomplete", providerStatus: stripe.SubscriptionStatusIncomplete, wantStatus: enums.BillingStatusPaused, wantActive: false},
		{name: "incomplete expired", providerStatus: stripe.SubscriptionStatusIncompleteExpired, wantStatus: enums.BillingStatusPaused, wantActive: false},
		{name: "canceled", providerStatus: stripe.SubscriptionStatusCanceled, wantStatus: enums.BillingStatusCanceled, wantActive: false},
		{name: "ended", providerStatus: "ended", wantStatus: enums.BillingStatusCanceled, wantActive: false},
		{name: "past due ignores pending cancel", providerStatus: stripe.SubscriptionStatusPastDue, cancelAtPeriodEnd: true, wantStatus: enums.BillingStatusPaused, wantActive: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, active, err := MapProviderStatus(tt.providerStatus, tt.cancelAtPeriodEnd, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantActive, active)
		})
	}
}

func TestMapProviderStatusRejectsUnknown(t *testing.T) {
	_, _, err := MapProviderStatus("paused_by_collections", false, nil)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDataIntegrity, typed.Code())
}

func TestMapProviderStatusIsDeterministic(t *testing.T) {
	first, activeFirst, err := MapProviderStatus(stripe.SubscriptionStatusActive, true, nil)
	require.NoError(t, err)
	second, activeSecond, err := MapProviderStatus(stripe.SubscriptionStatusActive, true, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, activeFirst, activeSecond)
}

func TestTrialEndingSoon(t *testing.T) {
	now := time.Now().UTC()

	in24h := now.Add(24 * time.Hour)
	in72h := now.Add(72 * time.Hour)
	past := now.Add(-time.Hour)

	assert.True(t, TrialEndingSoon(&in24h, now, 0))
	assert.False(t, TrialEndingSoon(&in72h, now, 0))
	assert.False(t, TrialEndingSoon(&past, now, 0))
	assert.False(t, TrialEndingSoon(nil, now, 0))
	assert.True(t, TrialEndingSoon(&in72h, now, 96*time.Hour))
}
