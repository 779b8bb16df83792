package billing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/hauslist/hauslist-backend/pkg/enums"
	pkgerrors "github.com/hauslist/hauslist-backend/pkg/errors"
)

// NotifyTrialEndingWindow is how close to trial end a listing must be before
// hosts get a heads-up notification.
const NotifyTrialEndingWindow = 48 * time.Hour

// MapProviderStatus derives the internal billing status and visibility flag
// from provider subscription state. Every reconciliation path goes through
// this one function; none may derive status on its own.
//
// Rules are evaluated in order: a pending cancellation on a live subscription
// wins over the plain trialing/active mapping.
func MapProviderStatus(providerStatus stripe.SubscriptionStatus, cancelAtPeriodEnd bool, trialEnd *time.Time) (enums.BillingStatus, bool, error) {
	status := stripe.SubscriptionStatus(strings.TrimSpace(strings.ToLower(string(providerStatus))))

	if cancelAtPeriodEnd && (status == stripe.SubscriptionStatusTrialing || status == stripe.SubscriptionStatusActive) {
		return enums.BillingStatusCancelScheduled, true, nil
	}

	switch status {
	case stripe.SubscriptionStatusTrialing:
		return enums.BillingStatusTrial, true, nil
	case stripe.SubscriptionStatusActive:
		return enums.BillingStatusActive, true, nil
	case stripe.SubscriptionStatusPastDue,
		stripe.SubscriptionStatusUnpaid,
		stripe.SubscriptionStatusIncomplete,
		stripe.SubscriptionStatusIncompleteExpired:
		return enums.BillingStatusPaused, false, nil
	case stripe.SubscriptionStatusCanceled, "ended":
		return enums.BillingStatusCanceled, false, nil
	}

	return "", false, pkgerrors.New(pkgerrors.CodeDataIntegrity, "unrecognized provider subscription status").
		WithDetails(map[string]any{"provider_status": string(providerStatus)})
}

// ChangeFromSubscription maps one provider subscription observation into a
// StateChange ready for the conditional write. All three reconciliation
// paths build their writes through here so they can never diverge.
func ChangeFromSubscription(sub *stripe.Subscription, propertyID, hostID uuid.UUID, eventAt time.Time) (StateChange, error) {
	if sub == nil {
		return StateChange{}, pkgerrors.New(pkgerrors.CodeDependency, "provider subscription is nil")
	}

	trialEnd := UnixTime(sub.TrialEnd)
	status, active, err := MapProviderStatus(sub.Status, sub.CancelAtPeriodEnd, trialEnd)
	if err != nil {
		return StateChange{}, err
	}

	change := StateChange{
		PropertyID:  propertyID,
		HostID:      hostID,
		Status:      status,
		IsActive:    active,
		TrialEndsAt: trialEnd,
		EventAt:     eventAt,
	}
	if sub.ID != "" {
		id := sub.ID
		change.SubscriptionID = &id
	}
	if sub.Customer != nil && sub.Customer.ID != "" {
		id := sub.Customer.ID
		change.CustomerID = &id
	}
	return change, nil
}

// UnixTime converts a provider epoch-seconds field, where zero means unset.
func UnixTime(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}

// PeriodEnd pulls the current period end off the subscription's first item.
func PeriodEnd(sub *stripe.Subscription) *time.Time {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil
	}
	return UnixTime(sub.Items.Data[0].CurrentPeriodEnd)
}

// TrialEndingSoon reports whether the trial expires within the notification
// window relative to now. A nil or already-elapsed trial end never matches.
// A non-positive window falls back to NotifyTrialEndingWindow.
func TrialEndingSoon(trialEnd *time.Time, now time.Time, window time.Duration) bool {
	if trialEnd == nil {
		return false
	}
	if !trialEnd.After(now) {
		return false
	}
	if window <= 0 {
		window = NotifyTrialEndingWindow
	}
	return trialEnd.Sub(now) <= window
}
