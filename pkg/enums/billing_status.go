package enums

import "fmt"

// BillingStatus is the internal billing state of a single property listing.
type BillingStatus string

const (
	BillingStatusPendingPayment  BillingStatus = "pending_payment"
	BillingStatusTrial           BillingStatus = "trial"
	BillingStatusActive          BillingStatus = "active"
	BillingStatusPaused          BillingStatus = "paused"
	BillingStatusCancelScheduled BillingStatus = "cancel_scheduled"
	BillingStatusCanceled        BillingStatus = "canceled"
)

var validBillingStatuses = []BillingStatus{
	BillingStatusPendingPayment,
	BillingStatusTrial,
	BillingStatusActive,
	BillingStatusPaused,
	BillingStatusCancelScheduled,
	BillingStatusCanceled,
}

// String implements fmt.Stringer.
func (b BillingStatus) String() string {
	return string(b)
}

// IsValid reports whether the value is known.
func (b BillingStatus) IsValid() bool {
	for _, candidate := range validBillingStatuses {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBillingStatus converts raw input into a BillingStatus.
func ParseBillingStatus(value string) (BillingStatus, error) {
	for _, candidate := range validBillingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid billing status %q", value)
}
