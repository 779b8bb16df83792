package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeBillingPaused NotificationType = "billing_paused"
	NotificationTypeTrialEnding   NotificationType = "trial_ending"
	NotificationTypeSystem        NotificationType = "system_announcement"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeBillingPaused,
	NotificationTypeTrialEnding,
	NotificationTypeSystem,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
