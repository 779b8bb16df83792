package enums

import "fmt"

// PropertyStatus represents the editorial state of a listing.
type PropertyStatus string

const (
	PropertyStatusDraft         PropertyStatus = "draft"
	PropertyStatusPendingReview PropertyStatus = "pending_review"
	PropertyStatusApproved      PropertyStatus = "approved"
	PropertyStatusRejected      PropertyStatus = "rejected"
	PropertyStatusArchived      PropertyStatus = "archived"
)

var validPropertyStatuses = []PropertyStatus{
	PropertyStatusDraft,
	PropertyStatusPendingReview,
	PropertyStatusApproved,
	PropertyStatusRejected,
	PropertyStatusArchived,
}

// String implements fmt.Stringer.
func (p PropertyStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is known.
func (p PropertyStatus) IsValid() bool {
	for _, candidate := range validPropertyStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePropertyStatus converts raw input into a PropertyStatus.
func ParsePropertyStatus(value string) (PropertyStatus, error) {
	for _, candidate := range validPropertyStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid property status %q", value)
}
