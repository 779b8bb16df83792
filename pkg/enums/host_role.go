package enums

import "fmt"

// HostRole represents an account-level permissions role.
type HostRole string

const (
	HostRoleHost  HostRole = "host"
	HostRoleAdmin HostRole = "admin"
)

var validHostRoles = []HostRole{
	HostRoleHost,
	HostRoleAdmin,
}

// String implements fmt.Stringer.
func (h HostRole) String() string {
	return string(h)
}

// IsValid reports whether the value is a known HostRole.
func (h HostRole) IsValid() bool {
	for _, candidate := range validHostRoles {
		if candidate == h {
			return true
		}
	}
	return false
}

// ParseHostRole converts raw input into a HostRole.
func ParseHostRole(value string) (HostRole, error) {
	for _, candidate := range validHostRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid host role %q", value)
}
