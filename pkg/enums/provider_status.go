package enums

import "fmt"

// ProviderStatus is the settlement state reported by the redirect payment provider.
type ProviderStatus string

const (
	ProviderStatusPending   ProviderStatus = "pending"
	ProviderStatusCompleted ProviderStatus = "completed"
	ProviderStatusFailed    ProviderStatus = "failed"
	ProviderStatusExpired   ProviderStatus = "expired"
	ProviderStatusCancelled ProviderStatus = "cancelled"
)

var validProviderStatuses = []ProviderStatus{
	ProviderStatusPending,
	ProviderStatusCompleted,
	ProviderStatusFailed,
	ProviderStatusExpired,
	ProviderStatusCancelled,
}

// Terminal reports whether the provider will not change this status again.
func (p ProviderStatus) Terminal() bool {
	return p != ProviderStatusPending && p.IsValid()
}

// String implements fmt.Stringer.
func (p ProviderStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProviderStatus.
func (p ProviderStatus) IsValid() bool {
	for _, candidate := range validProviderStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProviderStatus converts raw input into a ProviderStatus.
func ParseProviderStatus(value string) (ProviderStatus, error) {
	for _, candidate := range validProviderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid provider status %q", value)
}
