package enums

import "fmt"

// HeldOrderStatus tracks a parked cart from hold to resume or discard.
type HeldOrderStatus string

const (
	HeldOrderStatusHeld      HeldOrderStatus = "held"
	HeldOrderStatusResumed   HeldOrderStatus = "resumed"
	HeldOrderStatusDiscarded HeldOrderStatus = "discarded"
)

var validHeldOrderStatuses = []HeldOrderStatus{
	HeldOrderStatusHeld,
	HeldOrderStatusResumed,
	HeldOrderStatusDiscarded,
}

// String implements fmt.Stringer.
func (h HeldOrderStatus) String() string {
	return string(h)
}

// IsValid reports whether the value is a known HeldOrderStatus.
func (h HeldOrderStatus) IsValid() bool {
	for _, candidate := range validHeldOrderStatuses {
		if candidate == h {
			return true
		}
	}
	return false
}

// ParseHeldOrderStatus converts raw input into a HeldOrderStatus.
func ParseHeldOrderStatus(value string) (HeldOrderStatus, error) {
	for _, candidate := range validHeldOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid held order status %q", value)
}
