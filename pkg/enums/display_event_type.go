package enums

import "fmt"

// DisplayEventType names the one-way events mirrored to the customer display.
type DisplayEventType string

const (
	DisplayEventCartUpdate     DisplayEventType = "cart_update"
	DisplayEventPaymentStart   DisplayEventType = "payment_start"
	DisplayEventPaymentSuccess DisplayEventType = "payment_success"
	DisplayEventPaymentFailed  DisplayEventType = "payment_failed"
	DisplayEventSaleCompleted  DisplayEventType = "sale_completed"
)

var validDisplayEventTypes = []DisplayEventType{
	DisplayEventCartUpdate,
	DisplayEventPaymentStart,
	DisplayEventPaymentSuccess,
	DisplayEventPaymentFailed,
	DisplayEventSaleCompleted,
}

// String implements fmt.Stringer.
func (d DisplayEventType) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DisplayEventType.
func (d DisplayEventType) IsValid() bool {
	for _, candidate := range validDisplayEventTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDisplayEventType converts raw input into a DisplayEventType.
func ParseDisplayEventType(value string) (DisplayEventType, error) {
	for _, candidate := range validDisplayEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid display event type %q", value)
}
