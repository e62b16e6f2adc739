package enums

import "fmt"

// CashSessionStatus reflects the drawer session lifecycle for a business day.
type CashSessionStatus string

const (
	CashSessionStatusOpen   CashSessionStatus = "open"
	CashSessionStatusClosed CashSessionStatus = "closed"
)

var validCashSessionStatuses = []CashSessionStatus{
	CashSessionStatusOpen,
	CashSessionStatusClosed,
}

// String implements fmt.Stringer.
func (c CashSessionStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CashSessionStatus.
func (c CashSessionStatus) IsValid() bool {
	for _, candidate := range validCashSessionStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCashSessionStatus converts raw input into a CashSessionStatus.
func ParseCashSessionStatus(value string) (CashSessionStatus, error) {
	for _, candidate := range validCashSessionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cash session status %q", value)
}
