package enums

import "fmt"

// AttemptStatus tracks a payment attempt from selection to a terminal outcome.
type AttemptStatus string

const (
	AttemptStatusSelecting  AttemptStatus = "selecting"
	AttemptStatusInProgress AttemptStatus = "in_progress"
	AttemptStatusSucceeded  AttemptStatus = "succeeded"
	AttemptStatusFailed     AttemptStatus = "failed"
	AttemptStatusCancelled  AttemptStatus = "cancelled"
)

var validAttemptStatuses = []AttemptStatus{
	AttemptStatusSelecting,
	AttemptStatusInProgress,
	AttemptStatusSucceeded,
	AttemptStatusFailed,
	AttemptStatusCancelled,
}

// Terminal reports whether the status is a final outcome.
func (a AttemptStatus) Terminal() bool {
	switch a {
	case AttemptStatusSucceeded, AttemptStatusFailed, AttemptStatusCancelled:
		return true
	}
	return false
}

// String implements fmt.Stringer.
func (a AttemptStatus) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AttemptStatus.
func (a AttemptStatus) IsValid() bool {
	for _, candidate := range validAttemptStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAttemptStatus converts raw input into an AttemptStatus.
func ParseAttemptStatus(value string) (AttemptStatus, error) {
	for _, candidate := range validAttemptStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid attempt status %q", value)
}
