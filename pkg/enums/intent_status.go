package enums

import "fmt"

// IntentStatus tracks the lifecycle of a payment intent.
type IntentStatus string

const (
	IntentStatusRequiresConfirmation IntentStatus = "requires_confirmation"
	IntentStatusProcessing           IntentStatus = "processing"
	IntentStatusSucceeded            IntentStatus = "succeeded"
	IntentStatusFailed               IntentStatus = "failed"
	// IntentStatusCanceled is reserved in the vocabulary. No transition
	// currently produces it.
	IntentStatusCanceled IntentStatus = "canceled"
)

var validIntentStatuses = []IntentStatus{
	IntentStatusRequiresConfirmation,
	IntentStatusProcessing,
	IntentStatusSucceeded,
	IntentStatusFailed,
	IntentStatusCanceled,
}

// String implements fmt.Stringer.
func (s IntentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known IntentStatus.
func (s IntentStatus) IsValid() bool {
	for _, candidate := range validIntentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is permitted.
func (s IntentStatus) IsTerminal() bool {
	return s == IntentStatusSucceeded || s == IntentStatusFailed || s == IntentStatusCanceled
}

// ParseIntentStatus converts raw input into an IntentStatus.
func ParseIntentStatus(value string) (IntentStatus, error) {
	for _, candidate := range validIntentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid intent status %q", value)
}
