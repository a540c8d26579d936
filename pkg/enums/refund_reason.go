package enums

import "fmt"

// RefundReason is the client-declared reason for a refund.
type RefundReason string

const (
	RefundReasonDuplicate           RefundReason = "duplicate"
	RefundReasonFraudulent          RefundReason = "fraudulent"
	RefundReasonRequestedByCustomer RefundReason = "requested_by_customer"
)

var validRefundReasons = []RefundReason{
	RefundReasonDuplicate,
	RefundReasonFraudulent,
	RefundReasonRequestedByCustomer,
}

// String implements fmt.Stringer.
func (r RefundReason) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RefundReason.
func (r RefundReason) IsValid() bool {
	for _, candidate := range validRefundReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRefundReason converts raw input into a RefundReason.
func ParseRefundReason(value string) (RefundReason, error) {
	for _, candidate := range validRefundReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid refund reason %q", value)
}
