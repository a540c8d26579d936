package types

import (
	"strings"

	"github.com/google/uuid"
)

const (
	intentIDPrefix  = "pi"
	paymentIDPrefix = "pay"
	refundIDPrefix  = "re"
)

func newPrefixedID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewIntentID mints a payment intent identifier.
func NewIntentID() string {
	return newPrefixedID(intentIDPrefix)
}

// NewPaymentID mints a payment identifier.
func NewPaymentID() string {
	return newPrefixedID(paymentIDPrefix)
}

// NewRefundID mints a refund identifier.
func NewRefundID() string {
	return newPrefixedID(refundIDPrefix)
}

// NewClientSecret derives the client-side confirmation secret for an intent.
func NewClientSecret(intentID string) string {
	return intentID + "_secret_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewAuthCode mints the short issuer-style authorization code recorded on a
// captured payment.
func NewAuthCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
}

// NewReceiptURL builds the receipt reference for a captured intent.
func NewReceiptURL(intentID string) string {
	return "https://receipts.payments.local/" + intentID
}
