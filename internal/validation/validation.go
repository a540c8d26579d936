// Package validation holds the pure domain checks for intent and refund
// input. Every function returns the complete list of violations, never just
// the first one found.
package validation

import (
	"fmt"
	"strings"

	"github.com/yDkay/payment-system/pkg/enums"
	pkgerrors "github.com/yDkay/payment-system/pkg/errors"
)

// IntentInput carries the raw create-intent fields before any coercion.
type IntentInput struct {
	Amount          int64
	Currency        string
	CustomerID      string
	PaymentMethodID string
	CaptureMethod   string
}

// IntentViolations checks every create-intent rule and returns all failures.
func IntentViolations(input IntentInput) []pkgerrors.Violation {
	var violations []pkgerrors.Violation

	if input.Amount <= 0 {
		violations = append(violations, pkgerrors.Violation{
			Type:    pkgerrors.TypeValidation,
			Code:    pkgerrors.CodeInvalidParameters,
			Message: "amount must be a positive integer in minor units",
			Param:   "amount",
		})
	}

	if _, err := enums.ParseCurrency(input.Currency); err != nil {
		violations = append(violations, pkgerrors.Violation{
			Type:    pkgerrors.TypeValidation,
			Code:    pkgerrors.CodeInvalidParameters,
			Message: fmt.Sprintf("currency %q is not supported", input.Currency),
			Param:   "currency",
		})
	}

	if strings.TrimSpace(input.CustomerID) == "" {
		violations = append(violations, pkgerrors.Violation{
			Type:    pkgerrors.TypeValidation,
			Code:    pkgerrors.CodeParameterMissing,
			Message: "customer_id is required",
			Param:   "customer_id",
		})
	}

	if !enums.PaymentMethod(input.PaymentMethodID).IsValid() {
		violations = append(violations, pkgerrors.Violation{
			Type:    pkgerrors.TypeValidation,
			Code:    pkgerrors.CodeInvalidParameters,
			Message: fmt.Sprintf("payment_method_id %q is not in the accepted set", input.PaymentMethodID),
			Param:   "payment_method_id",
		})
	}

	if input.CaptureMethod != "" && !enums.CaptureMethod(input.CaptureMethod).IsValid() {
		violations = append(violations, pkgerrors.Violation{
			Type:    pkgerrors.TypeValidation,
			Code:    pkgerrors.CodeInvalidParameters,
			Message: "capture_method must be automatic or manual",
			Param:   "capture_method",
		})
	}

	return violations
}

// RefundInput carries the raw create-refund fields.
type RefundInput struct {
	PaymentID string
	Amount    int64
}

// RefundViolations checks every create-refund rule and returns all failures.
func RefundViolations(input RefundInput) []pkgerrors.Violation {
	var violations []pkgerrors.Violation

	if strings.TrimSpace(input.PaymentID) == "" {
		violations = append(violations, pkgerrors.Violation{
			Type:    pkgerrors.TypeValidation,
			Code:    pkgerrors.CodeParameterMissing,
			Message: "payment_id is required",
			Param:   "payment_id",
		})
	}

	if input.Amount <= 0 {
		violations = append(violations, pkgerrors.Violation{
			Type:    pkgerrors.TypeValidation,
			Code:    pkgerrors.CodeInvalidParameters,
			Message: "amount must be a positive integer in minor units",
			Param:   "amount",
		})
	}

	return violations
}
