package intents

import (
	"encoding/json"
	"time"
)

// CreateIntentInput carries the raw create request. Field validation happens
// in the validation layer so every violation is reported at once.
type CreateIntentInput struct {
	Amount          int64           `json:"amount"`
	Currency        string          `json:"currency"`
	CustomerID      string          `json:"customer_id"`
	PaymentMethodID string          `json:"payment_method_id"`
	CaptureMethod   string          `json:"capture_method"`
	Metadata        json.RawMessage `json:"metadata"`
}

// ConfirmIntentInput carries confirm options. ForceFailure is a test hook
// that makes the verification run fail deterministically.
type ConfirmIntentInput struct {
	PaymentMethodID string `json:"payment_method_id"`
	ForceFailure    bool   `json:"force_failure"`
}

// ConfirmReceipt is returned immediately from Confirm; verification continues
// in the background.
type ConfirmReceipt struct {
	IntentID   string
	Status     string
	RetryAfter time.Duration
}
