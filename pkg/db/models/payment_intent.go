package models

import (
	"encoding/json"
	"time"

	"github.com/yDkay/payment-system/pkg/enums"
)

// PaymentIntent is the client-facing record of an in-flight payment. It is
// owned by the intent state machine and mutated only through its defined
// transitions.
type PaymentIntent struct {
	ID              string              `gorm:"column:id;primaryKey"`
	Status          enums.IntentStatus  `gorm:"column:status;not null"`
	Amount          int64               `gorm:"column:amount;not null"`
	Currency        enums.Currency      `gorm:"column:currency;not null"`
	CustomerID      string              `gorm:"column:customer_id;not null"`
	PaymentMethodID enums.PaymentMethod `gorm:"column:payment_method_id;not null"`
	CaptureMethod   enums.CaptureMethod `gorm:"column:capture_method;not null"`
	ClientSecret    string              `gorm:"column:client_secret;not null"`
	Metadata        json.RawMessage     `gorm:"column:metadata"`
	FailureReason   *string             `gorm:"column:failure_reason"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides GORM's pluralization.
func (PaymentIntent) TableName() string {
	return "payment_intents"
}
