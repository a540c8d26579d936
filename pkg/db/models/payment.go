package models

import (
	"time"

	"github.com/yDkay/payment-system/pkg/enums"
)

// Payment is created exactly once, when an intent transitions to succeeded.
// RefundedAmount is mutated only by the refund ledger.
type Payment struct {
	ID             string              `gorm:"column:id;primaryKey"`
	IntentID       string              `gorm:"column:intent_id;not null;uniqueIndex"`
	Status         enums.PaymentStatus `gorm:"column:status;not null"`
	CapturedAmount int64               `gorm:"column:captured_amount;not null"`
	RefundedAmount int64               `gorm:"column:refunded_amount;not null;default:0"`
	Currency       enums.Currency      `gorm:"column:currency;not null"`
	AuthCode       string              `gorm:"column:auth_code;not null"`
	ReceiptURL     string              `gorm:"column:receipt_url;not null"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides GORM's pluralization.
func (Payment) TableName() string {
	return "payments"
}
