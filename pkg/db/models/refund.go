package models

import (
	"time"

	"github.com/yDkay/payment-system/pkg/enums"
)

// Refund is append-only; a row is never mutated after creation.
type Refund struct {
	ID        string             `gorm:"column:id;primaryKey"`
	PaymentID string             `gorm:"column:payment_id;not null;index"`
	Amount    int64              `gorm:"column:amount;not null"`
	Reason    enums.RefundReason `gorm:"column:reason;not null"`
	Status    enums.RefundStatus `gorm:"column:status;not null"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
}

// TableName overrides GORM's pluralization.
func (Refund) TableName() string {
	return "refunds"
}
