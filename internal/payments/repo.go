// Package payments persists captured payments. Rows are created once by the
// intent lifecycle and mutated only by the refund ledger.
package payments

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/yDkay/payment-system/pkg/db/models"
	"github.com/yDkay/payment-system/pkg/enums"
)

// ErrOverRefund is returned when an increment would push refunded_amount past
// captured_amount.
var ErrOverRefund = errors.New("refund would exceed captured amount")

// Repository manages persistence for captured payments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	FindByIntentID(ctx context.Context, intentID string) (*models.Payment, error)
	// AddRefundedAmount increments the refunded total and flips the payment to
	// refunded when the captured amount is fully consumed. It only succeeds
	// while the increment keeps refunded_amount within captured_amount.
	AddRefundedAmount(ctx context.Context, id string, amount int64) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "intent_id = ?", intentID).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) AddRefundedAmount(ctx context.Context, id string, amount int64) error {
	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND refunded_amount + ? <= captured_amount", id, amount).
		Updates(map[string]any{
			"refunded_amount": gorm.Expr("refunded_amount + ?", amount),
			"status": gorm.Expr(
				"CASE WHEN refunded_amount + ? = captured_amount THEN ? ELSE status END",
				amount, enums.PaymentStatusRefunded,
			),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOverRefund
	}
	return nil
}
