package refunds

import (
	"context"

	"gorm.io/gorm"

	"github.com/yDkay/payment-system/pkg/db/models"
)

// Repository manages persistence for the append-only refund ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, refund *models.Refund) error
	ListByPaymentID(ctx context.Context, paymentID string) ([]models.Refund, error)
	SumByPaymentID(ctx context.Context, paymentID string) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a refund repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, refund *models.Refund) error {
	return r.db.WithContext(ctx).Create(refund).Error
}

func (r *repository) ListByPaymentID(ctx context.Context, paymentID string) ([]models.Refund, error) {
	var refunds []models.Refund
	if err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC").
		Find(&refunds).Error; err != nil {
		return nil, err
	}
	return refunds, nil
}

func (r *repository) SumByPaymentID(ctx context.Context, paymentID string) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Where("payment_id = ?", paymentID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
