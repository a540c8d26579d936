package intents

import (
	"context"

	"gorm.io/gorm"

	"github.com/yDkay/payment-system/pkg/db/models"
	"github.com/yDkay/payment-system/pkg/enums"
)

// Repository manages persistence for payment intents. Status transitions are
// compare-and-set so concurrent writers cannot double-apply one.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, intent *models.PaymentIntent) error
	FindByID(ctx context.Context, id string) (*models.PaymentIntent, error)
	// BeginProcessing moves the intent out of requires_confirmation and pins
	// the payment method used for the run. Returns false when the intent was
	// not in requires_confirmation anymore.
	BeginProcessing(ctx context.Context, id string, paymentMethod enums.PaymentMethod) (bool, error)
	// Finalize moves a processing intent to a terminal status. Returns false
	// when another finalization already won.
	Finalize(ctx context.Context, id string, status enums.IntentStatus, failureReason *string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an intent repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, intent *models.PaymentIntent) error {
	return r.db.WithContext(ctx).Create(intent).Error
}

func (r *repository) FindByID(ctx context.Context, id string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := r.db.WithContext(ctx).First(&intent, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *repository) BeginProcessing(ctx context.Context, id string, paymentMethod enums.PaymentMethod) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("id = ? AND status = ?", id, enums.IntentStatusRequiresConfirmation).
		Updates(map[string]any{
			"status":            enums.IntentStatusProcessing,
			"payment_method_id": paymentMethod,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) Finalize(ctx context.Context, id string, status enums.IntentStatus, failureReason *string) (bool, error) {
	if !status.IsTerminal() {
		return false, gorm.ErrInvalidValue
	}
	result := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("id = ? AND status = ?", id, enums.IntentStatusProcessing).
		Updates(map[string]any{
			"status":         status,
			"failure_reason": failureReason,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
