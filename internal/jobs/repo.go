package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yDkay/payment-system/pkg/db/models"
	"github.com/yDkay/payment-system/pkg/enums"
)

// Repository manages persistence for verification jobs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateBatch(ctx context.Context, jobs []*models.VerificationJob) error
	MarkProcessing(ctx context.Context, id uuid.UUID, startedAt time.Time) error
	MarkCompleted(ctx context.Context, id uuid.UUID, completedAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, completedAt time.Time, message string) error
	ListByIntentID(ctx context.Context, intentID string) ([]models.VerificationJob, error)
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a verification job repository bound to the provided
// database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateBatch(ctx context.Context, jobs []*models.VerificationJob) error {
	if len(jobs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(jobs).Error
}

func (r *repository) MarkProcessing(ctx context.Context, id uuid.UUID, startedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.VerificationJob{}).
		Where("id = ? AND status = ?", id, enums.JobStatusPending).
		Updates(map[string]any{
			"status":     enums.JobStatusProcessing,
			"started_at": startedAt,
		}).Error
}

func (r *repository) MarkCompleted(ctx context.Context, id uuid.UUID, completedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.VerificationJob{}).
		Where("id = ? AND status = ?", id, enums.JobStatusProcessing).
		Updates(map[string]any{
			"status":       enums.JobStatusCompleted,
			"completed_at": completedAt,
		}).Error
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, completedAt time.Time, message string) error {
	return r.db.WithContext(ctx).
		Model(&models.VerificationJob{}).
		Where("id = ? AND status = ?", id, enums.JobStatusProcessing).
		Updates(map[string]any{
			"status":        enums.JobStatusFailed,
			"completed_at":  completedAt,
			"error_message": message,
		}).Error
}

func (r *repository) ListByIntentID(ctx context.Context, intentID string) ([]models.VerificationJob, error) {
	var jobs []models.VerificationJob
	if err := r.db.WithContext(ctx).
		Where("intent_id = ?", intentID).
		Order("position ASC").
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *repository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?", []enums.JobStatus{enums.JobStatusCompleted, enums.JobStatusFailed}, cutoff).
		Delete(&models.VerificationJob{})
	return result.RowsAffected, result.Error
}
