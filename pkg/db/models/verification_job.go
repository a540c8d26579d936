package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/yDkay/payment-system/pkg/enums"
)

// VerificationJob records one of the five verification stages run for a
// confirmed intent. Jobs are owned by the orchestrator and read-only to
// everyone else.
type VerificationJob struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	IntentID     string          `gorm:"column:intent_id;not null;index"`
	Stage        enums.StageType `gorm:"column:stage;not null"`
	Status       enums.JobStatus `gorm:"column:status;not null"`
	Position     int             `gorm:"column:position;not null"`
	StartedAt    *time.Time      `gorm:"column:started_at"`
	CompletedAt  *time.Time      `gorm:"column:completed_at"`
	ErrorMessage *string         `gorm:"column:error_message"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// TableName overrides GORM's pluralization.
func (VerificationJob) TableName() string {
	return "verification_jobs"
}
