package sweeper

import (
	"context"
	"errors"
)

// idempotencySweeper is the slice of the idempotency manager the job needs.
type idempotencySweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// IdempotencyJob purges expired idempotency records.
type IdempotencyJob struct {
	manager idempotencySweeper
}

// NewIdempotencyJob builds the idempotency sweep job.
func NewIdempotencyJob(manager idempotencySweeper) (*IdempotencyJob, error) {
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	return &IdempotencyJob{manager: manager}, nil
}

// Name implements Job.
func (j *IdempotencyJob) Name() string {
	return "idempotency_expiry"
}

// Run implements Job.
func (j *IdempotencyJob) Run(ctx context.Context) (int, error) {
	return j.manager.Sweep(ctx)
}
