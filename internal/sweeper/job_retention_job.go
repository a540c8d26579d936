package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/yDkay/payment-system/internal/jobs"
)

// JobRetentionJob prunes terminal verification jobs older than the retention
// window. Intents and payments are kept forever; only the per-stage audit
// rows are pruned.
type JobRetentionJob struct {
	repo      jobs.Repository
	retention time.Duration
	now       func() time.Time
}

// NewJobRetentionJob builds the verification job pruning job.
func NewJobRetentionJob(repo jobs.Repository, retention time.Duration) (*JobRetentionJob, error) {
	if repo == nil {
		return nil, errors.New("job repository is required")
	}
	if retention <= 0 {
		return nil, errors.New("retention must be positive")
	}
	return &JobRetentionJob{repo: repo, retention: retention, now: time.Now}, nil
}

// Name implements Job.
func (j *JobRetentionJob) Name() string {
	return "verification_job_retention"
}

// Run implements Job.
func (j *JobRetentionJob) Run(ctx context.Context) (int, error) {
	purged, err := j.repo.DeleteTerminalBefore(ctx, j.now().Add(-j.retention))
	return int(purged), err
}
