package jobs

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yDkay/payment-system/pkg/config"
	"github.com/yDkay/payment-system/pkg/db/models"
	"github.com/yDkay/payment-system/pkg/enums"
	"github.com/yDkay/payment-system/pkg/logger"
	"github.com/yDkay/payment-system/pkg/metrics"
)

// Outcome is the aggregate result of one verification run. FailedStage and
// FailureMessage are set only when Succeeded is false.
type Outcome struct {
	Succeeded      bool
	FailedStage    enums.StageType
	FailureMessage string
}

// stagePlan carries every random decision for one stage. All randomness is
// drawn before the stage goroutines start because rand.Rand is not safe for
// concurrent use.
type stagePlan struct {
	jobID    uuid.UUID
	stage    enums.StageType
	jitter   time.Duration
	duration time.Duration
	fails    bool
}

// Orchestrator runs the five verification stages for a confirmed intent. At
// most one run per intent is admitted at a time.
type Orchestrator struct {
	repo    Repository
	cfg     config.JobsConfig
	metrics *metrics.StageMetrics
	logg    *logger.Logger

	randMu sync.Mutex
	rng    *rand.Rand

	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

// NewOrchestrator builds the stage orchestrator.
func NewOrchestrator(repo Repository, cfg config.JobsConfig, stageMetrics *metrics.StageMetrics, logg *logger.Logger) (*Orchestrator, error) {
	if repo == nil {
		return nil, errors.New("job repository is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Orchestrator{
		repo:     repo,
		cfg:      cfg,
		metrics:  stageMetrics,
		logg:     logg,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		inflight: make(map[string]struct{}),
	}, nil
}

// Run executes all five stages concurrently and blocks until every stage is
// terminal, then returns the aggregate outcome. Returning is the single
// completion signal; callers finalize the intent from the returned outcome.
func (o *Orchestrator) Run(ctx context.Context, intentID string, forceFailure bool) (*Outcome, error) {
	if intentID == "" {
		return nil, errors.New("intent id is required")
	}
	if !o.admit(intentID) {
		return nil, fmt.Errorf("verification already running for intent %s", intentID)
	}
	defer o.release(intentID)

	plans := o.plan(forceFailure)

	records := make([]*models.VerificationJob, 0, len(plans))
	for _, plan := range plans {
		records = append(records, &models.VerificationJob{
			ID:       plan.jobID,
			IntentID: intentID,
			Stage:    plan.stage,
			Status:   enums.JobStatusPending,
			Position: plan.stage.Position(),
		})
	}
	if err := o.repo.CreateBatch(ctx, records); err != nil {
		return nil, fmt.Errorf("creating verification jobs: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, plan := range plans {
		plan := plan
		group.Go(func() error {
			return o.runStage(groupCtx, intentID, plan)
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	outcome := &Outcome{Succeeded: true}
	for _, plan := range plans {
		if plan.fails {
			outcome.Succeeded = false
			outcome.FailedStage = plan.stage
			outcome.FailureMessage = plan.stage.FailureMessage()
			break
		}
	}
	o.metrics.IncIntentOutcome(outcomeLabel(outcome))
	return outcome, nil
}

// Running reports whether a verification run is currently admitted for the
// intent.
func (o *Orchestrator) Running(intentID string) bool {
	o.inflightMu.Lock()
	defer o.inflightMu.Unlock()
	_, ok := o.inflight[intentID]
	return ok
}

func (o *Orchestrator) admit(intentID string) bool {
	o.inflightMu.Lock()
	defer o.inflightMu.Unlock()
	if _, ok := o.inflight[intentID]; ok {
		return false
	}
	o.inflight[intentID] = struct{}{}
	return true
}

func (o *Orchestrator) release(intentID string) {
	o.inflightMu.Lock()
	defer o.inflightMu.Unlock()
	delete(o.inflight, intentID)
}

// plan decides the whole run up front: whether it fails, which single stage
// fails, and every per-stage delay.
func (o *Orchestrator) plan(forceFailure bool) []stagePlan {
	o.randMu.Lock()
	defer o.randMu.Unlock()

	stages := enums.AllStageTypes()
	failingIndex := -1
	if forceFailure || o.rng.Float64() < o.cfg.FailureRate {
		failingIndex = o.rng.Intn(len(stages))
	}

	window := o.cfg.StageMaxDuration - o.cfg.StageMinDuration
	plans := make([]stagePlan, 0, len(stages))
	for i, stage := range stages {
		duration := o.cfg.StageMinDuration
		if window > 0 {
			duration += time.Duration(o.rng.Int63n(int64(window) + 1))
		}
		var jitter time.Duration
		if o.cfg.StartJitterMax > 0 {
			jitter = time.Duration(o.rng.Int63n(int64(o.cfg.StartJitterMax) + 1))
		}
		plans = append(plans, stagePlan{
			jobID:    uuid.New(),
			stage:    stage,
			jitter:   jitter,
			duration: duration,
			fails:    i == failingIndex,
		})
	}
	return plans
}

func (o *Orchestrator) runStage(ctx context.Context, intentID string, plan stagePlan) error {
	ctx = o.logg.WithIntentID(ctx, intentID)
	ctx = o.logg.WithStage(ctx, plan.stage.String())

	if err := sleepCtx(ctx, plan.jitter); err != nil {
		return err
	}
	if err := o.repo.MarkProcessing(ctx, plan.jobID, time.Now().UTC()); err != nil {
		return fmt.Errorf("marking %s processing: %w", plan.stage, err)
	}
	o.logg.Debug(ctx, "verification stage started")

	if err := sleepCtx(ctx, plan.duration); err != nil {
		return err
	}

	completedAt := time.Now().UTC()
	if plan.fails {
		if err := o.repo.MarkFailed(ctx, plan.jobID, completedAt, plan.stage.FailureMessage()); err != nil {
			return fmt.Errorf("marking %s failed: %w", plan.stage, err)
		}
		o.metrics.ObserveStage(plan.stage.String(), enums.JobStatusFailed.String(), plan.duration)
		o.logg.Warn(ctx, "verification stage failed")
		return nil
	}
	if err := o.repo.MarkCompleted(ctx, plan.jobID, completedAt); err != nil {
		return fmt.Errorf("marking %s completed: %w", plan.stage, err)
	}
	o.metrics.ObserveStage(plan.stage.String(), enums.JobStatusCompleted.String(), plan.duration)
	o.logg.Debug(ctx, "verification stage completed")
	return nil
}

func outcomeLabel(outcome *Outcome) string {
	if outcome.Succeeded {
		return enums.IntentStatusSucceeded.String()
	}
	return enums.IntentStatusFailed.String()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
