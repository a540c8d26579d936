package jobs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yDkay/payment-system/pkg/config"
	"github.com/yDkay/payment-system/pkg/enums"
	"github.com/yDkay/payment-system/pkg/logger"
)

func setupJobsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	// Shared-cache sqlite throws "table is locked" under concurrent stage
	// writers unless access is funneled through a single connection.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	ddl := `
CREATE TABLE IF NOT EXISTS verification_jobs (
  id TEXT PRIMARY KEY,
  intent_id TEXT NOT NULL,
  stage TEXT NOT NULL,
  status TEXT NOT NULL,
  position INTEGER NOT NULL,
  started_at DATETIME,
  completed_at DATETIME,
  error_message TEXT,
  created_at DATETIME,
  UNIQUE (intent_id, stage)
);`
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

func testJobsConfig() config.JobsConfig {
	return config.JobsConfig{
		StartJitterMax:   time.Millisecond,
		StageMinDuration: time.Millisecond,
		StageMaxDuration: 2 * time.Millisecond,
		FailureRate:      0,
		RetryAfter:       time.Second,
	}
}

func newTestOrchestrator(t *testing.T, db *gorm.DB, cfg config.JobsConfig) *Orchestrator {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "jobs-test", Level: zerolog.ErrorLevel})
	orchestrator, err := NewOrchestrator(NewRepository(db), cfg, nil, logg)
	require.NoError(t, err)
	return orchestrator
}

func TestOrchestratorSuccessfulRunCompletesAllStages(t *testing.T) {
	db := setupJobsTestDB(t)
	orchestrator := newTestOrchestrator(t, db, testJobsConfig())
	ctx := context.Background()
	intentID := fmt.Sprintf("pi_%d", time.Now().UnixNano())

	outcome, err := orchestrator.Run(ctx, intentID, false)
	require.NoError(t, err)
	assert.True(t, outcome.Succeeded)
	assert.Empty(t, outcome.FailedStage)

	jobs, err := NewRepository(db).ListByIntentID(ctx, intentID)
	require.NoError(t, err)
	require.Len(t, jobs, len(enums.AllStageTypes()))
	for i, job := range jobs {
		assert.Equal(t, enums.JobStatusCompleted, job.Status)
		assert.Equal(t, i+1, job.Position)
		require.NotNil(t, job.StartedAt)
		require.NotNil(t, job.CompletedAt)
		assert.Nil(t, job.ErrorMessage)
	}
}

func TestOrchestratorForcedFailureFailsExactlyOneStage(t *testing.T) {
	db := setupJobsTestDB(t)
	orchestrator := newTestOrchestrator(t, db, testJobsConfig())
	ctx := context.Background()
	intentID := fmt.Sprintf("pi_%d", time.Now().UnixNano())

	outcome, err := orchestrator.Run(ctx, intentID, true)
	require.NoError(t, err)
	assert.False(t, outcome.Succeeded)
	assert.True(t, outcome.FailedStage.IsValid())
	assert.Equal(t, outcome.FailedStage.FailureMessage(), outcome.FailureMessage)

	jobs, err := NewRepository(db).ListByIntentID(ctx, intentID)
	require.NoError(t, err)
	require.Len(t, jobs, len(enums.AllStageTypes()))

	failed := 0
	for _, job := range jobs {
		require.True(t, job.Status.IsTerminal(), "stage %s left in %s", job.Stage, job.Status)
		if job.Status == enums.JobStatusFailed {
			failed++
			assert.Equal(t, outcome.FailedStage, job.Stage)
			require.NotNil(t, job.ErrorMessage)
			assert.Equal(t, outcome.FailureMessage, *job.ErrorMessage)
		}
	}
	assert.Equal(t, 1, failed)
}

func TestOrchestratorHighFailureRateStillFailsSingleStage(t *testing.T) {
	db := setupJobsTestDB(t)
	cfg := testJobsConfig()
	cfg.FailureRate = 1
	orchestrator := newTestOrchestrator(t, db, cfg)
	ctx := context.Background()
	intentID := fmt.Sprintf("pi_%d", time.Now().UnixNano())

	outcome, err := orchestrator.Run(ctx, intentID, false)
	require.NoError(t, err)
	assert.False(t, outcome.Succeeded)

	jobs, err := NewRepository(db).ListByIntentID(ctx, intentID)
	require.NoError(t, err)
	failed := 0
	for _, job := range jobs {
		if job.Status == enums.JobStatusFailed {
			failed++
		}
	}
	assert.Equal(t, 1, failed)
}

func TestOrchestratorRejectsConcurrentRunForSameIntent(t *testing.T) {
	db := setupJobsTestDB(t)
	cfg := testJobsConfig()
	cfg.StageMinDuration = 50 * time.Millisecond
	cfg.StageMaxDuration = 60 * time.Millisecond
	orchestrator := newTestOrchestrator(t, db, cfg)
	ctx := context.Background()
	intentID := fmt.Sprintf("pi_%d", time.Now().UnixNano())

	done := make(chan error, 1)
	go func() {
		_, err := orchestrator.Run(ctx, intentID, false)
		done <- err
	}()

	require.Eventually(t, func() bool {
		return orchestrator.Running(intentID)
	}, time.Second, time.Millisecond)

	_, err := orchestrator.Run(ctx, intentID, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	require.NoError(t, <-done)
	assert.False(t, orchestrator.Running(intentID))
}

func TestRepositoryDeleteTerminalBefore(t *testing.T) {
	db := setupJobsTestDB(t)
	orchestrator := newTestOrchestrator(t, db, testJobsConfig())
	ctx := context.Background()
	intentID := fmt.Sprintf("pi_%d", time.Now().UnixNano())

	_, err := orchestrator.Run(ctx, intentID, false)
	require.NoError(t, err)

	repo := NewRepository(db)
	purged, err := repo.DeleteTerminalBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, purged, int64(len(enums.AllStageTypes())))

	jobs, err := repo.ListByIntentID(ctx, intentID)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}
