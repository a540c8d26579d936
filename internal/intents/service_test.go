package intents

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yDkay/payment-system/internal/jobs"
	"github.com/yDkay/payment-system/internal/payments"
	"github.com/yDkay/payment-system/pkg/config"
	"github.com/yDkay/payment-system/pkg/db"
	"github.com/yDkay/payment-system/pkg/enums"
	pkgerrors "github.com/yDkay/payment-system/pkg/errors"
	"github.com/yDkay/payment-system/pkg/logger"
)

const intentsTestDDL = `
CREATE TABLE IF NOT EXISTS payment_intents (
  id TEXT PRIMARY KEY,
  status TEXT NOT NULL,
  amount INTEGER NOT NULL,
  currency TEXT NOT NULL,
  customer_id TEXT NOT NULL,
  payment_method_id TEXT NOT NULL,
  capture_method TEXT NOT NULL,
  client_secret TEXT NOT NULL,
  metadata TEXT,
  failure_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME
);
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
);
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  intent_id TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL,
  captured_amount INTEGER NOT NULL,
  refunded_amount INTEGER NOT NULL DEFAULT 0,
  currency TEXT NOT NULL,
  auth_code TEXT NOT NULL,
  receipt_url TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`

func setupIntentsService(t *testing.T) (Service, *db.Client) {
	t.Helper()
	ctx := context.Background()

	client, err := db.New(ctx, config.DBConfig{Driver: "sqlite", DSN: "file::memory:?cache=shared"}, nil)
	require.NoError(t, err)

	// Shared-cache sqlite throws "table is locked" under concurrent stage
	// writers unless access is funneled through a single connection.
	sqlDB, err := client.DB().DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, client.DB().Exec(intentsTestDDL).Error)

	cfg := config.JobsConfig{
		StartJitterMax:   time.Millisecond,
		StageMinDuration: time.Millisecond,
		StageMaxDuration: 2 * time.Millisecond,
		FailureRate:      0,
		RetryAfter:       2 * time.Second,
	}
	logg := logger.New(logger.Options{ServiceName: "intents-test", Level: zerolog.ErrorLevel})
	jobRepo := jobs.NewRepository(client.DB())
	orchestrator, err := jobs.NewOrchestrator(jobRepo, cfg, nil, logg)
	require.NoError(t, err)

	svc, err := NewService(client, NewRepository(client.DB()), payments.NewRepository(client.DB()), jobRepo, orchestrator, cfg, logg)
	require.NoError(t, err)
	return svc, client
}

func validCreateInput() CreateIntentInput {
	return CreateIntentInput{
		Amount:          2599,
		Currency:        "USD",
		CustomerID:      "c1",
		PaymentMethodID: "pm_fake_visa",
	}
}

func waitForTerminal(t *testing.T, svc Service, intentID string) enums.IntentStatus {
	t.Helper()
	var status enums.IntentStatus
	require.Eventually(t, func() bool {
		intent, err := svc.Get(context.Background(), intentID)
		if err != nil {
			return false
		}
		status = intent.Status
		return status.IsTerminal()
	}, 5*time.Second, 5*time.Millisecond)
	return status
}

func TestServiceCreateIntent(t *testing.T) {
	svc, _ := setupIntentsService(t)

	intent, err := svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)
	assert.Regexp(t, `^pi_[0-9a-f]{32}$`, intent.ID)
	assert.Equal(t, enums.IntentStatusRequiresConfirmation, intent.Status)
	assert.Equal(t, int64(2599), intent.Amount)
	assert.Equal(t, enums.CurrencyUSD, intent.Currency)
	assert.Equal(t, enums.CaptureMethodAutomatic, intent.CaptureMethod)
	assert.Contains(t, intent.ClientSecret, intent.ID+"_secret_")
}

func TestServiceCreateIntentReportsAllViolations(t *testing.T) {
	svc, _ := setupIntentsService(t)

	_, err := svc.Create(context.Background(), CreateIntentInput{
		Amount:          -5,
		Currency:        "XYZ",
		CustomerID:      "",
		PaymentMethodID: "pm_fake_visa",
	})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.TypeValidation, appErr.Type())
	assert.Len(t, appErr.Violations(), 3)
}

func TestServiceConfirmUnknownIntent(t *testing.T) {
	svc, _ := setupIntentsService(t)

	_, err := svc.Confirm(context.Background(), "pi_missing", ConfirmIntentInput{})
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeResourceMissing, appErr.Code())
}

func TestServiceConfirmLifecycleSucceeds(t *testing.T) {
	svc, client := setupIntentsService(t)
	ctx := context.Background()

	intent, err := svc.Create(ctx, validCreateInput())
	require.NoError(t, err)

	receipt, err := svc.Confirm(ctx, intent.ID, ConfirmIntentInput{})
	require.NoError(t, err)
	assert.Equal(t, enums.IntentStatusProcessing.String(), receipt.Status)
	assert.Equal(t, 2*time.Second, receipt.RetryAfter)

	status := waitForTerminal(t, svc, intent.ID)
	assert.Equal(t, enums.IntentStatusSucceeded, status)

	payment, err := svc.GetPaymentResult(ctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2599), payment.CapturedAmount)
	assert.Equal(t, enums.PaymentStatusSucceeded, payment.Status)
	assert.NotEmpty(t, payment.AuthCode)
	assert.NotEmpty(t, payment.ReceiptURL)

	jobsList, err := svc.ListJobs(ctx, intent.ID)
	require.NoError(t, err)
	require.Len(t, jobsList, 5)
	for _, job := range jobsList {
		assert.Equal(t, enums.JobStatusCompleted, job.Status)
	}

	// A terminal intent cannot be confirmed again.
	_, err = svc.Confirm(ctx, intent.ID, ConfirmIntentInput{})
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeInvalidState, appErr.Code())

	// And the terminal status cannot be overwritten.
	moved, err := NewRepository(client.DB()).Finalize(ctx, intent.ID, enums.IntentStatusFailed, nil)
	require.NoError(t, err)
	assert.False(t, moved)
}

func TestServiceConfirmForcedFailure(t *testing.T) {
	svc, _ := setupIntentsService(t)
	ctx := context.Background()

	intent, err := svc.Create(ctx, validCreateInput())
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, intent.ID, ConfirmIntentInput{ForceFailure: true})
	require.NoError(t, err)

	status := waitForTerminal(t, svc, intent.ID)
	assert.Equal(t, enums.IntentStatusFailed, status)

	failed, err := svc.Get(ctx, intent.ID)
	require.NoError(t, err)
	require.NotNil(t, failed.FailureReason)
	assert.NotEmpty(t, *failed.FailureReason)

	jobsList, err := svc.ListJobs(ctx, intent.ID)
	require.NoError(t, err)
	failedJobs := 0
	for _, job := range jobsList {
		if job.Status == enums.JobStatusFailed {
			failedJobs++
		}
	}
	assert.Equal(t, 1, failedJobs)

	// No payment exists for a failed intent.
	_, err = svc.GetPaymentResult(ctx, intent.ID)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeResourceMissing, appErr.Code())
}

func TestServicePaymentResultWhileProcessing(t *testing.T) {
	svc, _ := setupIntentsService(t)
	ctx := context.Background()

	intent, err := svc.Create(ctx, validCreateInput())
	require.NoError(t, err)

	// An unconfirmed intent has no result yet either.
	_, err = svc.GetPaymentResult(ctx, intent.ID)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeResourceMissing, appErr.Code())

	_, err = svc.Confirm(ctx, intent.ID, ConfirmIntentInput{})
	require.NoError(t, err)

	_, err = svc.GetPaymentResult(ctx, intent.ID)
	if err != nil {
		appErr = pkgerrors.As(err)
		require.NotNil(t, appErr)
		assert.Equal(t, pkgerrors.CodeStillProcessing, appErr.Code())
		assert.Equal(t, pkgerrors.TypeTooEarly, appErr.Type())
	}

	waitForTerminal(t, svc, intent.ID)
	require.NoError(t, svc.Shutdown(ctx))
}
