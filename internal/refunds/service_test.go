package refunds

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yDkay/payment-system/internal/payments"
	"github.com/yDkay/payment-system/pkg/config"
	"github.com/yDkay/payment-system/pkg/db"
	"github.com/yDkay/payment-system/pkg/db/models"
	"github.com/yDkay/payment-system/pkg/enums"
	pkgerrors "github.com/yDkay/payment-system/pkg/errors"
	"github.com/yDkay/payment-system/pkg/logger"
	"github.com/yDkay/payment-system/pkg/types"
)

const refundsTestDDL = `
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
  updated_at DATETIME,
  CHECK (refunded_amount <= captured_amount)
);
CREATE TABLE IF NOT EXISTS refunds (
  id TEXT PRIMARY KEY,
  payment_id TEXT NOT NULL,
  amount INTEGER NOT NULL,
  reason TEXT NOT NULL,
  status TEXT NOT NULL,
  created_at DATETIME
);`

func setupRefundsService(t *testing.T) (Service, payments.Repository, Repository) {
	t.Helper()
	ctx := context.Background()

	client, err := db.New(ctx, config.DBConfig{Driver: "sqlite", DSN: "file::memory:?cache=shared"}, nil)
	require.NoError(t, err)

	// Concurrent refund submissions need a single sqlite connection to avoid
	// shared-cache "table is locked" failures.
	sqlDB, err := client.DB().DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, client.DB().Exec(refundsTestDDL).Error)

	logg := logger.New(logger.Options{ServiceName: "refunds-test", Level: zerolog.ErrorLevel})
	paymentRepo := payments.NewRepository(client.DB())
	refundRepo := NewRepository(client.DB())
	svc, err := NewService(client, refundRepo, paymentRepo, logg)
	require.NoError(t, err)
	return svc, paymentRepo, refundRepo
}

func seedPayment(t *testing.T, repo payments.Repository, captured int64) *models.Payment {
	t.Helper()
	payment := &models.Payment{
		ID:             types.NewPaymentID(),
		IntentID:       types.NewIntentID(),
		Status:         enums.PaymentStatusSucceeded,
		CapturedAmount: captured,
		Currency:       enums.CurrencyUSD,
		AuthCode:       "A1B2C3",
		ReceiptURL:     "https://receipts.payments.local/pi_test",
	}
	require.NoError(t, repo.Create(context.Background(), payment))
	return payment
}

func TestRefundLedgerConservesCapturedAmount(t *testing.T) {
	svc, paymentRepo, _ := setupRefundsService(t)
	ctx := context.Background()
	payment := seedPayment(t, paymentRepo, 5000)

	first, err := svc.Create(ctx, CreateRefundInput{PaymentID: payment.ID, Amount: 1000})
	require.NoError(t, err)
	assert.Regexp(t, `^re_[0-9a-f]{32}$`, first.ID)
	assert.Equal(t, enums.RefundStatusSucceeded, first.Status)
	assert.Equal(t, enums.RefundReasonRequestedByCustomer, first.Reason)

	_, err = svc.Create(ctx, CreateRefundInput{PaymentID: payment.ID, Amount: 1000, Reason: "duplicate"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateRefundInput{PaymentID: payment.ID, Amount: 4000})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeRefundExceedsCapture, appErr.Code())

	reloaded, err := paymentRepo.FindByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), reloaded.RefundedAmount)
	assert.Equal(t, enums.PaymentStatusSucceeded, reloaded.Status)
}

func TestRefundFullAmountFlipsPaymentToRefunded(t *testing.T) {
	svc, paymentRepo, _ := setupRefundsService(t)
	ctx := context.Background()
	payment := seedPayment(t, paymentRepo, 3000)

	_, err := svc.Create(ctx, CreateRefundInput{PaymentID: payment.ID, Amount: 3000})
	require.NoError(t, err)

	reloaded, err := paymentRepo.FindByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusRefunded, reloaded.Status)
	assert.Equal(t, int64(3000), reloaded.RefundedAmount)

	// A fully refunded payment takes no further refunds; the capture is
	// exhausted, so the cap is what the caller hears about.
	_, err = svc.Create(ctx, CreateRefundInput{PaymentID: payment.ID, Amount: 100})
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeRefundExceedsCapture, appErr.Code())
}

func TestRefundUnknownPayment(t *testing.T) {
	svc, _, _ := setupRefundsService(t)

	_, err := svc.Create(context.Background(), CreateRefundInput{PaymentID: "pay_missing", Amount: 100})
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeResourceMissing, appErr.Code())
}

func TestRefundValidationReportsAllViolations(t *testing.T) {
	svc, _, _ := setupRefundsService(t)

	_, err := svc.Create(context.Background(), CreateRefundInput{PaymentID: "", Amount: 0})
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.TypeValidation, appErr.Type())
	assert.Len(t, appErr.Violations(), 2)
}

func TestConcurrentRefundsNeverExceedCapturedAmount(t *testing.T) {
	svc, paymentRepo, refundRepo := setupRefundsService(t)
	ctx := context.Background()
	payment := seedPayment(t, paymentRepo, 5000)

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(ctx, CreateRefundInput{PaymentID: payment.ID, Amount: 1000})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		appErr := pkgerrors.As(err)
		require.NotNil(t, appErr, "unexpected error: %v", err)
		assert.Equal(t, pkgerrors.CodeRefundExceedsCapture, appErr.Code())
	}
	assert.Equal(t, 5, succeeded)

	total, err := refundRepo.SumByPaymentID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), total)

	reloaded, err := paymentRepo.FindByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), reloaded.RefundedAmount)

	ledger, err := svc.ListByPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Len(t, ledger, 5)
}
