// Package intents owns the payment intent lifecycle. An intent moves
// requires_confirmation -> processing -> succeeded | failed; canceled is
// reserved and never produced here.
package intents

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/yDkay/payment-system/internal/jobs"
	"github.com/yDkay/payment-system/internal/payments"
	"github.com/yDkay/payment-system/internal/validation"
	"github.com/yDkay/payment-system/pkg/config"
	"github.com/yDkay/payment-system/pkg/db"
	"github.com/yDkay/payment-system/pkg/db/models"
	"github.com/yDkay/payment-system/pkg/enums"
	pkgerrors "github.com/yDkay/payment-system/pkg/errors"
	"github.com/yDkay/payment-system/pkg/logger"
	"github.com/yDkay/payment-system/pkg/types"
)

// Service exposes the intent lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateIntentInput) (*models.PaymentIntent, error)
	Confirm(ctx context.Context, intentID string, input ConfirmIntentInput) (*ConfirmReceipt, error)
	Get(ctx context.Context, intentID string) (*models.PaymentIntent, error)
	ListJobs(ctx context.Context, intentID string) ([]models.VerificationJob, error)
	GetPaymentResult(ctx context.Context, intentID string) (*models.Payment, error)
	// Shutdown waits for in-flight verification runs to finalize.
	Shutdown(ctx context.Context) error
}

type service struct {
	dbClient     *db.Client
	repo         Repository
	paymentRepo  payments.Repository
	jobRepo      jobs.Repository
	orchestrator *jobs.Orchestrator
	cfg          config.JobsConfig
	logg         *logger.Logger

	runCtx    context.Context
	runCancel context.CancelFunc
	runs      sync.WaitGroup
}

// NewService wires the intent lifecycle together.
func NewService(
	dbClient *db.Client,
	repo Repository,
	paymentRepo payments.Repository,
	jobRepo jobs.Repository,
	orchestrator *jobs.Orchestrator,
	cfg config.JobsConfig,
	logg *logger.Logger,
) (Service, error) {
	if dbClient == nil {
		return nil, errors.New("db client is required")
	}
	if repo == nil {
		return nil, errors.New("intent repository is required")
	}
	if paymentRepo == nil {
		return nil, errors.New("payment repository is required")
	}
	if jobRepo == nil {
		return nil, errors.New("job repository is required")
	}
	if orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	runCtx, runCancel := context.WithCancel(context.Background())
	return &service{
		dbClient:     dbClient,
		repo:         repo,
		paymentRepo:  paymentRepo,
		jobRepo:      jobRepo,
		orchestrator: orchestrator,
		cfg:          cfg,
		logg:         logg,
		runCtx:       runCtx,
		runCancel:    runCancel,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateIntentInput) (*models.PaymentIntent, error) {
	violations := validation.IntentViolations(validation.IntentInput{
		Amount:          input.Amount,
		Currency:        input.Currency,
		CustomerID:      input.CustomerID,
		PaymentMethodID: input.PaymentMethodID,
		CaptureMethod:   input.CaptureMethod,
	})
	if len(violations) > 0 {
		return nil, pkgerrors.FromViolations(violations)
	}

	currency, err := enums.ParseCurrency(input.Currency)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidParameters, err, "invalid currency").WithParam("currency")
	}
	paymentMethod, err := enums.ParsePaymentMethod(input.PaymentMethodID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeCardUnsupported, err, "unsupported payment method").WithParam("payment_method_id")
	}
	captureMethod := enums.CaptureMethodAutomatic
	if input.CaptureMethod != "" {
		captureMethod, err = enums.ParseCaptureMethod(input.CaptureMethod)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidParameters, err, "invalid capture method").WithParam("capture_method")
		}
	}

	intentID := types.NewIntentID()
	intent := &models.PaymentIntent{
		ID:              intentID,
		Status:          enums.IntentStatusRequiresConfirmation,
		Amount:          input.Amount,
		Currency:        currency,
		CustomerID:      input.CustomerID,
		PaymentMethodID: paymentMethod,
		CaptureMethod:   captureMethod,
		ClientSecret:    types.NewClientSecret(intentID),
		Metadata:        input.Metadata,
	}
	if err := s.repo.Create(ctx, intent); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating payment intent")
	}

	s.logg.Info(s.logg.WithIntentID(ctx, intent.ID), "payment intent created")
	return intent, nil
}

func (s *service) Confirm(ctx context.Context, intentID string, input ConfirmIntentInput) (*ConfirmReceipt, error) {
	ctx = s.logg.WithIntentID(ctx, intentID)

	intent, err := s.findIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Status != enums.IntentStatusRequiresConfirmation {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState,
			fmt.Sprintf("intent cannot be confirmed while in status %q", intent.Status)).
			WithDetails(map[string]string{"status": intent.Status.String()})
	}

	paymentMethod := intent.PaymentMethodID
	if input.PaymentMethodID != "" {
		paymentMethod, err = enums.ParsePaymentMethod(input.PaymentMethodID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeCardUnsupported, err, "unsupported payment method").
				WithParam("payment_method_id")
		}
	}

	moved, err := s.repo.BeginProcessing(ctx, intentID, paymentMethod)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "confirming payment intent")
	}
	if !moved {
		// Lost a confirm race; the other caller owns the run.
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "intent was confirmed concurrently").
			WithDetails(map[string]string{"status": enums.IntentStatusProcessing.String()})
	}

	s.logg.Info(ctx, "payment intent confirmed, verification started")
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		s.runVerification(intentID, input.ForceFailure)
	}()

	return &ConfirmReceipt{
		IntentID:   intentID,
		Status:     enums.IntentStatusProcessing.String(),
		RetryAfter: s.cfg.RetryAfter,
	}, nil
}

func (s *service) Get(ctx context.Context, intentID string) (*models.PaymentIntent, error) {
	return s.findIntent(ctx, intentID)
}

func (s *service) ListJobs(ctx context.Context, intentID string) ([]models.VerificationJob, error) {
	if _, err := s.findIntent(ctx, intentID); err != nil {
		return nil, err
	}
	list, err := s.jobRepo.ListByIntentID(ctx, intentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing verification jobs")
	}
	return list, nil
}

func (s *service) GetPaymentResult(ctx context.Context, intentID string) (*models.Payment, error) {
	intent, err := s.findIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	switch intent.Status {
	case enums.IntentStatusProcessing:
		return nil, pkgerrors.New(pkgerrors.CodeStillProcessing, "payment verification is still in progress").
			WithDetails(map[string]any{"retry_after_seconds": int(s.cfg.RetryAfter.Seconds())})
	case enums.IntentStatusRequiresConfirmation:
		return nil, pkgerrors.New(pkgerrors.CodeResourceMissing, "intent has not been confirmed, no payment exists").
			WithParam("intent_id").
			WithDetails(map[string]string{"status": intent.Status.String()})
	case enums.IntentStatusFailed:
		// Terminal without success means no payment exists to return.
		details := map[string]string{"status": intent.Status.String()}
		if intent.FailureReason != nil {
			details["failure_reason"] = *intent.FailureReason
		}
		return nil, pkgerrors.New(pkgerrors.CodeResourceMissing, "no payment exists for this intent").
			WithParam("intent_id").
			WithDetails(details)
	}

	payment, err := s.paymentRepo.FindByIntentID(ctx, intentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeResourceMissing, "payment not found for intent").WithParam("intent_id")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fetching payment")
	}
	return payment, nil
}

// Shutdown stops admitting new verification work and waits for running
// finalizations, bounded by ctx.
func (s *service) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.runCancel()
		return nil
	case <-ctx.Done():
		s.runCancel()
		return fmt.Errorf("verification runs still in flight: %w", ctx.Err())
	}
}

func (s *service) findIntent(ctx context.Context, intentID string) (*models.PaymentIntent, error) {
	if intentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeParameterMissing, "intent id is required").WithParam("intent_id")
	}
	intent, err := s.repo.FindByID(ctx, intentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeResourceMissing, "no such payment intent").WithParam("intent_id")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fetching payment intent")
	}
	return intent, nil
}

// runVerification drives one orchestrator run to completion and finalizes the
// intent from the returned outcome. The orchestrator returning is the single
// completion signal; Finalize's compare-and-set makes duplicates harmless.
func (s *service) runVerification(intentID string, forceFailure bool) {
	ctx := s.logg.WithIntentID(s.runCtx, intentID)

	outcome, err := s.orchestrator.Run(ctx, intentID, forceFailure)
	if err != nil {
		// The intent stays in processing; operators resolve stuck runs.
		s.logg.Error(ctx, "verification run aborted", err)
		return
	}

	if outcome.Succeeded {
		s.finalizeSucceeded(ctx, intentID)
		return
	}
	s.finalizeFailed(ctx, intentID, outcome.FailureMessage)
}

func (s *service) finalizeSucceeded(ctx context.Context, intentID string) {
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		intent, err := repo.FindByID(ctx, intentID)
		if err != nil {
			return err
		}
		moved, err := repo.Finalize(ctx, intentID, enums.IntentStatusSucceeded, nil)
		if err != nil {
			return err
		}
		if !moved {
			// Another finalization won; nothing left to do.
			return nil
		}
		payment := &models.Payment{
			ID:             types.NewPaymentID(),
			IntentID:       intentID,
			Status:         enums.PaymentStatusSucceeded,
			CapturedAmount: intent.Amount,
			Currency:       intent.Currency,
			AuthCode:       types.NewAuthCode(),
			ReceiptURL:     types.NewReceiptURL(intentID),
		}
		return s.paymentRepo.WithTx(tx).Create(ctx, payment)
	})
	if err != nil {
		s.logg.Error(ctx, "finalizing succeeded intent", err)
		return
	}
	s.logg.Info(ctx, "payment intent succeeded")
}

func (s *service) finalizeFailed(ctx context.Context, intentID, reason string) {
	moved, err := s.repo.Finalize(ctx, intentID, enums.IntentStatusFailed, &reason)
	if err != nil {
		s.logg.Error(ctx, "finalizing failed intent", err)
		return
	}
	if moved {
		s.logg.Warn(ctx, "payment intent failed")
	}
}
