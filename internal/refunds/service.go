// Package refunds enforces the conservation invariant: for every payment the
// refunded total never exceeds the captured amount, even under concurrent
// submissions.
package refunds

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yDkay/payment-system/internal/payments"
	"github.com/yDkay/payment-system/internal/validation"
	"github.com/yDkay/payment-system/pkg/db"
	"github.com/yDkay/payment-system/pkg/db/models"
	"github.com/yDkay/payment-system/pkg/enums"
	pkgerrors "github.com/yDkay/payment-system/pkg/errors"
	"github.com/yDkay/payment-system/pkg/locks"
	"github.com/yDkay/payment-system/pkg/logger"
	"github.com/yDkay/payment-system/pkg/types"
)

// CreateRefundInput carries the raw create-refund request.
type CreateRefundInput struct {
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Reason    string `json:"reason"`
}

// Service exposes the refund ledger operations.
type Service interface {
	Create(ctx context.Context, input CreateRefundInput) (*models.Refund, error)
	ListByPayment(ctx context.Context, paymentID string) ([]models.Refund, error)
}

type service struct {
	dbClient    *db.Client
	repo        Repository
	paymentRepo payments.Repository
	paymentKeys *locks.KeyedMutex
	logg        *logger.Logger
}

// NewService wires the refund ledger together.
func NewService(dbClient *db.Client, repo Repository, paymentRepo payments.Repository, logg *logger.Logger) (Service, error) {
	if dbClient == nil {
		return nil, errors.New("db client is required")
	}
	if repo == nil {
		return nil, errors.New("refund repository is required")
	}
	if paymentRepo == nil {
		return nil, errors.New("payment repository is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &service{
		dbClient:    dbClient,
		repo:        repo,
		paymentRepo: paymentRepo,
		paymentKeys: locks.NewKeyedMutex(),
		logg:        logg,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateRefundInput) (*models.Refund, error) {
	violations := validation.RefundViolations(validation.RefundInput{
		PaymentID: input.PaymentID,
		Amount:    input.Amount,
	})
	if input.PaymentID == "" {
		return nil, pkgerrors.FromViolations(violations)
	}
	ctx = s.logg.WithPaymentID(ctx, input.PaymentID)

	reason := enums.RefundReasonRequestedByCustomer
	if input.Reason != "" {
		parsed, err := enums.ParseRefundReason(input.Reason)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidParameters, err, "invalid refund reason").WithParam("reason")
		}
		reason = parsed
	}

	// The cap check and the append/increment below must see the same
	// refunded total, so both happen under the per-payment lock.
	unlock := s.paymentKeys.Lock(input.PaymentID)
	defer unlock()

	payment, err := s.paymentRepo.FindByID(ctx, input.PaymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeResourceMissing, "no such payment").WithParam("payment_id")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fetching payment")
	}
	switch payment.Status {
	case enums.PaymentStatusSucceeded, enums.PaymentStatusRefunded:
		// A fully refunded payment falls through to the cap check so the
		// caller sees the exhausted capture, not a state conflict.
	default:
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState,
			fmt.Sprintf("payment cannot be refunded while in status %q", payment.Status)).
			WithDetails(map[string]string{"status": payment.Status.String()})
	}
	if len(violations) > 0 {
		return nil, pkgerrors.FromViolations(violations)
	}
	if input.Amount+payment.RefundedAmount > payment.CapturedAmount {
		return nil, pkgerrors.New(pkgerrors.CodeRefundExceedsCapture, "refund amount exceeds the remaining captured amount").
			WithParam("amount").
			WithDetails(map[string]int64{
				"captured_amount":  payment.CapturedAmount,
				"already_refunded": payment.RefundedAmount,
				"requested":        input.Amount,
			})
	}

	refund := &models.Refund{
		ID:        types.NewRefundID(),
		PaymentID: payment.ID,
		Amount:    input.Amount,
		Reason:    reason,
		Status:    enums.RefundStatusSucceeded,
	}
	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, refund); err != nil {
			return err
		}
		return s.paymentRepo.WithTx(tx).AddRefundedAmount(ctx, payment.ID, input.Amount)
	})
	if err != nil {
		if errors.Is(err, payments.ErrOverRefund) {
			return nil, pkgerrors.New(pkgerrors.CodeRefundExceedsCapture, "refund amount exceeds the remaining captured amount").
				WithParam("amount")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording refund")
	}

	s.logg.Info(ctx, "refund recorded")
	return refund, nil
}

func (s *service) ListByPayment(ctx context.Context, paymentID string) ([]models.Refund, error) {
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeParameterMissing, "payment id is required").WithParam("payment_id")
	}
	if _, err := s.paymentRepo.FindByID(ctx, paymentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeResourceMissing, "no such payment").WithParam("payment_id")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fetching payment")
	}
	list, err := s.repo.ListByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing refunds")
	}
	return list, nil
}
