package controllers

import (
	"net/http"
	"time"

	"github.com/yDkay/payment-system/api/responses"
	"github.com/yDkay/payment-system/api/validators"
	"github.com/yDkay/payment-system/internal/refunds"
	"github.com/yDkay/payment-system/pkg/db/models"
	"github.com/yDkay/payment-system/pkg/logger"
	"github.com/yDkay/payment-system/pkg/types"
)

type paymentResponse struct {
	ID             string    `json:"id"`
	Object         string    `json:"object"`
	IntentID       string    `json:"intent_id"`
	Status         string    `json:"status"`
	CapturedAmount int64     `json:"captured_amount"`
	RefundedAmount int64     `json:"refunded_amount"`
	Currency       string    `json:"currency"`
	DisplayAmount  string    `json:"display_amount"`
	AuthCode       string    `json:"auth_code"`
	ReceiptURL     string    `json:"receipt_url"`
	CreatedAt      time.Time `json:"created_at"`
}

func paymentToResponse(payment *models.Payment) paymentResponse {
	return paymentResponse{
		ID:             payment.ID,
		Object:         "payment",
		IntentID:       payment.IntentID,
		Status:         payment.Status.String(),
		CapturedAmount: payment.CapturedAmount,
		RefundedAmount: payment.RefundedAmount,
		Currency:       payment.Currency.String(),
		DisplayAmount:  types.DisplayAmount(payment.CapturedAmount, payment.Currency),
		AuthCode:       payment.AuthCode,
		ReceiptURL:     payment.ReceiptURL,
		CreatedAt:      payment.CreatedAt,
	}
}

type refundResponse struct {
	ID        string    `json:"id"`
	Object    string    `json:"object"`
	PaymentID string    `json:"payment_id"`
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func refundToResponse(refund *models.Refund) refundResponse {
	return refundResponse{
		ID:        refund.ID,
		Object:    "refund",
		PaymentID: refund.PaymentID,
		Amount:    refund.Amount,
		Reason:    refund.Reason.String(),
		Status:    refund.Status.String(),
		CreatedAt: refund.CreatedAt,
	}
}

// CreateRefund handles POST /api/v1/refunds.
func CreateRefund(service refunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input refunds.CreateRefundInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		refund, err := service.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, refundToResponse(refund))
	}
}
