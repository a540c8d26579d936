package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yDkay/payment-system/api/responses"
	"github.com/yDkay/payment-system/api/validators"
	"github.com/yDkay/payment-system/internal/intents"
	pkgerrors "github.com/yDkay/payment-system/pkg/errors"
	"github.com/yDkay/payment-system/pkg/db/models"
	"github.com/yDkay/payment-system/pkg/logger"
	"github.com/yDkay/payment-system/pkg/types"
)

type intentResponse struct {
	ID            string          `json:"id"`
	Object        string          `json:"object"`
	Status        string          `json:"status"`
	Amount        int64           `json:"amount"`
	Currency      string          `json:"currency"`
	DisplayAmount string          `json:"display_amount"`
	CustomerID    string          `json:"customer_id"`
	PaymentMethod string          `json:"payment_method_id"`
	CaptureMethod string          `json:"capture_method"`
	ClientSecret  string          `json:"client_secret,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	FailureReason *string         `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func intentToResponse(intent *models.PaymentIntent) intentResponse {
	return intentResponse{
		ID:            intent.ID,
		Object:        "payment_intent",
		Status:        intent.Status.String(),
		Amount:        intent.Amount,
		Currency:      intent.Currency.String(),
		DisplayAmount: types.DisplayAmount(intent.Amount, intent.Currency),
		CustomerID:    intent.CustomerID,
		PaymentMethod: intent.PaymentMethodID.String(),
		CaptureMethod: intent.CaptureMethod.String(),
		ClientSecret:  intent.ClientSecret,
		Metadata:      intent.Metadata,
		FailureReason: intent.FailureReason,
		CreatedAt:     intent.CreatedAt,
	}
}

// CreateIntent handles POST /api/v1/payment_intents.
func CreateIntent(service intents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input intents.CreateIntentInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		intent, err := service.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, intentToResponse(intent))
	}
}

// ConfirmIntent handles POST /api/v1/payment_intents/{intentId}/confirm.
func ConfirmIntent(service intents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		intentID := chi.URLParam(r, "intentId")

		input := intents.ConfirmIntentInput{}
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &input); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		receipt, err := service.Confirm(r.Context(), intentID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		retryAfter := int(receipt.RetryAfter.Seconds())
		w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]any{
			"id":                  receipt.IntentID,
			"status":              receipt.Status,
			"retry_after_seconds": retryAfter,
		})
	}
}

// GetIntent handles GET /api/v1/payment_intents/{intentId}.
func GetIntent(service intents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		intent, err := service.Get(r.Context(), chi.URLParam(r, "intentId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, intentToResponse(intent))
	}
}

// GetPaymentResult handles GET /api/v1/payment_intents/{intentId}/payment.
func GetPaymentResult(service intents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payment, err := service.GetPaymentResult(r.Context(), chi.URLParam(r, "intentId"))
		if err != nil {
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeStillProcessing {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSeconds(typed)))
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, paymentToResponse(payment))
	}
}

// retryAfterSeconds reads the configured backoff out of a still-processing
// error. Falls back to one second if the detail is absent.
func retryAfterSeconds(err *pkgerrors.Error) int {
	if details, ok := err.Details().(map[string]any); ok {
		if seconds, ok := details["retry_after_seconds"].(int); ok && seconds > 0 {
			return seconds
		}
	}
	return 1
}

type jobResponse struct {
	ID          string     `json:"id"`
	Stage       string     `json:"stage"`
	DisplayName string     `json:"display_name"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Position    int        `json:"position"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
}

// ListIntentJobs handles GET /api/v1/payment_intents/{intentId}/jobs.
func ListIntentJobs(service intents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := service.ListJobs(r.Context(), chi.URLParam(r, "intentId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]jobResponse, 0, len(jobs))
		for _, job := range jobs {
			out = append(out, jobResponse{
				ID:          job.ID.String(),
				Stage:       job.Stage.String(),
				DisplayName: job.Stage.DisplayName(),
				Description: job.Stage.Description(),
				Status:      job.Status.String(),
				Position:    job.Position,
				StartedAt:   job.StartedAt,
				CompletedAt: job.CompletedAt,
				Error:       job.ErrorMessage,
			})
		}
		responses.WriteSuccess(w, out)
	}
}
