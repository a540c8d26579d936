package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/yDkay/payment-system/pkg/errors"
	"github.com/yDkay/payment-system/pkg/types"
)

func TestWriteSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccessStatus(rec, http.StatusCreated, map[string]string{"id": "pi_1"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var envelope types.SuccessEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	data, ok := envelope.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "pi_1", data["id"])
}

func TestWriteErrorSingle(t *testing.T) {
	rec := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeResourceMissing, "no such payment intent").WithParam("intent_id")
	WriteError(context.Background(), nil, rec, err)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var envelope types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "invalid_request_error", envelope.Error.Type)
	assert.Equal(t, "resource_missing", envelope.Error.Code)
	assert.Equal(t, "no such payment intent", envelope.Error.Message)
	assert.Equal(t, "intent_id", envelope.Error.Param)
}

func TestWriteErrorTooEarlyIsStructured(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, pkgerrors.New(pkgerrors.CodeStillProcessing, "payment verification is still in progress"))

	assert.Equal(t, http.StatusTooEarly, rec.Code)

	var envelope types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "too_early", envelope.Error.Type)
	assert.Equal(t, "still_processing", envelope.Error.Code)
}

func TestWriteErrorMultipleViolations(t *testing.T) {
	rec := httptest.NewRecorder()
	err := pkgerrors.FromViolations([]pkgerrors.Violation{
		{Type: pkgerrors.TypeValidation, Code: pkgerrors.CodeInvalidParameters, Message: "amount must be positive", Param: "amount"},
		{Type: pkgerrors.TypeValidation, Code: pkgerrors.CodeInvalidParameters, Message: "currency is not supported", Param: "currency"},
		{Type: pkgerrors.TypeValidation, Code: pkgerrors.CodeInvalidParameters, Message: "customer_id is required", Param: "customer_id"},
	})
	WriteError(context.Background(), nil, rec, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var envelope types.MultiErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Errors, 3)
	assert.Equal(t, "amount", envelope.Errors[0].Param)
	assert.Equal(t, "currency", envelope.Errors[1].Param)
	assert.Equal(t, "customer_id", envelope.Errors[2].Param)
}

func TestWriteErrorSingleViolationUsesSingleShape(t *testing.T) {
	rec := httptest.NewRecorder()
	err := pkgerrors.FromViolations([]pkgerrors.Violation{
		{Type: pkgerrors.TypeValidation, Code: pkgerrors.CodeInvalidParameters, Message: "amount must be positive", Param: "amount"},
	})
	WriteError(context.Background(), nil, rec, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var envelope types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "validation_error", envelope.Error.Type)
	assert.Equal(t, "amount", envelope.Error.Param)
}

func TestWriteErrorUntypedBecomesInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var envelope types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "api_error", envelope.Error.Type)
	assert.Equal(t, "internal_error", envelope.Error.Code)
	// Internal faults never leak their cause.
	assert.NotContains(t, envelope.Error.Message, "boom")
}
