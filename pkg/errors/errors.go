package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Type is the coarse error family exposed on the wire.
type Type string

const (
	TypeValidation          Type = "validation_error"
	TypeCard                Type = "card_error"
	TypeInvalidRequest      Type = "invalid_request_error"
	TypeIdempotencyConflict Type = "idempotency_conflict"
	TypeTooEarly            Type = "too_early"
	TypeAPI                 Type = "api_error"
)

// Code narrows the failure within its type.
type Code string

const (
	CodeInvalidParameters    Code = "invalid_parameters"
	CodeCardUnsupported      Code = "payment_method_unsupported"
	CodeResourceMissing      Code = "resource_missing"
	CodeInvalidState         Code = "invalid_state"
	CodeParameterMissing     Code = "parameter_missing"
	CodeIdempotencyKeyReused Code = "idempotency_key_reused"
	CodeStillProcessing      Code = "still_processing"
	CodeRefundExceedsCapture Code = "refund_exceeds_captured_amount"
	CodeInternal             Code = "internal_error"
)

// Metadata drives how a code is rendered at the HTTP boundary.
type Metadata struct {
	Type           Type
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeInvalidParameters: {
		Type:           TypeValidation,
		HTTPStatus:     http.StatusBadRequest,
		Retryable:      false,
		PublicMessage:  "one or more parameters are invalid",
		DetailsAllowed: true,
	},
	CodeCardUnsupported: {
		Type:           TypeCard,
		HTTPStatus:     http.StatusPaymentRequired,
		Retryable:      false,
		PublicMessage:  "payment method not supported",
		DetailsAllowed: true,
	},
	CodeResourceMissing: {
		Type:           TypeInvalidRequest,
		HTTPStatus:     http.StatusNotFound,
		Retryable:      false,
		PublicMessage:  "resource not found",
		DetailsAllowed: true,
	},
	CodeInvalidState: {
		Type:           TypeInvalidRequest,
		HTTPStatus:     http.StatusConflict,
		Retryable:      false,
		PublicMessage:  "state transition disallowed",
		DetailsAllowed: true,
	},
	CodeParameterMissing: {
		Type:           TypeInvalidRequest,
		HTTPStatus:     http.StatusBadRequest,
		Retryable:      false,
		PublicMessage:  "required parameter missing",
		DetailsAllowed: true,
	},
	CodeIdempotencyKeyReused: {
		Type:           TypeIdempotencyConflict,
		HTTPStatus:     http.StatusConflict,
		Retryable:      false,
		PublicMessage:  "idempotency key reused with a different request",
		DetailsAllowed: true,
	},
	CodeStillProcessing: {
		Type:           TypeTooEarly,
		HTTPStatus:     http.StatusTooEarly,
		Retryable:      true,
		PublicMessage:  "payment is still processing",
		DetailsAllowed: true,
	},
	CodeRefundExceedsCapture: {
		Type:           TypeInvalidRequest,
		HTTPStatus:     http.StatusBadRequest,
		Retryable:      false,
		PublicMessage:  "refund would exceed the captured amount",
		DetailsAllowed: true,
	},
	CodeInternal: {
		Type:           TypeAPI,
		HTTPStatus:     http.StatusInternalServerError,
		Retryable:      true,
		PublicMessage:  "internal server error",
		DetailsAllowed: false,
	},
}

// MetadataFor resolves the rendering metadata for a code, falling back to the
// internal-error entry for anything unknown.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Violation is a single field-level validation failure. Validation reports the
// full list, never only the first.
type Violation struct {
	Type    Type   `json:"type"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
}

// Error is the typed, recoverable domain error every failure is translated
// into at the boundary.
type Error struct {
	code       Code
	message    string
	param      string
	details    any
	violations []Violation
	cause      error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

// FromViolations builds a validation error carrying every violation.
func FromViolations(violations []Violation) *Error {
	return &Error{
		code:       CodeInvalidParameters,
		message:    "validation failed",
		violations: violations,
	}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Type() Type {
	return MetadataFor(e.Code()).Type
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Param() string {
	if e == nil {
		return ""
	}
	return e.param
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) Violations() []Violation {
	if e == nil {
		return nil
	}
	return e.violations
}

func (e *Error) WithParam(param string) *Error {
	if e == nil {
		return nil
	}
	e.param = param
	return e
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As extracts a typed *Error from anywhere in the chain, or nil.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}
