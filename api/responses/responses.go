package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	pkgerrors "github.com/yDkay/payment-system/pkg/errors"
	"github.com/yDkay/payment-system/pkg/logger"
	"github.com/yDkay/payment-system/pkg/types"
)

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteError translates a domain error into the wire shape. A validation
// error carrying more than one violation renders as {errors: [...]};
// everything else renders as {error: {...}}.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}

	meta := pkgerrors.MetadataFor(typed.Code())

	if logg != nil {
		dump := pkgerrors.Dump(err)
		fields := map[string]any{
			"error_code":    dump.Code,
			"error_chain":   dump.Chain,
			"pg_code":       dump.PGCode,
			"pg_detail":     dump.PGDetail,
			"pg_message":    dump.PGMessage,
			"pg_table":      dump.PGTable,
			"pg_column":     dump.PGColumn,
			"pg_constraint": dump.PGConstraint,
		}
		ctx = logg.WithFields(ctx, fields)
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(ctx, "request.error", err)
		} else {
			logg.Warn(ctx, "request.rejected")
		}
	}

	if violations := typed.Violations(); len(violations) > 1 {
		writeJSON(w, meta.HTTPStatus, types.MultiErrorEnvelope{Errors: violationErrors(violations)})
		return
	}

	payload := types.ErrorEnvelope{Error: apiError(typed, meta)}
	writeJSON(w, meta.HTTPStatus, payload)
}

func apiError(typed *pkgerrors.Error, meta pkgerrors.Metadata) types.APIError {
	// A single-violation validation error renders that violation directly.
	if violations := typed.Violations(); len(violations) == 1 {
		v := violations[0]
		return types.APIError{
			Type:    string(v.Type),
			Code:    string(v.Code),
			Message: v.Message,
			Param:   v.Param,
		}
	}

	msg := meta.PublicMessage
	if m := typed.Message(); m != "" && typed.Code() != pkgerrors.CodeInternal {
		msg = m
	}
	out := types.APIError{
		Type:    string(meta.Type),
		Code:    string(typed.Code()),
		Message: msg,
		Param:   typed.Param(),
	}
	if meta.DetailsAllowed {
		out.Details = typed.Details()
	}
	return out
}

func violationErrors(violations []pkgerrors.Violation) []types.APIError {
	out := make([]types.APIError, 0, len(violations))
	for _, v := range violations {
		out = append(out, types.APIError{
			Type:    string(v.Type),
			Code:    string(v.Code),
			Message: v.Message,
			Param:   v.Param,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
