package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	pkgerrors "github.com/angelmondragon/licensehub-wallet/pkg/errors"
	"github.com/angelmondragon/licensehub-wallet/pkg/logger"
	"github.com/angelmondragon/licensehub-wallet/pkg/types"
)

// retryAfterSeconds is advertised on retryable 503s such as a busy wallet.
const retryAfterSeconds = 1

// publicMessageCodes keep their own message in the response body. Every other
// code answers with the generic public message of its metadata.
var publicMessageCodes = map[pkgerrors.Code]bool{
	pkgerrors.CodeValidation:   true,
	pkgerrors.CodeForbidden:    true,
	pkgerrors.CodeUnauthorized: true,
	pkgerrors.CodeNotFound:     true,
	pkgerrors.CodeConflict:     true,
	pkgerrors.CodeIdempotency:  true,
	pkgerrors.CodeRateLimit:    true,
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteError renders err as an error envelope. Untyped errors become
// INTERNAL_ERROR and never leak their message.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())
	status := pkgerrors.StatusOf(typed)

	payload := types.ErrorEnvelope{
		Error: types.APIError{
			Code:      string(typed.Code()),
			Message:   meta.PublicMessage,
			Retryable: meta.Retryable,
		},
	}
	if m := typed.Message(); m != "" && publicMessageCodes[typed.Code()] {
		payload.Error.Message = m
	}
	if meta.DetailsAllowed {
		if details := typed.Details(); details != nil {
			payload.Error.Details = details
		}
	}

	if logg != nil {
		logError(ctx, logg, meta, err)
	}

	if pkgerrors.IsRetryable(typed) && status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	writeJSON(w, status, payload)
}

// logError records client mistakes at warn level and server faults at error
// level with the full cause chain and any Postgres diagnostics.
func logError(ctx context.Context, logg *logger.Logger, meta pkgerrors.Metadata, err error) {
	dump := pkgerrors.Dump(err)
	fields := map[string]any{
		"error":      dump.TopMessage,
		"error_code": dump.Code,
		"status":     meta.HTTPStatus,
		"retryable":  dump.Retryable,
	}
	if meta.HTTPStatus < http.StatusInternalServerError {
		logg.Warn(logg.WithFields(ctx, fields), "request.rejected")
		return
	}

	fields["error_chain"] = dump.Chain
	if dump.PG != nil {
		fields["pg_code"] = dump.PG.Code
		fields["pg_constraint"] = dump.PG.Constraint
		fields["pg_table"] = dump.PG.Table
		fields["pg_detail"] = dump.PG.Detail
		fields["pg_message"] = dump.PG.Message
	}
	logg.Error(logg.WithFields(ctx, fields), "request.error", err)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
