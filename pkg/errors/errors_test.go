package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeLockTimeout, status: http.StatusServiceUnavailable, publicMsg: "wallet busy, retry shortly", retryable: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestIsCodeWalksWrappedChain(t *testing.T) {
	typed := New(CodeLockTimeout, "wallet busy")
	wrapped := fmt.Errorf("pay: %w", typed)
	if !IsCode(wrapped, CodeLockTimeout) {
		t.Fatalf("expected wrapped error to match code")
	}
	if IsCode(wrapped, CodeValidation) {
		t.Fatalf("unexpected match for validation code")
	}
	if IsCode(stdErrors.New("plain"), CodeInternal) {
		t.Fatalf("plain errors carry no code")
	}
}

func TestDumpCollectsChain(t *testing.T) {
	err := fmt.Errorf("outer: %w", Wrap(CodeDependency, stdErrors.New("conn refused"), "append"))
	// fmt wrapper, typed error, root cause
	dump := Dump(err)
	if dump.Code != CodeDependency {
		t.Fatalf("expected dependency code, got %s", dump.Code)
	}
	if len(dump.Chain) != 3 {
		t.Fatalf("expected 3 chain links, got %d: %v", len(dump.Chain), dump.Chain)
	}
}

func TestIsRetryableAndStatusOf(t *testing.T) {
	busy := fmt.Errorf("pay: %w", New(CodeLockTimeout, "wallet busy"))
	if !IsRetryable(busy) {
		t.Fatalf("lock timeout should be retryable")
	}
	if IsRetryable(New(CodeConflict, "amount mismatch")) {
		t.Fatalf("conflict should not be retryable")
	}
	if IsRetryable(stdErrors.New("plain")) {
		t.Fatalf("untyped errors are not retryable")
	}

	if got := StatusOf(busy); got != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", got)
	}
	if got := StatusOf(stdErrors.New("plain")); got != http.StatusInternalServerError {
		t.Fatalf("expected 500 for untyped error, got %d", got)
	}
	if got := StatusOf(nil); got != http.StatusOK {
		t.Fatalf("expected 200 for nil, got %d", got)
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("conn refused"), "append transaction")
	if got, want := err.Error(), "DEPENDENCY_ERROR: append transaction: conn refused"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if got := Newf(CodeNotFound, "wallet %s", "u-1").Message(); got != "wallet u-1" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestDumpMarksTransientPostgresErrors(t *testing.T) {
	err := fmt.Errorf("lock wallet: %w", &pgconn.PgError{Code: "55P03", Message: "lock not available", TableName: "wallet_transactions"})
	dump := Dump(err)
	if dump.PG == nil || dump.PG.Code != "55P03" {
		t.Fatalf("expected pg diagnostics, got %+v", dump.PG)
	}
	if dump.PG.Table != "wallet_transactions" {
		t.Fatalf("unexpected table %q", dump.PG.Table)
	}
	if !dump.Retryable {
		t.Fatalf("lock_not_available should be retryable")
	}

	pqDump := Dump(&pq.Error{Code: "23505", Constraint: "wallet_transactions_order_uniq"})
	if pqDump.PG == nil || pqDump.PG.Constraint != "wallet_transactions_order_uniq" {
		t.Fatalf("expected lib/pq diagnostics, got %+v", pqDump.PG)
	}
	if pqDump.Retryable {
		t.Fatalf("unique violations are not retryable")
	}
	if Dump(nil).TopMessage != "" {
		t.Fatalf("nil dump should be empty")
	}
}
