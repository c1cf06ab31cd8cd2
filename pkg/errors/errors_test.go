package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
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
		{code: CodeInvalidQuantity, status: http.StatusUnprocessableEntity, publicMsg: "quantity must not be negative", detailsOK: true},
		{code: CodeQuantityLimit, status: http.StatusUnprocessableEntity, publicMsg: "quantity exceeds allowed limit", detailsOK: true},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeDataIntegrity, status: http.StatusConflict, publicMsg: "stored receiving data is inconsistent", detailsOK: true},
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
	wrapped := Wrap(CodeDependency, cause, "save session")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeDataIntegrity, "unmatched row"))
	if got := As(err); got == nil || got.Code() != CodeDataIntegrity {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
	if CodeOf(stdErrors.New("plain")) != CodeInternal {
		t.Fatalf("plain errors should map to internal")
	}
}

func TestIsValidationCode(t *testing.T) {
	for _, code := range []Code{CodeValidation, CodeInvalidQuantity, CodeQuantityLimit} {
		if !IsValidationCode(code) {
			t.Fatalf("expected %s to be a validation code", code)
		}
	}
	if IsValidationCode(CodeDataIntegrity) {
		t.Fatalf("integrity errors must not be treated as validation")
	}
}

func TestDumpCollectsChain(t *testing.T) {
	cause := stdErrors.New("connection reset")
	err := Wrap(CodeDependency, cause, "load sessions")

	dump := Dump(err)
	if dump.Code != CodeDependency {
		t.Fatalf("expected dependency code, got %s", dump.Code)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %d", len(dump.Chain))
	}
	if Dump(nil).TopMessage != "" {
		t.Fatalf("expected empty dump for nil")
	}
}

func TestDumpCapturesDriverErrors(t *testing.T) {
	pgxErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_receipt_sessions_name", TableName: "receipt_sessions"}
	dump := Dump(Wrap(CodeConflict, pgxErr, "create session"))
	if dump.PGCode != "23505" || dump.PGConstraint != "ux_receipt_sessions_name" || dump.PGTable != "receipt_sessions" {
		t.Fatalf("unexpected pgx dump %+v", dump)
	}
	if dump.Retryable {
		t.Fatalf("conflicts are not retryable")
	}

	pqErr := &pq.Error{Code: "40001", Message: "could not serialize access"}
	dump = Dump(fmt.Errorf("save: %w", pqErr))
	if dump.PGCode != "40001" || dump.PGMessage != "could not serialize access" {
		t.Fatalf("unexpected pq dump %+v", dump)
	}

	liteErr := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}
	dump = Dump(Wrap(CodeDependency, liteErr, "insert"))
	if dump.SQLiteCode == "" || dump.PGCode != "" {
		t.Fatalf("unexpected sqlite dump %+v", dump)
	}
	if !dump.Retryable {
		t.Fatalf("dependency errors are retryable")
	}
}

func TestIsWalksNestedTypedErrors(t *testing.T) {
	inner := New(CodeQuantityLimit, "over limit")
	outer := Wrap(CodeValidation, fmt.Errorf("apply edit: %w", inner), "invalid edit")

	if !Is(outer, CodeValidation) || !Is(outer, CodeQuantityLimit) {
		t.Fatalf("expected both codes in chain")
	}
	if Is(outer, CodeConflict) {
		t.Fatalf("unexpected conflict code")
	}
	if Is(stdErrors.New("plain"), CodeInternal) {
		t.Fatalf("untyped errors carry no code")
	}
	if got := Newf(CodeNotFound, "session %s", "abc").Message(); got != "session abc" {
		t.Fatalf("unexpected message %q", got)
	}
}
