package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestPaymentErrorCarriesReason(t *testing.T) {
	t.Parallel()

	err := Payment(ReasonCreditLimitExceeded, "credit limit exceeded")

	if got := ReasonOf(err); got != ReasonCreditLimitExceeded {
		t.Fatalf("unexpected reason %q", got)
	}
	if err.Code() != CodePayment {
		t.Fatalf("unexpected code %q", err.Code())
	}
}

func TestAsUnwrapsWrappedErrors(t *testing.T) {
	t.Parallel()

	inner := Session(ReasonSessionClosed, "session already closed")
	wrapped := fmt.Errorf("closing drawer: %w", inner)

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected typed error from chain")
	}
	if typed.Reason() != ReasonSessionClosed {
		t.Fatalf("unexpected reason %q", typed.Reason())
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	t.Parallel()

	meta := MetadataFor(Code("SOMETHING_ELSE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal fallback, got %d", meta.HTTPStatus)
	}
}

func TestSyncErrorsAreRetryable(t *testing.T) {
	t.Parallel()

	err := Wrap(CodeSync, stdErrors.New("timeout"), "ledger post failed")
	if !IsRetryable(err) {
		t.Fatal("sync errors must be retryable")
	}
	if IsRetryable(New(CodeValidation, "empty cart")) {
		t.Fatal("validation errors must not be retryable")
	}
}

func TestDumpCollectsChain(t *testing.T) {
	t.Parallel()

	base := stdErrors.New("disk io")
	err := Wrap(CodeStoreCorrupt, base, "pending sale row unreadable")

	info := Dump(err)
	if info.Code != string(CodeStoreCorrupt) {
		t.Fatalf("unexpected code %q", info.Code)
	}
	if len(info.Chain) != 2 {
		t.Fatalf("expected 2 chain entries, got %d", len(info.Chain))
	}
}
