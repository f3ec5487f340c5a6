package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestAsUnwrapsWrappedChain(t *testing.T) {
	t.Parallel()

	base := New(CodeValidation, "qty must be positive")
	wrapped := fmt.Errorf("placing hold: %w", base)

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected typed error")
	}
	if typed.Code() != CodeValidation {
		t.Fatalf("unexpected code: %s", typed.Code())
	}
	if typed.Message() != "qty must be positive" {
		t.Fatalf("unexpected message: %s", typed.Message())
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	t.Parallel()

	meta := MetadataFor(Code("NOPE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", meta.HTTPStatus)
	}
}

func TestWithDetailsRoundTrip(t *testing.T) {
	t.Parallel()

	details := map[string]any{"store_count": 2}
	err := New(CodeStateConflict, "order spans multiple stores").WithDetails(details)
	if err.Details() == nil {
		t.Fatal("expected details")
	}
	if !IsCode(err, CodeStateConflict) {
		t.Fatal("expected state conflict code")
	}
}

func TestWrapNilBehavesLikeNew(t *testing.T) {
	t.Parallel()

	err := Wrap(CodeDependency, nil, "gateway unreachable")
	if err.Unwrap() != nil {
		t.Fatal("expected no cause")
	}
	if err.Error() != "DEPENDENCY_ERROR: gateway unreachable" {
		t.Fatalf("unexpected formatting: %s", err.Error())
	}
}
