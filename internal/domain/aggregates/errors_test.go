package aggregates

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorCodeHelpers(t *testing.T) {
	base := errors.New("boom")
	err := fmt.Errorf("outer: %w", Wrap(CodeConflict, "Catalog.Create", base))
	if !IsCode(err, CodeConflict) {
		t.Fatalf("IsCode: want conflict got=%s", CodeOf(err))
	}
	if !errors.Is(err, base) {
		t.Fatalf("errors.Is: want cause reachable")
	}
	if !IsRetryable(err) {
		t.Fatalf("IsRetryable: conflict should be retryable")
	}
	if IsCode(base, "") {
		t.Fatalf("IsCode: empty code must never match")
	}
	if Wrap(CodeInternal, "op", nil) != nil {
		t.Fatalf("Wrap(nil): want nil")
	}
	if got := NewError(CodeValidation, "op", "bad", nil).Error(); got != "op: bad (validation)" {
		t.Fatalf("Error(): got=%q", got)
	}
}
