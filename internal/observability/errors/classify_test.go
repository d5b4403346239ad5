package errors

import (
	goerrors "errors"
	"fmt"
	"testing"

	apperrors "github.com/slipstreamlabs/recordwatch/internal/errors"
)

func TestClassify(t *testing.T) {
	if got := Classify(nil); got != "" {
		t.Fatalf("expected empty class for nil error, got %q", got)
	}

	if got := Classify(apperrors.Unavailable("race service unreachable")); got != "unavailable" {
		t.Fatalf("expected taxonomy code, got %q", got)
	}

	wrapped := fmt.Errorf("fetch leaderboard: %w", apperrors.RateLimited("race service throttled"))
	if got := Classify(wrapped); got != "rate_limited" {
		t.Fatalf("expected taxonomy code through wrapping, got %q", got)
	}

	if got := Classify(goerrors.New("boom")); got != "errors_errorstring" {
		t.Fatalf("expected type-derived class, got %q", got)
	}
}
