package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
)

func TestClassifyHTTPError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{"canceled", context.Canceled, false, false},
		{"deadline wrapped", fmt.Errorf("call: %w", context.DeadlineExceeded), false, false},
		{"429", &HTTPStatusError{StatusCode: 429}, true, true},
		{"503", &HTTPStatusError{StatusCode: 503}, true, true},
		{"400", &HTTPStatusError{StatusCode: 400}, false, false},
		{"plain", errors.New("decode"), false, true},
	}
	for _, tc := range cases {
		class := ClassifyHTTPError(tc.err)
		if class.Retryable != tc.retryable || class.RecordFailure != tc.record {
			t.Errorf("%s: got %+v", tc.name, class)
		}
	}
}

func TestWrapTemporary(t *testing.T) {
	err := WrapTemporary("qdrant search", &HTTPStatusError{StatusCode: 502}, nil)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary, got %v", err)
	}
	permanent := &HTTPStatusError{StatusCode: 404}
	if got := WrapTemporary("qdrant search", permanent, nil); !errors.Is(got, permanent) || domain.IsKind(got, domain.ErrTemporary) {
		t.Fatalf("expected permanent error unchanged, got %v", got)
	}
}
