package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
)

func TestSafetyRetryBlockedThenSuccess(t *testing.T) {
	gen := &generatorFake{replies: []scriptedReply{finishReply(domain.FinishSafety), okReply("text")}}
	controller := NewSafetyRetryController(gen, nil, SafetyAttempts("primary", "backup"), true)

	outcome := controller.Run(context.Background(), domain.GenerationRequest{SystemPrompt: "sys"})
	if outcome.Text != "text" || !outcome.Grounded || !outcome.SafetyFallback {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if gen.calls() != 2 {
		t.Fatalf("expected 2 generation calls, got %d", gen.calls())
	}
	if gen.requests[1].Model != "primary" || gen.requests[1].Safety != domain.SafetyRelaxed {
		t.Fatalf("second attempt must be primary/relaxed, got %+v", gen.requests[1])
	}
	if gen.requests[1].SystemPrompt != "sys" {
		t.Fatalf("base request fields must be carried over")
	}
}

func TestSafetyRetryFirstAttemptSuccess(t *testing.T) {
	gen := &generatorFake{replies: []scriptedReply{okReply("  answer  ")}}
	outcome := NewSafetyRetryController(gen, nil, SafetyAttempts("p", "b"), true).
		Run(context.Background(), domain.GenerationRequest{})
	if outcome.Text != "answer" || outcome.SafetyFallback {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}

func TestSafetyRetryAllAttemptsFail(t *testing.T) {
	gen := &generatorFake{replies: []scriptedReply{
		finishReply(domain.FinishSafety),
		finishReply(domain.FinishMaxTokens),
		{err: errors.New("transport")},
	}}
	observer := newObserverFake()
	outcome := NewSafetyRetryController(gen, observer, SafetyAttempts("p", "b"), true).
		Run(context.Background(), domain.GenerationRequest{})

	if outcome.Text != SafetyFallbackMessage || outcome.Grounded {
		t.Fatalf("expected fallback, got %+v", outcome)
	}
	want := []domain.AttemptState{domain.AttemptBlocked, domain.AttemptTruncated, domain.AttemptError}
	if len(outcome.Attempts) != len(want) {
		t.Fatalf("expected %d attempts, got %d", len(want), len(outcome.Attempts))
	}
	for i, state := range want {
		if outcome.Attempts[i].State != state {
			t.Fatalf("attempt %d: expected %s, got %s", i+1, state, outcome.Attempts[i].State)
		}
	}
	if gen.requests[2].Model != "b" || gen.requests[2].Safety != domain.SafetyStrict {
		t.Fatalf("third attempt must be backup/strict, got %+v", gen.requests[2])
	}
	if len(observer.attempts) != 3 {
		t.Fatalf("expected 3 observed attempts, got %d", len(observer.attempts))
	}
}

func TestSafetyRetryDisabledRunsSingleAttempt(t *testing.T) {
	gen := &generatorFake{replies: []scriptedReply{finishReply(domain.FinishSafety), okReply("late")}}
	outcome := NewSafetyRetryController(gen, nil, SafetyAttempts("p", "b"), false).
		Run(context.Background(), domain.GenerationRequest{})
	if gen.calls() != 1 {
		t.Fatalf("expected 1 call, got %d", gen.calls())
	}
	if outcome.Text != SafetyFallbackMessage {
		t.Fatalf("expected fallback, got %q", outcome.Text)
	}
}

func TestSafetyRetryEmptyTextIsNotSuccess(t *testing.T) {
	gen := &generatorFake{replies: []scriptedReply{okReply(""), okReply("second")}}
	outcome := NewSafetyRetryController(gen, nil, SafetyAttempts("p", "b"), true).
		Run(context.Background(), domain.GenerationRequest{})
	if outcome.Text != "second" || !outcome.SafetyFallback {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}

func TestSafetyRetryCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := &generatorFake{replies: []scriptedReply{okReply("never")}}
	outcome := NewSafetyRetryController(gen, nil, SafetyAttempts("p", "b"), true).Run(ctx, domain.GenerationRequest{})
	if gen.calls() != 0 || outcome.Grounded {
		t.Fatalf("expected no calls on canceled context, got %d", gen.calls())
	}
}
