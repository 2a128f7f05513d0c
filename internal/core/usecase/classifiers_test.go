package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
)

func TestIsRedZone(t *testing.T) {
	if !isRedZone("რამდენი უნდა გადავიხადო?") || !isRedZone("გამოთვალე ჩემი გადასახადი") {
		t.Fatalf("expected red zone")
	}
	if isRedZone("რა არის დღგ?") {
		t.Fatalf("expected not red zone")
	}
}

func TestDetectPastYear(t *testing.T) {
	year, ok := detectPastYear("2021 წელს რა განაკვეთი იყო?")
	if !ok || year != 2021 {
		t.Fatalf("expected 2021, got %d %v", year, ok)
	}
	if _, ok := detectPastYear("რა განაკვეთია?"); ok {
		t.Fatalf("expected no year")
	}
}

func TestResolveTerms(t *testing.T) {
	store := &definitionStoreFake{defs: []domain.Definition{
		{TermKA: "მეწარმე", Definition: "entrepreneur"},
		{TermKA: "იმპორტი", Definition: "import"},
	}}
	got := resolveTerms(context.Background(), store, "ინდივიდუალური მეწარმე")
	if len(got) != 1 || got[0].Definition != "entrepreneur" {
		t.Fatalf("unexpected definitions %+v", got)
	}

	if got := resolveTerms(context.Background(), &definitionStoreFake{err: errors.New("db")}, "მეწარმე"); got != nil {
		t.Fatalf("expected nil on store failure, got %+v", got)
	}
}

func TestSanitizeForLogRedactsDigits(t *testing.T) {
	if got := sanitizeForLog("id 0123456789"); got != "id [REDACTED]" {
		t.Fatalf("unexpected %q", got)
	}
}
