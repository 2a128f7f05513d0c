package usecase

import (
	"context"
	"errors"
	"testing"
)

func TestCachedEmbedderReusesQueryVectors(t *testing.T) {
	inner := &embedderFake{}
	cached, err := NewCachedEmbedder(inner, 8)
	if err != nil {
		t.Fatalf("NewCachedEmbedder() error = %v", err)
	}

	first, err := cached.EmbedQuery(context.Background(), "დღგ")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	first[0] = 42
	second, err := cached.EmbedQuery(context.Background(), "დღგ")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if len(inner.queries) != 1 {
		t.Fatalf("inner calls = %d, want 1", len(inner.queries))
	}
	if second[0] == 42 {
		t.Fatalf("cached vector was mutated through a returned slice")
	}
}

func TestCachedEmbedderDoesNotCacheErrors(t *testing.T) {
	inner := &embedderFake{err: errors.New("quota")}
	cached, err := NewCachedEmbedder(inner, 8)
	if err != nil {
		t.Fatalf("NewCachedEmbedder() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := cached.EmbedQuery(context.Background(), "q"); err == nil {
			t.Fatalf("expected error")
		}
	}
	if len(inner.queries) != 2 {
		t.Fatalf("inner calls = %d, want 2", len(inner.queries))
	}
}

func TestNewCachedEmbedderRejectsZeroSize(t *testing.T) {
	if _, err := NewCachedEmbedder(&embedderFake{}, 0); err == nil {
		t.Fatalf("expected error")
	}
}
