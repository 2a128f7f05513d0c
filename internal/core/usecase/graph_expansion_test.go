package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
)

func TestGraphExpanderAppendsCrossRefs(t *testing.T) {
	store := &articleStoreFake{articles: map[int]domain.Article{
		20: {ArticleNumber: 20, Title: "twenty", Body: "b20"},
		30: {ArticleNumber: 30, Title: "thirty", Body: "b30"},
	}}
	primary := []domain.SearchResult{
		{ArticleNumber: 1, Score: 0.9, SearchType: domain.SearchSemantic, RelatedArticles: []int{30, 2, 20}},
		{ArticleNumber: 2, Score: 0.8, SearchType: domain.SearchKeyword, RelatedArticles: []int{30}},
	}

	out := NewGraphExpander(store, 5).Expand(context.Background(), primary)
	if got := articleNumbers(out); !equalInts(got, []int{1, 2, 30, 20}) {
		t.Fatalf("expected [1 2 30 20], got %v", got)
	}
	for _, r := range out[2:] {
		if !r.IsCrossRef || r.SearchType != domain.SearchCrossRef || r.Score != 0 {
			t.Fatalf("cross-ref not tagged: %+v", r)
		}
	}
}

func TestGraphExpanderRespectsCap(t *testing.T) {
	refs := collectCrossRefs([]domain.SearchResult{
		{ArticleNumber: 1, RelatedArticles: []int{2, 3, 4, 3, 5}},
	}, 2)
	if !equalInts(refs, []int{2, 3}) {
		t.Fatalf("expected [2 3], got %v", refs)
	}
}

func TestGraphExpanderStoreFailureKeepsPrimary(t *testing.T) {
	store := &articleStoreFake{findErr: errors.New("db down")}
	primary := []domain.SearchResult{{ArticleNumber: 1, RelatedArticles: []int{2}}}
	out := NewGraphExpander(store, 5).Expand(context.Background(), primary)
	if got := articleNumbers(out); !equalInts(got, []int{1}) {
		t.Fatalf("expected primary only, got %v", got)
	}
}

func TestGraphExpanderNoRefsSkipsStore(t *testing.T) {
	store := &articleStoreFake{}
	primary := []domain.SearchResult{{ArticleNumber: 1}}
	NewGraphExpander(store, 5).Expand(context.Background(), primary)
	if store.findCalls != 0 {
		t.Fatalf("expected no store calls, got %d", store.findCalls)
	}
}
