package usecase

import (
	"testing"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
)

func exception(n int, refs ...int) domain.SearchResult {
	r := result(n, 0.5, domain.SearchSemantic)
	r.IsException = true
	r.RelatedArticles = refs
	return r
}

func TestRerankWithExceptionsAttachesAfterGeneral(t *testing.T) {
	in := []domain.SearchResult{
		exception(170, 166),
		result(100, 0.9, domain.SearchSemantic),
		result(166, 0.8, domain.SearchSemantic),
		exception(300, 999),
		exception(171, 100, 166),
	}
	got := articleNumbers(rerankWithExceptions(in))
	want := []int{100, 171, 166, 170, 171, 300}
	if !equalInts(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestRerankWithExceptionsNoExceptionsKeepsOrder(t *testing.T) {
	in := []domain.SearchResult{result(3, 0.1, domain.SearchSemantic), result(1, 0.9, domain.SearchSemantic)}
	if got := articleNumbers(rerankWithExceptions(in)); !equalInts(got, []int{3, 1}) {
		t.Fatalf("expected order unchanged, got %v", got)
	}
}

func TestApplyPrecedenceKeepsCrossRefsLast(t *testing.T) {
	crossGeneral := domain.Article{ArticleNumber: 50}.AsResult(domain.SearchCrossRef, 0)
	crossException := domain.Article{ArticleNumber: 51, IsException: true, RelatedArticles: []int{1}}.AsResult(domain.SearchCrossRef, 0)
	in := []domain.SearchResult{
		result(1, 0.9, domain.SearchSemantic),
		result(2, 0.8, domain.SearchSemantic),
		crossGeneral,
		crossException,
	}
	got := applyPrecedence(in)
	if nums := articleNumbers(got); !equalInts(nums, []int{1, 2, 50, 51}) {
		t.Fatalf("expected [1 2 50 51], got %v", nums)
	}
	for _, r := range got[:2] {
		if r.IsCrossRef {
			t.Fatalf("primary tier contains cross-ref %d", r.ArticleNumber)
		}
	}
}
