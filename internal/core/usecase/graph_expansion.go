package usecase

import (
	"context"
	"log/slog"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
	"github.com/kirillkom/tax-law-assistant/internal/core/ports"
)

// DefaultMaxGraphRefs caps how many cross-referenced articles are fetched.
const DefaultMaxGraphRefs = 5

// GraphExpander appends articles cited by the primary results.
type GraphExpander struct {
	store   ports.ArticleStore
	maxRefs int
}

func NewGraphExpander(store ports.ArticleStore, maxRefs int) *GraphExpander {
	if maxRefs <= 0 {
		maxRefs = DefaultMaxGraphRefs
	}
	return &GraphExpander{store: store, maxRefs: maxRefs}
}

// Expand returns primary followed by the cross-referenced articles not already
// present. Primary results are never removed or reordered; a failed fetch
// leaves them as they are.
func (g *GraphExpander) Expand(ctx context.Context, primary []domain.SearchResult) []domain.SearchResult {
	refs := collectCrossRefs(primary, g.maxRefs)
	if len(refs) == 0 {
		return primary
	}

	articles, err := g.store.FindByNumbers(ctx, refs)
	if err != nil {
		slog.Warn("graph_expansion_failed", "refs", len(refs), "error", err)
		return primary
	}

	byNumber := make(map[int]domain.Article, len(articles))
	for _, article := range articles {
		byNumber[article.ArticleNumber] = article
	}

	out := make([]domain.SearchResult, 0, len(primary)+len(refs))
	out = append(out, primary...)
	for _, ref := range refs {
		article, ok := byNumber[ref]
		if !ok {
			continue
		}
		out = append(out, article.AsResult(domain.SearchCrossRef, 0.0))
	}

	slog.Info("graph_expansion",
		"primary", len(primary),
		"total", len(out),
		"added", len(out)-len(primary),
	)
	return out
}

// collectCrossRefs returns related article numbers not in results, in
// citation order, deduplicated and capped at maxRefs.
func collectCrossRefs(results []domain.SearchResult, maxRefs int) []int {
	seen := make(map[int]struct{}, len(results))
	for _, result := range results {
		seen[result.ArticleNumber] = struct{}{}
	}

	refs := make([]int, 0, maxRefs)
	for _, result := range results {
		for _, ref := range result.RelatedArticles {
			if len(refs) >= maxRefs {
				return refs
			}
			if _, ok := seen[ref]; ok {
				continue
			}
			seen[ref] = struct{}{}
			refs = append(refs, ref)
		}
	}
	return refs
}
