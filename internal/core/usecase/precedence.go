package usecase

import "github.com/kirillkom/tax-law-assistant/internal/core/domain"

// rerankWithExceptions places every exception immediately after each general
// rule it references (lex specialis). Exceptions referencing no general rule
// in the list are appended at the end.
func rerankWithExceptions(results []domain.SearchResult) []domain.SearchResult {
	if len(results) == 0 {
		return results
	}

	generals := make([]domain.SearchResult, 0, len(results))
	exceptions := make([]domain.SearchResult, 0)
	for _, result := range results {
		if result.IsException {
			exceptions = append(exceptions, result)
			continue
		}
		generals = append(generals, result)
	}
	if len(exceptions) == 0 {
		return results
	}

	attached := make([]bool, len(exceptions))
	out := make([]domain.SearchResult, 0, len(results)+len(exceptions))
	for _, general := range generals {
		out = append(out, general)
		for i, exception := range exceptions {
			if exception.References(general.ArticleNumber) {
				out = append(out, exception)
				attached[i] = true
			}
		}
	}
	for i, exception := range exceptions {
		if !attached[i] {
			out = append(out, exception)
		}
	}
	return out
}

// applyPrecedence reranks primary and cross-reference tiers separately so
// that cross-references stay behind every primary result.
func applyPrecedence(results []domain.SearchResult) []domain.SearchResult {
	primary, crossRefs := splitCrossRefs(results)
	out := rerankWithExceptions(primary)
	if len(crossRefs) == 0 {
		return out
	}
	return append(out, rerankWithExceptions(crossRefs)...)
}
