package usecase

import (
	"sort"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
)

// DefaultRRFK is the reciprocal rank fusion constant.
const DefaultRRFK = 60

type fusedCandidate struct {
	result domain.SearchResult
	score  float64
	order  int
}

// fuseRRF merges results from heterogeneous sources into one ranking.
// Each source partition is ranked by its native score, every rank r adds
// 1/(k+r) to the article's total, and one copy per article survives: the
// primary copy with the highest native score. Cross-reference results are
// ranked in their own trailing tier and never precede a primary result.
func fuseRRF(results []domain.SearchResult, rrfK int) []domain.SearchResult {
	if len(results) == 0 {
		return []domain.SearchResult{}
	}
	if rrfK <= 0 {
		rrfK = DefaultRRFK
	}

	partitions := partitionBySearchType(results)
	acc := make(map[int]*fusedCandidate, len(results))
	order := 0

	addPartition := func(partition []domain.SearchResult) {
		for i, result := range rankByNativeScore(partition) {
			candidate, ok := acc[result.ArticleNumber]
			if !ok {
				candidate = &fusedCandidate{result: result, order: order}
				order++
				acc[result.ArticleNumber] = candidate
			} else {
				candidate.result = preferResult(candidate.result, result)
			}
			candidate.score += 1.0 / float64(rrfK+i+1)
		}
	}

	for _, searchType := range domain.PrimarySearchTypes {
		addPartition(partitions[searchType])
	}
	addPartition(partitions[domain.SearchCrossRef])

	out := make([]fusedCandidate, 0, len(acc))
	for _, c := range acc {
		out = append(out, *c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := out[i].result.IsCrossRef, out[j].result.IsCrossRef
		if ci != cj {
			return !ci
		}
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].order < out[j].order
	})

	fused := make([]domain.SearchResult, 0, len(out))
	for _, c := range out {
		result := c.result
		result.RRFScore = c.score
		fused = append(fused, result)
	}
	return fused
}

func partitionBySearchType(results []domain.SearchResult) map[domain.SearchType][]domain.SearchResult {
	partitions := make(map[domain.SearchType][]domain.SearchResult, 4)
	for _, result := range results {
		var key domain.SearchType
		switch result.SearchType {
		case domain.SearchDirect:
			key = domain.SearchDirect
		case domain.SearchSemantic:
			key = domain.SearchSemantic
		case domain.SearchKeyword:
			key = domain.SearchKeyword
		case domain.SearchCrossRef:
			key = domain.SearchCrossRef
		default:
			key = domain.SearchSemantic
		}
		if result.IsCrossRef {
			key = domain.SearchCrossRef
		}
		partitions[key] = append(partitions[key], result)
	}
	return partitions
}

func rankByNativeScore(partition []domain.SearchResult) []domain.SearchResult {
	ranked := make([]domain.SearchResult, len(partition))
	copy(ranked, partition)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// preferResult keeps a primary copy over a cross-reference and otherwise the
// copy with the strictly higher native score.
func preferResult(current, candidate domain.SearchResult) domain.SearchResult {
	if current.IsCrossRef != candidate.IsCrossRef {
		if current.IsCrossRef {
			return candidate
		}
		return current
	}
	if candidate.Score > current.Score {
		return candidate
	}
	return current
}

func trimResults(results []domain.SearchResult, limit int) []domain.SearchResult {
	if limit <= 0 || len(results) <= limit {
		return results
	}
	return results[:limit]
}

func splitCrossRefs(results []domain.SearchResult) (primary, crossRefs []domain.SearchResult) {
	primary = make([]domain.SearchResult, 0, len(results))
	for _, result := range results {
		if result.IsCrossRef {
			crossRefs = append(crossRefs, result)
			continue
		}
		primary = append(primary, result)
	}
	return primary, crossRefs
}

// uniqueArticles keeps the first occurrence of every article number.
func uniqueArticles(results []domain.SearchResult) []domain.SearchResult {
	seen := make(map[int]struct{}, len(results))
	out := make([]domain.SearchResult, 0, len(results))
	for _, result := range results {
		if _, ok := seen[result.ArticleNumber]; ok {
			continue
		}
		seen[result.ArticleNumber] = struct{}{}
		out = append(out, result)
	}
	return out
}
