package usecase

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
	"github.com/kirillkom/tax-law-assistant/internal/core/ports"
)

// MaxArticleNumber bounds extracted article numbers to the store's INTEGER key.
const MaxArticleNumber = math.MaxInt32

const maxDirectLookups = 3

var articleNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)მუხლ(?:ი|ის|ით|ში)?\s*#?\s*(\d+)`),
	regexp.MustCompile(`(\d+)\s*-?\s*ე\s+მუხლ`),
	regexp.MustCompile(`(?i)\barticle\s*#?\s*(\d+)`),
	regexp.MustCompile(`(?i)\bart\.\s*(\d+)`),
	regexp.MustCompile(`(?i)\b(\d+)(?:st|nd|rd|th)\s+article\b`),
	regexp.MustCompile(`(?i)\bmuxli\s*(\d+)`),
}

// detectArticleNumbers extracts article numbers written in Georgian, English
// or transliterated form, cardinal ("მუხლი 81", "article 81") or ordinal
// ("81-ე მუხლი", "81st article"). Numbers outside [1, MaxArticleNumber] are
// discarded.
func detectArticleNumbers(query string) []int {
	seen := make(map[int]struct{}, maxDirectLookups)
	out := make([]int, 0, maxDirectLookups)
	for _, pattern := range articleNumberPatterns {
		for _, match := range pattern.FindAllStringSubmatch(query, -1) {
			n, err := strconv.ParseInt(match[1], 10, 64)
			if err != nil || n < 1 || n > MaxArticleNumber {
				slog.Warn("article_number_out_of_range", "raw", truncateRunes(match[1], 32))
				continue
			}
			if _, ok := seen[int(n)]; ok {
				continue
			}
			seen[int(n)] = struct{}{}
			out = append(out, int(n))
			if len(out) == maxDirectLookups {
				return out
			}
		}
	}
	return out
}

type SearchConfig struct {
	SearchLimit         int
	SimilarityThreshold float64
	KeywordEnabled      bool
	DirectSemanticLimit int
	DirectKeywordLimit  int
	RRFK                int
}

func (c SearchConfig) normalize() SearchConfig {
	out := c
	if out.SearchLimit <= 0 {
		out.SearchLimit = 5
	}
	if out.SimilarityThreshold <= 0 {
		out.SimilarityThreshold = 0.5
	}
	if out.DirectSemanticLimit <= 0 {
		out.DirectSemanticLimit = 4
	}
	if out.DirectKeywordLimit <= 0 {
		out.DirectKeywordLimit = 3
	}
	if out.RRFK <= 0 {
		out.RRFK = DefaultRRFK
	}
	return out
}

// HybridSearcher runs the exact-key, semantic and lexical dispatchers
// concurrently and fuses their output.
type HybridSearcher struct {
	store    ports.ArticleStore
	index    ports.VectorIndex
	embedder ports.Embedder
	observer ports.PipelineObserver
	cfg      SearchConfig
}

func NewHybridSearcher(
	store ports.ArticleStore,
	index ports.VectorIndex,
	embedder ports.Embedder,
	observer ports.PipelineObserver,
	cfg SearchConfig,
) *HybridSearcher {
	if observer == nil {
		observer = nopObserver{}
	}
	return &HybridSearcher{
		store:    store,
		index:    index,
		embedder: embedder,
		observer: observer,
		cfg:      cfg.normalize(),
	}
}

type dispatcher struct {
	source domain.SearchType
	run    func(context.Context) ([]domain.SearchResult, error)
}

type dispatchOutcome struct {
	results []domain.SearchResult
	err     error
}

// Search returns the fused ranking for query. It fails only when every
// dispatcher failed; a single failing source contributes nothing.
func (s *HybridSearcher) Search(ctx context.Context, query string, route domain.RouteResult) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.SearchResult{}, nil
	}

	filter := route.Filter()
	semanticLimit := s.cfg.SearchLimit
	keywordLimit := s.cfg.SearchLimit

	dispatchers := make([]dispatcher, 0, 3)
	if numbers := detectArticleNumbers(query); len(numbers) > 0 {
		semanticLimit = s.cfg.DirectSemanticLimit
		keywordLimit = s.cfg.DirectKeywordLimit
		dispatchers = append(dispatchers, dispatcher{
			source: domain.SearchDirect,
			run: func(ctx context.Context) ([]domain.SearchResult, error) {
				return s.searchDirect(ctx, numbers)
			},
		})
	}
	dispatchers = append(dispatchers, dispatcher{
		source: domain.SearchSemantic,
		run: func(ctx context.Context) ([]domain.SearchResult, error) {
			return s.searchSemantic(ctx, query, semanticLimit, filter)
		},
	})
	if s.cfg.KeywordEnabled {
		dispatchers = append(dispatchers, dispatcher{
			source: domain.SearchKeyword,
			run: func(ctx context.Context) ([]domain.SearchResult, error) {
				return s.searchKeyword(ctx, query, keywordLimit)
			},
		})
	}

	outcomes := make([]dispatchOutcome, len(dispatchers))
	var g errgroup.Group
	for i, d := range dispatchers {
		g.Go(func() error {
			results, err := d.run(ctx)
			outcomes[i] = dispatchOutcome{results: results, err: err}
			return nil
		})
	}
	_ = g.Wait()

	merged := make([]domain.SearchResult, 0, s.cfg.SearchLimit*len(dispatchers))
	var errs []error
	for i, outcome := range outcomes {
		source := dispatchers[i].source
		s.observer.ObserveDispatch(source, len(outcome.results), outcome.err)
		if outcome.err != nil {
			slog.Error("partial_search_failure", "source", source.String(), "error", outcome.err)
			errs = append(errs, outcome.err)
			continue
		}
		merged = append(merged, outcome.results...)
	}
	if len(errs) == len(dispatchers) {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "hybrid search", errors.Join(errs...))
	}

	return fuseRRF(merged, s.cfg.RRFK), nil
}

func (s *HybridSearcher) searchDirect(ctx context.Context, numbers []int) ([]domain.SearchResult, error) {
	if len(numbers) == 1 {
		article, err := s.store.FindByNumber(ctx, numbers[0])
		if err != nil {
			if domain.IsKind(err, domain.ErrArticleNotFound) {
				return []domain.SearchResult{}, nil
			}
			return nil, err
		}
		return []domain.SearchResult{article.AsResult(domain.SearchDirect, 1.0)}, nil
	}

	articles, err := s.store.FindByNumbers(ctx, numbers)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SearchResult, 0, len(articles))
	for _, article := range articles {
		out = append(out, article.AsResult(domain.SearchDirect, 1.0))
	}
	return out, nil
}

// searchSemantic embeds the query once and searches with the domain filter,
// retrying without it when the filter leaves fewer than two results.
func (s *HybridSearcher) searchSemantic(ctx context.Context, query string, limit int, filter domain.SearchFilter) ([]domain.SearchResult, error) {
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := s.semanticOnce(ctx, vector, limit, filter)
	if err != nil {
		return nil, err
	}
	if filter.Domain != "" && len(results) < 2 {
		slog.Warn("domain_filter_fallback", "domain", filter.Domain, "results_with_filter", len(results))
		return s.semanticOnce(ctx, vector, limit, domain.SearchFilter{})
	}
	return results, nil
}

func (s *HybridSearcher) semanticOnce(ctx context.Context, vector []float32, limit int, filter domain.SearchFilter) ([]domain.SearchResult, error) {
	raw, err := s.index.SearchSemantic(ctx, vector, limit, filter)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SearchResult, 0, len(raw))
	for _, result := range trimResults(raw, limit) {
		if result.Score < s.cfg.SimilarityThreshold {
			continue
		}
		result.SearchType = domain.SearchSemantic
		result.IsCrossRef = false
		out = append(out, result)
	}
	return out, nil
}

func (s *HybridSearcher) searchKeyword(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	raw, err := s.store.SearchLexical(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SearchResult, 0, len(raw))
	for _, result := range trimResults(raw, limit) {
		result.SearchType = domain.SearchKeyword
		result.IsCrossRef = false
		out = append(out, result)
	}
	return out, nil
}
