package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
)

type articleStoreFake struct {
	mu          sync.Mutex
	articles    map[int]domain.Article
	lexical     []domain.SearchResult
	lexicalErr  error
	findErr     error
	findCalls   int
	lexicalSeen string
}

func (f *articleStoreFake) FindByNumber(_ context.Context, n int) (*domain.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	article, ok := f.articles[n]
	if !ok {
		return nil, domain.ErrArticleNotFound
	}
	return &article, nil
}

func (f *articleStoreFake) FindByNumbers(_ context.Context, numbers []int) ([]domain.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	out := make([]domain.Article, 0, len(numbers))
	for _, n := range numbers {
		if article, ok := f.articles[n]; ok {
			out = append(out, article)
		}
	}
	return out, nil
}

func (f *articleStoreFake) SearchLexical(_ context.Context, query string, _ int) ([]domain.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lexicalSeen = query
	if f.lexicalErr != nil {
		return nil, f.lexicalErr
	}
	return append([]domain.SearchResult(nil), f.lexical...), nil
}

type vectorIndexFake struct {
	mu       sync.Mutex
	byDomain map[string][]domain.SearchResult
	err      error
	filters  []domain.SearchFilter
}

func (f *vectorIndexFake) SearchSemantic(_ context.Context, _ []float32, _ int, filter domain.SearchFilter) ([]domain.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.SearchResult(nil), f.byDomain[filter.Domain]...), nil
}

type embedderFake struct {
	mu      sync.Mutex
	err     error
	queries []string
	batches [][]string
	dims    int
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, texts)
	if f.err != nil {
		return nil, f.err
	}
	dims := f.dims
	if dims == 0 {
		dims = 3
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, dims)
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type scriptedReply struct {
	resp domain.GenerationResponse
	err  error
}

// generatorFake replays replies in order and repeats the last one.
type generatorFake struct {
	mu       sync.Mutex
	replies  []scriptedReply
	requests []domain.GenerationRequest
	block    bool
}

func (f *generatorFake) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	idx := len(f.requests) - 1
	block := f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return domain.GenerationResponse{}, ctx.Err()
	}
	if len(f.replies) == 0 {
		return domain.GenerationResponse{}, errors.New("no scripted reply")
	}
	if idx >= len(f.replies) {
		idx = len(f.replies) - 1
	}
	return f.replies[idx].resp, f.replies[idx].err
}

func (f *generatorFake) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func okReply(text string) scriptedReply {
	return scriptedReply{resp: domain.GenerationResponse{Text: text, FinishReason: domain.FinishStop}}
}

func finishReply(reason domain.FinishReason) scriptedReply {
	return scriptedReply{resp: domain.GenerationResponse{FinishReason: reason}}
}

type definitionStoreFake struct {
	defs []domain.Definition
	err  error
}

func (f *definitionStoreFake) ListDefinitions(context.Context) ([]domain.Definition, error) {
	return f.defs, f.err
}

type logicRulesFake struct {
	rules map[domain.TaxDomain]string
}

func (f *logicRulesFake) RulesFor(d domain.TaxDomain) (string, bool) {
	rules, ok := f.rules[d]
	return rules, ok
}

type conversationStoreFake struct {
	mu        sync.Mutex
	turns     map[string][]domain.ConversationTurn
	appendErr error
	listErr   error
}

func (f *conversationStoreFake) AppendTurns(_ context.Context, conversationID string, turns []domain.ConversationTurn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	if f.turns == nil {
		f.turns = make(map[string][]domain.ConversationTurn)
	}
	f.turns[conversationID] = append(f.turns[conversationID], turns...)
	return nil
}

func (f *conversationStoreFake) ListRecentTurns(_ context.Context, conversationID string, limit int) ([]domain.ConversationTurn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	turns := f.turns[conversationID]
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return append([]domain.ConversationTurn(nil), turns...), nil
}

type publisherFake struct {
	records chan domain.AnswerRecord
	err     error
}

func newPublisherFake() *publisherFake {
	return &publisherFake{records: make(chan domain.AnswerRecord, 4)}
}

func (f *publisherFake) PublishAnswerRecorded(_ context.Context, record domain.AnswerRecord) error {
	f.records <- record
	return f.err
}

type observerFake struct {
	mu         sync.Mutex
	dispatches map[domain.SearchType]error
	attempts   []domain.AttemptState
	verdicts   []bool
	packed     [2]int
	answers    int
}

func newObserverFake() *observerFake {
	return &observerFake{dispatches: make(map[domain.SearchType]error)}
}

func (o *observerFake) ObserveDispatch(source domain.SearchType, _ int, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dispatches[source] = err
}

func (o *observerFake) ObserveGenerationAttempt(_ domain.GenerationAttempt, state domain.AttemptState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts = append(o.attempts, state)
}

func (o *observerFake) ObserveCriticVerdict(approved bool, _ bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.verdicts = append(o.verdicts, approved)
}

func (o *observerFake) ObserveContextPacked(kept, dropped int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.packed = [2]int{kept, dropped}
}

func (o *observerFake) ObserveAnswer(bool, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.answers++
}

func result(n int, score float64, searchType domain.SearchType) domain.SearchResult {
	return domain.SearchResult{ArticleNumber: n, Score: score, SearchType: searchType, Title: "title", Body: "body"}
}

func articleNumbers(results []domain.SearchResult) []int {
	out := make([]int, 0, len(results))
	for _, r := range results {
		out = append(out, r.ArticleNumber)
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
