package ports

import (
	"context"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
)

// ArticleStore is the document store holding the statute corpus.
type ArticleStore interface {
	FindByNumber(ctx context.Context, articleNumber int) (*domain.Article, error)
	FindByNumbers(ctx context.Context, articleNumbers []int) ([]domain.Article, error)
	SearchLexical(ctx context.Context, query string, limit int) ([]domain.SearchResult, error)
}

// ArticleCatalog lists the corpus for indexing.
type ArticleCatalog interface {
	ListActive(ctx context.Context) ([]domain.Article, error)
}

// DefinitionStore holds the glossary of tax terms.
type DefinitionStore interface {
	ListDefinitions(ctx context.Context) ([]domain.Definition, error)
}

// VectorIndex performs approximate nearest-neighbour search over article embeddings.
type VectorIndex interface {
	SearchSemantic(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.SearchResult, error)
}

// VectorIndexWriter upserts article embeddings.
type VectorIndexWriter interface {
	UpsertArticles(ctx context.Context, articles []domain.Article, vectors [][]float32) error
}

// Embedder builds fixed-dimension vectors for texts.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// TextGenerator calls the text-generation backend.
type TextGenerator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResponse, error)
}

// LogicRules returns domain-specific reasoning rules, if any exist.
type LogicRules interface {
	RulesFor(domain domain.TaxDomain) (string, bool)
}

// ConversationStore persists conversation turns.
type ConversationStore interface {
	AppendTurns(ctx context.Context, conversationID string, turns []domain.ConversationTurn) error
	ListRecentTurns(ctx context.Context, conversationID string, limit int) ([]domain.ConversationTurn, error)
}

// AnswerPublisher hands finished answers to the persistence worker.
type AnswerPublisher interface {
	PublishAnswerRecorded(ctx context.Context, record domain.AnswerRecord) error
}

// AnswerSubscriber consumes finished answers.
type AnswerSubscriber interface {
	SubscribeAnswerRecorded(ctx context.Context, handler func(context.Context, domain.AnswerRecord) error) error
}

// PipelineObserver receives pipeline measurements. Implementations must be
// safe for concurrent use.
type PipelineObserver interface {
	ObserveDispatch(source domain.SearchType, results int, err error)
	ObserveGenerationAttempt(attempt domain.GenerationAttempt, state domain.AttemptState)
	ObserveCriticVerdict(approved bool, regenerated bool)
	ObserveContextPacked(kept, dropped int)
	ObserveAnswer(grounded, safetyFallback bool)
}
