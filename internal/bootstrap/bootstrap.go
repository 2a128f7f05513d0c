package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kirillkom/tax-law-assistant/internal/config"
	"github.com/kirillkom/tax-law-assistant/internal/core/ports"
	"github.com/kirillkom/tax-law-assistant/internal/core/usecase"
	"github.com/kirillkom/tax-law-assistant/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/tax-law-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/tax-law-assistant/internal/infrastructure/logicrules"
	"github.com/kirillkom/tax-law-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/tax-law-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/tax-law-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/tax-law-assistant/internal/infrastructure/routing"
	"github.com/kirillkom/tax-law-assistant/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/tax-law-assistant/internal/observability/metrics"
)

// App is the explicit dependency context of one process. It is built once at
// startup and torn down with Close.
type App struct {
	Config config.Config

	DB            *sql.DB
	Articles      *postgres.ArticleRepository
	Definitions   *postgres.DefinitionRepository
	Conversations *postgres.ConversationRepository
	Queue         *nats.Queue
	Metrics       *metrics.HTTPServerMetrics

	AnswerUC ports.TaxQuestionAnswerer
	RecordUC ports.AnswerRecorder
	IndexUC  *usecase.IndexArticlesUseCase

	closers []func()
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// NewAPI wires the question-answering pipeline.
func NewAPI(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{Config: cfg, Metrics: metrics.NewHTTPServerMetrics("tax-api")}
	if err := app.openStore(ctx); err != nil {
		app.Close()
		return nil, err
	}

	hooks := resilience.Hooks{
		OnRetry:       app.Metrics.RecordRetry,
		OnStateChange: app.Metrics.RecordBreakerStateChange,
	}
	executor := resilience.NewExecutorWithHooks(resilience.ConfigFor(resilience.ProfileStore), hooks)

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ClientName:         "tax-api",
		ResilienceExecutor: executor,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	app.Queue = queue
	app.closers = append(app.closers, queue.Close)

	backend, err := newLLMBackend(cfg, hooks)
	if err != nil {
		app.Close()
		return nil, err
	}
	embedder := ports.Embedder(backend.embedder)
	if cfg.EmbeddingCacheSize > 0 {
		cached, err := usecase.NewCachedEmbedder(backend.embedder, cfg.EmbeddingCacheSize)
		if err != nil {
			app.Close()
			return nil, err
		}
		embedder = cached
	}

	vectorIndex := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, executor)

	keywordTable, err := routing.LoadFile(cfg.RouterKeywordsFile)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("load router keywords: %w", err)
	}

	var rules ports.LogicRules
	if cfg.LogicRulesEnabled {
		loader, err := logicrules.New(cfg.LogicRulesDir, logicrules.DefaultCacheSize)
		if err != nil {
			app.Close()
			return nil, err
		}
		rules = loader
	}

	searcher := usecase.NewHybridSearcher(app.Articles, vectorIndex, embedder, app.Metrics, usecase.SearchConfig{
		SearchLimit:         cfg.SearchLimit,
		SimilarityThreshold: cfg.SimilarityThreshold,
		KeywordEnabled:      cfg.KeywordSearchEnabled,
		RRFK:                cfg.RRFK,
	})

	app.AnswerUC = usecase.NewAnswerUseCase(
		searcher,
		usecase.NewGraphExpander(app.Articles, cfg.MaxGraphRefs),
		backend.generator,
		usecase.NewCritic(backend.auxGenerator, backend.models.critic, cfg.CriticTimeout),
		usecase.NewQueryRewriter(backend.auxGenerator, backend.models.rewrite, cfg.QueryRewriteTimeout),
		usecase.NewFollowUpGenerator(backend.auxGenerator, backend.models.followUp, cfg.FollowUpMaxSuggestions, cfg.FollowUpTimeout),
		usecase.NewDomainRouter(keywordTable, nil),
		app.Definitions,
		rules,
		app.Conversations,
		queue,
		app.Metrics,
		usecase.AnswerConfig{
			PrimaryModel:              backend.models.primary,
			BackupModel:               backend.models.backup,
			Temperature:               cfg.Temperature,
			MaxOutputTokens:           cfg.MaxOutputTokens,
			MaxHistoryTurns:           cfg.MaxHistoryTurns,
			MaxContextChars:           cfg.MaxContextChars,
			RouterEnabled:             cfg.RouterEnabled,
			GraphExpansionEnabled:     cfg.GraphExpansionEnabled,
			CitationEnabled:           cfg.CitationEnabled,
			SafetyRetryEnabled:        cfg.SafetyRetryEnabled,
			CriticEnabled:             cfg.CriticEnabled,
			CriticRegenerationEnabled: cfg.CriticRegenerationEnabled,
			CriticConfidenceThreshold: cfg.CriticConfidenceThreshold,
			FollowUpEnabled:           cfg.FollowUpEnabled,
			SourceBaseURL:             cfg.MatsneBaseURL,
		},
	)
	return app, nil
}

// NewWorker wires the answer persistence consumer.
func NewWorker(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{Config: cfg}
	if err := app.openStore(ctx); err != nil {
		app.Close()
		return nil, err
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{ClientName: "tax-worker"})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	app.Queue = queue
	app.closers = append(app.closers, queue.Close)

	app.RecordUC = usecase.NewRecordAnswerUseCase(app.Conversations)
	return app, nil
}

// NewIndexer wires the embedding pipeline from Postgres into Qdrant.
func NewIndexer(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{Config: cfg}
	if err := app.openStore(ctx); err != nil {
		app.Close()
		return nil, err
	}

	backend, err := newLLMBackend(cfg, resilience.Hooks{})
	if err != nil {
		app.Close()
		return nil, err
	}
	vectorIndex := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, resilience.NewExecutor(resilience.ConfigFor(resilience.ProfileStore)))
	app.IndexUC = usecase.NewIndexArticlesUseCase(app.Articles, backend.embedder, vectorIndex, cfg.IndexBatchSize)
	return app, nil
}

func (a *App) openStore(ctx context.Context) error {
	db, err := postgres.OpenDB(a.Config.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, func() { _ = db.Close() })

	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	a.Articles = postgres.NewArticleRepository(db)
	a.Definitions = postgres.NewDefinitionRepository(db)
	a.Conversations = postgres.NewConversationRepository(db)
	return nil
}

type modelSet struct {
	primary  string
	backup   string
	rewrite  string
	followUp string
	critic   string
}

type llmBackend struct {
	generator    ports.TextGenerator
	auxGenerator ports.TextGenerator
	embedder     ports.Embedder
	models       modelSet
}

// newLLMBackend gives generation a single-attempt executor with breakers
// named per model; the safety retry controller owns generation retries.
// Critic, query rewrite and follow-ups use their own executor so their
// breakers stay off the answer path. Embeddings keep executor retries.
func newLLMBackend(cfg config.Config, hooks resilience.Hooks) (llmBackend, error) {
	embedExecutor := resilience.NewExecutorWithHooks(resilience.ConfigFor(resilience.ProfileEmbedding), hooks)
	genExecutor := resilience.NewExecutorWithHooks(resilience.ConfigFor(resilience.ProfileGeneration), hooks)
	auxExecutor := resilience.NewExecutorWithHooks(resilience.ConfigFor(resilience.ProfileAuxiliary), hooks)

	switch strings.ToLower(strings.TrimSpace(cfg.LLMBackend)) {
	case config.LLMBackendGemini, "":
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			return llmBackend{}, fmt.Errorf("GEMINI_API_KEY is required for the gemini backend")
		}
		client := func(executor *resilience.Executor, prefix string) *gemini.Client {
			return gemini.New(gemini.Options{
				BaseURL:            cfg.GeminiBaseURL,
				APIKey:             cfg.GeminiAPIKey,
				Timeout:            cfg.LLMTimeout,
				ResilienceExecutor: executor,
				OperationPrefix:    prefix,
			})
		}
		return llmBackend{
			generator:    gemini.NewGenerator(client(genExecutor, "gemini"), cfg.GenerationModel),
			auxGenerator: gemini.NewGenerator(client(auxExecutor, "gemini.aux"), cfg.GenerationModel),
			embedder:     gemini.NewEmbedder(client(embedExecutor, "gemini"), cfg.EmbeddingModel, cfg.EmbeddingDimensions),
			models: modelSet{
				primary:  cfg.GenerationModel,
				backup:   cfg.SafetyFallbackModel,
				rewrite:  cfg.QueryRewriteModel,
				followUp: cfg.FollowUpModel,
				critic:   cfg.CriticModel,
			},
		}, nil
	case config.LLMBackendOllama:
		// One local model serves every role.
		model := cfg.OllamaGenModel
		return llmBackend{
			generator:    ollama.NewGenerator(ollama.New(cfg.OllamaURL, model, cfg.OllamaEmbedModel, genExecutor)),
			auxGenerator: ollama.NewGenerator(ollama.New(cfg.OllamaURL, model, cfg.OllamaEmbedModel, auxExecutor).WithOperationPrefix("ollama.aux")),
			embedder:     ollama.NewEmbedder(ollama.New(cfg.OllamaURL, model, cfg.OllamaEmbedModel, embedExecutor), cfg.OllamaEmbeddingDimensions),
			models:       modelSet{primary: model, backup: model, rewrite: model, followUp: model, critic: model},
		}, nil
	default:
		return llmBackend{}, fmt.Errorf("unknown LLM_BACKEND %q", cfg.LLMBackend)
	}
}
