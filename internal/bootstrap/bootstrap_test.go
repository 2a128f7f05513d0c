package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/tax-law-assistant/internal/config"
	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
	"github.com/kirillkom/tax-law-assistant/internal/core/usecase"
	"github.com/kirillkom/tax-law-assistant/internal/infrastructure/resilience"
)

func TestNewLLMBackendRequiresGeminiKey(t *testing.T) {
	_, err := newLLMBackend(config.Config{LLMBackend: config.LLMBackendGemini}, resilience.Hooks{})
	if err == nil {
		t.Fatalf("expected error without GEMINI_API_KEY")
	}
}

func TestNewLLMBackendGeminiUsesConfiguredModels(t *testing.T) {
	backend, err := newLLMBackend(config.Config{
		LLMBackend:          config.LLMBackendGemini,
		GeminiAPIKey:        "key",
		GenerationModel:     "gen",
		SafetyFallbackModel: "backup",
		QueryRewriteModel:   "rewrite",
		FollowUpModel:       "follow",
		CriticModel:         "critic",
		EmbeddingModel:      "embed",
		EmbeddingDimensions: 3072,
	}, resilience.Hooks{})
	if err != nil {
		t.Fatalf("newLLMBackend() error = %v", err)
	}
	want := modelSet{primary: "gen", backup: "backup", rewrite: "rewrite", followUp: "follow", critic: "critic"}
	if backend.models != want {
		t.Fatalf("models = %+v, want %+v", backend.models, want)
	}
	if backend.generator == nil || backend.auxGenerator == nil || backend.embedder == nil {
		t.Fatalf("expected generators and embedder")
	}
	if backend.generator == backend.auxGenerator {
		t.Fatalf("auxiliary calls must not share the answer generator")
	}
}

func TestNewLLMBackendOllamaUsesOneModel(t *testing.T) {
	backend, err := newLLMBackend(config.Config{
		LLMBackend:       config.LLMBackendOllama,
		OllamaURL:        "http://localhost:11434",
		OllamaGenModel:   "llama3.1:8b",
		OllamaEmbedModel: "nomic-embed-text",
	}, resilience.Hooks{})
	if err != nil {
		t.Fatalf("newLLMBackend() error = %v", err)
	}
	if backend.models.primary != "llama3.1:8b" || backend.models.backup != "llama3.1:8b" || backend.models.critic != "llama3.1:8b" {
		t.Fatalf("unexpected models: %+v", backend.models)
	}
}

func TestNewLLMBackendRejectsUnknownBackend(t *testing.T) {
	if _, err := newLLMBackend(config.Config{LLMBackend: "openai"}, resilience.Hooks{}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestAppCloseRunsClosersInReverse(t *testing.T) {
	var order []int
	app := &App{}
	app.closers = append(app.closers, func() { order = append(order, 1) }, func() { order = append(order, 2) })
	app.Close()
	app.Close()
	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Fatalf("close order = %v, want [2 1]", order)
	}
}

func geminiTestConfig(baseURL string) config.Config {
	return config.Config{
		LLMBackend:          config.LLMBackendGemini,
		GeminiAPIKey:        "key",
		GeminiBaseURL:       baseURL,
		GenerationModel:     "gemini-3-flash-preview",
		SafetyFallbackModel: "gemini-2.5-flash",
		CriticModel:         "gemini-3-flash-preview",
		EmbeddingModel:      "gemini-embedding-001",
		EmbeddingDimensions: 3,
	}
}

func TestAuxiliaryFailuresLeaveAnswerGeneratorAvailable(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			http.Error(w, "internal", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]},"finishReason":"STOP"}]}`))
	}))
	defer server.Close()

	backend, err := newLLMBackend(geminiTestConfig(server.URL), resilience.Hooks{})
	if err != nil {
		t.Fatalf("newLLMBackend() error = %v", err)
	}

	// Critic and answer share a model name; only the executor separates them.
	critic := usecase.NewCritic(backend.auxGenerator, backend.models.critic, time.Second)
	citations := []domain.Citation{{ID: 1, ArticleNumber: 166, Title: "VAT"}}
	for i := 0; i < 20; i++ {
		if verdict := critic.Review(context.Background(), "answer [1]", citations); !verdict.Approved {
			t.Fatalf("critic must fail open, got %+v", verdict)
		}
	}

	failing.Store(false)
	resp, err := backend.generator.Generate(context.Background(), domain.GenerationRequest{Model: backend.models.primary})
	if err != nil {
		t.Fatalf("Generate() after critic failures error = %v", err)
	}
	if resp.Text != "ok" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestSafetyRetryOwnsGenerationRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	backend, err := newLLMBackend(geminiTestConfig(server.URL), resilience.Hooks{})
	if err != nil {
		t.Fatalf("newLLMBackend() error = %v", err)
	}
	controller := usecase.NewSafetyRetryController(
		backend.generator,
		nil,
		usecase.SafetyAttempts(backend.models.primary, backend.models.backup),
		true,
	)
	outcome := controller.Run(context.Background(), domain.GenerationRequest{})
	if outcome.Grounded {
		t.Fatalf("expected fallback outcome, got %+v", outcome)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected one HTTP call per attempt (3), got %d", got)
	}
}
