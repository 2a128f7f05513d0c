package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
)

func TestGeneratorSendsChatMessages(t *testing.T) {
	var payload struct {
		Model    string        `json:"model"`
		Messages []chatMessage `json:"messages"`
		Format   string        `json:"format"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":" ok "},"done_reason":"stop"}`))
	}))
	defer server.Close()

	gen := NewGenerator(New(server.URL, "gen", "embed", nil))
	resp, err := gen.Generate(context.Background(), domain.GenerationRequest{
		SystemPrompt: "sys",
		Messages:     []domain.Message{{Role: domain.RoleModel, Text: "prev"}, {Role: domain.RoleUser, Text: "question?"}},
		JSON:         true,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Text != "ok" || resp.FinishReason != domain.FinishStop {
		t.Fatalf("unexpected response %+v", resp)
	}
	if payload.Model != "gen" || payload.Format != "json" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if len(payload.Messages) != 3 || payload.Messages[0].Role != "system" || payload.Messages[1].Role != "assistant" {
		t.Fatalf("unexpected messages %+v", payload.Messages)
	}
}

func TestGeneratorMapsLengthToMaxTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":{"content":"partial"},"done_reason":"length"}`))
	}))
	defer server.Close()

	resp, err := NewGenerator(New(server.URL, "gen", "embed", nil)).Generate(context.Background(), domain.GenerationRequest{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.FinishReason != domain.FinishMaxTokens {
		t.Fatalf("expected max_tokens, got %q", resp.FinishReason)
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed", nil), 0)
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected 502 to be temporary, got %v", err)
	}
}

func TestEmbedRejectsWrongDimension(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2]]}`))
	}))
	defer server.Close()

	_, err := NewEmbedder(New(server.URL, "gen", "embed", nil), 768).EmbedQuery(context.Background(), "q")
	if !domain.IsKind(err, domain.ErrEmbeddingDimension) {
		t.Fatalf("expected dimension error, got %v", err)
	}
}

func TestWithOperationPrefixCopiesClient(t *testing.T) {
	base := New("http://localhost:11434", "gen", "embed", nil)
	aux := base.WithOperationPrefix("ollama.aux")
	if base.opPrefix != "ollama" || aux.opPrefix != "ollama.aux" {
		t.Fatalf("prefixes = %q/%q", base.opPrefix, aux.opPrefix)
	}
	if kept := aux.WithOperationPrefix("  "); kept.opPrefix != "ollama.aux" {
		t.Fatalf("blank prefix must keep the current one, got %q", kept.opPrefix)
	}
}
