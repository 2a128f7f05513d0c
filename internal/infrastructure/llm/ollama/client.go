package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
	"github.com/kirillkom/tax-law-assistant/internal/infrastructure/resilience"
)

// Client is a local Ollama backend. Ollama applies no safety filtering, so
// the requested safety tier is ignored.
type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
	opPrefix   string
}

func New(baseURL, genModel, embedModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
		opPrefix:   "ollama",
	}
}

// WithOperationPrefix returns a copy whose breakers are named under prefix.
func (c *Client) WithOperationPrefix(prefix string) *Client {
	clone := *c
	if prefix = strings.TrimSpace(prefix); prefix != "" {
		clone.opPrefix = prefix
	}
	return &clone
}

type Embedder struct {
	client     *Client
	dimensions int
}

// NewEmbedder validates vector length against dimensions when it is positive.
func NewEmbedder(client *Client, dimensions int) *Embedder {
	return &Embedder{client: client, dimensions: dimensions}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed", ""); err != nil {
		return nil, err
	}
	if e.dimensions > 0 {
		for _, vector := range response.Embeddings {
			if len(vector) != e.dimensions {
				return nil, domain.WrapError(domain.ErrEmbeddingDimension, "ollama embed",
					fmt.Errorf("expected %d dimensions, got %d", e.dimensions, len(vector)))
			}
		}
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResponse, error) {
	model := req.Model
	if strings.TrimSpace(model) == "" {
		model = g.client.genModel
	}

	messages := make([]chatMessage, 0, len(req.Messages)+1)
	if strings.TrimSpace(req.SystemPrompt) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, msg := range req.Messages {
		role := "user"
		if msg.Role == domain.RoleModel {
			role = "assistant"
		}
		messages = append(messages, chatMessage{Role: role, Content: msg.Text})
	}

	options := map[string]any{"temperature": req.Temperature}
	if req.MaxOutputTokens > 0 {
		options["num_predict"] = req.MaxOutputTokens
	}
	body := map[string]any{
		"model":    model,
		"messages": messages,
		"stream":   false,
		"options":  options,
	}
	if req.JSON {
		body["format"] = "json"
	}

	var response struct {
		Message    chatMessage `json:"message"`
		DoneReason string      `json:"done_reason"`
	}
	if err := g.client.postJSON(ctx, "/api/chat", body, &response, "chat", model); err != nil {
		return domain.GenerationResponse{}, err
	}

	finish := domain.FinishStop
	switch response.DoneReason {
	case "length":
		finish = domain.FinishMaxTokens
	case "", "stop":
	default:
		finish = domain.FinishOther
	}
	return domain.GenerationResponse{Text: strings.TrimSpace(response.Message.Content), FinishReason: finish}, nil
}
