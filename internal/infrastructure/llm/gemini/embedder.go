package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
)

const DefaultEmbeddingDimensions = 3072

type embedContentRequest struct {
	Model                string  `json:"model,omitempty"`
	Content              content `json:"content"`
	TaskType             string  `json:"taskType,omitempty"`
	OutputDimensionality int     `json:"outputDimensionality,omitempty"`
}

type embedding struct {
	Values []float32 `json:"values"`
}

// Embedder builds document and query vectors and rejects any vector whose
// length differs from the configured dimension.
type Embedder struct {
	client     *Client
	model      string
	dimensions int
}

func NewEmbedder(client *Client, model string, dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	return &Embedder{client: client, model: model, dimensions: dimensions}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	requests := make([]embedContentRequest, 0, len(texts))
	for _, text := range texts {
		requests = append(requests, e.request(text, "RETRIEVAL_DOCUMENT"))
	}

	var resp struct {
		Embeddings []embedding `json:"embeddings"`
	}
	payload := map[string]any{"requests": requests}
	if err := e.client.postJSON(ctx, modelPath(e.model, "batchEmbedContents"), payload, &resp, "batch_embed", ""); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini batch embed: got %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, 0, len(resp.Embeddings))
	for _, emb := range resp.Embeddings {
		if err := e.validate(emb.Values); err != nil {
			return nil, err
		}
		out = append(out, emb.Values)
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var resp struct {
		Embedding embedding `json:"embedding"`
	}
	if err := e.client.postJSON(ctx, modelPath(e.model, "embedContent"), e.request(text, "RETRIEVAL_QUERY"), &resp, "embed", ""); err != nil {
		return nil, err
	}
	if err := e.validate(resp.Embedding.Values); err != nil {
		return nil, err
	}
	return resp.Embedding.Values, nil
}

func (e *Embedder) request(text, taskType string) embedContentRequest {
	return embedContentRequest{
		Model:                "models/" + strings.TrimPrefix(e.model, "models/"),
		Content:              content{Parts: []part{{Text: text}}},
		TaskType:             taskType,
		OutputDimensionality: e.dimensions,
	}
}

func (e *Embedder) validate(vector []float32) error {
	if len(vector) != e.dimensions {
		return domain.WrapError(domain.ErrEmbeddingDimension, "gemini embed",
			fmt.Errorf("expected %d dimensions, got %d", e.dimensions, len(vector)))
	}
	return nil
}
