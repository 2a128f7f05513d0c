package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
	"github.com/kirillkom/tax-law-assistant/internal/infrastructure/resilience"
)

// Client stores one point per article, keyed by article number.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
	}
}

type point struct {
	ID      uint64         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

func (c *Client) UpsertArticles(ctx context.Context, articles []domain.Article, vectors [][]float32) error {
	if len(articles) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(articles) != len(vectors) {
		return fmt.Errorf("articles/vectors mismatch")
	}
	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	points := make([]point, 0, len(articles))
	for i, article := range articles {
		status := article.Status
		if status == "" {
			status = domain.ArticleStatusActive
		}
		articleDomain := article.Domain
		if articleDomain == "" {
			articleDomain = string(domain.DomainGeneral)
		}
		points = append(points, point{
			ID:     uint64(article.ArticleNumber),
			Vector: vectors[i],
			Payload: map[string]any{
				"article_number":   article.ArticleNumber,
				"kari":             article.Kari,
				"tavi":             article.Tavi,
				"title":            article.Title,
				"body":             article.Body,
				"domain":           articleDomain,
				"status":           status,
				"is_exception":     article.IsException,
				"related_articles": article.RelatedArticles,
			},
		})
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	return c.doJSON(ctx, http.MethodPut, url, map[string]any{"points": points}, nil, "upsert")
}

// SearchSemantic returns active articles nearest to queryVector. A domain
// filter also admits GENERAL articles.
func (c *Client) SearchSemantic(
	ctx context.Context,
	queryVector []float32,
	limit int,
	filter domain.SearchFilter,
) ([]domain.SearchResult, error) {
	must := []map[string]any{
		{"key": "status", "match": map[string]any{"value": domain.ArticleStatusActive}},
	}
	if filter.Domain != "" {
		must = append(must, map[string]any{
			"key":   "domain",
			"match": map[string]any{"any": []string{filter.Domain, string(domain.DomainGeneral)}},
		})
	}
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
		"filter":       map[string]any{"must": must},
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	if err := c.doJSON(ctx, http.MethodPost, url, reqBody, &searchResp, "search"); err != nil {
		return nil, err
	}

	out := make([]domain.SearchResult, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.SearchResult{
			ArticleNumber:   getIntPayload(r.Payload, "article_number"),
			Title:           getStringPayload(r.Payload, "title"),
			Body:            getStringPayload(r.Payload, "body"),
			Kari:            getStringPayload(r.Payload, "kari"),
			Tavi:            getStringPayload(r.Payload, "tavi"),
			Score:           r.Score,
			SearchType:      domain.SearchSemantic,
			IsException:     getBoolPayload(r.Payload, "is_exception"),
			RelatedArticles: getIntsPayload(r.Payload, "related_articles"),
		})
	}
	return out, nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	err := c.doJSON(ctx, http.MethodPut, url, reqBody, nil, "ensure_collection")

	// 409 when the collection already exists.
	var statusErr *resilience.HTTPStatusError
	if err != nil && !(asStatus(err, &statusErr) && statusErr.StatusCode == http.StatusConflict) {
		return err
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

func (c *Client) doJSON(ctx context.Context, method, url string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	call := func(callCtx context.Context) error {
		req, err := http.NewRequestWithContext(callCtx, method, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("qdrant %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return resilience.NewHTTPStatusError("qdrant", operation, resp)
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	}

	if c.executor != nil {
		err = c.executor.Execute(ctx, "qdrant."+operation, call, classifyQdrantError)
	} else {
		err = call(ctx)
	}
	return resilience.WrapTemporary("qdrant "+operation, err, classifyQdrantError)
}
