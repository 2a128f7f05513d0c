package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
)

func TestUpsertArticlesEnsuresCollectionOncePerVectorSize(t *testing.T) {
	var ensureCalls int32
	var upsertBody struct {
		Points []point `json:"points"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/tax_articles":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/tax_articles/points":
			_ = json.NewDecoder(r.Body).Decode(&upsertBody)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "tax_articles", nil)
	articles := []domain.Article{{ArticleNumber: 166, Title: "rate", Domain: "VAT"}, {ArticleNumber: 81}}
	vectors := [][]float32{{0.1, 0.2}, {0.3, 0.4}}

	for i := 0; i < 2; i++ {
		if err := client.UpsertArticles(context.Background(), articles, vectors); err != nil {
			t.Fatalf("UpsertArticles() error = %v", err)
		}
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}
	if len(upsertBody.Points) != 2 || upsertBody.Points[0].ID != 166 {
		t.Fatalf("unexpected points %+v", upsertBody.Points)
	}
	if upsertBody.Points[1].Payload["domain"] != "GENERAL" || upsertBody.Points[1].Payload["status"] != "active" {
		t.Fatalf("expected default domain and status, got %+v", upsertBody.Points[1].Payload)
	}
}

func TestEnsureCollectionConflictIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/collections/tax_articles" {
			http.Error(w, "exists", http.StatusConflict)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	err := New(server.URL, "tax_articles", nil).UpsertArticles(context.Background(),
		[]domain.Article{{ArticleNumber: 1}}, [][]float32{{0.1}})
	if err != nil {
		t.Fatalf("expected conflict to be tolerated, got %v", err)
	}
}

func TestEnsureCollectionIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	err := New(server.URL, "tax_articles", nil).UpsertArticles(context.Background(),
		[]domain.Article{{ArticleNumber: 1}}, [][]float32{{0.1, 0.2}})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected 500 to be temporary, got %v", err)
	}
}

func TestSearchSemanticAppliesFilters(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = w.Write([]byte(`{"result":[{"score":0.91,"payload":{"article_number":166,"title":"rate","body":"18%","kari":"IX","is_exception":true,"related_articles":[165,170]}}]}`))
	}))
	defer server.Close()

	results, err := New(server.URL, "tax_articles", nil).SearchSemantic(context.Background(), []float32{0.1}, 5, domain.SearchFilter{Domain: "VAT"})
	if err != nil {
		t.Fatalf("SearchSemantic() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.ArticleNumber != 166 || r.Score != 0.91 || !r.IsException || len(r.RelatedArticles) != 2 || r.SearchType != domain.SearchSemantic {
		t.Fatalf("unexpected result %+v", r)
	}

	must := captured["filter"].(map[string]any)["must"].([]any)
	if len(must) != 2 {
		t.Fatalf("expected status and domain conditions, got %v", must)
	}
	domainMatch := must[1].(map[string]any)["match"].(map[string]any)["any"].([]any)
	if domainMatch[0] != "VAT" || domainMatch[1] != "GENERAL" {
		t.Fatalf("unexpected domain match %v", domainMatch)
	}
}
