package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
)

type catalogFake struct {
	articles []domain.Article
	err      error
}

func (f *catalogFake) ListActive(context.Context) ([]domain.Article, error) {
	return f.articles, f.err
}

type indexWriterFake struct {
	batches [][]domain.Article
	err     error
}

func (f *indexWriterFake) UpsertArticles(_ context.Context, articles []domain.Article, vectors [][]float32) error {
	if f.err != nil {
		return f.err
	}
	if len(articles) != len(vectors) {
		return errors.New("length mismatch")
	}
	f.batches = append(f.batches, articles)
	return nil
}

func TestIndexArticlesBatches(t *testing.T) {
	articles := make([]domain.Article, 5)
	for i := range articles {
		articles[i] = domain.Article{ArticleNumber: i + 1, Title: "t", Body: "b"}
	}
	embedder := &embedderFake{}
	writer := &indexWriterFake{}

	report, err := NewIndexArticlesUseCase(&catalogFake{articles: articles}, embedder, writer, 2).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Articles != 5 || report.Batches != 3 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(writer.batches) != 3 || len(writer.batches[2]) != 1 {
		t.Fatalf("unexpected batches %d", len(writer.batches))
	}
}

func TestIndexArticlesStopsOnEmbedError(t *testing.T) {
	articles := []domain.Article{{ArticleNumber: 1}}
	_, err := NewIndexArticlesUseCase(&catalogFake{articles: articles}, &embedderFake{err: errors.New("quota")}, &indexWriterFake{}, 0).
		Run(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestEmbeddingText(t *testing.T) {
	text := embeddingText(domain.Article{ArticleNumber: 166, Kari: "კარი IX", Tavi: "თავი XXIV", Title: "განაკვეთი", Body: "ტექსტი"})
	if text != "კარი IX → თავი XXIV → Article 166. განაკვეთი\nტექსტი" {
		t.Fatalf("unexpected text %q", text)
	}

	long := embeddingText(domain.Article{ArticleNumber: 1, Body: strings.Repeat("ა", 9000)})
	if utf8.RuneCountInString(long) != maxEmbeddingChars {
		t.Fatalf("expected truncation to %d runes", maxEmbeddingChars)
	}
}
