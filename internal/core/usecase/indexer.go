package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
	"github.com/kirillkom/tax-law-assistant/internal/core/ports"
)

const (
	DefaultIndexBatchSize = 100
	maxEmbeddingChars     = 8000
)

// IndexReport summarizes one indexing run.
type IndexReport struct {
	Articles int
	Batches  int
}

// IndexArticlesUseCase embeds the active corpus and upserts it into the
// vector index.
type IndexArticlesUseCase struct {
	catalog   ports.ArticleCatalog
	embedder  ports.Embedder
	index     ports.VectorIndexWriter
	batchSize int
}

func NewIndexArticlesUseCase(
	catalog ports.ArticleCatalog,
	embedder ports.Embedder,
	index ports.VectorIndexWriter,
	batchSize int,
) *IndexArticlesUseCase {
	if batchSize <= 0 {
		batchSize = DefaultIndexBatchSize
	}
	return &IndexArticlesUseCase{catalog: catalog, embedder: embedder, index: index, batchSize: batchSize}
}

func (uc *IndexArticlesUseCase) Run(ctx context.Context) (IndexReport, error) {
	articles, err := uc.catalog.ListActive(ctx)
	if err != nil {
		return IndexReport{}, domain.WrapError(domain.ErrTemporary, "list articles", err)
	}

	report := IndexReport{}
	for start := 0; start < len(articles); start += uc.batchSize {
		end := min(start+uc.batchSize, len(articles))
		batch := articles[start:end]

		texts := make([]string, 0, len(batch))
		for _, article := range batch {
			texts = append(texts, embeddingText(article))
		}
		vectors, err := uc.embedder.Embed(ctx, texts)
		if err != nil {
			return report, fmt.Errorf("embed batch %d: %w", report.Batches+1, err)
		}
		if len(vectors) != len(batch) {
			return report, domain.WrapError(domain.ErrEmbeddingDimension, "embed batch",
				fmt.Errorf("got %d vectors for %d articles", len(vectors), len(batch)))
		}
		if err := uc.index.UpsertArticles(ctx, batch, vectors); err != nil {
			return report, fmt.Errorf("upsert batch %d: %w", report.Batches+1, err)
		}

		report.Batches++
		report.Articles += len(batch)
		slog.Info("index_batch_done", "batch", report.Batches, "articles", len(batch), "total", report.Articles)
	}
	return report, nil
}

// embeddingText prefixes the body with its structural path so that chapter
// context contributes to the vector.
func embeddingText(article domain.Article) string {
	path := make([]string, 0, 3)
	if kari := strings.TrimSpace(article.Kari); kari != "" {
		path = append(path, kari)
	}
	if tavi := strings.TrimSpace(article.Tavi); tavi != "" {
		path = append(path, tavi)
	}
	path = append(path, fmt.Sprintf("Article %d. %s", article.ArticleNumber, strings.TrimSpace(article.Title)))
	return truncateRunes(strings.Join(path, " → ")+"\n"+article.Body, maxEmbeddingChars)
}
