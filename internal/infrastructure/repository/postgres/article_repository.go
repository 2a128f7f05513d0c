package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
)

// schemaLockID serializes bootstrap DDL across api/worker/indexer startups.
const schemaLockID int64 = 2026101801

type ArticleRepository struct {
	db *sql.DB
}

func NewArticleRepository(db *sql.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the article, definition and conversation tables.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS tax_articles (
	article_number INTEGER PRIMARY KEY,
	kari TEXT NOT NULL DEFAULT '',
	tavi TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL,
	domain TEXT NOT NULL DEFAULT 'GENERAL',
	status TEXT NOT NULL DEFAULT 'active',
	is_exception BOOLEAN NOT NULL DEFAULT FALSE,
	related_articles JSONB NOT NULL DEFAULT '[]'::jsonb,
	search_tsv TSVECTOR GENERATED ALWAYS AS (
		to_tsvector('simple', coalesce(title, '') || ' ' || coalesce(body, ''))
	) STORED,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_tax_articles_status ON tax_articles(status);
CREATE INDEX IF NOT EXISTS idx_tax_articles_search ON tax_articles USING GIN (search_tsv);

CREATE TABLE IF NOT EXISTS definitions (
	term_ka TEXT PRIMARY KEY,
	term_en TEXT NOT NULL DEFAULT '',
	definition TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS conversation_turns (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	turn INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversation_turns_conv ON conversation_turns(conversation_id, turn DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const articleColumns = `article_number, kari, tavi, title, body, domain, status, is_exception, related_articles`

// FindByNumber returns an active article. Repealed or inactive articles
// report ErrArticleNotFound, matching FindByNumbers.
func (r *ArticleRepository) FindByNumber(ctx context.Context, articleNumber int) (*domain.Article, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+articleColumns+`
FROM tax_articles
WHERE article_number = $1 AND status = 'active'
`, articleNumber)

	article, err := scanArticle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrArticleNotFound, "find article", err)
		}
		return nil, fmt.Errorf("find article %d: %w", articleNumber, err)
	}
	return article, nil
}

// FindByNumbers returns the active articles among the given numbers, ordered
// by article number. Missing numbers are skipped.
func (r *ArticleRepository) FindByNumbers(ctx context.Context, articleNumbers []int) ([]domain.Article, error) {
	if len(articleNumbers) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+articleColumns+`
FROM tax_articles
WHERE article_number = ANY($1::int[]) AND status = 'active'
ORDER BY article_number
`, intArrayLiteral(articleNumbers))
	if err != nil {
		return nil, fmt.Errorf("find articles by numbers: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Article, 0, len(articleNumbers))
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		out = append(out, *article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return out, nil
}

// SearchLexical runs a full-text query over title and body. The score is the
// ts_rank of the match.
func (r *ArticleRepository) SearchLexical(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+articleColumns+`, ts_rank(search_tsv, plainto_tsquery('simple', $1)) AS rank
FROM tax_articles
WHERE status = 'active' AND search_tsv @@ plainto_tsquery('simple', $1)
ORDER BY rank DESC, article_number ASC
LIMIT $2
`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search lexical: %w", err)
	}
	defer rows.Close()

	out := make([]domain.SearchResult, 0, limit)
	for rows.Next() {
		var (
			article    domain.Article
			relatedRaw []byte
			rank       float64
		)
		if err := rows.Scan(
			&article.ArticleNumber,
			&article.Kari,
			&article.Tavi,
			&article.Title,
			&article.Body,
			&article.Domain,
			&article.Status,
			&article.IsException,
			&relatedRaw,
			&rank,
		); err != nil {
			return nil, fmt.Errorf("scan lexical hit: %w", err)
		}
		if err := decodeRelated(relatedRaw, &article); err != nil {
			return nil, err
		}
		out = append(out, article.AsResult(domain.SearchKeyword, rank))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lexical hits: %w", err)
	}
	return out, nil
}

func (r *ArticleRepository) ListActive(ctx context.Context) ([]domain.Article, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+articleColumns+`
FROM tax_articles
WHERE status = 'active'
ORDER BY article_number
`)
	if err != nil {
		return nil, fmt.Errorf("list active articles: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Article, 0)
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		out = append(out, *article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return out, nil
}

// UpsertArticles loads a corpus snapshot. Existing rows are replaced.
func (r *ArticleRepository) UpsertArticles(ctx context.Context, articles []domain.Article) error {
	if len(articles) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, a := range articles {
		if a.ArticleNumber <= 0 {
			return domain.WrapError(domain.ErrInvalidInput, "upsert article", fmt.Errorf("article number %d", a.ArticleNumber))
		}
		related := a.RelatedArticles
		if related == nil {
			related = []int{}
		}
		relatedJSON, err := json.Marshal(related)
		if err != nil {
			return fmt.Errorf("marshal related articles: %w", err)
		}
		status := a.Status
		if status == "" {
			status = domain.ArticleStatusActive
		}
		articleDomain := a.Domain
		if articleDomain == "" {
			articleDomain = string(domain.DomainGeneral)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO tax_articles (article_number, kari, tavi, title, body, domain, status, is_exception, related_articles, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (article_number) DO UPDATE SET
	kari = EXCLUDED.kari,
	tavi = EXCLUDED.tavi,
	title = EXCLUDED.title,
	body = EXCLUDED.body,
	domain = EXCLUDED.domain,
	status = EXCLUDED.status,
	is_exception = EXCLUDED.is_exception,
	related_articles = EXCLUDED.related_articles,
	updated_at = EXCLUDED.updated_at
`, a.ArticleNumber, a.Kari, a.Tavi, a.Title, a.Body, articleDomain, status, a.IsException, relatedJSON, now); err != nil {
			return fmt.Errorf("upsert article %d: %w", a.ArticleNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert tx: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*domain.Article, error) {
	var (
		article    domain.Article
		relatedRaw []byte
	)
	if err := row.Scan(
		&article.ArticleNumber,
		&article.Kari,
		&article.Tavi,
		&article.Title,
		&article.Body,
		&article.Domain,
		&article.Status,
		&article.IsException,
		&relatedRaw,
	); err != nil {
		return nil, err
	}
	if err := decodeRelated(relatedRaw, &article); err != nil {
		return nil, err
	}
	return &article, nil
}

func decodeRelated(raw []byte, article *domain.Article) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &article.RelatedArticles); err != nil {
		return fmt.Errorf("decode related articles of %d: %w", article.ArticleNumber, err)
	}
	return nil
}

// intArrayLiteral renders a Postgres array literal so the parameter binds as
// text and is cast server-side.
func intArrayLiteral(values []int) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(v))
	}
	b.WriteByte('}')
	return b.String()
}
