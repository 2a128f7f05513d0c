package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/tax-law-assistant/internal/bootstrap"
	"github.com/kirillkom/tax-law-assistant/internal/config"
	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
	"github.com/kirillkom/tax-law-assistant/internal/observability/logging"
)

func main() {
	articlesFile := flag.String("articles", "", "JSON array of articles to load into Postgres before indexing")
	definitionsFile := flag.String("definitions", "", "JSON array of glossary definitions to load into Postgres")
	skipEmbed := flag.Bool("skip-embed", false, "only load files, do not embed into Qdrant")
	flag.Parse()

	cfg := config.Load()
	logger := logging.Setup("tax-indexer", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewIndexer(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if *articlesFile != "" {
		var articles []domain.Article
		if err := readJSON(*articlesFile, &articles); err != nil {
			logger.Error("articles_load_failed", "error", err)
			os.Exit(1)
		}
		if err := app.Articles.UpsertArticles(ctx, articles); err != nil {
			logger.Error("articles_upsert_failed", "error", err)
			os.Exit(1)
		}
		logger.Info("articles_loaded", "count", len(articles))
	}
	if *definitionsFile != "" {
		var definitions []domain.Definition
		if err := readJSON(*definitionsFile, &definitions); err != nil {
			logger.Error("definitions_load_failed", "error", err)
			os.Exit(1)
		}
		if err := app.Definitions.UpsertDefinitions(ctx, definitions); err != nil {
			logger.Error("definitions_upsert_failed", "error", err)
			os.Exit(1)
		}
		logger.Info("definitions_loaded", "count", len(definitions))
	}
	if *skipEmbed {
		return
	}

	report, err := app.IndexUC.Run(ctx)
	if err != nil {
		logger.Error("index_failed", "error", err, "articles", report.Articles, "batches", report.Batches)
		os.Exit(1)
	}
	logger.Info("index_completed", "articles", report.Articles, "batches", report.Batches)
}

func readJSON(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
