package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/tax-law-assistant/internal/bootstrap"
	"github.com/kirillkom/tax-law-assistant/internal/config"
	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
	"github.com/kirillkom/tax-law-assistant/internal/observability/logging"
	"github.com/kirillkom/tax-law-assistant/internal/observability/metrics"
)

const (
	serviceName   = "tax-worker"
	recordTimeout = 30 * time.Second
)

func main() {
	cfg := config.Load()
	logger := logging.Setup(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewWorker(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject, "metrics_port", cfg.WorkerMetricsPort)
	err = app.Queue.SubscribeAnswerRecorded(ctx, func(handlerCtx context.Context, record domain.AnswerRecord) error {
		done := workerMetrics.BeginRecord(record)

		recordCtx, cancel := context.WithTimeout(handlerCtx, recordTimeout)
		defer cancel()
		err := app.RecordUC.Record(recordCtx, record)

		done(err)
		return err
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
