package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/tax-law-assistant/internal/adapters/http"
	"github.com/kirillkom/tax-law-assistant/internal/bootstrap"
	"github.com/kirillkom/tax-law-assistant/internal/config"
	"github.com/kirillkom/tax-law-assistant/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.Setup("tax-api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewAPI(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(app.AnswerUC, app.Conversations, app.Metrics, httpadapter.Options{
		APIKey:             cfg.APIKey,
		RequireAPIKey:      cfg.RequireAPIKey,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		MaxInFlight:        cfg.APIMaxInFlight,
		BackpressureWait:   cfg.APIBackpressureWait,
	})
	router.AddHealthCheck("postgres", app.DB.PingContext)
	router.AddHealthCheck("nats", func(context.Context) error {
		if !app.Queue.Healthy() {
			return errors.New("disconnected")
		}
		return nil
	})

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort, "llm_backend", cfg.LLMBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
