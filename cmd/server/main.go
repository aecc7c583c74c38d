package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/luke0708/stock-analysis/internal/config"
	"github.com/luke0708/stock-analysis/internal/handlers"
	"github.com/luke0708/stock-analysis/internal/ingest"
	"github.com/luke0708/stock-analysis/internal/instrumentation"
	"github.com/luke0708/stock-analysis/internal/pipeline"
	"github.com/luke0708/stock-analysis/internal/publisher"
)

func main() {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("tick_analytics_starting",
		"port", cfg.Port,
		"default_window_min", cfg.DefaultWindowMin,
		"large_order_min", cfg.LargeOrderMinAmount,
		"publishing_enabled", cfg.RedisURL != "",
	)

	metrics := instrumentation.NewMetrics()

	validator, err := ingest.NewValidator()
	if err != nil {
		logger.Error("failed to compile request schema", "error", err)
		os.Exit(1)
	}

	pipe := pipeline.New(cfg, logger)

	var pub publisher.ResultPublisher
	if cfg.RedisURL != "" {
		redisPub, err := publisher.NewRedisPublisher(cfg.RedisURL, cfg.RedisPassword, cfg.CacheTTL(), logger)
		if err != nil {
			logger.Error("failed to create redis publisher", "error", err)
			os.Exit(1)
		}
		defer redisPub.Close()
		pub = redisPub
		logger.Info("redis_publisher_initialized")
	}

	analyzeHandler := handlers.NewAnalyzeHandler(validator, pipe, pub, metrics, time.Local, logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(handlers.LoggingMiddleware(logger))

	r.Get("/health", handlers.HealthCheckHandler())
	r.Method(http.MethodPost, "/v1/analyze", analyzeHandler)

	// Prometheus metrics on a separate port, matching the scrape setup.
	go func() {
		addr := fmt.Sprintf(":%d", cfg.PrometheusPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("metrics_server_starting", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics_server_failed", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("http_server_starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("shutdown_signal_received", "signal", sig.String())
	case err := <-errChan:
		logger.Error("http_server_error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown_failed", "error", err)
	}

	logger.Info("tick_analytics_stopped")
}
