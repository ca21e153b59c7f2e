package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/tow-etl-service/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/tow-etl-service/internal/adapter/kafka"
	"github.com/couchcryptid/tow-etl-service/internal/config"
	"github.com/couchcryptid/tow-etl-service/internal/observability"
	"github.com/couchcryptid/tow-etl-service/internal/pipeline"
	"github.com/couchcryptid/tow-etl-service/internal/store"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
)

func main() {
	// A .env file is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to read .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg)
	if err != nil {
		slog.Error("failed to build logger", "error", err)
		os.Exit(1)
	}
	metrics := observability.NewMetrics()

	stations := store.NewMemoryStore(cfg.StationConfig(), cfg.SummaryCacheSize, logger, metrics)
	logger.Info("station store ready",
		"enhanced_qa", cfg.EnhancedQA,
		"on_error", cfg.OnError.String(),
		"density_threshold", cfg.TOWQADensityThreshold,
		"coverage_threshold", cfg.CoverageAdequateThreshold,
	)

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	transformer := pipeline.NewTransformer(logger)

	p := pipeline.New(reader, transformer, stations, logger, metrics, cfg.BatchSize)
	publisher := pipeline.NewPublisher(stations, writer, clockwork.NewRealClock(), cfg.SummaryInterval, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, stations, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start ETL pipeline.
	pipelineDone := make(chan struct{})
	go func() {
		defer close(pipelineDone)
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	// Start summary publisher.
	publisherDone := make(chan struct{})
	go func() {
		defer close(publisherDone)
		if err := publisher.Run(ctx); err != nil {
			logger.Error("publisher error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	<-pipelineDone
	<-publisherDone

	// Summaries changed since the last tick would otherwise be lost.
	if err := publisher.PublishPending(shutdownCtx); err != nil {
		logger.Error("final summary flush failed", "error", err)
	}

	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
