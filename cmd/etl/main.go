package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/vd-data-etl-service/internal/adapter/freeway"
	httpadapter "github.com/couchcryptid/vd-data-etl-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/vd-data-etl-service/internal/adapter/kafka"
	"github.com/couchcryptid/vd-data-etl-service/internal/adapter/table"
	"github.com/couchcryptid/vd-data-etl-service/internal/config"
	"github.com/couchcryptid/vd-data-etl-service/internal/domain"
	"github.com/couchcryptid/vd-data-etl-service/internal/lifecycle"
	"github.com/couchcryptid/vd-data-etl-service/internal/observability"
	"github.com/couchcryptid/vd-data-etl-service/internal/pipeline"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	startDay, err := domain.NewDaySpec(cfg.TargetDate, cfg.Timezone)
	if err != nil {
		logger.Error("invalid target date", "error", err)
		os.Exit(1)
	}

	client := freeway.NewClient(cfg.BaseURL, cfg.FetchTimeout, logger)
	policy := pipeline.RetryPolicy{
		MaxAttempts: cfg.FetchAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
	}
	fetcher := pipeline.NewFetcher(client, cfg.MinPayloadSize, cfg.DownloadConcurrency,
		policy, clockwork.NewRealClock(), logger, metrics)

	tables := table.NewWriter(logger)
	processor := pipeline.NewProcessor(cfg.ParseConcurrency, tables, logger, metrics)

	// Snapshot publishing is feature-flagged via KAFKA_ENABLED.
	var publisher pipeline.SnapshotPublisher
	var kafkaWriter *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		kafkaWriter = kafkaadapter.NewWriter(cfg, logger)
		publisher = kafkaWriter
		logger.Info("kafka snapshot publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka snapshot publishing disabled")
	}

	lc := lifecycle.NewManager(lifecycle.Retention{
		KeepCompressed:   cfg.KeepCompressed,
		KeepDecompressed: cfg.KeepDecompressed,
		KeepMinuteTables: cfg.KeepMinuteTables,
		ZipDay:           cfg.ZipDay,
	}, logger)

	p := pipeline.New(fetcher, processor, tables, publisher, lc, cfg.BaseDir, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Run the batch; the service exits when its days are done rather than
	// idling, unless a signal ends it first.
	errCh := make(chan error, 1)
	go func() {
		logger.Info("pipeline starting", "start_day", startDay.Label(), "days", cfg.Days)
		errCh <- p.Run(ctx, startDay, cfg.Days)
	}()

	exitCode := 0
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("pipeline error", "error", err)
			exitCode = 1
		}
	case <-ctx.Done():
		logger.Info("signal received")
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	os.Exit(exitCode)
}
