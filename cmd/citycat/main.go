package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/citycat-pipeline/internal/adapter/citycat"
	httpadapter "github.com/couchcryptid/citycat-pipeline/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/citycat-pipeline/internal/adapter/kafka"
	"github.com/couchcryptid/citycat-pipeline/internal/adapter/objectstore"
	"github.com/couchcryptid/citycat-pipeline/internal/config"
	"github.com/couchcryptid/citycat-pipeline/internal/observability"
	"github.com/couchcryptid/citycat-pipeline/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	params, err := config.LoadRunParameters(cfg.ParametersPath())
	if err != nil {
		logger.Error("failed to load run parameters", "error", err)
		return 1
	}

	// Run events are feature-flagged via KAFKA_ENABLED.
	var publisher pipeline.EventPublisher
	if cfg.KafkaEnabled {
		pub := kafkaadapter.NewPublisher(cfg, logger)
		defer func() {
			if err := pub.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		}()
		publisher = pub
		logger.Info("run events enabled", "topic", cfg.KafkaRunsTopic)
	}

	var store pipeline.ArtifactStore
	if cfg.ArtifactsEnabled() {
		s, err := objectstore.NewStore(cfg, logger)
		if err != nil {
			logger.Error("failed to create artifact store", "error", err)
			return 1
		}
		store = s
		logger.Info("artifact upload enabled", "bucket", cfg.ArtifactBucket)
	}

	solver := &citycat.Solver{
		Executable: cfg.SolverPath,
		Wrapper:    cfg.SolverWrapper,
		Timeout:    cfg.SolverTimeout,
	}
	p := pipeline.New(pipeline.Options{
		InputsDir:  cfg.InputsPath(),
		OutputsDir: cfg.OutputsPath(),
		Params:     params,
	}, solver, publisher, store, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// An empty HTTP_ADDR runs headless.
	var srv *httpadapter.Server
	if cfg.HTTPAddr != "" {
		srv = httpadapter.NewServer(cfg.HTTPAddr, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	_, runErr := p.Run(ctx)
	if runErr != nil {
		logger.Error("run failed", "error", runErr)
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	if runErr != nil {
		return 1
	}
	return 0
}
