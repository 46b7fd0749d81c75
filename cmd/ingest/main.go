package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/timmy/cryptoetl/internal/config"
	"github.com/timmy/cryptoetl/internal/logger"
	"github.com/timmy/cryptoetl/internal/orchestrator"
	"github.com/timmy/cryptoetl/internal/repository"
	"github.com/timmy/cryptoetl/internal/service"
)

func main() {
	envCfg := logger.LoadFromEnv()
	envCfg.ServiceName = "cryptoetl-ingest"
	appLogger := logger.NewFromEnv(envCfg)
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	sourceName := flag.String("source", "", "Run a single source (empty runs every enabled source)")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}
	repo := repository.NewETLRepository(db, cfg.ETL.BatchSize)

	archive, err := service.NewArchive(ctx, &cfg.Archive)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize raw archive")
	}

	orch, err := service.BuildOrchestrator(cfg, repo, archive)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to build pipelines")
	}

	var code int
	if *sourceName != "" {
		code = runSingle(ctx, orch, *sourceName)
	} else {
		code = runFull(ctx, orch)
	}

	cancel()
	logger.Sync()
	os.Exit(code)
}

func runSingle(ctx context.Context, orch *orchestrator.Orchestrator, name string) int {
	log := logger.GetDefault().WithField(logger.FieldSource, name)

	result, err := orch.RunSingle(ctx, name)
	var unknown *orchestrator.UnknownSourceError
	if errors.As(err, &unknown) {
		log.WithField("available", orch.Sources()).Error("Unknown source")
		return 2
	}
	if err != nil {
		log.WithError(err).Error("ETL run failed")
		return 1
	}

	log.WithFields(logger.Fields{
		logger.FieldCount:  result.RecordsProcessed,
		logger.FieldStatus: result.Status,
		"run_id":           result.RunID,
	}).Info("ETL run completed")
	return 0
}

func runFull(ctx context.Context, orch *orchestrator.Orchestrator) int {
	summary := orch.RunFull(ctx)

	log := logger.GetDefault().WithFields(logger.Fields{
		logger.FieldStatus: summary.Status,
		logger.FieldCount:  summary.TotalRecords,
		"duration_seconds":  summary.DurationSeconds,
		"failed_sources":    summary.FailedSources,
	})
	for _, name := range summary.Order {
		if r := summary.Sources[name]; r != nil {
			logger.GetDefault().WithFields(logger.Fields{
				logger.FieldSource: name,
				logger.FieldStatus: r.Status,
				logger.FieldCount:  r.RecordsProcessed,
				"error":            r.ErrorMessage,
			}).Info("Source summary")
		}
	}

	if summary.Status == orchestrator.StatusFailed {
		log.Error("ETL run failed for every source")
		return 1
	}
	log.Info("ETL run completed")
	return 0
}
