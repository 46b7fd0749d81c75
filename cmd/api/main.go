package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/cryptoetl/internal/api"
	"github.com/timmy/cryptoetl/internal/api/handler"
	"github.com/timmy/cryptoetl/internal/config"
	"github.com/timmy/cryptoetl/internal/logger"
	"github.com/timmy/cryptoetl/internal/repository"
	"github.com/timmy/cryptoetl/internal/service"
)

func main() {
	envCfg := logger.LoadFromEnv()
	envCfg.ServiceName = "cryptoetl-api"
	appLogger := logger.NewFromEnv(envCfg)
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	etlHandler := handler.NewETLHandler(orch, repo)
	router := api.SetupRouter(etlHandler, repo, appLogger, cfg.Server.Mode)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	if cfg.ETL.RunOnStartup {
		go func() {
			appLogger.Info("Running initial ETL")
			summary, ok := etlHandler.TriggerFull(ctx)
			if !ok {
				appLogger.Warn("Initial ETL skipped: a run is already in progress")
				return
			}
			appLogger.WithFields(logger.Fields{
				logger.FieldStatus: summary.Status,
				logger.FieldCount:  summary.TotalRecords,
			}).Info("Initial ETL finished")
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
