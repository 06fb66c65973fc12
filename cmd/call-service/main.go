package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freightdesk-ai/platform/pkg/call"
	"github.com/freightdesk-ai/platform/pkg/common/config"
	"github.com/freightdesk-ai/platform/pkg/common/database"
	"github.com/freightdesk-ai/platform/pkg/common/kafka"
	"github.com/freightdesk-ai/platform/pkg/common/logger"
	"github.com/freightdesk-ai/platform/pkg/crm"
	"github.com/freightdesk-ai/platform/pkg/observability/metrics"
	"github.com/gorilla/mux"
)

const cleanupInterval = time.Hour

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	repo := call.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate call tables")
	}

	redisClient := database.GetRedis()
	summaryCache := call.NewSummaryCache(redisClient, cfg.SummaryCacheTTL)

	producer := kafka.NewProducer(cfg.CallEventsTopic)
	defer producer.Close()

	validator := call.NewValidator(call.DefaultAudioFormats, cfg.MaxUploadBytes)
	service := call.NewService(repo, validator, producer, crm.NewFormatter(), summaryCache, cfg.UploadDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher := call.NewWatcher(repo, summaryCache, cfg.PollInterval)
	service.EnableWatching(ctx, watcher)

	// Audio files whose upload never became a call row age out hourly.
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := service.CleanupOrphanedAudio(ctx); err != nil {
					logger.Log.WithError(err).Warn("orphaned audio sweep failed")
				}
			}
		}
	}()

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Registry().Handler()).Methods(http.MethodGet)

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	call.NewHandler(service, cfg.MaxUploadBytes).Register(apiRouter)

	// No read timeout: recording uploads stream for minutes.
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.ServerHost, "8081"),
		Handler: router,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": "8081",
		}).Info("Call Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Call Service...")
	cancel()
	watcher.Close()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Call Service stopped")
}
