package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freightdesk-ai/platform/pkg/analytics"
	"github.com/freightdesk-ai/platform/pkg/common/config"
	"github.com/freightdesk-ai/platform/pkg/common/database"
	"github.com/freightdesk-ai/platform/pkg/common/logger"
	"github.com/freightdesk-ai/platform/pkg/observability/metrics"
	"github.com/gorilla/mux"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	service := analytics.NewService(db)

	rollups := analytics.NewRollupWriter(db)
	if err := rollups.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate rollup tables")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go rollups.Run(ctx, cfg.RollupInterval)

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
	analytics.NewHandler(service, rollups).Register(apiRouter)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.ServerHost, "8085"),
		Handler: router,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": "8085",
		}).Info("Analytics Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Analytics Service...")
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Analytics Service stopped")
}
