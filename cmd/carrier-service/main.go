package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freightdesk-ai/platform/pkg/carrier"
	"github.com/freightdesk-ai/platform/pkg/common/config"
	"github.com/freightdesk-ai/platform/pkg/common/database"
	"github.com/freightdesk-ai/platform/pkg/common/kafka"
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

	repo := carrier.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate carrier tables")
	}

	redisClient := database.GetRedis()
	fmcsa := carrier.NewFMCSAClient(cfg.FMCSABaseURL, cfg.FMCSAWebKey, redisClient)
	recents := carrier.NewRecentSearches(redisClient)

	producer := kafka.NewProducer(cfg.CarrierEventsTopic)
	defer producer.Close()

	service := carrier.NewService(repo, fmcsa, recents, producer)

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
	carrier.NewHandler(service).Register(apiRouter)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.ServerHost, "8084"),
		Handler: router,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": "8084",
		}).Info("Carrier Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Carrier Service...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Carrier Service stopped")
}
