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
	"github.com/freightdesk-ai/platform/pkg/carrier"
	"github.com/freightdesk-ai/platform/pkg/common/config"
	"github.com/freightdesk-ai/platform/pkg/common/database"
	"github.com/freightdesk-ai/platform/pkg/common/kafka"
	"github.com/freightdesk-ai/platform/pkg/common/logger"
	"github.com/freightdesk-ai/platform/pkg/freight"
	"github.com/freightdesk-ai/platform/pkg/load"
	"github.com/freightdesk-ai/platform/pkg/observability/metrics"
	"github.com/freightdesk-ai/platform/pkg/pipeline"
	"github.com/gorilla/mux"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	callRepo := call.NewRepository(db)
	loadRepo := load.NewRepository(db)
	carrierRepo := carrier.NewRepository(db)

	loadProducer := kafka.NewProducer(cfg.LoadEventsTopic)
	defer loadProducer.Close()
	drafter := load.NewService(loadRepo, loadProducer, callRepo)

	matcher := carrier.NewMatcher(carrierRepo, cfg.CarrierMatchThreshold)

	rulesCfg, err := pipeline.LoadRules(cfg.ExtractionRules)
	if err != nil {
		logger.Log.WithError(err).WithField("path", cfg.ExtractionRules).Warn("falling back to built-in extraction rules")
		rulesCfg = pipeline.DefaultRules()
	}
	miner, err := pipeline.NewMiner(rulesCfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to compile extraction rules")
	}

	catalog, err := freight.Load(cfg.EquipmentCatalog)
	if err != nil {
		logger.Log.WithError(err).WithField("path", cfg.EquipmentCatalog).Warn("falling back to built-in equipment catalog")
		catalog = freight.DefaultCatalog()
	}

	var speech pipeline.SpeechProvider
	if cfg.STTAPIKey != "" {
		speech = pipeline.NewHTTPSpeechProvider(cfg.STTBaseURL, cfg.STTAPIKey)
	} else {
		logger.Log.Info("No dedicated transcription provider configured, using Whisper")
		speech = pipeline.NewWhisperProvider(cfg.LLMAPIKey)
	}

	redisClient := database.GetRedis()

	callProducer := kafka.NewProducer(cfg.CallEventsTopic)
	defer callProducer.Close()

	worker, err := pipeline.NewWorker(pipeline.WorkerConfig{
		Store:        callRepo,
		Speech:       speech,
		Extractor:    pipeline.NewExtractor(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModelName, float32(cfg.LLMTemperature), cfg.LLMMaxRetries),
		Miner:        miner,
		Scorer:       pipeline.NewSentimentScorer(),
		Cache:        pipeline.NewExtractionCache(redisClient, cfg.ExtractionCacheTTL),
		Catalog:      catalog,
		Publisher:    callProducer,
		Drafter:      drafter,
		Carriers:     matcher,
		ArtifactDir:  cfg.ArtifactDir,
		PollInterval: cfg.PollInterval,
		MaxJobs:      cfg.PipelineMaxJobs,
	})
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to build pipeline worker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Rule edits land without a restart.
	go func() {
		if err := pipeline.WatchRules(ctx, cfg.ExtractionRules, miner); err != nil && ctx.Err() == nil {
			logger.Log.WithError(err).Warn("extraction rules watcher stopped")
		}
	}()

	consumer := kafka.NewConsumer(cfg.CallEventsTopic, "pipeline-service")
	defer consumer.Close()

	go func() {
		if err := consumer.Consume(ctx, worker.HandleEvent); err != nil && ctx.Err() == nil {
			logger.Log.WithError(err).Fatal("consumer error")
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

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.ServerHost, "8082"),
		Handler: router,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":     cfg.ServerHost,
			"port":     "8082",
			"max_jobs": cfg.PipelineMaxJobs,
		}).Info("Pipeline Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Pipeline Service...")
	cancel()
	worker.Close()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Pipeline Service stopped")
}
