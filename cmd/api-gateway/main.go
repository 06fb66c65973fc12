package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freightdesk-ai/platform/pkg/billing"
	"github.com/freightdesk-ai/platform/pkg/common/config"
	"github.com/freightdesk-ai/platform/pkg/common/database"
	"github.com/freightdesk-ai/platform/pkg/common/logger"
	"github.com/freightdesk-ai/platform/pkg/gateway/auth"
	"github.com/freightdesk-ai/platform/pkg/gateway/httpclient"
	"github.com/freightdesk-ai/platform/pkg/gateway/middleware"
	"github.com/freightdesk-ai/platform/pkg/gateway/routes"
	"github.com/freightdesk-ai/platform/pkg/observability/metrics"
	"github.com/freightdesk-ai/platform/pkg/team"
	"github.com/gorilla/mux"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	teamRepo := team.NewRepository(db)
	if err := teamRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate team tables")
	}
	teamService := team.NewService(teamRepo)

	billingRepo := billing.NewRepository(db)
	if err := billingRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate billing tables")
	}
	billingService := billing.NewService(billingRepo, teamRepo, cfg.BillingPortalBaseURL)

	tokenSigner, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTTTL)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to initialize token signer")
	}

	var sso *auth.OIDCAuthenticator
	if cfg.OIDCIssuer != "" {
		sso, err = auth.NewOIDCAuthenticator(cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret, cfg.OIDCRedirectURL)
		if err != nil {
			logger.Log.WithError(err).Warn("SSO not configured, password login only")
			sso = nil
		}
	}

	// Setup router
	router := mux.NewRouter()

	// Middleware
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.CORS)
	router.Use(middleware.Metrics)
	router.Use(middleware.RateLimit(cfg.GatewayRateLimitRPS, cfg.GatewayRateLimitBurst))

	// Health check
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods("GET")
	router.Handle("/metrics", metrics.Registry().Handler()).Methods("GET")

	apiRouter := router.PathPrefix("/api/v1").Subrouter()

	// Routes served by the gateway itself take small JSON bodies.
	local := apiRouter.NewRoute().Subrouter()
	local.Use(middleware.BodyLimit(cfg.MaxRequestBody))
	routes.NewAuthHandler(teamService, tokenSigner, sso).Register(local)
	routes.NewTeamsHandler(teamService, tokenSigner).Register(local)
	routes.NewBillingHandler(billingService, tokenSigner).Register(local)
	routes.NewDashboardHandler(db, tokenSigner).Register(local)

	// Everything else forwards to the domain services. No client-level
	// timeout here; the proxy sets per-request deadlines so uploads can
	// stream past the flat limit.
	proxied := apiRouter.NewRoute().Subrouter()
	proxied.Use(middleware.Authenticate(tokenSigner))
	proxied.Use(middleware.OrgScope)
	routes.NewServiceProxy(httpclient.New(0), cfg).Register(proxied)

	// Server. ReadHeaderTimeout rather than ReadTimeout: recording
	// uploads stream bodies for longer than any flat deadline.
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadTimeout,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("API Gateway started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down API Gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("API Gateway stopped")
}
