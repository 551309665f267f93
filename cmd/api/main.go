package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/ghuser/persistredis/pkg/app"
	"github.com/ghuser/persistredis/pkg/auth"
	"github.com/ghuser/persistredis/pkg/config"
	"github.com/ghuser/persistredis/pkg/httpx"
	"github.com/ghuser/persistredis/pkg/logger"
	"github.com/ghuser/persistredis/pkg/metrics"
	"github.com/ghuser/persistredis/pkg/store"
	"github.com/ghuser/persistredis/pkg/telemetry"
	journalApi "github.com/ghuser/persistredis/services/journal/application/api"
	appsvcs "github.com/ghuser/persistredis/services/journal/application/services"
	redisjournal "github.com/ghuser/persistredis/services/journal/infrastructure/persistence/redis"
)

// @title					Journal Query Engine API
// @version				1.0
// @description			Read-side query engine for an event-sourced journal.
// @termsOfService			http://swagger.io/terms/
// @contact.name			API Support
// @license.name			MIT
// @license.url			https://opensource.org/licenses/MIT
// @host					localhost:8080
// @BasePath				/api
// @schemes				http https
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := config.ValidateForProduction(cfg); err != nil {
		slog.Error("production config validation failed", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg)

	// Telemetry: OTel tracing + metrics
	ctx := context.Background()
	otelShutdown, metricsHandler, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		log.Error("failed to setup otel", "error", err)
		os.Exit(1)
	}
	defer otelShutdown(ctx) //nolint:errcheck

	// Crash reporting: Sentry (optional — log and continue on failure)
	if err := telemetry.SetupSentry(cfg); err != nil {
		log.Warn("failed to setup sentry, continuing without crash reporting", "error", err)
	}
	defer telemetry.SentryFlush()

	redisClient, err := store.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1) //nolint:gocritic // intentional: startup failure, deferred flushes are best-effort
	}
	defer redisClient.Close() //nolint:errcheck
	log.Info("redis connected")

	journalMetrics, err := metrics.New(otel.Meter("github.com/ghuser/persistredis/services/journal"))
	if err != nil {
		log.Error("failed to register journal metrics", "error", err)
		os.Exit(1) //nolint:gocritic
	}

	gateway := redisjournal.NewStoreGateway(redisClient.Client())
	queryEngine := appsvcs.New(gateway, redisjournal.KeyScheme{}, redisjournal.JSONSerializer{}, cfg.PageSize, journalMetrics, log)

	sessionStore := auth.NewSessionStore(
		redisClient.Client(),
		[]byte(cfg.AdminSessionAuthKey),
		[]byte(cfg.AdminSessionEncryptionKey),
		cfg.Environment == config.EnvProduction,
	)
	log.Info("session store initialized", "backend", "redis")

	appConfig := &app.Application{
		Redis:        redisClient,
		Logger:       log,
		Metrics:      journalMetrics,
		QueryEngine:  queryEngine,
		SessionStore: sessionStore,
		IsProduction: cfg.Environment == config.EnvProduction,
	}

	r := httpx.NewRouter(
		httpx.ServerConfig{
			ServiceName:        cfg.ServiceName,
			IsDevelopment:      cfg.Environment == config.EnvDevelopment,
			CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		},
		logger.Middleware(log),
		logger.Recovery(log),
		telemetry.SentryMiddleware(),
		otelhttp.NewMiddleware(cfg.ServiceName),
	)

	r.Get("/health", httpx.HealthHandler(httpx.HealthChecks{Redis: redisClient}))
	r.Get("/metrics", metricsHandler.ServeHTTP)
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	journalApi.AdminRoutes(r, appConfig.QueryEngine, appConfig.SessionStore, appConfig.Logger)
	r.Route("/api", func(r chi.Router) {
		registerRoutes(r, appConfig)
	})

	srv := httpx.NewServer(":8080", r)

	go func() {
		log.Info("server listening", "addr", srv.Addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// registerRoutes mounts all service routes under /api.
func registerRoutes(r chi.Router, a *app.Application) {
	journalApi.JournalRoutes(r, a.QueryEngine, a.Logger, a.IsProduction)
}
