package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	_ "github.com/joho/godotenv/autoload"
	"github.com/riandyrn/otelchi"
	otelchimetric "github.com/riandyrn/otelchi/metric"
	"github.com/socialchef/chefai/internal/api"
	"github.com/socialchef/chefai/internal/cache"
	"github.com/socialchef/chefai/internal/config"
	"github.com/socialchef/chefai/internal/credentials"
	"github.com/socialchef/chefai/internal/httpclient"
	"github.com/socialchef/chefai/internal/logger"
	"github.com/socialchef/chefai/internal/middleware"
	"github.com/socialchef/chefai/internal/pipeline"
	"github.com/socialchef/chefai/internal/sentry"
	"github.com/socialchef/chefai/internal/telemetry"
	"github.com/socialchef/chefai/internal/worker"
	"go.opentelemetry.io/otel"
)

func main() {
	defer sentry.Recover()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize telemetry
	if cfg.OtelExporterOTLPEndpoint != "" {
		shutdown, err := telemetry.InitTelemetry(ctx, cfg.ServiceName, cfg.ServiceVersion, cfg.Env, cfg.OtelExporterOTLPEndpoint, nil)
		if err != nil {
			slog.Warn("Failed to init telemetry", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	// Initialize Sentry
	if err := sentry.Init(cfg.SentryDSN, cfg.Env, cfg.ServiceName, cfg.ServiceVersion); err != nil {
		slog.Warn("Failed to init Sentry", "error", err)
	} else if cfg.SentryDSN != "" {
		defer sentry.Flush(2 * time.Second)
	}

	// Initialize logger with OTel support
	logger := logger.New(cfg.Env)
	slog.SetDefault(logger)

	pool := credentials.NewPool(cfg.Credentials...)
	if pool.Empty() {
		slog.Warn("No model credentials configured, synthesis requests will report UNCONFIGURED")
	} else {
		slog.Info("Credential pool ready", "credentials", pool.Len())
	}

	var (
		pipelineOpts []pipeline.Option
		apiOpts      []api.Option
	)

	// Redis backs the recognition cache and background image jobs; both are optional here.
	if cfg.RedisURL != "" {
		rdb, err := cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			slog.Warn("Failed to connect to Redis, continuing without cache and image jobs", "error", err)
		} else {
			defer rdb.Close()
			pipelineOpts = append(pipelineOpts, pipeline.WithRecognitionCache(cache.NewRecognitionCache(rdb, cfg.Synthesis.CacheTTL)))

			asynqClient, err := worker.NewClient(cfg.RedisURL)
			if err != nil {
				slog.Warn("Failed to create task client, image jobs disabled", "error", err)
			} else {
				defer asynqClient.Close()
				apiOpts = append(apiOpts, api.WithImageJobs(asynqClient, cache.NewImageJobStore(rdb, cache.DefaultJobTTL)))
			}
		}
	}

	gateways := pipeline.GeminiGateways(cfg.Synthesis.BaseURL, httpclient.New(cfg.Synthesis.RequestTimeout))
	p := pipeline.New(pool, gateways, pipeline.ConfigFrom(cfg.Synthesis), pipelineOpts...)

	apiServer := api.NewServer(cfg, p, apiOpts...)

	// Router
	r := chi.NewRouter()

	r.Use(otelchi.Middleware(cfg.ServiceName,
		otelchi.WithChiRoutes(r),
		otelchi.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health"
		}),
	))

	// HTTP metrics
	metricCfg := otelchimetric.NewBaseConfig(cfg.ServiceName, otelchimetric.WithMeterProvider(otel.GetMeterProvider()))
	r.Use(otelchimetric.NewRequestDurationMillis(metricCfg))
	r.Use(otelchimetric.NewRequestInFlight(metricCfg))
	r.Use(otelchimetric.NewResponseSizeBytes(metricCfg))

	r.Use(sentry.HTTPMiddleware)
	r.Use(middleware.RequestLogger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	apiServer.Routes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "error", err)
		}
	}()

	slog.Info("Starting server", "port", cfg.Port, "env", cfg.Env)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}
