package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/socialchef/chefai/internal/cache"
	"github.com/socialchef/chefai/internal/config"
	"github.com/socialchef/chefai/internal/credentials"
	"github.com/socialchef/chefai/internal/httpclient"
	"github.com/socialchef/chefai/internal/logger"
	"github.com/socialchef/chefai/internal/pipeline"
	"github.com/socialchef/chefai/internal/sentry"
	"github.com/socialchef/chefai/internal/telemetry"
	"github.com/socialchef/chefai/internal/worker"
)

func main() {
	defer sentry.Recover()

	ctx := context.Background()

	cfg := config.MustLoad()
	if err := cfg.RequireRedis(); err != nil {
		log.Fatalf("Invalid worker config: %v", err)
	}

	// Initialize telemetry
	if cfg.OtelExporterOTLPEndpoint != "" {
		shutdown, err := telemetry.InitTelemetry(ctx, cfg.ServiceName+"-worker", cfg.ServiceVersion, cfg.Env, cfg.OtelExporterOTLPEndpoint, nil)
		if err != nil {
			slog.Warn("Failed to init telemetry", "error", err)
		} else {
			defer shutdown(ctx)
		}
	}

	// Initialize Sentry
	if err := sentry.Init(cfg.SentryDSN, cfg.Env, cfg.ServiceName+"-worker", cfg.ServiceVersion); err != nil {
		slog.Warn("Failed to init Sentry", "error", err)
	} else if cfg.SentryDSN != "" {
		defer sentry.Flush(2 * time.Second)
	}

	// Initialize logger with OTel support
	logger := logger.New(cfg.Env)
	slog.SetDefault(logger)

	pool := credentials.NewPool(cfg.Credentials...)
	if pool.Empty() {
		slog.Warn("No model credentials configured, image jobs will fail as UNCONFIGURED")
	}

	rdb, err := cache.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	gateways := pipeline.GeminiGateways(cfg.Synthesis.BaseURL, httpclient.New(cfg.Synthesis.RequestTimeout))
	p := pipeline.New(pool, gateways, pipeline.ConfigFrom(cfg.Synthesis))

	workerMetrics, err := worker.NewWorkerMetrics()
	if err != nil {
		slog.Warn("Failed to init worker metrics", "error", err)
	}

	processor := worker.NewImageProcessor(worker.DispatchImages(p), cache.NewImageJobStore(rdb, cache.DefaultJobTTL))

	srv, err := worker.NewServer(cfg.RedisURL, 10)
	if err != nil {
		log.Fatalf("Failed to create worker: %v", err)
	}
	mux := worker.NewServeMux(processor, workerMetrics)

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutting down worker...")
		srv.Shutdown()
	}()

	slog.Info("Starting worker", "credentials", pool.Len())

	if err := srv.Run(mux); err != nil {
		log.Fatalf("Worker failed: %v", err)
	}
}
