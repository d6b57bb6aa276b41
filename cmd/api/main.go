package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rasterlabs/rasterflow/internal/api"
	"github.com/rasterlabs/rasterflow/internal/config"
	"github.com/rasterlabs/rasterflow/internal/queue"
	"github.com/rasterlabs/rasterflow/internal/ratelimit"
	"github.com/rasterlabs/rasterflow/internal/storage"
	"github.com/rasterlabs/rasterflow/internal/store"
	"github.com/rasterlabs/rasterflow/internal/telemetry"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lmsgprefix)

	shutdownTracing, err := telemetry.SetupTracing(context.Background(), telemetry.TraceConfig{
		ServiceName:  "rasterflow-api",
		Exporter:     cfg.Trace.Exporter,
		OTLPEndpoint: cfg.Trace.OTLPEndpoint,
		OTLPInsecure: cfg.Trace.OTLPInsecure,
		SampleRatio:  cfg.Trace.SampleRatio,
	}, logger)
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Printf("tracing shutdown failed: %v", err)
		}
	}()

	queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Printf("queue client close error: %v", err)
		}
	}()

	jobStore := newJobStore(logger, cfg)

	var objectStore *storage.Client
	storageClient, err := storage.NewClient(storage.Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		UseSSL:    cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Printf("object storage unavailable, presigned uploads disabled: %v", err)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := storageClient.EnsureBucket(ctx); err != nil {
			logger.Printf("object storage unavailable, presigned uploads disabled: %v", err)
		} else {
			objectStore = storageClient
		}
		cancel()
	}

	apiCfg := api.Config{
		MaxBodyBytes: cfg.API.MaxBodyBytes,
		ConvertCost:  cfg.RateLimit.ConvertCost,
	}
	if cfg.RateLimit.Enabled {
		limiter, err := ratelimit.NewRedisTokenBucket(
			redis.NewClient(&redis.Options{
				Addr:     cfg.Queue.RedisAddr,
				Password: cfg.Queue.RedisPassword,
				DB:       cfg.Queue.RedisDB,
			}),
			cfg.RateLimit.Capacity,
			cfg.RateLimit.Window,
			"rasterflow:ratelimit",
		)
		if err != nil {
			logger.Fatalf("rate limiter setup failed: %v", err)
		}
		apiCfg.RateLimiter = limiter
	}

	var app *api.Server
	if objectStore != nil {
		app = api.NewServer(logger, queueClient, jobStore, objectStore, apiCfg)
	} else {
		app = api.NewServer(logger, queueClient, jobStore, nil, apiCfg)
	}

	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s", cfg.API.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

// newJobStore prefers Postgres and falls back to process memory so the
// API still serves synchronous conversions without a database.
func newJobStore(logger *log.Logger, cfg config.Config) store.JobStore {
	if cfg.Database.DSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		pg, err := store.NewPostgresJobStore(ctx, cfg.Database.DSN)
		if err == nil {
			logger.Printf("using postgres job store")
			return pg
		}
		logger.Printf("postgres unavailable, using in-memory job store: %v", err)
	}
	return store.NewMemoryJobStore()
}
