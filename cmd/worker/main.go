package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/rasterlabs/rasterflow/internal/config"
	"github.com/rasterlabs/rasterflow/internal/imaging"
	"github.com/rasterlabs/rasterflow/internal/storage"
	"github.com/rasterlabs/rasterflow/internal/store"
	"github.com/rasterlabs/rasterflow/internal/telemetry"
	"github.com/rasterlabs/rasterflow/internal/webhook"
	"github.com/rasterlabs/rasterflow/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[worker] ", log.LstdFlags|log.Lmsgprefix)

	if err := imaging.Startup(); err != nil {
		logger.Fatalf("codec startup failed: %v", err)
	}
	defer imaging.Shutdown()

	shutdownTracing, err := telemetry.SetupTracing(context.Background(), telemetry.TraceConfig{
		ServiceName:  "rasterflow-worker",
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

	storageClient, err := storage.NewClient(storage.Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		UseSSL:    cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Fatalf("storage client setup failed: %v", err)
	}
	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := storageClient.EnsureBucket(ctx); err != nil {
			logger.Printf("ensure bucket failed, object-store jobs may fail: %v", err)
		}
		cancel()
	}

	jobStore := newJobStore(logger, cfg)
	webhookClient := webhook.NewClient(webhook.Config{
		SigningSecret:  cfg.Webhook.SigningSecret,
		Timeout:        cfg.Webhook.Timeout,
		MaxAttempts:    cfg.Webhook.MaxAttempts,
		InitialBackoff: cfg.Webhook.InitialBackoff,
		MaxBackoff:     cfg.Webhook.MaxBackoff,
	})

	srv, err := worker.NewServer(logger, cfg.Queue, cfg.Worker, storageClient, webhookClient, jobStore, nil)
	if err != nil {
		logger.Fatalf("worker setup failed: %v", err)
	}

	if cfg.Worker.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("GET /metrics", srv.MetricsHandler())
			logger.Printf("metrics listening on %s", cfg.Worker.MetricsAddr)
			if err := http.ListenAndServe(cfg.Worker.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("metrics server failed: %v", err)
			}
		}()
	}

	logger.Printf(
		"starting worker concurrency=%d max_active_jobs=%d queue=%s redis=%s",
		cfg.Worker.Concurrency,
		cfg.Worker.MaxActiveJobs,
		cfg.Queue.Name,
		cfg.Queue.RedisAddr,
	)

	if err := srv.Run(); err != nil {
		logger.Fatalf("worker failed: %v", err)
	}
}

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
