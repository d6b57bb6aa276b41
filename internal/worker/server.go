// Package worker consumes queued conversion jobs, runs them through the
// conversion pipeline, and reports results via job status, webhooks,
// and usage accounting.
package worker

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rasterlabs/rasterflow/internal/config"
	"github.com/rasterlabs/rasterflow/internal/domain"
	"github.com/rasterlabs/rasterflow/internal/pipeline"
	"github.com/rasterlabs/rasterflow/internal/queue"
	"github.com/rasterlabs/rasterflow/internal/storage"
	"github.com/rasterlabs/rasterflow/internal/store"
	"github.com/rasterlabs/rasterflow/internal/webhook"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Server struct {
	logger          *log.Logger
	server          *asynq.Server
	sem             chan struct{}
	localProcessor  *pipeline.Processor
	objectProcessor *pipeline.Processor
	webhookClient   webhookSender
	jobStore        store.JobStore
	usageStore      store.UsageStore
	metrics         *metrics
	tracer          trace.Tracer
}

type webhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

func NewServer(
	logger *log.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	storageClient *storage.Client,
	webhookClient *webhook.Client,
	jobStore store.JobStore,
	usageStore store.UsageStore,
) (*Server, error) {
	if storageClient == nil {
		return nil, fmt.Errorf("storage client is required")
	}

	localProcessor, err := pipeline.NewLocalProcessor(workerCfg.LocalOutputDir)
	if err != nil {
		return nil, fmt.Errorf("initialize local processor: %w", err)
	}

	objectProcessor, err := pipeline.NewProcessor(
		pipeline.ObjectStoreFetcher{Storage: storageClient},
		pipeline.ObjectStoreEmitter{Storage: storageClient, OutputPrefix: "outputs"},
	)
	if err != nil {
		return nil, fmt.Errorf("initialize object-store processor: %w", err)
	}

	if usageStore == nil {
		if jobAndUsageStore, ok := jobStore.(store.UsageStore); ok {
			usageStore = jobAndUsageStore
		}
	}

	s := &Server{
		logger: logger,
		server: asynq.NewServer(
			queueCfg.RedisClientOpt(),
			asynq.Config{
				Concurrency: workerCfg.Concurrency,
				Queues: map[string]int{
					queueCfg.Name: 1,
				},
				LogLevel: asynq.InfoLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.Printf("task failed type=%s retry=%d/%d err=%v", task.Type(), retried, maxRetry, err)
				}),
			},
		),
		sem:             make(chan struct{}, maxInt(1, workerCfg.MaxActiveJobs)),
		localProcessor:  localProcessor,
		objectProcessor: objectProcessor,
		webhookClient:   webhookClient,
		jobStore:        jobStore,
		usageStore:      usageStore,
		metrics:         newMetrics(),
		tracer:          otel.Tracer("rasterflow/worker"),
	}
	return s, nil
}

func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeConvertImage, s.handleConvertImage)
	return s.server.Run(mux)
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleConvertImage(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := domain.JobStatusFailed

	payload, err := queue.ParseConvertImagePayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx, span := s.tracer.Start(ctx, "worker.convert_image", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("job.id", payload.JobID),
		attribute.String("job.source_type", payload.SourceType),
		attribute.Int("job.outputs", len(payload.Outputs)),
	)
	defer span.End()
	defer func() {
		s.metrics.jobDuration.WithLabelValues(payload.SourceType, outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.jobsTotal.WithLabelValues(payload.SourceType, outcome).Inc()
	}()

	s.sem <- struct{}{}
	s.metrics.activeJobs.Inc()
	defer func() {
		<-s.sem
		s.metrics.activeJobs.Dec()
	}()

	s.logger.Printf(
		"Converting... job_id=%s source_type=%s outputs=%d object_key=%s",
		payload.JobID,
		payload.SourceType,
		len(payload.Outputs),
		payload.ObjectKey,
	)

	s.updateJobStatus(ctx, payload.JobID, domain.JobStatusProcessing)

	request := pipeline.Request{
		JobID:      payload.JobID,
		SourceType: payload.SourceType,
		ObjectKey:  payload.ObjectKey,
		Outputs:    payload.Outputs,
	}

	var result pipeline.Result
	switch payload.SourceType {
	case domain.SourceTypeLocalFile:
		result, err = s.localProcessor.Process(ctx, request)
	default:
		result, err = s.objectProcessor.Process(ctx, request)
	}
	if err != nil {
		s.updateJobStatus(ctx, payload.JobID, domain.JobStatusFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "conversion failed")
		s.dispatchWebhook(ctx, payload, webhook.EventJobFailed, map[string]any{
			"job_id":       payload.JobID,
			"status":       domain.JobStatusFailed,
			"source_type":  payload.SourceType,
			"object_key":   payload.ObjectKey,
			"requested_at": payload.RequestedAt,
			"failed_at":    time.Now().UTC(),
			"error":        err.Error(),
		})
		return fmt.Errorf("run conversion: %w", err)
	}

	s.logger.Printf("Converted job_id=%s outputs=%d", payload.JobID, len(result.Outputs))
	s.updateJobStatus(ctx, payload.JobID, domain.JobStatusSucceeded)
	for _, output := range result.Outputs {
		s.metrics.outputsTotal.WithLabelValues(output.Format).Inc()
	}
	s.recordUsage(ctx, payload.JobID, result, time.Since(startedAt))

	if err := s.dispatchWebhook(ctx, payload, webhook.EventJobSucceeded, map[string]any{
		"job_id":       payload.JobID,
		"status":       domain.JobStatusSucceeded,
		"source_type":  payload.SourceType,
		"object_key":   payload.ObjectKey,
		"requested_at": payload.RequestedAt,
		"completed_at": time.Now().UTC(),
		"outputs":      result.Outputs,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "webhook dispatch failed")
		return err
	}

	outcome = domain.JobStatusSucceeded
	span.SetStatus(codes.Ok, "converted")
	return nil
}

func (s *Server) updateJobStatus(ctx context.Context, jobID, status string) {
	if s.jobStore == nil {
		return
	}
	if _, err := s.jobStore.UpdateStatus(ctx, jobID, status); err != nil {
		s.logger.Printf("job status update failed job_id=%s status=%s err=%v", jobID, status, err)
	}
}

func (s *Server) dispatchWebhook(ctx context.Context, payload queue.ConvertImagePayload, event string, body map[string]any) error {
	if payload.WebhookURL == "" || s.webhookClient == nil {
		return nil
	}

	if err := s.webhookClient.Send(ctx, payload.WebhookURL, event, body); err != nil {
		s.logger.Printf("webhook delivery failed job_id=%s event=%s err=%v", payload.JobID, event, err)
		return fmt.Errorf("dispatch webhook: %w", err)
	}

	return nil
}

func (s *Server) recordUsage(ctx context.Context, jobID string, result pipeline.Result, computeDuration time.Duration) {
	if s.usageStore == nil {
		return
	}

	userID := "anonymous"
	if s.jobStore != nil {
		job, ok, err := s.jobStore.Get(ctx, jobID)
		if err != nil {
			s.logger.Printf("usage lookup failed job_id=%s err=%v", jobID, err)
		} else if ok && strings.TrimSpace(job.UserID) != "" {
			userID = job.UserID
		}
	}

	var (
		pixelsConverted int64
		bytesWritten    int64
	)
	for _, output := range result.Outputs {
		pixelsConverted += int64(output.Width) * int64(output.Height)
		bytesWritten += int64(output.Bytes)
	}

	computeTimeMS := computeDuration.Milliseconds()
	if computeTimeMS < 1 {
		computeTimeMS = 1
	}

	usage := domain.UsageLog{
		UserID:          userID,
		JobID:           jobID,
		PixelsConverted: pixelsConverted,
		BytesWritten:    bytesWritten,
		ComputeTimeMS:   computeTimeMS,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.usageStore.CreateUsageLog(ctx, usage); err != nil {
		s.logger.Printf("usage log write failed job_id=%s err=%v", jobID, err)
		return
	}

	s.metrics.pixelsConvertedTotal.Add(float64(pixelsConverted))
	s.metrics.bytesWrittenTotal.Add(float64(bytesWritten))
	s.metrics.computeTimeMSTotal.Add(float64(computeTimeMS))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
