// Package api exposes the conversion core over HTTP: synchronous
// detect/convert/dimensions endpoints plus the async job lifecycle.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rasterlabs/rasterflow/internal/domain"
	"github.com/rasterlabs/rasterflow/internal/id"
	"github.com/rasterlabs/rasterflow/internal/imaging"
	"github.com/rasterlabs/rasterflow/internal/queue"
	"github.com/rasterlabs/rasterflow/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultMaxBodyBytes = 64 << 20

// Config carries the knobs NewServer needs beyond its collaborators.
type Config struct {
	// MaxBodyBytes caps raw image uploads on the synchronous endpoints.
	MaxBodyBytes int64
	// PresignTTL is how long generated upload URLs stay valid.
	PresignTTL time.Duration
	// RateLimiter guards mutating routes when non-nil.
	RateLimiter RateLimiter
	// ConvertCost is the token cost charged for /v1/convert; other
	// rate-limited routes cost one token.
	ConvertCost int
	// UserIDHeader names the header used as the rate-limit subject.
	UserIDHeader string
}

type Server struct {
	logger       *log.Logger
	queueClient  queueEnqueuer
	jobStore     store.JobStore
	storage      objectStorage
	maxBodyBytes int64
	presignTTL   time.Duration
	rateLimiter  RateLimiter
	convertCost  int
	userIDHeader string
	metrics      *metrics
	tracer       trace.Tracer
	mux          *http.ServeMux
}

type queueEnqueuer interface {
	EnqueueConvertImage(ctx context.Context, payload queue.ConvertImagePayload) (*asynq.TaskInfo, error)
}

type objectStorage interface {
	PresignedPutURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
	ObjectExists(ctx context.Context, objectKey string) (bool, error)
}

func NewServer(logger *log.Logger, queueClient queueEnqueuer, jobStore store.JobStore, storage objectStorage, cfg Config) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 15 * time.Minute
	}
	if cfg.ConvertCost < 1 {
		cfg.ConvertCost = 1
	}
	if strings.TrimSpace(cfg.UserIDHeader) == "" {
		cfg.UserIDHeader = "X-Rasterflow-User"
	}
	if storage == nil {
		storage = unavailableObjectStorage{}
	}

	s := &Server{
		logger:       logger,
		queueClient:  queueClient,
		jobStore:     jobStore,
		storage:      storage,
		maxBodyBytes: cfg.MaxBodyBytes,
		presignTTL:   cfg.PresignTTL,
		rateLimiter:  cfg.RateLimiter,
		convertCost:  cfg.ConvertCost,
		userIDHeader: cfg.UserIDHeader,
		metrics:      newMetrics(),
		tracer:       otel.Tracer("rasterflow/api"),
		mux:          http.NewServeMux(),
	}
	s.routes()
	return s
}

type unavailableObjectStorage struct{}

func (unavailableObjectStorage) PresignedPutURL(_ context.Context, _ string, _ time.Duration) (string, error) {
	return "", errors.New("object storage is unavailable")
}

func (unavailableObjectStorage) ObjectExists(_ context.Context, _ string) (bool, error) {
	return false, errors.New("object storage is unavailable")
}

func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.mux
	handler = s.withRateLimit(handler)
	handler = s.metrics.withHTTPMetrics(handler)
	handler = s.withTracing(handler)
	return handler
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("POST /v1/detect", s.handleDetect)
	s.mux.HandleFunc("POST /v1/convert", s.handleConvert)
	s.mux.HandleFunc("POST /v1/dimensions", s.handleDimensions)
	s.mux.HandleFunc("POST /v1/jobs", s.handleCreateJob)
	s.mux.HandleFunc("POST /v1/jobs/", s.handleStartJob)
	s.mux.HandleFunc("GET /v1/jobs/", s.handleGetJob)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	data, err := s.readImageBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	format, err := imaging.Detect(data)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"format": format.String()})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	targetName := r.URL.Query().Get("target")
	target, err := imaging.ParseFormat(targetName)
	if err != nil {
		writeError(w, err)
		return
	}

	data, err := s.readImageBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	quality := 0
	if q := r.URL.Query().Get("quality"); q != "" {
		if _, err := fmt.Sscanf(q, "%d", &quality); err != nil || quality < 0 || quality > 100 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "quality must be an integer between 1 and 100",
				"kind":  "bad_request",
			})
			return
		}
	}

	// Convert takes ownership of data; nothing below may touch it.
	out, err := imaging.ConvertWith(data, target, imaging.EncodeOptions{Quality: quality})
	if err != nil {
		s.metrics.conversionsTotal.WithLabelValues(target.String(), "error").Inc()
		writeError(w, err)
		return
	}

	s.metrics.conversionsTotal.WithLabelValues(target.String(), "ok").Inc()
	s.metrics.convertBytesOut.Add(float64(len(out)))

	w.Header().Set("Content-Type", target.ContentType())
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(out)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out); err != nil {
		s.logger.Printf("write convert response failed: %v", err)
	}
}

func (s *Server) handleDimensions(w http.ResponseWriter, r *http.Request) {
	data, err := s.readImageBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	dims, err := imaging.GetDimensions(data)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dims)
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateJobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error(), "kind": "bad_request"})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error(), "kind": "bad_request"})
		return
	}

	now := time.Now().UTC()
	jobID := id.New()
	sourceType := strings.ToLower(strings.TrimSpace(req.SourceType))
	objectKey := strings.TrimSpace(req.ObjectKey)
	uploadState := "not_required"
	presignedPutURL := ""

	if sourceType == domain.SourceTypeS3Presigned {
		objectKey = fmt.Sprintf("uploads/%s/source", jobID)
		url, err := s.storage.PresignedPutURL(r.Context(), objectKey, s.presignTTL)
		if err != nil {
			s.logger.Printf("generate presigned url failed for job %s: %v", jobID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to generate upload URL", "kind": "internal"})
			return
		}
		presignedPutURL = url
		uploadState = "ready"
	}

	job := domain.Job{
		ID:         jobID,
		UserID:     strings.TrimSpace(r.Header.Get(s.userIDHeader)),
		Status:     domain.JobStatusCreated,
		SourceType: sourceType,
		WebhookURL: req.WebhookURL,
		Outputs:    req.Outputs,
		ObjectKey:  objectKey,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.jobStore.Create(r.Context(), job); err != nil {
		s.logger.Printf("create job failed for job %s: %v", job.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create job", "kind": "internal"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id": job.ID,
		"status": job.Status,
		"upload": map[string]string{
			"object_key":          job.ObjectKey,
			"presigned_put_url":   presignedPutURL,
			"presigned_url_state": uploadState,
		},
		"start_url": fmt.Sprintf("/v1/jobs/%s/start", job.ID),
	})
}

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := extractJobIDFromStartPath(r.URL.Path)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error(), "kind": "bad_request"})
		return
	}

	job, ok, err := s.jobStore.Get(r.Context(), jobID)
	if err != nil {
		s.logger.Printf("fetch job failed for job %s: %v", jobID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load job", "kind": "internal"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found", "kind": "not_found"})
		return
	}

	if err := s.verifySourceExists(r.Context(), job); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error(), "kind": "conflict"})
		return
	}

	payload := queue.ConvertImagePayload{
		JobID:       job.ID,
		SourceType:  job.SourceType,
		WebhookURL:  job.WebhookURL,
		ObjectKey:   job.ObjectKey,
		Outputs:     job.Outputs,
		RequestedAt: time.Now().UTC(),
	}

	taskInfo, err := s.queueClient.EnqueueConvertImage(r.Context(), payload)
	if err != nil {
		s.logger.Printf("enqueue failed for job %s: %v", job.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to enqueue job", "kind": "internal"})
		return
	}
	s.metrics.queueEnqueued.WithLabelValues(taskInfo.Queue).Inc()

	if _, err := s.jobStore.UpdateStatus(r.Context(), job.ID, domain.JobStatusQueued); err != nil {
		s.logger.Printf("update status failed for job %s: %v", job.ID, err)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":      job.ID,
		"status":      domain.JobStatusQueued,
		"queue":       taskInfo.Queue,
		"task_id":     taskInfo.ID,
		"state":       taskInfo.State.String(),
		"enqueued_at": taskInfo.NextProcessAt,
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/jobs/"), "/")
	if jobID == "" || strings.Contains(jobID, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "expected path format /v1/jobs/{id}", "kind": "bad_request"})
		return
	}

	job, ok, err := s.jobStore.Get(r.Context(), jobID)
	if err != nil {
		s.logger.Printf("fetch job failed for job %s: %v", jobID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load job", "kind": "internal"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found", "kind": "not_found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":      job.ID,
		"status":      job.Status,
		"source_type": job.SourceType,
		"object_key":  job.ObjectKey,
		"outputs":     job.Outputs,
		"created_at":  job.CreatedAt,
		"updated_at":  job.UpdatedAt,
	})
}

func (s *Server) verifySourceExists(ctx context.Context, job domain.Job) error {
	switch job.SourceType {
	case domain.SourceTypeLocalFile:
		if _, err := os.Stat(job.ObjectKey); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("source object is missing: %s", job.ObjectKey)
			}
			return fmt.Errorf("source object check failed: %w", err)
		}
		return nil
	default:
		exists, err := s.storage.ObjectExists(ctx, job.ObjectKey)
		if err != nil {
			return fmt.Errorf("source object check failed: %w", err)
		}
		if !exists {
			return fmt.Errorf("source object is missing: %s", job.ObjectKey)
		}
		return nil
	}
}

// readImageBody reads a raw image upload, bounded by the configured
// body limit. The returned slice is the caller's to own.
func (s *Server) readImageBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	limited := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	data, err := io.ReadAll(limited)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, fmt.Errorf("%w: request body exceeds %d bytes", errBodyTooLarge, s.maxBodyBytes)
		}
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return data, nil
}

var errBodyTooLarge = errors.New("request body too large")

// writeError maps core errors onto HTTP statuses and a machine-readable
// kind so callers can branch without parsing message text.
func writeError(w http.ResponseWriter, err error) {
	status, kind := classifyError(err)
	writeJSON(w, status, map[string]string{"error": err.Error(), "kind": kind})
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, imaging.ErrUnknownFormatName):
		return http.StatusBadRequest, "unknown_format"
	case errors.Is(err, imaging.ErrUnsupportedTarget):
		return http.StatusUnprocessableEntity, "unsupported_target"
	case errors.Is(err, imaging.ErrEmptyInput):
		return http.StatusBadRequest, "empty_input"
	case errors.Is(err, imaging.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity, "unsupported_format"
	case errors.Is(err, imaging.ErrUnrecognized):
		return http.StatusUnprocessableEntity, "unrecognized"
	case errors.Is(err, imaging.ErrDecode):
		return http.StatusUnprocessableEntity, "decode"
	case errors.Is(err, imaging.ErrEncode):
		return http.StatusInternalServerError, "encode"
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge, "body_too_large"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func extractJobIDFromStartPath(path string) (string, error) {
	trimmed := strings.TrimPrefix(path, "/v1/jobs/")
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "start" {
		return "", errors.New("expected path format /v1/jobs/{id}/start")
	}
	return parts[0], nil
}

func decodeJSON(r *http.Request, into any) error {
	const maxBodyBytes = 1 << 20
	limited := io.LimitReader(r.Body, maxBodyBytes)
	decoder := json.NewDecoder(limited)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON body: multiple JSON values are not allowed")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
