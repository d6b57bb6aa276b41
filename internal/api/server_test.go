package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rasterlabs/rasterflow/internal/domain"
	"github.com/rasterlabs/rasterflow/internal/imaging"
	"github.com/rasterlabs/rasterflow/internal/queue"
	"github.com/rasterlabs/rasterflow/internal/store"
)

func newTestServer(t *testing.T, enqueuer queueEnqueuer) *Server {
	t.Helper()
	return NewServer(log.New(io.Discard, "", 0), enqueuer, store.NewMemoryJobStore(), nil, Config{})
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 31), G: uint8(y * 47), B: 9, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func doRequest(t *testing.T, s *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeErrorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body["error"] == "" {
		t.Fatal("expected error message in response body")
	}
	return body["kind"]
}

func TestHandleDetect(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodPost, "/v1/detect", testPNG(t, 4, 4))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["format"] != "png" {
		t.Fatalf("expected format=png, got %q", body["format"])
	}
}

func TestHandleDetectEmptyBody(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodPost, "/v1/detect", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if kind := decodeErrorKind(t, rec); kind != "empty_input" {
		t.Fatalf("expected kind=empty_input, got %q", kind)
	}
}

func TestHandleDetectGarbage(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodPost, "/v1/detect", []byte("definitely not an image"))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if kind := decodeErrorKind(t, rec); kind != "unrecognized" {
		t.Fatalf("expected kind=unrecognized, got %q", kind)
	}
}

func TestHandleConvert(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodPost, "/v1/convert?target=bmp", testPNG(t, 6, 3))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/bmp" {
		t.Fatalf("expected Content-Type image/bmp, got %q", ct)
	}

	format, err := imaging.Detect(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("detect converted output: %v", err)
	}
	if format != imaging.BMP {
		t.Fatalf("expected BMP output, got %s", format)
	}

	dims, err := imaging.GetDimensions(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("probe converted output: %v", err)
	}
	if dims.Width != 6 || dims.Height != 3 {
		t.Fatalf("expected 6x3 output, got %dx%d", dims.Width, dims.Height)
	}
}

func TestHandleConvertWebPTargetRejected(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodPost, "/v1/convert?target=webp", testPNG(t, 2, 2))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if kind := decodeErrorKind(t, rec); kind != "unsupported_target" {
		t.Fatalf("expected kind=unsupported_target, got %q", kind)
	}
}

func TestHandleConvertUnknownTarget(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodPost, "/v1/convert?target=avif", testPNG(t, 2, 2))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if kind := decodeErrorKind(t, rec); kind != "unknown_format" {
		t.Fatalf("expected kind=unknown_format, got %q", kind)
	}
}

func TestHandleConvertUndecodableBody(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodPost, "/v1/convert?target=png", []byte{0xde, 0xad, 0xbe, 0xef})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if kind := decodeErrorKind(t, rec); kind != "decode" {
		t.Fatalf("expected kind=decode, got %q", kind)
	}
}

func TestHandleDimensions(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodPost, "/v1/dimensions", testPNG(t, 10, 7))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var dims imaging.Dimensions
	if err := json.Unmarshal(rec.Body.Bytes(), &dims); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if dims.Width != 10 || dims.Height != 7 {
		t.Fatalf("expected 10x7, got %dx%d", dims.Width, dims.Height)
	}
}

func TestHandleCreateJobRejectsInvalidRequest(t *testing.T) {
	s := newTestServer(t, nil)

	body, _ := json.Marshal(domain.CreateJobRequest{
		SourceType: "local_file",
		ObjectKey:  "input.png",
		Outputs:    []domain.OutputSpec{{ID: "out", Format: "webp"}},
	})
	rec := doRequest(t, s, http.MethodPost, "/v1/jobs", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

type captureEnqueuer struct {
	payload queue.ConvertImagePayload
	called  bool
}

func (e *captureEnqueuer) EnqueueConvertImage(_ context.Context, payload queue.ConvertImagePayload) (*asynq.TaskInfo, error) {
	e.called = true
	e.payload = payload
	return &asynq.TaskInfo{
		ID:            "task-1",
		Queue:         "conversions",
		State:         asynq.TaskStatePending,
		NextProcessAt: time.Now().UTC(),
	}, nil
}

func TestCreateAndStartJob(t *testing.T) {
	enqueuer := &captureEnqueuer{}
	s := newTestServer(t, enqueuer)

	sourcePath := filepath.Join(t.TempDir(), "input.png")
	if err := os.WriteFile(sourcePath, testPNG(t, 5, 5), 0o644); err != nil {
		t.Fatalf("write source file: %v", err)
	}

	body, _ := json.Marshal(domain.CreateJobRequest{
		SourceType: domain.SourceTypeLocalFile,
		ObjectKey:  sourcePath,
		Outputs:    []domain.OutputSpec{{ID: "main", Format: "jpeg", Quality: 85}},
	})
	rec := doRequest(t, s, http.MethodPost, "/v1/jobs", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var created struct {
		JobID    string `json:"job_id"`
		StartURL string `json:"start_url"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.JobID == "" {
		t.Fatal("expected a job id")
	}

	rec = doRequest(t, s, http.MethodPost, created.StartURL, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 on start, got %d: %s", rec.Code, rec.Body.String())
	}
	if !enqueuer.called {
		t.Fatal("expected job to be enqueued")
	}
	if enqueuer.payload.JobID != created.JobID {
		t.Fatalf("expected enqueued job id %s, got %s", created.JobID, enqueuer.payload.JobID)
	}

	rec = doRequest(t, s, http.MethodGet, "/v1/jobs/"+created.JobID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on get, got %d: %s", rec.Code, rec.Body.String())
	}
	var got struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode get response: %v", err)
	}
	if got.Status != domain.JobStatusQueued {
		t.Fatalf("expected status=%s, got %s", domain.JobStatusQueued, got.Status)
	}
}

func TestExtractJobIDFromStartPath(t *testing.T) {
	jobID, err := extractJobIDFromStartPath("/v1/jobs/abc123/start")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if jobID != "abc123" {
		t.Fatalf("expected abc123, got %s", jobID)
	}

	if _, err := extractJobIDFromStartPath("/v1/jobs/abc123"); err == nil {
		t.Fatal("expected error for invalid path")
	}
}
