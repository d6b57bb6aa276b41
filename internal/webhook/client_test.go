package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestSendSignsDelivery(t *testing.T) {
	var (
		gotSig  string
		gotTS   string
		gotEvt  string
		gotBody []byte
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(HeaderSignature)
		gotTS = r.Header.Get(HeaderTimestamp)
		gotEvt = r.Header.Get(HeaderEvent)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(Config{
		SigningSecret:  "test-secret",
		Timeout:        2 * time.Second,
		MaxAttempts:    1,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
	})

	err := client.Send(context.Background(), srv.URL, EventJobSucceeded, map[string]any{"job_id": "job-1"})
	if err != nil {
		t.Fatalf("send returned error: %v", err)
	}

	if gotEvt != EventJobSucceeded {
		t.Fatalf("expected event header %q, got %q", EventJobSucceeded, gotEvt)
	}
	if gotTS == "" {
		t.Fatal("expected timestamp header")
	}
	if !Verify("test-secret", gotTS, gotBody, gotSig) {
		t.Fatalf("signature %q does not verify against delivered body", gotSig)
	}
	if Verify("wrong-secret", gotTS, gotBody, gotSig) {
		t.Fatal("signature verified with the wrong secret")
	}
}

func TestSendRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(Config{
		SigningSecret:  "test-secret",
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	})

	if err := client.Send(context.Background(), srv.URL, EventJobFailed, map[string]any{"job_id": "job-2"}); err != nil {
		t.Fatalf("send returned error: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestSendGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(Config{
		SigningSecret:  "test-secret",
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	})

	err := client.Send(context.Background(), srv.URL, EventJobFailed, map[string]any{"job_id": "job-3"})
	if err == nil {
		t.Fatal("expected delivery error")
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestSendSkipsEmptyEndpoint(t *testing.T) {
	client := NewClient(Config{SigningSecret: "test-secret"})
	if err := client.Send(context.Background(), "  ", EventJobSucceeded, nil); err != nil {
		t.Fatalf("empty endpoint should be a no-op, got %v", err)
	}
}
