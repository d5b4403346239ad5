package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/slipstreamlabs/recordwatch/internal/observability/notify"
)

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing url", cfg: Config{}},
		{name: "bad scheme", cfg: Config{URL: "ftp://example.com/hook"}},
		{name: "missing host", cfg: Config{URL: "https:///hook"}},
		{name: "unsupported method", cfg: Config{URL: "https://example.com/hook", Method: "GET"}},
		{name: "bad fields json", cfg: Config{URL: "https://example.com/hook", Fields: "not json"}},
		{name: "bad jmespath", cfg: Config{URL: "https://example.com/hook", Fields: `{"x": "]["}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClient(tt.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestBuildBodyWithoutFieldsSendsFullDocument(t *testing.T) {
	client, err := NewClient(Config{URL: "https://example.com/hook"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	occurred := time.Date(2026, 5, 2, 18, 0, 0, 0, time.UTC)
	body, err := client.buildBody(notify.JobFailurePayload{
		JobID:      "42",
		JobType:    "digest_dispatch",
		Scope:      "user 7",
		Error:      "smtp refused",
		ErrorClass: "delivery",
		OccurredAt: occurred,
		Metadata:   map[string]string{"attempt": "1"},
	})
	if err != nil {
		t.Fatalf("build body: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if doc["job_id"] != "42" || doc["job_type"] != "digest_dispatch" {
		t.Fatalf("unexpected identity fields: %v", doc)
	}
	if doc["severity"] != "critical" {
		t.Fatalf("expected default severity, got %v", doc["severity"])
	}
	if doc["occurred_at"] != "2026-05-02T18:00:00Z" {
		t.Fatalf("expected RFC3339 timestamp, got %v", doc["occurred_at"])
	}
	metadata, ok := doc["metadata"].(map[string]any)
	if !ok || metadata["attempt"] != "1" {
		t.Fatalf("expected metadata carried through, got %v", doc["metadata"])
	}
}

func TestBuildBodyAppliesFieldExpressions(t *testing.T) {
	client, err := NewClient(Config{
		URL:    "https://example.com/hook",
		Fields: `{"text": "join(': ', [job_type, error])", "id": "job_id", "attempt": "metadata.attempt"}`,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body, err := client.buildBody(notify.JobFailurePayload{
		JobID:    "9",
		JobType:  "mapper_check",
		Error:    "boom",
		Metadata: map[string]string{"attempt": "3"},
	})
	if err != nil {
		t.Fatalf("build body: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if doc["text"] != "mapper_check: boom" {
		t.Fatalf("text = %v", doc["text"])
	}
	if doc["id"] != "9" {
		t.Fatalf("id = %v", doc["id"])
	}
	if doc["attempt"] != "3" {
		t.Fatalf("attempt = %v", doc["attempt"])
	}
	if len(doc) != 3 {
		t.Fatalf("expected only mapped fields, got %v", doc)
	}
}

func TestSendJobFailurePostsAndSetsHeaders(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s", ct)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		URL:        srv.URL,
		AuthHeader: "Bearer tok",
		Timeout:    time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := client.SendJobFailure(context.Background(), notify.JobFailurePayload{JobID: "1"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got, _ := gotAuth.Load().(string); got != "Bearer tok" {
		t.Fatalf("authorization header = %q", got)
	}
}

func TestSendJobFailureRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "try again", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewClient(Config{URL: srv.URL, RetryLimit: 2, Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := client.SendJobFailure(context.Background(), notify.JobFailurePayload{JobID: "1"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestSendJobFailureReturnsLastError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	client, err := NewClient(Config{URL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := client.SendJobFailure(context.Background(), notify.JobFailurePayload{JobID: "1"}); err == nil {
		t.Fatal("expected error from non-2xx response")
	}
}
