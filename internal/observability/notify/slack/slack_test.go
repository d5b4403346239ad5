package slack

import (
	"strings"
	"testing"
	"time"

	"github.com/slipstreamlabs/recordwatch/internal/observability/notify"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error when webhook url missing")
	}
}

func TestNewClientDefaultUsername(t *testing.T) {
	client, err := NewClient(Config{WebhookURL: "https://hooks.slack.com/services/test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.username != "recordwatch" {
		t.Fatalf("expected default username recordwatch, got %q", client.username)
	}
}

func TestFormatMessageIncludesFields(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL: "https://hooks.slack.com/services/test",
		Channel:    "#alerts",
		Username:   "bot",
		Timeout:    time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := client.formatMessage(notify.JobFailurePayload{
		JobID:      "123",
		JobType:    "mapper_check",
		Scope:      "subscription 42",
		Error:      "boom",
		ErrorClass: "upstream_unavailable",
	})

	if msg["username"] != "bot" {
		t.Fatalf("expected username to be preserved, got %v", msg["username"])
	}
	if msg["channel"] != "#alerts" {
		t.Fatalf("expected channel to be set, got %v", msg["channel"])
	}

	text, ok := msg["text"].(string)
	if !ok {
		t.Fatalf("expected text field")
	}
	if !containsAll(
		text,
		[]string{"Job failure alert", "123", "mapper_check", "subscription 42", "boom", "upstream_unavailable"},
	) {
		t.Fatalf("message text missing fields: %s", text)
	}
}

func TestFormatMessageEscapesScope(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL: "https://hooks.slack.com/services/test",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := client.formatMessage(notify.JobFailurePayload{
		Scope: "check & <digest>",
	})

	text, ok := msg["text"].(string)
	if !ok {
		t.Fatalf("expected text field")
	}

	if !strings.Contains(text, "check &amp; &lt;digest&gt;") {
		t.Fatalf("expected escaped scope, got: %s", text)
	}
}

func TestFormatMessageDefaultsSeverityAndTimestamp(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL: "https://hooks.slack.com/services/test",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	occurred := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	msg := client.formatMessage(notify.JobFailurePayload{
		Error:      "timeout",
		OccurredAt: occurred,
		Metadata:   map[string]string{"queue": "driver_check", "attempt": "3"},
	})

	text, ok := msg["text"].(string)
	if !ok {
		t.Fatalf("expected text field")
	}

	if !strings.Contains(text, "Severity: critical") {
		t.Fatalf("expected default critical severity, got: %s", text)
	}
	if !strings.Contains(text, "2026-03-14T09:26:53Z") {
		t.Fatalf("expected RFC3339 timestamp, got: %s", text)
	}
	// Metadata keys render sorted.
	attemptIdx := strings.Index(text, "attempt: 3")
	queueIdx := strings.Index(text, "queue: driver_check")
	if attemptIdx == -1 || queueIdx == -1 || attemptIdx > queueIdx {
		t.Fatalf("expected sorted metadata entries, got: %s", text)
	}
}

func containsAll(text string, substrs []string) bool {
	for _, s := range substrs {
		if !strings.Contains(text, s) {
			return false
		}
	}
	return true
}
