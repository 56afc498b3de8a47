package pagerduty

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/target/ivt-chain/internal/observability/notify"
)

func TestNewClientRequiresRoutingKey(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error for missing routing key")
	}
}

func TestBuildEvent(t *testing.T) {
	client, err := NewClient(Config{RoutingKey: "abc", Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := client.buildEvent(notify.ChainFailurePayload{
		RunID:         "run-9",
		Model:         "MIROC5",
		Backend:       "pbs",
		ChunkIndex:    3,
		Chunk:         "2000-01..2000-06",
		JobsSubmitted: 2,
		Error:         "qsub: Unknown queue",
		ErrorClass:    "shell_commanderror",
		OccurredAt:    ts,
		Metadata:      map[string]string{"host": "login2", "model": "ignored"},
	})

	if event["routing_key"] != "abc" {
		t.Fatalf("routing key mismatch: %v", event["routing_key"])
	}
	if event["dedup_key"] != "chain:run-9" {
		t.Fatalf("dedup key mismatch: %v", event["dedup_key"])
	}

	payload, ok := event["payload"].(map[string]any)
	if !ok {
		t.Fatalf("payload missing")
	}
	if payload["summary"] != "Chain submission for MIROC5 failed at chunk 3 (2000-01..2000-06)" {
		t.Fatalf("summary mismatch: %v", payload["summary"])
	}
	if payload["severity"] != notify.SeverityCritical {
		t.Fatalf("severity mismatch: %v", payload["severity"])
	}
	if payload["source"] != "ivt-chain" || payload["component"] != "submitter" {
		t.Fatalf("unexpected defaults: %v %v", payload["source"], payload["component"])
	}
	if payload["timestamp"] != ts.Format(time.RFC3339) {
		t.Fatalf("timestamp mismatch: %v", payload["timestamp"])
	}

	details, ok := payload["custom_details"].(map[string]any)
	if !ok {
		t.Fatalf("custom details missing")
	}
	if details["host"] != "login2" {
		t.Fatalf("metadata not merged: %v", details["host"])
	}
	if details["model"] != "MIROC5" {
		t.Fatalf("metadata must not override payload fields: %v", details["model"])
	}
}

func TestSendChainFailurePostsToEndpoint(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client, err := NewClient(Config{RoutingKey: "abc", Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := client.SendChainFailure(context.Background(), notify.ChainFailurePayload{RunID: "r1"}); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if got["event_action"] != "trigger" {
		t.Fatalf("unexpected event: %v", got)
	}
}

func TestSendChainFailureErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid routing key", http.StatusBadRequest)
	}))
	defer srv.Close()

	client, err := NewClient(Config{RoutingKey: "abc", Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := client.SendChainFailure(context.Background(), notify.ChainFailurePayload{}); err == nil {
		t.Fatal("expected error for 400 response")
	}
}
