package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func logOne(t *testing.T, event Event) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	NewSlogAdapter(slog.New(handler)).Log(event)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestSlogAdapterLogsStateChange(t *testing.T) {
	entry := logOne(t, Event{
		Timestamp:   time.Now(),
		ResourceKey: "projects",
		Layer:       LayerMultiplexer,
		Category:    CategoryState,
		ChannelName: "projects:anon:1",
		StateChange: &StateChangeEvent{OldState: "CONNECTING", NewState: "SUBSCRIBED"},
	})

	if entry["key"] != "projects" {
		t.Errorf("key: got %v", entry["key"])
	}
	if entry["level"] != "DEBUG" {
		t.Errorf("level: got %v, want DEBUG", entry["level"])
	}
	if entry["new_state"] != "SUBSCRIBED" {
		t.Errorf("new_state: got %v", entry["new_state"])
	}
	if entry["channel"] != "projects:anon:1" {
		t.Errorf("channel: got %v", entry["channel"])
	}
}

func TestSlogAdapterCallbackIsWarn(t *testing.T) {
	entry := logOne(t, Event{
		ResourceKey: "tasks",
		Layer:       LayerSubscriber,
		Category:    CategoryCallback,
		Callback:    &CallbackEvent{Token: "tok-1", Message: "nil map write"},
	})

	if entry["level"] != "WARN" {
		t.Errorf("level: got %v, want WARN", entry["level"])
	}
	if entry["token"] != "tok-1" {
		t.Errorf("token: got %v", entry["token"])
	}
}

func TestSlogAdapterLogsRetry(t *testing.T) {
	entry := logOne(t, Event{
		ResourceKey: "tasks",
		Category:    CategoryRetry,
		Retry:       &RetryEvent{Attempt: 2, MaxRetries: 5, Delay: 200 * time.Millisecond},
	})

	if entry["attempt"] != float64(2) {
		t.Errorf("attempt: got %v", entry["attempt"])
	}
	if _, ok := entry["delay"]; !ok {
		t.Error("delay attribute missing")
	}
}

func TestSlogAdapterLogsDeliveryFailures(t *testing.T) {
	entry := logOne(t, Event{
		ResourceKey: "documents",
		Category:    CategoryDelivery,
		Delivery:    &DeliveryEvent{EventType: "UPDATE", PayloadSize: 12, Delivered: 2, Failed: 1},
	})

	if entry["failed"] != float64(1) {
		t.Errorf("failed: got %v", entry["failed"])
	}
	if entry["event_type"] != "UPDATE" {
		t.Errorf("event_type: got %v", entry["event_type"])
	}
}
