package commands

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sitetrack/livemux/pkg/log"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.lmlog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

var baseTime = time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)

// sampleEvents is a short session: one resource connects, fails once,
// retries, delivers an update and is reclaimed.
func sampleEvents() []log.Event {
	return []log.Event{
		{
			Timestamp: baseTime, ResourceKey: "projects", Layer: log.LayerMultiplexer, Category: log.CategoryState,
			ChannelName: "projects:ops:1769595332123", OwnerID: "ops",
			StateChange: &log.StateChangeEvent{OldState: "IDLE", NewState: "CONNECTING", Reason: "subscribe"},
		},
		{
			Timestamp: baseTime.Add(10 * time.Millisecond), ResourceKey: "projects", Layer: log.LayerTransport, Category: log.CategoryError,
			ChannelName: "projects:ops:1769595332123", OwnerID: "ops",
			Error: &log.ErrorEventData{Layer: log.LayerTransport, Message: "connection failed: refused", Context: "connect"},
		},
		{
			Timestamp: baseTime.Add(11 * time.Millisecond), ResourceKey: "projects", Layer: log.LayerMultiplexer, Category: log.CategoryRetry,
			OwnerID: "ops",
			Retry:   &log.RetryEvent{Attempt: 1, MaxRetries: 5, Delay: 100 * time.Millisecond},
		},
		{
			Timestamp: baseTime.Add(200 * time.Millisecond), ResourceKey: "projects", Layer: log.LayerMultiplexer, Category: log.CategoryDelivery,
			ChannelName: "projects:ops:1769595332234", OwnerID: "ops",
			Delivery: &log.DeliveryEvent{EventType: "UPDATE", PayloadSize: 12, Delivered: 2, Failed: 1},
		},
		{
			Timestamp: baseTime.Add(201 * time.Millisecond), ResourceKey: "projects", Layer: log.LayerSubscriber, Category: log.CategoryCallback,
			Callback: &log.CallbackEvent{Token: "tok-1", Message: "handler panicked: boom"},
		},
		{
			Timestamp: baseTime.Add(5 * time.Second), ResourceKey: "tasks", Layer: log.LayerMultiplexer, Category: log.CategoryReclaim,
			ChannelName: "tasks:anon:1769595337123",
			Reclaim:     &log.ReclaimEvent{Reason: log.ReclaimIdle, Age: 3 * time.Second},
		},
	}
}
