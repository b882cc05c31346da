package log

import (
	"sync"
	"testing"
	"time"
)

// recordingLogger records events for testing
type recordingLogger struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingLogger) Log(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingLogger) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestMultiLoggerCallsAll(t *testing.T) {
	r1 := &recordingLogger{}
	r2 := &recordingLogger{}

	multi := NewMultiLogger(r1, nil, r2)

	multi.Log(Event{
		Timestamp:   time.Now(),
		ResourceKey: "documents",
		Category:    CategoryReclaim,
		Reclaim:     &ReclaimEvent{Reason: ReclaimIdle},
	})

	for i, r := range []*recordingLogger{r1, r2} {
		if r.count() != 1 {
			t.Errorf("logger %d: got %d events, want 1", i, r.count())
			continue
		}
		if r.events[0].ResourceKey != "documents" {
			t.Errorf("logger %d: ResourceKey = %q", i, r.events[0].ResourceKey)
		}
	}
}

func TestMultiLoggerEmpty(t *testing.T) {
	multi := NewMultiLogger()
	multi.Log(Event{})
}
