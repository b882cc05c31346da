package log

import (
	"testing"
	"time"
)

func TestNoopLoggerDoesNotPanic(t *testing.T) {
	logger := NoopLogger{}

	event := Event{
		Timestamp:   time.Now(),
		ResourceKey: "projects",
		Layer:       LayerMultiplexer,
		Category:    CategoryState,
	}
	logger.Log(event)

	event.StateChange = &StateChangeEvent{NewState: "SUBSCRIBED"}
	logger.Log(event)

	event.StateChange = nil
	event.Callback = &CallbackEvent{Token: "t", Message: "boom"}
	logger.Log(event)
}

func TestNoopLoggerIsZeroValue(t *testing.T) {
	var logger NoopLogger
	logger.Log(Event{})
}
