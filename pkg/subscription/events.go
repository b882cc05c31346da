package subscription

import (
	"time"

	"github.com/sitetrack/livemux/pkg/log"
)

// logTransition records a state change. Caller holds m.mu.
func (m *Manager) logTransition(rec *record, old State, reason string) {
	m.events.Log(log.Event{
		Timestamp:   m.clock.Now(),
		ResourceKey: rec.key,
		Layer:       log.LayerMultiplexer,
		Category:    log.CategoryState,
		ChannelName: channelName(rec.channel),
		OwnerID:     rec.ownerID,
		StateChange: &log.StateChangeEvent{
			OldState:   old.String(),
			NewState:   rec.state.String(),
			Reason:     reason,
			RetryCount: rec.retryCount,
		},
	})
	m.debugLog("state change", "key", rec.key, "from", old, "to", rec.state, "reason", reason)
}

// logRetry records a scheduled retry. Caller holds m.mu.
func (m *Manager) logRetry(rec *record, delay time.Duration) {
	m.events.Log(log.Event{
		Timestamp:   m.clock.Now(),
		ResourceKey: rec.key,
		Layer:       log.LayerMultiplexer,
		Category:    log.CategoryRetry,
		ChannelName: channelName(rec.channel),
		OwnerID:     rec.ownerID,
		Retry: &log.RetryEvent{
			Attempt:    rec.retryCount,
			MaxRetries: rec.maxRetries,
			Delay:      delay,
		},
	})
	m.debugLog("retry scheduled", "key", rec.key, "attempt", rec.retryCount, "delay", delay)
}

// logError records a transport failure. Caller holds m.mu.
func (m *Manager) logError(rec *record, cause error) {
	m.events.Log(log.Event{
		Timestamp:   m.clock.Now(),
		ResourceKey: rec.key,
		Layer:       log.LayerTransport,
		Category:    log.CategoryError,
		ChannelName: channelName(rec.channel),
		OwnerID:     rec.ownerID,
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: cause.Error(),
			Context: "connect",
		},
	})
}

// logCallback records a recovered handler panic.
func (m *Manager) logCallback(err *CallbackError) {
	m.events.Log(log.Event{
		Timestamp:   m.clock.Now(),
		ResourceKey: err.Key,
		Layer:       log.LayerSubscriber,
		Category:    log.CategoryCallback,
		Callback: &log.CallbackEvent{
			Token:   err.Token,
			Message: err.Error(),
		},
	})
	m.warnLog("subscriber handler panicked", "key", err.Key, "token", err.Token, "panic", err.Value)
}
