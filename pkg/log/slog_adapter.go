package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes events to an slog.Logger.
// Useful for development when you want to see channel events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger. Errors and callback failures
// are logged at Warn level, everything else at Debug.
func (a *SlogAdapter) Log(event Event) {
	level := slog.LevelDebug
	attrs := []slog.Attr{
		slog.String("key", event.ResourceKey),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	if event.ChannelName != "" {
		attrs = append(attrs, slog.String("channel", event.ChannelName))
	}
	if event.OwnerID != "" {
		attrs = append(attrs, slog.String("owner", event.OwnerID))
	}

	switch {
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Retry != nil:
		attrs = append(attrs,
			slog.Int("attempt", event.Retry.Attempt),
			slog.Int("max_retries", event.Retry.MaxRetries),
			slog.Duration("delay", event.Retry.Delay),
		)
	case event.Callback != nil:
		level = slog.LevelWarn
		attrs = append(attrs,
			slog.String("token", event.Callback.Token),
			slog.String("callback_error", event.Callback.Message),
		)
	case event.Reclaim != nil:
		attrs = append(attrs,
			slog.String("reclaim_reason", event.Reclaim.Reason.String()),
			slog.Duration("age", event.Reclaim.Age),
			slog.Int("subscribers", event.Reclaim.Subscribers),
		)
	case event.Delivery != nil:
		attrs = append(attrs,
			slog.String("event_type", event.Delivery.EventType),
			slog.Int("payload_size", event.Delivery.PayloadSize),
			slog.Int("delivered", event.Delivery.Delivered),
		)
		if event.Delivery.Failed > 0 {
			attrs = append(attrs, slog.Int("failed", event.Delivery.Failed))
		}
	case event.Error != nil:
		level = slog.LevelWarn
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
	}

	a.logger.LogAttrs(context.Background(), level, "livemux", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
