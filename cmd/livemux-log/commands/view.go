// Package commands implements the livemux-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sitetrack/livemux/pkg/log"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Layer       *log.Layer
	Category    *log.Category
	ResourceKey string
}

// Matches reports whether the event passes the filter.
func (f ViewFilter) Matches(event log.Event) bool {
	if f.Layer != nil && event.Layer != *f.Layer {
		return false
	}
	if f.Category != nil && event.Category != *f.Category {
		return false
	}
	if f.ResourceKey != "" && event.ResourceKey != f.ResourceKey {
		return false
	}
	return true
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [key] LAYER Type
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	fmt.Fprintf(w, "%s [%s] %s %s\n", ts, event.ResourceKey, event.Layer.String(), typeLabel(event))

	if event.ChannelName != "" {
		fmt.Fprintf(w, "  Channel: %s\n", event.ChannelName)
	}

	switch {
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Retry != nil:
		formatRetryDetails(w, event.Retry)
	case event.Callback != nil:
		fmt.Fprintf(w, "  Token: %s\n", event.Callback.Token)
		fmt.Fprintf(w, "  Message: %s\n", event.Callback.Message)
	case event.Reclaim != nil:
		formatReclaimDetails(w, event.Reclaim)
	case event.Delivery != nil:
		formatDeliveryDetails(w, event.Delivery)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w) // Blank line between events
}

// typeLabel names the payload carried by the event.
func typeLabel(event log.Event) string {
	switch {
	case event.StateChange != nil:
		return "State"
	case event.Retry != nil:
		return "Retry"
	case event.Callback != nil:
		return "Callback"
	case event.Reclaim != nil:
		return "Reclaim"
	case event.Delivery != nil:
		return "Delivery"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
	if sc.RetryCount > 0 {
		fmt.Fprintf(w, "  Retries: %d\n", sc.RetryCount)
	}
}

func formatRetryDetails(w io.Writer, r *log.RetryEvent) {
	fmt.Fprintf(w, "  Attempt: %d/%d\n", r.Attempt, r.MaxRetries)
	fmt.Fprintf(w, "  Delay: %s\n", formatDuration(r.Delay))
}

func formatReclaimDetails(w io.Writer, r *log.ReclaimEvent) {
	fmt.Fprintf(w, "  Reason: %s\n", r.Reason.String())
	fmt.Fprintf(w, "  Age: %s\n", formatDuration(r.Age))
	if r.Subscribers > 0 {
		fmt.Fprintf(w, "  Subscribers: %d\n", r.Subscribers)
	}
}

func formatDeliveryDetails(w io.Writer, d *log.DeliveryEvent) {
	if d.EventType != "" {
		fmt.Fprintf(w, "  Type: %s\n", d.EventType)
	}
	fmt.Fprintf(w, "  Payload: %d bytes\n", d.PayloadSize)
	fmt.Fprintf(w, "  Delivered: %d", d.Delivered)
	if d.Failed > 0 {
		fmt.Fprintf(w, "  Failed: %d", d.Failed)
	}
	fmt.Fprintln(w)
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ParseLayerFlag parses a layer string from command-line flag (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	return parseLayer(s)
}

func parseLayer(s string) (log.Layer, error) {
	l, ok := log.ParseLayer(strings.ToUpper(s))
	if !ok {
		return 0, fmt.Errorf("invalid layer: %s (must be transport, multiplexer, or subscriber)", s)
	}
	return l, nil
}

// ParseCategoryFlag parses a category string from command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	return parseCategory(s)
}

func parseCategory(s string) (log.Category, error) {
	c, ok := log.ParseCategory(strings.ToUpper(s))
	if !ok {
		return 0, fmt.Errorf("invalid category: %s (must be state, retry, callback, reclaim, delivery, or error)", s)
	}
	return c, nil
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if !filter.Matches(event) {
			continue
		}
		formatEvent(output, event)
	}

	return nil
}
