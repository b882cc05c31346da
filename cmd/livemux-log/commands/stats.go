package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/sitetrack/livemux/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents      int
	EventsByLayer    map[log.Layer]int
	EventsByCategory map[log.Category]int
	Resources        map[string]*ResourceStats
	Reclaims         map[log.ReclaimReason]int
	Errors           int
	TimeRange        struct {
		Start time.Time
		End   time.Time
	}
}

// ResourceStats holds statistics for a single resource key.
type ResourceStats struct {
	FirstSeen       time.Time
	LastSeen        time.Time
	Events          int
	Channels        map[string]struct{}
	Retries         int
	Deliveries      int
	FailedCallbacks int
	LastState       string
}

// collectStats reads every event from reader.
func collectStats(reader *log.Reader) (*Stats, error) {
	stats := &Stats{
		EventsByLayer:    make(map[log.Layer]int),
		EventsByCategory: make(map[log.Category]int),
		Resources:        make(map[string]*ResourceStats),
		Reclaims:         make(map[log.ReclaimReason]int),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}

		stats.TotalEvents++
		stats.EventsByLayer[event.Layer]++
		stats.EventsByCategory[event.Category]++

		// Track time range
		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		res, ok := stats.Resources[event.ResourceKey]
		if !ok {
			res = &ResourceStats{
				FirstSeen: event.Timestamp,
				LastSeen:  event.Timestamp,
				Channels:  make(map[string]struct{}),
			}
			stats.Resources[event.ResourceKey] = res
		}
		res.Events++
		if event.Timestamp.After(res.LastSeen) {
			res.LastSeen = event.Timestamp
		}
		if event.ChannelName != "" {
			res.Channels[event.ChannelName] = struct{}{}
		}

		switch {
		case event.StateChange != nil:
			res.LastState = event.StateChange.NewState
		case event.Retry != nil:
			res.Retries++
		case event.Delivery != nil:
			res.Deliveries++
			res.FailedCallbacks += event.Delivery.Failed
		case event.Reclaim != nil:
			stats.Reclaims[event.Reclaim.Reason]++
		}

		if event.Error != nil {
			stats.Errors++
		}
	}
	return stats, nil
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats, err := collectStats(reader)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== livemux Event Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerMultiplexer, log.LayerSubscriber} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for cat := log.CategoryState; cat <= log.CategoryError; cat++ {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.Reclaims) > 0 {
		fmt.Fprintln(w, "Reclaims:")
		for _, r := range []log.ReclaimReason{log.ReclaimIdle, log.ReclaimStaleError, log.ReclaimStaleEmpty, log.ReclaimForced} {
			if count := stats.Reclaims[r]; count > 0 {
				fmt.Fprintf(w, "  %-14s %d\n", r.String()+":", count)
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Resources: %d\n", len(stats.Resources))
	if len(stats.Resources) > 0 {
		keys := make([]string, 0, len(stats.Resources))
		for k := range stats.Resources {
			keys = append(keys, k)
		}
		// Sort by first seen time
		sort.Slice(keys, func(i, j int) bool {
			return stats.Resources[keys[i]].FirstSeen.Before(stats.Resources[keys[j]].FirstSeen)
		})

		fmt.Fprintln(w)
		for _, k := range keys {
			r := stats.Resources[k]
			duration := r.LastSeen.Sub(r.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, %d channels, duration %s\n", k, r.Events, len(r.Channels), duration)
			if r.LastState != "" {
				fmt.Fprintf(w, "           Last state: %s\n", r.LastState)
			}
			if r.Retries > 0 {
				fmt.Fprintf(w, "           Retries: %d\n", r.Retries)
			}
			if r.Deliveries > 0 {
				fmt.Fprintf(w, "           Deliveries: %d (failed callbacks: %d)\n", r.Deliveries, r.FailedCallbacks)
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
