// Package log provides structured event capture for the subscription
// multiplexer.
//
// This package defines the Logger interface and Event types for recording
// channel lifecycle events: state transitions, retry scheduling, callback
// failures, reclamation and update delivery. It is separate from operational
// logging (slog) - event capture provides a complete machine-readable trace
// of what the multiplexer did with every channel.
//
// # Basic Usage
//
// Applications configure capture by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.EventLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.EventLogger, _ = log.NewFileLogger("/var/log/livemux/console.lmlog")
//
//	// Both: use MultiLogger
//	cfg.EventLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Every event names the resource key it concerns. The payload depends on
// the category:
//   - State: channel state transitions (StateChangeEvent)
//   - Retry: scheduled backoff retries (RetryEvent)
//   - Callback: subscriber handler failures (CallbackEvent)
//   - Reclaim: channel reclamation (ReclaimEvent)
//   - Delivery: fan-out of one update (DeliveryEvent)
//   - Error: transport and setup errors (ErrorEventData)
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with integer keys. The
// livemux-log CLI tool provides viewing, statistics and export.
package log
