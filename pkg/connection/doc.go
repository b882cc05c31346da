// Package connection provides retry timing for live-update channels.
//
// This package handles:
//   - Exponential backoff delay calculation
//   - Optional jitter to spread simultaneous retries
//   - Keyed, cancellable retry timers
//
// # Retry Strategy
//
// When a channel fails, the retry for attempt n (1-based) waits:
//
//	delay = min(initial * multiplier^(n-1), max)
//
// With the defaults (initial 100ms, multiplier 2, max 5s) the first five
// attempts wait 100ms, 200ms, 400ms, 800ms and 1.6s.
//
// # Jitter
//
// Jitter is off by default. When enabled:
//
//	actual_delay = delay + random(0, delay * jitter)
//
// # Retry Scheduler
//
// RetryScheduler keeps at most one pending retry per key. Scheduling a key
// that already has a pending retry replaces it. The caller owns the attempt
// counter and decides when retries are exhausted; the scheduler only times
// them.
package connection
