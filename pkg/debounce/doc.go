// Package debounce implements keyed, coalescing timers.
//
// A Scheduler runs at most one pending operation per key. Scheduling a key
// that already has a pending timer cancels the old timer and starts a new
// one with the full delay, so a burst of calls collapses into a single
// operation that runs once the burst has been quiet for the delay.
//
// # Timer Replacement
//
// There is no stacking. The operation that runs is always the most recently
// scheduled one for the key.
//
// # Cancellation
//
// Cancel removes a pending timer without running it. CancelAll is intended
// for shutdown: after it returns no previously scheduled operation will run.
package debounce
