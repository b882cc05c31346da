// Package subscription multiplexes live-update subscriptions onto transport
// channels.
//
// Many independent callers may ask for live updates on the same resource
// key. The Manager keeps one channel record, and at most one open transport
// channel, per key and fans every inbound event out to all attached
// subscribers.
//
// # Channel States
//
// Each record moves through:
//
//	IDLE -> CONNECTING -> SUBSCRIBED
//	            ^  |          |
//	            |  v          v
//	           ERROR  <-------+
//	              |
//	              v
//	           CLEANUP
//
// CHANNEL_ERROR, TIMED_OUT and an unexpected CLOSED all move the record to
// ERROR. While the retry count is below the limit a backoff retry is
// scheduled; the retry releases the old transport channel and opens a new
// one for the same subscriber set. A successful subscription resets the
// retry count.
//
// # Subscribers
//
// Every subscriber carries a token. Subscribing again with the same token
// re-attaches (the handler is replaced); a different token is always a
// separate subscriber. When the last subscriber leaves, reclamation is
// deferred by the debounce delay so a quick unsubscribe/subscribe cycle
// keeps the existing channel.
//
// # Reclamation
//
// Records are reclaimed by the debounce timer, by the stale sweeper (ERROR
// for longer than the cleanup timeout, or empty for longer than twice the
// debounce delay) or by Cleanup. Reclaimed records are removed from the
// registry and their channel is released.
//
// # Errors
//
// Nothing crosses Subscribe or Unsubscribe as an error. Failures reach
// callers through state handlers, Info and the event log.
package subscription
