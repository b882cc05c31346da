// Package transport defines the contract between the subscription
// multiplexer and a live-update channel provider.
//
// A Transport hands out named Channels. A Channel carries raw update events
// for one topic and reports its connection status asynchronously:
//
//	ch, err := t.Open("projects:owner-1:1718000000000", "projects")
//	ch.OnEvent(transport.AllEvents, handle).Connect(func(s transport.Status, err error) {
//	    // SUBSCRIBED, CHANNEL_ERROR, TIMED_OUT or CLOSED
//	})
//	...
//	_ = t.Release(ctx, ch)
//
// # Implementations
//
//   - memory: in-process hub, used for tests and single-process deployments
//   - ws: websocket client speaking the livemux wire protocol to a hub server
//
// The multiplexer never interprets payloads; Event.Payload is opaque bytes.
package transport
