// Package hub implements the livemux hub: a websocket server that lets
// clients join topics and receive the updates published to them.
//
// Clients speak the frame protocol in package wire over a single socket.
// A join is answered with an ack (or an error frame), after which every
// update published to the topic is delivered as an event frame carrying
// the join ref. Updates enter the hub from publish frames or from the HTTP
// API:
//
//	GET  /v1/ws               websocket endpoint
//	POST /v1/publish/{topic}  body {"type": "UPDATE", "payload": {...}}
//	GET  /v1/stats            hub counters as JSON
//	GET  /v1/sessions         connected sessions
//	DELETE /v1/sessions/{id}  disconnect a session by session or client ID
//
// When token hashes are configured every request must carry a bearer token
// matching one of them; the websocket upgrade is refused with 401 otherwise.
package hub
