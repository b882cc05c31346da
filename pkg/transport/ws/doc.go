// Package ws implements transport.Transport over a single websocket to a
// livemux hub.
//
// All channels opened on a Transport share one socket and are told apart by
// a join ref. The socket is dialled lazily on the first Connect and again
// after it is lost. Failed dials back off exponentially.
//
// Status mapping:
//
//	ack from hub            -> SUBSCRIBED
//	error frame             -> CHANNEL_ERROR (CLOSED for CodeClosed)
//	no ack within timeout   -> TIMED_OUT
//	socket lost             -> CLOSED, for every joined channel
//	dial failure            -> CHANNEL_ERROR
package ws
