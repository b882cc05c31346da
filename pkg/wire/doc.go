// Package wire defines the CBOR frames exchanged between a livemux client
// and a hub over a websocket.
//
// Each websocket binary message carries exactly one Frame. Frames use
// integer map keys for compactness:
//
//	{
//	  1: type,      // uint8 FrameType
//	  2: ref,       // uint32, client-chosen join reference
//	  3: topic,     // string resource key
//	  4: event,     // string event type (event, publish)
//	  5: payload,   // bytes, opaque update body
//	  6: code,      // uint8 ErrorCode (error)
//	  7: reason     // string diagnostic (error)
//	}
//
// # Exchange
//
// The client sends join{ref,topic}; the hub answers ack{ref,topic} or
// error{ref,topic,code}. While joined, the hub sends event{ref,topic,...}
// for every update on the topic. leave{ref,topic} ends the join. Any peer
// may publish{topic,event,payload}. ping and pong keep idle sockets alive.
//
// Refs are scoped to one socket; the hub never interprets them beyond
// routing.
package wire
