// Package discovery implements mDNS/DNS-SD discovery of livemux hubs.
//
// Hubs advertise the _livemux._tcp service. The instance name is the hub
// name; TXT records describe how to reach the websocket endpoint:
//
//	v     protocol version
//	path  websocket path, e.g. /v1/ws
//	auth  "1" when the hub requires a bearer token
//	tls   "1" when the hub is served over TLS
//
// Clients browse for hubs and turn the result into a dial URL with
// HubService.URL.
package discovery
