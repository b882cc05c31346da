package discovery

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	// ServiceType is the DNS-SD service type advertised by hubs.
	ServiceType = "_livemux._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the default hub port.
	DefaultPort = 7450

	// DefaultPath is the default websocket path.
	DefaultPath = "/v1/ws"

	// ProtocolVersion is the frame protocol version advertised in TXT.
	ProtocolVersion = 1

	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63

	// DefaultBrowseTimeout bounds FindHub when the context has no deadline.
	DefaultBrowseTimeout = 5 * time.Second
)

// TXT record keys.
const (
	TXTKeyVersion = "v"
	TXTKeyPath    = "path"
	TXTKeyAuth    = "auth"
	TXTKeyTLS     = "tls"
)

// Discovery errors.
var (
	ErrNotFound            = errors.New("hub not found")
	ErrMissingRequired     = errors.New("missing required TXT record")
	ErrInvalidVersion      = errors.New("invalid protocol version")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 bytes")
	ErrEmptyInstanceName   = errors.New("instance name is empty")
	ErrNotAdvertising      = errors.New("not advertising")
)

// HubInfo is what a hub advertises about itself.
type HubInfo struct {
	// Name is the instance name, unique on the network.
	Name string

	// Port is the listen port. Zero means DefaultPort.
	Port uint16

	// Path is the websocket path. Empty means DefaultPath.
	Path string

	// Auth reports whether a bearer token is required.
	Auth bool

	// TLS reports whether the hub serves wss.
	TLS bool
}

// HubService is a hub found on the network.
type HubService struct {
	InstanceName string
	Host         string
	Port         uint16
	Addresses    []string

	Version int
	Path    string
	Auth    bool
	TLS     bool
}

// URL returns the websocket URL for the hub, preferring the first
// resolved address over the host name.
func (s *HubService) URL() string {
	host := s.Host
	if len(s.Addresses) > 0 {
		host = s.Addresses[0]
	}
	scheme := "ws"
	if s.TLS {
		scheme = "wss"
	}
	path := s.Path
	if path == "" {
		path = DefaultPath
	}
	return fmt.Sprintf("%s://%s%s", scheme, net.JoinHostPort(trimDot(host), strconv.Itoa(int(s.Port))), path)
}

func trimDot(host string) string {
	if n := len(host); n > 0 && host[n-1] == '.' {
		return host[:n-1]
	}
	return host
}
