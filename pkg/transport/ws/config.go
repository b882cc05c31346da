package ws

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/clock"

	"github.com/sitetrack/livemux/pkg/connection"
)

// Defaults.
const (
	DefaultJoinTimeout  = 5 * time.Second
	DefaultWriteTimeout = 5 * time.Second
	DefaultPingInterval = 30 * time.Second

	// DefaultPongWait is how long the socket may stay silent before it is
	// considered lost.
	DefaultPongWait = 3*DefaultPingInterval + DefaultWriteTimeout
)

// Configuration errors.
var (
	ErrMissingURL    = errors.New("ws: hub URL is required")
	ErrInvalidCAFile = errors.New("ws: no certificates in CA file")
)

// Config configures a websocket Transport.
type Config struct {
	// URL is the hub websocket endpoint, e.g. ws://localhost:7450/v1/ws.
	URL string `yaml:"url"`

	// Token is sent as a bearer token when dialling.
	Token string `yaml:"token"`

	// JoinTimeout bounds the wait for a join ack.
	JoinTimeout time.Duration `yaml:"join_timeout"`

	// WriteTimeout bounds every socket write.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// PingInterval is the keep-alive ping period.
	PingInterval time.Duration `yaml:"ping_interval"`

	// PongWait is the read deadline extended by every pong or frame.
	PongWait time.Duration `yaml:"pong_wait"`

	// CAFile is a PEM bundle trusted for wss hubs in addition to the
	// system roots.
	CAFile string `yaml:"ca_file"`

	// TLS overrides the client TLS configuration for wss URLs.
	TLS *tls.Config `yaml:"-"`

	// DialBackoff spaces out redials after failures.
	DialBackoff connection.BackoffConfig `yaml:"dial_backoff"`

	// Dialer overrides the websocket dialer.
	Dialer *websocket.Dialer `yaml:"-"`

	// Clock drives join timeouts, pings and dial backoff. Nil uses the wall clock.
	Clock clock.Clock `yaml:"-"`

	// Logger receives operational logs. Nil disables logging.
	Logger *slog.Logger `yaml:"-"`
}

func (c Config) withDefaults() Config {
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = DefaultJoinTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.PongWait <= 0 {
		c.PongWait = 3*c.PingInterval + c.WriteTimeout
	}
	if c.DialBackoff == (connection.BackoffConfig{}) {
		c.DialBackoff = connection.BackoffConfig{
			Initial:    500 * time.Millisecond,
			Max:        30 * time.Second,
			Multiplier: 2,
			Jitter:     0.1,
		}
	}
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
	if c.TLS != nil {
		d := *c.Dialer
		d.TLSClientConfig = c.TLS
		c.Dialer = &d
	}
	if c.Clock == nil {
		c.Clock = clock.WallClock
	}
	return c
}

// NewClientTLSConfig creates the TLS configuration used to dial a wss hub.
// A nil roots pool uses the system roots.
func NewClientTLSConfig(roots *x509.CertPool) *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS13,
		RootCAs:    roots,
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},
	}
}

// loadCAFile builds a TLS configuration trusting the certificates in path
// on top of the system roots.
func loadCAFile(path string) (*tls.Config, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	roots, err := x509.SystemCertPool()
	if err != nil || roots == nil {
		roots = x509.NewCertPool()
	}
	if !roots.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCAFile, path)
	}
	return NewClientTLSConfig(roots), nil
}
