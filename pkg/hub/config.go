package hub

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/juju/clock"
)

// Defaults.
const (
	DefaultAddress      = ":7450"
	DefaultPingInterval = 30 * time.Second
	DefaultWriteTimeout = 5 * time.Second
	DefaultSendQueue    = 256
	DefaultMaxJoins     = 1024
)

// Configuration errors.
var (
	ErrInvalidSendQueue = errors.New("send queue must be positive")
	ErrInvalidMaxJoins  = errors.New("max joins must be positive")
	ErrInvalidTokenHash = errors.New("token hash is not a bcrypt hash")
)

// Config configures a Server.
type Config struct {
	// Address is the listen address used by ListenAndServe.
	Address string `yaml:"address"`

	// TokenHashes are bcrypt hashes of accepted bearer tokens.
	// Empty disables authentication.
	TokenHashes []string `yaml:"token_hashes"`

	// TopicPrefixes restricts which topics may be joined or published.
	// Empty allows every topic.
	TopicPrefixes []string `yaml:"topic_prefixes"`

	// PingInterval is the keep-alive ping period.
	PingInterval time.Duration `yaml:"ping_interval"`

	// PongWait is how long a session may stay silent before it is dropped.
	// Zero derives it from PingInterval.
	PongWait time.Duration `yaml:"pong_wait"`

	// WriteTimeout bounds every socket write.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// SendQueue is the per-session outbound frame buffer. A session whose
	// buffer overflows is disconnected.
	SendQueue int `yaml:"send_queue"`

	// MaxJoins caps concurrent joins per session.
	MaxJoins int `yaml:"max_joins"`

	// TLS enables wss when a certificate is configured.
	TLS TLSConfig `yaml:"tls"`

	// Clock drives keep-alive pings and uptime. Nil uses the wall clock.
	Clock clock.Clock `yaml:"-"`

	// Logger receives operational logs. Nil disables logging.
	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Address:      DefaultAddress,
		PingInterval: DefaultPingInterval,
		WriteTimeout: DefaultWriteTimeout,
		SendQueue:    DefaultSendQueue,
		MaxJoins:     DefaultMaxJoins,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.SendQueue < 0 {
		return ErrInvalidSendQueue
	}
	if c.MaxJoins < 0 {
		return ErrInvalidMaxJoins
	}
	for _, h := range c.TokenHashes {
		if !strings.HasPrefix(h, "$2") {
			return ErrInvalidTokenHash
		}
	}
	return c.TLS.validate()
}

func (c Config) withDefaults() Config {
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.PongWait <= 0 {
		c.PongWait = 3*c.PingInterval + c.WriteTimeout
	}
	if c.SendQueue == 0 {
		c.SendQueue = DefaultSendQueue
	}
	if c.MaxJoins == 0 {
		c.MaxJoins = DefaultMaxJoins
	}
	if c.Clock == nil {
		c.Clock = clock.WallClock
	}
	return c
}

// allows reports whether topic passes the prefix restriction.
func (c Config) allows(topic string) bool {
	if len(c.TopicPrefixes) == 0 {
		return true
	}
	for _, p := range c.TopicPrefixes {
		if strings.HasPrefix(topic, p) {
			return true
		}
	}
	return false
}
