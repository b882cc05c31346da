package subscription

import (
	"errors"
	"log/slog"
	"time"

	"github.com/juju/clock"

	"github.com/sitetrack/livemux/pkg/connection"
	"github.com/sitetrack/livemux/pkg/debounce"
	"github.com/sitetrack/livemux/pkg/log"
)

// Default manager settings.
const (
	DefaultDebounceDelay  = debounce.DefaultDelay
	DefaultCleanupTimeout = 30 * time.Second
	DefaultMaxRetries     = 5
)

// Config errors.
var (
	ErrInvalidDebounce   = errors.New("debounce delay must be positive")
	ErrInvalidTimeout    = errors.New("cleanup timeout must be positive")
	ErrInvalidMaxRetries = errors.New("max retries must not be negative")
	ErrInvalidBackoff    = errors.New("invalid backoff configuration")
)

// Config holds manager configuration.
type Config struct {
	// DebounceDelay defers reclamation after the last subscriber leaves.
	DebounceDelay time.Duration `yaml:"debounce_delay"`

	// CleanupTimeout is the sweep interval and the time a record may stay
	// in ERROR before it is swept.
	CleanupTimeout time.Duration `yaml:"cleanup_timeout"`

	// MaxRetries is the default retry limit for new records.
	MaxRetries int `yaml:"max_retries"`

	// Backoff controls retry delays.
	Backoff connection.BackoffConfig `yaml:"backoff"`

	// LogDeliveries captures a DELIVERY event for every update. Fan-outs
	// where a handler panicked are always captured.
	LogDeliveries bool `yaml:"log_deliveries"`

	// Logger receives operational logs. Nil disables logging.
	Logger *slog.Logger `yaml:"-"`

	// EventLogger receives structured multiplexer events. Nil disables capture.
	EventLogger log.Logger `yaml:"-"`

	// Clock drives every timer. Nil uses the wall clock.
	Clock clock.Clock `yaml:"-"`
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{
		DebounceDelay:  DefaultDebounceDelay,
		CleanupTimeout: DefaultCleanupTimeout,
		MaxRetries:     DefaultMaxRetries,
		Backoff:        connection.DefaultBackoffConfig(),
	}
}

// Validate checks the configuration. Zero values are accepted and replaced
// with defaults by NewManager.
func (c Config) Validate() error {
	if c.DebounceDelay < 0 {
		return ErrInvalidDebounce
	}
	if c.CleanupTimeout < 0 {
		return ErrInvalidTimeout
	}
	if c.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	if c.Backoff.Initial < 0 || c.Backoff.Max < 0 || c.Backoff.Multiplier < 0 {
		return ErrInvalidBackoff
	}
	if c.Backoff.Jitter < 0 || c.Backoff.Jitter > 1 {
		return ErrInvalidBackoff
	}
	if c.Backoff.Initial > 0 && c.Backoff.Max > 0 && c.Backoff.Max < c.Backoff.Initial {
		return ErrInvalidBackoff
	}
	return nil
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.DebounceDelay == 0 {
		c.DebounceDelay = def.DebounceDelay
	}
	if c.CleanupTimeout == 0 {
		c.CleanupTimeout = def.CleanupTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.Backoff.Initial == 0 {
		c.Backoff.Initial = def.Backoff.Initial
	}
	if c.Backoff.Max == 0 {
		c.Backoff.Max = def.Backoff.Max
	}
	if c.Backoff.Multiplier == 0 {
		c.Backoff.Multiplier = def.Backoff.Multiplier
	}
	if c.EventLogger == nil {
		c.EventLogger = log.NoopLogger{}
	}
	if c.Clock == nil {
		c.Clock = clock.WallClock
	}
	return c
}
