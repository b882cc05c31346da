package discovery

import (
	"context"
	"time"
)

// Advertiser announces a hub on the local network.
type Advertiser interface {
	// Advertise starts advertising the hub. A running advertisement is
	// replaced.
	Advertise(ctx context.Context, info *HubInfo) error

	// Update replaces the TXT records of the running advertisement.
	Update(info *HubInfo) error

	// Stop withdraws the advertisement. Stopping twice is a no-op.
	Stop()
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string `yaml:"interface"`

	// TTL is the DNS record TTL.
	// Default: 120 seconds.
	TTL time.Duration `yaml:"ttl"`
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{
		Interface: "",
		TTL:       120 * time.Second,
	}
}
