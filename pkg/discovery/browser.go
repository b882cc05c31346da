package discovery

import (
	"context"
	"fmt"
)

// Browser finds hubs on the local network.
type Browser interface {
	// Browse streams hubs as they are found. The channel is closed when ctx
	// is done.
	Browse(ctx context.Context) (<-chan *HubService, error)

	// Stop ends every browse started by this browser.
	Stop()
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string `yaml:"interface"`
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{}
}

// FindHub returns the first hub matching name, or any hub when name is
// empty. Without a deadline on ctx the search gives up after
// DefaultBrowseTimeout.
func FindHub(ctx context.Context, b Browser, name string) (*HubService, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultBrowseTimeout)
		defer cancel()
	}

	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	for svc := range results {
		if name == "" || svc.InstanceName == name {
			return svc, nil
		}
	}
	if name == "" {
		return nil, ErrNotFound
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}
