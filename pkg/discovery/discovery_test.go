package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubServiceURL(t *testing.T) {
	tests := []struct {
		name string
		svc  HubService
		want string
	}{
		{"address preferred", HubService{Host: "hub.local.", Port: 7450, Addresses: []string{"192.168.1.4"}, Path: "/v1/ws"}, "ws://192.168.1.4:7450/v1/ws"},
		{"host fallback", HubService{Host: "hub.local.", Port: 7450, Path: "/v1/ws"}, "ws://hub.local:7450/v1/ws"},
		{"ipv6", HubService{Port: 80, Addresses: []string{"fe80::1"}}, "ws://[fe80::1]:80/v1/ws"},
		{"tls", HubService{Host: "hub", Port: 443, TLS: true, Path: "/live"}, "wss://hub:443/live"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.svc.URL())
		})
	}
}

func TestHubFromRecord(t *testing.T) {
	svc := hubFromRecord("lab", "lab.local.", 7450, []string{"v=1", "path=/v1/ws", "auth=1"}, []string{"10.0.0.2"})
	require.NotNil(t, svc)
	assert.Equal(t, "lab", svc.InstanceName)
	assert.Equal(t, uint16(7450), svc.Port)
	assert.True(t, svc.Auth)
	assert.Equal(t, "ws://10.0.0.2:7450/v1/ws", svc.URL())

	assert.Nil(t, hubFromRecord("other", "x.local.", 1, []string{"foo=bar"}, nil))
}

func TestAddressMerging(t *testing.T) {
	addrs := mergeAddresses([]string{"10.0.0.1"}, []string{"10.0.0.1", "fe80::1"})
	assert.Equal(t, []string{"10.0.0.1", "fe80::1"}, addrs)

	addrs = removeAddresses(addrs, []string{"10.0.0.1"})
	assert.Equal(t, []string{"fe80::1"}, addrs)
	assert.Empty(t, removeAddresses(addrs, []string{"fe80::1"}))
}

type staticBrowser struct {
	hubs []*HubService
}

func (b *staticBrowser) Browse(ctx context.Context) (<-chan *HubService, error) {
	out := make(chan *HubService)
	go func() {
		defer close(out)
		for _, h := range b.hubs {
			select {
			case out <- h:
			case <-ctx.Done():
				return
			}
		}
		<-ctx.Done()
	}()
	return out, nil
}

func (b *staticBrowser) Stop() {}

func TestFindHub(t *testing.T) {
	b := &staticBrowser{hubs: []*HubService{
		{InstanceName: "a", Port: 1},
		{InstanceName: "b", Port: 2},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	svc, err := FindHub(ctx, b, "")
	require.NoError(t, err)
	assert.Equal(t, "a", svc.InstanceName)

	svc, err = FindHub(ctx, b, "b")
	require.NoError(t, err)
	assert.Equal(t, uint16(2), svc.Port)

	short, cancelShort := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancelShort()
	_, err = FindHub(short, b, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdvertiserRequiresName(t *testing.T) {
	adv, err := NewMDNSAdvertiser(DefaultAdvertiserConfig())
	require.NoError(t, err)
	defer adv.Stop()

	assert.ErrorIs(t, adv.Advertise(context.Background(), &HubInfo{}), ErrEmptyInstanceName)
	assert.ErrorIs(t, adv.Update(&HubInfo{Name: "x"}), ErrNotAdvertising)
	adv.Stop()
}

// Uses the real network stack.
func TestMDNSAdvertiseAndBrowse(t *testing.T) {
	if testing.Short() {
		t.Skip("mDNS test skipped in short mode")
	}

	adv, err := NewMDNSAdvertiser(DefaultAdvertiserConfig())
	require.NoError(t, err)
	defer adv.Stop()

	info := &HubInfo{Name: "livemux-test-hub", Port: 17450, Auth: true}
	if err := adv.Advertise(context.Background(), info); err != nil {
		t.Skipf("multicast unavailable: %v", err)
	}

	browser, err := NewMDNSBrowser(DefaultBrowserConfig())
	require.NoError(t, err)
	defer browser.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	svc, err := FindHub(ctx, browser, info.Name)
	if err != nil {
		t.Skipf("hub not seen on this network: %v", err)
	}
	assert.Equal(t, uint16(17450), svc.Port)
	assert.True(t, svc.Auth)
	assert.Equal(t, DefaultPath, svc.Path)
}
