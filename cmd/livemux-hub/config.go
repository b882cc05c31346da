package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sitetrack/livemux/pkg/discovery"
	"github.com/sitetrack/livemux/pkg/hub"
)

// Config is the hub binary configuration. It is read from an optional YAML
// file and then overridden by flags.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Hub hub.Config `yaml:"hub"`

	MDNS MDNSConfig `yaml:"mdns"`
}

// MDNSConfig controls the DNS-SD advertisement.
type MDNSConfig struct {
	Enabled bool `yaml:"enabled"`

	// Name is the advertised instance name. Empty uses livemux-<hostname>.
	Name string `yaml:"name"`

	discovery.AdvertiserConfig `yaml:",inline"`
}

// DefaultConfig returns the configuration used without a file.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Hub:      hub.DefaultConfig(),
		MDNS: MDNSConfig{
			Enabled:          true,
			AdvertiserConfig: discovery.DefaultAdvertiserConfig(),
		},
	}
}

// loadConfig reads path over the defaults. An empty path returns the
// defaults.
func loadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Hub.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid hub config: %w", err)
	}
	return cfg, nil
}

// instanceName returns the mDNS instance name.
func (c Config) instanceName() string {
	if c.MDNS.Name != "" {
		return c.MDNS.Name
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "hub"
	}
	name := "livemux-" + strings.SplitN(host, ".", 2)[0]
	if len(name) > discovery.MaxInstanceNameLen {
		name = name[:discovery.MaxInstanceNameLen]
	}
	return name
}

// listenPort extracts the port from a listen address such as ":7450".
func listenPort(addr string) (uint16, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil || port == 0 {
		return 0, fmt.Errorf("invalid port in %q", addr)
	}
	return uint16(port), nil
}

// newLogger builds the process logger for a level name.
func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})), nil
}
