package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sitetrack/livemux/pkg/discovery"
	"github.com/sitetrack/livemux/pkg/subscription"
	"github.com/sitetrack/livemux/pkg/transport/ws"
)

// Config is the console configuration. It is read from an optional YAML
// file and then overridden by flags.
type Config struct {
	LogLevel string `yaml:"log_level"`

	// Owner is the principal subscriptions are made for.
	Owner string `yaml:"owner"`

	// EventLog is a file receiving CBOR multiplexer events. Empty disables
	// capture.
	EventLog string `yaml:"event_log"`

	// HubName selects a hub by mDNS instance name when Transport.URL is
	// empty. Empty accepts the first hub found.
	HubName string `yaml:"hub_name"`

	Browser discovery.BrowserConfig `yaml:"browser"`

	Transport ws.Config `yaml:"transport"`

	Manager subscription.Config `yaml:"manager"`
}

// DefaultConfig returns the configuration used without a file.
func DefaultConfig() Config {
	owner, err := os.Hostname()
	if err != nil || owner == "" {
		owner = "console"
	}
	return Config{
		LogLevel: "warn",
		Owner:    owner,
		Browser:  discovery.DefaultBrowserConfig(),
		Manager:  subscription.DefaultConfig(),
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
	if err := cfg.Manager.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid manager config: %w", err)
	}
	return cfg, nil
}

// resolveURL returns the configured hub URL, or browses for a hub when none
// is set.
func resolveURL(ctx context.Context, cfg Config, b discovery.Browser) (string, error) {
	if cfg.Transport.URL != "" {
		return cfg.Transport.URL, nil
	}
	svc, err := discovery.FindHub(ctx, b, cfg.HubName)
	if err != nil {
		return "", fmt.Errorf("hub discovery: %w", err)
	}
	return svc.URL(), nil
}

// newLogger builds the process logger for a level name. Output goes to w so
// that log lines do not garble the prompt.
func newLogger(level string, w io.Writer) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}
