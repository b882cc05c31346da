// Command livemux-hub runs a livemux hub.
//
// The hub accepts websocket clients that join topics and fans out updates
// published over the websocket or the HTTP API. It advertises itself over
// mDNS so consoles on the same network can find it.
//
// Usage:
//
//	livemux-hub [flags]
//
// Flags:
//
//	-config string      YAML configuration file
//	-addr string        Listen address (default ":7450")
//	-name string        mDNS instance name
//	-no-mdns            Disable mDNS advertisement
//	-log-level string   Log level: debug, info, warn, error (default "info")
//	-hash-token string  Print the bcrypt hash of a token and exit
//
// Examples:
//
//	# Start a hub on the default port
//	livemux-hub
//
//	# Require a token
//	livemux-hub -hash-token s3cret   # paste the hash into hub.token_hashes
//	livemux-hub -config /etc/livemux/hub.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sitetrack/livemux/pkg/discovery"
	"github.com/sitetrack/livemux/pkg/hub"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	name := flag.String("name", "", "mDNS instance name (overrides config)")
	noMDNS := flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	hashToken := flag.String("hash-token", "", "Print the bcrypt hash of a token and exit")
	flag.Parse()

	if *hashToken != "" {
		h, err := hub.HashToken(*hashToken, 0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(h)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Hub.Address = *addr
	}
	if *name != "" {
		cfg.MDNS.Name = *name
	}
	if *noMDNS {
		cfg.MDNS.Enabled = false
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg.Hub.Logger = logger

	server, err := hub.New(cfg.Hub)
	if err != nil {
		logger.Error("invalid hub configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MDNS.Enabled {
		adv, err := advertise(ctx, cfg)
		if err != nil {
			// The hub is still reachable by address.
			logger.Warn("mDNS advertisement failed", "error", err)
		} else {
			defer adv.Stop()
			logger.Info("advertising", "service", discovery.ServiceType, "name", cfg.instanceName())
		}
	}

	logger.Info("livemux hub starting", "address", cfg.Hub.Address, "auth", len(cfg.Hub.TokenHashes) > 0, "tls", server.TLSEnabled())
	if err := server.ListenAndServe(ctx); err != nil {
		logger.Error("hub stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("hub stopped")
}

func advertise(ctx context.Context, cfg Config) (*discovery.MDNSAdvertiser, error) {
	port, err := listenPort(cfg.Hub.Address)
	if err != nil {
		return nil, err
	}
	adv, err := discovery.NewMDNSAdvertiser(cfg.MDNS.AdvertiserConfig)
	if err != nil {
		return nil, err
	}
	info := &discovery.HubInfo{
		Name: cfg.instanceName(),
		Port: port,
		Path: discovery.DefaultPath,
		Auth: len(cfg.Hub.TokenHashes) > 0,
		TLS:  cfg.Hub.TLS.Enabled(),
	}
	if err := adv.Advertise(ctx, info); err != nil {
		return nil, err
	}
	return adv, nil
}
