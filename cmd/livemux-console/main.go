// Command livemux-console is an interactive client for a livemux hub.
//
// It drives a subscription manager over a websocket transport so channel
// sharing, retries and reclamation can be watched from a prompt.
//
// Usage:
//
//	livemux-console [flags]
//
// Flags:
//
//	-config string      YAML configuration file
//	-url string         Hub websocket URL (skips mDNS discovery)
//	-hub string         mDNS instance name of the hub to use
//	-token string       Bearer token for the hub
//	-ca-file string     PEM certificates trusted for wss hubs
//	-owner string       Owner recorded on subscriptions (default hostname)
//	-event-log string   Capture multiplexer events to a CBOR file
//	-log-level string   Log level: debug, info, warn, error (default "warn")
//
// Examples:
//
//	# Find a hub on the local network
//	livemux-console
//
//	# Connect directly and record events for livemux-log
//	livemux-console -url ws://10.0.0.5:7450/v1/ws -event-log session.cbor
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sitetrack/livemux/cmd/livemux-console/interactive"
	"github.com/sitetrack/livemux/pkg/discovery"
	"github.com/sitetrack/livemux/pkg/log"
	"github.com/sitetrack/livemux/pkg/subscription"
	"github.com/sitetrack/livemux/pkg/transport/ws"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	url := flag.String("url", "", "Hub websocket URL (skips mDNS discovery)")
	hubName := flag.String("hub", "", "mDNS instance name of the hub to use")
	token := flag.String("token", "", "Bearer token for the hub")
	caFile := flag.String("ca-file", "", "PEM certificates trusted for wss hubs")
	owner := flag.String("owner", "", "Owner recorded on subscriptions")
	eventLog := flag.String("event-log", "", "Capture multiplexer events to a CBOR file")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *url != "" {
		cfg.Transport.URL = *url
	}
	if *hubName != "" {
		cfg.HubName = *hubName
	}
	if *token != "" {
		cfg.Transport.Token = *token
	}
	if *caFile != "" {
		cfg.Transport.CAFile = *caFile
	}
	if *owner != "" {
		cfg.Owner = *owner
	}
	if *eventLog != "" {
		cfg.EventLog = *eventLog
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shell, err := interactive.New(cfg.Owner)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel, shell.Stdout())
	if err != nil {
		return err
	}

	if cfg.Transport.URL == "" {
		fmt.Fprintln(shell.Stdout(), "Browsing for hubs...")
	}
	browser, err := discovery.NewMDNSBrowser(cfg.Browser)
	if err != nil {
		return err
	}
	cfg.Transport.URL, err = resolveURL(ctx, cfg, browser)
	browser.Stop()
	if err != nil {
		return err
	}

	cfg.Transport.Logger = logger
	tr, err := ws.New(cfg.Transport)
	if err != nil {
		return err
	}
	defer tr.Close()

	var events log.Logger = log.NewSlogAdapter(logger)
	if cfg.EventLog != "" {
		fileLogger, err := log.NewFileLogger(cfg.EventLog, log.WithWriteErrorHandler(func(err error) {
			logger.Warn("event capture stopped", "path", cfg.EventLog, "error", err)
		}))
		if err != nil {
			return fmt.Errorf("failed to open event log: %w", err)
		}
		defer func() {
			fileLogger.Close()
			fmt.Fprintf(shell.Stdout(), "Captured %d event(s) to %s (%d dropped)\n",
				fileLogger.Written(), fileLogger.Path(), fileLogger.Dropped())
		}()
		events = log.NewMultiLogger(fileLogger, events)
	}

	cfg.Manager.Logger = logger
	cfg.Manager.EventLogger = events
	mgr, err := subscription.NewManager(tr, cfg.Manager)
	if err != nil {
		return err
	}

	fmt.Fprintf(shell.Stdout(), "Hub: %s (client %s)\n", cfg.Transport.URL, tr.ClientID())
	shell.Attach(mgr, tr)
	shell.Run(ctx, cancel)

	cleanupCtx, stop := context.WithTimeout(context.Background(), mgr.Config().CleanupTimeout)
	defer stop()
	if err := mgr.Cleanup(cleanupCtx); err != nil {
		logger.Warn("cleanup incomplete", "error", err)
	}
	return nil
}
