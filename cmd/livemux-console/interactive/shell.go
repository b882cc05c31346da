// Package interactive provides the interactive command-line interface
// for the livemux console.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/sitetrack/livemux/pkg/subscription"
	"github.com/sitetrack/livemux/pkg/transport"
)

// maxPayloadEcho limits how much of an event payload is printed.
const maxPayloadEcho = 120

// Publisher sends updates to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic, eventType string, payload []byte) error
}

// consoleSub is one subscription made from the prompt.
type consoleSub struct {
	id          int
	key         string
	filter      string
	unsubscribe subscription.Unsubscribe
}

// Shell handles interactive mode for livemux-console.
type Shell struct {
	mgr   *subscription.Manager
	pub   Publisher
	owner string
	rl    *readline.Instance

	outMu sync.Mutex
	out   io.Writer

	mu     sync.Mutex
	nextID int
	subs   map[int]*consoleSub
}

// New creates a shell reading commands through readline. Subscriptions are
// made on behalf of owner.
func New(owner string) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "livemux> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	s := newShell(owner, rl.Stdout())
	s.rl = rl
	return s, nil
}

func newShell(owner string, out io.Writer) *Shell {
	if out == nil {
		out = os.Stdout
	}
	return &Shell{
		owner: owner,
		out:   out,
		subs:  make(map[int]*consoleSub),
	}
}

// Attach sets the manager driven by the shell and the publisher used by
// the publish command. pub may be nil.
func (s *Shell) Attach(mgr *subscription.Manager, pub Publisher) {
	s.mgr = mgr
	s.pub = pub
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (s *Shell) Stdout() io.Writer {
	if s.rl != nil {
		return s.rl.Stdout()
	}
	return s.out
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	if s.rl == nil {
		return
	}
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			s.printf("Exiting...\n")
			cancel()
			return
		}

		if s.Execute(ctx, line) {
			cancel()
			return
		}
	}
}

// Execute runs one command line and reports whether the shell should exit.
func (s *Shell) Execute(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()

	case "sub", "subscribe":
		s.cmdSubscribe(args)

	case "unsub", "unsubscribe":
		s.cmdUnsubscribe(args)

	case "subs", "ls":
		s.cmdList()

	case "stats":
		s.cmdStats()

	case "info", "i":
		s.cmdInfo(args)

	case "cleanup":
		s.cmdCleanup(ctx)

	case "publish", "pub":
		s.cmdPublish(ctx, input, args)

	case "quit", "exit", "q":
		s.printf("Exiting...\n")
		return true

	default:
		s.printf("Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (s *Shell) printHelp() {
	s.printf(`
livemux Console Commands:
  Subscriptions:
    sub <key> [type]                - Subscribe to a resource key, optionally one event type
    unsub <id>|<key>                - Remove one subscription or all on a key
    subs                            - List subscriptions made here

  Diagnostics:
    stats                           - Show registry counters
    info [key]                      - Show channel records
    cleanup                         - Reclaim every channel

  Hub:
    publish <topic> <type> [body]   - Publish an update

  General:
    help                            - Show this help
    quit                            - Exit console
`)
}

// cmdSubscribe handles the sub command.
func (s *Shell) cmdSubscribe(args []string) {
	if !s.ready() {
		return
	}
	if len(args) < 1 || len(args) > 2 {
		s.printf("Usage: sub <key> [type]\n")
		return
	}
	key := args[0]
	filter := transport.AllEvents
	if len(args) == 2 {
		filter = transport.EventFilter{Type: args[1]}
	}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.mu.Unlock()

	label := fmt.Sprintf("#%d %s", id, key)
	unsubscribe := s.mgr.Subscribe(key,
		func(ev transport.Event) {
			s.printf("[%s] %s %s\n", label, ev.Type, formatPayload(ev.Payload))
		},
		subscription.WithOwner(s.owner),
		subscription.WithToken("console-"+strconv.Itoa(id)),
		subscription.WithEventFilter(filter),
		subscription.WithStateHandler(func(_ string, state subscription.State, err error) {
			if err != nil {
				s.printf("[%s] %s: %v\n", label, state, err)
				return
			}
			s.printf("[%s] %s\n", label, state)
		}),
	)

	s.mu.Lock()
	s.subs[id] = &consoleSub{id: id, key: key, filter: filter.Type, unsubscribe: unsubscribe}
	s.mu.Unlock()

	s.printf("Subscription #%d on %s\n", id, key)
}

// cmdUnsubscribe handles the unsub command.
func (s *Shell) cmdUnsubscribe(args []string) {
	if !s.ready() {
		return
	}
	if len(args) != 1 {
		s.printf("Usage: unsub <id>|<key>\n")
		return
	}

	var removed []*consoleSub
	s.mu.Lock()
	if id, err := strconv.Atoi(strings.TrimPrefix(args[0], "#")); err == nil {
		if sub, ok := s.subs[id]; ok {
			removed = append(removed, sub)
			delete(s.subs, id)
		}
	} else {
		for id, sub := range s.subs {
			if sub.key == args[0] {
				removed = append(removed, sub)
				delete(s.subs, id)
			}
		}
	}
	s.mu.Unlock()

	if len(removed) == 0 {
		s.printf("No subscription matches %s\n", args[0])
		return
	}
	for _, sub := range removed {
		sub.unsubscribe()
	}
	s.printf("Removed %d subscription(s)\n", len(removed))
}

// cmdList handles the subs command.
func (s *Shell) cmdList() {
	s.mu.Lock()
	subs := make([]*consoleSub, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	if len(subs) == 0 {
		s.printf("No subscriptions\n")
		return
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].id < subs[j].id })

	s.printf("\nSubscriptions (%d):\n", len(subs))
	for _, sub := range subs {
		filter := sub.filter
		if filter == "" {
			filter = "*"
		}
		s.printf("  #%-4d %-32s %s\n", sub.id, sub.key, filter)
	}
}

// cmdStats handles the stats command.
func (s *Shell) cmdStats() {
	if !s.ready() {
		return
	}
	stats := s.mgr.Stats()
	s.printf("\nRegistry:\n")
	s.printf("  Channels:    %d\n", stats.TotalChannels)
	s.printf("  Subscribed:  %d\n", stats.ActiveSubscriptions)
	s.printf("  Errored:     %d\n", stats.ErroredSubscriptions)
	s.printf("  Callbacks:   %d\n", stats.TotalCallbacks)
	s.printf("  Retrying:    %d\n", stats.PendingRetries)
	s.printf("  Draining:    %d\n", stats.PendingCleanups)
	s.printf("  Uptime:      %s\n", stats.Uptime.Truncate(time.Second))
}

// cmdInfo handles the info command.
func (s *Shell) cmdInfo(args []string) {
	if !s.ready() {
		return
	}
	if len(args) == 1 {
		info, ok := s.mgr.Info(args[0])
		if !ok {
			s.printf("No channel for %s\n", args[0])
			return
		}
		s.printInfo(info)
		return
	}

	all := s.mgr.InfoAll()
	if len(all) == 0 {
		s.printf("No channels\n")
		return
	}
	keys := make([]string, 0, len(all))
	for key := range all {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		s.printInfo(all[key])
	}
}

func (s *Shell) printInfo(info subscription.ChannelInfo) {
	s.printf("\n%s\n", info.Key)
	s.printf("  State:      %s\n", info.State)
	if info.ChannelName != "" {
		s.printf("  Channel:    %s\n", info.ChannelName)
	}
	if info.OwnerID != "" {
		s.printf("  Owner:      %s\n", info.OwnerID)
	}
	s.printf("  Callbacks:  %d\n", info.CallbackCount)
	s.printf("  Retries:    %d/%d\n", info.RetryCount, info.MaxRetries)
	s.printf("  Age:        %s\n", info.Age.Truncate(time.Millisecond))
	if info.State == subscription.StateSubscribed {
		s.printf("  Subscribed: %s\n", info.SubscribedFor.Truncate(time.Millisecond))
	}
	if info.LastError != "" {
		s.printf("  Last error: %s\n", info.LastError)
	}
	if info.RetryPending {
		s.printf("  Next retry: %s\n", info.NextRetryIn.Truncate(time.Millisecond))
	}
	if info.CleanupPending {
		s.printf("  Cleanup in: %s\n", info.CleanupIn.Truncate(time.Millisecond))
	}
}

// cmdCleanup handles the cleanup command.
func (s *Shell) cmdCleanup(ctx context.Context) {
	if !s.ready() {
		return
	}
	channels := s.mgr.Stats().TotalChannels

	ctx, cancel := context.WithTimeout(ctx, s.mgr.Config().CleanupTimeout)
	defer cancel()
	if err := s.mgr.Cleanup(ctx); err != nil {
		s.printf("Cleanup error: %v\n", err)
		return
	}

	s.mu.Lock()
	clear(s.subs)
	s.mu.Unlock()

	s.printf("Reclaimed %d channel(s)\n", channels)
}

// cmdPublish handles the publish command. The body is the rest of the line
// after the event type, spaces included.
func (s *Shell) cmdPublish(ctx context.Context, input string, args []string) {
	if s.pub == nil {
		s.printf("Publishing is not available\n")
		return
	}
	if len(args) < 2 {
		s.printf("Usage: publish <topic> <type> [body]\n")
		return
	}
	topic, eventType := args[0], args[1]
	body := restAfter(input, 3)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.pub.Publish(ctx, topic, eventType, []byte(body)); err != nil {
		s.printf("Publish error: %v\n", err)
		return
	}
	s.printf("Published %s to %s (%d bytes)\n", eventType, topic, len(body))
}

func (s *Shell) ready() bool {
	if s.mgr == nil {
		s.printf("Not connected\n")
		return false
	}
	return true
}

// printf writes to the shell output. Event handlers call it from transport
// goroutines.
func (s *Shell) printf(format string, args ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

// restAfter returns input with its first n fields removed.
func restAfter(input string, n int) string {
	rest := strings.TrimSpace(input)
	for i := 0; i < n; i++ {
		idx := strings.IndexAny(rest, " \t")
		if idx < 0 {
			return ""
		}
		rest = strings.TrimLeft(rest[idx:], " \t")
	}
	return rest
}

func formatPayload(payload []byte) string {
	if len(payload) == 0 {
		return "-"
	}
	if len(payload) > maxPayloadEcho {
		return string(payload[:maxPayloadEcho]) + "..."
	}
	return string(payload)
}
