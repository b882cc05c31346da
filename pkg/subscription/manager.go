package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"
	"golang.org/x/sync/errgroup"

	"github.com/sitetrack/livemux/pkg/connection"
	"github.com/sitetrack/livemux/pkg/debounce"
	"github.com/sitetrack/livemux/pkg/log"
	"github.com/sitetrack/livemux/pkg/transport"
)

// ErrNilTransport is returned by NewManager without a transport.
var ErrNilTransport = errors.New("transport is required")

// errNoChannel is reported when a transport returns neither channel nor error.
var errNoChannel = errors.New("transport returned no channel")

// cleanupPrefix prefixes debounce keys for deferred reclamation.
const cleanupPrefix = "cleanup_"

func cleanupKey(key string) string {
	return cleanupPrefix + key
}

// Manager multiplexes subscriptions onto transport channels, one record and
// at most one live channel per resource key.
type Manager struct {
	mu sync.Mutex

	config    Config
	transport transport.Transport
	clock     clock.Clock
	logger    *slog.Logger
	events    log.Logger

	debounce *debounce.Scheduler
	retries  *connection.RetryScheduler

	// sweeper is the pending sweep timer, nil while the registry is empty.
	sweeper  clock.Timer
	sweepSeq uint64

	records   map[string]*record
	nextGen   uint64
	startedAt time.Time

	// busy tracks keys with an Open or Release in flight. An attempt that
	// wants to open while its key is busy waits until the work drains, so a
	// key never has two live transport channels.
	busy map[string]*inflight
}

// inflight counts outstanding transport calls for one key and remembers the
// attempt to open once they are done.
type inflight struct {
	count  int
	reopen uint64
}

// NewManager creates a manager that opens channels on t.
// Zero config fields take their defaults.
func NewManager(t transport.Transport, cfg Config) (*Manager, error) {
	if t == nil {
		return nil, ErrNilTransport
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg = cfg.withDefaults()

	return &Manager{
		config:    cfg,
		transport: t,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		events:    cfg.EventLogger,
		debounce:  debounce.NewScheduler(cfg.Clock, cfg.DebounceDelay),
		retries:   connection.NewRetryScheduler(cfg.Clock, cfg.Backoff),
		records:   make(map[string]*record),
		busy:      make(map[string]*inflight),
		startedAt: cfg.Clock.Now(),
	}, nil
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.config
}

// Subscribe attaches handler to the record for key, creating the record and
// opening a transport channel if none exists. Connection failures are
// reported through WithStateHandler, never returned.
//
// An empty key or nil handler is logged and yields a no-op Unsubscribe.
func (m *Manager) Subscribe(key string, handler Handler, opts ...Option) Unsubscribe {
	if key == "" || handler == nil {
		m.warnLog("subscribe ignored", "key", key, "nilHandler", handler == nil)
		return func() {}
	}

	sub := newSubscriber(handler, m.config.MaxRetries, opts)
	token := sub.token
	unsubscribe := func() { m.Unsubscribe(key, token) }

	m.mu.Lock()
	rec, exists := m.records[key]
	if !exists {
		rec = newRecord(key, sub.owner, sub.maxRetries, m.clock.Now())
		rec.attach(sub)
		rec.gen = m.newGen()
		m.records[key] = rec
		m.ensureSweeper()
		m.logTransition(rec, StateIdle, "subscribe")
		gen := rec.gen
		m.mu.Unlock()

		m.debugLog("record created", "key", key, "token", token)
		m.open(key, gen)
		return unsubscribe
	}

	m.debounce.Cancel(cleanupKey(key))
	replaced := rec.attach(sub)

	var notices []notice
	var retryGen uint64
	switch {
	case rec.isSubscribing:
		// Notified when the in-flight attempt resolves.
	case rec.state == StateSubscribed:
		notices = noticesFor([]*subscriber{sub}, key, StateSubscribed, nil)
	case rec.state == StateError && rec.canRetry():
		if m.retries.Cancel(key) {
			retryGen = rec.gen
		}
	}
	state := rec.state
	m.mu.Unlock()

	m.debugLog("subscriber attached", "key", key, "token", token, "replaced", replaced, "state", state)
	m.notify(notices)
	if retryGen != 0 {
		m.retry(key, retryGen)
	}
	return unsubscribe
}

// Unsubscribe detaches the subscriber identified by token. Unknown keys and
// tokens are ignored. When the last subscriber leaves, reclamation is
// deferred by the debounce delay.
func (m *Manager) Unsubscribe(key, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key]
	if !ok || !rec.detach(token, m.clock.Now()) {
		return
	}
	m.debugLog("subscriber detached", "key", key, "token", token, "remaining", len(rec.subscribers))

	if len(rec.subscribers) == 0 {
		m.debounce.Schedule(cleanupKey(key), func() {
			m.reclaimIdle(key, rec)
		})
	}
}

// Cleanup reclaims every record, cancels all pending timers and waits for
// all channel releases. Release failures are logged, not returned; an error
// is returned only if ctx ends first.
func (m *Manager) Cleanup(ctx context.Context) error {
	m.mu.Lock()
	m.stopSweeper()
	retries := m.retries.CancelAll()
	debounced := m.debounce.CancelAll()

	var reclaimed []reclaimedChannel
	var notices []notice
	for _, rec := range m.records {
		r, n := m.reclaim(rec, log.ReclaimForced)
		if r.ch != nil {
			reclaimed = append(reclaimed, r)
		}
		notices = append(notices, n...)
	}
	m.mu.Unlock()

	m.debugLog("cleanup", "channels", len(reclaimed), "retries", retries, "debounced", debounced)

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range reclaimed {
		g.Go(func() error {
			m.releaseChannel(gctx, r)
			return ctx.Err()
		})
	}
	err := g.Wait()
	m.notify(notices)
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	return nil
}

// open opens and connects a transport channel for attempt gen.
func (m *Manager) open(key string, gen uint64) {
	m.mu.Lock()
	rec, ok := m.current(key, gen)
	if !ok {
		m.mu.Unlock()
		return
	}
	if work, ok := m.busy[key]; ok {
		work.reopen = gen
		pending := work.count
		m.mu.Unlock()
		m.debugLog("open deferred", "key", key, "inflight", pending)
		return
	}
	name := rec.channelName(m.clock.Now())
	work := m.markBusy(key)
	m.mu.Unlock()

	ch, err := m.transport.Open(name, key)
	if err == nil && ch == nil {
		err = errNoChannel
	}

	m.mu.Lock()
	rec, ok = m.current(key, gen)
	if !ok {
		m.mu.Unlock()
		// Reclaimed while opening; the channel is an orphan.
		orphan := reclaimedChannel{key: key, work: work}
		if err == nil {
			orphan.ch = ch
		}
		m.releaseChannel(context.Background(), orphan)
		return
	}
	reopen := m.unmarkBusy(key, work)
	if err != nil {
		notices := m.fail(rec, fmt.Errorf("%w: %w", ErrSetup, err))
		m.mu.Unlock()
		m.notify(notices)
		m.reopen(key, reopen)
		return
	}
	rec.channel = ch
	m.mu.Unlock()
	m.reopen(key, reopen)

	m.debugLog("channel opened", "key", key, "channel", name)
	ch.OnEvent(transport.AllEvents, func(ev transport.Event) {
		m.deliver(key, gen, ev)
	}).Connect(func(status transport.Status, err error) {
		m.handleStatus(key, gen, status, err)
	})
}

// handleStatus drives the state machine from a transport status report.
func (m *Manager) handleStatus(key string, gen uint64, status transport.Status, err error) {
	m.mu.Lock()
	rec, ok := m.current(key, gen)
	if !ok {
		m.mu.Unlock()
		m.debugLog("stale status dropped", "key", key, "status", status)
		return
	}

	var notices []notice
	switch status {
	case transport.StatusSubscribed:
		notices = m.subscribed(rec)
	case transport.StatusChannelError:
		notices = m.fail(rec, wrapCause(ErrConnection, err))
	case transport.StatusTimedOut:
		notices = m.fail(rec, wrapCause(ErrTimedOut, err))
	case transport.StatusClosed:
		notices = m.fail(rec, wrapCause(ErrUnexpectedClosure, err))
	default:
		notices = m.fail(rec, wrapCause(ErrConnection, fmt.Errorf("unknown status %d", status)))
	}
	m.mu.Unlock()

	m.notify(notices)
}

// subscribed handles CONNECTING -> SUBSCRIBED. Caller holds m.mu.
func (m *Manager) subscribed(rec *record) []notice {
	if rec.state == StateSubscribed {
		return nil
	}
	now := m.clock.Now()
	old := rec.setState(StateSubscribed, now)
	rec.isSubscribing = false
	rec.retryCount = 0
	rec.lastError = nil
	rec.subscribedAt = now

	m.logTransition(rec, old, "")
	return noticesFor(rec.subscribers, rec.key, StateSubscribed, nil)
}

// fail moves rec to ERROR and schedules a retry if the limit allows.
// A record already in ERROR for this attempt is left alone. Caller holds m.mu.
func (m *Manager) fail(rec *record, cause error) []notice {
	if rec.state == StateError {
		return nil
	}
	old := rec.setState(StateError, m.clock.Now())
	rec.isSubscribing = false
	rec.lastError = cause

	if rec.canRetry() {
		rec.retryCount++
		key, gen, attempt := rec.key, rec.gen, rec.retryCount
		delay := m.retries.Schedule(key, attempt, func() {
			m.retry(key, gen)
		})
		m.logRetry(rec, delay)
	} else {
		rec.lastError = fmt.Errorf("%w: %w", ErrRetriesExhausted, cause)
		m.warnLog("retries exhausted", "key", rec.key, "retries", rec.retryCount, "error", cause)
	}

	m.logTransition(rec, old, cause.Error())
	m.logError(rec, cause)
	return noticesFor(rec.subscribers, rec.key, StateError, rec.lastError)
}

// retry releases the failed channel of attempt gen and opens a new one for
// the same subscriber set.
func (m *Manager) retry(key string, gen uint64) {
	m.mu.Lock()
	rec, ok := m.current(key, gen)
	if !ok || rec.state != StateError {
		m.mu.Unlock()
		return
	}
	old := rec.setState(StateConnecting, m.clock.Now())
	rec.isSubscribing = true
	stale := rec.channel
	rec.channel = nil
	rec.gen = m.newGen()
	next := rec.gen

	var failed reclaimedChannel
	if stale != nil {
		failed = reclaimedChannel{key: key, ch: stale, work: m.markBusy(key)}
	}

	m.logTransition(rec, old, fmt.Sprintf("retry %d/%d", rec.retryCount, rec.maxRetries))
	notices := noticesFor(rec.subscribers, key, StateConnecting, nil)
	m.mu.Unlock()

	m.notify(notices)
	m.releaseChannel(context.Background(), failed)
	m.open(key, next)
}

// deliver fans ev out to every matching subscriber of attempt gen.
func (m *Manager) deliver(key string, gen uint64, ev transport.Event) {
	m.mu.Lock()
	rec, ok := m.current(key, gen)
	if !ok {
		m.mu.Unlock()
		return
	}
	subs := rec.snapshot()
	owner := rec.ownerID
	m.mu.Unlock()

	delivered, failed := 0, 0
	for _, s := range subs {
		if !s.filter.Matches(ev) {
			continue
		}
		if err := m.invoke(key, s, ev); err != nil {
			failed++
			continue
		}
		delivered++
	}
	if failed == 0 && !m.config.LogDeliveries {
		return
	}

	m.events.Log(log.Event{
		Timestamp:   m.clock.Now(),
		ResourceKey: key,
		Layer:       log.LayerMultiplexer,
		Category:    log.CategoryDelivery,
		OwnerID:     owner,
		Delivery: &log.DeliveryEvent{
			EventType:   ev.Type,
			PayloadSize: len(ev.Payload),
			Delivered:   delivered,
			Failed:      failed,
		},
	})
}

// invoke calls one handler, converting a panic into a CallbackError.
func (m *Manager) invoke(key string, s *subscriber, ev transport.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			cbErr := &CallbackError{Key: key, Token: s.token, Value: r}
			m.logCallback(cbErr)
			err = cbErr
		}
	}()
	s.handler(ev)
	return nil
}

// reclaimIdle reclaims rec if it is still registered and still empty when
// its debounce timer fires.
func (m *Manager) reclaimIdle(key string, rec *record) {
	m.mu.Lock()
	if cur, ok := m.records[key]; !ok || cur != rec || len(rec.subscribers) > 0 {
		m.mu.Unlock()
		return
	}
	r, notices := m.reclaim(rec, log.ReclaimIdle)
	m.mu.Unlock()

	m.releaseChannel(context.Background(), r)
	m.notify(notices)
}

// reclaimedChannel is a channel taken from its record, awaiting release.
type reclaimedChannel struct {
	key  string
	ch   transport.Channel
	work *inflight
}

// reclaim moves rec to CLEANUP and removes it from the registry. The caller
// passes the returned channel to releaseChannel outside the lock, before
// dispatching the notices. Caller holds m.mu.
func (m *Manager) reclaim(rec *record, reason log.ReclaimReason) (reclaimedChannel, []notice) {
	now := m.clock.Now()
	old := rec.setState(StateCleanup, now)
	rec.isSubscribing = false
	ch := rec.channel
	rec.channel = nil

	delete(m.records, rec.key)
	m.retries.Cancel(rec.key)
	m.debounce.Cancel(cleanupKey(rec.key))
	if len(m.records) == 0 {
		m.stopSweeper()
	}

	m.logTransition(rec, old, reason.String())
	m.events.Log(log.Event{
		Timestamp:   now,
		ResourceKey: rec.key,
		Layer:       log.LayerMultiplexer,
		Category:    log.CategoryReclaim,
		ChannelName: channelName(ch),
		OwnerID:     rec.ownerID,
		Reclaim: &log.ReclaimEvent{
			Reason:      reason,
			Age:         now.Sub(rec.createdAt),
			Subscribers: len(rec.subscribers),
		},
	})
	m.debugLog("record reclaimed", "key", rec.key, "reason", reason, "previous", old)

	r := reclaimedChannel{key: rec.key, ch: ch}
	if ch != nil {
		r.work = m.markBusy(rec.key)
	}
	return r, noticesFor(rec.subscribers, rec.key, StateCleanup, nil)
}

// markBusy records a transport call in flight for key. Caller holds m.mu.
func (m *Manager) markBusy(key string) *inflight {
	work, ok := m.busy[key]
	if !ok {
		work = &inflight{}
		m.busy[key] = work
	}
	work.count++
	return work
}

// unmarkBusy ends one call recorded by markBusy. When the key goes idle it
// returns the attempt deferred meanwhile, or 0. Caller holds m.mu.
func (m *Manager) unmarkBusy(key string, work *inflight) uint64 {
	work.count--
	if work.count > 0 {
		return 0
	}
	if m.busy[key] == work {
		delete(m.busy, key)
	}
	return work.reopen
}

// reopen opens a deferred attempt, if any.
func (m *Manager) reopen(key string, gen uint64) {
	if gen != 0 {
		m.open(key, gen)
	}
}

// releaseChannel releases r.ch, logging failures, then ends r.work and opens
// any attempt that was deferred while the key was busy.
func (m *Manager) releaseChannel(ctx context.Context, r reclaimedChannel) {
	if r.ch != nil {
		if err := m.transport.Release(ctx, r.ch); err != nil {
			m.warnLog("release failed", "key", r.key, "channel", r.ch.Name(), "error", err)
		}
	}
	if r.work == nil {
		return
	}

	m.mu.Lock()
	gen := m.unmarkBusy(r.key, r.work)
	m.mu.Unlock()
	m.reopen(r.key, gen)
}

// current returns the live record for key if gen is its current attempt.
// Caller holds m.mu.
func (m *Manager) current(key string, gen uint64) (*record, bool) {
	rec, ok := m.records[key]
	if !ok || rec.gen != gen || rec.state == StateCleanup {
		return nil, false
	}
	return rec, true
}

// newGen returns a generation number unique within the manager.
// Caller holds m.mu.
func (m *Manager) newGen() uint64 {
	m.nextGen++
	return m.nextGen
}

// notice is a pending state-handler call, dispatched outside the lock.
type notice struct {
	fn    StateHandler
	token string
	key   string
	state State
	err   error
}

func noticesFor(subs []*subscriber, key string, state State, err error) []notice {
	var notices []notice
	for _, s := range subs {
		if s.onState != nil {
			notices = append(notices, notice{fn: s.onState, token: s.token, key: key, state: state, err: err})
		}
	}
	return notices
}

// notify runs state handlers, recovering panics.
func (m *Manager) notify(notices []notice) {
	for _, n := range notices {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logCallback(&CallbackError{Key: n.key, Token: n.token, Value: r})
				}
			}()
			n.fn(n.key, n.state, n.err)
		}()
	}
}

func wrapCause(sentinel, err error) error {
	if err == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

func channelName(ch transport.Channel) string {
	if ch == nil {
		return ""
	}
	return ch.Name()
}

// debugLog logs a debug message if logging is enabled.
func (m *Manager) debugLog(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Debug(msg, args...)
	}
}

// warnLog logs a warning if logging is enabled.
func (m *Manager) warnLog(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Warn(msg, args...)
	}
}
