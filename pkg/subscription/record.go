package subscription

import (
	"fmt"
	"time"

	"github.com/sitetrack/livemux/pkg/transport"
)

// anonymousOwner names channels created without an owner.
const anonymousOwner = "anon"

// record is the per-key channel record. All fields are guarded by the
// manager's mutex.
type record struct {
	key     string
	ownerID string

	// channel is the live transport channel, nil between attempts.
	channel transport.Channel

	// gen identifies the current connection attempt. Status reports and
	// events carrying an older generation are dropped.
	gen uint64

	subscribers []*subscriber

	state         State
	retryCount    int
	maxRetries    int
	lastError     error
	isSubscribing bool

	createdAt      time.Time
	subscribedAt   time.Time
	stateChangedAt time.Time

	// emptySince is set while the subscriber set is empty.
	emptySince time.Time
}

func newRecord(key, owner string, maxRetries int, now time.Time) *record {
	if owner == "" {
		owner = anonymousOwner
	}
	return &record{
		key:            key,
		ownerID:        owner,
		state:          StateConnecting,
		maxRetries:     maxRetries,
		isSubscribing:  true,
		createdAt:      now,
		stateChangedAt: now,
	}
}

// channelName derives a transport channel name for an attempt started at t.
func (r *record) channelName(t time.Time) string {
	return fmt.Sprintf("%s:%s:%d", r.key, r.ownerID, t.UnixMilli())
}

// attach adds s, replacing any subscriber with the same token.
// Returns true if s replaced an existing registration.
func (r *record) attach(s *subscriber) bool {
	r.emptySince = time.Time{}
	for i, existing := range r.subscribers {
		if existing.token == s.token {
			r.subscribers[i] = s
			return true
		}
	}
	r.subscribers = append(r.subscribers, s)
	return false
}

// detach removes the subscriber with token. Returns false if absent.
func (r *record) detach(token string, now time.Time) bool {
	for i, s := range r.subscribers {
		if s.token == token {
			r.subscribers = append(r.subscribers[:i:i], r.subscribers[i+1:]...)
			if len(r.subscribers) == 0 {
				r.emptySince = now
			}
			return true
		}
	}
	return false
}

// snapshot returns a copy of the subscriber list for use outside the lock.
func (r *record) snapshot() []*subscriber {
	subs := make([]*subscriber, len(r.subscribers))
	copy(subs, r.subscribers)
	return subs
}

// setState changes state and returns the previous one.
func (r *record) setState(s State, now time.Time) State {
	old := r.state
	r.state = s
	r.stateChangedAt = now
	return old
}

// canRetry reports whether another retry may be scheduled.
func (r *record) canRetry() bool {
	return r.retryCount < r.maxRetries
}

// errString returns the last error text, or "".
func (r *record) errString() string {
	if r.lastError == nil {
		return ""
	}
	return r.lastError.Error()
}
