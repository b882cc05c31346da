package subscription

import (
	"context"

	"github.com/sitetrack/livemux/pkg/log"
)

// ensureSweeper arms the sweep timer if it is not running.
// Caller holds m.mu.
func (m *Manager) ensureSweeper() {
	if m.sweeper != nil {
		return
	}
	m.sweepSeq++
	seq := m.sweepSeq
	m.sweeper = m.clock.AfterFunc(m.config.CleanupTimeout, func() {
		m.sweep(seq)
	})
}

// stopSweeper disarms the sweep timer. Caller holds m.mu.
func (m *Manager) stopSweeper() {
	if m.sweeper == nil {
		return
	}
	m.sweeper.Stop()
	m.sweeper = nil
	m.sweepSeq++
}

// sweep reclaims records stuck in ERROR for longer than the cleanup timeout
// and records left empty for longer than twice the debounce delay. It re-arms
// itself while records remain.
func (m *Manager) sweep(seq uint64) {
	m.mu.Lock()
	if seq != m.sweepSeq {
		m.mu.Unlock()
		return
	}
	m.sweeper = nil

	now := m.clock.Now()
	emptyAfter := 2 * m.config.DebounceDelay

	var released []reclaimedChannel
	var notices []notice

	for _, rec := range m.records {
		var reason log.ReclaimReason
		switch {
		case rec.state == StateError && now.Sub(rec.stateChangedAt) > m.config.CleanupTimeout:
			reason = log.ReclaimStaleError
		case len(rec.subscribers) == 0 && !rec.emptySince.IsZero() && now.Sub(rec.emptySince) > emptyAfter:
			reason = log.ReclaimStaleEmpty
		default:
			continue
		}
		r, n := m.reclaim(rec, reason)
		if r.ch != nil {
			released = append(released, r)
		}
		notices = append(notices, n...)
	}

	if len(m.records) > 0 {
		m.ensureSweeper()
	}
	remaining := len(m.records)
	m.mu.Unlock()

	m.debugLog("sweep", "reclaimed", len(released), "remaining", remaining)
	for _, r := range released {
		m.releaseChannel(context.Background(), r)
	}
	m.notify(notices)
}
