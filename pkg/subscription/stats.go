package subscription

import (
	"time"
)

// Stats summarizes the registry.
type Stats struct {
	// TotalChannels is the number of records.
	TotalChannels int `json:"totalChannels"`

	// ActiveSubscriptions counts records in SUBSCRIBED.
	ActiveSubscriptions int `json:"activeSubscriptions"`

	// ErroredSubscriptions counts records in ERROR.
	ErroredSubscriptions int `json:"erroredSubscriptions"`

	// TotalCallbacks is the number of attached subscribers across all records.
	TotalCallbacks int `json:"totalCallbacks"`

	// PendingRetries and PendingCleanups count scheduled backoff retries and
	// debounced reclamations.
	PendingRetries  int `json:"pendingRetries"`
	PendingCleanups int `json:"pendingCleanups"`

	// Uptime is the time since the manager was created.
	Uptime time.Duration `json:"uptime"`
}

// ChannelInfo is a diagnostic snapshot of one record.
type ChannelInfo struct {
	Key           string        `json:"key"`
	State         State         `json:"state"`
	ChannelName   string        `json:"channelName,omitempty"`
	OwnerID       string        `json:"ownerId,omitempty"`
	CallbackCount int           `json:"callbackCount"`
	RetryCount    int           `json:"retryCount"`
	MaxRetries    int           `json:"maxRetries"`
	LastError     string        `json:"lastError,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	SubscribedAt  time.Time     `json:"subscribedAt,omitempty"`
	Age           time.Duration `json:"age"`

	// SubscribedFor is the time since the last successful subscription,
	// zero unless the record is SUBSCRIBED.
	SubscribedFor time.Duration `json:"subscribedFor,omitempty"`

	// RetryPending is set while a backoff retry is scheduled; NextRetryIn
	// is the time until it runs.
	RetryPending bool          `json:"retryPending"`
	NextRetryIn  time.Duration `json:"nextRetryIn,omitempty"`

	// CleanupPending is set while a debounced reclamation is scheduled;
	// CleanupIn is the time until it runs.
	CleanupPending bool          `json:"cleanupPending"`
	CleanupIn      time.Duration `json:"cleanupIn,omitempty"`
}

// Stats returns registry counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Stats{
		TotalChannels:   len(m.records),
		Uptime:          m.clock.Now().Sub(m.startedAt),
		PendingRetries:  m.retries.Count(),
		PendingCleanups: m.debounce.Count(),
	}
	for _, rec := range m.records {
		switch rec.state {
		case StateSubscribed:
			stats.ActiveSubscriptions++
		case StateError:
			stats.ErroredSubscriptions++
		}
		stats.TotalCallbacks += len(rec.subscribers)
	}
	return stats
}

// Info returns a snapshot of the record for key.
func (m *Manager) Info(key string) (ChannelInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key]
	if !ok {
		return ChannelInfo{}, false
	}
	return m.infoLocked(rec, m.clock.Now()), true
}

// InfoAll returns snapshots of every record keyed by resource key.
func (m *Manager) InfoAll() map[string]ChannelInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	all := make(map[string]ChannelInfo, len(m.records))
	for key, rec := range m.records {
		all[key] = m.infoLocked(rec, now)
	}
	return all
}

func (m *Manager) infoLocked(rec *record, now time.Time) ChannelInfo {
	info := ChannelInfo{
		Key:           rec.key,
		State:         rec.state,
		ChannelName:   channelName(rec.channel),
		OwnerID:       rec.ownerID,
		CallbackCount: len(rec.subscribers),
		RetryCount:    rec.retryCount,
		MaxRetries:    rec.maxRetries,
		LastError:     rec.errString(),
		CreatedAt:     rec.createdAt,
		SubscribedAt:  rec.subscribedAt,
		Age:           now.Sub(rec.createdAt),
	}
	if rec.state == StateSubscribed {
		info.SubscribedFor = now.Sub(rec.subscribedAt)
	}
	if due, ok := m.debounce.Due(cleanupKey(rec.key)); ok {
		info.CleanupPending = true
		info.CleanupIn = due.Sub(now)
	}
	if _, _, due, ok := m.retries.Next(rec.key); ok {
		info.RetryPending = true
		info.NextRetryIn = due.Sub(now)
	}
	return info
}
