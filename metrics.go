package main

import (
	"sync"
	"sync/atomic"
	"time"
)

const errorHistorySize = 8

type ErrorEvent struct {
	At      time.Time `json:"at"`
	Type    string    `json:"type"`
	Message string    `json:"message"`
}

// Metrics holds in-process counters for the health endpoint. Counters only;
// anything stateful belongs to the component that owns it.
type Metrics struct {
	pollTicks         atomic.Uint64
	pollFailures      atomic.Uint64
	blocksCredited    atomic.Uint64
	duplicatesIgnored atomic.Uint64
	timeoutsFired     atomic.Uint64
	eventsApplied     atomic.Uint64
	adminLogins       atomic.Uint64

	mu           sync.Mutex
	errorHistory []ErrorEvent
	start        time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{start: time.Now()}
}

func (m *Metrics) RecordPollTick() {
	if m != nil {
		m.pollTicks.Add(1)
	}
}

func (m *Metrics) RecordPollFailure(kind string, err error) {
	if m == nil {
		return
	}
	m.pollFailures.Add(1)
	if err != nil {
		m.RecordErrorEvent(kind, err.Error(), time.Now())
	}
}

func (m *Metrics) RecordBlockCredited() {
	if m != nil {
		m.blocksCredited.Add(1)
	}
}

func (m *Metrics) RecordDuplicateIgnored() {
	if m != nil {
		m.duplicatesIgnored.Add(1)
	}
}

func (m *Metrics) RecordTimeoutFired() {
	if m != nil {
		m.timeoutsFired.Add(1)
	}
}

func (m *Metrics) RecordEventApplied() {
	if m != nil {
		m.eventsApplied.Add(1)
	}
}

func (m *Metrics) RecordAdminLogin() {
	if m != nil {
		m.adminLogins.Add(1)
	}
}

func (m *Metrics) RecordErrorEvent(kind, message string, at time.Time) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorHistory = append(m.errorHistory, ErrorEvent{At: at, Type: kind, Message: message})
	if len(m.errorHistory) > errorHistorySize {
		m.errorHistory = m.errorHistory[len(m.errorHistory)-errorHistorySize:]
	}
}

type MetricsSnapshot struct {
	UptimeSeconds     float64      `json:"uptime_seconds"`
	PollTicks         uint64       `json:"poll_ticks"`
	PollFailures      uint64       `json:"poll_failures"`
	BlocksCredited    uint64       `json:"blocks_credited"`
	DuplicatesIgnored uint64       `json:"duplicates_ignored"`
	TimeoutsFired     uint64       `json:"timeouts_fired"`
	EventsApplied     uint64       `json:"events_applied"`
	AdminLogins       uint64       `json:"admin_logins"`
	RecentErrors      []ErrorEvent `json:"recent_errors,omitempty"`
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.Lock()
	history := append([]ErrorEvent(nil), m.errorHistory...)
	start := m.start
	m.mu.Unlock()
	return MetricsSnapshot{
		UptimeSeconds:     time.Since(start).Seconds(),
		PollTicks:         m.pollTicks.Load(),
		PollFailures:      m.pollFailures.Load(),
		BlocksCredited:    m.blocksCredited.Load(),
		DuplicatesIgnored: m.duplicatesIgnored.Load(),
		TimeoutsFired:     m.timeoutsFired.Load(),
		EventsApplied:     m.eventsApplied.Load(),
		AdminLogins:       m.adminLogins.Load(),
		RecentErrors:      history,
	}
}
