// Package metrics keeps process-wide counters for the real-time endpoint.
package metrics

import (
	"runtime"
	"sync/atomic"
	"time"
)

type Metrics struct {
	// connections
	activeConnections atomic.Int64
	totalConnections  atomic.Int64
	unauthorized      atomic.Int64
	slowConsumers     atomic.Int64

	// messages
	messagesReceived    atomic.Int64
	messagesSent        atomic.Int64
	lastMessageUnix     atomic.Int64
	rateLimitViolations atomic.Int64
	rejectedCommands    atomic.Int64

	sessionsCreated atomic.Int64
	liveSessions    func() int

	startTime time.Time
}

func New() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// TrackSessions sets the gauge source for live sessions, usually Registry.Len.
func (m *Metrics) TrackSessions(fn func() int) { m.liveSessions = fn }

func (m *Metrics) ConnectionOpened() {
	m.activeConnections.Add(1)
	m.totalConnections.Add(1)
}

func (m *Metrics) ConnectionClosed() { m.activeConnections.Add(-1) }
func (m *Metrics) Unauthorized()     { m.unauthorized.Add(1) }
func (m *Metrics) SlowConsumer()     { m.slowConsumers.Add(1) }
func (m *Metrics) MessageSent()      { m.messagesSent.Add(1) }
func (m *Metrics) RateLimited()      { m.rateLimitViolations.Add(1) }
func (m *Metrics) CommandRejected()  { m.rejectedCommands.Add(1) }
func (m *Metrics) SessionCreated()   { m.sessionsCreated.Add(1) }

func (m *Metrics) MessageReceived() {
	m.messagesReceived.Add(1)
	m.lastMessageUnix.Store(time.Now().Unix())
}

type Snapshot struct {
	ActiveConnections   int64   `json:"active_connections"`
	TotalConnections    int64   `json:"total_connections"`
	Unauthorized        int64   `json:"unauthorized_connections"`
	SlowConsumers       int64   `json:"slow_consumers"`
	MessagesReceived    int64   `json:"messages_received"`
	MessagesSent        int64   `json:"messages_sent"`
	MessagesPerSecond   float64 `json:"messages_per_second"`
	LastMessageTime     string  `json:"last_message_time"`
	RateLimitViolations int64   `json:"rate_limit_violations"`
	RejectedCommands    int64   `json:"rejected_commands"`
	SessionsCreated     int64   `json:"sessions_created"`
	LiveSessions        int     `json:"live_sessions"`
	UptimeSeconds       int64   `json:"uptime_seconds"`
	MemoryUsageMB       uint64  `json:"memory_usage_mb"`
	NumGoroutines       int     `json:"num_goroutines"`
}

func (m *Metrics) Snapshot() Snapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	uptime := time.Since(m.startTime)
	received := m.messagesReceived.Load()

	last := "never"
	if ts := m.lastMessageUnix.Load(); ts > 0 {
		last = time.Unix(ts, 0).UTC().Format(time.RFC3339)
	}

	var perSec float64
	if s := uptime.Seconds(); s > 0 {
		perSec = float64(received) / s
	}

	live := 0
	if m.liveSessions != nil {
		live = m.liveSessions()
	}

	return Snapshot{
		ActiveConnections:   m.activeConnections.Load(),
		TotalConnections:    m.totalConnections.Load(),
		Unauthorized:        m.unauthorized.Load(),
		SlowConsumers:       m.slowConsumers.Load(),
		MessagesReceived:    received,
		MessagesSent:        m.messagesSent.Load(),
		MessagesPerSecond:   perSec,
		LastMessageTime:     last,
		RateLimitViolations: m.rateLimitViolations.Load(),
		RejectedCommands:    m.rejectedCommands.Load(),
		SessionsCreated:     m.sessionsCreated.Load(),
		LiveSessions:        live,
		UptimeSeconds:       int64(uptime.Seconds()),
		MemoryUsageMB:       mem.Alloc / 1024 / 1024,
		NumGoroutines:       runtime.NumGoroutine(),
	}
}
