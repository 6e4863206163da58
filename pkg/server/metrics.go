package server

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"
)

// Metrics tracks server runtime statistics.
// All counters use atomic operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time

	// Connection counters
	TotalConnections   atomic.Int64 // lifetime TCP connections accepted
	ActiveConnections  atomic.Int64 // current open connections (pre- and post-auth)
	RejectedAtCapacity atomic.Int64 // connections refused because the session cap was reached
	FailedAuths        atomic.Int64 // failed authentication attempts
	SuccessfulAuths    atomic.Int64 // successful authentication attempts
	TotalDisconnects   atomic.Int64 // total client disconnects (clean + unclean)

	// Chat counters
	PublicMessages  atomic.Int64 // chat lines broadcast to the public room
	PrivateMessages atomic.Int64 // chat lines delivered inside private pairs

	// Negotiation counters
	RequestsCreated  atomic.Int64 // private-chat invitations created
	RequestsAccepted atomic.Int64 // invitations accepted
	RequestsDeclined atomic.Int64 // invitations declined
	RequestsExpired  atomic.Int64 // invitations removed by the sweeper
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	ActiveConnections  int64 `json:"active_connections"`
	TotalConnections   int64 `json:"total_connections"`
	RejectedAtCapacity int64 `json:"rejected_at_capacity"`
	SuccessfulAuths    int64 `json:"successful_auths"`
	FailedAuths        int64 `json:"failed_auths"`
	TotalDisconnects   int64 `json:"total_disconnects"`

	PublicMessages  int64 `json:"public_messages"`
	PrivateMessages int64 `json:"private_messages"`

	RequestsCreated  int64 `json:"requests_created"`
	RequestsAccepted int64 `json:"requests_accepted"`
	RequestsDeclined int64 `json:"requests_declined"`
	RequestsExpired  int64 `json:"requests_expired"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:             uptime.Truncate(time.Second).String(),
		UptimeSeconds:      int64(uptime.Seconds()),
		ActiveConnections:  m.ActiveConnections.Load(),
		TotalConnections:   m.TotalConnections.Load(),
		RejectedAtCapacity: m.RejectedAtCapacity.Load(),
		SuccessfulAuths:    m.SuccessfulAuths.Load(),
		FailedAuths:        m.FailedAuths.Load(),
		TotalDisconnects:   m.TotalDisconnects.Load(),
		PublicMessages:     m.PublicMessages.Load(),
		PrivateMessages:    m.PrivateMessages.Load(),
		RequestsCreated:    m.RequestsCreated.Load(),
		RequestsAccepted:   m.RequestsAccepted.Load(),
		RequestsDeclined:   m.RequestsDeclined.Load(),
		RequestsExpired:    m.RequestsExpired.Load(),
	}
}

// JSON returns the metrics snapshot as a JSON string.
func (m *Metrics) JSON() string {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// LogSummary writes a periodic metrics summary to the logger.
func (m *Metrics) LogSummary() {
	s := m.Snapshot()
	slog.Info("metrics",
		"uptime", s.Uptime,
		"connections", s.ActiveConnections,
		"total_connections", s.TotalConnections,
		"public_msgs", s.PublicMessages,
		"private_msgs", s.PrivateMessages,
		"requests", s.RequestsCreated,
		"expired", s.RequestsExpired,
	)
}

// StartPeriodicLog starts a goroutine that logs metrics every interval.
// It stops when the done channel is closed.
func (m *Metrics) StartPeriodicLog(interval time.Duration, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.LogSummary()
			}
		}
	}()
}
