package monitoring

import "time"

// Snapshot holds current metric values for the JSON health endpoint
type Snapshot struct {
	TotalRequests  int64   `json:"total_requests"`
	TotalErrors    int64   `json:"total_errors"`
	TotalCommands  int64   `json:"total_commands"`
	ActiveSessions int64   `json:"active_sessions"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

// Snapshot returns a copy of the tracked values and refreshes the uptime
// gauge.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}

	uptime := time.Since(m.startTime).Seconds()
	m.Uptime.Set(uptime)

	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := m.snapshot
	snap.UptimeSeconds = uptime
	return snap
}
