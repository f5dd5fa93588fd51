package snapshot

import "time"

// IPPlaceholder replaces the public IP when the lookup fails or times out.
const IPPlaceholder = "Error obtaining IP address"

// Origin is the startup identity of the canary process. It is set once and
// only ever read afterwards, so workers share it without locking.
type Origin struct {
	Hostname string
	Started  time.Time
}

// Snapshot is a point-in-time status report. It is built fresh on every tick
// and never mutated after Build returns.
type Snapshot struct {
	Hostname     string    `json:"hostname"`
	ProcessStart time.Time `json:"process_start_time"`
	CurrentTime  time.Time `json:"current_time"`
	UptimeDays   uint64    `json:"uptime_days"`
	UptimeHours  uint64    `json:"uptime_hours"`
	PublicIP     string    `json:"public_ip"`
}

// IPKnown reports whether PublicIP holds a resolved address rather than the placeholder.
func (s Snapshot) IPKnown() bool {
	return s.PublicIP != "" && s.PublicIP != IPPlaceholder
}

// SplitUptime converts seconds since boot into whole days and the remaining hours.
func SplitUptime(seconds uint64) (days, hours uint64) {
	total := seconds / 3600
	return total / 24, total % 24
}
