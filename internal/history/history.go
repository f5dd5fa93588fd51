package history

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// incidentRetention is how long resolved outages are kept (7 days).
const incidentRetention = 7 * 24 * time.Hour

// maxIncidents caps the outage list per channel regardless of age.
const maxIncidents = 50

// ChannelHistory holds the runtime record of one channel.
type ChannelHistory struct {
	Name                string    `json:"name"`
	Kind                string    `json:"kind"`
	IntervalSeconds     int64     `json:"interval_seconds"`
	Healthy             bool      `json:"healthy"`
	LastAttempt         int64     `json:"last_attempt"`
	LastSuccess         int64     `json:"last_success"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Delivered           uint64    `json:"delivered"`
	Failed              uint64    `json:"failed"`
	SuccessRate24h      float64   `json:"success_rate_24h"`
	Attempts            []Attempt `json:"attempts"`
	Incidents           []Outage  `json:"incidents"`
}

// Attempt is one delivery result with timestamp.
type Attempt struct {
	Time    int64  `json:"t"`
	Latency int    `json:"v"`
	Outcome string `json:"outcome"`
	Detail  string `json:"detail,omitempty"`
}

// OK reports whether the attempt was delivered.
func (a Attempt) OK() bool { return a.Outcome == "success" }

// Outage spans from the first failed delivery to the next successful one.
type Outage struct {
	StartedAt  int64  `json:"started_at"`
	ResolvedAt *int64 `json:"resolved_at"`
	Duration   int64  `json:"duration"`
	Failures   int    `json:"failures"`
	Reason     string `json:"reason"`
}

// Store keeps delivery history for every channel in memory. Each channel is
// written by its own scheduler; the status endpoint reads copies.
type Store struct {
	mu        sync.RWMutex
	channels  map[string]*ChannelHistory
	clock     clockwork.Clock
	maxPoints int
}

// NewStore creates an empty store keeping at most maxPoints attempts per
// channel.
func NewStore(clock clockwork.Clock, maxPoints int) *Store {
	if maxPoints <= 0 {
		maxPoints = 100
	}
	return &Store{
		channels:  make(map[string]*ChannelHistory),
		clock:     clock,
		maxPoints: maxPoints,
	}
}

// Register announces a channel before its first delivery so it shows up in
// the status output right away.
func (s *Store) Register(name, kind string, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.ensure(name)
	h.Kind = kind
	h.IntervalSeconds = int64(interval.Seconds())
}

// Record appends one delivery attempt. A failure on a healthy channel opens
// an outage; the next success resolves it.
func (s *Store) Record(name string, latency time.Duration, outcome, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().Unix()
	h := s.ensure(name)
	a := Attempt{Time: now, Latency: int(latency.Milliseconds()), Outcome: outcome, Detail: detail}

	h.Attempts = append(h.Attempts, a)
	if len(h.Attempts) > s.maxPoints {
		excess := len(h.Attempts) - s.maxPoints
		h.Attempts = h.Attempts[excess:]
	}
	h.LastAttempt = now

	if a.OK() {
		h.Delivered++
		h.LastSuccess = now
		h.ConsecutiveFailures = 0
		if !h.Healthy {
			h.Healthy = true
			resolve(h.Incidents, now)
		}
	} else {
		h.Failed++
		h.ConsecutiveFailures++
		if h.Healthy {
			h.Healthy = false
			h.Incidents = append(h.Incidents, Outage{StartedAt: now, Reason: detail})
		}
		if n := len(h.Incidents); n > 0 && h.Incidents[n-1].ResolvedAt == nil {
			h.Incidents[n-1].Failures++
		}
	}

	h.Incidents = prune(h.Incidents, now)
	h.SuccessRate24h = successRate(h.Attempts, now, 24*3600)
}

// Get returns a copy of one channel's history (nil if not found).
func (s *Store) Get(name string) *ChannelHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.channels[name]
	if !ok {
		return nil
	}
	cp := copyHistory(h)
	return &cp
}

// All returns copies of every channel's history sorted by name.
func (s *Store) All() []ChannelHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]ChannelHistory, 0, len(s.channels))
	for _, h := range s.channels {
		result = append(result, copyHistory(h))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func (s *Store) ensure(name string) *ChannelHistory {
	h, ok := s.channels[name]
	if !ok {
		h = &ChannelHistory{
			Name:           name,
			Healthy:        true,
			SuccessRate24h: 100,
			Attempts:       make([]Attempt, 0),
			Incidents:      make([]Outage, 0),
		}
		s.channels[name] = h
	}
	return h
}

func copyHistory(h *ChannelHistory) ChannelHistory {
	cp := *h
	cp.Attempts = append([]Attempt(nil), h.Attempts...)
	cp.Incidents = make([]Outage, len(h.Incidents))
	for i, inc := range h.Incidents {
		if inc.ResolvedAt != nil {
			at := *inc.ResolvedAt
			inc.ResolvedAt = &at
		}
		cp.Incidents[i] = inc
	}
	return cp
}

// resolve closes the latest open outage.
func resolve(incidents []Outage, now int64) {
	for i := len(incidents) - 1; i >= 0; i-- {
		if incidents[i].ResolvedAt == nil {
			at := now
			incidents[i].ResolvedAt = &at
			incidents[i].Duration = now - incidents[i].StartedAt
			return
		}
	}
}

// prune drops resolved outages older than the retention window, keeping
// open ones, then caps the list.
func prune(incidents []Outage, now int64) []Outage {
	cutoff := now - int64(incidentRetention.Seconds())
	kept := incidents[:0]
	for _, inc := range incidents {
		if inc.StartedAt >= cutoff || inc.ResolvedAt == nil {
			kept = append(kept, inc)
		}
	}
	if len(kept) > maxIncidents {
		kept = kept[len(kept)-maxIncidents:]
	}
	return kept
}

func successRate(points []Attempt, now int64, windowSec int64) float64 {
	cutoff := now - windowSec
	total := 0
	ok := 0
	for _, p := range points {
		if p.Time >= cutoff {
			total++
			if p.OK() {
				ok++
			}
		}
	}
	if total == 0 {
		return 100.0
	}
	return float64(ok) / float64(total) * 100.0
}
