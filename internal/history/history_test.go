package history

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestStore_RecordCounts(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	s := NewStore(clock, 3)
	s.Register("email", "email", 5*time.Minute)

	for i := 0; i < 4; i++ {
		s.Record("email", 120*time.Millisecond, "success", "")
		clock.Advance(5 * time.Minute)
	}

	h := s.Get("email")
	if h == nil {
		t.Fatal("channel not found")
	}
	if h.Kind != "email" || h.IntervalSeconds != 300 {
		t.Errorf("identity = %s/%d", h.Kind, h.IntervalSeconds)
	}
	if h.Delivered != 4 || h.Failed != 0 {
		t.Errorf("delivered=%d failed=%d", h.Delivered, h.Failed)
	}
	if len(h.Attempts) != 3 {
		t.Errorf("kept %d attempts, want 3", len(h.Attempts))
	}
	if h.Attempts[0].Latency != 120 {
		t.Errorf("latency = %d", h.Attempts[0].Latency)
	}
	if h.SuccessRate24h != 100 {
		t.Errorf("success rate = %v", h.SuccessRate24h)
	}
}

func TestStore_OutageLifecycle(t *testing.T) {
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)
	s := NewStore(clock, 10)

	s.Record("discord", time.Second, "success", "")
	clock.Advance(time.Hour)
	s.Record("discord", time.Second, "transport_failure", "dial tcp: i/o timeout")
	clock.Advance(time.Hour)
	s.Record("discord", time.Second, "rejected_by_server", "Missing Access")

	h := s.Get("discord")
	if h.Healthy || h.ConsecutiveFailures != 2 {
		t.Fatalf("healthy=%v consecutive=%d", h.Healthy, h.ConsecutiveFailures)
	}
	if len(h.Incidents) != 1 {
		t.Fatalf("incidents = %d, want 1", len(h.Incidents))
	}
	inc := h.Incidents[0]
	if inc.ResolvedAt != nil || inc.Failures != 2 || inc.Reason != "dial tcp: i/o timeout" {
		t.Errorf("open incident = %+v", inc)
	}

	clock.Advance(time.Hour)
	s.Record("discord", time.Second, "success", "")

	h = s.Get("discord")
	if !h.Healthy || h.ConsecutiveFailures != 0 {
		t.Errorf("healthy=%v consecutive=%d", h.Healthy, h.ConsecutiveFailures)
	}
	inc = h.Incidents[0]
	if inc.ResolvedAt == nil || inc.Duration != int64((2*time.Hour).Seconds()) {
		t.Errorf("resolved incident = %+v", inc)
	}
	if h.LastSuccess != start.Add(3*time.Hour).Unix() {
		t.Errorf("last success = %d", h.LastSuccess)
	}
	if h.SuccessRate24h != 50 {
		t.Errorf("success rate = %v, want 50", h.SuccessRate24h)
	}
}

func TestStore_ResolvedOutagesExpire(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewStore(clock, 10)

	s.Record("nats", 0, "transport_failure", "no servers available")
	s.Record("nats", 0, "success", "")
	clock.Advance(8 * 24 * time.Hour)
	s.Record("nats", 0, "success", "")

	if n := len(s.Get("nats").Incidents); n != 0 {
		t.Errorf("incidents = %d, want 0 after retention", n)
	}
}

func TestStore_CopiesAreIsolated(t *testing.T) {
	s := NewStore(clockwork.NewFakeClock(), 10)
	s.Record("email", 0, "transport_failure", "x")
	s.Record("email", 0, "success", "")

	cp := s.Get("email")
	cp.Attempts[0].Outcome = "tampered"
	*cp.Incidents[0].ResolvedAt = 0

	h := s.Get("email")
	if h.Attempts[0].Outcome != "transport_failure" {
		t.Error("attempt modified through copy")
	}
	if *h.Incidents[0].ResolvedAt == 0 {
		t.Error("incident modified through copy")
	}
}

func TestStore_AllSorted(t *testing.T) {
	s := NewStore(clockwork.NewFakeClock(), 10)
	s.Register("webhook", "webhook", time.Hour)
	s.Register("discord", "discord", time.Hour)
	s.Register("email", "email", 5*time.Minute)

	all := s.All()
	if len(all) != 3 || all[0].Name != "discord" || all[2].Name != "webhook" {
		t.Errorf("All() = %+v", all)
	}
	if s.Get("missing") != nil {
		t.Error("Get(missing) should be nil")
	}
}
