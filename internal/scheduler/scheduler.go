package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/makt28/netcanary/internal/channel"
	"github.com/makt28/netcanary/internal/history"
	"github.com/makt28/netcanary/internal/metrics"
	"github.com/makt28/netcanary/internal/snapshot"
)

// SnapshotBuilder produces a fresh status report for every tick.
type SnapshotBuilder interface {
	Build(ctx context.Context, origin snapshot.Origin) snapshot.Snapshot
}

// Settings are the timing parameters of one scheduler.
type Settings struct {
	Interval    time.Duration
	Timeout     time.Duration
	SendOnStart bool
}

// Deps are the collaborators shared by all schedulers. Metrics and History
// may be nil.
type Deps struct {
	Builder SnapshotBuilder
	Clock   clockwork.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	History *history.Store
}

// Scheduler delivers a report on one channel, waiting Interval between the
// end of one attempt and the start of the next.
type Scheduler struct {
	ch       channel.Channel
	settings Settings
	deps     Deps
	origin   snapshot.Origin
	log      *slog.Logger
}

func New(ch channel.Channel, settings Settings, deps Deps, origin snapshot.Origin) (*Scheduler, error) {
	if ch == nil {
		return nil, errors.New("scheduler: channel is nil")
	}
	if settings.Interval <= 0 {
		return nil, fmt.Errorf("scheduler: interval must be > 0 (got %s)", settings.Interval)
	}
	if settings.Timeout <= 0 {
		return nil, fmt.Errorf("scheduler: timeout must be > 0 (got %s)", settings.Timeout)
	}
	if deps.Builder == nil || deps.Clock == nil || deps.Logger == nil {
		return nil, errors.New("scheduler: builder, clock and logger are required")
	}
	return &Scheduler{
		ch:       ch,
		settings: settings,
		deps:     deps,
		origin:   origin,
		log:      deps.Logger.With("channel", ch.Name(), "kind", ch.Kind()),
	}, nil
}

// Run ticks until ctx is cancelled. A tick that is in progress when ctx is
// cancelled still runs to completion or to its timeout.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("channel scheduler started", "interval", s.settings.Interval, "send_on_start", s.settings.SendOnStart)

	if s.settings.SendOnStart {
		s.Tick(ctx)
	}

	timer := s.deps.Clock.NewTimer(s.settings.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("channel scheduler stopped")
			return
		case <-timer.Chan():
			s.Tick(ctx)
			timer.Reset(s.settings.Interval)
		}
	}
}

// Tick builds one snapshot and delivers it. It never panics and never
// returns an error; the outcome is logged and recorded.
func (s *Scheduler) Tick(ctx context.Context) (outcome channel.Outcome) {
	log := s.log.With("tick_id", uuid.NewString())
	start := s.deps.Clock.Now()

	defer func() {
		if r := recover(); r != nil {
			outcome = channel.TransportFailure
			log.Error("delivery panicked", "panic", r)
			s.record(start, outcome, fmt.Sprintf("panic: %v", r))
		}
	}()

	// Shutdown must not abort a tick halfway. Building and delivering each
	// get their own Timeout so a hanging IP lookup cannot starve the send.
	base := context.WithoutCancel(ctx)

	buildCtx, cancelBuild := context.WithTimeout(base, s.settings.Timeout)
	snap := s.deps.Builder.Build(buildCtx, s.origin)
	cancelBuild()
	if !snap.IPKnown() {
		s.deps.Metrics.IPLookupFailed()
	}

	deliverCtx, cancel := context.WithTimeout(base, s.settings.Timeout)
	defer cancel()
	err := s.ch.Deliver(deliverCtx, snap)
	outcome = channel.Classify(err)
	took := s.deps.Clock.Since(start)

	switch outcome {
	case channel.Success:
		log.Info("report delivered", "took", took, "public_ip", snap.PublicIP, "uptime", snap.Uptime())
		s.record(start, outcome, "")
	case channel.RejectedByServer:
		log.Error("report rejected by server", "took", took, "error", err)
		s.record(start, outcome, err.Error())
	default:
		log.Error("report delivery failed", "took", took, "error", err)
		s.record(start, outcome, err.Error())
	}
	return outcome
}

func (s *Scheduler) record(start time.Time, outcome channel.Outcome, detail string) {
	took := s.deps.Clock.Since(start)
	s.deps.Metrics.ObserveDelivery(s.ch.Name(), outcome.String(), took, s.deps.Clock.Now())
	if s.deps.History != nil {
		s.deps.History.Record(s.ch.Name(), took, outcome.String(), detail)
	}
}
