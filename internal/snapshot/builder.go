package snapshot

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// UptimeSource reports the number of seconds since the host booted.
type UptimeSource interface {
	Uptime(ctx context.Context) (uint64, error)
}

// UptimeFunc adapts a plain function to UptimeSource.
type UptimeFunc func(ctx context.Context) (uint64, error)

func (f UptimeFunc) Uptime(ctx context.Context) (uint64, error) { return f(ctx) }

// IPResolver discovers the public IP address the host is seen from.
type IPResolver interface {
	PublicIP(ctx context.Context) (string, error)
}

// IPResolverFunc adapts a plain function to IPResolver.
type IPResolverFunc func(ctx context.Context) (string, error)

func (f IPResolverFunc) PublicIP(ctx context.Context) (string, error) { return f(ctx) }

// Builder assembles status snapshots. It holds no mutable state and is safe
// for concurrent use by every scheduler and trigger responder.
type Builder struct {
	clock     clockwork.Clock
	uptime    UptimeSource
	ip        IPResolver
	ipTimeout time.Duration
	log       *slog.Logger
}

// NewBuilder creates a Builder. A non-positive ipTimeout leaves the IP lookup
// bounded only by the caller's context.
func NewBuilder(clock clockwork.Clock, uptime UptimeSource, ip IPResolver, ipTimeout time.Duration, log *slog.Logger) *Builder {
	return &Builder{
		clock:     clock,
		uptime:    uptime,
		ip:        ip,
		ipTimeout: ipTimeout,
		log:       log,
	}
}

// Build queries uptime and public IP afresh and returns a new Snapshot.
// It never fails: a broken IP lookup is replaced by IPPlaceholder and a
// broken uptime query reports zero.
func (b *Builder) Build(ctx context.Context, origin Origin) Snapshot {
	snap := Snapshot{
		Hostname:     origin.Hostname,
		ProcessStart: origin.Started,
		CurrentTime:  b.clock.Now(),
		PublicIP:     IPPlaceholder,
	}

	secs, err := b.uptime.Uptime(ctx)
	if err != nil {
		b.log.Warn("host uptime query failed", "error", err)
	} else {
		snap.UptimeDays, snap.UptimeHours = SplitUptime(secs)
	}

	ipCtx := ctx
	if b.ipTimeout > 0 {
		var cancel context.CancelFunc
		ipCtx, cancel = context.WithTimeout(ctx, b.ipTimeout)
		defer cancel()
	}
	ip, err := b.ip.PublicIP(ipCtx)
	if err != nil {
		b.log.Warn("public IP lookup failed", "error", err)
	} else {
		snap.PublicIP = ip
	}

	return snap
}
