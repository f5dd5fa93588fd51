package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/makt28/netcanary/internal/channel"
	"github.com/makt28/netcanary/internal/config"
	"github.com/makt28/netcanary/internal/snapshot"
)

var (
	// ErrNoChannels is returned when the configuration enables no channel.
	ErrNoChannels = errors.New("no channels enabled")

	// ErrNoChannelsStarted is returned when every enabled channel failed
	// its setup. The individual setup errors are joined to it.
	ErrNoChannelsStarted = errors.New("no channel could be started")
)

// Orchestrator sets up every enabled channel and runs one Scheduler per
// channel until its context is cancelled.
type Orchestrator struct {
	Channels channel.Builder
	Deps     Deps
	Origin   snapshot.Origin
}

type running struct {
	cfg   config.ChannelConfig
	ch    channel.Channel
	sched *Scheduler
}

// Run blocks until ctx is cancelled and all schedulers have stopped. It
// returns an error only when no channel could be started.
func (o *Orchestrator) Run(ctx context.Context, cfgs []config.ChannelConfig) error {
	started, err := o.start(ctx, cfgs)
	if err != nil {
		return err
	}
	log := o.Deps.Logger

	var wg sync.WaitGroup
	for _, r := range started {
		o.register(r)

		wg.Add(1)
		go func(r running) {
			defer wg.Done()
			defer o.Deps.Metrics.ChannelStopped()
			r.sched.Run(ctx)
		}(r)

		if t, ok := r.ch.(channel.Triggerer); ok {
			wg.Add(1)
			go func(r running, t channel.Triggerer) {
				defer wg.Done()
				o.respond(ctx, r, t)
			}(r, t)
		}
	}

	log.Info("canary running", "channels", len(started))
	wg.Wait()

	o.closeAll(started)
	log.Info("canary stopped")
	return nil
}

// Once delivers a single report on every enabled channel. The returned
// error joins every setup failure and every unsuccessful delivery.
func (o *Orchestrator) Once(ctx context.Context, cfgs []config.ChannelConfig) error {
	enabled := filterEnabled(cfgs)
	if len(enabled) == 0 {
		return ErrNoChannels
	}
	started, setupErrs := o.setup(ctx, enabled)
	defer o.closeAll(started)

	errs := setupErrs
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, r := range started {
		o.register(r)
		wg.Add(1)
		go func(r running) {
			defer wg.Done()
			if outcome := r.sched.Tick(ctx); outcome != channel.Success {
				mu.Lock()
				errs = append(errs, fmt.Errorf("channel %q: %s", r.cfg.Name, outcome))
				mu.Unlock()
			}
		}(r)
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (o *Orchestrator) start(ctx context.Context, cfgs []config.ChannelConfig) ([]running, error) {
	enabled := filterEnabled(cfgs)
	if len(enabled) == 0 {
		return nil, ErrNoChannels
	}

	started, errs := o.setup(ctx, enabled)
	if len(started) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrNoChannelsStarted, errors.Join(errs...))
	}
	return started, nil
}

// setup builds all channels concurrently. Failed channels are logged and
// left out of the result.
func (o *Orchestrator) setup(ctx context.Context, cfgs []config.ChannelConfig) ([]running, []error) {
	log := o.Deps.Logger
	results := make([]running, len(cfgs))
	errs := make([]error, len(cfgs))

	var wg sync.WaitGroup
	for i, cfg := range cfgs {
		wg.Add(1)
		go func(i int, cfg config.ChannelConfig) {
			defer wg.Done()
			ch, err := o.Channels.Build(ctx, cfg)
			if err != nil {
				errs[i] = err
				return
			}
			sched, err := New(ch, Settings{
				Interval:    cfg.Interval(),
				Timeout:     cfg.Timeout(),
				SendOnStart: cfg.SendOnStart,
			}, o.Deps, o.Origin)
			if err != nil {
				ch.Close()
				errs[i] = &channel.SetupError{Channel: cfg.Name, Err: err}
				return
			}
			results[i] = running{cfg: cfg, ch: ch, sched: sched}
		}(i, cfg)
	}
	wg.Wait()

	var started []running
	var failed []error
	for i := range cfgs {
		if errs[i] != nil {
			log.Error("channel setup failed, skipping", "channel", cfgs[i].Name, "type", cfgs[i].Type, "error", errs[i])
			failed = append(failed, errs[i])
			continue
		}
		started = append(started, results[i])
	}
	return started, failed
}

func (o *Orchestrator) register(r running) {
	o.Deps.Metrics.ChannelStarted()
	if o.Deps.History != nil {
		o.Deps.History.Register(r.cfg.Name, r.ch.Kind(), r.cfg.Interval())
	}
}

// respond answers on-demand report requests until the channel's trigger
// stream ends or ctx is cancelled.
func (o *Orchestrator) respond(ctx context.Context, r running, t channel.Triggerer) {
	log := o.Deps.Logger.With("channel", r.cfg.Name)
	for {
		select {
		case <-ctx.Done():
			return
		case trig, ok := <-t.Triggers():
			if !ok {
				return
			}
			log.Info("on-demand report requested", "from", trig.From, "reply_to", trig.ReplyTo)

			base := context.WithoutCancel(ctx)
			buildCtx, cancelBuild := context.WithTimeout(base, r.cfg.Timeout())
			snap := o.Deps.Builder.Build(buildCtx, o.Origin)
			cancelBuild()

			replyCtx, cancel := context.WithTimeout(base, r.cfg.Timeout())
			if err := t.Reply(replyCtx, trig, snap); err != nil {
				log.Error("on-demand report failed", "error", err)
			}
			cancel()
		}
	}
}

func (o *Orchestrator) closeAll(started []running) {
	for _, r := range started {
		if err := r.ch.Close(); err != nil {
			o.Deps.Logger.Warn("channel close failed", "channel", r.cfg.Name, "error", err)
		}
	}
}

func filterEnabled(cfgs []config.ChannelConfig) []config.ChannelConfig {
	var enabled []config.ChannelConfig
	for _, c := range cfgs {
		if c.IsEnabled() {
			enabled = append(enabled, c)
		}
	}
	return enabled
}
