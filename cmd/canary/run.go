package main

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/makt28/netcanary/internal/channel"
	"github.com/makt28/netcanary/internal/history"
	"github.com/makt28/netcanary/internal/metrics"
	"github.com/makt28/netcanary/internal/scheduler"
	"github.com/makt28/netcanary/internal/web"
)

func runCanary(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	a.log.Info("starting canary", "hostname", a.origin.Hostname, "channels", len(a.cfg.Channels), "version", web.Version)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	hist := history.NewStore(a.clock, a.cfg.Status.HistoryPoints)

	var wg sync.WaitGroup
	if a.cfg.Status.Listen != "" {
		var auth *web.BasicAuth
		if a.cfg.Status.Username != "" {
			limiter := web.NewLoginRateLimiter(5, 5*time.Minute, a.clock)
			auth = web.NewBasicAuth(a.cfg.Status.Username, a.cfg.Status.PasswordHash, limiter, a.log)
			wg.Add(1)
			go func() {
				defer wg.Done()
				limiter.Cleanup(ctx, 5*time.Minute)
			}()
		}
		router := web.NewRouter(web.RouterOptions{
			History:  hist,
			Gatherer: reg,
			Auth:     auth,
			Clock:    a.clock,
			Started:  a.origin.Started,
		})

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := web.Serve(ctx, a.cfg.Status.Listen, router, a.log); err != nil {
				a.log.Error("status endpoint failed", "address", a.cfg.Status.Listen, "error", err)
			}
		}()
	}

	orch := &scheduler.Orchestrator{
		Channels: channel.NewFactory(a.log, a.client, a.clock),
		Deps: scheduler.Deps{
			Builder: a.builder,
			Clock:   a.clock,
			Logger:  a.log,
			Metrics: m,
			History: hist,
		},
		Origin: a.origin,
	}
	runErr := orch.Run(ctx, a.cfg.Channels)

	stop()
	wg.Wait()
	return runErr
}
