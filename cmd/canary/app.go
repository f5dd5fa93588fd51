package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/makt28/netcanary/internal/config"
	"github.com/makt28/netcanary/internal/logging"
	"github.com/makt28/netcanary/internal/snapshot"
)

// app is the process-wide state shared by every command.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	clock   clockwork.Clock
	client  *http.Client
	origin  snapshot.Origin
	builder *snapshot.Builder
}

// newApp loads the config file, applies flag overrides and appends the
// channels given on the command line.
func newApp(cmd *cobra.Command) (*app, error) {
	bootLog := logging.New(os.Stderr, logLevel, logFormat)

	cfg, err := config.Load(configPath, cmd.Flags().Changed("config"), bootLog)
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if statusListen != "" {
		cfg.Status.Listen = statusListen
	}
	if hostname != "" {
		cfg.Hostname = hostname
	}
	if ipLookupURL != "" {
		cfg.IPLookup.URL = ipLookupURL
	}

	log := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	fromFlags, skipped, err := flagChannelsOpts.toChannels()
	if err != nil {
		return nil, err
	}
	for _, s := range skipped {
		log.Warn("flag channel skipped", "reason", s)
	}
	cfg.Channels = append(cfg.Channels, fromFlags...)

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	host := cfg.Hostname
	if host == "" {
		host, err = os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("could not determine hostname: %w", err)
		}
	}

	clock := clockwork.NewRealClock()
	client := &http.Client{}
	resolver := snapshot.NewHTTPResolver(cfg.IPLookup.URL, client)

	return &app{
		cfg:    cfg,
		log:    log,
		clock:  clock,
		client: client,
		origin: snapshot.Origin{Hostname: host, Started: clock.Now()},
		builder: snapshot.NewBuilder(clock, snapshot.HostUptime, resolver,
			cfg.IPLookup.Timeout(), log),
	}, nil
}
