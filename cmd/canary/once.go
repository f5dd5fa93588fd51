package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/makt28/netcanary/internal/channel"
	"github.com/makt28/netcanary/internal/history"
	"github.com/makt28/netcanary/internal/scheduler"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Send one report on every channel and exit",
	Long:  "once delivers a single report on every enabled channel. It exits non-zero if any channel fails.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(cmd)
		if err != nil {
			return err
		}

		orch := &scheduler.Orchestrator{
			Channels: channel.NewFactory(a.log, a.client, a.clock),
			Deps: scheduler.Deps{
				Builder: a.builder,
				Clock:   a.clock,
				Logger:  a.log,
				History: history.NewStore(a.clock, 1),
			},
			Origin: a.origin,
		}
		return orch.Once(ctx, a.cfg.Channels)
	},
}
