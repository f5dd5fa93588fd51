package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/makt28/netcanary/internal/web"
)

var rootCmd = &cobra.Command{
	Use:   "canary",
	Short: "Internet connection canary",
	Long: "canary periodically sends a short status report (hostname, start time, host uptime, public IP)\n" +
		"through every configured channel. A report that stops arriving means the host or its\n" +
		"internet connection is down.",
	Version:       web.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCanary,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	registerGlobalFlags(rootCmd)
	registerChannelFlags(rootCmd)

	rootCmd.AddCommand(onceCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(hashPasswordCmd)
}
