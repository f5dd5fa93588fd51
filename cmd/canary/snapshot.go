package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/makt28/netcanary/internal/snapshot"
)

var snapshotFormat string

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print the current report without sending it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		snap := a.builder.Build(cmd.Context(), a.origin)

		out, err := renderSnapshot(snap, snapshotFormat)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func renderSnapshot(snap snapshot.Snapshot, format string) (string, error) {
	switch format {
	case "text":
		return snapshot.Text(snap), nil
	case "html":
		return snapshot.HTML(snap), nil
	case "markdown":
		return snapshot.Markdown(snap) + "\n", nil
	case "json":
		b, err := snapshot.JSON(snap)
		if err != nil {
			return "", err
		}
		return string(b) + "\n", nil
	default:
		return "", fmt.Errorf("unknown format %q (want text, html, markdown or json)", format)
	}
}

func init() {
	snapshotCmd.Flags().StringVarP(&snapshotFormat, "format", "f", "text", "Output format: text, html, markdown, json")
}
