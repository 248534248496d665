// Package cmd wires the harvester's command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Scheduled news harvester for the Financial Times world section.",
		Long: `harvester maintains a fresh local mirror of recently published
world-news articles. It discovers articles from the section listing on a
schedule, renders them, extracts structured records, and upserts them
into Postgres keyed by canonical URL. A read-only HTTP API serves the
collected articles.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: environment only)")

	cmd.AddCommand(newHarvestCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
