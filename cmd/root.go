// Package cmd defines and implements the CLI commands for the appmeta
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "appmeta",
		Short: "A batch scraper for app-metadata profile pages.",
		Long: `appmeta reads a worklist of app profile links from a spreadsheet,
renders each page in a headless browser, extracts the metadata fields, and
writes the results back out as a spreadsheet. Failed links are retried for a
bounded number of rounds and can be persisted for a follow-up run.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml if present)")

	cmd.AddCommand(newScrapeCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
