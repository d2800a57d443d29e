package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "quaestor",
	Short: "Quaestor - budget and throttling admission control engine",
	Long: `Quaestor is an admission control engine for autonomous agent operation
costs. Every billable operation is checked against budget policies before
it runs; budget pressure is translated into graduated throttling (delays
and quality degradation) rather than hard failures.

It provides:
  - Budget policies over calendar periods, episodes and single operations
  - Soft-limit warnings and hard-limit enforcement actions
  - Exponential backoff throttling with jitter and quality degradation
  - Role-based control over policy management`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "quaestor.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
