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
	Use:   "mekong",
	Short: "Mekong - Vietnamese stock market data gateway",
	Long: `Mekong is an authenticated gateway for Vietnamese stock market data.

It brokers requests for company facts, financial statements, and trading
data from upstream providers (VCI, TCBS, MSN), providing:
  - JWT-based user authentication and registration
  - Interchangeable per-source provider adapters
  - Retry with exponential backoff for transient upstream failures
  - CSV and column-oriented JSON output
  - Prometheus metrics and structured logging`,
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
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
