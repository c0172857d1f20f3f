package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "foreman",
	Short: "Workforce Orchestration Engine",
	Long: `Foreman decomposes free-form work requests into dependency-aware task
plans and executes them concurrently against an agent workforce.

Core capabilities:
- Decomposes a request into a validated task DAG
- Runs independent tasks in parallel with bounded concurrency
- Streams typed progress events while work runs
- Supports pause, resume, cancel, and checkpoint rollback
- Estimates cost and duration before committing to execution`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
