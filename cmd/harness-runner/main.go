package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	version = "dev" // set by build flags
)

var rootCmd = &cobra.Command{
	Use:   "harness-runner",
	Short: "Integration test harness for a nomos validator/executor stack",
	Long: `harness-runner deploys a validator/executor cluster, drives it with
pluggable workloads (transactions, data availability, chaos restarts), and
evaluates pluggable expectations (consensus liveness, inclusion ratios)
against it, across a local-process, Docker Compose, or Kubernetes backend.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
