// Command shmrpc-bench is a smoke-test and benchmarking CLI for the
// shared-memory RPC core: it attaches to a running daemon's region pair
// and issues calls, reporting latency and throughput.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/srg/shmrpc/pkg/config"
)

var (
	flagShmName  string
	flagCapacity int
	flagTimeout  time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "shmrpc-bench",
	Short:         "Exercise the shmrpc IPC core against a running daemon",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	defaults := config.DefaultConfig()
	rootCmd.PersistentFlags().StringVar(&flagShmName, "shm-name", defaults.ShmName, "base shared-memory name for the ring pair")
	rootCmd.PersistentFlags().IntVar(&flagCapacity, "capacity", defaults.Capacity, "per-ring data area size in bytes")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", defaults.DefaultTimeout, "per-call timeout")

	rootCmd.AddCommand(connectCmd, callCmd, benchCmd)
}

func currentConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.ShmName = flagShmName
	cfg.Capacity = flagCapacity
	cfg.DefaultTimeout = flagTimeout
	return cfg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "shmrpc-bench: %v\n", err)
		os.Exit(1)
	}
}
