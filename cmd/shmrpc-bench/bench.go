package main

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/srg/shmrpc/rpcsync"
)

var (
	flagBenchCalls       int
	flagBenchConcurrency int
	flagBenchMethod      string
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Issue many calls at a configurable concurrency and report latency percentiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := rpcsync.New(currentConfig())
		defer f.Shutdown()

		if err := f.ConnectSync(context.Background()); err != nil {
			return fmt.Errorf("connect: %w", err)
		}

		latencies := make([]time.Duration, flagBenchCalls)
		var wg sync.WaitGroup
		sem := make(chan struct{}, flagBenchConcurrency)
		var failures int64
		var mu sync.Mutex

		start := time.Now()
		for i := 0; i < flagBenchCalls; i++ {
			i := i
			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()

				callStart := time.Now()
				_, err := f.CallSync(context.Background(), flagBenchMethod, nil, flagTimeout)
				latencies[i] = time.Since(callStart)
				if err != nil {
					mu.Lock()
					failures++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		elapsed := time.Since(start)

		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		fmt.Printf("calls=%d concurrency=%d failures=%d elapsed=%s throughput=%.1f/s\n",
			flagBenchCalls, flagBenchConcurrency, failures, elapsed, float64(flagBenchCalls)/elapsed.Seconds())
		fmt.Printf("p50=%s p95=%s p99=%s\n", percentile(latencies, 0.50), percentile(latencies, 0.95), percentile(latencies, 0.99))
		return nil
	},
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

func init() {
	benchCmd.Flags().IntVar(&flagBenchCalls, "calls", 1000, "total number of calls to issue")
	benchCmd.Flags().IntVar(&flagBenchConcurrency, "concurrency", 8, "number of calls in flight at once")
	benchCmd.Flags().StringVar(&flagBenchMethod, "method", "ping", "method name to call")
}
