// stalecache-bench measures Get throughput when many goroutines read
// many updaters at once, and how many remote round trips survive
// coalescing.
package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/pflag"

	stalecache "github.com/krisalay/stalecache"
	"github.com/krisalay/stalecache/clock"
	"github.com/krisalay/stalecache/engine"
	"github.com/krisalay/stalecache/remote"
	"github.com/krisalay/stalecache/session"
	"github.com/krisalay/stalecache/types"
)

func main() {
	var (
		objects    int
		goroutines int
		opsPerG    int
		threshold  time.Duration
	)

	flagSet := pflag.NewFlagSet("stalecache-bench", pflag.ContinueOnError)
	flagSet.IntVar(&objects, "objects", 10000, "number of remote objects")
	flagSet.IntVar(&goroutines, "goroutines", 200, "concurrent readers")
	flagSet.IntVar(&opsPerG, "ops", 5000, "reads per goroutine")
	flagSet.DurationVar(&threshold, "threshold", 50*time.Millisecond, "freshness threshold")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	fmt.Println("\n================ UPDATER LOAD BENCHMARK =================")
	fmt.Println("CONFIG")
	fmt.Println("---------------------------------")
	fmt.Println("Objects      :", objects)
	fmt.Println("Goroutines   :", goroutines)
	fmt.Println("Ops/Goroutine:", opsPerG)
	fmt.Println("Threshold    :", threshold)
	fmt.Println("---------------------------------")

	// ---------------- Remote Host ----------------
	clk := clock.Real()
	sess := session.New("hv-bench", clk)
	host := remote.NewHost(sess, clk)

	metrics := &types.CountingMetrics{}
	eng := engine.ForSession(sess, threshold, clk, metrics, nil)

	updaters := make([]*stalecache.Updater[*remote.Handle], objects)
	for i := range updaters {
		h := host.Create(fmt.Sprintf("vm/%d", i), "VirtualMachine", map[string]any{"Index": i})
		updaters[i] = stalecache.NewHandleUpdater(eng, h)
	}

	// ---------------- Load Test ----------------
	fmt.Println("Running concurrency benchmark...")

	start := time.Now()

	wg := sync.WaitGroup{}
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < opsPerG; j++ {
				updaters[(id+j)%objects].Get(ctx, types.EnsureUpdated)
			}
		}(i)
	}

	wg.Wait()

	duration := time.Since(start)
	totalOps := goroutines * opsPerG

	fmt.Println("\n================ RESULTS =================")
	fmt.Printf("Total Operations : %d\n", totalOps)
	fmt.Printf("Total Time       : %v\n", duration)
	fmt.Printf("Throughput       : %.2f ops/sec\n", float64(totalOps)/duration.Seconds())
	fmt.Printf("Refreshes        : %d\n", metrics.Refreshes.Load())
	fmt.Printf("Remote Fetches   : %d\n", host.Fetches())
	fmt.Println("=========================================")
}
