// stalecache-demo walks a simulated hypervisor through the cache
// lifecycle: cold load, fresh reads, threshold expiry, session flush,
// deletion and connection recovery. Time is simulated so the walk-through
// runs instantly.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/krisalay/stalecache/clock"
	"github.com/krisalay/stalecache/config"
	"github.com/krisalay/stalecache/engine"
	"github.com/krisalay/stalecache/proxy"
	"github.com/krisalay/stalecache/remote"
	"github.com/krisalay/stalecache/session"
	"github.com/krisalay/stalecache/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var threshold string
	var logLevel string

	flagSet := pflag.NewFlagSet("stalecache-demo", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to a YAML config file (default: $"+config.EnvVar+")")
	flagSet.StringVar(&threshold, "threshold", "", "override freshness_threshold, e.g. 2s")
	flagSet.StringVar(&logLevel, "log-level", "", "override log_level (debug, info, warn, error)")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := loadConfig(configPath, threshold, logLevel)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	ctx := context.Background()

	fmt.Println("\n==================== SYSTEM BOOT ====================")
	fmt.Println("FRESHNESS THRESHOLD :", cfg.Freshness())
	fmt.Println("EMPTY COLLECTION    :", cfg.EmptyCollection)
	fmt.Println("REGISTRY CAPACITY   :", cfg.RegistryCapacity)

	// ---------------- Simulated Host ----------------
	clk := clock.Fake(time.Now())
	sess := session.New("hv-demo", clk)
	host := remote.NewHost(sess, clk)

	host.Create("vm/web01", proxy.ClassVirtualMachine, map[string]any{
		proxy.PropName:  "web01",
		proxy.PropState: "Running",
	})
	host.Create("port/web01-0", "Port", map[string]any{proxy.PropName: "eth0", proxy.PropMACAddress: "00:15:5D:00:00:01"})
	host.Create("conn/web01-0", "Connection", map[string]any{proxy.PropSwitchName: "external"})
	if err := host.Associate("vm/web01", proxy.RoleAdapter, "port/web01-0"); err != nil {
		return err
	}
	if err := host.Associate("port/web01-0", proxy.RoleConnection, "conn/web01-0"); err != nil {
		return err
	}

	// ---------------- Engine ----------------
	metrics := &types.CountingMetrics{}
	eng := engine.ForSession(sess, cfg.Freshness(), clk, metrics, logger)
	inv := proxy.NewInventory(host, eng, cfg.RegistryCapacity, cfg.EmptyMode())
	past := cfg.Freshness() + time.Second

	// ====================================================
	fmt.Println("\n==================== 1) COLD LOAD ====================")
	vm, err := inv.VirtualMachine(ctx, "vm/web01")
	if err != nil {
		return err
	}
	report(vm.Name(ctx, types.EnsureUpdated))("PROXY  → vm name")
	fmt.Println("HOST   → fetches =", host.Fetches())

	// ====================================================
	fmt.Println("\n==================== 2) FRESH READ ====================")
	host.Set("vm/web01", proxy.PropState, "Off")
	report(vm.State(ctx, types.EnsureUpdated))("PROXY  → vm state (within threshold)")
	fmt.Println("HOST   → fetches =", host.Fetches())

	// ====================================================
	fmt.Println("\n==================== 3) THRESHOLD EXPIRY ====================")
	clk.Advance(past)
	fmt.Println("CLOCK  → advanced", past)
	report(vm.State(ctx, types.EnsureUpdated))("PROXY  → vm state")
	fmt.Println("HOST   → fetches =", host.Fetches())

	// ====================================================
	fmt.Println("\n==================== 4) SESSION FLUSH ====================")
	host.Set("vm/web01", proxy.PropName, "web01-renamed")
	clk.Advance(time.Millisecond)
	sess.FlushCache()
	fmt.Println("SESSION → cache flushed")
	report(vm.Name(ctx, types.EnsureUpdated))("PROXY  → vm name")

	// ====================================================
	fmt.Println("\n==================== 5) CONNECTION RECOVERY ====================")
	adapters, err := vm.NetworkAdapters(ctx, types.EnsureUpdated)
	if err != nil {
		return err
	}
	adapter := adapters[0]
	report(adapter.SwitchName(ctx, types.EnsureUpdated))("PROXY  → adapter switch")

	host.Delete("conn/web01-0")
	host.Create("conn/web01-0b", "Connection", map[string]any{proxy.PropSwitchName: "internal"})
	host.Associate("port/web01-0", proxy.RoleConnection, "conn/web01-0b")
	clk.Advance(past)
	fmt.Println("HOST   → adapter reconnected to a new switch")
	report(adapter.SwitchName(ctx, types.EnsureUpdated))("PROXY  → adapter switch")

	// ====================================================
	fmt.Println("\n==================== 6) DELETION ====================")
	vm.OnDeleted(func() { fmt.Println("PROXY  → vm deleted notification") })
	host.Delete("vm/web01")
	clk.Advance(past)
	report(vm.Name(ctx, types.EnsureUpdated))("PROXY  → vm name (frozen)")
	fmt.Println("PROXY  → deleted =", vm.IsDeleted())
	fmt.Println("INVENTORY → cached proxies =", len(inv.Cached()))

	// ====================================================
	fmt.Println("\n==================== 7) TEMPLATE ====================")
	tmpl := proxy.NewTemplateNetworkAdapter(eng, map[string]any{proxy.PropName: "New Adapter"})
	report(tmpl.Name(ctx, types.EnsureAssociatorsUpdated))("PROXY  → template name")
	fmt.Println("PROXY  → is template =", tmpl.IsTemplate())

	// ====================================================
	fmt.Println("\n==================== METRICS ====================")
	fmt.Printf("HITS      : %d\n", metrics.Hits.Load())
	fmt.Printf("REFRESHES : %d\n", metrics.Refreshes.Load())
	fmt.Printf("DELETES   : %d\n", metrics.Deletes.Load())
	fmt.Printf("RECOVERS  : %d\n", metrics.Recovers.Load())
	fmt.Printf("FETCHES   : %d\n", host.Fetches())
	return nil
}

func loadConfig(path, threshold, logLevel string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if threshold != "" {
		cfg.FreshnessThreshold = threshold
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// report prints a read result under label.
func report(v string, err error) func(label string) {
	return func(label string) {
		if err != nil {
			fmt.Printf("%s = error: %v\n", label, err)
			return
		}
		fmt.Printf("%s = %s\n", label, v)
	}
}
