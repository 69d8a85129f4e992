// Package cmd implements the dxagent command-line entry point: flag
// parsing layered over the persisted config, then one of two run modes
// (foreground daemon or single JSON snapshot).
package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ftahirops/dxagent/config"
	"github.com/ftahirops/dxagent/consumer"
	"github.com/ftahirops/dxagent/engine"
	"github.com/ftahirops/dxagent/graph"
	"github.com/ftahirops/dxagent/model"
	"github.com/ftahirops/dxagent/producer"
	"github.com/ftahirops/dxagent/registry"
	"github.com/ftahirops/dxagent/rules"
)

// Version is set at build time via ldflags.
var Version = "0.1.0"

// ExitCodeError lets a run mode request a specific process exit code
// without main.go having to print "Error:" noise for expected conditions
// (like -json mode surfacing a fatal registry load failure).
type ExitCodeError struct {
	Code int
	Err  error
}

func (e ExitCodeError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit %d", e.Code)
}

func (e ExitCodeError) Unwrap() error { return e.Err }

func printUsage() {
	fmt.Fprintf(os.Stderr, `dxagent v%s — node-resident service-assurance agent

Usage:
  dxagent [OPTIONS]

Options:
  -interval N       Collection interval in seconds (default: from config, else 3)
  -history N        History window in seconds used to size ring buffers (default: from config, else 60)
  -resources DIR    Directory holding metrics.csv and rules.csv (default: from config, else /etc/dxagent)
  -json             Collect a few ticks and print one AssuranceSnapshot as JSON, then exit
  -verbose          Log a line per degraded node and firing symptom each tick
  -prom             Enable the Prometheus /metrics endpoint
  -prom-addr ADDR   Prometheus listen address (default: from config, else :9100)
  -version          Print version and exit

Examples:
  sudo dxagent
  sudo dxagent -interval 2 -history 120
  sudo dxagent -json
  sudo dxagent -prom -prom-addr :9100
`, Version)
}

// Run parses flags, builds the engine and runs it to completion (or until
// interrupted).
func Run() error {
	userCfg := config.Load()

	var (
		intervalSec int
		historySec  int
		resources   string
		jsonMode    bool
		verbose     bool
		promEnabled bool
		promAddr    string
		showVersion bool
	)

	flag.IntVar(&intervalSec, "interval", userCfg.InputPeriodSeconds, "Collection interval in seconds")
	flag.IntVar(&historySec, "history", userCfg.HistorySeconds, "History window in seconds")
	flag.StringVar(&resources, "resources", userCfg.ResourcesDirectory, "Directory holding metrics.csv and rules.csv")
	flag.BoolVar(&jsonMode, "json", false, "Print one AssuranceSnapshot as JSON and exit")
	flag.BoolVar(&verbose, "verbose", userCfg.Verbose, "Log a line per degraded node and firing symptom each tick")
	flag.BoolVar(&promEnabled, "prom", userCfg.PrometheusAddr != "", "Enable the Prometheus metrics endpoint")
	flag.StringVar(&promAddr, "prom-addr", defaultPromAddr(userCfg.PrometheusAddr), "Prometheus listen address")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")

	flag.Usage = printUsage
	flag.Parse()

	if showVersion {
		fmt.Printf("dxagent v%s\n", Version)
		return nil
	}

	cfg := userCfg
	cfg.InputPeriodSeconds = intervalSec
	cfg.HistorySeconds = historySec
	cfg.ResourcesDirectory = resources
	cfg.Verbose = verbose
	if promEnabled {
		cfg.PrometheusAddr = promAddr
	}

	if os.Geteuid() != 0 {
		fmt.Fprintln(os.Stderr, "Warning: running without root — some metrics (disk, process) may be unavailable")
	}

	reg, regErrs := registry.Load(resourcePath(cfg, "metrics.csv"))
	for _, e := range regErrs {
		fmt.Fprintf(os.Stderr, "dxagent: %v\n", e)
	}
	if reg == nil {
		return ExitCodeError{Code: 1, Err: fmt.Errorf("cannot continue without a metric registry")}
	}

	rs, ruleErrs := rules.Load(resourcePath(cfg, "rules.csv"), reg)
	for _, e := range ruleErrs {
		fmt.Fprintf(os.Stderr, "dxagent: %v\n", e)
	}
	if rs == nil {
		return ExitCodeError{Code: 1, Err: fmt.Errorf("cannot continue without a ruleset")}
	}

	store := model.NewStore(cfg.RingBufferCapacity())
	g := graph.New(store, reg, rs)

	eng := engine.New(store, reg, rs, g, producer.NewRegistry(), nil)
	wireProducers(eng)

	var consumers []consumer.Consumer
	if cfg.Verbose {
		consumers = append(consumers, &consumer.LogConsumer{})
	}
	if cfg.PrometheusAddr != "" {
		promConsumer := consumer.NewPrometheusConsumer()
		consumers = append(consumers, promConsumer)
		srv := &http.Server{
			Addr:              cfg.PrometheusAddr,
			Handler:           promConsumer.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Fprintf(os.Stderr, "dxagent: prometheus endpoint: %v\n", err)
			}
		}()
		fmt.Fprintf(os.Stderr, "dxagent: prometheus metrics listening on %s\n", cfg.PrometheusAddr)
	}
	eng.Consumers = consumers

	interval := time.Duration(cfg.InputPeriodSeconds) * time.Second
	if interval <= 0 {
		interval = time.Second
	}

	if jsonMode {
		return runJSON(eng, interval)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "dxagent: warning: could not save config: %v\n", err)
	}

	return eng.Run(context.Background(), interval)
}

// wireProducers registers every built-in telemetry source with the engine.
func wireProducers(eng *engine.Engine) {
	eng.Use(&producer.CPUProducer{})
	eng.Use(&producer.MemoryProducer{})
	eng.Use(&producer.DiskProducer{})
	eng.Use(&producer.NetworkProducer{})
	eng.Use(&producer.SensorsProducer{})
	eng.Use(&producer.ProcGlobalProducer{})
	eng.Use(&producer.SysInfoProducer{})
	eng.Use(&producer.VirtualBoxProducer{})
	eng.Use(&producer.KBNetProducer{})
}

// runJSON ticks twice (the first tick seeds counters so the second has a
// real delta to report) and prints the resulting snapshot as JSON.
func runJSON(eng *engine.Engine, interval time.Duration) error {
	eng.Tick(time.Now())
	time.Sleep(interval)
	snap := eng.Tick(time.Now())

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

func defaultPromAddr(configured string) string {
	if configured != "" {
		return configured
	}
	return ":9100"
}

func resourcePath(cfg config.Config, name string) string {
	dir := cfg.ResourcesDirectory
	if dir == "" {
		dir = "/etc/dxagent"
	}
	return dir + "/" + name
}
