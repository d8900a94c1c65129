package cmd

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pgasrt/pgasrt/rt"
	"github.com/pgasrt/pgasrt/rt/trace"
)

var (
	// CLI flags for the runtime configuration
	logLevel         string // Log verbosity level
	configPath       string // Optional YAML config file
	pes              int    // Number of processing elements (0 = derive from CPUs/env)
	regionSize       int64  // Per-PE shared region size in bytes
	slots            int    // Allocation slot capacity
	pinThreads       bool   // Pin PE threads to CPUs (Linux)
	barrierTimeoutMs int64  // Barrier timeout in milliseconds (0 = wait forever)
	traceLevel       string // Operation trace level (none, ops)
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "pgasrt",
	Short: "Thread-emulated PGAS runtime with remote get/put, collectives and barriers",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
		return nil
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildConfig assembles the runtime configuration in precedence order:
// environment, then YAML config file, then explicitly set flags.
func buildConfig(cmd *cobra.Command) (rt.Config, error) {
	cfg := rt.FromEnv()

	if configPath != "" {
		fileCfg, err := LoadConfigFile(configPath)
		if err != nil {
			return rt.Config{}, err
		}
		fileCfg.Apply(&cfg)
	}

	flags := cmd.Flags()
	if flags.Changed("pes") {
		cfg.PEs = pes
	}
	if flags.Changed("region-size") {
		cfg.RegionSize = regionSize
	}
	if flags.Changed("slots") {
		cfg.Slots = slots
	}
	if flags.Changed("pin") {
		cfg.PinThreads = pinThreads
	}
	if flags.Changed("barrier-timeout-ms") {
		cfg.BarrierTimeout = time.Duration(barrierTimeoutMs) * time.Millisecond
	}
	if flags.Changed("trace") {
		cfg.TraceLevel = trace.Level(traceLevel)
	}
	return cfg, cfg.Validate()
}

// init sets up CLI flags and subcommands
func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	pf.StringVar(&configPath, "config", "", "YAML runtime config file")
	pf.IntVar(&pes, "pes", 0, "Number of processing elements (default: one per CPU, capped at 16)")
	pf.Int64Var(&regionSize, "region-size", rt.DefaultRegionSize, "Per-PE shared region size in bytes")
	pf.IntVar(&slots, "slots", rt.DefaultSlots, "Allocation slot capacity")
	pf.BoolVar(&pinThreads, "pin", false, "Pin each PE thread to a CPU (Linux only)")
	pf.Int64Var(&barrierTimeoutMs, "barrier-timeout-ms", 0, "Barrier timeout in ms (0 waits forever)")
	pf.StringVar(&traceLevel, "trace", "none", "Operation trace level (none, ops)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(benchCmd)
}
