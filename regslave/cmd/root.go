// Package cmd provides the command-line interface of regslave.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// Environment variables that provide flag defaults. They may also be set in
// a .env file in the working directory.
const (
	envFIFODepth   = "REGSLAVE_FIFO_DEPTH"
	envTraceDB     = "REGSLAVE_TRACE_DB"
	envMonitorPort = "REGSLAVE_MONITOR_PORT"
)

// options holds the persistent flags.
type options struct {
	verbose     bool
	fifoDepth   int
	traceDB     string
	monitor     bool
	monitorPort int
	open        bool
	parallel    bool
	stats       bool
}

var opts options

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "regslave",
	Short: "regslave drives a model of a register-addressed slave device.",
	Long: `regslave drives a model of a register-addressed slave device. ` +
		`It runs YAML scenarios of register sessions and packet frames, ` +
		`feeds packet streams, and records traces of what the device did.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return loadEnv(cmd)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&opts.verbose, "verbose", "v", false,
		"Log flags, frames and sessions to stderr")
	flags.IntVar(&opts.fifoDepth, "fifo-depth", 0,
		"Depth of both FIFOs; overrides the scenario (env "+envFIFODepth+")")
	flags.StringVar(&opts.traceDB, "trace-db", "",
		"Record frame and session tasks into <path>.sqlite3 (env "+envTraceDB+")")
	flags.BoolVar(&opts.monitor, "monitor", false,
		"Serve the web monitor and wait for Ctrl-C when done")
	flags.IntVar(&opts.monitorPort, "monitor-port", 0,
		"Port of the web monitor; 0 picks one (env "+envMonitorPort+")")
	flags.BoolVar(&opts.open, "open", false,
		"Open the web monitor in a browser")
	flags.BoolVar(&opts.parallel, "parallel", false,
		"Replay on the parallel engine")
}

// loadEnv reads .env if present and fills flags that were not given on the
// command line from the environment.
func loadEnv(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	flags := cmd.Flags()

	if v, ok := os.LookupEnv(envFIFODepth); ok && !flags.Changed("fifo-depth") {
		depth, err := strconv.Atoi(v)
		if err != nil || depth < 0 {
			return fmt.Errorf("%s: invalid depth %q", envFIFODepth, v)
		}
		opts.fifoDepth = depth
	}

	if opts.fifoDepth < 0 {
		return fmt.Errorf("--fifo-depth: invalid depth %d", opts.fifoDepth)
	}

	if v, ok := os.LookupEnv(envTraceDB); ok && !flags.Changed("trace-db") {
		opts.traceDB = v
	}

	if v, ok := os.LookupEnv(envMonitorPort); ok && !flags.Changed("monitor-port") {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid port %q", envMonitorPort, v)
		}
		opts.monitorPort = port
	}

	if opts.open {
		opts.monitor = true
	}

	return nil
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
