package cmd

import (
	"fmt"

	"github.com/sarchlab/regslave/scenario"
	"github.com/sarchlab/regslave/sim/id"
	"github.com/sarchlab/regslave/sim/naming"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run SCENARIO...",
	Short: "Run scenarios step by step.",
	Long: "`run` executes each step of each scenario to completion before " +
		"the next one starts.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScenarios(cmd, args, false)
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay SCENARIO...",
	Short: "Replay scenarios on a timing engine.",
	Long: "`replay` sends the register sessions of a scenario from a host " +
		"and its packet bytes from a packet source at the same time, one " +
		"byte per cycle. Use --parallel to run the two on separate goroutines.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScenarios(cmd, args, true)
	},
}

func init() {
	for _, c := range []*cobra.Command{runCmd, replayCmd} {
		rootCmd.AddCommand(c)
		c.Flags().BoolVar(&opts.stats, "stats", false,
			"Print task counts and times of frames and sessions")
	}
}

func runScenarios(cmd *cobra.Command, paths []string, replay bool) error {
	if replay && opts.parallel {
		id.UseParallelIDGenerator()
	}

	e, err := newEnv()
	if err != nil {
		return err
	}

	defer e.close()

	failed := 0

	for i, path := range paths {
		sc, err := scenario.Load(path)
		if err != nil {
			return err
		}

		dev := sc.DeviceBuilder(opts.fifoDepth).
			Build(naming.BuildNameWithIndex("", "Dev", i))
		e.attach(dev)

		var stats *taskStats
		if opts.stats {
			stats = newTaskStats(e.clock)
			stats.attach(dev)
		}

		runner := scenario.NewRunner(dev)
		if e.monitor != nil {
			bar := e.monitor.CreateProgressBar(sc.Name, uint64(len(sc.Steps)))
			runner.WithProgress(bar)
			defer e.monitor.CompleteProgressBar(bar)
		}

		var res *scenario.Result
		if replay {
			engine := e.newEngine()
			e.clock.use(engine)

			res, err = runner.Replay(engine, sc)
			if err != nil {
				return err
			}
		} else {
			e.clock.use(runner)
			res = runner.Run(sc)
		}

		res.Report(cmd.OutOrStdout())
		if stats != nil {
			stats.report(cmd.OutOrStdout())
		}
		if !res.OK() {
			failed++
		}
	}

	e.hold()

	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(paths))
	}

	return nil
}
