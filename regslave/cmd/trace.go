package cmd

import (
	"fmt"

	"github.com/sarchlab/regslave/datarecording"
	"github.com/sarchlab/regslave/tracing"
	"github.com/spf13/cobra"
)

var traceQuery tracing.TaskQuery

var traceCmd = &cobra.Command{
	Use:   "trace DB_FILE",
	Short: "List the tasks recorded with --trace-db.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dr, err := datarecording.NewReader(args[0])
		if err != nil {
			return err
		}

		r := tracing.NewTraceReader(dr)
		defer r.Close()

		tasks, total, err := r.ListTasks(contextOrBackground(cmd.Context()), traceQuery)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, t := range tasks {
			fmt.Fprintf(out, "%s %-7s %-12s %d-%d",
				t.ID, t.Kind, t.Where, t.StartTime, t.EndTime)
			for _, s := range t.Steps {
				fmt.Fprintf(out, " | %s", s.What)
			}
			fmt.Fprintln(out)
		}

		fmt.Fprintf(out, "%d of %d tasks\n", len(tasks), total)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(traceCmd)

	f := traceCmd.Flags()
	f.StringVar(&traceQuery.Kind, "kind", "", "Only tasks of this kind (frame, session)")
	f.StringVar(&traceQuery.Where, "where", "", "Only tasks of this domain")
	f.IntVar(&traceQuery.Limit, "limit", 0, "Maximum number of tasks")
	f.IntVar(&traceQuery.Offset, "offset", 0, "Tasks to skip")
	f.BoolVar(&traceQuery.WithSteps, "steps", false, "Print the steps of each task")
}
