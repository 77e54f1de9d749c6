package cmd

import (
	"fmt"
	"io"

	"github.com/sarchlab/regslave/device"
	"github.com/sarchlab/regslave/sim/timing"
	"github.com/sarchlab/regslave/tracing"
)

// taskStats collects what --stats prints after a scenario.
type taskStats struct {
	steps    *tracing.StepCountTracer
	frames   *tracing.TotalTimeTracer
	sessions *tracing.TotalTimeTracer
}

func allTasks(tracing.Task) bool { return true }

func newTaskStats(clock timing.TimeTeller) *taskStats {
	return &taskStats{
		steps:    tracing.NewStepCountTracer(allTasks),
		frames:   tracing.NewTotalTimeTracer(clock, tracing.KindIs(device.TaskKindFrame)),
		sessions: tracing.NewTotalTimeTracer(clock, tracing.KindIs(device.TaskKindSession)),
	}
}

func (s *taskStats) attach(dev *device.Comp) {
	dev.Trace(s.steps)
	dev.Trace(s.frames)
	dev.Trace(s.sessions)
}

func (s *taskStats) report(w io.Writer) {
	for _, kind := range []struct {
		name string
		t    *tracing.TotalTimeTracer
	}{
		{"frames", s.frames},
		{"sessions", s.sessions},
	} {
		fmt.Fprintf(w, "%s: %d tasks, %d cycles, %.2f cycles per task\n",
			kind.name, kind.t.TaskCount(), kind.t.TotalTime(), kind.t.AverageTime())
	}

	for _, name := range s.steps.GetStepNames() {
		fmt.Fprintf(w, "  %-16s %d times in %d tasks\n",
			name, s.steps.GetStepCount(name), s.steps.GetTaskCount(name))
	}
}
