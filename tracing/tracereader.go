package tracing

import (
	"context"

	"github.com/sarchlab/regslave/datarecording"
	"github.com/sarchlab/regslave/sim/timing"
)

// TaskQuery selects tasks from a trace.
type TaskQuery struct {
	// Kind keeps only tasks of the given kind when not empty.
	Kind string

	// Where keeps only tasks of the given domain when not empty.
	Where string

	// WithSteps loads the steps of each task.
	WithSteps bool

	Limit  int
	Offset int
}

// TraceReader reads back the tasks written by a DBTracer.
type TraceReader struct {
	reader datarecording.DataReader
}

// NewTraceReader creates a TraceReader.
func NewTraceReader(reader datarecording.DataReader) *TraceReader {
	reader.MapTable(TaskTable, taskTableEntry{})
	reader.MapTable(StepTable, stepTableEntry{})

	return &TraceReader{reader: reader}
}

// ListTasks returns the tasks that match the query, ordered by start time,
// and the number of tasks that match before the limit is applied.
func (r *TraceReader) ListTasks(
	ctx context.Context,
	query TaskQuery,
) ([]Task, int, error) {
	params := datarecording.QueryParams{
		OrderBy: "StartTime, ID",
		Limit:   query.Limit,
		Offset:  query.Offset,
	}

	if query.Kind != "" {
		params.Where = "Kind = ?"
		params.Args = append(params.Args, query.Kind)
	}

	if query.Where != "" {
		if params.Where != "" {
			params.Where += " AND "
		}
		params.Where += "Location = ?"
		params.Args = append(params.Args, query.Where)
	}

	rows, total, err := r.reader.Query(ctx, TaskTable, params)
	if err != nil {
		return nil, 0, err
	}

	tasks := make([]Task, 0, len(rows))
	for _, row := range rows {
		e := row.(*taskTableEntry)
		task := Task{
			ID:        e.ID,
			ParentID:  e.ParentID,
			Kind:      e.Kind,
			What:      e.What,
			Where:     e.Location,
			StartTime: timing.VTimeInCycle(e.StartTime),
			EndTime:   timing.VTimeInCycle(e.EndTime),
		}

		if query.WithSteps {
			task.Steps, err = r.steps(ctx, e.ID)
			if err != nil {
				return nil, 0, err
			}
		}

		tasks = append(tasks, task)
	}

	return tasks, total, nil
}

func (r *TraceReader) steps(ctx context.Context, taskID string) ([]TaskStep, error) {
	rows, _, err := r.reader.Query(ctx, StepTable, datarecording.QueryParams{
		Where:   "TaskID = ?",
		Args:    []any{taskID},
		OrderBy: "Time, rowid",
	})
	if err != nil {
		return nil, err
	}

	steps := make([]TaskStep, 0, len(rows))
	for _, row := range rows {
		e := row.(*stepTableEntry)
		steps = append(steps, TaskStep{
			Time: timing.VTimeInCycle(e.Time),
			What: e.What,
		})
	}

	return steps, nil
}

// Close closes the underlying reader.
func (r *TraceReader) Close() error {
	return r.reader.Close()
}
