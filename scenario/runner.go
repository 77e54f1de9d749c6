package scenario

import (
	"bytes"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/sarchlab/regslave/device"
	"github.com/sarchlab/regslave/link"
	"github.com/sarchlab/regslave/packet"
	"github.com/sarchlab/regslave/sim/timing"
	"github.com/sarchlab/regslave/transaction"
)

// StepResult is what one step did.
type StepResult struct {
	Index int
	Kind  string

	// Session steps.
	MISO    []byte
	Outcome transaction.Outcome

	// Value is the value read by a read step or checked by an expect step.
	Value   uint32
	ValueOK bool

	// Verdicts of the frames that the step completed.
	Verdicts []packet.Verdict

	// Drained holds the bytes taken by a drain step.
	Drained []byte

	// Start and End are only set by Replay.
	Start, End timing.VTimeInCycle
}

// A Mismatch is an expectation that did not hold.
type Mismatch struct {
	Step int
	What string
	Want string
	Got  string
}

func (m Mismatch) Error() string {
	return fmt.Sprintf("step %d: %s: want %s, got %s", m.Step, m.What, m.Want, m.Got)
}

// Result is the outcome of a scenario.
type Result struct {
	Scenario   string
	Steps      []StepResult
	Mismatches []Mismatch

	// Verdicts lists the verdict of every completed frame, in order.
	Verdicts []packet.Verdict

	// Drained holds every byte taken from the outbound FIFO.
	Drained []byte

	// Final is the state of the device after the last step.
	Final device.Snapshot
}

// OK returns true if every expectation held.
func (r *Result) OK() bool {
	return len(r.Mismatches) == 0
}

// Report writes a human readable summary.
func (r *Result) Report(w io.Writer) {
	fmt.Fprintf(w, "scenario %s: %d steps\n", r.Scenario, len(r.Steps))

	for _, s := range r.Steps {
		fmt.Fprintf(w, "  [%d] %-6s", s.Index, s.Kind)

		switch s.Kind {
		case "read", "write", "raw":
			fmt.Fprintf(w, " miso=% x %s", s.MISO, s.Outcome)
		}

		if s.ValueOK {
			fmt.Fprintf(w, " value=0x%08x", s.Value)
		}

		if len(s.Verdicts) > 0 {
			fmt.Fprintf(w, " verdicts=%v", s.Verdicts)
		}

		if s.Drained != nil {
			fmt.Fprintf(w, " drained=% x", s.Drained)
		}

		if s.End > 0 {
			fmt.Fprintf(w, " cycles=%d-%d", s.Start, s.End)
		}

		fmt.Fprintln(w)
	}

	for _, m := range r.Mismatches {
		fmt.Fprintf(w, "MISMATCH %s\n", m.Error())
	}

	if r.OK() {
		fmt.Fprintln(w, "PASS")
	} else {
		fmt.Fprintf(w, "FAIL (%d mismatches)\n", len(r.Mismatches))
	}
}

func (r *Result) checkValue(step int, what string, want, got uint32) {
	if want != got {
		r.Mismatches = append(r.Mismatches, Mismatch{
			Step: step,
			What: what,
			Want: fmt.Sprintf("0x%08x", want),
			Got:  fmt.Sprintf("0x%08x", got),
		})
	}
}

func (r *Result) checkBytes(step int, what string, want, got []byte) {
	if !bytes.Equal(want, got) {
		r.Mismatches = append(r.Mismatches, Mismatch{
			Step: step,
			What: what,
			Want: fmt.Sprintf("[% x]", want),
			Got:  fmt.Sprintf("[% x]", got),
		})
	}
}

// Progress is told about finished steps.
type Progress interface {
	IncrementFinished(amount uint64)
}

// A Runner runs scenarios against a device. While Run is in progress, the
// runner tells time in steps: CurrentTime is the index of the step being run.
type Runner struct {
	dev      *device.Comp
	progress Progress
	period   timing.VTimeInCycle
	step     atomic.Uint64
}

// CurrentTime returns the index of the step being run.
func (r *Runner) CurrentTime() timing.VTimeInCycle {
	return timing.VTimeInCycle(r.step.Load())
}

// NewRunner creates a Runner.
func NewRunner(dev *device.Comp) *Runner {
	return &Runner{
		dev:    dev,
		period: 8,
	}
}

// WithProgress reports finished steps to p.
func (r *Runner) WithProgress(p Progress) *Runner {
	r.progress = p
	return r
}

// WithDrainPeriod sets how often Replay drains the outbound FIFO.
func (r *Runner) WithDrainPeriod(period timing.VTimeInCycle) *Runner {
	r.period = period
	return r
}

func (r *Runner) finished(n int) {
	if r.progress != nil && n > 0 {
		r.progress.IncrementFinished(uint64(n))
	}
}

func sessionOp(s Step) (link.Op, bool) {
	switch {
	case s.Read != nil:
		return link.Op{
			Kind:  link.OpRead,
			Index: uint8(s.Read.Reg),
			Cut:   s.Read.Cut,
		}, true
	case s.Write != nil:
		return link.Op{
			Kind:  link.OpWrite,
			Index: uint8(s.Write.Reg),
			Value: s.Write.Value,
			Cut:   s.Write.Cut,
		}, true
	case s.Raw != nil:
		return link.Op{Kind: link.OpRaw, Raw: s.Raw}, true
	}

	return link.Op{}, false
}

func (r *Runner) checkRead(res *Result, sr *StepResult, s Step) {
	if s.Read == nil || s.Read.Expect == nil {
		return
	}

	what := "read " + s.Read.Reg.String()
	if !sr.ValueOK {
		res.Mismatches = append(res.Mismatches, Mismatch{
			Step: sr.Index,
			What: what,
			Want: fmt.Sprintf("0x%08x", *s.Read.Expect),
			Got:  sr.Outcome.String() + " session",
		})

		return
	}

	res.checkValue(sr.Index, what, *s.Read.Expect, sr.Value)
}

// Run executes the steps one after another on the calling goroutine.
func (r *Runner) Run(sc *Scenario) *Result {
	res := &Result{Scenario: sc.Name}

	for i, s := range sc.Steps {
		r.step.Store(uint64(i))
		sr := StepResult{Index: i, Kind: s.Kind()}

		if op, ok := sessionOp(s); ok {
			sr.MISO, sr.Outcome = r.dev.Transact(op.Bytes())
			if op.Kind == link.OpRead && sr.Outcome == transaction.OutcomeCompleted {
				v, err := transaction.DecodeReadResponse(sr.MISO)
				sr.Value, sr.ValueOK = v, err == nil
			}
			r.checkRead(res, &sr, s)
		}

		switch {
		case s.Frame != nil:
			sr.Verdicts = r.dev.FeedPackets(packet.MustEncode(
				packet.Frame{Type: s.Frame.Type, Payload: s.Frame.Payload}))
		case s.Bytes != nil:
			sr.Verdicts = r.dev.FeedPackets(s.Bytes)
		case s.Expect != nil:
			sr.Value = r.dev.Registers().Peek(uint8(s.Expect.Reg))
			sr.ValueOK = true
			res.checkValue(i, "expect "+s.Expect.Reg.String(),
				s.Expect.Value, sr.Value)
		case s.Drain != nil:
			limit := s.Drain.Count
			if limit <= 0 {
				limit = -1
			}
			sr.Drained = r.dev.Flow().DrainOutbound(limit)
			if sr.Drained == nil {
				sr.Drained = []byte{}
			}
			res.Drained = append(res.Drained, sr.Drained...)
			if s.Drain.Expect != nil {
				res.checkBytes(i, "drain", s.Drain.Expect, sr.Drained)
			}
		case s.Reset:
			r.dev.Reset()
		}

		res.Verdicts = append(res.Verdicts, sr.Verdicts...)
		res.Steps = append(res.Steps, sr)
		r.finished(1)
	}

	res.Final = r.dev.Snapshot()

	return res
}

// Replay runs the scenario on a timing engine. Session steps go to a host
// and packet steps to a packet source, so the two domains are driven at the
// same time. A drain empties the outbound FIFO while they run.
//
// Expect steps are checked against the final state. The expectations of all
// drain steps are joined and compared with every byte drained. Reset steps
// are not supported.
func (r *Runner) Replay(engine timing.Engine, sc *Scenario) (*Result, error) {
	host := link.MakeHostBuilder().
		WithEngine(engine).
		WithPort(r.dev.Command()).
		Build("Host")
	source := link.MakeSourceBuilder().
		WithEngine(engine).
		WithPort(r.dev.Packets()).
		Build("Source")
	drain := link.MakeDrainBuilder().
		WithEngine(engine).
		WithPort(r.dev.Flow()).
		WithPeriod(r.period).
		WithWatch(host, source).
		Build("Drain")

	var (
		hostSteps   []int
		drainExpect []byte
		drainStep   = -1
	)

	res := &Result{Scenario: sc.Name}

	for i, s := range sc.Steps {
		if s.Reset {
			return nil, fmt.Errorf("scenario %s: step %d: reset cannot be replayed",
				sc.Name, i)
		}

		if op, ok := sessionOp(s); ok {
			host.Enqueue(op)
			hostSteps = append(hostSteps, i)
		}

		switch {
		case s.Frame != nil:
			err := source.SendFrame(
				packet.Frame{Type: s.Frame.Type, Payload: s.Frame.Payload})
			if err != nil {
				return nil, fmt.Errorf("scenario %s: step %d: %w", sc.Name, i, err)
			}
		case s.Bytes != nil:
			source.Send(s.Bytes...)
		case s.Drain != nil && s.Drain.Expect != nil:
			drainExpect = append(drainExpect, s.Drain.Expect...)
			drainStep = i
		}

		res.Steps = append(res.Steps, StepResult{Index: i, Kind: s.Kind()})
	}

	host.Start(0)
	source.Start(0)
	drain.Start(0)

	if err := engine.Run(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	for n, hr := range host.Results() {
		sr := &res.Steps[hostSteps[n]]
		sr.MISO = hr.MISO
		sr.Outcome = hr.Outcome
		sr.Value, sr.ValueOK = hr.Value, hr.ValueOK
		sr.Start, sr.End = hr.Start, hr.End
		r.checkRead(res, sr, sc.Steps[hostSteps[n]])
	}

	for i, s := range sc.Steps {
		if s.Expect == nil {
			continue
		}

		sr := &res.Steps[i]
		sr.Value = r.dev.Registers().Peek(uint8(s.Expect.Reg))
		sr.ValueOK = true
		res.checkValue(i, "expect "+s.Expect.Reg.String(), s.Expect.Value, sr.Value)
	}

	res.Verdicts = source.Verdicts()
	res.Drained = drain.Received()

	if drainStep >= 0 {
		res.checkBytes(drainStep, "drain", drainExpect, res.Drained)
	}

	res.Final = r.dev.Snapshot()
	r.finished(len(sc.Steps))

	return res, nil
}
