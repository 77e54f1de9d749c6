package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"

	"github.com/pkg/browser"
	"github.com/sarchlab/regslave/datarecording"
	"github.com/sarchlab/regslave/device"
	"github.com/sarchlab/regslave/flags"
	"github.com/sarchlab/regslave/flow"
	"github.com/sarchlab/regslave/monitoring"
	"github.com/sarchlab/regslave/packet"
	"github.com/sarchlab/regslave/sim/hooking"
	"github.com/sarchlab/regslave/sim/timing"
	"github.com/sarchlab/regslave/tracing"
	"github.com/sarchlab/regslave/transaction"
)

// clock forwards CurrentTime to whatever is driving the current device.
type clock struct {
	lock   sync.Mutex
	teller timing.TimeTeller
}

func (c *clock) use(t timing.TimeTeller) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.teller = t
}

func (c *clock) CurrentTime() timing.VTimeInCycle {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.teller == nil {
		return 0
	}

	return c.teller.CurrentTime()
}

// env is what the persistent flags add around the devices a command builds.
type env struct {
	clock   *clock
	logHook *hooking.LogHook
	tracer  *tracing.DBTracer
	monitor *monitoring.Monitor
	url     string
}

// verbosePositions are the hook positions that --verbose prints.
var verbosePositions = []*hooking.HookPos{
	flags.HookPosRaise,
	flags.HookPosClear,
	flow.HookPosCommit,
	flow.HookPosRefuse,
	flow.HookPosTxDrop,
	packet.HookPosFrameEnd,
	transaction.HookPosSessionEnd,
}

func newEnv() (*env, error) {
	e := &env{clock: &clock{}}

	if opts.verbose {
		e.logHook = hooking.NewLogHook(
			log.New(os.Stderr, "", 0), verbosePositions...)
	}

	if opts.traceDB != "" {
		recorder := datarecording.New(opts.traceDB)
		e.tracer = tracing.NewDBTracer(e.clock, recorder)
	}

	if opts.monitor {
		e.monitor = monitoring.NewMonitor().WithPortNumber(opts.monitorPort)

		url, err := e.monitor.StartServer()
		if err != nil {
			return nil, err
		}
		e.url = url

		if opts.open {
			if err := browser.OpenURL(url); err != nil {
				fmt.Fprintf(os.Stderr, "Cannot open browser: %v\n", err)
			}
		}
	}

	return e, nil
}

// attach wires a device into the logging, tracing and monitoring that the
// flags asked for.
func (e *env) attach(dev *device.Comp) {
	if e.logHook != nil {
		dev.AcceptHook(e.logHook)
	}

	if e.tracer != nil {
		dev.Trace(e.tracer)
	}

	if e.monitor != nil {
		e.monitor.RegisterDevice(dev)
	}
}

// newEngine creates the engine that replays scenarios.
func (e *env) newEngine() timing.Engine {
	var engine timing.Engine = timing.NewSerialEngine()
	if opts.parallel {
		engine = timing.NewParallelEngine()
	}

	if e.monitor != nil {
		e.monitor.RegisterEngine(engine)
	}

	return engine
}

// hold keeps the monitor up until the user interrupts.
func (e *env) hold() {
	if e.monitor == nil {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Fprintf(os.Stderr, "Done. Monitor still serving %s, Ctrl-C to quit\n", e.url)
	<-ctx.Done()
}

// close writes out the tasks recorded so far.
func (e *env) close() {
	if e.tracer != nil {
		e.tracer.Terminate()
	}
}
