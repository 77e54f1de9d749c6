package link

import (
	"fmt"

	"github.com/sarchlab/regslave/sim/naming"
	"github.com/sarchlab/regslave/sim/timing"
)

// A Drain is the external byte sink of the outbound FIFO. Every period it
// takes up to burst bytes, after the primary events of that cycle. It keeps
// polling while any watched driver is still running, then drains once more
// and stops.
type Drain struct {
	naming.NamedBase

	engine timing.EventScheduler
	port   OutboundPort
	period timing.VTimeInCycle
	burst  int
	watch  []Doner

	received []byte
}

// Start schedules the first poll.
func (d *Drain) Start(at timing.VTimeInCycle) {
	d.scheduleAt(at)
}

// Handle polls the outbound FIFO.
func (d *Drain) Handle(event any) error {
	switch event.(type) {
	case *tickEvent:
		d.poll()
		return nil
	default:
		return fmt.Errorf("link: drain %s cannot handle %T", d.Name(), event)
	}
}

func (d *Drain) poll() {
	d.received = append(d.received, d.port.DrainOutbound(d.burst)...)

	for _, w := range d.watch {
		if !w.Done() {
			d.scheduleAt(d.engine.CurrentTime() + d.period)
			return
		}
	}

	d.received = append(d.received, d.port.DrainOutbound(-1)...)
}

func (d *Drain) scheduleAt(t timing.VTimeInCycle) {
	d.engine.Schedule(timing.ScheduledEvent{
		Event:       &tickEvent{},
		Time:        t,
		Handler:     d,
		IsSecondary: true,
	})
}

// Received returns every byte drained so far.
func (d *Drain) Received() []byte {
	return d.received
}

// DrainBuilder builds Drains.
type DrainBuilder struct {
	engine timing.EventScheduler
	port   OutboundPort
	period timing.VTimeInCycle
	burst  int
	watch  []Doner
}

// MakeDrainBuilder returns a DrainBuilder that takes one byte every 8
// cycles.
func MakeDrainBuilder() DrainBuilder {
	return DrainBuilder{
		period: 8,
		burst:  1,
	}
}

// WithEngine sets the engine that schedules the drain.
func (b DrainBuilder) WithEngine(e timing.EventScheduler) DrainBuilder {
	b.engine = e
	return b
}

// WithPort sets the outbound FIFO to drain.
func (b DrainBuilder) WithPort(p OutboundPort) DrainBuilder {
	b.port = p
	return b
}

// WithPeriod sets the cycles between polls.
func (b DrainBuilder) WithPeriod(period timing.VTimeInCycle) DrainBuilder {
	b.period = period
	return b
}

// WithBurst sets how many bytes a poll takes. A negative burst takes
// everything.
func (b DrainBuilder) WithBurst(burst int) DrainBuilder {
	b.burst = burst
	return b
}

// WithWatch sets the drivers the drain waits for.
func (b DrainBuilder) WithWatch(watch ...Doner) DrainBuilder {
	b.watch = append([]Doner(nil), watch...)
	return b
}

// Build creates a Drain.
func (b DrainBuilder) Build(name string) *Drain {
	if b.engine == nil || b.port == nil {
		panic("drain requires an engine and a port")
	}

	if b.period == 0 {
		panic("drain period must be positive")
	}

	return &Drain{
		NamedBase: naming.MakeNamedBase(name),
		engine:    b.engine,
		port:      b.port,
		period:    b.period,
		burst:     b.burst,
		watch:     b.watch,
	}
}
