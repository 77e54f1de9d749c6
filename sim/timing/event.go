// Package timing provides the discrete-event engines that drive the command
// domain and the packet domain of a device. Time is counted in byte cycles:
// one cycle is the time it takes a link to move one byte.
package timing

import (
	"github.com/sarchlab/regslave/sim/hooking"
)

// VTimeInCycle is the simulated time, in byte cycles.
type VTimeInCycle uint64

// Handler processes events. Events are plain data; handlers type-switch on
// them.
//
//	func (h *Host) Handle(event any) error {
//	    switch e := event.(type) {
//	    case *sessionStep:
//	        return h.step(e)
//	    default:
//	        return fmt.Errorf("unknown event type: %T", event)
//	    }
//	}
//
// Handlers must be comparable, since the parallel engine groups events by
// handler. Pointer receivers satisfy this.
type Handler interface {
	Handle(event any) error
}

// TimeTeller exposes the current cycle.
type TimeTeller interface {
	CurrentTime() VTimeInCycle
}

// EventScheduler schedules events on the timeline.
type EventScheduler interface {
	TimeTeller
	Schedule(event ScheduledEvent)
}

// An Engine keeps the event loop running.
type Engine interface {
	hooking.Hookable
	EventScheduler

	// Run processes events until no event is left, or until a handler returns
	// an error.
	Run() error

	// Pause stops the engine from dispatching more events until Continue is
	// called.
	Pause()

	// Continue resumes a paused engine.
	Continue()
}

// ScheduledEvent is the engine-facing wrapper of a user event.
type ScheduledEvent struct {
	// Event is the payload delivered to the handler.
	Event any

	// Time is the cycle at which the event is handled.
	Time VTimeInCycle

	// Handler is the handler that receives the event.
	Handler Handler

	// IsSecondary events run after every primary event of the same cycle.
	IsSecondary bool

	seq uint64
}

// HookPosBeforeEvent is a hook position that triggers before handling an
// event.
var HookPosBeforeEvent = &hooking.HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent is a hook position that triggers after handling an event.
var HookPosAfterEvent = &hooking.HookPos{Name: "AfterEvent"}
