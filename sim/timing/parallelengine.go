package timing

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/sarchlab/regslave/sim/hooking"
)

// ParallelEngine handles the events of one cycle concurrently. Events that
// target the same handler form a lane and run in the order they were
// scheduled, so a handler never sees two events at once. Different lanes run
// on different goroutines.
type ParallelEngine struct {
	*hooking.HookableBase

	nowLock sync.RWMutex
	now     VTimeInCycle

	queue *eventQueue

	isPaused      bool
	isPausedLock  sync.Mutex
	pauseLock     sync.Mutex
	singleRunLock sync.Mutex
}

type lane struct {
	handler Handler
	events  []*ScheduledEvent
}

// NewParallelEngine creates a ParallelEngine.
func NewParallelEngine() *ParallelEngine {
	return &ParallelEngine{
		HookableBase: hooking.NewHookableBase(),
		queue:        newEventQueue(),
	}
}

func (e *ParallelEngine) readNow() VTimeInCycle {
	e.nowLock.RLock()
	defer e.nowLock.RUnlock()

	return e.now
}

func (e *ParallelEngine) writeNow(t VTimeInCycle) {
	e.nowLock.Lock()
	e.now = t
	e.nowLock.Unlock()
}

// Schedule registers an event to be processed by the engine. It is safe to
// call from handlers running in parallel.
func (e *ParallelEngine) Schedule(evt ScheduledEvent) {
	now := e.readNow()
	if evt.Time < now {
		panic(fmt.Sprintf(
			"timing: cannot schedule event in the past, evt %s @ %d, now %d",
			reflect.TypeOf(evt.Event), evt.Time, now,
		))
	}

	e.queue.Push(evt)
}

// Run processes all scheduled events until the queue drains.
func (e *ParallelEngine) Run() error {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	for e.queue.Len() > 0 {
		e.pauseLock.Lock()
		err := e.runRound()
		e.pauseLock.Unlock()

		if err != nil {
			return err
		}
	}

	return nil
}

func (e *ParallelEngine) runRound() error {
	first := e.queue.Peek()
	e.writeNow(first.Time)

	lanes := e.collectLanes(first.Time, first.IsSecondary)
	errs := make([]error, len(lanes))

	var wg sync.WaitGroup
	for i, l := range lanes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = e.runLane(l)
		}()
	}
	wg.Wait()

	return errors.Join(errs...)
}

// collectLanes pops every event of the given cycle and class, grouped by
// handler in order of first appearance.
func (e *ParallelEngine) collectLanes(
	now VTimeInCycle,
	secondary bool,
) []*lane {
	var lanes []*lane
	byHandler := make(map[Handler]*lane)

	for {
		evt := e.queue.Peek()
		if evt == nil || evt.Time != now || evt.IsSecondary != secondary {
			break
		}

		e.queue.Pop()

		l, found := byHandler[evt.Handler]
		if !found {
			l = &lane{handler: evt.Handler}
			byHandler[evt.Handler] = l
			lanes = append(lanes, l)
		}

		l.events = append(l.events, evt)
	}

	return lanes
}

func (e *ParallelEngine) runLane(l *lane) error {
	for _, evt := range l.events {
		hookCtx := hooking.HookCtx{
			Domain: e,
			Pos:    HookPosBeforeEvent,
			Item:   evt,
		}
		e.InvokeHook(hookCtx)

		if l.handler != nil {
			if err := l.handler.Handle(evt.Event); err != nil {
				return fmt.Errorf("timing: cycle %d: %w", evt.Time, err)
			}
		}

		hookCtx.Pos = HookPosAfterEvent
		e.InvokeHook(hookCtx)
	}

	return nil
}

// Pause prevents the engine from starting another round.
func (e *ParallelEngine) Pause() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if e.isPaused {
		return
	}

	e.pauseLock.Lock()
	e.isPaused = true
}

// Continue allows the engine to resume.
func (e *ParallelEngine) Continue() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if !e.isPaused {
		return
	}

	e.pauseLock.Unlock()
	e.isPaused = false
}

// CurrentTime returns the cycle being processed.
func (e *ParallelEngine) CurrentTime() VTimeInCycle {
	return e.readNow()
}
