package link

import (
	"fmt"

	"github.com/sarchlab/regslave/sim/naming"
	"github.com/sarchlab/regslave/sim/timing"
	"github.com/sarchlab/regslave/transaction"
)

// OpKind is the kind of a host operation.
type OpKind int

// Host operations.
const (
	OpRead OpKind = iota
	OpWrite
	OpRaw
)

func (k OpKind) String() string {
	switch k {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// An Op is one session run by the host.
type Op struct {
	Kind  OpKind
	Index uint8
	Value uint32

	// Raw holds the bytes of an OpRaw session.
	Raw []byte

	// Cut, when positive, ends the session after that many bytes.
	Cut int
}

// Bytes returns the inbound bytes of the session.
func (op Op) Bytes() []byte {
	var in []byte

	switch op.Kind {
	case OpRead:
		in = transaction.ReadBytes(op.Index)
	case OpWrite:
		in = transaction.WriteBytes(op.Index, op.Value)
	default:
		in = append([]byte(nil), op.Raw...)
	}

	if op.Cut > 0 && op.Cut < len(in) {
		in = in[:op.Cut]
	}

	return in
}

func (op Op) String() string {
	s := op.Kind.String()
	switch op.Kind {
	case OpRead:
		s += fmt.Sprintf(" %d", op.Index)
	case OpWrite:
		s += fmt.Sprintf(" %d 0x%08x", op.Index, op.Value)
	default:
		s += fmt.Sprintf(" % x", op.Raw)
	}

	if op.Cut > 0 {
		s += fmt.Sprintf(" cut %d", op.Cut)
	}

	return s
}

// Result is what the host observed in one session.
type Result struct {
	Op      Op
	MISO    []byte
	Outcome transaction.Outcome

	// Value is the decoded read value, valid when ValueOK is set.
	Value   uint32
	ValueOK bool

	Start timing.VTimeInCycle
	End   timing.VTimeInCycle
}

type hostPhase int

const (
	hostIdle hostPhase = iota
	hostBytes
	hostEnd
)

// A Host runs register sessions against a command port, one byte per cycle.
// A session starts in one cycle, exchanges its bytes in the following cycles
// and ends in the cycle after the last byte.
type Host struct {
	naming.NamedBase

	engine timing.EventScheduler
	port   CommandPort
	gap    timing.VTimeInCycle

	ops     []Op
	results []Result

	phase hostPhase
	in    []byte
	miso  []byte
	start timing.VTimeInCycle
}

// Enqueue appends operations to the script.
func (h *Host) Enqueue(ops ...Op) {
	h.ops = append(h.ops, ops...)
}

// Start schedules the first session at the given cycle.
func (h *Host) Start(at timing.VTimeInCycle) {
	h.engine.Schedule(timing.ScheduledEvent{
		Event:   &tickEvent{},
		Time:    at,
		Handler: h,
	})
}

// Handle runs one cycle of the host.
func (h *Host) Handle(event any) error {
	switch event.(type) {
	case *tickEvent:
		h.tick()
		return nil
	default:
		return fmt.Errorf("link: host %s cannot handle %T", h.Name(), event)
	}
}

func (h *Host) tick() {
	now := h.engine.CurrentTime()

	switch h.phase {
	case hostIdle:
		if len(h.results) == len(h.ops) {
			return
		}

		h.in = h.ops[len(h.results)].Bytes()
		h.miso = make([]byte, 0, len(h.in))
		h.start = now
		h.port.SessionStart()
		h.phase = hostBytes

		if len(h.in) == 0 {
			h.phase = hostEnd
		}

		h.scheduleAt(now + 1)
	case hostBytes:
		h.miso = append(h.miso, h.port.Exchange(h.in[len(h.miso)]))
		if len(h.miso) == len(h.in) {
			h.phase = hostEnd
		}

		h.scheduleAt(now + 1)
	case hostEnd:
		h.finish(now)
	}
}

func (h *Host) finish(now timing.VTimeInCycle) {
	op := h.ops[len(h.results)]
	res := Result{
		Op:      op,
		MISO:    h.miso,
		Outcome: h.port.SessionEnd(),
		Start:   h.start,
		End:     now,
	}

	if op.Kind == OpRead && res.Outcome == transaction.OutcomeCompleted {
		v, err := transaction.DecodeReadResponse(res.MISO)
		res.Value, res.ValueOK = v, err == nil
	}

	h.results = append(h.results, res)
	h.phase = hostIdle

	if len(h.results) < len(h.ops) {
		h.scheduleAt(now + 1 + h.gap)
	}
}

func (h *Host) scheduleAt(t timing.VTimeInCycle) {
	h.engine.Schedule(timing.ScheduledEvent{
		Event:   &tickEvent{},
		Time:    t,
		Handler: h,
	})
}

// Results returns the results of the finished sessions, in order.
func (h *Host) Results() []Result {
	return h.results
}

// Done returns true when every enqueued session has finished.
func (h *Host) Done() bool {
	return len(h.results) == len(h.ops)
}

// HostBuilder builds Hosts.
type HostBuilder struct {
	engine timing.EventScheduler
	port   CommandPort
	gap    timing.VTimeInCycle
}

// MakeHostBuilder returns a HostBuilder with one idle cycle between
// sessions.
func MakeHostBuilder() HostBuilder {
	return HostBuilder{
		gap: 1,
	}
}

// WithEngine sets the engine that schedules the host.
func (b HostBuilder) WithEngine(e timing.EventScheduler) HostBuilder {
	b.engine = e
	return b
}

// WithPort sets the command port the host talks to.
func (b HostBuilder) WithPort(p CommandPort) HostBuilder {
	b.port = p
	return b
}

// WithGap sets the idle cycles between sessions.
func (b HostBuilder) WithGap(gap timing.VTimeInCycle) HostBuilder {
	b.gap = gap
	return b
}

// Build creates a Host.
func (b HostBuilder) Build(name string) *Host {
	if b.engine == nil || b.port == nil {
		panic("host requires an engine and a port")
	}

	return &Host{
		NamedBase: naming.MakeNamedBase(name),
		engine:    b.engine,
		port:      b.port,
		gap:       b.gap,
	}
}
