package link

import (
	"fmt"

	"github.com/sarchlab/regslave/packet"
	"github.com/sarchlab/regslave/sim/naming"
	"github.com/sarchlab/regslave/sim/timing"
)

// A Source delivers packet bytes to a packet port, one byte per cycle with
// an optional gap between bytes.
type Source struct {
	naming.NamedBase

	engine timing.EventScheduler
	port   PacketPort
	gap    timing.VTimeInCycle

	pending  []byte
	sent     int
	verdicts []packet.Verdict
	running  bool
}

// Send queues raw bytes.
func (s *Source) Send(data ...byte) {
	s.pending = append(s.pending, data...)
}

// SendFrame queues an encoded frame.
func (s *Source) SendFrame(f packet.Frame) error {
	data, err := packet.Encode(f)
	if err != nil {
		return err
	}

	s.Send(data...)

	return nil
}

// Start schedules the first byte at the given cycle.
func (s *Source) Start(at timing.VTimeInCycle) {
	if s.running {
		return
	}

	s.running = true
	s.scheduleAt(at)
}

// Handle delivers one byte.
func (s *Source) Handle(event any) error {
	switch event.(type) {
	case *tickEvent:
		s.tick()
		return nil
	default:
		return fmt.Errorf("link: source %s cannot handle %T", s.Name(), event)
	}
}

func (s *Source) tick() {
	if s.sent == len(s.pending) {
		s.running = false
		return
	}

	v := s.port.OnByteReceived(s.pending[s.sent])
	s.sent++

	if v != packet.InProgress {
		s.verdicts = append(s.verdicts, v)
	}

	if s.sent == len(s.pending) {
		s.running = false
		return
	}

	s.scheduleAt(s.engine.CurrentTime() + 1 + s.gap)
}

func (s *Source) scheduleAt(t timing.VTimeInCycle) {
	s.engine.Schedule(timing.ScheduledEvent{
		Event:   &tickEvent{},
		Time:    t,
		Handler: s,
	})
}

// Verdicts returns the verdicts of the frames completed so far.
func (s *Source) Verdicts() []packet.Verdict {
	return s.verdicts
}

// Sent returns the number of bytes delivered.
func (s *Source) Sent() int {
	return s.sent
}

// Done returns true when every queued byte has been delivered.
func (s *Source) Done() bool {
	return s.sent == len(s.pending)
}

// SourceBuilder builds Sources.
type SourceBuilder struct {
	engine timing.EventScheduler
	port   PacketPort
	gap    timing.VTimeInCycle
}

// MakeSourceBuilder returns a SourceBuilder that sends back-to-back bytes.
func MakeSourceBuilder() SourceBuilder {
	return SourceBuilder{}
}

// WithEngine sets the engine that schedules the source.
func (b SourceBuilder) WithEngine(e timing.EventScheduler) SourceBuilder {
	b.engine = e
	return b
}

// WithPort sets the packet port that receives the bytes.
func (b SourceBuilder) WithPort(p PacketPort) SourceBuilder {
	b.port = p
	return b
}

// WithGap sets the idle cycles between bytes.
func (b SourceBuilder) WithGap(gap timing.VTimeInCycle) SourceBuilder {
	b.gap = gap
	return b
}

// Build creates a Source.
func (b SourceBuilder) Build(name string) *Source {
	if b.engine == nil || b.port == nil {
		panic("source requires an engine and a port")
	}

	return &Source{
		NamedBase: naming.MakeNamedBase(name),
		engine:    b.engine,
		port:      b.port,
		gap:       b.gap,
	}
}
