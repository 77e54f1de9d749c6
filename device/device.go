// Package device assembles the command domain, the packet domain and the
// state they share into one slave device.
package device

import (
	"github.com/sarchlab/regslave/flow"
	"github.com/sarchlab/regslave/packet"
	"github.com/sarchlab/regslave/regfile"
	"github.com/sarchlab/regslave/sim/hooking"
	"github.com/sarchlab/regslave/sim/naming"
	"github.com/sarchlab/regslave/transaction"
)

// Comp is a register-addressed slave device. The command domain is reached
// through Command and the packet domain through Packets. The two domains may
// be driven from different goroutines.
type Comp struct {
	naming.NamedBase

	flow    *flow.Controller
	decoder *packet.Decoder
	regs    *regfile.RegisterFile
	cmd     *transaction.Engine
}

// Command returns the command domain.
func (c *Comp) Command() *transaction.Engine {
	return c.cmd
}

// Packets returns the packet domain.
func (c *Comp) Packets() *packet.Decoder {
	return c.decoder
}

// Registers returns the register file.
func (c *Comp) Registers() *regfile.RegisterFile {
	return c.regs
}

// Flow returns the shared FIFOs and flags.
func (c *Comp) Flow() *flow.Controller {
	return c.flow
}

// IRQ reports the interrupt line.
func (c *Comp) IRQ() bool {
	return c.regs.IRQ()
}

// Hookables lists every hookable part of the device.
func (c *Comp) Hookables() []hooking.Hookable {
	return []hooking.Hookable{
		c.cmd,
		c.regs,
		c.decoder,
		c.flow,
		c.flow.Flags(),
		c.flow.Inbound(),
		c.flow.Outbound(),
	}
}

// AcceptHook attaches a hook to every hookable part of the device.
func (c *Comp) AcceptHook(h hooking.Hook) {
	for _, part := range c.Hookables() {
		part.AcceptHook(h)
	}
}

// Reset brings the device back to its reset state. An open session is
// dropped.
func (c *Comp) Reset() {
	c.cmd.SessionEnd()
	c.decoder.Reset()
	c.regs.Reset()
	c.flow.Reset()
}

// Transact runs one whole session: it starts a session, exchanges every
// byte of in and ends the session. It returns the bytes shifted out.
func (c *Comp) Transact(in []byte) ([]byte, transaction.Outcome) {
	c.cmd.SessionStart()

	out := make([]byte, len(in))
	for i, b := range in {
		out[i] = c.cmd.Exchange(b)
	}

	return out, c.cmd.SessionEnd()
}

// ReadRegister reads a register through a read session.
func (c *Comp) ReadRegister(index uint8) uint32 {
	out, _ := c.Transact(transaction.ReadBytes(index))
	v, _ := transaction.DecodeReadResponse(out)

	return v
}

// WriteRegister writes a register through a write session.
func (c *Comp) WriteRegister(index uint8, v uint32) {
	c.Transact(transaction.WriteBytes(index, v))
}

// FeedPackets pushes bytes into the packet domain and returns the verdicts
// of the frames they completed.
func (c *Comp) FeedPackets(data []byte) []packet.Verdict {
	var verdicts []packet.Verdict
	for _, b := range data {
		if v := c.decoder.OnByteReceived(b); v != packet.InProgress {
			verdicts = append(verdicts, v)
		}
	}

	return verdicts
}

// RegisterValue is a register and its current value.
type RegisterValue struct {
	regfile.Descriptor
	Value uint32
}

// Snapshot is a side-effect free view of the device.
type Snapshot struct {
	Name          string
	Registers     []RegisterValue
	Flow          flow.State
	DecoderState  packet.State
	DecoderStats  packet.Stats
	CommandState  transaction.State
	CommandStats  transaction.Stats
	IRQ           bool
	InboundDepth  int
	OutboundDepth int
}

// Snapshot returns the current view of the device. Registers are peeked, so
// taking a snapshot never pops RX_DATA.
func (c *Comp) Snapshot() Snapshot {
	s := Snapshot{
		Name:          c.Name(),
		Flow:          c.flow.Snapshot(),
		DecoderState:  c.decoder.State(),
		DecoderStats:  c.decoder.Stats(),
		CommandState:  c.cmd.State(),
		CommandStats:  c.cmd.Stats(),
		IRQ:           c.regs.IRQ(),
		InboundDepth:  c.flow.Inbound().Capacity(),
		OutboundDepth: c.flow.Outbound().Capacity(),
	}

	for _, d := range regfile.Map() {
		s.Registers = append(s.Registers, RegisterValue{
			Descriptor: d,
			Value:      c.regs.Peek(d.Index),
		})
	}

	return s
}
