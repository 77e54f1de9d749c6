package device

import (
	"github.com/sarchlab/regslave/flow"
	"github.com/sarchlab/regslave/packet"
	"github.com/sarchlab/regslave/regfile"
	"github.com/sarchlab/regslave/sim/naming"
	"github.com/sarchlab/regslave/transaction"
)

// Builder builds devices.
type Builder struct {
	inboundDepth  int
	outboundDepth int
	policy        regfile.Policy
	resync        packet.ResyncMode
}

// MakeBuilder returns a Builder with 256-byte FIFOs and the default policy.
func MakeBuilder() Builder {
	return Builder{
		inboundDepth:  256,
		outboundDepth: 256,
		policy:        regfile.DefaultPolicy(),
		resync:        packet.ResyncAnywhere,
	}
}

// WithFIFODepth sets the depth of both FIFOs.
func (b Builder) WithFIFODepth(depth int) Builder {
	b.inboundDepth = depth
	b.outboundDepth = depth

	return b
}

// WithInboundDepth sets the depth of the inbound FIFO.
func (b Builder) WithInboundDepth(depth int) Builder {
	b.inboundDepth = depth
	return b
}

// WithOutboundDepth sets the depth of the outbound FIFO.
func (b Builder) WithOutboundDepth(depth int) Builder {
	b.outboundDepth = depth
	return b
}

// WithPolicy sets the optional behaviors.
func (b Builder) WithPolicy(p regfile.Policy) Builder {
	b.policy = p
	return b
}

// WithResync sets where the packet decoder looks for SOF.
func (b Builder) WithResync(mode packet.ResyncMode) Builder {
	b.resync = mode
	return b
}

// Build creates a device. Its parts are named after it, e.g. Dev.Flow and
// Dev.Cmd.
func (b Builder) Build(name string) *Comp {
	naming.NameMustBeValid(name)

	c := &Comp{
		NamedBase: naming.MakeNamedBase(name),
	}

	c.flow = flow.MakeBuilder().
		WithInboundDepth(b.inboundDepth).
		WithOutboundDepth(b.outboundDepth).
		Build(name + ".Flow")

	c.decoder = packet.MakeBuilder().
		WithSink(c.flow).
		WithResync(b.resync).
		Build(name + ".Decoder")

	c.regs = regfile.MakeBuilder().
		WithFlow(c.flow).
		WithFrameResetter(c.decoder).
		WithPolicy(b.policy).
		Build(name + ".Regs")

	cmdBuilder := transaction.MakeBuilder().WithRegisters(c.regs)
	if b.policy.FlagAbortedCommands {
		cmdBuilder = cmdBuilder.WithAbortFlag(c.flow)
	}
	c.cmd = cmdBuilder.Build(name + ".Cmd")

	return c
}
