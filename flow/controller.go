// Package flow arbitrates the state shared by the command domain and the
// packet domain: the inbound FIFO, the outbound FIFO, the sticky flags and
// the RX_TYPE latch.
package flow

import (
	"sync"

	"github.com/sarchlab/regslave/fifo"
	"github.com/sarchlab/regslave/flags"
	"github.com/sarchlab/regslave/sim/hooking"
	"github.com/sarchlab/regslave/sim/naming"
)

// HookPosCommit marks a frame payload entering the inbound FIFO. The item is
// the payload length and the detail is the frame type.
var HookPosCommit = &hooking.HookPos{Name: "Flow Commit"}

// HookPosRefuse marks a frame that was refused. The item is the flag raised
// for it (CRC_ERR or RX_OVF).
var HookPosRefuse = &hooking.HookPos{Name: "Flow Refuse"}

// HookPosTxDrop marks a TX_DATA byte dropped because the outbound FIFO was
// full. The item is the dropped byte.
var HookPosTxDrop = &hooking.HookPos{Name: "Flow TxDrop"}

// State is a consistent copy of everything the Controller guards.
type State struct {
	Inbound  []byte
	Outbound []byte
	RxType   byte
	Flags    flags.Flag
	Status   flags.Flag
	RxCount  int
	TxFree   int
}

// A Controller owns the shared state of a device. Every method runs in one
// critical section, so an update from one domain is never interleaved with
// an update from the other. Controller hooks run after the critical section
// and may call back into the Controller.
type Controller struct {
	*hooking.HookableBase

	name string

	lock     sync.Mutex
	inbound  fifo.FIFO
	outbound fifo.FIFO
	bank     *flags.Bank
	rxType   byte
}

// Name returns the name of the controller.
func (c *Controller) Name() string {
	return c.name
}

// Inbound returns the inbound FIFO, so that hooks can be attached to it.
// Callers must not mutate it directly. Its hooks run while the Controller
// lock is held and must not call Controller methods.
func (c *Controller) Inbound() fifo.FIFO {
	return c.inbound
}

// Outbound returns the outbound FIFO, so that hooks can be attached to it.
// Callers must not mutate it directly. Its hooks run while the Controller
// lock is held and must not call Controller methods.
func (c *Controller) Outbound() fifo.FIFO {
	return c.outbound
}

// Flags returns the sticky flag bank. Raises during Commit invoke its hooks
// while the Controller lock is held, so those hooks must not call Controller
// methods.
func (c *Controller) Flags() *flags.Bank {
	return c.bank
}

// Commit appends a verified frame payload to the inbound FIFO. Either the
// whole payload is appended, RX_TYPE is updated and PKT_OK is raised, or, if
// the FIFO cannot take every byte, nothing is appended and RX_OVF is raised.
func (c *Controller) Commit(frameType byte, payload []byte) bool {
	c.lock.Lock()
	ok := c.inbound.PushAll(payload)
	if ok {
		c.rxType = frameType
		c.bank.Raise(flags.PktOK)
	} else {
		c.bank.Raise(flags.RxOverflow)
	}
	c.lock.Unlock()

	if ok {
		c.invoke(HookPosCommit, len(payload), frameType)
	} else {
		c.invoke(HookPosRefuse, flags.RxOverflow, frameType)
	}

	return ok
}

// RejectCRC records a frame dropped for a CRC mismatch.
func (c *Controller) RejectCRC() {
	c.bank.Raise(flags.CRCErr)
	c.invoke(HookPosRefuse, flags.CRCErr, nil)
}

// PopInbound removes one byte from the inbound FIFO.
func (c *Controller) PopInbound() (byte, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.inbound.Pop()
}

// PeekInbound returns the oldest inbound byte without removing it.
func (c *Controller) PeekInbound() (byte, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.inbound.Peek()
}

// PushOutbound appends one byte to the outbound FIFO. A byte that does not
// fit is dropped.
func (c *Controller) PushOutbound(b byte) bool {
	c.lock.Lock()
	ok := c.outbound.Push(b)
	c.lock.Unlock()

	if !ok {
		c.invoke(HookPosTxDrop, b, nil)
	}

	return ok
}

// PopOutbound removes one byte from the outbound FIFO. It is used by the
// external byte sink.
func (c *Controller) PopOutbound() (byte, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.outbound.Pop()
}

// DrainOutbound removes up to limit bytes from the outbound FIFO. A negative
// limit drains everything.
func (c *Controller) DrainOutbound(limit int) []byte {
	c.lock.Lock()
	defer c.lock.Unlock()

	n := c.outbound.Size()
	if limit >= 0 && limit < n {
		n = limit
	}

	out := make([]byte, 0, n)
	for len(out) < n {
		b, _ := c.outbound.Pop()
		out = append(out, b)
	}

	return out
}

// FlushInbound discards the inbound FIFO. The outbound FIFO and the flags
// are not touched.
func (c *Controller) FlushInbound() int {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.inbound.Flush()
}

// FlushOutbound discards the outbound FIFO. The inbound FIFO and the flags
// are not touched.
func (c *Controller) FlushOutbound() int {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.outbound.Flush()
}

// ClearFlags clears every sticky flag.
func (c *Controller) ClearFlags() flags.Flag {
	return c.bank.Clear()
}

// Raise sets sticky flags on behalf of another component.
func (c *Controller) Raise(f flags.Flag) bool {
	return c.bank.Raise(f)
}

// Status returns the sticky flags together with the live RX_READY bit.
func (c *Controller) Status() flags.Flag {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.status()
}

func (c *Controller) status() flags.Flag {
	s := c.bank.Snapshot()
	if c.inbound.Size() > 0 {
		s |= flags.RxReady
	}

	return s
}

// RxCount returns the number of bytes in the inbound FIFO.
func (c *Controller) RxCount() int {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.inbound.Size()
}

// TxFree returns the free space of the outbound FIFO.
func (c *Controller) TxFree() int {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.outbound.Free()
}

// RxType returns the type tag of the last committed frame.
func (c *Controller) RxType() byte {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.rxType
}

// Reset empties both FIFOs, clears the flags and RX_TYPE.
func (c *Controller) Reset() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.inbound.Flush()
	c.outbound.Flush()
	c.bank.Clear()
	c.rxType = 0
}

// Snapshot returns a consistent copy of the guarded state.
func (c *Controller) Snapshot() State {
	c.lock.Lock()
	defer c.lock.Unlock()

	return State{
		Inbound:  c.inbound.Contents(),
		Outbound: c.outbound.Contents(),
		RxType:   c.rxType,
		Flags:    c.bank.Snapshot(),
		Status:   c.status(),
		RxCount:  c.inbound.Size(),
		TxFree:   c.outbound.Free(),
	}
}

func (c *Controller) invoke(pos *hooking.HookPos, item, detail any) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    pos,
		Item:   item,
		Detail: detail,
	})
}

// Builder builds Controllers.
type Builder struct {
	inboundDepth  int
	outboundDepth int
}

// MakeBuilder returns a Builder with 256-byte FIFOs.
func MakeBuilder() Builder {
	return Builder{
		inboundDepth:  256,
		outboundDepth: 256,
	}
}

// WithInboundDepth sets the capacity of the inbound FIFO.
func (b Builder) WithInboundDepth(depth int) Builder {
	b.inboundDepth = depth
	return b
}

// WithOutboundDepth sets the capacity of the outbound FIFO.
func (b Builder) WithOutboundDepth(depth int) Builder {
	b.outboundDepth = depth
	return b
}

// Build creates a Controller. Its FIFOs and flag bank are named after it.
func (b Builder) Build(name string) *Controller {
	naming.NameMustBeValid(name)

	return &Controller{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		inbound: fifo.MakeBuilder().
			WithDepth(b.inboundDepth).
			Build(name + ".RxFIFO"),
		outbound: fifo.MakeBuilder().
			WithDepth(b.outboundDepth).
			Build(name + ".TxFIFO"),
		bank: flags.NewBank(name + ".Flags"),
	}
}
