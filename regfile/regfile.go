package regfile

import (
	"sync"

	"github.com/sarchlab/regslave/flags"
	"github.com/sarchlab/regslave/sim/hooking"
	"github.com/sarchlab/regslave/sim/naming"
)

// HookPosRead marks a register read. The item is a Transfer.
var HookPosRead = &hooking.HookPos{Name: "Reg Read"}

// HookPosWrite marks a register write. The item is a Transfer.
var HookPosWrite = &hooking.HookPos{Name: "Reg Write"}

// HookPosStrobe marks CTRL strobes that fired. The item is the strobe bits.
var HookPosStrobe = &hooking.HookPos{Name: "Reg Strobe"}

// Flow is the shared state that registers expose.
type Flow interface {
	Status() flags.Flag
	RxCount() int
	TxFree() int
	RxType() byte
	PopInbound() (byte, bool)
	PeekInbound() (byte, bool)
	PushOutbound(b byte) bool
	FlushInbound() int
	FlushOutbound() int
	ClearFlags() flags.Flag
	Raise(f flags.Flag) bool
}

// A FrameResetter discards the frame being decoded. The SOFT_RESET strobe
// uses it.
type FrameResetter interface {
	Reset()
}

// Policy enables the optional behaviors of the register interface.
type Policy struct {
	// FlagAbortedCommands raises BAD_CMD when a session ends before its
	// command completes.
	FlagAbortedCommands bool

	// FlagUnderflow raises BAD_CMD when RX_DATA is read while empty.
	FlagUnderflow bool

	// FlagTxOverflow raises TX_OVF when a TX_DATA byte is dropped.
	FlagTxOverflow bool

	// EnableSoftReset enables the CTRL SOFT_RESET strobe.
	EnableSoftReset bool

	// EnableIRQ enables the CTRL IRQ_EN bit and the IRQ line.
	EnableIRQ bool
}

// DefaultPolicy reports aborted commands and enables soft reset.
func DefaultPolicy() Policy {
	return Policy{
		FlagAbortedCommands: true,
		EnableSoftReset:     true,
	}
}

// irqSources are the STATUS bits that assert the IRQ line.
const irqSources = flags.RxReady | flags.CRCErr | flags.RxOverflow |
	flags.BadCmd | flags.TxOverflow

// A RegisterFile maps register indices to the device state.
type RegisterFile struct {
	*hooking.HookableBase

	name     string
	flow     Flow
	resetter FrameResetter
	policy   Policy

	lock sync.Mutex
	ctrl uint32
}

// Name returns the name of the register file.
func (r *RegisterFile) Name() string {
	return r.name
}

// Policy returns the policy the register file was built with.
func (r *RegisterFile) Policy() Policy {
	return r.policy
}

// Read returns the value of a register and applies its read side effect.
// Unlisted indices read as zero.
func (r *RegisterFile) Read(index uint8) uint32 {
	index &= IndexMask

	v := r.read(index)
	if index == RxData {
		b, ok := r.flow.PopInbound()
		if !ok && r.policy.FlagUnderflow {
			r.flow.Raise(flags.BadCmd)
		}
		v = uint32(b)
	}

	r.invoke(HookPosRead, Transfer{Index: index, Value: v})

	return v
}

// Peek returns the value Read would return, without side effects.
func (r *RegisterFile) Peek(index uint8) uint32 {
	index &= IndexMask

	if index == RxData {
		b, _ := r.flow.PeekInbound()
		return uint32(b)
	}

	return r.read(index)
}

// read returns the registers that have no read side effect.
func (r *RegisterFile) read(index uint8) uint32 {
	switch index {
	case Status:
		return uint32(r.flow.Status())
	case RxCount:
		return uint32(r.flow.RxCount())
	case TxCount:
		return uint32(r.flow.TxFree())
	case Ctrl:
		return r.ctrlLevel()
	case RxType:
		return uint32(r.flow.RxType())
	}

	return 0
}

// Write applies a register write. Writes to read-only and unlisted
// registers are ignored.
func (r *RegisterFile) Write(index uint8, v uint32) {
	index &= IndexMask

	r.invoke(HookPosWrite, Transfer{Index: index, Value: v})

	switch index {
	case Ctrl:
		r.writeCtrl(v)
	case TxData:
		if !r.flow.PushOutbound(byte(v)) && r.policy.FlagTxOverflow {
			r.flow.Raise(flags.TxOverflow)
		}
	}
}

func (r *RegisterFile) writeCtrl(v uint32) {
	if r.policy.EnableIRQ {
		r.lock.Lock()
		r.ctrl = v & CtrlIRQEnable
		r.lock.Unlock()
	}

	strobes := v & (CtrlClearFlags | CtrlFlushRx | CtrlFlushTx)
	if r.policy.EnableSoftReset && r.resetter != nil {
		strobes |= v & CtrlSoftReset
	}

	if strobes == 0 {
		return
	}

	if strobes&CtrlSoftReset != 0 {
		r.resetter.Reset()
	}

	if strobes&CtrlFlushRx != 0 {
		r.flow.FlushInbound()
	}

	if strobes&CtrlFlushTx != 0 {
		r.flow.FlushOutbound()
	}

	if strobes&CtrlClearFlags != 0 {
		r.flow.ClearFlags()
	}

	r.invoke(HookPosStrobe, strobes)
}

func (r *RegisterFile) ctrlLevel() uint32 {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.ctrl
}

// IRQ reports the interrupt line: IRQ_EN is set and RX_READY or an error
// flag is set.
func (r *RegisterFile) IRQ() bool {
	if !r.policy.EnableIRQ || r.ctrlLevel()&CtrlIRQEnable == 0 {
		return false
	}

	return r.flow.Status()&irqSources != 0
}

// Reset returns the level bits of CTRL to their reset value.
func (r *RegisterFile) Reset() {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.ctrl = 0
}

func (r *RegisterFile) invoke(pos *hooking.HookPos, item any) {
	if r.NumHooks() == 0 {
		return
	}

	r.InvokeHook(hooking.HookCtx{
		Domain: r,
		Pos:    pos,
		Item:   item,
	})
}

// Builder builds RegisterFiles.
type Builder struct {
	flow     Flow
	resetter FrameResetter
	policy   Policy
}

// MakeBuilder returns a Builder with the default policy.
func MakeBuilder() Builder {
	return Builder{
		policy: DefaultPolicy(),
	}
}

// WithFlow sets the shared state behind the registers.
func (b Builder) WithFlow(f Flow) Builder {
	b.flow = f
	return b
}

// WithFrameResetter sets what SOFT_RESET resets.
func (b Builder) WithFrameResetter(r FrameResetter) Builder {
	b.resetter = r
	return b
}

// WithPolicy sets the optional behaviors.
func (b Builder) WithPolicy(p Policy) Builder {
	b.policy = p
	return b
}

// Build creates a RegisterFile.
func (b Builder) Build(name string) *RegisterFile {
	naming.NameMustBeValid(name)

	if b.flow == nil {
		panic("register file requires a flow controller")
	}

	return &RegisterFile{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		flow:         b.flow,
		resetter:     b.resetter,
		policy:       b.policy,
	}
}
