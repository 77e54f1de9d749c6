// Package transaction implements the command domain: the state machine that
// turns the bytes of one session into one register read or write.
package transaction

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/sarchlab/regslave/flags"
	"github.com/sarchlab/regslave/sim/hooking"
	"github.com/sarchlab/regslave/sim/id"
	"github.com/sarchlab/regslave/sim/naming"
)

// State is the position of the engine within a command.
type State int

// Engine states. CollectWrite0 to CollectWrite3 wait for the data byte with
// the same number. In LoadRead the first value byte is loaded; in EmitReadN
// value byte N is being shifted out.
const (
	Idle State = iota
	AwaitCommand
	CollectWrite0
	CollectWrite1
	CollectWrite2
	CollectWrite3
	LoadRead
	EmitRead1
	EmitRead2
	EmitRead3
	Finished
)

var stateNames = [...]string{
	"Idle", "AwaitCommand",
	"CollectWrite0", "CollectWrite1", "CollectWrite2", "CollectWrite3",
	"LoadRead", "EmitRead1", "EmitRead2", "EmitRead3", "Finished",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}

	return stateNames[s]
}

// Outcome is how a session ended.
type Outcome int

// Session outcomes.
const (
	// OutcomeIdle means there was no session to end.
	OutcomeIdle Outcome = iota

	// OutcomeCompleted means the command was fully resolved.
	OutcomeCompleted

	// OutcomeAborted means the session ended before the command completed.
	// Nothing was written.
	OutcomeAborted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIdle:
		return "Idle"
	case OutcomeCompleted:
		return "Completed"
	case OutcomeAborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// Registers is what commands read and write.
type Registers interface {
	Read(index uint8) uint32
	Write(index uint8, v uint32)
}

// A FlagRaiser records malformed transactions.
type FlagRaiser interface {
	Raise(f flags.Flag) bool
}

// SessionInfo describes a session for hooks.
type SessionInfo struct {
	ID string

	// Command is valid when HasCommand is set.
	Command    Command
	HasCommand bool

	// Value is the word written, or the word read.
	Value   uint32
	Outcome Outcome
}

func (s SessionInfo) String() string {
	if !s.HasCommand {
		return fmt.Sprintf("%s no command %s", s.ID, s.Outcome)
	}

	return fmt.Sprintf("%s %s 0x%08x %s", s.ID, s.Command, s.Value, s.Outcome)
}

// HookPosSessionStart marks the start of a session. The item is a
// SessionInfo.
var HookPosSessionStart = &hooking.HookPos{Name: "Session Start"}

// HookPosCommand marks the command byte being decoded. The item is a
// SessionInfo.
var HookPosCommand = &hooking.HookPos{Name: "Session Command"}

// HookPosSessionEnd marks the end of a session. The item is a SessionInfo.
var HookPosSessionEnd = &hooking.HookPos{Name: "Session End"}

// Stats counts sessions by outcome.
type Stats struct {
	Sessions  uint64
	Completed uint64
	Aborted   uint64
	Reads     uint64
	Writes    uint64
}

// An Engine runs the command domain. Each call processes one event to
// completion and never waits on the packet domain.
type Engine struct {
	*hooking.HookableBase

	name      string
	regs      Registers
	abortFlag FlagRaiser

	lock    sync.Mutex
	state   State
	session SessionInfo
	data    [4]byte
	loaded  byte
	stats   Stats
}

// Name returns the name of the engine.
func (e *Engine) Name() string {
	return e.name
}

// SessionStart opens a session. If a session is still open, it is ended
// first.
func (e *Engine) SessionStart() {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.state != Idle {
		e.endSession()
	}

	e.state = AwaitCommand
	e.loaded = Dummy
	e.session = SessionInfo{}
	e.stats.Sessions++

	if e.NumHooks() > 0 {
		e.session.ID = id.Generate()
		e.invoke(HookPosSessionStart)
	}
}

// SessionEnd closes the session. A command that has not completed is
// discarded.
func (e *Engine) SessionEnd() Outcome {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.endSession()
}

func (e *Engine) endSession() Outcome {
	var outcome Outcome

	switch e.state {
	case Idle:
		return OutcomeIdle
	case Finished:
		outcome = OutcomeCompleted
		e.stats.Completed++
	default:
		outcome = OutcomeAborted
		e.stats.Aborted++

		if e.abortFlag != nil {
			e.abortFlag.Raise(flags.BadCmd)
		}
	}

	e.state = Idle
	e.loaded = Dummy
	e.session.Outcome = outcome
	e.invoke(HookPosSessionEnd)

	return outcome
}

// OnByteReceived processes one inbound byte and returns the byte loaded for
// the next exchange. Outside of a session the byte is ignored and ok is
// false.
func (e *Engine) OnByteReceived(b byte) (next byte, ok bool) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.state == Idle {
		return Dummy, false
	}

	e.receive(b)

	return e.loaded, true
}

// Exchange performs one full-duplex byte exchange: it returns the byte
// shifted out while b is shifted in, then processes b.
func (e *Engine) Exchange(b byte) byte {
	e.lock.Lock()
	defer e.lock.Unlock()

	out := e.loaded
	if e.state != Idle {
		e.receive(b)
	}

	return out
}

// Loaded returns the byte that the next exchange shifts out.
func (e *Engine) Loaded() byte {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.loaded
}

func (e *Engine) receive(b byte) {
	switch e.state {
	case AwaitCommand:
		e.decode(b)
	case CollectWrite0, CollectWrite1, CollectWrite2:
		e.data[e.state-CollectWrite0] = b
		e.state++
	case CollectWrite3:
		e.data[3] = b
		e.session.Value = binary.LittleEndian.Uint32(e.data[:])
		e.regs.Write(e.session.Command.Index, e.session.Value)
		e.stats.Writes++
		e.state = Finished
	case LoadRead, EmitRead1, EmitRead2:
		shift := 8 * uint(e.state-LoadRead+1)
		e.loaded = byte(e.session.Value >> shift)
		e.state++
	case EmitRead3:
		e.loaded = Dummy
		e.state = Finished
	}
}

func (e *Engine) decode(b byte) {
	cmd := DecodeCommand(b)
	e.session.Command = cmd
	e.session.HasCommand = true

	if cmd.Write {
		e.state = CollectWrite0
	} else {
		e.session.Value = e.regs.Read(cmd.Index)
		e.loaded = byte(e.session.Value)
		e.stats.Reads++
		e.state = LoadRead
	}

	e.invoke(HookPosCommand)
}

// State returns the current state.
func (e *Engine) State() State {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.state
}

// Stats returns a copy of the session counters.
func (e *Engine) Stats() Stats {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.stats
}

func (e *Engine) invoke(pos *hooking.HookPos) {
	if e.NumHooks() == 0 {
		return
	}

	e.InvokeHook(hooking.HookCtx{
		Domain: e,
		Pos:    pos,
		Item:   e.session,
	})
}

// Builder builds Engines.
type Builder struct {
	regs      Registers
	abortFlag FlagRaiser
}

// MakeBuilder returns a Builder.
func MakeBuilder() Builder {
	return Builder{}
}

// WithRegisters sets the registers that commands access.
func (b Builder) WithRegisters(r Registers) Builder {
	b.regs = r
	return b
}

// WithAbortFlag makes aborted sessions raise BAD_CMD on f. A nil f disables
// the flag.
func (b Builder) WithAbortFlag(f FlagRaiser) Builder {
	b.abortFlag = f
	return b
}

// Build creates an Engine.
func (b Builder) Build(name string) *Engine {
	naming.NameMustBeValid(name)

	if b.regs == nil {
		panic("transaction engine requires registers")
	}

	return &Engine{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		regs:         b.regs,
		abortFlag:    b.abortFlag,
	}
}
