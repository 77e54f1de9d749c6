// Package fifo provides the bounded byte queues that stage inbound packet
// payloads and outbound TX_DATA bytes.
package fifo

import (
	"github.com/sarchlab/regslave/sim/hooking"
	"github.com/sarchlab/regslave/sim/naming"
)

// HookPosPush marks when a byte is pushed into the FIFO.
var HookPosPush = &hooking.HookPos{Name: "FIFO Push"}

// HookPosPop marks when a byte is popped from the FIFO.
var HookPosPop = &hooking.HookPos{Name: "FIFO Pop"}

// HookPosFlush marks when the FIFO is flushed. The hook item is the number
// of bytes discarded.
var HookPosFlush = &hooking.HookPos{Name: "FIFO Flush"}

// A FIFO is a bounded ordered byte queue. Its occupancy is always within
// [0, Capacity()].
//
// A FIFO is not safe for concurrent use. Callers that share a FIFO between
// the command domain and the packet domain must serialize access, as
// flow.Controller does.
type FIFO interface {
	naming.Named
	hooking.Hookable

	// Push appends one byte. It returns false, dropping the byte, if the FIFO
	// is full.
	Push(b byte) bool

	// PushAll appends all the bytes or none of them.
	PushAll(data []byte) bool

	// Pop removes the oldest byte. ok is false if the FIFO is empty.
	Pop() (b byte, ok bool)

	// Peek returns the oldest byte without removing it.
	Peek() (b byte, ok bool)

	// Contents returns a copy of the queued bytes, oldest first.
	Contents() []byte

	Size() int
	Free() int
	Capacity() int

	// Flush discards every queued byte and returns how many were discarded.
	Flush() int
}

// Builder builds FIFOs.
type Builder struct {
	depth int
}

// MakeBuilder returns a Builder with a depth of 256 bytes, enough for one
// maximum-length payload.
func MakeBuilder() Builder {
	return Builder{
		depth: 256,
	}
}

// WithDepth sets the capacity of the FIFO.
func (b Builder) WithDepth(depth int) Builder {
	b.depth = depth
	return b
}

// Build creates a FIFO.
func (b Builder) Build(name string) FIFO {
	naming.NameMustBeValid(name)

	if b.depth <= 0 {
		panic("fifo depth must be positive")
	}

	return &ring{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		data:         make([]byte, b.depth),
	}
}

// ring is a FIFO backed by a fixed circular array.
type ring struct {
	*hooking.HookableBase

	name  string
	data  []byte
	head  int
	count int
}

func (r *ring) Name() string {
	return r.name
}

func (r *ring) Push(b byte) bool {
	if r.count == len(r.data) {
		return false
	}

	r.data[(r.head+r.count)%len(r.data)] = b
	r.count++

	r.invoke(HookPosPush, b)

	return true
}

func (r *ring) PushAll(data []byte) bool {
	if len(data) > r.Free() {
		return false
	}

	for _, b := range data {
		r.Push(b)
	}

	return true
}

func (r *ring) Pop() (byte, bool) {
	if r.count == 0 {
		return 0, false
	}

	b := r.data[r.head]
	r.head = (r.head + 1) % len(r.data)
	r.count--

	r.invoke(HookPosPop, b)

	return b, true
}

func (r *ring) Peek() (byte, bool) {
	if r.count == 0 {
		return 0, false
	}

	return r.data[r.head], true
}

func (r *ring) Contents() []byte {
	out := make([]byte, r.count)
	for i := range out {
		out[i] = r.data[(r.head+i)%len(r.data)]
	}

	return out
}

func (r *ring) Size() int {
	return r.count
}

func (r *ring) Free() int {
	return len(r.data) - r.count
}

func (r *ring) Capacity() int {
	return len(r.data)
}

func (r *ring) Flush() int {
	n := r.count
	r.head = 0
	r.count = 0

	r.invoke(HookPosFlush, n)

	return n
}

func (r *ring) invoke(pos *hooking.HookPos, item any) {
	if r.NumHooks() == 0 {
		return
	}

	r.InvokeHook(hooking.HookCtx{
		Domain: r,
		Pos:    pos,
		Item:   item,
	})
}
