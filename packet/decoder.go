// Package packet implements the packet domain: a streaming decoder that
// reassembles CRC-protected frames and commits or drops them.
package packet

import (
	"sync"

	"github.com/sarchlab/regslave/sim/hooking"
	"github.com/sarchlab/regslave/sim/id"
	"github.com/sarchlab/regslave/sim/naming"
)

// State is the position of the decoder within a frame.
type State int

// Decoder states.
const (
	WaitStart State = iota
	ReadLen
	ReadType
	ReadPayload
	ReadCrcLow
	ReadCrcHigh
)

var stateNames = [...]string{
	"WaitStart", "ReadLen", "ReadType", "ReadPayload", "ReadCrcLow",
	"ReadCrcHigh",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}

	return stateNames[s]
}

// ResyncMode selects where the decoder looks for SOF.
type ResyncMode int

const (
	// ResyncAnywhere restarts the frame whenever SOF is received, in any
	// state. Frames whose bytes contain SOF cannot be delivered.
	ResyncAnywhere ResyncMode = iota

	// ResyncIdleOnly only looks for SOF between frames. Frames are length
	// delimited, so LEN, TYPE, PAYLOAD and CRC may contain SOF.
	ResyncIdleOnly
)

// Verdict is the fate of a frame.
type Verdict int

// Frame verdicts.
const (
	InProgress Verdict = iota
	Accepted
	CRCError
	Overflow
	Abandoned
)

var verdictNames = [...]string{
	"InProgress", "Accepted", "CRCError", "Overflow", "Abandoned",
}

func (v Verdict) String() string {
	if v < 0 || int(v) >= len(verdictNames) {
		return "Unknown"
	}

	return verdictNames[v]
}

// FrameInfo describes a frame for hooks.
type FrameInfo struct {
	ID      string
	Type    byte
	Length  int
	Verdict Verdict
}

// HookPosFrameStart marks the start of a frame. The item is a FrameInfo.
var HookPosFrameStart = &hooking.HookPos{Name: "Frame Start"}

// HookPosFrameEnd marks the end of a frame, whatever its verdict. The item is
// a FrameInfo.
var HookPosFrameEnd = &hooking.HookPos{Name: "Frame End"}

// Stats counts what the decoder has seen.
type Stats struct {
	Accepted  uint64
	CRCErrors uint64
	Overflows uint64

	// Resyncs counts frames abandoned because a new SOF arrived.
	Resyncs uint64

	// Resets counts frames abandoned by Reset.
	Resets uint64

	// Discarded counts bytes received while hunting for SOF.
	Discarded uint64
}

// A Sink receives the outcome of every complete frame.
type Sink interface {
	// Commit delivers a verified frame. It returns false if the frame was
	// refused as a whole.
	Commit(frameType byte, payload []byte) bool

	// RejectCRC reports a frame dropped for a CRC mismatch.
	RejectCRC()
}

// A Decoder consumes the packet byte stream. OnByteReceived does a constant
// amount of work per byte and never blocks on the command domain. Reset may
// be called from the command domain at any time.
type Decoder struct {
	*hooking.HookableBase

	name   string
	sink   Sink
	resync ResyncMode

	lock      sync.Mutex
	state     State
	length    int
	frameType byte
	payload   []byte
	crc       crcAccumulator
	crcLow    byte
	frameID   string
	stats     Stats
}

// Name returns the name of the decoder.
func (d *Decoder) Name() string {
	return d.name
}

// OnByteReceived processes one byte of the packet stream. It returns the
// verdict of the frame that the byte completed or abandoned, or InProgress.
func (d *Decoder) OnByteReceived(b byte) Verdict {
	d.lock.Lock()
	defer d.lock.Unlock()

	if b == SOF && (d.resync == ResyncAnywhere || d.state == WaitStart) {
		verdict := InProgress
		if d.state != WaitStart {
			d.stats.Resyncs++
			d.abandon()
			verdict = Abandoned
		}

		d.start()

		return verdict
	}

	switch d.state {
	case WaitStart:
		d.stats.Discarded++
	case ReadLen:
		d.length = int(b)
		d.crc.update(b)
		d.state = ReadType
	case ReadType:
		d.frameType = b
		d.crc.update(b)
		d.state = ReadPayload
		if d.length == 0 {
			d.state = ReadCrcLow
		}
	case ReadPayload:
		d.payload = append(d.payload, b)
		d.crc.update(b)
		if len(d.payload) == d.length {
			d.state = ReadCrcLow
		}
	case ReadCrcLow:
		d.crcLow = b
		d.state = ReadCrcHigh
	case ReadCrcHigh:
		received := uint16(b)<<8 | uint16(d.crcLow)
		return d.finish(received)
	}

	return InProgress
}

func (d *Decoder) start() {
	d.state = ReadLen
	d.length = 0
	d.frameType = 0
	d.payload = d.payload[:0]
	d.crc.reset()

	if d.NumHooks() == 0 {
		return
	}

	d.frameID = id.Generate()
	d.InvokeHook(hooking.HookCtx{
		Domain: d,
		Pos:    HookPosFrameStart,
		Item:   FrameInfo{ID: d.frameID},
	})
}

func (d *Decoder) finish(received uint16) Verdict {
	d.state = WaitStart

	var verdict Verdict
	switch {
	case received != d.crc.sum():
		d.sink.RejectCRC()
		d.stats.CRCErrors++
		verdict = CRCError
	case d.sink.Commit(d.frameType, d.payload):
		d.stats.Accepted++
		verdict = Accepted
	default:
		d.stats.Overflows++
		verdict = Overflow
	}

	d.endFrame(verdict)

	return verdict
}

func (d *Decoder) abandon() {
	d.endFrame(Abandoned)
	d.state = WaitStart
}

func (d *Decoder) endFrame(verdict Verdict) {
	if d.NumHooks() == 0 {
		return
	}

	d.InvokeHook(hooking.HookCtx{
		Domain: d,
		Pos:    HookPosFrameEnd,
		Item: FrameInfo{
			ID:      d.frameID,
			Type:    d.frameType,
			Length:  d.length,
			Verdict: verdict,
		},
	})
}

// Reset discards any frame in progress together with its running CRC. The
// FIFOs and flags are not affected.
func (d *Decoder) Reset() {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.state == WaitStart {
		return
	}

	d.stats.Resets++
	d.abandon()
}

// State returns the current decoder state.
func (d *Decoder) State() State {
	d.lock.Lock()
	defer d.lock.Unlock()

	return d.state
}

// Stats returns a copy of the decoder counters.
func (d *Decoder) Stats() Stats {
	d.lock.Lock()
	defer d.lock.Unlock()

	return d.stats
}

// Builder builds Decoders.
type Builder struct {
	sink   Sink
	resync ResyncMode
}

// MakeBuilder returns a Builder that resyncs on SOF anywhere.
func MakeBuilder() Builder {
	return Builder{
		resync: ResyncAnywhere,
	}
}

// WithSink sets where complete frames are delivered.
func (b Builder) WithSink(sink Sink) Builder {
	b.sink = sink
	return b
}

// WithResync sets where the decoder looks for SOF.
func (b Builder) WithResync(mode ResyncMode) Builder {
	b.resync = mode
	return b
}

// Build creates a Decoder.
func (b Builder) Build(name string) *Decoder {
	naming.NameMustBeValid(name)

	if b.sink == nil {
		panic("packet decoder requires a sink")
	}

	return &Decoder{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		sink:         b.sink,
		resync:       b.resync,
		payload:      make([]byte, 0, MaxPayload),
	}
}
