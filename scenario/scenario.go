// Package scenario loads scripted device sessions from YAML and runs them
// against a device.
//
// A scenario looks like this:
//
//	name: loopback
//	fifo_depth: 64
//	resync: anywhere
//	steps:
//	  - frame: {type: 2, payload: [0x10, 0x20]}
//	  - read: {reg: RX_COUNT, expect: 2}
//	  - write: {reg: TX_DATA, value: 0x41}
//	  - write: {reg: CTRL, value: 0x1, cut: 3}
//	  - bytes: "a5 00 07 e8 6d"
//	  - expect: {reg: STATUS, value: 0x3}
//	  - drain: {expect: [0x41]}
package scenario

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sarchlab/regslave/device"
	"github.com/sarchlab/regslave/packet"
	"github.com/sarchlab/regslave/regfile"
	"gopkg.in/yaml.v3"
)

// Bytes is a byte string. In YAML it is either a sequence of integers or a
// string of hex digits, optionally separated by spaces.
type Bytes []byte

// UnmarshalYAML decodes both forms of Bytes.
func (b *Bytes) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		raw, err := hex.DecodeString(strings.Join(strings.Fields(value.Value), ""))
		if err != nil {
			return fmt.Errorf("line %d: invalid hex bytes %q: %w",
				value.Line, value.Value, err)
		}
		*b = raw

		return nil
	case yaml.SequenceNode:
		var ints []int
		if err := value.Decode(&ints); err != nil {
			return err
		}

		raw := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 0xFF {
				return fmt.Errorf("line %d: byte %d out of range", value.Line, v)
			}
			raw[i] = byte(v)
		}
		*b = raw

		return nil
	default:
		return fmt.Errorf("line %d: bytes must be a list or a hex string",
			value.Line)
	}
}

// A RegRef names a register by its name, such as CTRL, or by its index.
type RegRef uint8

// UnmarshalYAML accepts a register name or an index.
func (r *RegRef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: register must be a name or an index",
			value.Line)
	}

	if d, ok := regfile.LookupName(strings.ToUpper(value.Value)); ok {
		*r = RegRef(d.Index)
		return nil
	}

	var index int
	if err := value.Decode(&index); err != nil {
		return fmt.Errorf("line %d: unknown register %q", value.Line, value.Value)
	}

	if index < 0 || index > int(regfile.IndexMask) {
		return fmt.Errorf("line %d: register index %d out of range",
			value.Line, index)
	}

	*r = RegRef(index)

	return nil
}

func (r RegRef) String() string {
	return regfile.IndexName(uint8(r))
}

// ReadStep runs a register read session.
type ReadStep struct {
	Reg RegRef `yaml:"reg"`

	// Expect, if set, is compared with the value read.
	Expect *uint32 `yaml:"expect,omitempty"`

	// Cut, when positive, ends the session after that many bytes.
	Cut int `yaml:"cut,omitempty"`
}

// WriteStep runs a register write session.
type WriteStep struct {
	Reg   RegRef `yaml:"reg"`
	Value uint32 `yaml:"value"`
	Cut   int    `yaml:"cut,omitempty"`
}

// FrameStep sends an encoded frame to the packet domain.
type FrameStep struct {
	Type    uint8 `yaml:"type"`
	Payload Bytes `yaml:"payload"`
}

// ExpectStep checks a register without side effects.
type ExpectStep struct {
	Reg   RegRef `yaml:"reg"`
	Value uint32 `yaml:"value"`
}

// DrainStep takes bytes from the outbound FIFO.
type DrainStep struct {
	// Count limits how many bytes are taken. Zero takes every byte.
	Count int `yaml:"count,omitempty"`

	// Expect, if set, is compared with the bytes taken.
	Expect Bytes `yaml:"expect,omitempty"`
}

// A Step is one action of a scenario. Exactly one field is set.
type Step struct {
	Read   *ReadStep   `yaml:"read,omitempty"`
	Write  *WriteStep  `yaml:"write,omitempty"`
	Raw    Bytes       `yaml:"raw,omitempty"`
	Frame  *FrameStep  `yaml:"frame,omitempty"`
	Bytes  Bytes       `yaml:"bytes,omitempty"`
	Expect *ExpectStep `yaml:"expect,omitempty"`
	Drain  *DrainStep  `yaml:"drain,omitempty"`
	Reset  bool        `yaml:"reset,omitempty"`
}

// Kind returns the name of the action.
func (s Step) Kind() string {
	kinds := s.kinds()
	if len(kinds) != 1 {
		return "invalid"
	}

	return kinds[0]
}

func (s Step) kinds() []string {
	var kinds []string

	add := func(set bool, kind string) {
		if set {
			kinds = append(kinds, kind)
		}
	}

	add(s.Read != nil, "read")
	add(s.Write != nil, "write")
	add(s.Raw != nil, "raw")
	add(s.Frame != nil, "frame")
	add(s.Bytes != nil, "bytes")
	add(s.Expect != nil, "expect")
	add(s.Drain != nil, "drain")
	add(s.Reset, "reset")

	return kinds
}

// Policy mirrors regfile.Policy in YAML. Unset fields keep the default
// policy.
type Policy struct {
	FlagAbortedCommands *bool `yaml:"flag_aborted_commands,omitempty"`
	FlagUnderflow       *bool `yaml:"flag_underflow,omitempty"`
	FlagTxOverflow      *bool `yaml:"flag_tx_overflow,omitempty"`
	EnableSoftReset     *bool `yaml:"soft_reset,omitempty"`
	EnableIRQ           *bool `yaml:"irq,omitempty"`
}

func (p Policy) apply(base regfile.Policy) regfile.Policy {
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}

	set(&base.FlagAbortedCommands, p.FlagAbortedCommands)
	set(&base.FlagUnderflow, p.FlagUnderflow)
	set(&base.FlagTxOverflow, p.FlagTxOverflow)
	set(&base.EnableSoftReset, p.EnableSoftReset)
	set(&base.EnableIRQ, p.EnableIRQ)

	return base
}

// A Scenario is a device configuration and a script of steps.
type Scenario struct {
	Name      string `yaml:"name"`
	FIFODepth int    `yaml:"fifo_depth,omitempty"`
	Resync    string `yaml:"resync,omitempty"`
	Policy    Policy `yaml:"policy,omitempty"`
	Steps     []Step `yaml:"steps"`
}

// Parse reads a scenario from YAML. Unknown fields are errors.
func Parse(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	sc := &Scenario{}
	if err := dec.Decode(sc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("scenario: empty document")
		}

		return nil, fmt.Errorf("scenario: %w", err)
	}

	if err := sc.Validate(); err != nil {
		return nil, err
	}

	return sc, nil
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: %w", err)
	}

	sc, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if sc.Name == "" {
		base := filepath.Base(path)
		sc.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	return sc, nil
}

// Validate checks that every step has exactly one action and that the
// device configuration is usable.
func (sc *Scenario) Validate() error {
	if sc.FIFODepth < 0 {
		return fmt.Errorf("scenario: negative fifo_depth %d", sc.FIFODepth)
	}

	if _, err := sc.resyncMode(); err != nil {
		return err
	}

	for i, s := range sc.Steps {
		kinds := s.kinds()
		switch {
		case len(kinds) == 0:
			return fmt.Errorf("scenario: step %d has no action", i)
		case len(kinds) > 1:
			return fmt.Errorf("scenario: step %d has several actions: %s",
				i, strings.Join(kinds, ", "))
		}

		if s.Frame != nil && len(s.Frame.Payload) > packet.MaxPayload {
			return fmt.Errorf("scenario: step %d: %w", i, packet.ErrPayloadTooLong)
		}
	}

	return nil
}

func (sc *Scenario) resyncMode() (packet.ResyncMode, error) {
	switch strings.ToLower(sc.Resync) {
	case "", "anywhere":
		return packet.ResyncAnywhere, nil
	case "idle", "idle-only":
		return packet.ResyncIdleOnly, nil
	default:
		return 0, fmt.Errorf("scenario: unknown resync mode %q", sc.Resync)
	}
}

// DeviceBuilder returns a device builder configured by the scenario. A
// positive depth overrides fifo_depth.
func (sc *Scenario) DeviceBuilder(depth int) device.Builder {
	b := device.MakeBuilder()

	if depth <= 0 {
		depth = sc.FIFODepth
	}

	if depth > 0 {
		b = b.WithFIFODepth(depth)
	}

	mode, err := sc.resyncMode()
	if err != nil {
		panic(err)
	}

	return b.
		WithResync(mode).
		WithPolicy(sc.Policy.apply(regfile.DefaultPolicy()))
}
