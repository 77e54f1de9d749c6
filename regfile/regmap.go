// Package regfile implements the register file reached through register
// commands. Registers are 32 bits wide and addressed by a 7-bit index.
package regfile

import "fmt"

// Register indices. The byte address of a register is its index times 4.
const (
	Status  uint8 = 0
	RxCount uint8 = 1
	TxCount uint8 = 2
	Ctrl    uint8 = 3
	RxData  uint8 = 4
	TxData  uint8 = 5
	RxType  uint8 = 6
)

// IndexMask keeps the 7 bits of a register index.
const IndexMask uint8 = 0x7F

// CTRL bits. Every bit except CtrlIRQEnable is a strobe that fires once per
// write and reads back as zero.
const (
	CtrlClearFlags uint32 = 1 << 0
	CtrlFlushRx    uint32 = 1 << 1
	CtrlFlushTx    uint32 = 1 << 2
	CtrlIRQEnable  uint32 = 1 << 3
	CtrlSoftReset  uint32 = 1 << 4
)

// Access is how the host may access a register.
type Access int

// Access modes.
const (
	ReadOnly Access = iota
	ReadWrite
	WriteOnly
)

func (a Access) String() string {
	switch a {
	case ReadOnly:
		return "RO"
	case ReadWrite:
		return "RW"
	case WriteOnly:
		return "WO"
	default:
		return "?"
	}
}

// A Descriptor describes one defined register.
type Descriptor struct {
	Index      uint8
	Name       string
	Access     Access
	ResetValue uint32
}

// Address returns the byte address of the register.
func (d Descriptor) Address() uint32 {
	return uint32(d.Index) * 4
}

var registerMap = []Descriptor{
	{Index: Status, Name: "STATUS", Access: ReadOnly},
	{Index: RxCount, Name: "RX_COUNT", Access: ReadOnly},
	{Index: TxCount, Name: "TX_COUNT", Access: ReadOnly},
	{Index: Ctrl, Name: "CTRL", Access: ReadWrite},
	{Index: RxData, Name: "RX_DATA", Access: ReadOnly},
	{Index: TxData, Name: "TX_DATA", Access: WriteOnly},
	{Index: RxType, Name: "RX_TYPE", Access: ReadOnly},
}

// Map returns the descriptors of every defined register, ordered by index.
func Map() []Descriptor {
	out := make([]Descriptor, len(registerMap))
	copy(out, registerMap)

	return out
}

// Lookup returns the descriptor of a register index.
func Lookup(index uint8) (Descriptor, bool) {
	index &= IndexMask
	if int(index) < len(registerMap) {
		return registerMap[index], true
	}

	return Descriptor{}, false
}

// LookupName finds a register by name.
func LookupName(name string) (Descriptor, bool) {
	for _, d := range registerMap {
		if d.Name == name {
			return d, true
		}
	}

	return Descriptor{}, false
}

// IndexName returns the register name of an index, or its number for
// unlisted indices.
func IndexName(index uint8) string {
	if d, ok := Lookup(index); ok {
		return d.Name
	}

	return fmt.Sprintf("REG[%d]", index&IndexMask)
}

// A Transfer is one register read or write, as reported to hooks.
type Transfer struct {
	Index uint8
	Value uint32
}

func (t Transfer) String() string {
	return fmt.Sprintf("%s=0x%08x", IndexName(t.Index), t.Value)
}
