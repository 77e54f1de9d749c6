package transaction

import (
	"encoding/binary"
	"fmt"

	"github.com/sarchlab/regslave/regfile"
)

// Dummy is the byte shifted out when no response data is loaded.
const Dummy byte = 0x00

// WireLength is the number of bytes of a complete command, for both reads
// and writes.
const WireLength = 5

// A Command is one register read or write.
type Command struct {
	Write bool
	Index uint8
}

// DecodeCommand splits a command byte: bit 7 is the direction (1 = write) and
// bits 6:0 are the register index.
func DecodeCommand(b byte) Command {
	return Command{
		Write: b&0x80 != 0,
		Index: b & regfile.IndexMask,
	}
}

// Byte encodes the command byte.
func (c Command) Byte() byte {
	b := c.Index & regfile.IndexMask
	if c.Write {
		b |= 0x80
	}

	return b
}

func (c Command) String() string {
	if c.Write {
		return "write " + regfile.IndexName(c.Index)
	}

	return "read " + regfile.IndexName(c.Index)
}

// WriteBytes returns the inbound bytes of a register write.
func WriteBytes(index uint8, v uint32) []byte {
	out := make([]byte, WireLength)
	out[0] = Command{Write: true, Index: index}.Byte()
	binary.LittleEndian.PutUint32(out[1:], v)

	return out
}

// ReadBytes returns the inbound bytes of a register read: the command byte
// followed by four turnaround bytes.
func ReadBytes(index uint8) []byte {
	out := make([]byte, WireLength)
	out[0] = Command{Index: index}.Byte()

	return out
}

// DecodeReadResponse extracts the register value from the outbound bytes of
// a read: one dummy byte, then the value, little-endian.
func DecodeReadResponse(out []byte) (uint32, error) {
	if len(out) != WireLength {
		return 0, fmt.Errorf("read response has %d bytes, want %d",
			len(out), WireLength)
	}

	return binary.LittleEndian.Uint32(out[1:]), nil
}
