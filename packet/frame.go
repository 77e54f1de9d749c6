package packet

import (
	"errors"
	"fmt"
)

// SOF is the start-of-frame marker.
const SOF byte = 0xA5

// MaxPayload is the largest payload a LEN byte can describe.
const MaxPayload = 255

// ErrPayloadTooLong is returned when a payload cannot be described by LEN.
var ErrPayloadTooLong = errors.New("payload too long")

// A Frame is the decoded content of a packet.
type Frame struct {
	Type    byte
	Payload []byte
}

// Encode returns the wire form of f:
//
//	[SOF][LEN][TYPE][PAYLOAD x LEN][CRC_LOW][CRC_HIGH]
//
// The CRC covers LEN, TYPE and PAYLOAD.
func Encode(f Frame) ([]byte, error) {
	if len(f.Payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLong, len(f.Payload))
	}

	out := make([]byte, 0, len(f.Payload)+5)
	out = append(out, SOF, byte(len(f.Payload)), f.Type)
	out = append(out, f.Payload...)

	crc := Checksum(out[1:])
	out = append(out, byte(crc), byte(crc>>8))

	return out, nil
}

// MustEncode is like Encode but panics on error.
func MustEncode(f Frame) []byte {
	out, err := Encode(f)
	if err != nil {
		panic(err)
	}

	return out
}
