package packet

import "github.com/sigurn/crc16"

var crcTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// Checksum returns the CRC-16/CCITT-FALSE of data.
func Checksum(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}

// crcAccumulator computes the frame CRC one byte at a time.
type crcAccumulator struct {
	crc uint16
	buf [1]byte
}

func (a *crcAccumulator) reset() {
	a.crc = crc16.Init(crcTable)
}

func (a *crcAccumulator) update(b byte) {
	a.buf[0] = b
	a.crc = crc16.Update(a.crc, a.buf[:], crcTable)
}

func (a *crcAccumulator) sum() uint16 {
	return crc16.Complete(a.crc, crcTable)
}
