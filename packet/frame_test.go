package packet

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Frame", func() {
	It("should use CRC-16/CCITT-FALSE", func() {
		Expect(Checksum([]byte("123456789"))).To(Equal(uint16(0x29B1)))
		Expect(Checksum(nil)).To(Equal(uint16(0xFFFF)))
	})

	It("should encode a frame", func() {
		out, err := Encode(Frame{Type: 0x10, Payload: []byte{0xAA, 0xBB}})

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal([]byte{0xA5, 0x02, 0x10, 0xAA, 0xBB, 0xCE, 0xCE}))
	})

	It("should encode an empty frame", func() {
		Expect(MustEncode(Frame{Type: 0x00})).
			To(Equal([]byte{0xA5, 0x00, 0x00, 0x0F, 0x1D}))
	})

	It("should refuse payloads longer than 255 bytes", func() {
		_, err := Encode(Frame{Payload: make([]byte, 256)})

		Expect(err).To(MatchError(ErrPayloadTooLong))
		Expect(func() { MustEncode(Frame{Payload: make([]byte, 256)}) }).
			To(Panic())
	})
})
