package regfile

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Register map", func() {
	It("should list the defined registers in index order", func() {
		m := Map()

		Expect(m).To(HaveLen(7))
		for i, d := range m {
			Expect(d.Index).To(Equal(uint8(i)))
			Expect(d.Address()).To(Equal(uint32(i) * 4))
			Expect(d.ResetValue).To(BeZero())
		}
		Expect(m[Ctrl].Access).To(Equal(ReadWrite))
		Expect(m[TxData].Access).To(Equal(WriteOnly))
		Expect(m[RxData].Access.String()).To(Equal("RO"))
	})

	It("should not expose its table", func() {
		m := Map()
		m[0].Name = "X"

		d, _ := Lookup(Status)
		Expect(d.Name).To(Equal("STATUS"))
	})

	It("should look registers up", func() {
		d, ok := Lookup(0x80 | RxType)
		Expect(ok).To(BeTrue())
		Expect(d.Name).To(Equal("RX_TYPE"))

		_, ok = Lookup(7)
		Expect(ok).To(BeFalse())

		d, ok = LookupName("TX_DATA")
		Expect(ok).To(BeTrue())
		Expect(d.Index).To(Equal(TxData))

		_, ok = LookupName("NOPE")
		Expect(ok).To(BeFalse())
	})

	It("should format transfers", func() {
		Expect(Transfer{Index: Status, Value: 3}.String()).
			To(Equal("STATUS=0x00000003"))
		Expect(Transfer{Index: 0x42, Value: 0}.String()).
			To(Equal("REG[66]=0x00000000"))
	})
})
