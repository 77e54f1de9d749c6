package scenario

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/regslave/packet"
	"github.com/sarchlab/regslave/regfile"
)

func parse(doc string) (*Scenario, error) {
	return Parse(strings.NewReader(doc))
}

var _ = Describe("Parse", func() {
	It("should load a scenario file", func() {
		sc, err := Load("testdata/concurrent.yaml")

		Expect(err).NotTo(HaveOccurred())
		Expect(sc.Name).To(Equal("concurrent"))
		Expect(sc.FIFODepth).To(Equal(32))
		Expect(sc.Steps).To(HaveLen(9))
		Expect(sc.Steps[4].Bytes).To(Equal(Bytes{0xA5, 0x00, 0x07, 0xE8, 0x6D}))
		Expect(sc.Steps[3].Read.Reg).To(Equal(RegRef(9)))
	})

	It("should report a missing file", func() {
		_, err := Load("testdata/missing.yaml")

		Expect(err).To(HaveOccurred())
	})

	It("should accept register names in any case", func() {
		sc, err := parse(`
steps:
  - write: {reg: tx_data, value: 0x41}
  - expect: {reg: 6, value: 0}
`)

		Expect(err).NotTo(HaveOccurred())
		Expect(sc.Steps[0].Write.Reg).To(Equal(RegRef(regfile.TxData)))
		Expect(sc.Steps[0].Kind()).To(Equal("write"))
		Expect(sc.Steps[1].Expect.Reg.String()).To(Equal("RX_TYPE"))
	})

	DescribeTable("should reject malformed scenarios",
		func(doc string, msg string) {
			_, err := parse(doc)

			Expect(err).To(MatchError(ContainSubstring(msg)))
		},
		Entry("empty", "", "empty document"),
		Entry("unknown field", "steps:\n  - jump: 3\n", "jump"),
		Entry("no action", "steps:\n  - {}\n", "no action"),
		Entry("two actions",
			"steps:\n  - {reset: true, bytes: [1]}\n", "several actions"),
		Entry("unknown register",
			"steps:\n  - read: {reg: FOO}\n", "unknown register"),
		Entry("register out of range",
			"steps:\n  - read: {reg: 200}\n", "out of range"),
		Entry("byte out of range",
			"steps:\n  - bytes: [256]\n", "out of range"),
		Entry("bad hex", "steps:\n  - bytes: a5z\n", "invalid hex"),
		Entry("bad resync", "resync: sometimes\nsteps: []\n", "resync"),
		Entry("negative depth", "fifo_depth: -1\nsteps: []\n", "fifo_depth"),
	)

	It("should reject frames that are too long", func() {
		sc := &Scenario{Steps: []Step{{
			Frame: &FrameStep{Payload: make(Bytes, packet.MaxPayload+1)},
		}}}

		Expect(sc.Validate()).To(MatchError(packet.ErrPayloadTooLong))
	})

	It("should configure a device", func() {
		sc, err := parse(`
fifo_depth: 8
resync: idle-only
policy:
  flag_underflow: true
  soft_reset: false
steps: []
`)
		Expect(err).NotTo(HaveOccurred())

		dev := sc.DeviceBuilder(0).Build("Dev")
		Expect(dev.Snapshot().InboundDepth).To(Equal(8))
		Expect(dev.Registers().Policy()).To(Equal(regfile.Policy{
			FlagAbortedCommands: true,
			FlagUnderflow:       true,
		}))

		dev = sc.DeviceBuilder(64).Build("Dev")
		Expect(dev.Snapshot().OutboundDepth).To(Equal(64))
	})
})
