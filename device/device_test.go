package device

import (
	"bytes"
	"log"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/regslave/flags"
	"github.com/sarchlab/regslave/flow"
	"github.com/sarchlab/regslave/packet"
	"github.com/sarchlab/regslave/regfile"
	"github.com/sarchlab/regslave/sim/hooking"
	"github.com/sarchlab/regslave/transaction"
)

var _ = Describe("Comp", func() {
	var dev *Comp

	BeforeEach(func() {
		dev = MakeBuilder().Build("Dev")
	})

	It("should name its parts", func() {
		Expect(dev.Name()).To(Equal("Dev"))
		Expect(dev.Flow().Name()).To(Equal("Dev.Flow"))
		Expect(dev.Packets().Name()).To(Equal("Dev.Decoder"))
		Expect(dev.Registers().Name()).To(Equal("Dev.Regs"))
		Expect(dev.Command().Name()).To(Equal("Dev.Cmd"))
		Expect(dev.Hookables()).To(HaveLen(7))
	})

	It("should run a CTRL write as a one-shot strobe", func() {
		dev.FeedPackets([]byte{0xA5, 0x02, 0x10, 0xAA, 0xBB, 0x00, 0x00})
		Expect(dev.ReadRegister(regfile.Status)).To(Equal(uint32(flags.CRCErr)))

		out, outcome := dev.Transact([]byte{0x83, 0x01, 0x00, 0x00, 0x00})

		Expect(outcome).To(Equal(transaction.OutcomeCompleted))
		Expect(out).To(Equal([]byte{0, 0, 0, 0, 0}))
		Expect(dev.ReadRegister(regfile.Status)).To(BeZero())
		Expect(dev.ReadRegister(regfile.Ctrl)).To(BeZero())
	})

	It("should accept a packet and serve it through the registers", func() {
		verdicts := dev.FeedPackets(
			[]byte{0xA5, 0x02, 0x10, 0xAA, 0xBB, 0xCE, 0xCE})

		Expect(verdicts).To(Equal([]packet.Verdict{packet.Accepted}))
		Expect(dev.Flow().Snapshot().Inbound).To(Equal([]byte{0xAA, 0xBB}))
		Expect(dev.ReadRegister(regfile.RxType)).To(Equal(uint32(0x10)))
		Expect(dev.ReadRegister(regfile.Status)).
			To(Equal(uint32(flags.PktOK | flags.RxReady)))
		Expect(dev.ReadRegister(regfile.RxCount)).To(Equal(uint32(2)))
		Expect(dev.ReadRegister(regfile.RxData)).To(Equal(uint32(0xAA)))
		Expect(dev.ReadRegister(regfile.RxData)).To(Equal(uint32(0xBB)))
		Expect(dev.ReadRegister(regfile.Status)).To(Equal(uint32(flags.PktOK)))
	})

	Context("when a write session is cut short", func() {
		write := func() transaction.Outcome {
			dev.WriteRegister(regfile.Ctrl, regfile.CtrlClearFlags)
			dev.FeedPackets(packet.MustEncode(packet.Frame{
				Type:    0x01,
				Payload: []byte{0x11},
			}))

			_, outcome := dev.Transact([]byte{0x83, 0x02, 0x00, 0x00})
			return outcome
		}

		It("should keep the register and raise BAD_CMD only", func() {
			Expect(write()).To(Equal(transaction.OutcomeAborted))

			s := dev.Flow().Snapshot()
			Expect(s.Inbound).To(Equal([]byte{0x11}))
			Expect(s.Flags).To(Equal(flags.PktOK | flags.BadCmd))
		})

		It("should not raise BAD_CMD when disabled", func() {
			policy := regfile.DefaultPolicy()
			policy.FlagAbortedCommands = false
			dev = MakeBuilder().WithPolicy(policy).Build("Dev")

			Expect(write()).To(Equal(transaction.OutcomeAborted))

			s := dev.Flow().Snapshot()
			Expect(s.Inbound).To(Equal([]byte{0x11}))
			Expect(s.Flags).To(Equal(flags.PktOK))
		})
	})

	It("should refuse a packet larger than the free space", func() {
		dev = MakeBuilder().WithInboundDepth(4).Build("Dev")
		dev.FeedPackets(packet.MustEncode(packet.Frame{
			Type:    0x01,
			Payload: []byte{0x01, 0x02},
		}))
		dev.WriteRegister(regfile.Ctrl, regfile.CtrlClearFlags)

		verdicts := dev.FeedPackets(packet.MustEncode(packet.Frame{
			Type:    0x20,
			Payload: []byte{0x01, 0x02, 0x03, 0x04, 0x05},
		}))

		Expect(verdicts).To(Equal([]packet.Verdict{packet.Overflow}))
		Expect(dev.ReadRegister(regfile.Status)).
			To(Equal(uint32(flags.RxOverflow | flags.RxReady)))
		Expect(dev.ReadRegister(regfile.RxCount)).To(Equal(uint32(2)))
		Expect(dev.ReadRegister(regfile.RxType)).To(Equal(uint32(0x01)))
	})

	It("should push TX_DATA to the outbound FIFO", func() {
		dev = MakeBuilder().WithOutboundDepth(2).Build("Dev")

		dev.WriteRegister(regfile.TxData, 0x31)
		dev.WriteRegister(regfile.TxData, 0x32)
		dev.WriteRegister(regfile.TxData, 0x33)

		Expect(dev.ReadRegister(regfile.TxCount)).To(BeZero())
		Expect(dev.Flow().DrainOutbound(-1)).To(Equal([]byte{0x31, 0x32}))
		Expect(dev.ReadRegister(regfile.TxCount)).To(Equal(uint32(2)))
	})

	It("should drop the frame in progress on SOFT_RESET", func() {
		dev.FeedPackets([]byte{0xA5, 0x02, 0x10, 0xAA})

		dev.WriteRegister(regfile.Ctrl, regfile.CtrlSoftReset)

		Expect(dev.Packets().State()).To(Equal(packet.WaitStart))
		Expect(dev.FeedPackets([]byte{0xBB, 0xCE, 0xCE})).To(BeEmpty())
		Expect(dev.ReadRegister(regfile.Status)).To(BeZero())
	})

	It("should raise the IRQ line when enabled", func() {
		policy := regfile.DefaultPolicy()
		policy.EnableIRQ = true
		dev = MakeBuilder().WithPolicy(policy).Build("Dev")

		dev.WriteRegister(regfile.Ctrl, regfile.CtrlIRQEnable)
		Expect(dev.IRQ()).To(BeFalse())

		dev.FeedPackets([]byte{0xA5, 0x02, 0x10, 0xAA, 0xBB, 0xCE, 0xCE})
		Expect(dev.IRQ()).To(BeTrue())
	})

	It("should reset", func() {
		dev.FeedPackets([]byte{0xA5, 0x02, 0x10, 0xAA, 0xBB, 0xCE, 0xCE})
		dev.FeedPackets([]byte{0xA5, 0x02})
		dev.Command().SessionStart()

		dev.Reset()

		Expect(dev.Command().State()).To(Equal(transaction.Idle))
		Expect(dev.Packets().State()).To(Equal(packet.WaitStart))
		Expect(dev.Flow().Snapshot()).To(Equal(flow.State{
			Inbound:  []byte{},
			Outbound: []byte{},
			TxFree:   256,
		}))
	})

	It("should take snapshots without side effects", func() {
		dev.FeedPackets([]byte{0xA5, 0x02, 0x10, 0xAA, 0xBB, 0xCE, 0xCE})

		s := dev.Snapshot()

		Expect(s.Name).To(Equal("Dev"))
		Expect(s.Registers).To(HaveLen(7))
		Expect(s.Registers[regfile.RxData].Value).To(Equal(uint32(0xAA)))
		Expect(s.Registers[regfile.RxCount].Value).To(Equal(uint32(2)))
		Expect(s.DecoderStats.Accepted).To(Equal(uint64(1)))
		Expect(s.InboundDepth).To(Equal(256))
		Expect(dev.Flow().RxCount()).To(Equal(2))
	})

	It("should log what happens with a log hook", func() {
		buf := new(bytes.Buffer)
		dev.AcceptHook(hooking.NewLogHook(log.New(buf, "", 0),
			flags.HookPosRaise, transaction.HookPosSessionEnd))

		dev.Transact([]byte{0x83, 0x01})

		Expect(buf.String()).To(MatchRegexp(
			`^Dev\.Flow\.Flags Flag Raise: BAD_CMD\n` +
				`Dev\.Cmd Session End: \S+ write CTRL 0x00000000 Aborted\n$`))
	})

	It("should not lose bytes while both domains run", func() {
		const frames = 500

		var wg sync.WaitGroup
		wg.Add(2)

		go func() {
			defer GinkgoRecover()
			defer wg.Done()

			frame := packet.MustEncode(packet.Frame{
				Type:    0x01,
				Payload: []byte{0x11, 0x22},
			})
			for i := 0; i < frames; i++ {
				dev.FeedPackets(frame)
			}
		}()

		var popped int
		go func() {
			defer GinkgoRecover()
			defer wg.Done()

			for i := 0; i < frames; i++ {
				if dev.ReadRegister(regfile.RxCount) > 0 {
					dev.ReadRegister(regfile.RxData)
					popped++
				}
			}
		}()

		wg.Wait()

		stats := dev.Packets().Stats()
		Expect(stats.Accepted + stats.Overflows).To(Equal(uint64(frames)))
		Expect(int(stats.Accepted)*2 - popped).
			To(Equal(dev.Flow().RxCount()))
	})
})
