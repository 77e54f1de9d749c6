package regfile

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/regslave/flags"
	"github.com/sarchlab/regslave/flow"
	"github.com/sarchlab/regslave/sim/hooking"
)

var _ = Describe("RegisterFile", func() {
	var (
		mockCtrl *gomock.Controller
		resetter *MockFrameResetter
		fc       *flow.Controller
		policy   Policy
		rf       *RegisterFile
	)

	build := func() {
		rf = MakeBuilder().
			WithFlow(fc).
			WithFrameResetter(resetter).
			WithPolicy(policy).
			Build("Dev.Regs")
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		resetter = NewMockFrameResetter(mockCtrl)
		fc = flow.MakeBuilder().
			WithInboundDepth(8).
			WithOutboundDepth(2).
			Build("Dev.Flow")
		policy = DefaultPolicy()
		build()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should panic without a flow controller", func() {
		Expect(func() { MakeBuilder().Build("Dev.Regs") }).To(Panic())
	})

	It("should read zero from unlisted indices and ignore writes to them", func() {
		for index := uint8(7); index < 128; index++ {
			rf.Write(index, 0xFFFFFFFF)
			Expect(rf.Read(index)).To(BeZero())
		}
		Expect(fc.Snapshot().Flags).To(BeZero())
	})

	It("should mask the index to 7 bits", func() {
		fc.Commit(0x01, []byte{0x42})

		Expect(rf.Read(0x80 | RxData)).To(Equal(uint32(0x42)))
	})

	It("should ignore writes to read-only registers", func() {
		fc.Commit(0x09, []byte{1, 2})

		for _, index := range []uint8{Status, RxCount, TxCount, RxData, RxType} {
			rf.Write(index, 0xFFFFFFFF)
		}

		Expect(rf.Read(RxCount)).To(Equal(uint32(2)))
		Expect(rf.Read(RxType)).To(Equal(uint32(0x09)))
		Expect(rf.Read(TxCount)).To(Equal(uint32(2)))
	})

	Context("STATUS", func() {
		It("should report sticky flags and the live RX_READY bit", func() {
			Expect(rf.Read(Status)).To(BeZero())

			fc.Commit(0x01, []byte{0xAA})
			Expect(rf.Read(Status)).To(Equal(uint32(flags.PktOK | flags.RxReady)))

			rf.Read(RxData)
			Expect(rf.Read(Status)).To(Equal(uint32(flags.PktOK)))
		})

		It("should not clear flags on read", func() {
			fc.RejectCRC()

			rf.Read(Status)
			rf.Read(Status)

			Expect(rf.Read(Status)).To(Equal(uint32(flags.CRCErr)))
		})
	})

	Context("CTRL", func() {
		It("should run CLEAR_FLAGS once and read back zero", func() {
			fc.RejectCRC()
			fc.Commit(0x01, []byte{1})

			rf.Write(Ctrl, CtrlClearFlags)

			Expect(rf.Read(Ctrl)).To(BeZero())
			Expect(rf.Read(Status)).To(Equal(uint32(flags.RxReady)))

			fc.RejectCRC()
			Expect(rf.Read(Status)).
				To(Equal(uint32(flags.RxReady | flags.CRCErr)))
		})

		It("should flush the inbound FIFO only", func() {
			fc.Commit(0x01, []byte{1, 2, 3})
			rf.Write(TxData, 4)

			rf.Write(Ctrl, CtrlFlushRx)

			s := fc.Snapshot()
			Expect(s.Inbound).To(BeEmpty())
			Expect(s.Outbound).To(Equal([]byte{4}))
			Expect(s.Flags).To(Equal(flags.PktOK))
			Expect(rf.Read(Ctrl)).To(BeZero())
		})

		It("should flush the outbound FIFO only", func() {
			fc.Commit(0x01, []byte{1})
			rf.Write(TxData, 4)

			rf.Write(Ctrl, CtrlFlushTx)

			s := fc.Snapshot()
			Expect(s.Inbound).To(Equal([]byte{1}))
			Expect(s.Outbound).To(BeEmpty())
			Expect(s.Flags).To(Equal(flags.PktOK))
		})

		It("should reset the frame decoder on SOFT_RESET", func() {
			fc.Commit(0x01, []byte{1})
			resetter.EXPECT().Reset()

			rf.Write(Ctrl, CtrlSoftReset)

			Expect(fc.Snapshot().Inbound).To(Equal([]byte{1}))
			Expect(rf.Read(Ctrl)).To(BeZero())
		})

		It("should ignore SOFT_RESET when disabled", func() {
			policy.EnableSoftReset = false
			build()

			rf.Write(Ctrl, CtrlSoftReset)
		})

		It("should combine strobes", func() {
			fc.Commit(0x01, []byte{1})
			rf.Write(TxData, 2)
			resetter.EXPECT().Reset()

			rf.Write(Ctrl, CtrlClearFlags|CtrlFlushRx|CtrlFlushTx|CtrlSoftReset)

			Expect(fc.Snapshot()).To(Equal(flow.State{
				Inbound:  []byte{},
				Outbound: []byte{},
				RxType:   0x01,
				TxFree:   2,
			}))
		})

		It("should keep IRQ_EN when enabled", func() {
			policy.EnableIRQ = true
			build()

			rf.Write(Ctrl, CtrlIRQEnable|CtrlClearFlags)
			Expect(rf.Read(Ctrl)).To(Equal(CtrlIRQEnable))

			rf.Write(Ctrl, 0)
			Expect(rf.Read(Ctrl)).To(BeZero())
		})

		It("should treat IRQ_EN as unlisted when disabled", func() {
			rf.Write(Ctrl, CtrlIRQEnable)

			Expect(rf.Read(Ctrl)).To(BeZero())
			Expect(rf.IRQ()).To(BeFalse())
		})
	})

	Context("IRQ", func() {
		BeforeEach(func() {
			policy.EnableIRQ = true
			build()
		})

		It("should follow RX_READY and the error flags", func() {
			fc.Commit(0x01, []byte{1})
			Expect(rf.IRQ()).To(BeFalse())

			rf.Write(Ctrl, CtrlIRQEnable)
			Expect(rf.IRQ()).To(BeTrue())

			rf.Read(RxData)
			Expect(rf.IRQ()).To(BeFalse())

			fc.RejectCRC()
			Expect(rf.IRQ()).To(BeTrue())

			rf.Write(Ctrl, CtrlIRQEnable|CtrlClearFlags)
			Expect(rf.IRQ()).To(BeFalse())
		})

		It("should drop IRQ_EN on reset", func() {
			rf.Write(Ctrl, CtrlIRQEnable)

			rf.Reset()

			Expect(rf.Read(Ctrl)).To(BeZero())
		})
	})

	Context("RX_DATA", func() {
		It("should pop bytes in order", func() {
			fc.Commit(0x01, []byte{0x11, 0x22, 0x33})

			Expect(rf.Read(RxData)).To(Equal(uint32(0x11)))
			Expect(rf.Read(RxCount)).To(Equal(uint32(2)))
			Expect(rf.Read(RxData)).To(Equal(uint32(0x22)))
			Expect(rf.Read(RxData)).To(Equal(uint32(0x33)))
			Expect(rf.Read(RxCount)).To(BeZero())
		})

		It("should read zero when empty without flagging by default", func() {
			Expect(rf.Read(RxData)).To(BeZero())
			Expect(rf.Read(Status)).To(BeZero())
		})

		It("should flag underflow when configured", func() {
			policy.FlagUnderflow = true
			build()

			Expect(rf.Read(RxData)).To(BeZero())
			Expect(rf.Read(Status)).To(Equal(uint32(flags.BadCmd)))
		})
	})

	Context("TX_DATA", func() {
		It("should push the low byte", func() {
			rf.Write(TxData, 0x12345678)

			Expect(fc.Snapshot().Outbound).To(Equal([]byte{0x78}))
			Expect(rf.Read(TxCount)).To(Equal(uint32(1)))
			Expect(rf.Read(TxData)).To(BeZero())
		})

		It("should drop bytes silently when full", func() {
			rf.Write(TxData, 1)
			rf.Write(TxData, 2)
			rf.Write(TxData, 3)

			Expect(fc.Snapshot().Outbound).To(Equal([]byte{1, 2}))
			Expect(rf.Read(Status)).To(BeZero())
		})

		It("should flag dropped bytes when configured", func() {
			policy.FlagTxOverflow = true
			build()

			rf.Write(TxData, 1)
			rf.Write(TxData, 2)
			rf.Write(TxData, 3)

			Expect(rf.Read(Status)).To(Equal(uint32(flags.TxOverflow)))
		})
	})

	It("should peek without side effects", func() {
		policy.FlagUnderflow = true
		build()

		Expect(rf.Peek(RxData)).To(BeZero())
		Expect(rf.Peek(Status)).To(BeZero())

		fc.Commit(0x05, []byte{0x66, 0x77})

		Expect(rf.Peek(RxData)).To(Equal(uint32(0x66)))
		Expect(rf.Peek(RxData)).To(Equal(uint32(0x66)))
		Expect(rf.Peek(RxCount)).To(Equal(uint32(2)))
		Expect(rf.Peek(RxType)).To(Equal(uint32(0x05)))
		Expect(rf.Peek(TxData)).To(BeZero())
	})

	It("should report transfers to hooks", func() {
		var items []any
		rf.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			items = append(items, ctx.Item)
		}))
		fc.Commit(0x01, []byte{0x42})

		rf.Read(RxData)
		rf.Write(Ctrl, CtrlClearFlags|CtrlIRQEnable)

		Expect(items).To(Equal([]any{
			Transfer{Index: RxData, Value: 0x42},
			Transfer{Index: Ctrl, Value: CtrlClearFlags | CtrlIRQEnable},
			CtrlClearFlags,
		}))
	})
})
