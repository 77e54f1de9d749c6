package flags

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/regslave/sim/hooking"
)

var _ = Describe("Bank", func() {
	var bank *Bank

	BeforeEach(func() {
		bank = NewBank("Dev.Status")
	})

	It("should match the STATUS bit positions", func() {
		Expect(uint32(RxReady)).To(Equal(uint32(1 << 0)))
		Expect(uint32(PktOK)).To(Equal(uint32(1 << 1)))
		Expect(uint32(CRCErr)).To(Equal(uint32(1 << 2)))
		Expect(uint32(RxOverflow)).To(Equal(uint32(1 << 3)))
		Expect(uint32(BadCmd)).To(Equal(uint32(1 << 4)))
		Expect(uint32(TxOverflow)).To(Equal(uint32(1 << 5)))
	})

	It("should latch raised flags", func() {
		Expect(bank.Raise(CRCErr)).To(BeTrue())
		Expect(bank.Raise(CRCErr)).To(BeFalse())
		Expect(bank.Raise(PktOK | CRCErr)).To(BeTrue())

		Expect(bank.Snapshot()).To(Equal(PktOK | CRCErr))
		Expect(bank.IsSet(CRCErr)).To(BeTrue())
		Expect(bank.IsSet(RxOverflow)).To(BeFalse())
	})

	It("should not latch the live RX_READY bit", func() {
		Expect(bank.Raise(RxReady)).To(BeFalse())
		Expect(bank.Snapshot()).To(Equal(Flag(0)))
	})

	It("should keep flags across reads", func() {
		bank.Raise(BadCmd)

		bank.Snapshot()
		bank.Snapshot()

		Expect(bank.IsSet(BadCmd)).To(BeTrue())
	})

	It("should clear all flags", func() {
		bank.Raise(PktOK | RxOverflow)

		Expect(bank.Clear()).To(Equal(PktOK | RxOverflow))
		Expect(bank.Snapshot()).To(Equal(Flag(0)))
		Expect(bank.Raise(PktOK)).To(BeTrue())
	})

	It("should report newly raised flags to hooks", func() {
		var items []any
		bank.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			items = append(items, ctx.Item)
		}))

		bank.Raise(PktOK)
		bank.Raise(PktOK | CRCErr)
		bank.Raise(CRCErr)
		bank.Clear()

		Expect(items).To(Equal([]any{PktOK, CRCErr, PktOK | CRCErr}))
	})

	It("should not lose flags raised concurrently", func() {
		var wg sync.WaitGroup
		for _, f := range []Flag{PktOK, CRCErr, RxOverflow, BadCmd, TxOverflow} {
			wg.Add(1)
			go func(f Flag) {
				defer wg.Done()
				for i := 0; i < 1000; i++ {
					bank.Raise(f)
				}
			}(f)
		}
		wg.Wait()

		Expect(bank.Snapshot()).To(Equal(Sticky))
	})

	It("should name flags", func() {
		Expect(Flag(0).String()).To(Equal("0"))
		Expect((RxReady | CRCErr).String()).To(Equal("RX_READY|CRC_ERR"))
	})
})
