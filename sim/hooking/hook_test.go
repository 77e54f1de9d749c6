package hooking

import (
	"bytes"
	"log"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type namedDomain struct {
	*HookableBase
}

func (d namedDomain) Name() string {
	return "Dev.RxFIFO"
}

type countingHook struct {
	count int
}

func (h *countingHook) Func(_ HookCtx) {
	h.count++
}

var _ = Describe("HookableBase", func() {
	var (
		base *HookableBase
		pos  *HookPos
	)

	BeforeEach(func() {
		base = NewHookableBase()
		pos = &HookPos{Name: "Push"}
	})

	It("should invoke registered hooks", func() {
		hook := &countingHook{}
		base.AcceptHook(hook)

		base.InvokeHook(HookCtx{Domain: base, Pos: pos})
		base.InvokeHook(HookCtx{Domain: base, Pos: pos})

		Expect(base.NumHooks()).To(Equal(1))
		Expect(hook.count).To(Equal(2))
	})

	It("should panic on duplicated hook", func() {
		hook := &countingHook{}
		base.AcceptHook(hook)

		Expect(func() { base.AcceptHook(hook) }).To(Panic())
	})

	It("should accept function hooks", func() {
		var items []any
		base.AcceptHook(HookFunc(func(ctx HookCtx) {
			items = append(items, ctx.Item)
		}))
		base.AcceptHook(&countingHook{})

		base.InvokeHook(HookCtx{Domain: base, Pos: pos, Item: byte(0xA5)})

		Expect(items).To(ConsistOf(byte(0xA5)))
		Expect(base.Hooks()).To(HaveLen(2))
	})

	Context("log hook", func() {
		It("should log the domain name and position", func() {
			buf := new(bytes.Buffer)
			domain := namedDomain{HookableBase: base}
			domain.AcceptHook(NewLogHook(log.New(buf, "", 0)))

			domain.InvokeHook(HookCtx{
				Domain: domain,
				Pos:    pos,
				Item:   3,
				Detail: "full",
			})

			Expect(buf.String()).To(Equal("Dev.RxFIFO Push: 3 (full)\n"))
		})

		It("should skip filtered positions", func() {
			buf := new(bytes.Buffer)
			other := &HookPos{Name: "Pop"}
			base.AcceptHook(NewLogHook(log.New(buf, "", 0), other))

			base.InvokeHook(HookCtx{Domain: base, Pos: pos, Item: 1})
			Expect(buf.Len()).To(Equal(0))

			base.InvokeHook(HookCtx{Domain: base, Pos: other, Item: 1})
			Expect(buf.String()).To(ContainSubstring("Pop: 1"))
		})
	})
})
