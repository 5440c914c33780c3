package hooking

import (
	"bytes"
	"log"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type namedDomain string

func (d namedDomain) Name() string {
	return string(d)
}

var _ = Describe("HookPos", func() {
	It("should round trip event names", func() {
		for _, p := range AllHookPos() {
			parsed, err := ParseHookPos(p.String())
			Expect(err).ToNot(HaveOccurred())
			Expect(parsed).To(Equal(p))
		}
	})

	It("should use the event names", func() {
		Expect(HookPosItemPushed.String()).To(Equal("itemPushed"))
		Expect(HookPosQueueCleared.String()).To(Equal("queueCleared"))
		Expect(HookPos(42).String()).To(Equal("HookPos(42)"))
	})

	It("should reject unknown names", func() {
		_, err := ParseHookPos("itemPopped")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("HookableBase", func() {
	var (
		base  *HookableBase[int]
		calls []string
	)

	record := func(tag string) Hook[int] {
		return HookFunc[int](func(ctx HookCtx[int]) {
			calls = append(calls, tag+":"+ctx.Pos.String())
		})
	}

	BeforeEach(func() {
		base = &HookableBase[int]{}
		calls = nil
	})

	It("should invoke hooks of the position in registration order", func() {
		base.AcceptHookAt(HookPosFull, record("a"))
		base.AcceptHookAt(HookPosEmpty, record("b"))
		base.AcceptHookAt(HookPosFull, record("c"))

		base.InvokeHook(HookCtx[int]{Pos: HookPosFull})

		Expect(calls).To(Equal([]string{"a:full", "c:full"}))
	})

	It("should invoke a hook once per registration", func() {
		h := record("x")
		base.AcceptHookAt(HookPosEmpty, h)
		base.AcceptHookAt(HookPosEmpty, h)

		base.InvokeHook(HookCtx[int]{Pos: HookPosEmpty})

		Expect(calls).To(HaveLen(2))
		Expect(base.NumHooks(HookPosEmpty)).To(Equal(2))
	})

	It("should register AcceptHook at every position", func() {
		base.AcceptHook(record("all"))

		for _, p := range AllHookPos() {
			Expect(base.NumHooks(p)).To(Equal(1))
		}
	})

	It("should ignore positions without hooks", func() {
		base.InvokeHook(HookCtx[int]{Pos: HookPosSizeChanged})

		Expect(calls).To(BeEmpty())
	})

	It("should panic on registering an invalid position", func() {
		Expect(func() {
			base.AcceptHookAt(HookPos(-1), record("bad"))
		}).To(Panic())
	})

	It("should isolate a panicking hook", func() {
		var reported []any
		base.SetPanicHandler(func(pos HookPos, r any) {
			reported = append(reported, r)
		})

		base.AcceptHookAt(HookPosItemPushed, HookFunc[int](func(HookCtx[int]) {
			panic("boom")
		}))
		base.AcceptHookAt(HookPosItemPushed, record("after"))

		Expect(func() {
			base.InvokeHook(HookCtx[int]{Pos: HookPosItemPushed, Item: 1})
		}).NotTo(Panic())

		Expect(reported).To(Equal([]any{"boom"}))
		Expect(calls).To(Equal([]string{"after:itemPushed"}))
	})
})

var _ = Describe("EventLogger", func() {
	It("should log items and batches", func() {
		buf := new(bytes.Buffer)
		logger := NewEventLogger[int](log.New(buf, "", 0))

		logger.Func(HookCtx[int]{
			Domain: namedDomain("Q"), Pos: HookPosItemPushed, Item: 7,
		})
		logger.Func(HookCtx[int]{
			Domain: namedDomain("Q"), Pos: HookPosItemsRemoved, Items: []int{1, 2},
		})
		logger.Func(HookCtx[int]{
			Domain: namedDomain("Q"), Pos: HookPosQueueCleared,
		})

		Expect(buf.String()).To(Equal(
			"Q, itemPushed, 7\nQ, itemsRemoved, [1 2]\nQ, queueCleared\n"))
	})
})
