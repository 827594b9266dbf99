package alloc

import (
	. "github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

type orderRecordingHook struct {
	id    int
	order *[]int
}

func (h *orderRecordingHook) Func(HookCtx) {
	*h.order = append(*h.order, h.id)
}

var _ = Describe("HookableBase", func() {
	var hookable *HookableBase

	BeforeEach(func() {
		hookable = &HookableBase{}
	})

	It("should invoke hooks in registration order", func() {
		order := []int{}
		hookable.AcceptHook(&orderRecordingHook{id: 1, order: &order})
		hookable.AcceptHook(&orderRecordingHook{id: 2, order: &order})
		hookable.AcceptHook(&orderRecordingHook{id: 3, order: &order})

		hookable.InvokeHook(HookCtx{})

		gomega.Expect(order).To(gomega.Equal([]int{1, 2, 3}))
	})

	It("should report registered hooks", func() {
		hook := &orderRecordingHook{}

		hookable.AcceptHook(hook)

		gomega.Expect(hookable.NumHooks()).To(gomega.Equal(1))
		gomega.Expect(hookable.Hooks()).To(gomega.HaveLen(1))
	})
})
