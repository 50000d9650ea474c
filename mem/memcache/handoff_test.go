package memcache

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Handoff", func() {
	var h *handoff[int]

	BeforeEach(func() {
		h = newHandoff[int](2)
	})

	It("should hide pushed items until committed", func() {
		h.Push(1)

		_, ok := h.Peek()
		Expect(ok).To(BeFalse())
		Expect(h.Empty()).To(BeFalse())

		h.commit()

		v, ok := h.Peek()
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(1))
	})

	It("should not reuse a freed slot in the same tick", func() {
		h.Push(1)
		h.Push(2)
		h.commit()

		Expect(h.CanPush()).To(BeFalse())

		v, _ := h.Pop()
		Expect(v).To(Equal(1))
		Expect(h.CanPush()).To(BeFalse())

		h.commit()
		Expect(h.CanPush()).To(BeTrue())
	})

	It("should keep the order of the items", func() {
		h.Push(1)
		h.commit()
		h.Push(2)
		h.commit()

		a, _ := h.Pop()
		b, _ := h.Pop()
		_, ok := h.Pop()

		Expect([]int{a, b}).To(Equal([]int{1, 2}))
		Expect(ok).To(BeFalse())
		Expect(h.Empty()).To(BeTrue())
	})

	It("should panic on overflow", func() {
		h.Push(1)
		h.Push(2)

		Expect(func() { h.Push(3) }).To(Panic())
	})
})
