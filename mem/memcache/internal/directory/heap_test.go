package directory_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/memcoherence/mem/memcache/internal/directory"
)

var _ = Describe("Heap", func() {
	var (
		h *directory.Heap
		a = directory.Owner{SrcID: 1}
		b = directory.Owner{SrcID: 2}
		c = directory.Owner{SrcID: 3, Instruction: true}
	)

	BeforeEach(func() {
		h = directory.NewHeap(3)
	})

	buildEntry := func(
		owner directory.Owner,
		chain ...directory.Owner,
	) directory.Entry {
		e := validEntry(0)
		e.Owner = owner
		e.Count = 1

		for i := len(chain) - 1; i >= 0; i-- {
			head, err := h.AllocHead(e.HeapHead, chain[i])
			Expect(err).NotTo(HaveOccurred())
			e.HeapHead = head
			e.Count++
		}

		e.Instruction = h.HasInstructionCopy(e)

		return e
	}

	consistent := func(e directory.Entry) {
		n := 0
		if e.HasOwner() {
			n = 1
		}

		Expect(n + h.ChainLen(e.HeapHead)).To(Equal(e.Count))
	}

	It("should start with a free list that links every entry", func() {
		Expect(h.Full()).To(BeFalse())
		Expect(h.FreeCount()).To(Equal(3))
		Expect(h.NextFree()).To(Equal(0))
		Expect(h.Read(0).Next).To(Equal(1))
		Expect(h.Read(2).Next).To(Equal(2))
	})

	It("should build a chain that ends in a self-loop", func() {
		head, err := h.AllocHead(directory.NoHeap, a)
		Expect(err).NotTo(HaveOccurred())
		Expect(h.Read(head).Next).To(Equal(head))

		head2, err := h.AllocHead(head, b)
		Expect(err).NotTo(HaveOccurred())
		Expect(h.Chain(head2)).To(Equal([]directory.Owner{b, a}))
	})

	It("should report full only after the last free entry is taken", func() {
		head := directory.NoHeap
		for i := 0; i < 3; i++ {
			Expect(h.Full()).To(BeFalse())

			var err error
			head, err = h.AllocHead(head, a)
			Expect(err).NotTo(HaveOccurred())
		}

		Expect(h.Full()).To(BeTrue())
		Expect(h.FreeCount()).To(Equal(0))

		_, err := h.AllocHead(head, b)
		Expect(err).To(MatchError(directory.ErrHeapFull))
	})

	It("should recycle a freed chain", func() {
		e := buildEntry(a, b, c)
		Expect(h.Full()).To(BeFalse())
		Expect(h.FreeCount()).To(Equal(1))

		h.FreeChain(e.HeapHead)

		Expect(h.FreeCount()).To(Equal(3))
		for i := 0; i < 3; i++ {
			_, err := h.AllocHead(directory.NoHeap, a)
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(h.Full()).To(BeTrue())
	})

	It("should free into an empty free list", func() {
		e := buildEntry(a, b, c, a)
		Expect(h.Full()).To(BeTrue())

		Expect(h.Remove(&e, b)).To(BeTrue())
		Expect(h.Full()).To(BeFalse())
		Expect(h.FreeCount()).To(Equal(1))
		Expect(h.Read(h.NextFree()).Next).To(Equal(h.NextFree()))
		consistent(e)
	})

	It("should promote the heap head when the owner leaves", func() {
		e := buildEntry(a, b, c)

		Expect(h.Remove(&e, a)).To(BeTrue())

		Expect(e.Owner).To(Equal(b))
		Expect(e.Count).To(Equal(2))
		Expect(h.Chain(e.HeapHead)).To(Equal([]directory.Owner{c}))
		Expect(e.Instruction).To(BeTrue())
		consistent(e)
	})

	It("should clear the owner when the chain is empty", func() {
		e := buildEntry(a)

		Expect(h.Remove(&e, a)).To(BeTrue())

		Expect(e.Count).To(Equal(0))
		Expect(e.HasOwner()).To(BeFalse())
		consistent(e)
	})

	It("should splice out the middle of a chain", func() {
		e := buildEntry(a, b, c, directory.Owner{SrcID: 4})

		Expect(h.Remove(&e, c)).To(BeTrue())

		Expect(h.Chain(e.HeapHead)).
			To(Equal([]directory.Owner{b, {SrcID: 4}}))
		Expect(e.Instruction).To(BeFalse())
		consistent(e)
	})

	It("should splice out the tail of a chain", func() {
		e := buildEntry(a, b, c)

		Expect(h.Remove(&e, c)).To(BeTrue())

		Expect(h.Chain(e.HeapHead)).To(Equal([]directory.Owner{b}))
		Expect(h.Read(e.HeapHead).Next).To(Equal(e.HeapHead))
		consistent(e)
	})

	It("should splice out the only chain entry", func() {
		e := buildEntry(a, b)

		Expect(h.Remove(&e, b)).To(BeTrue())

		Expect(e.HeapHead).To(Equal(directory.NoHeap))
		Expect(e.Owner).To(Equal(a))
		consistent(e)
	})

	It("should not remove an unknown owner", func() {
		e := buildEntry(a, b)

		Expect(h.Remove(&e, c)).To(BeFalse())
		Expect(e.Count).To(Equal(2))
	})

	It("should only decrement in counter mode", func() {
		e := validEntry(0)
		e.CounterMode = true
		e.Count = 2

		Expect(h.Remove(&e, c)).To(BeTrue())
		Expect(e.Count).To(Equal(1))
		Expect(e.CounterMode).To(BeTrue())

		Expect(h.Remove(&e, a)).To(BeTrue())
		Expect(e.Count).To(Equal(0))
		Expect(e.CounterMode).To(BeFalse())

		Expect(h.Remove(&e, a)).To(BeFalse())
	})
})
