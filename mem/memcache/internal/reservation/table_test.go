package reservation

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Table", func() {
	var t *Table

	BeforeEach(func() {
		t = NewTable(func(addr uint64) uint64 { return addr >> 6 })
	})

	It("should hold one reservation per requester", func() {
		t.Set(1, 0x40)
		Expect(t.IsReserved(1, 0x40)).To(BeTrue())
		Expect(t.IsReserved(1, 0x44)).To(BeFalse())
		Expect(t.IsReserved(2, 0x40)).To(BeFalse())

		t.Set(1, 0x80)
		Expect(t.IsReserved(1, 0x40)).To(BeFalse())
		Expect(t.Len()).To(Equal(1))
	})

	It("should reset every reservation on a line", func() {
		t.Set(1, 0x40)
		t.Set(2, 0x7C)
		t.Set(3, 0x80)

		t.ResetLine(1)

		Expect(t.IsReserved(1, 0x40)).To(BeFalse())
		Expect(t.IsReserved(2, 0x7C)).To(BeFalse())
		Expect(t.IsReserved(3, 0x80)).To(BeTrue())
	})
})
