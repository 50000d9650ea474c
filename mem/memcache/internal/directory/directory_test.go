package directory_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/memcoherence/mem/memcache/internal/directory"
)

func validEntry(tag uint64) directory.Entry {
	e := directory.InvalidEntry()
	e.Valid = true
	e.Tag = tag

	return e
}

var _ = Describe("Directory", func() {
	var d *directory.Directory

	BeforeEach(func() {
		d = directory.NewDirectory(4, 4)
	})

	It("should miss on an empty directory", func() {
		_, _, hit := d.Lookup(1, 0x10)
		Expect(hit).To(BeFalse())
	})

	It("should hit and mark the way recent", func() {
		d.Write(1, 2, validEntry(0x10))
		d.SetRecent(1, 2, false)

		e, way, hit := d.Lookup(1, 0x10)

		Expect(hit).To(BeTrue())
		Expect(way).To(Equal(2))
		Expect(e.Tag).To(Equal(uint64(0x10)))
		Expect(d.Recent(1, 2)).To(BeTrue())
	})

	It("should not hit an invalid entry with the same tag", func() {
		e := validEntry(0x10)
		e.Valid = false
		d.Write(1, 0, e)

		_, _, hit := d.Lookup(1, 0x10)
		Expect(hit).To(BeFalse())
	})

	It("should mark only the written way recent", func() {
		d.Write(0, 1, validEntry(1))

		Expect(d.Recent(0, 0)).To(BeFalse())
		Expect(d.Recent(0, 1)).To(BeTrue())
	})

	It("should clear all recency bits when every way would be recent", func() {
		d.Write(0, 0, validEntry(1))
		d.Write(0, 1, validEntry(2))
		d.Write(0, 2, validEntry(3))
		d.Write(0, 3, validEntry(4))

		for w := 0; w < 4; w++ {
			Expect(d.Recent(0, w)).To(BeFalse())
		}
	})

	It("should invalidate without touching recency", func() {
		d.Write(0, 1, validEntry(1))
		d.Invalidate(0, 1)

		Expect(d.Read(0, 1).Valid).To(BeFalse())
		Expect(d.Read(0, 1).HeapHead).To(Equal(directory.NoHeap))
		Expect(d.Recent(0, 1)).To(BeTrue())
	})

	Context("when selecting a victim", func() {
		fill := func(recent, locked []bool) {
			for w := 0; w < 4; w++ {
				e := validEntry(uint64(w))
				e.Locked = locked[w]
				d.Place(2, w, e)
				d.SetRecent(2, w, recent[w])
			}
		}

		It("should prefer the first invalid way", func() {
			fill([]bool{false, false, false, false},
				[]bool{false, false, false, false})
			d.Invalidate(2, 3)

			_, way := d.SelectVictim(2)
			Expect(way).To(Equal(3))
		})

		It("should prefer not recent and unlocked", func() {
			fill([]bool{true, false, false, true},
				[]bool{false, true, false, false})

			_, way := d.SelectVictim(2)
			Expect(way).To(Equal(2))
		})

		It("should then take not recent but locked", func() {
			fill([]bool{true, false, true, true},
				[]bool{false, true, false, false})

			_, way := d.SelectVictim(2)
			Expect(way).To(Equal(1))
		})

		It("should then take recent but unlocked", func() {
			fill([]bool{true, true, true, true},
				[]bool{true, true, false, true})

			_, way := d.SelectVictim(2)
			Expect(way).To(Equal(2))
		})

		It("should fall back to way 0", func() {
			fill([]bool{true, true, true, true},
				[]bool{true, true, true, true})

			e, way := d.SelectVictim(2)
			Expect(way).To(Equal(0))
			Expect(e.Tag).To(Equal(uint64(0)))
		})
	})

	It("should panic on out of range slots", func() {
		Expect(func() { d.Read(4, 0) }).To(Panic())
		Expect(func() { d.Read(0, 4) }).To(Panic())
	})
})

var _ = Describe("DataArray", func() {
	It("should merge writes with byte enables", func() {
		a := directory.NewDataArray(2, 2, 4)
		a.WriteLine(1, 1, []uint32{1, 2, 3, 4})
		a.WriteWords(1, 1, 2, []uint32{0xAABBCCDD, 0x11111111},
			[]uint8{0x1, 0x0})

		Expect(a.Line(1, 1)).To(Equal([]uint32{1, 2, 0xDD, 4}))
		Expect(a.Words(1, 1, 1, 2)).To(Equal([]uint32{2, 0xDD}))
		Expect(a.Line(0, 0)).To(Equal([]uint32{0, 0, 0, 0}))
	})

	It("should reject partial lines", func() {
		a := directory.NewDataArray(1, 1, 4)
		Expect(func() { a.WriteLine(0, 0, []uint32{1}) }).To(Panic())
	})
})
