package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("IDGenerator", func() {
	It("should count up from 1", func() {
		g := &sequentialIDGenerator{}

		Expect(g.Generate()).To(Equal("1"))
		Expect(g.Generate()).To(Equal("2"))
	})

	It("should generate distinct xids", func() {
		g := xidGenerator{}

		a, b := g.Generate(), g.Generate()
		Expect(a).To(HaveLen(20))
		Expect(a).NotTo(Equal(b))
	})

	It("should not switch the generator once in use", func() {
		GetIDGenerator()

		Expect(UseParallelIDGenerator).To(Panic())
	})
})
