package monitoring

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ProgressBar", func() {
	var (
		start time.Time
		bar   *ProgressBar
	)

	BeforeEach(func() {
		start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		bar = &ProgressBar{Name: "Ops", Total: 10, StartTime: start}
	})

	It("should not take finished items back", func() {
		bar.Update(6, 2)
		bar.Update(5, 1)

		Expect(bar.Finished).To(Equal(uint64(6)))
		Expect(bar.InProgress).To(Equal(uint64(1)))
		Expect(bar.Remaining()).To(Equal(uint64(3)))
	})

	It("should not estimate before the first item", func() {
		_, ok := bar.Estimate(start.Add(time.Second))

		Expect(ok).To(BeFalse())
	})

	It("should extrapolate the time left", func() {
		bar.Update(4, 0)

		left, ok := bar.Estimate(start.Add(8 * time.Second))

		Expect(ok).To(BeTrue())
		Expect(left).To(Equal(12 * time.Second))
	})
})
