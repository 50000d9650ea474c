package sim

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("Clock", func() {
	var (
		mockCtrl *gomock.Controller
		t1, t2   *MockTicker
		clock    *Clock
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		t1 = NewMockTicker(mockCtrl)
		t2 = NewMockTicker(mockCtrl)
		clock = NewClock(1 * GHz)
		clock.RegisterComponent(t1)
		clock.RegisterComponent(t2)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should tick components in registration order", func() {
		gomock.InOrder(
			t1.EXPECT().Tick().Return(false),
			t2.EXPECT().Tick().Return(true),
		)

		Expect(clock.Step()).To(BeTrue())
		Expect(clock.Now()).To(Equal(uint64(1)))
		Expect(clock.CurrentTime()).To(BeNumerically("~", 1e-9, 1e-15))
	})

	It("should report no progress", func() {
		t1.EXPECT().Tick().Return(false)
		t2.EXPECT().Tick().Return(false)

		Expect(clock.Step()).To(BeFalse())
	})

	It("should run until done", func() {
		t1.EXPECT().Tick().Return(true).Times(3)
		t2.EXPECT().Tick().Return(true).Times(3)

		err := clock.RunUntil(func() bool { return clock.Now() == 3 }, 10)

		Expect(err).NotTo(HaveOccurred())
	})

	It("should stop at the cycle limit", func() {
		t1.EXPECT().Tick().Return(true).Times(5)
		t2.EXPECT().Tick().Return(true).Times(5)

		err := clock.RunUntil(func() bool { return false }, 5)

		Expect(errors.Is(err, ErrCycleLimit)).To(BeTrue())
	})
})
