package memcache

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/memcoherence/mem/vci"
	"github.com/sarchlab/memcoherence/sim"
	gomock "go.uber.org/mock/gomock"
)

var _ = Describe("Dispatcher", func() {
	var (
		mockCtrl *gomock.Controller
		topPort  *MockPort
		c        *Comp
		d        *dispatcher
	)

	reqBuilder := func() vci.TargetReqBuilder {
		return vci.TargetReqBuilder{}.
			WithSrc("Agent.TopPort").
			WithDst("Cache.TopPort").
			WithRequester(vci.Requester{SrcID: 1, TrdID: 2})
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		topPort = NewMockPort(mockCtrl)
		topPort.EXPECT().AsRemote().Return(sim.RemotePort("Cache.TopPort")).
			AnyTimes()

		c = MakeBuilder().
			WithWordsPerLine(4).
			WithNumSets(16).
			WithSegments(vci.Segment{Name: "ram", Base: 0, Size: 0x1000}).
			Build("Cache")
		c.topPort = topPort
		d = c.dispatcher
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should do nothing if there is no request", func() {
		topPort.EXPECT().CanSend().Return(true)
		topPort.EXPECT().PeekIncoming().Return(nil)

		Expect(d.Tick()).To(BeFalse())
	})

	It("should sort the commands into the queues", func() {
		read := reqBuilder().WithAddress(0x40).BuildRead()
		write := reqBuilder().WithAddress(0x44).WithData(1).BuildWrite()
		ll := reqBuilder().WithAddress(0x48).BuildLL()

		for _, req := range []sim.Msg{read, write, ll} {
			topPort.EXPECT().CanSend().Return(true)
			topPort.EXPECT().PeekIncoming().Return(req)
			topPort.EXPECT().RetrieveIncoming().Return(req)

			Expect(d.Tick()).To(BeTrue())
		}

		c.readQueue.commit()
		c.writeQueue.commit()
		c.llscQueue.commit()

		r, _ := c.readQueue.Peek()
		w, _ := c.writeQueue.Peek()
		l, _ := c.llscQueue.Peek()
		Expect(r).To(BeIdenticalTo(read))
		Expect(w).To(BeIdenticalTo(write))
		Expect(l).To(BeIdenticalTo(ll))
	})

	It("should leave the command in the port if the queue is full", func() {
		for i := 0; i < 4; i++ {
			c.readQueue.Push(reqBuilder().WithAddress(0x40).BuildRead())
		}
		c.readQueue.commit()

		read := reqBuilder().WithAddress(0x40).BuildRead()
		topPort.EXPECT().CanSend().Return(true)
		topPort.EXPECT().PeekIncoming().Return(read)

		Expect(d.Tick()).To(BeFalse())
		Expect(c.Err()).NotTo(HaveOccurred())
	})

	It("should halt the target path on a burst that crosses a line", func() {
		write := reqBuilder().WithAddress(0x4C).WithData(1, 2).BuildWrite()

		topPort.EXPECT().CanSend().Return(true)
		topPort.EXPECT().PeekIncoming().Return(write)

		d.Tick()

		Expect(c.Err()).To(MatchError(ErrUnsupportedRequest))

		topPort.EXPECT().CanSend().Return(true)

		Expect(d.Tick()).To(BeFalse())
		Expect(c.isHalted(pathTarget)).To(BeTrue())
		Expect(c.isHalted(pathCleanup)).To(BeFalse())
	})

	It("should halt the target path on an address out of range", func() {
		read := reqBuilder().WithAddress(0x2000).BuildRead()

		topPort.EXPECT().CanSend().Return(true)
		topPort.EXPECT().PeekIncoming().Return(read)

		d.Tick()

		Expect(c.Err()).To(MatchError(ErrOutOfRange))
	})

	It("should reject a write without byte enables for every word", func() {
		write := reqBuilder().WithAddress(0x40).WithData(1, 2).BuildWrite()
		write.ByteEnables = write.ByteEnables[:1]

		topPort.EXPECT().CanSend().Return(true)
		topPort.EXPECT().PeekIncoming().Return(write)

		d.Tick()

		Expect(c.Err()).To(MatchError(ErrUnsupportedRequest))
	})

	It("should send the responses of the engines in turn", func() {
		read := reqBuilder().WithAddress(0x40).BuildRead()
		write := reqBuilder().WithAddress(0x40).WithData(1).BuildWrite()

		readRsp := c.rspBuilder(originOf(read)).BuildDataReady([]uint32{7})
		writeRsp := c.rspBuilder(originOf(write)).BuildWriteDone()

		c.readRsp.Push(readRsp)
		c.writeRsp.Push(writeRsp)
		c.readRsp.commit()
		c.writeRsp.commit()

		gomock.InOrder(
			topPort.EXPECT().CanSend().Return(true),
			topPort.EXPECT().Send(readRsp),
			topPort.EXPECT().PeekIncoming().Return(nil),
			topPort.EXPECT().CanSend().Return(true),
			topPort.EXPECT().Send(writeRsp),
			topPort.EXPECT().PeekIncoming().Return(nil),
		)

		d.Tick()
		d.Tick()

		Expect(c.Stats().TargetResponses).To(Equal(uint64(2)))
		Expect(readRsp.Dst).To(Equal(sim.RemotePort("Agent.TopPort")))
		Expect(readRsp.RespondTo).To(Equal(read.ID))
	})

	It("should not send if the port is busy", func() {
		c.readRsp.Push(c.rspBuilder(originOf(
			reqBuilder().WithAddress(0x40).BuildRead())).BuildWriteDone())
		c.readRsp.commit()

		topPort.EXPECT().CanSend().Return(false)
		topPort.EXPECT().PeekIncoming().Return(nil)

		Expect(d.Tick()).To(BeFalse())
		Expect(c.readRsp.Len()).To(Equal(1))
	})
})
