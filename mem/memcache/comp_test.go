package memcache

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/memcoherence/mem/memcache/internal/directory"
	"github.com/sarchlab/memcoherence/mem/vci"
	"github.com/sarchlab/memcoherence/sim"
)

var _ = Describe("Comp", func() {
	var c *Comp

	BeforeEach(func() {
		c = MakeBuilder().
			WithWordsPerLine(4).
			WithNumSets(16).
			WithNumWays(2).
			WithSegments(vci.Segment{Name: "ram", Base: 0, Size: 0x1000}).
			WithXramPort("Xram.TopPort").
			Build("Cache")
	})

	tick := func(n int) {
		for i := 0; i < n; i++ {
			c.Tick()
		}
	}

	It("should be idle and consistent after build", func() {
		Expect(c.Idle()).To(BeTrue())
		Expect(c.CheckInvariants()).To(Succeed())
		Expect(c.Err()).NotTo(HaveOccurred())
		Expect(c.Lines()).To(BeEmpty())
	})

	It("should register its ports", func() {
		Expect(c.GetPortByName("Top")).To(BeIdenticalTo(c.TopPort()))
		Expect(c.GetPortByName("Cleanup")).To(BeIdenticalTo(c.CleanupPort()))
		Expect(c.GetPortByName("Coherence")).
			To(BeIdenticalTo(c.CoherencePort()))
		Expect(c.GetPortByName("Memory")).To(BeIdenticalTo(c.MemoryPort()))
	})

	It("should panic on an invalid geometry", func() {
		Expect(func() { MakeBuilder().WithNumWays(0).Build("X") }).To(Panic())
		Expect(func() { MakeBuilder().WithNumSets(3).Build("X") }).To(Panic())
		Expect(func() { MakeBuilder().WithSegments().Build("X") }).To(Panic())
	})

	It("should fetch a missing line from the external memory", func() {
		read := vci.TargetReqBuilder{}.
			WithSrc("Agent.TopPort").
			WithDst(c.TopPort().AsRemote()).
			WithAddress(0x40).
			BuildRead()
		c.TopPort().Deliver(read)

		tick(10)

		msg := c.MemoryPort().PeekOutgoing()
		Expect(msg).To(BeAssignableToTypeOf(&vci.XramReadReq{}))

		fetch := msg.(*vci.XramReadReq)
		Expect(fetch.Address).To(Equal(uint64(0x40)))
		Expect(fetch.NumWords).To(Equal(4))
		Expect(fetch.Dst).To(Equal(sim.RemotePort("Xram.TopPort")))
		Expect(c.Idle()).To(BeFalse())
		Expect(c.Stats().ReadMisses).To(Equal(uint64(1)))
	})

	It("should halt the memory path on a response without transaction", func() {
		c.MemoryPort().Deliver(vci.NewXramDataRsp("Xram.TopPort",
			&vci.XramReadReq{
				MsgMeta:  sim.MsgMeta{ID: "fake", Src: c.MemoryPort().AsRemote()},
				TrtIndex: 2,
			}, []uint32{1, 2, 3, 4}))

		tick(3)

		Expect(c.Err()).To(MatchError(ErrProtocolViolation))

		snapshot := c.Snapshot().(*Snapshot)
		Expect(snapshot.HaltedPaths).To(Equal([]string{"memory"}))
		Expect(c.MemoryPort().PeekIncoming()).NotTo(BeNil())
	})

	It("should halt the coherence path on an unexpected ack", func() {
		update := vci.NewUpdateReq(c.CoherencePort().AsRemote(),
			"Agent.CoherencePort", 4, 0, []uint32{1}, []uint8{0xF}, 1)
		c.CoherencePort().Deliver(
			vci.NewCoherenceAck("Agent.CoherencePort", 0, update))

		tick(3)

		Expect(c.Err()).To(MatchError(ErrProtocolViolation))
		Expect(c.isHalted(pathCoherence)).To(BeTrue())
		Expect(c.isHalted(pathTarget)).To(BeFalse())
	})

	It("should halt the cleanup path on a line out of range", func() {
		c.CleanupPort().Deliver(vci.NewCleanupReq("Agent.CleanupPort",
			c.CleanupPort().AsRemote(), 0, false, 0x1000))

		tick(1)

		Expect(c.Err()).To(MatchError(ErrOutOfRange))
		Expect(c.isHalted(pathCleanup)).To(BeTrue())
	})

	It("should reject an unknown message on the target port", func() {
		c.TopPort().Deliver(vci.NewCleanupReq("Agent.TopPort",
			c.TopPort().AsRemote(), 0, false, 4))

		tick(1)

		Expect(c.Err()).To(MatchError(ErrUnsupportedRequest))
	})

	It("should report a copy count that does not match the sharers", func() {
		c.dir.Write(0, 0, directory.Entry{
			Valid:    true,
			Count:    2,
			Owner:    directory.Owner{SrcID: 1},
			HeapHead: directory.NoHeap,
		})

		Expect(c.CheckInvariants()).To(MatchError(ErrInvariantViolation))
	})

	It("should show the state of its engines", func() {
		snapshot := c.Snapshot().(*Snapshot)

		Expect(snapshot.Idle).To(BeTrue())
		Expect(snapshot.Engines).To(HaveKeyWithValue("read", "idle"))
		Expect(snapshot.Holders).To(HaveKeyWithValue("Cache.DirArbiter", "none"))
		Expect(snapshot.HeapFree).To(Equal(1024))
		Expect(snapshot.InvariantErrs).To(BeEmpty())
	})

	Context("when a requester already holds a copy", func() {
		var set int
		var tag uint64

		BeforeEach(func() {
			line := c.addr.Line(0x40)
			set, tag = c.addr.Set(line), c.addr.Tag(line)
		})

		serve := func(req sim.Msg) sim.Msg {
			Expect(c.TopPort().Deliver(req)).To(BeNil())

			for i := 0; i < 50; i++ {
				c.Tick()

				if rsp := c.TopPort().RetrieveOutgoing(); rsp != nil {
					return rsp
				}
			}

			return nil
		}

		builder := func(src uint32) vci.TargetReqBuilder {
			return vci.TargetReqBuilder{}.
				WithSrc("Agent.TopPort").
				WithDst(c.TopPort().AsRemote()).
				WithRequester(vci.Requester{SrcID: src}).
				WithAddress(0x40)
		}

		It("should record the directory owner once", func() {
			c.dir.Write(set, 0, directory.Entry{
				Valid: true, Tag: tag, HeapHead: directory.NoHeap,
			})

			Expect(serve(builder(1).Cached().BuildRead())).
				To(BeAssignableToTypeOf(&vci.DataReadyRsp{}))
			Expect(serve(builder(1).Cached().BuildRead())).
				To(BeAssignableToTypeOf(&vci.DataReadyRsp{}))

			s, _ := c.Line(c.addr.Line(0x40))
			Expect(s.Count).To(Equal(1))
			Expect(s.Sharers).To(Equal([]uint32{1}))

			Expect(serve(builder(1).WithData(5).BuildWrite())).
				To(BeAssignableToTypeOf(&vci.WriteDoneRsp{}))
			Expect(c.Err()).NotTo(HaveOccurred())
			Expect(c.PendingAcks()).To(BeZero())
			Expect(c.CheckInvariants()).To(Succeed())
		})

		It("should not add a sharer of the heap chain twice", func() {
			head, err := c.heap.AllocHead(directory.NoHeap,
				directory.Owner{SrcID: 1})
			Expect(err).NotTo(HaveOccurred())

			c.dir.Write(set, 0, directory.Entry{
				Valid:    true,
				Tag:      tag,
				Count:    2,
				Owner:    directory.Owner{SrcID: 2},
				HeapHead: head,
			})
			free := c.Snapshot().(*Snapshot).HeapFree

			Expect(serve(builder(1).Cached().BuildRead())).
				To(BeAssignableToTypeOf(&vci.DataReadyRsp{}))

			s, _ := c.Line(c.addr.Line(0x40))
			Expect(s.Count).To(Equal(2))
			Expect(s.Sharers).To(Equal([]uint32{2, 1}))
			Expect(c.Snapshot().(*Snapshot).HeapFree).To(Equal(free))
			Expect(c.CheckInvariants()).To(Succeed())
		})

		It("should ack at once a write with no other sharer to update", func() {
			head, err := c.heap.AllocHead(directory.NoHeap,
				directory.Owner{SrcID: 1})
			Expect(err).NotTo(HaveOccurred())

			c.dir.Write(set, 0, directory.Entry{
				Valid:    true,
				Tag:      tag,
				Count:    2,
				Owner:    directory.Owner{SrcID: 1},
				HeapHead: head,
			})

			Expect(serve(builder(1).WithData(7).BuildWrite())).
				To(BeAssignableToTypeOf(&vci.WriteDoneRsp{}))
			Expect(c.CoherencePort().PeekOutgoing()).To(BeNil())
			Expect(c.PendingAcks()).To(BeZero())
			Expect(c.Err()).NotTo(HaveOccurred())

			s, _ := c.Line(c.addr.Line(0x40))
			Expect(s.Data[0]).To(Equal(uint32(7)))
			Expect(c.CheckInvariants()).To(MatchError(ErrInvariantViolation))
		})
	})
})
