package memcache

import (
	"log"

	"github.com/sarchlab/memcoherence/mem/memcache/internal/arbitration"
	"github.com/sarchlab/memcoherence/mem/memcache/internal/directory"
	"github.com/sarchlab/memcoherence/mem/memcache/internal/reservation"
	"github.com/sarchlab/memcoherence/mem/memcache/internal/transaction"
	"github.com/sarchlab/memcoherence/mem/memcache/internal/update"
	"github.com/sarchlab/memcoherence/mem/vci"
	"github.com/sarchlab/memcoherence/sim"
)

// A Builder can build memory caches.
type Builder struct {
	numWays          int
	numSets          int
	wordsPerLine     int
	heapSize         int
	trtDepth         int
	uptDepth         int
	copiesLimit      int
	queueDepth       int
	portBufferSize   int
	freq             sim.Freq
	segments         vci.SegmentTable
	xramPort         sim.RemotePort
	coherenceTargets map[uint32]sim.RemotePort
	debug            bool
}

// MakeBuilder returns a builder with the default parameters.
func MakeBuilder() Builder {
	return Builder{
		numWays:        4,
		numSets:        256,
		wordsPerLine:   16,
		heapSize:       1024,
		trtDepth:       4,
		uptDepth:       4,
		copiesLimit:    3,
		queueDepth:     4,
		portBufferSize: 4,
		freq:           1 * sim.GHz,
		segments: vci.SegmentTable{
			{Name: "ram", Base: 0, Size: 1 << 32},
		},
	}
}

// WithNumWays sets the associativity.
func (b Builder) WithNumWays(n int) Builder {
	b.numWays = n
	return b
}

// WithNumSets sets the number of sets. It must be a power of 2.
func (b Builder) WithNumSets(n int) Builder {
	b.numSets = n
	return b
}

// WithWordsPerLine sets the number of 32-bit words in a line. It must be a
// power of 2.
func (b Builder) WithWordsPerLine(n int) Builder {
	b.wordsPerLine = n
	return b
}

// WithHeapSize sets the number of heap entries that store the extra
// sharers.
func (b Builder) WithHeapSize(n int) Builder {
	b.heapSize = n
	return b
}

// WithTRTDepth sets the number of transactions that can be in flight with
// the external memory.
func (b Builder) WithTRTDepth(n int) Builder {
	b.trtDepth = n
	return b
}

// WithUPTDepth sets the number of updates and invalidations that can wait
// for acknowledgements.
func (b Builder) WithUPTDepth(n int) Builder {
	b.uptDepth = n
	return b
}

// WithCopiesLimit sets the number of copies above which a line stops
// tracking its sharers and only counts them.
func (b Builder) WithCopiesLimit(n int) Builder {
	b.copiesLimit = n
	return b
}

// WithSegments sets the address ranges that the memory cache serves.
func (b Builder) WithSegments(segments ...vci.Segment) Builder {
	b.segments = append(vci.SegmentTable(nil), segments...)
	return b
}

// WithXramPort sets the port of the external memory.
func (b Builder) WithXramPort(port sim.RemotePort) Builder {
	b.xramPort = port
	return b
}

// WithCoherenceTargets sets the coherence ports of the L1 caches, indexed
// by source ID.
func (b Builder) WithCoherenceTargets(
	targets map[uint32]sim.RemotePort,
) Builder {
	b.coherenceTargets = make(map[uint32]sim.RemotePort, len(targets))
	for id, p := range targets {
		b.coherenceTargets[id] = p
	}

	return b
}

// WithQueueDepth sets the depth of the read, write and LL/SC queues.
func (b Builder) WithQueueDepth(n int) Builder {
	b.queueDepth = n
	return b
}

// WithPortBufferSize sets the size of the port buffers.
func (b Builder) WithPortBufferSize(n int) Builder {
	b.portBufferSize = n
	return b
}

// WithFreq sets the frequency.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithDebugLog turns the per-engine debug log on or off.
func (b Builder) WithDebugLog(on bool) Builder {
	b.debug = on
	return b
}

func (b Builder) mustBeValid() {
	positives := []struct {
		what string
		n    int
	}{
		{"number of ways", b.numWays},
		{"heap size", b.heapSize},
		{"transaction table depth", b.trtDepth},
		{"update table depth", b.uptDepth},
		{"copies limit", b.copiesLimit},
		{"queue depth", b.queueDepth},
		{"port buffer size", b.portBufferSize},
	}

	for _, p := range positives {
		if p.n <= 0 {
			log.Panicf("%s must be positive, got %d", p.what, p.n)
		}
	}

	if len(b.segments) == 0 {
		log.Panic("memory cache needs at least one segment")
	}
}

// Build creates a memory cache.
func (b Builder) Build(name string) *Comp {
	b.mustBeValid()

	c := &Comp{
		ComponentBase:    sim.NewComponentBase(name),
		xramPort:         b.xramPort,
		coherenceTargets: make(map[uint32]sim.RemotePort),
		freq:             b.freq,
		addr:             vci.NewAddressMapping(b.wordsPerLine, b.numSets),
		segments:         b.segments,
		copiesLimit:      b.copiesLimit,
		debug:            b.debug,
	}

	b.buildPorts(c)
	b.buildResources(c)
	b.buildHandoffs(c)
	b.buildEngines(c)

	for id, p := range b.coherenceTargets {
		c.coherenceTargets[id] = p
	}

	c.initCmd.refreshBroadcastOrder()

	return c
}

func (b Builder) buildPorts(c *Comp) {
	name := c.Name()
	n := b.portBufferSize

	c.topPort = sim.NewPort(n, n, name+".TopPort")
	c.cleanupPort = sim.NewPort(n, n, name+".CleanupPort")
	c.coherencePort = sim.NewPort(n, n, name+".CoherencePort")
	c.memoryPort = sim.NewPort(n, n, name+".MemoryPort")

	c.AddPort("Top", c.topPort)
	c.AddPort("Cleanup", c.cleanupPort)
	c.AddPort("Coherence", c.coherencePort)
	c.AddPort("Memory", c.memoryPort)
}

func (b Builder) buildResources(c *Comp) {
	c.dir = directory.NewDirectory(b.numSets, b.numWays)
	c.data = directory.NewDataArray(b.numSets, b.numWays, b.wordsPerLine)
	c.heap = directory.NewHeap(b.heapSize)
	c.trt = transaction.NewTable(b.trtDepth, b.wordsPerLine)
	c.upt = update.NewTable(b.uptDepth)
	c.reservations = reservation.NewTable(c.addr.Line)

	name := c.Name()
	c.dirArb = arbitration.NewRoundRobinArbiter(name+".DirArbiter",
		tagRead, tagWrite, tagLLSC, tagCleanup, tagXramRsp)
	c.trtArb = arbitration.NewRoundRobinArbiter(name+".TRTArbiter",
		tagRead, tagWrite, tagLLSC, tagXramRsp, tagXramRecv)
	c.uptArb = arbitration.NewRoundRobinArbiter(name+".UPTArbiter",
		tagWrite, tagLLSC, tagCleanup, tagXramRsp, tagInitRsp)
	c.heapArb = arbitration.NewRoundRobinArbiter(name+".HeapArbiter",
		tagRead, tagWrite, tagLLSC, tagCleanup, tagXramRsp)
}

func (b Builder) buildHandoffs(c *Comp) {
	c.readQueue = newHandoff[*vci.ReadReq](b.queueDepth)
	c.writeQueue = newHandoff[*vci.WriteReq](b.queueDepth)
	c.llscQueue = newHandoff[vci.TargetReq](b.queueDepth)
	c.readyQueue = newHandoff[int](b.trtDepth)

	rsps := []**handoff[vci.TargetRsp]{
		&c.readRsp, &c.writeRsp, &c.llscRsp,
		&c.cleanupRsp, &c.xramRspRsp, &c.initRspRsp,
	}
	for _, p := range rsps {
		*p = newHandoff[vci.TargetRsp](1)
		c.handoffs = append(c.handoffs, *p)
	}

	xrams := []**handoff[sim.Msg]{
		&c.readXram, &c.writeXram, &c.llscXram, &c.xramRspXram,
	}
	for _, p := range xrams {
		*p = newHandoff[sim.Msg](1)
		c.handoffs = append(c.handoffs, *p)
	}

	inits := []**handoff[coherenceCmd]{
		&c.writeInit, &c.llscInit, &c.xramRspInit,
	}
	for _, p := range inits {
		*p = newHandoff[coherenceCmd](1)
		c.handoffs = append(c.handoffs, *p)
	}

	c.handoffs = append(c.handoffs,
		c.readQueue, c.writeQueue, c.llscQueue, c.readyQueue)
}

func (b Builder) buildEngines(c *Comp) {
	c.dispatcher = &dispatcher{
		c: c,
		sources: []*handoff[vci.TargetRsp]{
			c.readRsp, c.writeRsp, c.llscRsp,
			c.cleanupRsp, c.xramRspRsp, c.initRspRsp,
		},
	}
	c.readEngine = &readEngine{c: c}
	c.writeEngine = &writeEngine{
		c: c,
		seq: &storeSequencer{
			c: c, tag: tagWrite,
			rsp: c.writeRsp, xram: c.writeXram, init: c.writeInit,
		},
	}
	c.llscEngine = &llscEngine{
		c: c,
		seq: &storeSequencer{
			c: c, tag: tagLLSC,
			rsp: c.llscRsp, xram: c.llscXram, init: c.llscInit,
		},
	}
	c.cleanupEngine = &cleanupEngine{c: c}
	c.xramCmd = &xramCmdEngine{
		c: c,
		sources: []*handoff[sim.Msg]{
			c.readXram, c.writeXram, c.llscXram, c.xramRspXram,
		},
	}
	c.xramReceiver = &xramReceiver{c: c}
	c.xramRsp = &xramRspEngine{c: c}
	c.initCmd = &initCmdEngine{
		c: c,
		sources: []*handoff[coherenceCmd]{
			c.writeInit, c.llscInit, c.xramRspInit,
		},
	}
	c.initRsp = &initRspEngine{c: c}

	c.engines = []engine{
		c.dispatcher,
		c.readEngine,
		c.writeEngine,
		c.llscEngine,
		c.cleanupEngine,
		c.xramReceiver,
		c.xramRsp,
		c.xramCmd,
		c.initCmd,
		c.initRsp,
	}
}
