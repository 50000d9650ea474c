// Package memcache provides a directory-based memory-side cache that keeps
// many private L1 caches coherent with update and invalidate messages.
package memcache

import (
	"errors"
	"fmt"
	"log"

	"github.com/sarchlab/memcoherence/mem/memcache/internal/arbitration"
	"github.com/sarchlab/memcoherence/mem/memcache/internal/directory"
	"github.com/sarchlab/memcoherence/mem/memcache/internal/reservation"
	"github.com/sarchlab/memcoherence/mem/memcache/internal/transaction"
	"github.com/sarchlab/memcoherence/mem/memcache/internal/update"
	"github.com/sarchlab/memcoherence/mem/vci"
	"github.com/sarchlab/memcoherence/sim"
)

type engineTag int

const (
	tagRead engineTag = iota
	tagWrite
	tagLLSC
	tagCleanup
	tagXramRsp
	tagXramRecv
	tagInitRsp
)

var engineTagNames = []string{
	"read", "write", "llsc", "cleanup", "xram_rsp", "xram_recv", "init_rsp",
}

func (t engineTag) String() string {
	return engineTagNames[t]
}

type requestPath int

const (
	pathTarget requestPath = iota
	pathCleanup
	pathMemory
	pathCoherence
	numPaths
)

var pathNames = []string{"target", "cleanup", "memory", "coherence"}

func (p requestPath) String() string {
	return pathNames[p]
}

// A coherenceCmd is a multicast or broadcast prepared by an engine for the
// coherence port. Broadcasts go to every registered L1 cache.
type coherenceCmd struct {
	update      bool
	broadcast   bool
	line        uint64
	instruction bool
	wordIndex   int
	data        []uint32
	byteEnables []uint8
	uptIndex    int
	targets     []directory.Owner
}

type engine interface {
	Tick() bool
	idle() bool
	stateName() string
}

// Stats counts what the memory cache has done.
type Stats struct {
	ReadHits        uint64
	ReadMisses      uint64
	WriteHits       uint64
	WriteMisses     uint64
	LLs             uint64
	SCs             uint64
	SCFailures      uint64
	Cleanups        uint64
	UpdatesSent     uint64
	InvalsSent      uint64
	Evictions       uint64
	WriteBacks      uint64
	Demotions       uint64
	Retries         uint64
	MemoryReads     uint64
	CoherenceAcks   uint64
	TargetResponses uint64
}

// Comp is the memory cache.
type Comp struct {
	*sim.ComponentBase

	topPort       sim.Port
	cleanupPort   sim.Port
	coherencePort sim.Port
	memoryPort    sim.Port

	xramPort         sim.RemotePort
	coherenceTargets map[uint32]sim.RemotePort

	freq        sim.Freq
	cycle       uint64
	addr        vci.AddressMapping
	segments    vci.SegmentTable
	copiesLimit int
	debug       bool

	dir          *directory.Directory
	data         *directory.DataArray
	heap         *directory.Heap
	trt          *transaction.Table
	upt          *update.Table
	reservations *reservation.Table

	dirArb  *arbitration.RoundRobinArbiter[engineTag]
	trtArb  *arbitration.RoundRobinArbiter[engineTag]
	uptArb  *arbitration.RoundRobinArbiter[engineTag]
	heapArb *arbitration.RoundRobinArbiter[engineTag]

	readQueue  *handoff[*vci.ReadReq]
	writeQueue *handoff[*vci.WriteReq]
	llscQueue  *handoff[vci.TargetReq]
	readyQueue *handoff[int]

	readRsp    *handoff[vci.TargetRsp]
	writeRsp   *handoff[vci.TargetRsp]
	llscRsp    *handoff[vci.TargetRsp]
	cleanupRsp *handoff[vci.TargetRsp]
	xramRspRsp *handoff[vci.TargetRsp]
	initRspRsp *handoff[vci.TargetRsp]

	readXram    *handoff[sim.Msg]
	writeXram   *handoff[sim.Msg]
	llscXram    *handoff[sim.Msg]
	xramRspXram *handoff[sim.Msg]

	writeInit   *handoff[coherenceCmd]
	llscInit    *handoff[coherenceCmd]
	xramRspInit *handoff[coherenceCmd]

	dispatcher    *dispatcher
	readEngine    *readEngine
	writeEngine   *writeEngine
	llscEngine    *llscEngine
	cleanupEngine *cleanupEngine
	xramCmd       *xramCmdEngine
	xramReceiver  *xramReceiver
	xramRsp       *xramRspEngine
	initCmd       *initCmdEngine
	initRsp       *initRspEngine

	engines  []engine
	handoffs []committer

	stats  Stats
	errs   []error
	halted [numPaths]bool
}

// TopPort returns the port that receives the commands of the L1 caches.
func (c *Comp) TopPort() sim.Port {
	return c.topPort
}

// CleanupPort returns the port that receives eviction notices.
func (c *Comp) CleanupPort() sim.Port {
	return c.cleanupPort
}

// CoherencePort returns the port that sends updates and invalidations.
func (c *Comp) CoherencePort() sim.Port {
	return c.coherencePort
}

// MemoryPort returns the port that connects to the external memory.
func (c *Comp) MemoryPort() sim.Port {
	return c.memoryPort
}

// SetXramPort sets the port of the external memory.
func (c *Comp) SetXramPort(port sim.RemotePort) {
	c.xramPort = port
}

// SetCoherenceTarget registers the coherence port of the L1 cache with the
// given source ID.
func (c *Comp) SetCoherenceTarget(srcID uint32, port sim.RemotePort) {
	c.coherenceTargets[srcID] = port
	c.initCmd.refreshBroadcastOrder()
}

// AddressMapping returns how addresses map to lines and sets.
func (c *Comp) AddressMapping() vci.AddressMapping {
	return c.addr
}

// CurrentTime returns the time of the current cycle.
func (c *Comp) CurrentTime() sim.VTimeInSec {
	return c.freq.TimeAt(c.cycle)
}

// Stats returns the counters of the memory cache.
func (c *Comp) Stats() Stats {
	return c.stats
}

// Err returns the fatal errors that halted request paths, if any.
func (c *Comp) Err() error {
	return errors.Join(c.errs...)
}

// Tick runs all the engines for one cycle, then decides the grants and
// publishes the hand-offs for the next cycle.
func (c *Comp) Tick() bool {
	madeProgress := false

	for _, e := range c.engines {
		madeProgress = e.Tick() || madeProgress
	}

	for _, a := range c.arbiters() {
		a.Arbitrate()
	}

	for _, h := range c.handoffs {
		h.commit()
	}

	c.cycle++

	return madeProgress
}

// Idle tells if the memory cache has nothing in flight.
func (c *Comp) Idle() bool {
	for _, e := range c.engines {
		if !e.idle() {
			return false
		}
	}

	for _, h := range c.handoffs {
		if !h.Empty() {
			return false
		}
	}

	return c.trt.NumValid() == 0 && c.upt.NumValid() == 0
}

func (c *Comp) arbiters() []*arbitration.RoundRobinArbiter[engineTag] {
	return []*arbitration.RoundRobinArbiter[engineTag]{
		c.dirArb, c.trtArb, c.uptArb, c.heapArb,
	}
}

// releaseAll gives back every resource that the engine holds.
func (c *Comp) releaseAll(tag engineTag) {
	for _, a := range c.arbiters() {
		if a.Has(tag) && a.Holds(tag) {
			a.Release(tag)
		}
	}
}

func (c *Comp) fail(p requestPath, err error) {
	if c.halted[p] {
		return
	}

	c.halted[p] = true
	c.errs = append(c.errs, err)

	log.Printf("%s: %s path halted: %v", c.Name(), p, err)
}

func (c *Comp) isHalted(p requestPath) bool {
	return c.halted[p]
}

func (c *Comp) debugf(format string, args ...any) {
	if !c.debug {
		return
	}

	log.Printf("[%d] %s: %s", c.cycle, c.Name(), fmt.Sprintf(format, args...))
}

func (c *Comp) taskID(reqID string) string {
	return reqID + "@" + c.Name()
}

func originOf(req vci.TargetReq) transaction.Origin {
	return transaction.Origin{
		Requester: req.GetRequester(),
		ReqID:     req.Meta().ID,
		Src:       req.Meta().Src,
	}
}

func (c *Comp) rspBuilder(o transaction.Origin) vci.TargetRspBuilder {
	return vci.TargetRspBuilder{}.
		WithSrc(c.topPort.AsRemote()).
		WithDst(o.Src).
		WithRequester(o.Requester).
		WithRspTo(o.ReqID)
}

// storeRsp builds the response that completes a write or a successful SC.
func (c *Comp) storeRsp(o transaction.Origin, kind update.RspKind) vci.TargetRsp {
	b := c.rspBuilder(o)

	if kind == update.RspSC {
		return b.BuildSC(vci.SCSuccess)
	}

	return b.BuildWriteDone()
}

func (c *Comp) xramRead(trtIndex int, line uint64) sim.Msg {
	c.stats.MemoryReads++

	return vci.NewXramReadReq(c.memoryPort.AsRemote(), c.xramPort,
		trtIndex, c.addr.LineAddress(line), c.addr.WordsPerLine)
}

func (c *Comp) xramWrite(trtIndex int, line uint64, data []uint32) sim.Msg {
	c.stats.WriteBacks++

	return vci.NewXramWriteReq(c.memoryPort.AsRemote(), c.xramPort,
		trtIndex, c.addr.LineAddress(line), data)
}

// owners returns the directory owner followed by the heap chain.
func (c *Comp) owners(e directory.Entry) []directory.Owner {
	if !e.HasOwner() {
		return nil
	}

	return append([]directory.Owner{e.Owner}, c.heap.Chain(e.HeapHead)...)
}

// isSharer tells if the directory already records the copy of owner.
func (c *Comp) isSharer(e directory.Entry, owner directory.Owner) bool {
	for _, o := range c.owners(e) {
		if o == owner {
			return true
		}
	}

	return false
}
