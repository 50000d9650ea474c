package memcache

import (
	"github.com/sarchlab/memcoherence/mem/memcache/internal/update"
	"github.com/sarchlab/memcoherence/mem/vci"
	"github.com/sarchlab/memcoherence/tracing"
)

type llscState int

const (
	llscIdle llscState = iota
	llscDirLock
	llscStore
	llscTrtLock
)

var llscStateNames = []string{"idle", "dir_lock", "store", "trt_lock"}

// llscEngine serves the load-linked and store-conditional requests. Both
// need the line in the cache. On a miss, the line is fetched on its own and
// the request is served again once it is installed.
type llscEngine struct {
	c   *Comp
	seq *storeSequencer

	state llscState
	req   vci.TargetReq
	line  uint64
	set   int
}

func (e *llscEngine) idle() bool {
	return e.state == llscIdle
}

func (e *llscEngine) stateName() string {
	if e.state == llscStore {
		return "store_" + storeStateNames[e.seq.state]
	}

	return llscStateNames[e.state]
}

func (e *llscEngine) Tick() bool {
	switch e.state {
	case llscIdle:
		return e.start()
	case llscDirLock:
		return e.lookup()
	case llscStore:
		return e.store()
	case llscTrtLock:
		return e.fetch()
	}

	return false
}

func (e *llscEngine) start() bool {
	c := e.c

	req, ok := c.llscQueue.Peek()
	if !ok || !e.seq.canStart() {
		return false
	}

	e.req = req
	e.line = c.addr.Line(req.GetAddress())
	e.set = c.addr.Set(e.line)
	e.state = llscDirLock
	c.dirArb.Request(tagLLSC)

	return true
}

func (e *llscEngine) retry(reason string) bool {
	c := e.c

	c.releaseAll(tagLLSC)
	c.stats.Retries++
	e.state = llscIdle

	tracing.AddTaskStep(c.taskID(e.req.Meta().ID), c, "retry_"+reason)
	c.debugf("llsc at 0x%x retries: %s", e.req.GetAddress(), reason)

	return true
}

func (e *llscEngine) finish(rsp vci.TargetRsp) {
	c := e.c

	if rsp != nil {
		c.llscRsp.Push(rsp)
	}

	c.llscQueue.Pop()
	c.releaseAll(tagLLSC)
	e.state = llscIdle
}

func (e *llscEngine) lookup() bool {
	c := e.c

	if !c.dirArb.Holds(tagLLSC) {
		return false
	}

	entry, way, hit := c.dir.Lookup(e.set, c.addr.Tag(e.line))
	if !hit {
		e.state = llscTrtLock
		c.trtArb.Request(tagLLSC)

		return true
	}

	if entry.Locked {
		return e.retry("line_locked")
	}

	rsp := c.rspBuilder(originOf(e.req))

	switch req := e.req.(type) {
	case *vci.LLReq:
		word := c.data.Words(e.set, way, c.addr.WordIndex(req.Address), 1)[0]
		c.reservations.Set(req.SrcID, req.Address)
		c.stats.LLs++

		tracing.AddTaskStep(c.taskID(req.ID), c, "reserved")
		e.finish(rsp.BuildLL(word))
	case *vci.SCReq:
		if !c.reservations.IsReserved(req.SrcID, req.Address) {
			c.stats.SCs++
			c.stats.SCFailures++

			tracing.AddTaskStep(c.taskID(req.ID), c, "sc_failed")
			e.finish(rsp.BuildSC(vci.SCFailure))

			return true
		}

		result := e.seq.start(store{
			origin:  originOf(req),
			line:    e.line,
			word:    c.addr.WordIndex(req.Address),
			data:    []uint32{req.Data},
			be:      []uint8{0xF},
			rspKind: update.RspSC,
		}, entry, e.set, way)
		e.afterStore(result)
	}

	return true
}

func (e *llscEngine) store() bool {
	result, progress := e.seq.tick()
	e.afterStore(result)

	return progress
}

func (e *llscEngine) afterStore(result storeResult) {
	switch result {
	case storeDone:
		e.c.stats.SCs++
		e.finish(nil)
	case storeRetry:
		e.state = llscIdle
	default:
		e.state = llscStore
	}
}

// fetch brings the line in without any reader so that the request hits when
// it is served again.
func (e *llscEngine) fetch() bool {
	c := e.c

	if !c.trtArb.Holds(tagLLSC) {
		return false
	}

	if _, pending := c.trt.HasOutstandingRead(e.line); pending {
		return e.retry("fetch_pending")
	}

	if c.trt.HasOutstandingWrite(e.line) {
		return e.retry("write_back_pending")
	}

	index, ok := c.trt.TryAllocate()
	if !ok {
		return e.retry("trt_full")
	}

	c.trt.StartFetch(index, e.line, nil)
	c.llscXram.Push(c.xramRead(index, e.line))

	tracing.AddTaskStep(c.taskID(e.req.Meta().ID), c, "llsc_miss")
	c.debugf("llsc miss on line 0x%x, trt %d", e.line, index)

	return e.retry("line_fetched")
}
