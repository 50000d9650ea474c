package memcache

import (
	"github.com/sarchlab/memcoherence/mem/memcache/internal/update"
	"github.com/sarchlab/memcoherence/mem/vci"
	"github.com/sarchlab/memcoherence/tracing"
)

type writeState int

const (
	writeIdle writeState = iota
	writeDirLock
	writeStore
	writeTrtLock
)

var writeStateNames = []string{"idle", "dir_lock", "store", "trt_lock"}

// writeEngine serves the write bursts. Hits go through the store sequencer.
// Misses merge the burst into a fetch, so the write is acknowledged when the
// line is installed.
type writeEngine struct {
	c   *Comp
	seq *storeSequencer

	state    writeState
	req      *vci.WriteReq
	line     uint64
	set, way int
}

func (e *writeEngine) idle() bool {
	return e.state == writeIdle
}

func (e *writeEngine) stateName() string {
	if e.state == writeStore {
		return "store_" + storeStateNames[e.seq.state]
	}

	return writeStateNames[e.state]
}

func (e *writeEngine) Tick() bool {
	switch e.state {
	case writeIdle:
		return e.start()
	case writeDirLock:
		return e.lookup()
	case writeStore:
		return e.store()
	case writeTrtLock:
		return e.mergeMiss()
	}

	return false
}

func (e *writeEngine) start() bool {
	c := e.c

	req, ok := c.writeQueue.Peek()
	if !ok || !e.seq.canStart() {
		return false
	}

	e.req = req
	e.line = c.addr.Line(req.Address)
	e.set = c.addr.Set(e.line)
	e.state = writeDirLock
	c.dirArb.Request(tagWrite)

	return true
}

func (e *writeEngine) retry(reason string) bool {
	c := e.c

	c.releaseAll(tagWrite)
	c.stats.Retries++
	e.state = writeIdle

	tracing.AddTaskStep(c.taskID(e.req.ID), c, "retry_"+reason)
	c.debugf("write to 0x%x retries: %s", e.req.Address, reason)

	return true
}

func (e *writeEngine) finish() {
	e.c.writeQueue.Pop()
	e.state = writeIdle
}

func (e *writeEngine) lookup() bool {
	c := e.c

	if !c.dirArb.Holds(tagWrite) {
		return false
	}

	entry, way, hit := c.dir.Lookup(e.set, c.addr.Tag(e.line))
	if !hit {
		e.state = writeTrtLock
		c.trtArb.Request(tagWrite)

		return true
	}

	if entry.Locked {
		return e.retry("line_locked")
	}

	e.way = way
	tracing.AddTaskStep(c.taskID(e.req.ID), c, "write_hit")

	result := e.seq.start(store{
		origin:  originOf(e.req),
		line:    e.line,
		word:    c.addr.WordIndex(e.req.Address),
		data:    e.req.Data,
		be:      e.req.ByteEnables,
		rspKind: update.RspWrite,
	}, entry, e.set, way)

	e.afterStore(result)

	return true
}

func (e *writeEngine) store() bool {
	result, progress := e.seq.tick()
	e.afterStore(result)

	return progress
}

func (e *writeEngine) afterStore(result storeResult) {
	switch result {
	case storeDone:
		e.c.stats.WriteHits++
		e.finish()
	case storeRetry:
		e.state = writeIdle
	default:
		e.state = writeStore
	}
}

// mergeMiss joins the fetch of the line if there is one, or starts one.
func (e *writeEngine) mergeMiss() bool {
	c := e.c

	if !c.trtArb.Holds(tagWrite) {
		return false
	}

	word := c.addr.WordIndex(e.req.Address)

	index, pending := c.trt.HasOutstandingRead(e.line)
	if !pending {
		if c.trt.HasOutstandingWrite(e.line) {
			return e.retry("write_back_pending")
		}

		var ok bool

		index, ok = c.trt.TryAllocate()
		if !ok {
			return e.retry("trt_full")
		}

		c.trt.StartFetch(index, e.line, nil)
		c.writeXram.Push(c.xramRead(index, e.line))
	}

	c.trt.MergeWrite(index, word, e.req.Data, e.req.ByteEnables,
		originOf(e.req))
	c.reservations.ResetLine(e.line)
	c.stats.WriteMisses++

	tracing.AddTaskStep(c.taskID(e.req.ID), c, "write_miss")
	c.debugf("write miss on line 0x%x merged into trt %d", e.line, index)

	c.releaseAll(tagWrite)
	e.finish()

	return true
}
