package memcache

import (
	"log"

	"github.com/sarchlab/memcoherence/mem/memcache/internal/directory"
	"github.com/sarchlab/memcoherence/mem/memcache/internal/transaction"
	"github.com/sarchlab/memcoherence/mem/vci"
	"github.com/sarchlab/memcoherence/tracing"
)

type readState int

const (
	readIdle readState = iota
	readDirLock
	readHeapLock
	readTrtLock
)

var readStateNames = []string{"idle", "dir_lock", "heap_lock", "trt_lock"}

// readEngine serves the reads. Hits are answered from the data array and
// misses start a fetch from the external memory.
type readEngine struct {
	c *Comp

	state    readState
	req      *vci.ReadReq
	line     uint64
	set, way int
	entry    directory.Entry
}

func (e *readEngine) idle() bool {
	return e.state == readIdle
}

func (e *readEngine) stateName() string {
	return readStateNames[e.state]
}

func (e *readEngine) Tick() bool {
	switch e.state {
	case readIdle:
		return e.start()
	case readDirLock:
		return e.lookup()
	case readHeapLock:
		return e.addSharer()
	case readTrtLock:
		return e.startFetch()
	}

	return false
}

func (e *readEngine) start() bool {
	c := e.c

	req, ok := c.readQueue.Peek()
	if !ok {
		return false
	}

	if !c.readRsp.CanPush() || !c.readXram.CanPush() {
		return false
	}

	e.req = req
	e.line = c.addr.Line(req.Address)
	e.set = c.addr.Set(e.line)
	e.state = readDirLock
	c.dirArb.Request(tagRead)

	return true
}

func (e *readEngine) retry(reason string) bool {
	c := e.c

	c.releaseAll(tagRead)
	c.stats.Retries++
	e.state = readIdle

	tracing.AddTaskStep(c.taskID(e.req.ID), c, "retry_"+reason)
	c.debugf("read of 0x%x retries: %s", e.req.Address, reason)

	return true
}

func (e *readEngine) lookup() bool {
	c := e.c

	if !c.dirArb.Holds(tagRead) {
		return false
	}

	entry, way, hit := c.dir.Lookup(e.set, c.addr.Tag(e.line))
	if !hit {
		e.state = readTrtLock
		c.trtArb.Request(tagRead)

		return true
	}

	if entry.Locked {
		return e.retry("line_locked")
	}

	e.entry = entry
	e.way = way

	if !e.req.Cached {
		e.respond()
		return true
	}

	switch {
	case entry.Count == 0:
		e.entry.Owner = e.owner()
		e.entry.Count = 1
		e.entry.Instruction = e.req.Instruction
	case entry.CounterMode:
		e.entry.Count++
		e.entry.Instruction = e.entry.Instruction || e.req.Instruction
	case entry.Owner == e.owner():
		e.respond()
		return true
	default:
		e.state = readHeapLock
		c.heapArb.Request(tagRead)

		return true
	}

	c.dir.Write(e.set, e.way, e.entry)
	e.respond()

	return true
}

func (e *readEngine) owner() directory.Owner {
	return directory.Owner{
		SrcID:       e.req.SrcID,
		Instruction: e.req.Instruction,
	}
}

// addSharer records one more copy of the line. When the copy cannot be
// identified, the line falls back to counter mode.
func (e *readEngine) addSharer() bool {
	c := e.c

	if !c.heapArb.Holds(tagRead) {
		return false
	}

	if c.isSharer(e.entry, e.owner()) {
		e.respond()
		return true
	}

	if e.entry.Count >= c.copiesLimit || c.heap.Full() {
		c.heap.FreeChain(e.entry.HeapHead)
		e.entry.HeapHead = directory.NoHeap
		e.entry.Owner = directory.Owner{}
		e.entry.CounterMode = true
		c.stats.Demotions++

		tracing.AddTaskStep(c.taskID(e.req.ID), c, "counter_mode")
	} else {
		head, err := c.heap.AllocHead(e.entry.HeapHead, e.owner())
		if err != nil {
			log.Panicf("read of line 0x%x cannot extend the sharer chain: %s",
				e.line, err)
		}

		e.entry.HeapHead = head
	}

	e.entry.Count++
	e.entry.Instruction = e.entry.Instruction || e.req.Instruction

	c.dir.Write(e.set, e.way, e.entry)
	e.respond()

	return true
}

func (e *readEngine) respond() {
	c := e.c
	word := c.addr.WordIndex(e.req.Address)
	data := c.data.Words(e.set, e.way, word, e.req.NumWords)

	c.readRsp.Push(c.rspBuilder(originOf(e.req)).BuildDataReady(data))
	c.readQueue.Pop()
	c.stats.ReadHits++

	tracing.AddTaskStep(c.taskID(e.req.ID), c, "read_hit")

	c.releaseAll(tagRead)
	e.state = readIdle
}

func (e *readEngine) startFetch() bool {
	c := e.c

	if !c.trtArb.Holds(tagRead) {
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

	c.trt.StartFetch(index, e.line, &transaction.Reader{
		Origin:      originOf(e.req),
		WordIndex:   c.addr.WordIndex(e.req.Address),
		NumWords:    e.req.NumWords,
		Cached:      e.req.Cached,
		Instruction: e.req.Instruction,
	})
	c.readXram.Push(c.xramRead(index, e.line))
	c.readQueue.Pop()
	c.stats.ReadMisses++

	tracing.AddTaskStep(c.taskID(e.req.ID), c, "read_miss")
	c.debugf("read miss on line 0x%x, trt %d", e.line, index)

	c.releaseAll(tagRead)
	e.state = readIdle

	return true
}
