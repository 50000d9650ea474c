package memcache

import (
	"log"

	"github.com/sarchlab/memcoherence/mem/memcache/internal/directory"
	"github.com/sarchlab/memcoherence/mem/memcache/internal/transaction"
	"github.com/sarchlab/memcoherence/mem/memcache/internal/update"
	"github.com/sarchlab/memcoherence/tracing"
)

type xramRspState int

const (
	xramRspIdle xramRspState = iota
	xramRspDirLock
	xramRspTrtLock
	xramRspUptLock
	xramRspHeapLock
	xramRspInvalPost
	xramRspWriteBackPost
	xramRspWaitInval
	xramRspInstall
	xramRspRespond
)

var xramRspStateNames = []string{
	"idle", "dir_lock", "trt_lock", "upt_lock", "heap_lock",
	"inval_post", "write_back_post", "wait_inval", "install", "respond",
}

// xramRspEngine installs the fetched lines. The victim of the set is
// written back if it is dirty and its copies are invalidated if it is
// shared. The new line stays locked until the victim has no copy left, and
// only then the waiting reader and writers are answered.
type xramRspEngine struct {
	c *Comp

	state    xramRspState
	index    int
	entry    transaction.Entry
	set, way int

	victim     directory.Entry
	victimLine uint64
	victimData []uint32
	shared     bool
	writeBack  bool
	uptIndex   int
	targets    []directory.Owner

	rspData    []uint32
	readerDone bool
	cursor     int
}

func (e *xramRspEngine) idle() bool {
	return e.state == xramRspIdle
}

func (e *xramRspEngine) stateName() string {
	return xramRspStateNames[e.state]
}

func (e *xramRspEngine) Tick() bool {
	switch e.state {
	case xramRspIdle:
		return e.start()
	case xramRspDirLock:
		return e.lockTrt()
	case xramRspTrtLock:
		return e.selectVictim()
	case xramRspUptLock:
		return e.checkUpt()
	case xramRspHeapLock:
		return e.lockHeap()
	case xramRspInvalPost:
		return e.postInval()
	case xramRspWriteBackPost:
		return e.postWriteBack()
	case xramRspWaitInval:
		return e.waitInval()
	case xramRspInstall:
		return e.install()
	case xramRspRespond:
		return e.respond()
	}

	return false
}

func (e *xramRspEngine) start() bool {
	index, ok := e.c.readyQueue.Peek()
	if !ok {
		return false
	}

	e.index = index
	e.state = xramRspDirLock
	e.c.dirArb.Request(tagXramRsp)

	return true
}

func (e *xramRspEngine) retry(reason string) bool {
	c := e.c

	c.releaseAll(tagXramRsp)
	c.stats.Retries++
	e.state = xramRspIdle

	if r := e.entry.Reader; r != nil {
		tracing.AddTaskStep(c.taskID(r.ReqID), c, "retry_"+reason)
	}

	c.debugf("install of line 0x%x retries: %s", e.entry.Line, reason)

	return true
}

func (e *xramRspEngine) lockTrt() bool {
	if !e.c.dirArb.Holds(tagXramRsp) {
		return false
	}

	e.state = xramRspTrtLock
	e.c.trtArb.Request(tagXramRsp)

	return true
}

func (e *xramRspEngine) selectVictim() bool {
	c := e.c

	if !c.trtArb.Holds(tagXramRsp) {
		return false
	}

	e.entry = c.trt.Read(e.index)
	e.set = c.addr.Set(e.entry.Line)
	e.victim, e.way = c.dir.SelectVictim(e.set)
	e.victimLine = c.addr.LineOf(e.set, e.victim.Tag)
	e.shared = e.victim.Valid && e.victim.Count > 0
	e.writeBack = e.victim.Valid && e.victim.Dirty

	e.state = xramRspUptLock
	c.uptArb.Request(tagXramRsp)

	return true
}

func (e *xramRspEngine) checkUpt() bool {
	c := e.c

	if !c.uptArb.Holds(tagXramRsp) {
		return false
	}

	if _, pending := c.upt.SearchInval(e.entry.Line); pending {
		return e.retry("inval_pending")
	}

	if e.shared && c.upt.Full() {
		return e.retry("upt_full")
	}

	if e.shared && !e.victim.CounterMode && e.victim.HasChain() {
		e.state = xramRspHeapLock
		c.heapArb.Request(tagXramRsp)

		return true
	}

	e.updateDir()

	return true
}

func (e *xramRspEngine) lockHeap() bool {
	if !e.c.heapArb.Holds(tagXramRsp) {
		return false
	}

	e.updateDir()

	return true
}

// updateDir evicts the victim and puts the new line in its slot, all under
// the four grants.
func (e *xramRspEngine) updateDir() {
	c := e.c
	v := e.victim

	if v.Valid {
		e.victimData = append([]uint32(nil), c.data.Line(e.set, e.way)...)
		c.reservations.ResetLine(e.victimLine)
		c.stats.Evictions++
	}

	if e.shared {
		e.targets = nil
		if !v.CounterMode {
			e.targets = c.owners(v)
		}

		index, ok := c.upt.TryAllocate(update.Entry{
			IsBroadcast: v.CounterMode,
			Line:        e.victimLine,
			Count:       v.Count,
		})
		if !ok {
			log.Panicf("update table filled while held, evicting line 0x%x",
				e.victimLine)
		}

		e.uptIndex = index

		if v.HasChain() {
			c.heap.FreeChain(v.HeapHead)
		}
	}

	c.data.WriteLine(e.set, e.way, e.entry.Data)
	c.dir.Write(e.set, e.way, directory.Entry{
		Valid:    true,
		Locked:   true,
		Dirty:    e.entry.Dirty(),
		Tag:      c.addr.Tag(e.entry.Line),
		HeapHead: directory.NoHeap,
	})

	if e.writeBack {
		c.trt.ConvertToWriteBack(e.index, e.victimLine, e.victimData)
	} else {
		c.trt.Erase(e.index)
	}

	c.readyQueue.Pop()
	c.releaseAll(tagXramRsp)

	c.debugf("line 0x%x installed in set %d way %d, victim valid %t",
		e.entry.Line, e.set, e.way, v.Valid)

	switch {
	case e.shared:
		e.state = xramRspInvalPost
	case e.writeBack:
		e.state = xramRspWriteBackPost
	default:
		e.state = xramRspInstall
		c.dirArb.Request(tagXramRsp)
	}
}

func (e *xramRspEngine) postInval() bool {
	c := e.c

	if !c.xramRspInit.CanPush() {
		return false
	}

	c.xramRspInit.Push(coherenceCmd{
		broadcast:   e.victim.CounterMode,
		line:        e.victimLine,
		instruction: e.victim.Instruction,
		uptIndex:    e.uptIndex,
		targets:     e.targets,
	})

	if e.writeBack {
		e.state = xramRspWriteBackPost
	} else {
		e.state = xramRspWaitInval
	}

	return true
}

func (e *xramRspEngine) postWriteBack() bool {
	c := e.c

	if !c.xramRspXram.CanPush() {
		return false
	}

	c.xramRspXram.Push(c.xramWrite(e.index, e.victimLine, e.victimData))

	if e.shared {
		e.state = xramRspWaitInval
	} else {
		e.state = xramRspInstall
		c.dirArb.Request(tagXramRsp)
	}

	return true
}

func (e *xramRspEngine) waitInval() bool {
	c := e.c

	if !c.uptArb.Acquire(tagXramRsp) {
		return false
	}

	_, pending := c.upt.SearchInval(e.victimLine)
	c.uptArb.Release(tagXramRsp)

	if pending {
		return false
	}

	e.state = xramRspInstall
	c.dirArb.Request(tagXramRsp)

	return true
}

func (e *xramRspEngine) install() bool {
	c := e.c

	if !c.dirArb.Holds(tagXramRsp) {
		return false
	}

	entry := c.dir.Read(e.set, e.way)
	entry.Locked = false

	r := e.entry.Reader
	if r != nil && r.Cached {
		entry.Count = 1
		entry.Owner = directory.Owner{
			SrcID:       r.Requester.SrcID,
			Instruction: r.Instruction,
		}
		entry.Instruction = r.Instruction
	}

	c.dir.Write(e.set, e.way, entry)

	e.rspData = nil
	if r != nil {
		e.rspData = c.data.Words(e.set, e.way, r.WordIndex, r.NumWords)
		tracing.AddTaskStep(c.taskID(r.ReqID), c, "installed")
	}

	c.releaseAll(tagXramRsp)

	e.readerDone = r == nil
	e.cursor = 0
	e.state = xramRspRespond

	if e.readerDone && len(e.entry.Writers) == 0 {
		e.state = xramRspIdle
	}

	return true
}

func (e *xramRspEngine) respond() bool {
	c := e.c

	if !c.xramRspRsp.CanPush() {
		return false
	}

	if !e.readerDone {
		r := e.entry.Reader
		c.xramRspRsp.Push(c.rspBuilder(r.Origin).BuildDataReady(e.rspData))
		e.readerDone = true
	} else {
		w := e.entry.Writers[e.cursor]
		c.xramRspRsp.Push(c.storeRsp(w, update.RspWrite))
		e.cursor++
	}

	if e.readerDone && e.cursor == len(e.entry.Writers) {
		e.state = xramRspIdle
	}

	return true
}
