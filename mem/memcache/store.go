package memcache

import (
	"github.com/sarchlab/memcoherence/mem/memcache/internal/directory"
	"github.com/sarchlab/memcoherence/mem/memcache/internal/transaction"
	"github.com/sarchlab/memcoherence/mem/memcache/internal/update"
	"github.com/sarchlab/memcoherence/mem/vci"
	"github.com/sarchlab/memcoherence/sim"
	"github.com/sarchlab/memcoherence/tracing"
)

type storeResult int

const (
	storePending storeResult = iota
	storeDone
	storeRetry
)

type storeState int

const (
	storeIdle storeState = iota
	storeUptLock
	storeHeapLock
	storeHeapWalk
	storeTrtLock
	storeInvalUptLock
	storeInvalHeapLock
)

var storeStateNames = []string{
	"idle", "upt_lock", "heap_lock", "heap_walk",
	"trt_lock", "inval_upt_lock", "inval_heap_lock",
}

// A store is a write burst or a successful SC applied to a cached line.
type store struct {
	origin  transaction.Origin
	line    uint64
	word    int
	data    []uint32
	be      []uint8
	rspKind update.RspKind
}

// storeSequencer applies stores that hit in the directory. Lines without
// other sharers are written in place. Lines with identified sharers are
// written and the words are multicast to the sharers. Lines in counter mode
// or with instruction copies are written back and invalidated.
type storeSequencer struct {
	c    *Comp
	tag  engineTag
	rsp  *handoff[vci.TargetRsp]
	xram *handoff[sim.Msg]
	init *handoff[coherenceCmd]

	state    storeState
	st       store
	set, way int
	entry    directory.Entry
	targets  []directory.Owner
	cursor   int
	trtIndex int
}

func (s *storeSequencer) canStart() bool {
	return s.rsp.CanPush() && s.xram.CanPush() && s.init.CanPush()
}

func (s *storeSequencer) writer() directory.Owner {
	return directory.Owner{SrcID: s.st.origin.Requester.SrcID}
}

// start must be called by the holder of the directory, with a hit on an
// unlocked line.
func (s *storeSequencer) start(
	st store,
	entry directory.Entry,
	set, way int,
) storeResult {
	s.st = st
	s.entry = entry
	s.set = set
	s.way = way
	s.targets = s.targets[:0]

	switch {
	case (entry.CounterMode && entry.Count > 0) || entry.Instruction:
		s.state = storeTrtLock
		s.c.trtArb.Request(s.tag)

		return storePending
	case entry.Count == 0 || (entry.Count == 1 && entry.Owner == s.writer()):
		s.commitData()
		s.rsp.Push(s.c.storeRsp(st.origin, st.rspKind))
		s.c.releaseAll(s.tag)
		s.state = storeIdle

		return storeDone
	default:
		s.state = storeUptLock
		s.c.uptArb.Request(s.tag)

		return storePending
	}
}

func (s *storeSequencer) tick() (storeResult, bool) {
	switch s.state {
	case storeUptLock:
		return s.lockUptForUpdate()
	case storeHeapLock:
		return s.lockHeap()
	case storeHeapWalk:
		return s.walkHeap()
	case storeTrtLock:
		return s.lockTrt()
	case storeInvalUptLock:
		return s.lockUptForInval()
	case storeInvalHeapLock:
		return s.lockHeapForInval()
	default:
		return storePending, false
	}
}

func (s *storeSequencer) retry(reason string) storeResult {
	s.c.releaseAll(s.tag)
	s.c.stats.Retries++
	s.state = storeIdle

	tracing.AddTaskStep(s.c.taskID(s.st.origin.ReqID), s.c, "retry_"+reason)
	s.c.debugf("%s store to line 0x%x retries: %s", s.tag, s.st.line, reason)

	return storeRetry
}

func (s *storeSequencer) commitData() {
	c := s.c

	c.data.WriteWords(s.set, s.way, s.st.word, s.st.data, s.st.be)
	s.entry.Dirty = true
	c.dir.Write(s.set, s.way, s.entry)
	c.reservations.ResetLine(s.st.line)
}

func (s *storeSequencer) lockUptForUpdate() (storeResult, bool) {
	if !s.c.uptArb.Holds(s.tag) {
		return storePending, false
	}

	if s.c.upt.Full() {
		return s.retry("upt_full"), true
	}

	if s.entry.Owner != s.writer() {
		s.targets = append(s.targets, s.entry.Owner)
	}

	if s.entry.HasChain() {
		s.state = storeHeapLock
		s.c.heapArb.Request(s.tag)

		return storePending, true
	}

	return s.finishUpdate(), true
}

func (s *storeSequencer) lockHeap() (storeResult, bool) {
	if !s.c.heapArb.Holds(s.tag) {
		return storePending, false
	}

	s.cursor = s.entry.HeapHead
	s.state = storeHeapWalk

	return storePending, true
}

func (s *storeSequencer) walkHeap() (storeResult, bool) {
	e := s.c.heap.Read(s.cursor)

	if e.Owner != s.writer() {
		s.targets = append(s.targets, e.Owner)
	}

	if e.Next != s.cursor {
		s.cursor = e.Next
		return storePending, true
	}

	return s.finishUpdate(), true
}

func (s *storeSequencer) finishUpdate() storeResult {
	c := s.c

	if len(s.targets) == 0 {
		s.commitData()
		s.rsp.Push(c.storeRsp(s.st.origin, s.st.rspKind))
		c.releaseAll(s.tag)
		s.state = storeIdle

		return storeDone
	}

	idx, ok := c.upt.TryAllocate(update.Entry{
		IsUpdate:      true,
		NeedsResponse: true,
		RspKind:       s.st.rspKind,
		Origin:        s.st.origin,
		Line:          s.st.line,
		Count:         len(s.targets),
	})
	if !ok {
		return s.retry("upt_full")
	}

	s.commitData()

	s.init.Push(coherenceCmd{
		update:      true,
		line:        s.st.line,
		wordIndex:   s.st.word,
		data:        s.st.data,
		byteEnables: s.st.be,
		uptIndex:    idx,
		targets:     append([]directory.Owner(nil), s.targets...),
	})

	tracing.AddTaskStep(c.taskID(s.st.origin.ReqID), c, "multicast_update")
	c.debugf("%s updates line 0x%x on %d sharers, upt %d",
		s.tag, s.st.line, len(s.targets), idx)

	c.releaseAll(s.tag)
	s.state = storeIdle

	return storeDone
}

func (s *storeSequencer) lockTrt() (storeResult, bool) {
	if !s.c.trtArb.Holds(s.tag) {
		return storePending, false
	}

	idx, ok := s.c.trt.TryAllocate()
	if !ok {
		return s.retry("trt_full"), true
	}

	s.trtIndex = idx
	s.state = storeInvalUptLock
	s.c.uptArb.Request(s.tag)

	return storePending, true
}

func (s *storeSequencer) lockUptForInval() (storeResult, bool) {
	if !s.c.uptArb.Holds(s.tag) {
		return storePending, false
	}

	if s.c.upt.Full() {
		return s.retry("upt_full"), true
	}

	if s.entry.HasChain() {
		s.state = storeInvalHeapLock
		s.c.heapArb.Request(s.tag)

		return storePending, true
	}

	return s.finishInval(), true
}

func (s *storeSequencer) lockHeapForInval() (storeResult, bool) {
	if !s.c.heapArb.Holds(s.tag) {
		return storePending, false
	}

	return s.finishInval(), true
}

func (s *storeSequencer) finishInval() storeResult {
	c := s.c
	e := s.entry

	var targets []directory.Owner
	if !e.CounterMode {
		targets = c.owners(e)
	}

	idx, ok := c.upt.TryAllocate(update.Entry{
		IsBroadcast:   e.CounterMode,
		NeedsResponse: true,
		RspKind:       s.st.rspKind,
		Origin:        s.st.origin,
		Line:          s.st.line,
		Count:         e.Count,
	})
	if !ok {
		return s.retry("upt_full")
	}

	if e.HasChain() {
		c.heap.FreeChain(e.HeapHead)
	}

	c.data.WriteWords(s.set, s.way, s.st.word, s.st.data, s.st.be)
	line := c.data.Line(s.set, s.way)

	c.trt.StartWriteBack(s.trtIndex, s.st.line, line)
	c.dir.Invalidate(s.set, s.way)
	c.reservations.ResetLine(s.st.line)

	s.xram.Push(c.xramWrite(s.trtIndex, s.st.line, line))
	s.init.Push(coherenceCmd{
		broadcast:   e.CounterMode,
		line:        s.st.line,
		instruction: e.Instruction,
		uptIndex:    idx,
		targets:     targets,
	})

	tracing.AddTaskStep(c.taskID(s.st.origin.ReqID), c, "invalidate_sharers")
	c.debugf("%s invalidates line 0x%x with %d copies, upt %d",
		s.tag, s.st.line, e.Count, idx)

	c.releaseAll(s.tag)
	s.state = storeIdle

	return storeDone
}
