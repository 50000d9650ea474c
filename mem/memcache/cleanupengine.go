package memcache

import (
	"fmt"

	"github.com/sarchlab/memcoherence/mem/memcache/internal/directory"
	"github.com/sarchlab/memcoherence/mem/vci"
	"github.com/sarchlab/memcoherence/tracing"
)

type cleanupState int

const (
	cleanupIdle cleanupState = iota
	cleanupDirLock
	cleanupHeapLock
	cleanupUptLock
	cleanupAck
)

var cleanupStateNames = []string{
	"idle", "dir_lock", "heap_lock", "upt_lock", "ack",
}

// cleanupEngine removes the copies that the L1 caches drop. A line that is
// no longer in the directory can only be waiting for an invalidation, so the
// cleanup counts as one of its acknowledgements.
type cleanupEngine struct {
	c *Comp

	state    cleanupState
	req      *vci.CleanupReq
	set, way int
	entry    directory.Entry
}

func (e *cleanupEngine) idle() bool {
	return e.state == cleanupIdle
}

func (e *cleanupEngine) stateName() string {
	return cleanupStateNames[e.state]
}

func (e *cleanupEngine) Tick() bool {
	switch e.state {
	case cleanupIdle:
		return e.accept()
	case cleanupDirLock:
		return e.lookup()
	case cleanupHeapLock:
		return e.removeFromChain()
	case cleanupUptLock:
		return e.countAck()
	case cleanupAck:
		return e.ack()
	}

	return false
}

func (e *cleanupEngine) accept() bool {
	c := e.c

	if c.isHalted(pathCleanup) {
		return false
	}

	msg := c.cleanupPort.PeekIncoming()
	if msg == nil {
		return false
	}

	req, ok := msg.(*vci.CleanupReq)
	if !ok {
		c.fail(pathCleanup, fmt.Errorf("%s: cleanup port got %T: %w",
			c.Name(), msg, ErrUnsupportedRequest))

		return true
	}

	if !c.segments.Contains(c.addr.LineAddress(req.Line)) {
		c.fail(pathCleanup, fmt.Errorf("%s: cleanup of line 0x%x: %w",
			c.Name(), req.Line, ErrOutOfRange))

		return true
	}

	if !c.cleanupRsp.CanPush() {
		return false
	}

	c.cleanupPort.RetrieveIncoming()
	tracing.TraceReqReceive(req, c)
	c.stats.Cleanups++

	e.req = req
	e.set = c.addr.Set(req.Line)
	e.state = cleanupDirLock
	c.dirArb.Request(tagCleanup)

	return true
}

func (e *cleanupEngine) owner() directory.Owner {
	return directory.Owner{
		SrcID:       e.req.SrcID,
		Instruction: e.req.Instruction,
	}
}

func (e *cleanupEngine) lookup() bool {
	c := e.c

	if !c.dirArb.Holds(tagCleanup) {
		return false
	}

	entry, way, hit := c.dir.Lookup(e.set, c.addr.Tag(e.req.Line))
	if !hit {
		c.releaseAll(tagCleanup)
		e.state = cleanupUptLock
		c.uptArb.Request(tagCleanup)

		return true
	}

	e.entry = entry
	e.way = way

	if !entry.CounterMode && entry.HasChain() {
		e.state = cleanupHeapLock
		c.heapArb.Request(tagCleanup)

		return true
	}

	e.remove()

	return true
}

func (e *cleanupEngine) removeFromChain() bool {
	if !e.c.heapArb.Holds(tagCleanup) {
		return false
	}

	e.remove()

	return true
}

func (e *cleanupEngine) remove() {
	c := e.c

	if c.heap.Remove(&e.entry, e.owner()) {
		c.dir.Write(e.set, e.way, e.entry)
	} else {
		tracing.AddTaskStep(c.taskID(e.req.ID), c, "stale")
		c.debugf("stale cleanup of line 0x%x from %d",
			e.req.Line, e.req.SrcID)
	}

	c.releaseAll(tagCleanup)
	e.state = cleanupAck
}

func (e *cleanupEngine) countAck() bool {
	c := e.c

	if !c.uptArb.Holds(tagCleanup) {
		return false
	}

	index, found := c.upt.SearchInval(e.req.Line)
	if !found {
		tracing.AddTaskStep(c.taskID(e.req.ID), c, "stale")
		c.debugf("cleanup of line 0x%x from %d matches nothing",
			e.req.Line, e.req.SrcID)

		c.releaseAll(tagCleanup)
		e.state = cleanupAck

		return true
	}

	left, err := c.upt.Decrement(index)
	if err != nil {
		c.releaseAll(tagCleanup)
		c.fail(pathCleanup, fmt.Errorf("%s: cleanup of line 0x%x: %w: %w",
			c.Name(), e.req.Line, ErrProtocolViolation, err))
		e.state = cleanupIdle

		return true
	}

	if left == 0 {
		pending := c.upt.Read(index)
		c.upt.Clear(index)

		if pending.NeedsResponse {
			c.cleanupRsp.Push(c.storeRsp(pending.Origin, pending.RspKind))
		}

		c.debugf("invalidation of line 0x%x completed, upt %d",
			pending.Line, index)
	}

	c.releaseAll(tagCleanup)
	e.state = cleanupAck

	return true
}

func (e *cleanupEngine) ack() bool {
	c := e.c

	if !c.cleanupPort.CanSend() {
		return false
	}

	c.cleanupPort.Send(vci.NewCleanupAck(c.cleanupPort.AsRemote(), e.req))
	tracing.TraceReqComplete(e.req, c)
	e.state = cleanupIdle

	return true
}
