package memcache

import (
	"fmt"

	"github.com/sarchlab/memcoherence/mem/vci"
	"github.com/sarchlab/memcoherence/sim"
	"github.com/sarchlab/memcoherence/tracing"
)

// dispatcher owns the target port. It sorts the incoming commands into the
// queues of the engines and sends the responses back, one per cycle in
// each direction.
type dispatcher struct {
	c       *Comp
	sources []*handoff[vci.TargetRsp]
	next    int
}

func (d *dispatcher) idle() bool {
	return true
}

func (d *dispatcher) stateName() string {
	return "idle"
}

func (d *dispatcher) Tick() bool {
	madeProgress := false

	madeProgress = d.respond() || madeProgress
	madeProgress = d.parse() || madeProgress

	return madeProgress
}

func (d *dispatcher) parse() bool {
	c := d.c

	if c.isHalted(pathTarget) {
		return false
	}

	msg := c.topPort.PeekIncoming()
	if msg == nil {
		return false
	}

	req, ok := msg.(vci.TargetReq)
	if !ok {
		c.fail(pathTarget, fmt.Errorf("%s: target port got %T: %w",
			c.Name(), msg, ErrUnsupportedRequest))

		return true
	}

	if err := d.validate(req); err != nil {
		c.fail(pathTarget, err)
		return true
	}

	if !d.enqueue(req) {
		return false
	}

	c.topPort.RetrieveIncoming()
	tracing.TraceReqReceive(req, c)

	return true
}

func (d *dispatcher) validate(req vci.TargetReq) error {
	c := d.c

	n := 1
	switch req := req.(type) {
	case *vci.ReadReq:
		n = req.NumWords
	case *vci.WriteReq:
		n = len(req.Data)
		if n == 0 || len(req.ByteEnables) != n {
			return fmt.Errorf("%s: write %s has %d words and %d enables: %w",
				c.Name(), req.ID, n, len(req.ByteEnables),
				ErrUnsupportedRequest)
		}
	}

	addr := req.GetAddress()
	if !c.addr.FitsInLine(addr, n) {
		return fmt.Errorf("%s: %d words at 0x%x cross a line: %w",
			c.Name(), n, addr, ErrUnsupportedRequest)
	}

	last := addr + uint64((n-1)*vci.WordBytes)
	if !c.segments.Contains(addr) || !c.segments.Contains(last) {
		return fmt.Errorf("%s: address 0x%x of %s: %w",
			c.Name(), addr, req.Meta().ID, ErrOutOfRange)
	}

	return nil
}

func (d *dispatcher) enqueue(req vci.TargetReq) bool {
	c := d.c

	switch req := req.(type) {
	case *vci.ReadReq:
		if !c.readQueue.CanPush() {
			return false
		}

		c.readQueue.Push(req)
	case *vci.WriteReq:
		if !c.writeQueue.CanPush() {
			return false
		}

		c.writeQueue.Push(req)
	case *vci.LLReq, *vci.SCReq:
		if !c.llscQueue.CanPush() {
			return false
		}

		c.llscQueue.Push(req)
	default:
		c.fail(pathTarget, fmt.Errorf("%s: target port got %T: %w",
			c.Name(), req, ErrUnsupportedRequest))

		return false
	}

	return true
}

func (d *dispatcher) respond() bool {
	c := d.c

	if !c.topPort.CanSend() {
		return false
	}

	for i := range d.sources {
		index := (d.next + i) % len(d.sources)

		rsp, ok := d.sources[index].Pop()
		if !ok {
			continue
		}

		c.topPort.Send(rsp)
		c.stats.TargetResponses++
		tracing.EndTask(c.taskID(rsp.GetRspTo()), c)

		d.next = (index + 1) % len(d.sources)

		return true
	}

	return false
}

var _ sim.Ticker = (*dispatcher)(nil)
