package memcache

import (
	"fmt"

	"github.com/sarchlab/memcoherence/mem/vci"
	"github.com/sarchlab/memcoherence/sim"
	"github.com/sarchlab/memcoherence/tracing"
)

// xramReceiver takes the responses of the external memory. Fetched lines
// are stored in the transaction table and queued for installation.
// Write-back acknowledgements free their entry.
type xramReceiver struct {
	c *Comp
}

func (e *xramReceiver) idle() bool {
	return true
}

func (e *xramReceiver) stateName() string {
	return "idle"
}

func (e *xramReceiver) Tick() bool {
	c := e.c

	if c.isHalted(pathMemory) {
		return false
	}

	msg := c.memoryPort.PeekIncoming()
	if msg == nil {
		return false
	}

	switch msg.(type) {
	case *vci.XramDataRsp:
		if !c.readyQueue.CanPush() {
			return false
		}
	case *vci.XramWriteAck:
	default:
		c.fail(pathMemory, fmt.Errorf("%s: memory port got %T: %w",
			c.Name(), msg, ErrProtocolViolation))

		return true
	}

	if !c.trtArb.Acquire(tagXramRecv) {
		return false
	}

	err := e.record(msg)

	c.trtArb.Release(tagXramRecv)

	if err != nil {
		c.fail(pathMemory, fmt.Errorf("%s: %w: %w",
			c.Name(), ErrProtocolViolation, err))

		return true
	}

	c.memoryPort.RetrieveIncoming()
	tracing.EndTask(msg.(sim.Rsp).GetRspTo()+"_req_out", c)

	return true
}

func (e *xramReceiver) record(msg sim.Msg) error {
	c := e.c

	switch rsp := msg.(type) {
	case *vci.XramDataRsp:
		if err := c.trt.RecordRead(rsp.TrtIndex, rsp.Data); err != nil {
			return err
		}

		c.readyQueue.Push(rsp.TrtIndex)
		c.debugf("line of trt %d received", rsp.TrtIndex)
	case *vci.XramWriteAck:
		if err := c.trt.CompleteWriteBack(rsp.TrtIndex); err != nil {
			return err
		}

		c.debugf("write-back of trt %d done", rsp.TrtIndex)
	}

	return nil
}
