package memcache

import (
	"fmt"

	"github.com/sarchlab/memcoherence/mem/vci"
	"github.com/sarchlab/memcoherence/tracing"
)

// initRspEngine counts the acknowledgements of the updates. When the last
// one arrives, the write or SC that caused the update is answered.
type initRspEngine struct {
	c *Comp
}

func (e *initRspEngine) idle() bool {
	return true
}

func (e *initRspEngine) stateName() string {
	return "idle"
}

func (e *initRspEngine) Tick() bool {
	c := e.c

	if c.isHalted(pathCoherence) {
		return false
	}

	msg := c.coherencePort.PeekIncoming()
	if msg == nil {
		return false
	}

	ack, ok := msg.(*vci.CoherenceAck)
	if !ok {
		c.fail(pathCoherence, fmt.Errorf("%s: coherence port got %T: %w",
			c.Name(), msg, ErrProtocolViolation))

		return true
	}

	if !c.initRspRsp.CanPush() {
		return false
	}

	if !c.uptArb.Acquire(tagInitRsp) {
		return false
	}

	err := e.count(ack)

	c.uptArb.Release(tagInitRsp)

	if err != nil {
		c.fail(pathCoherence, fmt.Errorf("%s: ack %s from %d: %w: %w",
			c.Name(), ack.ID, ack.SrcID, ErrProtocolViolation, err))

		return true
	}

	c.coherencePort.RetrieveIncoming()
	c.stats.CoherenceAcks++
	tracing.EndTask(ack.RespondTo+"_req_out", c)

	return true
}

func (e *initRspEngine) count(ack *vci.CoherenceAck) error {
	c := e.c

	if ack.UptIndex < 0 || ack.UptIndex >= c.upt.Depth() {
		return fmt.Errorf("update table index %d out of range", ack.UptIndex)
	}

	pending := c.upt.Read(ack.UptIndex)
	if !pending.Valid || !pending.IsUpdate {
		return fmt.Errorf("update table entry %d is not an update",
			ack.UptIndex)
	}

	left, err := c.upt.Decrement(ack.UptIndex)
	if err != nil {
		return err
	}

	if left > 0 {
		return nil
	}

	c.upt.Clear(ack.UptIndex)

	if pending.NeedsResponse {
		c.initRspRsp.Push(c.storeRsp(pending.Origin, pending.RspKind))
	}

	c.debugf("update of line 0x%x completed, upt %d",
		pending.Line, ack.UptIndex)

	return nil
}
