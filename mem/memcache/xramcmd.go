package memcache

import (
	"github.com/sarchlab/memcoherence/sim"
	"github.com/sarchlab/memcoherence/tracing"
)

// xramCmdEngine forwards the fetches and write-backs that the engines
// prepare to the external memory, one per cycle.
type xramCmdEngine struct {
	c       *Comp
	sources []*handoff[sim.Msg]
	next    int
}

func (e *xramCmdEngine) idle() bool {
	return true
}

func (e *xramCmdEngine) stateName() string {
	return "idle"
}

func (e *xramCmdEngine) Tick() bool {
	c := e.c

	if !c.memoryPort.CanSend() {
		return false
	}

	for i := range e.sources {
		index := (e.next + i) % len(e.sources)

		msg, ok := e.sources[index].Pop()
		if !ok {
			continue
		}

		c.memoryPort.Send(msg)
		tracing.TraceReqInitiate(msg, c, "")
		e.next = (index + 1) % len(e.sources)

		return true
	}

	return false
}
