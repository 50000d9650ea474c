package memcache

import (
	"log"
	"sort"

	"github.com/sarchlab/memcoherence/mem/vci"
	"github.com/sarchlab/memcoherence/sim"
	"github.com/sarchlab/memcoherence/tracing"
)

// initCmdEngine sends the updates and invalidations prepared by the other
// engines to the L1 caches, one message per cycle.
type initCmdEngine struct {
	c       *Comp
	sources []*handoff[coherenceCmd]
	next    int

	broadcastOrder []uint32

	busy    bool
	cmd     coherenceCmd
	dsts    []uint32
	flags   []bool
	pending int
}

func (e *initCmdEngine) idle() bool {
	return !e.busy
}

func (e *initCmdEngine) stateName() string {
	if e.busy {
		return "send"
	}

	return "idle"
}

func (e *initCmdEngine) refreshBroadcastOrder() {
	e.broadcastOrder = e.broadcastOrder[:0]

	for id := range e.c.coherenceTargets {
		e.broadcastOrder = append(e.broadcastOrder, id)
	}

	sort.Slice(e.broadcastOrder, func(i, j int) bool {
		return e.broadcastOrder[i] < e.broadcastOrder[j]
	})
}

func (e *initCmdEngine) Tick() bool {
	if !e.busy {
		return e.take()
	}

	return e.send()
}

func (e *initCmdEngine) take() bool {
	for i := range e.sources {
		index := (e.next + i) % len(e.sources)

		cmd, ok := e.sources[index].Pop()
		if !ok {
			continue
		}

		e.next = (index + 1) % len(e.sources)
		e.load(cmd)

		return true
	}

	return false
}

func (e *initCmdEngine) load(cmd coherenceCmd) {
	e.cmd = cmd
	e.dsts = e.dsts[:0]
	e.flags = e.flags[:0]

	if cmd.broadcast {
		for _, id := range e.broadcastOrder {
			e.dsts = append(e.dsts, id)
			e.flags = append(e.flags, cmd.instruction)
		}
	} else {
		for _, o := range cmd.targets {
			e.dsts = append(e.dsts, o.SrcID)
			e.flags = append(e.flags, o.Instruction)
		}
	}

	e.pending = 0
	e.busy = len(e.dsts) > 0
}

func (e *initCmdEngine) send() bool {
	c := e.c

	if !c.coherencePort.CanSend() {
		return false
	}

	id := e.dsts[e.pending]

	dst, found := c.coherenceTargets[id]
	if !found {
		log.Panicf("%s: no coherence target for source %d", c.Name(), id)
	}

	msg := e.build(dst, e.flags[e.pending])
	c.coherencePort.Send(msg)

	if e.cmd.update {
		tracing.TraceReqInitiate(msg, c, "")
	}

	e.pending++
	if e.pending == len(e.dsts) {
		e.busy = false
	}

	return true
}

func (e *initCmdEngine) build(dst sim.RemotePort, instruction bool) sim.Msg {
	c := e.c
	cmd := e.cmd
	src := c.coherencePort.AsRemote()

	if cmd.update {
		c.stats.UpdatesSent++

		return vci.NewUpdateReq(src, dst, cmd.line, cmd.wordIndex,
			cmd.data, cmd.byteEnables, cmd.uptIndex)
	}

	c.stats.InvalsSent++

	return vci.NewInvalidateReq(src, dst, cmd.line, instruction,
		cmd.broadcast, cmd.uptIndex)
}
