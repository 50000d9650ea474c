// Package idealxram provides an external memory that answers every line
// read and write after a fixed number of cycles.
package idealxram

import (
	"log"

	"github.com/sarchlab/memcoherence/mem/storage"
	"github.com/sarchlab/memcoherence/mem/vci"
	"github.com/sarchlab/memcoherence/sim"
	"github.com/sarchlab/memcoherence/tracing"
)

type inflight struct {
	req       sim.Msg
	countdown int
}

// A Comp is an ideal external memory. There is no limit on the number of
// requests in flight. Responses leave in the order of the requests.
type Comp struct {
	*sim.ComponentBase

	topPort sim.Port
	Storage *storage.Storage
	Latency int

	width    int
	inflight []*inflight
	served   uint64
}

// TopPort returns the port that receives the line requests.
func (c *Comp) TopPort() sim.Port {
	return c.topPort
}

// NumServed returns the number of requests answered so far.
func (c *Comp) NumServed() uint64 {
	return c.served
}

// Tick accepts new requests, counts down and sends the ready responses.
func (c *Comp) Tick() bool {
	madeProgress := false

	madeProgress = c.respond() || madeProgress
	madeProgress = c.countDown() || madeProgress

	for i := 0; i < c.width; i++ {
		madeProgress = c.accept() || madeProgress
	}

	return madeProgress
}

func (c *Comp) accept() bool {
	msg := c.topPort.RetrieveIncoming()
	if msg == nil {
		return false
	}

	tracing.TraceReqReceive(msg, c)

	c.inflight = append(c.inflight, &inflight{
		req:       msg,
		countdown: c.Latency,
	})

	return true
}

func (c *Comp) countDown() bool {
	madeProgress := false

	for _, f := range c.inflight {
		if f.countdown > 0 {
			f.countdown--
			madeProgress = true
		}
	}

	return madeProgress
}

func (c *Comp) respond() bool {
	if len(c.inflight) == 0 || c.inflight[0].countdown > 0 {
		return false
	}

	if !c.topPort.CanSend() {
		return false
	}

	f := c.inflight[0]

	var rsp sim.Msg

	switch req := f.req.(type) {
	case *vci.XramReadReq:
		rsp = c.read(req)
	case *vci.XramWriteReq:
		rsp = c.write(req)
	default:
		log.Panicf("%s cannot handle %T", c.Name(), req)
	}

	c.topPort.Send(rsp)
	tracing.TraceReqComplete(f.req, c)

	c.inflight[0] = nil
	c.inflight = c.inflight[1:]
	c.served++

	return true
}

func (c *Comp) read(req *vci.XramReadReq) sim.Msg {
	data, err := c.Storage.ReadWords(req.Address, req.NumWords)
	if err != nil {
		log.Panicf("%s: %v", c.Name(), err)
	}

	return vci.NewXramDataRsp(c.topPort.AsRemote(), req, data)
}

func (c *Comp) write(req *vci.XramWriteReq) sim.Msg {
	if err := c.Storage.WriteWords(req.Address, req.Data); err != nil {
		log.Panicf("%s: %v", c.Name(), err)
	}

	return vci.NewXramWriteAck(c.topPort.AsRemote(), req)
}
