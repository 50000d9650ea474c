// Package l1agent provides a stand-in for a private L1 cache. It runs a
// script of memory operations against a memory cache and keeps its copies
// coherent by answering updates and invalidations.
package l1agent

import (
	"log"
	"reflect"

	"github.com/sarchlab/memcoherence/mem/vci"
	"github.com/sarchlab/memcoherence/sim"
	"github.com/sarchlab/memcoherence/tracing"
)

// OpKind is the kind of an operation.
type OpKind int

// The operations an agent can run.
const (
	OpRead OpKind = iota
	OpReadInstruction
	OpReadUncached
	OpWrite
	OpLL
	OpSC
	OpEvict
)

var opKindNames = []string{
	"read", "read_instruction", "read_uncached", "write", "ll", "sc", "evict",
}

func (k OpKind) String() string {
	return opKindNames[k]
}

// An Op is one operation of a script. Reads and evictions only use the
// address. Writes use Data and ByteEnables, and SC uses Data[0].
type Op struct {
	Kind        OpKind
	Address     uint64
	NumWords    int
	Data        []uint32
	ByteEnables []uint8
}

// A Result is the outcome of an operation.
type Result struct {
	Op       Op
	Data     []uint32
	Code     uint32
	LocalHit bool
	IssuedAt uint64
	DoneAt   uint64
}

// A Copy is a line held by the agent.
type Copy struct {
	Data        []uint32
	Instruction bool
}

type fill struct {
	reqID       string
	instruction bool
	updates     []*vci.UpdateReq
	invalidated bool
}

type outstanding struct {
	op       Op
	req      sim.Msg
	line     uint64
	issuedAt uint64
}

// Counters counts the coherence traffic seen by an agent.
type Counters struct {
	UpdatesReceived uint64
	InvalsReceived  uint64
	AcksSent        uint64
	CleanupsSent    uint64
	CleanupAcks     uint64
	LocalHits       uint64
}

// An Agent is a scripted L1 cache.
type Agent struct {
	*sim.ComponentBase

	SrcID    uint32
	Script   []Op
	Results  []Result
	Counters Counters

	addr  vci.AddressMapping
	clock *sim.Clock
	debug bool

	topPort       sim.Port
	cleanupPort   sim.Port
	coherencePort sim.Port

	targetPort    sim.RemotePort
	cleanupTarget sim.RemotePort

	copies          map[uint64]*Copy
	fills           map[uint64]*fill
	pendingCleanups map[uint64]bool
	current         *outstanding
	nextTrdID       uint32
}

// TopPort returns the port that sends commands to the memory cache.
func (a *Agent) TopPort() sim.Port {
	return a.topPort
}

// CleanupPort returns the port that sends eviction notices.
func (a *Agent) CleanupPort() sim.Port {
	return a.cleanupPort
}

// CoherencePort returns the port that receives updates and invalidations.
func (a *Agent) CoherencePort() sim.Port {
	return a.coherencePort
}

// Enqueue appends operations to the script.
func (a *Agent) Enqueue(ops ...Op) {
	a.Script = append(a.Script, ops...)
}

// Copies returns the lines held by the agent.
func (a *Agent) Copies() map[uint64]Copy {
	copies := make(map[uint64]Copy, len(a.copies))
	for line, c := range a.copies {
		copies[line] = Copy{
			Data:        append([]uint32(nil), c.Data...),
			Instruction: c.Instruction,
		}
	}

	return copies
}

// Done tells if the script is over and nothing is in flight.
func (a *Agent) Done() bool {
	return len(a.Script) == 0 &&
		a.current == nil &&
		len(a.fills) == 0 &&
		len(a.pendingCleanups) == 0
}

// Busy tells if an operation has been sent and not yet answered.
func (a *Agent) Busy() bool {
	return a.current != nil
}

func (a *Agent) now() uint64 {
	if a.clock == nil {
		return 0
	}

	return a.clock.Now()
}

func (a *Agent) logf(format string, args ...any) {
	if !a.debug {
		return
	}

	args = append([]any{a.now(), a.Name()}, args...)
	log.Printf("[%d] %s: "+format, args...)
}

// Tick handles one message of each port and issues the next operation.
func (a *Agent) Tick() bool {
	madeProgress := false

	madeProgress = a.processCoherence() || madeProgress
	madeProgress = a.processCleanupAck() || madeProgress
	madeProgress = a.processResponse() || madeProgress
	madeProgress = a.issue() || madeProgress

	return madeProgress
}

func (a *Agent) processCoherence() bool {
	msg := a.coherencePort.PeekIncoming()
	if msg == nil {
		return false
	}

	switch req := msg.(type) {
	case *vci.UpdateReq:
		return a.handleUpdate(req)
	case *vci.InvalidateReq:
		return a.handleInval(req)
	default:
		log.Panicf("%s cannot handle %s", a.Name(), reflect.TypeOf(msg))
	}

	return false
}

func (a *Agent) handleUpdate(req *vci.UpdateReq) bool {
	if !a.coherencePort.CanSend() {
		return false
	}

	a.coherencePort.RetrieveIncoming()
	a.Counters.UpdatesReceived++

	if c, held := a.copies[req.Line]; held {
		patch(c.Data, req)
	} else if f, pending := a.fills[req.Line]; pending {
		f.updates = append(f.updates, req)
	}

	a.coherencePort.Send(
		vci.NewCoherenceAck(a.coherencePort.AsRemote(), a.SrcID, req))
	a.Counters.AcksSent++

	a.logf("update of line 0x%x acknowledged", req.Line)

	return true
}

func patch(data []uint32, req *vci.UpdateReq) {
	for i, d := range req.Data {
		w := req.WordIndex + i
		data[w] = vci.MergeWord(data[w], d, req.ByteEnables[i])
	}
}

func (a *Agent) handleInval(req *vci.InvalidateReq) bool {
	if _, held := a.copies[req.Line]; held {
		if !a.cleanupPort.CanSend() {
			return false
		}

		a.coherencePort.RetrieveIncoming()
		a.Counters.InvalsReceived++
		a.drop(req.Line)

		return true
	}

	a.coherencePort.RetrieveIncoming()
	a.Counters.InvalsReceived++

	if f, pending := a.fills[req.Line]; pending {
		f.invalidated = true
	}

	return true
}

// drop discards a copy and notifies the memory cache. The caller must have
// checked that the cleanup port can send.
func (a *Agent) drop(line uint64) {
	c := a.copies[line]
	delete(a.copies, line)

	req := vci.NewCleanupReq(a.cleanupPort.AsRemote(), a.cleanupTarget,
		a.SrcID, c.Instruction, line)
	a.cleanupPort.Send(req)
	tracing.TraceReqInitiate(req, a, "")

	a.pendingCleanups[line] = true
	a.Counters.CleanupsSent++

	a.logf("line 0x%x dropped", line)
}

func (a *Agent) processCleanupAck() bool {
	msg := a.cleanupPort.RetrieveIncoming()
	if msg == nil {
		return false
	}

	ack, ok := msg.(*vci.CleanupAck)
	if !ok {
		log.Panicf("%s cannot handle %s", a.Name(), reflect.TypeOf(msg))
	}

	delete(a.pendingCleanups, ack.Line)
	a.Counters.CleanupAcks++
	tracing.EndTask(ack.RespondTo+"_req_out", a)

	return true
}

func (a *Agent) processResponse() bool {
	msg := a.topPort.PeekIncoming()
	if msg == nil {
		return false
	}

	if a.current == nil || msg.(sim.Rsp).GetRspTo() != a.current.req.Meta().ID {
		log.Panicf("%s got an unexpected response %s",
			a.Name(), reflect.TypeOf(msg))
	}

	result := Result{
		Op:       a.current.op,
		IssuedAt: a.current.issuedAt,
		DoneAt:   a.now(),
	}

	switch rsp := msg.(type) {
	case *vci.DataReadyRsp:
		if !a.completeRead(rsp, &result) {
			return false
		}
	case *vci.WriteDoneRsp:
	case *vci.LLRsp:
		result.Data = []uint32{rsp.Data}
	case *vci.SCRsp:
		result.Code = rsp.Code
		if rsp.Success() {
			a.applyLocally(a.current.op)
		}
	default:
		log.Panicf("%s cannot handle %s", a.Name(), reflect.TypeOf(msg))
	}

	a.topPort.RetrieveIncoming()
	tracing.TraceReqFinalize(a.current.req, a)

	a.Results = append(a.Results, result)
	a.current = nil

	return true
}

func (a *Agent) completeRead(rsp *vci.DataReadyRsp, result *Result) bool {
	op := a.current.op
	line := a.current.line

	f, cached := a.fills[line]
	if !cached {
		result.Data = rsp.Data
		return true
	}

	if f.invalidated && !a.cleanupPort.CanSend() {
		return false
	}

	data := append([]uint32(nil), rsp.Data...)
	for _, u := range f.updates {
		patch(data, u)
	}

	delete(a.fills, line)
	a.copies[line] = &Copy{Data: data, Instruction: f.instruction}

	word := a.addr.WordIndex(op.Address)
	result.Data = append([]uint32(nil), data[word:word+op.numWords()]...)

	if f.invalidated {
		a.drop(line)
	}

	return true
}

func (op Op) numWords() int {
	if op.NumWords == 0 {
		return 1
	}

	return op.NumWords
}

func (a *Agent) applyLocally(op Op) {
	c, held := a.copies[a.addr.Line(op.Address)]
	if !held {
		return
	}

	word := a.addr.WordIndex(op.Address)

	switch op.Kind {
	case OpWrite:
		for i, d := range op.Data {
			c.Data[word+i] = vci.MergeWord(c.Data[word+i], d, op.byteEnable(i))
		}
	case OpSC:
		c.Data[word] = op.Data[0]
	}
}

func (a *Agent) issue() bool {
	if a.current != nil || len(a.Script) == 0 {
		return false
	}

	op := a.Script[0]
	line := a.addr.Line(op.Address)

	if a.pendingCleanups[line] {
		return false
	}

	if op.Kind == OpEvict {
		return a.evict(line)
	}

	if op.Kind == OpRead || op.Kind == OpReadInstruction {
		if c, held := a.copies[line]; held {
			word := a.addr.WordIndex(op.Address)
			a.Results = append(a.Results, Result{
				Op:       op,
				Data:     append([]uint32(nil), c.Data[word:word+op.numWords()]...),
				LocalHit: true,
				IssuedAt: a.now(),
				DoneAt:   a.now(),
			})
			a.Counters.LocalHits++
			a.Script = a.Script[1:]

			return true
		}
	}

	if !a.topPort.CanSend() {
		return false
	}

	req := a.build(op, line)
	a.topPort.Send(req)
	tracing.TraceReqInitiate(req, a, "")

	if op.Kind == OpWrite {
		a.applyLocally(op)
	}

	a.current = &outstanding{
		op:       op,
		req:      req,
		line:     line,
		issuedAt: a.now(),
	}
	a.Script = a.Script[1:]

	a.logf("%s at 0x%x sent", op.Kind, op.Address)

	return true
}

func (a *Agent) evict(line uint64) bool {
	if _, held := a.copies[line]; held {
		if !a.cleanupPort.CanSend() {
			return false
		}

		a.drop(line)
	}

	a.Script = a.Script[1:]

	return true
}

func (a *Agent) build(op Op, line uint64) sim.Msg {
	a.nextTrdID++

	b := vci.TargetReqBuilder{}.
		WithSrc(a.topPort.AsRemote()).
		WithDst(a.targetPort).
		WithRequester(vci.Requester{SrcID: a.SrcID, TrdID: a.nextTrdID}).
		WithAddress(op.Address)

	switch op.Kind {
	case OpRead, OpReadInstruction:
		a.fills[line] = &fill{instruction: op.Kind == OpReadInstruction}

		b = b.WithAddress(a.addr.LineAddress(line)).
			WithNumWords(a.addr.WordsPerLine).
			Cached()
		if op.Kind == OpReadInstruction {
			b = b.Instruction()
		}

		req := b.BuildRead()
		a.fills[line].reqID = req.ID

		return req
	case OpReadUncached:
		return b.WithNumWords(op.numWords()).BuildRead()
	case OpWrite:
		return b.WithData(op.Data...).WithByteEnables(op.ByteEnables...).BuildWrite()
	case OpLL:
		return b.BuildLL()
	case OpSC:
		return b.WithData(op.Data...).BuildSC()
	}

	log.Panicf("%s cannot run %s", a.Name(), op.Kind)

	return nil
}
