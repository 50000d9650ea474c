// Package vci defines the split-transaction messages exchanged between the
// L1 caches, the memory cache and the external memory.
package vci

import (
	"reflect"

	"github.com/sarchlab/memcoherence/sim"
)

var (
	cmdByteOverhead = 12
	rspByteOverhead = 4
)

// A Requester identifies the initiator of a command and the transaction it
// belongs to. Every response echoes the requester of its command.
type Requester struct {
	SrcID uint32
	TrdID uint32
	PktID uint32
}

// A TargetReq is a command that an L1 cache sends to the memory cache
// target port.
type TargetReq interface {
	sim.Msg
	GetRequester() Requester
	GetAddress() uint64
}

// A ReadReq fetches up to one line of words.
type ReadReq struct {
	sim.MsgMeta
	Requester

	Address     uint64
	NumWords    int
	Cached      bool
	Instruction bool
}

// Meta returns the message meta.
func (r *ReadReq) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// GetRequester returns who issued the request.
func (r *ReadReq) GetRequester() Requester {
	return r.Requester
}

// GetAddress returns the address of the first word.
func (r *ReadReq) GetAddress() uint64 {
	return r.Address
}

// A WriteReq writes a burst of words that stays within one line. Each word
// has a 4-bit byte enable.
type WriteReq struct {
	sim.MsgMeta
	Requester

	Address     uint64
	Data        []uint32
	ByteEnables []uint8
}

// Meta returns the message meta.
func (r *WriteReq) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// GetRequester returns who issued the request.
func (r *WriteReq) GetRequester() Requester {
	return r.Requester
}

// GetAddress returns the address of the first word.
func (r *WriteReq) GetAddress() uint64 {
	return r.Address
}

// An LLReq is a load-linked request.
type LLReq struct {
	sim.MsgMeta
	Requester

	Address uint64
}

// Meta returns the message meta.
func (r *LLReq) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// GetRequester returns who issued the request.
func (r *LLReq) GetRequester() Requester {
	return r.Requester
}

// GetAddress returns the address of the word.
func (r *LLReq) GetAddress() uint64 {
	return r.Address
}

// An SCReq is a store-conditional request.
type SCReq struct {
	sim.MsgMeta
	Requester

	Address uint64
	Data    uint32
}

// Meta returns the message meta.
func (r *SCReq) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// GetRequester returns who issued the request.
func (r *SCReq) GetRequester() Requester {
	return r.Requester
}

// GetAddress returns the address of the word.
func (r *SCReq) GetAddress() uint64 {
	return r.Address
}

// TargetReqBuilder can build all the commands that go to the target port.
type TargetReqBuilder struct {
	src, dst    sim.RemotePort
	requester   Requester
	address     uint64
	numWords    int
	cached      bool
	instruction bool
	data        []uint32
	byteEnables []uint8
}

// WithSrc sets the source of the request to build.
func (b TargetReqBuilder) WithSrc(src sim.RemotePort) TargetReqBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the request to build.
func (b TargetReqBuilder) WithDst(dst sim.RemotePort) TargetReqBuilder {
	b.dst = dst
	return b
}

// WithRequester sets the source, transaction and packet IDs.
func (b TargetReqBuilder) WithRequester(r Requester) TargetReqBuilder {
	b.requester = r
	return b
}

// WithAddress sets the address of the request to build.
func (b TargetReqBuilder) WithAddress(address uint64) TargetReqBuilder {
	b.address = address
	return b
}

// WithNumWords sets the number of words that a read fetches.
func (b TargetReqBuilder) WithNumWords(n int) TargetReqBuilder {
	b.numWords = n
	return b
}

// Cached marks that the reader keeps a copy of the line.
func (b TargetReqBuilder) Cached() TargetReqBuilder {
	b.cached = true
	return b
}

// Instruction marks that the request comes from an instruction cache.
func (b TargetReqBuilder) Instruction() TargetReqBuilder {
	b.instruction = true
	return b
}

// WithData sets the words to write.
func (b TargetReqBuilder) WithData(data ...uint32) TargetReqBuilder {
	b.data = data
	return b
}

// WithByteEnables sets the per-word byte enables. If not set, all bytes are
// written.
func (b TargetReqBuilder) WithByteEnables(be ...uint8) TargetReqBuilder {
	b.byteEnables = be
	return b
}

func (b TargetReqBuilder) meta(msg interface{}, payloadWords int) sim.MsgMeta {
	return sim.MsgMeta{
		ID:           sim.GetIDGenerator().Generate(),
		Src:          b.src,
		Dst:          b.dst,
		TrafficClass: reflect.TypeOf(msg).String(),
		TrafficBytes: cmdByteOverhead + payloadWords*WordBytes,
	}
}

// BuildRead creates a new ReadReq.
func (b TargetReqBuilder) BuildRead() *ReadReq {
	numWords := b.numWords
	if numWords == 0 {
		numWords = 1
	}

	return &ReadReq{
		MsgMeta:     b.meta(ReadReq{}, 0),
		Requester:   b.requester,
		Address:     b.address,
		NumWords:    numWords,
		Cached:      b.cached,
		Instruction: b.instruction,
	}
}

// BuildWrite creates a new WriteReq.
func (b TargetReqBuilder) BuildWrite() *WriteReq {
	be := b.byteEnables
	if be == nil {
		be = make([]uint8, len(b.data))
		for i := range be {
			be[i] = 0xF
		}
	}

	return &WriteReq{
		MsgMeta:     b.meta(WriteReq{}, len(b.data)),
		Requester:   b.requester,
		Address:     b.address,
		Data:        append([]uint32(nil), b.data...),
		ByteEnables: append([]uint8(nil), be...),
	}
}

// BuildLL creates a new LLReq.
func (b TargetReqBuilder) BuildLL() *LLReq {
	return &LLReq{
		MsgMeta:   b.meta(LLReq{}, 0),
		Requester: b.requester,
		Address:   b.address,
	}
}

// BuildSC creates a new SCReq with the first data word.
func (b TargetReqBuilder) BuildSC() *SCReq {
	var data uint32
	if len(b.data) > 0 {
		data = b.data[0]
	}

	return &SCReq{
		MsgMeta:   b.meta(SCReq{}, 1),
		Requester: b.requester,
		Address:   b.address,
		Data:      data,
	}
}

// A TargetRsp is sent back on the target port to complete a command.
type TargetRsp interface {
	sim.Rsp
	GetRequester() Requester
}

type targetRspBase struct {
	sim.MsgMeta
	Requester

	RespondTo string
}

// Meta returns the message meta.
func (r *targetRspBase) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// GetRspTo returns the ID of the request being answered.
func (r *targetRspBase) GetRspTo() string {
	return r.RespondTo
}

// GetRequester returns the requester of the answered command.
func (r *targetRspBase) GetRequester() Requester {
	return r.Requester
}

// DataReadyRsp carries the words of a read.
type DataReadyRsp struct {
	targetRspBase

	Data []uint32
}

// WriteDoneRsp acknowledges a write.
type WriteDoneRsp struct {
	targetRspBase
}

// LLRsp carries the word loaded by a load-linked.
type LLRsp struct {
	targetRspBase

	Data uint32
}

// SC response codes.
const (
	SCSuccess uint32 = 0
	SCFailure uint32 = 1
)

// SCRsp reports whether a store-conditional succeeded.
type SCRsp struct {
	targetRspBase

	Code uint32
}

// Success tells if the store-conditional took effect.
func (r *SCRsp) Success() bool {
	return r.Code == SCSuccess
}

// TargetRspBuilder can build the responses to target commands.
type TargetRspBuilder struct {
	src, dst  sim.RemotePort
	requester Requester
	rspTo     string
}

// WithSrc sets the source of the response to build.
func (b TargetRspBuilder) WithSrc(src sim.RemotePort) TargetRspBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the response to build.
func (b TargetRspBuilder) WithDst(dst sim.RemotePort) TargetRspBuilder {
	b.dst = dst
	return b
}

// WithRequester sets the requester that is echoed back.
func (b TargetRspBuilder) WithRequester(r Requester) TargetRspBuilder {
	b.requester = r
	return b
}

// WithRspTo sets the ID of the request being answered.
func (b TargetRspBuilder) WithRspTo(id string) TargetRspBuilder {
	b.rspTo = id
	return b
}

func (b TargetRspBuilder) base(msg interface{}, payloadWords int) targetRspBase {
	return targetRspBase{
		MsgMeta: sim.MsgMeta{
			ID:           sim.GetIDGenerator().Generate(),
			Src:          b.src,
			Dst:          b.dst,
			TrafficClass: reflect.TypeOf(msg).String(),
			TrafficBytes: rspByteOverhead + payloadWords*WordBytes,
		},
		Requester: b.requester,
		RespondTo: b.rspTo,
	}
}

// BuildDataReady creates a DataReadyRsp.
func (b TargetRspBuilder) BuildDataReady(data []uint32) *DataReadyRsp {
	return &DataReadyRsp{
		targetRspBase: b.base(DataReadyRsp{}, len(data)),
		Data:          append([]uint32(nil), data...),
	}
}

// BuildWriteDone creates a WriteDoneRsp.
func (b TargetRspBuilder) BuildWriteDone() *WriteDoneRsp {
	return &WriteDoneRsp{targetRspBase: b.base(WriteDoneRsp{}, 0)}
}

// BuildLL creates an LLRsp.
func (b TargetRspBuilder) BuildLL(data uint32) *LLRsp {
	return &LLRsp{targetRspBase: b.base(LLRsp{}, 1), Data: data}
}

// BuildSC creates an SCRsp.
func (b TargetRspBuilder) BuildSC(code uint32) *SCRsp {
	return &SCRsp{targetRspBase: b.base(SCRsp{}, 1), Code: code}
}
