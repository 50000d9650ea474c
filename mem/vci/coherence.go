package vci

import (
	"reflect"

	"github.com/sarchlab/memcoherence/sim"
)

func makeMeta(src, dst sim.RemotePort, msg interface{}, bytes int) sim.MsgMeta {
	return sim.MsgMeta{
		ID:           sim.GetIDGenerator().Generate(),
		Src:          src,
		Dst:          dst,
		TrafficClass: reflect.TypeOf(msg).String(),
		TrafficBytes: bytes,
	}
}

// A CleanupReq tells the memory cache that an L1 cache no longer holds a
// line.
type CleanupReq struct {
	sim.MsgMeta

	SrcID       uint32
	Instruction bool
	Line        uint64
}

// Meta returns the message meta.
func (r *CleanupReq) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// NewCleanupReq creates a CleanupReq.
func NewCleanupReq(
	src, dst sim.RemotePort,
	srcID uint32,
	instruction bool,
	line uint64,
) *CleanupReq {
	return &CleanupReq{
		MsgMeta:     makeMeta(src, dst, CleanupReq{}, cmdByteOverhead),
		SrcID:       srcID,
		Instruction: instruction,
		Line:        line,
	}
}

// A CleanupAck answers a CleanupReq.
type CleanupAck struct {
	sim.MsgMeta

	RespondTo string
	SrcID     uint32
	Line      uint64
}

// Meta returns the message meta.
func (r *CleanupAck) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// GetRspTo returns the ID of the cleanup being answered.
func (r *CleanupAck) GetRspTo() string {
	return r.RespondTo
}

// NewCleanupAck creates the acknowledgement of a cleanup.
func NewCleanupAck(src sim.RemotePort, req *CleanupReq) *CleanupAck {
	return &CleanupAck{
		MsgMeta:   makeMeta(src, req.Src, CleanupAck{}, rspByteOverhead),
		RespondTo: req.ID,
		SrcID:     req.SrcID,
		Line:      req.Line,
	}
}

// A CoherenceReq is sent by the memory cache to an L1 cache. The UptIndex is
// echoed back to correlate the acknowledgement.
type CoherenceReq interface {
	sim.Msg
	GetLine() uint64
	GetUptIndex() int
}

// An UpdateReq patches words of a line held by an L1 cache.
type UpdateReq struct {
	sim.MsgMeta

	Line        uint64
	WordIndex   int
	Data        []uint32
	ByteEnables []uint8
	UptIndex    int
}

// Meta returns the message meta.
func (r *UpdateReq) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// GetLine returns the line being updated.
func (r *UpdateReq) GetLine() uint64 {
	return r.Line
}

// GetUptIndex returns the update table index to acknowledge.
func (r *UpdateReq) GetUptIndex() int {
	return r.UptIndex
}

// NewUpdateReq creates an UpdateReq.
func NewUpdateReq(
	src, dst sim.RemotePort,
	line uint64,
	wordIndex int,
	data []uint32,
	be []uint8,
	uptIndex int,
) *UpdateReq {
	return &UpdateReq{
		MsgMeta: makeMeta(src, dst, UpdateReq{},
			cmdByteOverhead+len(data)*WordBytes),
		Line:        line,
		WordIndex:   wordIndex,
		Data:        append([]uint32(nil), data...),
		ByteEnables: append([]uint8(nil), be...),
		UptIndex:    uptIndex,
	}
}

// An InvalidateReq asks an L1 cache to drop a line. A holder answers with a
// CleanupReq.
type InvalidateReq struct {
	sim.MsgMeta

	Line        uint64
	Instruction bool
	Broadcast   bool
	UptIndex    int
}

// Meta returns the message meta.
func (r *InvalidateReq) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// GetLine returns the line being invalidated.
func (r *InvalidateReq) GetLine() uint64 {
	return r.Line
}

// GetUptIndex returns the update table index of the invalidation.
func (r *InvalidateReq) GetUptIndex() int {
	return r.UptIndex
}

// NewInvalidateReq creates an InvalidateReq.
func NewInvalidateReq(
	src, dst sim.RemotePort,
	line uint64,
	instruction, broadcast bool,
	uptIndex int,
) *InvalidateReq {
	return &InvalidateReq{
		MsgMeta:     makeMeta(src, dst, InvalidateReq{}, cmdByteOverhead),
		Line:        line,
		Instruction: instruction,
		Broadcast:   broadcast,
		UptIndex:    uptIndex,
	}
}

// A CoherenceAck acknowledges an UpdateReq.
type CoherenceAck struct {
	sim.MsgMeta

	RespondTo string
	SrcID     uint32
	UptIndex  int
}

// Meta returns the message meta.
func (r *CoherenceAck) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// GetRspTo returns the ID of the update being acknowledged.
func (r *CoherenceAck) GetRspTo() string {
	return r.RespondTo
}

// NewCoherenceAck creates the acknowledgement of an update.
func NewCoherenceAck(
	src sim.RemotePort,
	srcID uint32,
	req *UpdateReq,
) *CoherenceAck {
	return &CoherenceAck{
		MsgMeta:   makeMeta(src, req.Src, CoherenceAck{}, rspByteOverhead),
		RespondTo: req.ID,
		SrcID:     srcID,
		UptIndex:  req.UptIndex,
	}
}
