package vci

import "github.com/sarchlab/memcoherence/sim"

// An XramReadReq fetches a full line from the external memory.
type XramReadReq struct {
	sim.MsgMeta

	TrtIndex int
	Address  uint64
	NumWords int
}

// Meta returns the message meta.
func (r *XramReadReq) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// NewXramReadReq creates an XramReadReq.
func NewXramReadReq(
	src, dst sim.RemotePort,
	trtIndex int,
	address uint64,
	numWords int,
) *XramReadReq {
	return &XramReadReq{
		MsgMeta:  makeMeta(src, dst, XramReadReq{}, cmdByteOverhead),
		TrtIndex: trtIndex,
		Address:  address,
		NumWords: numWords,
	}
}

// An XramWriteReq writes a full line back to the external memory.
type XramWriteReq struct {
	sim.MsgMeta

	TrtIndex int
	Address  uint64
	Data     []uint32
}

// Meta returns the message meta.
func (r *XramWriteReq) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// NewXramWriteReq creates an XramWriteReq.
func NewXramWriteReq(
	src, dst sim.RemotePort,
	trtIndex int,
	address uint64,
	data []uint32,
) *XramWriteReq {
	return &XramWriteReq{
		MsgMeta: makeMeta(src, dst, XramWriteReq{},
			cmdByteOverhead+len(data)*WordBytes),
		TrtIndex: trtIndex,
		Address:  address,
		Data:     append([]uint32(nil), data...),
	}
}

// An XramDataRsp carries the line fetched by an XramReadReq.
type XramDataRsp struct {
	sim.MsgMeta

	RespondTo string
	TrtIndex  int
	Data      []uint32
}

// Meta returns the message meta.
func (r *XramDataRsp) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// GetRspTo returns the ID of the read being answered.
func (r *XramDataRsp) GetRspTo() string {
	return r.RespondTo
}

// NewXramDataRsp creates the response of an XramReadReq.
func NewXramDataRsp(
	src sim.RemotePort,
	req *XramReadReq,
	data []uint32,
) *XramDataRsp {
	return &XramDataRsp{
		MsgMeta: makeMeta(src, req.Src, XramDataRsp{},
			rspByteOverhead+len(data)*WordBytes),
		RespondTo: req.ID,
		TrtIndex:  req.TrtIndex,
		Data:      append([]uint32(nil), data...),
	}
}

// An XramWriteAck acknowledges an XramWriteReq.
type XramWriteAck struct {
	sim.MsgMeta

	RespondTo string
	TrtIndex  int
}

// Meta returns the message meta.
func (r *XramWriteAck) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// GetRspTo returns the ID of the write being answered.
func (r *XramWriteAck) GetRspTo() string {
	return r.RespondTo
}

// NewXramWriteAck creates the response of an XramWriteReq.
func NewXramWriteAck(src sim.RemotePort, req *XramWriteReq) *XramWriteAck {
	return &XramWriteAck{
		MsgMeta:   makeMeta(src, req.Src, XramWriteAck{}, rspByteOverhead),
		RespondTo: req.ID,
		TrtIndex:  req.TrtIndex,
	}
}
