package coherence

import (
	"fmt"
	"io"
	"strings"

	"github.com/sarchlab/memcoherence/mem/vci"
	"github.com/sarchlab/memcoherence/sim"
)

// A MsgRecord is a message observed when it was sent.
type MsgRecord struct {
	Cycle uint64
	Src   sim.RemotePort
	Dst   sim.RemotePort
	Kind  string
	Msg   sim.Msg
}

func (r MsgRecord) String() string {
	return fmt.Sprintf("%6d  %-22s -> %-22s %s%s",
		r.Cycle, r.Src, r.Dst, r.Kind, describe(r.Msg))
}

// A MsgLog is a port hook that records the messages sent.
type MsgLog struct {
	clock   *sim.Clock
	Records []MsgRecord
}

// NewMsgLog creates an empty log stamped by the clock.
func NewMsgLog(clock *sim.Clock) *MsgLog {
	return &MsgLog{clock: clock}
}

// Func records the message if the hook fires on a send.
func (l *MsgLog) Func(ctx sim.HookCtx) {
	if ctx.Pos != sim.HookPosPortMsgSend {
		return
	}

	msg := ctx.Item.(sim.Msg)

	l.Records = append(l.Records, MsgRecord{
		Cycle: l.clock.Now(),
		Src:   msg.Meta().Src,
		Dst:   msg.Meta().Dst,
		Kind:  sim.MsgKind(msg),
		Msg:   msg,
	})
}

// Filter returns the records of the given kinds, in order.
func (l *MsgLog) Filter(kinds ...string) []MsgRecord {
	var out []MsgRecord

	for _, r := range l.Records {
		for _, k := range kinds {
			if r.Kind == k {
				out = append(out, r)
				break
			}
		}
	}

	return out
}

// Count returns the number of records of a kind.
func (l *MsgLog) Count(kind string) int {
	return len(l.Filter(kind))
}

// First returns the first record of a kind sent to or from a port whose name
// contains the given text.
func (l *MsgLog) First(kind, port string) (MsgRecord, bool) {
	for _, r := range l.Records {
		if r.Kind != kind {
			continue
		}

		if strings.Contains(string(r.Src), port) ||
			strings.Contains(string(r.Dst), port) {
			return r, true
		}
	}

	return MsgRecord{}, false
}

// Last returns the last record of a kind.
func (l *MsgLog) Last(kind string) (MsgRecord, bool) {
	for i := len(l.Records) - 1; i >= 0; i-- {
		if l.Records[i].Kind == kind {
			return l.Records[i], true
		}
	}

	return MsgRecord{}, false
}

// Dump writes the log, one message per line.
func (l *MsgLog) Dump(w io.Writer) {
	for _, r := range l.Records {
		fmt.Fprintln(w, r)
	}
}

func describe(msg sim.Msg) string {
	switch m := msg.(type) {
	case *vci.ReadReq:
		return fmt.Sprintf(" addr=0x%x words=%d cached=%t", m.Address,
			m.NumWords, m.Cached)
	case *vci.WriteReq:
		return fmt.Sprintf(" addr=0x%x data=%x", m.Address, m.Data)
	case *vci.LLReq:
		return fmt.Sprintf(" addr=0x%x", m.Address)
	case *vci.SCReq:
		return fmt.Sprintf(" addr=0x%x data=%x", m.Address, m.Data)
	case *vci.DataReadyRsp:
		return fmt.Sprintf(" data=%x", m.Data)
	case *vci.SCRsp:
		return fmt.Sprintf(" code=%d", m.Code)
	case *vci.UpdateReq:
		return fmt.Sprintf(" line=0x%x word=%d upt=%d", m.Line, m.WordIndex,
			m.UptIndex)
	case *vci.InvalidateReq:
		return fmt.Sprintf(" line=0x%x broadcast=%t upt=%d", m.Line,
			m.Broadcast, m.UptIndex)
	case *vci.CleanupReq:
		return fmt.Sprintf(" line=0x%x", m.Line)
	case *vci.XramReadReq:
		return fmt.Sprintf(" addr=0x%x trt=%d", m.Address, m.TrtIndex)
	case *vci.XramWriteReq:
		return fmt.Sprintf(" addr=0x%x trt=%d", m.Address, m.TrtIndex)
	}

	return ""
}
