package sim

import "reflect"

// A Msg is a piece of information that is transferred between components.
type Msg interface {
	Meta() *MsgMeta
}

// MsgMeta contains the meta data that is attached to every message. Src and
// Dst name ports; a DirectConnection delivers by Dst.
type MsgMeta struct {
	ID           string
	Src, Dst     RemotePort
	TrafficClass string
	TrafficBytes int
}

// Rsp is a message that completes the request whose ID it returns.
type Rsp interface {
	Msg
	GetRspTo() string
}

// MsgKind returns the type name of a message without its package, for
// example "ReadReq".
func MsgKind(msg Msg) string {
	t := reflect.TypeOf(msg)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	return t.Name()
}
