package sim

import (
	"fmt"
	"log"
)

// Hook positions of a port. Send fires when a component enqueues a message
// for the connection, Recvd when the connection delivers one, and
// RetrieveIncoming when the owning component takes it.
var (
	HookPosPortMsgSend             = &HookPos{Name: "Port Msg Send"}
	HookPosPortMsgRecvd            = &HookPos{Name: "Port Msg Recv"}
	HookPosPortMsgRetrieveIncoming = &HookPos{Name: "Port Msg Retrieve Incoming"}
)

// A RemotePort names the port at the other end of a connection.
type RemotePort string

// SendError reports that a buffer of the port is full. The sender keeps the
// message and retries in a later cycle.
type SendError struct{}

// NewSendError creates a SendError.
func NewSendError() *SendError {
	return &SendError{}
}

// A Port is the point where a component is plugged into a connection. Both
// directions are buffered.
type Port interface {
	Named
	Hookable

	AsRemote() RemotePort

	SetConnection(conn Connection)

	// Connection side.
	Deliver(msg Msg) *SendError
	RetrieveOutgoing() Msg
	PeekOutgoing() Msg

	// Component side.
	CanSend() bool
	Send(msg Msg) *SendError
	RetrieveIncoming() Msg
	PeekIncoming() Msg
}

type defaultPort struct {
	HookableBase

	name string
	conn Connection

	incomingBuf Buffer
	outgoingBuf Buffer
}

// NewPort creates a port whose buffers are named after the port.
func NewPort(incomingBufCap, outgoingBufCap int, name string) Port {
	return &defaultPort{
		name:        name,
		incomingBuf: NewBuffer(name+".IncomingBuf", incomingBufCap),
		outgoingBuf: NewBuffer(name+".OutgoingBuf", outgoingBufCap),
	}
}

func (p *defaultPort) Name() string {
	return p.name
}

func (p *defaultPort) AsRemote() RemotePort {
	return RemotePort(p.name)
}

// SetConnection plugs the port into a connection. A port takes a single
// connection for its lifetime.
func (p *defaultPort) SetConnection(conn Connection) {
	if p.conn != nil {
		log.Panicf("port %s is already connected to %s, cannot connect to %s",
			p.name, p.conn.Name(), conn.Name())
	}

	p.conn = conn
}

func (p *defaultPort) CanSend() bool {
	return p.outgoingBuf.CanPush()
}

// Send enqueues a message for the connection. The message must originate
// from this port and go somewhere else.
func (p *defaultPort) Send(msg Msg) *SendError {
	p.checkRoute(msg)

	if !p.outgoingBuf.CanPush() {
		return NewSendError()
	}

	p.outgoingBuf.Push(msg)
	p.notify(HookPosPortMsgSend, msg)

	return nil
}

func (p *defaultPort) Deliver(msg Msg) *SendError {
	if !p.incomingBuf.CanPush() {
		return NewSendError()
	}

	p.notify(HookPosPortMsgRecvd, msg)
	p.incomingBuf.Push(msg)

	return nil
}

func (p *defaultPort) RetrieveIncoming() Msg {
	msg := asMsg(p.incomingBuf.Pop())
	if msg != nil {
		p.notify(HookPosPortMsgRetrieveIncoming, msg)
	}

	return msg
}

func (p *defaultPort) RetrieveOutgoing() Msg {
	return asMsg(p.outgoingBuf.Pop())
}

func (p *defaultPort) PeekIncoming() Msg {
	return asMsg(p.incomingBuf.Peek())
}

func (p *defaultPort) PeekOutgoing() Msg {
	return asMsg(p.outgoingBuf.Peek())
}

func asMsg(item any) Msg {
	if item == nil {
		return nil
	}

	return item.(Msg)
}

func (p *defaultPort) notify(pos *HookPos, msg Msg) {
	if p.NumHooks() == 0 {
		return
	}

	p.InvokeHook(HookCtx{Domain: p, Pos: pos, Item: msg})
}

func (p *defaultPort) checkRoute(msg Msg) {
	meta := msg.Meta()

	switch {
	case string(meta.Src) != p.name:
		panic(fmt.Sprintf("port %s cannot send a message from %s",
			p.name, meta.Src))
	case meta.Dst == "":
		panic("message has no destination")
	case meta.Src == meta.Dst:
		panic(fmt.Sprintf("message from %s is sent back to itself", meta.Src))
	}
}
