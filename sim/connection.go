package sim

import "log"

// A Connection moves messages between the ports plugged into it.
type Connection interface {
	Named
	Ticker

	PlugIn(port Port)
}

// DirectConnection connects ports without latency. A message sent during a
// tick is delivered when the connection ticks, after all the components have
// ticked, so the receiver sees it in the next tick.
type DirectConnection struct {
	name       string
	nextPortID int
	ports      []Port
	byName     map[RemotePort]Port
}

// NewDirectConnection creates a new DirectConnection object
func NewDirectConnection(name string) *DirectConnection {
	return &DirectConnection{
		name:   name,
		byName: make(map[RemotePort]Port),
	}
}

// Name returns the name of the connection.
func (c *DirectConnection) Name() string {
	return c.name
}

// PlugIn marks the port connects to this DirectConnection.
func (c *DirectConnection) PlugIn(port Port) {
	if _, found := c.byName[port.AsRemote()]; found {
		log.Panicf("port %s is already plugged into %s", port.Name(), c.name)
	}

	c.ports = append(c.ports, port)
	c.byName[port.AsRemote()] = port
	port.SetConnection(c)
}

// Tick delivers the outgoing messages of all the connected ports. The port
// that is served first rotates from tick to tick.
func (c *DirectConnection) Tick() bool {
	if len(c.ports) == 0 {
		return false
	}

	madeProgress := false

	for i := 0; i < len(c.ports); i++ {
		portID := (i + c.nextPortID) % len(c.ports)
		madeProgress = c.forwardMany(c.ports[portID]) || madeProgress
	}

	c.nextPortID = (c.nextPortID + 1) % len(c.ports)

	return madeProgress
}

func (c *DirectConnection) forwardMany(src Port) bool {
	madeProgress := false

	for {
		head := src.PeekOutgoing()
		if head == nil {
			break
		}

		dst, found := c.byName[head.Meta().Dst]
		if !found {
			log.Panicf("%s: destination %s is not connected",
				c.name, head.Meta().Dst)
		}

		if err := dst.Deliver(head); err != nil {
			break
		}

		src.RetrieveOutgoing()

		madeProgress = true
	}

	return madeProgress
}
