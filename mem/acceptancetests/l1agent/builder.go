package l1agent

import (
	"github.com/sarchlab/memcoherence/mem/vci"
	"github.com/sarchlab/memcoherence/sim"
)

// Builder builds agents.
type Builder struct {
	srcID          uint32
	addr           vci.AddressMapping
	clock          *sim.Clock
	targetPort     sim.RemotePort
	cleanupTarget  sim.RemotePort
	portBufferSize int
	debug          bool
}

// MakeBuilder returns a Builder with 4-word lines over 16 sets.
func MakeBuilder() Builder {
	return Builder{
		addr:           vci.NewAddressMapping(4, 16),
		portBufferSize: 4,
	}
}

// WithSrcID sets the source identifier that the memory cache registers
// copies with.
func (b Builder) WithSrcID(id uint32) Builder {
	b.srcID = id
	return b
}

// WithAddressMapping sets the line geometry. It must match the memory cache.
func (b Builder) WithAddressMapping(m vci.AddressMapping) Builder {
	b.addr = m
	return b
}

// WithClock sets the clock used to stamp results.
func (b Builder) WithClock(clock *sim.Clock) Builder {
	b.clock = clock
	return b
}

// WithTargetPort sets the port that receives commands.
func (b Builder) WithTargetPort(p sim.RemotePort) Builder {
	b.targetPort = p
	return b
}

// WithCleanupTarget sets the port that receives eviction notices.
func (b Builder) WithCleanupTarget(p sim.RemotePort) Builder {
	b.cleanupTarget = p
	return b
}

// WithPortBufferSize sets the size of the port buffers.
func (b Builder) WithPortBufferSize(n int) Builder {
	b.portBufferSize = n
	return b
}

// WithDebugLog turns on the per-event log.
func (b Builder) WithDebugLog(on bool) Builder {
	b.debug = on
	return b
}

// Build creates an agent with an empty script.
func (b Builder) Build(name string) *Agent {
	a := &Agent{
		ComponentBase:   sim.NewComponentBase(name),
		SrcID:           b.srcID,
		addr:            b.addr,
		clock:           b.clock,
		debug:           b.debug,
		targetPort:      b.targetPort,
		cleanupTarget:   b.cleanupTarget,
		copies:          make(map[uint64]*Copy),
		fills:           make(map[uint64]*fill),
		pendingCleanups: make(map[uint64]bool),
	}

	n := b.portBufferSize
	a.topPort = sim.NewPort(n, n, name+".TopPort")
	a.cleanupPort = sim.NewPort(n, n, name+".CleanupPort")
	a.coherencePort = sim.NewPort(n, n, name+".CoherencePort")

	a.AddPort("Top", a.topPort)
	a.AddPort("Cleanup", a.cleanupPort)
	a.AddPort("Coherence", a.coherencePort)

	return a
}

// SetTargets sets the ports of the memory cache after the agent is built.
func (a *Agent) SetTargets(target, cleanup sim.RemotePort) {
	a.targetPort = target
	a.cleanupTarget = cleanup
}
