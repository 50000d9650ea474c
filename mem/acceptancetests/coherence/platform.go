// Package coherence wires a memory cache, an ideal external memory and a set
// of scripted L1 agents into a platform that runs coherence scenarios.
package coherence

import (
	"errors"
	"fmt"

	"github.com/sarchlab/memcoherence/mem/acceptancetests/l1agent"
	"github.com/sarchlab/memcoherence/mem/idealxram"
	"github.com/sarchlab/memcoherence/mem/memcache"
	"github.com/sarchlab/memcoherence/sim"
)

// ErrIncoherent is returned when a copy or a stored word does not match the
// memory system.
var ErrIncoherent = errors.New("memory system is incoherent")

// A Platform is a memory cache with its L1 agents and its external memory.
type Platform struct {
	Clock  *sim.Clock
	Conn   *sim.DirectConnection
	Cache  *memcache.Comp
	Xram   *idealxram.Comp
	Agents []*l1agent.Agent
	Log    *MsgLog
}

// Builder builds platforms.
type Builder struct {
	numAgents   int
	cache       memcache.Builder
	xramLatency int
	agentBuf    int
	logMsgs     bool
	debug       bool
}

// MakeBuilder returns a builder of a platform with 3 agents and a small
// memory cache with 4-word lines.
func MakeBuilder() Builder {
	return Builder{
		numAgents: 3,
		cache: memcache.MakeBuilder().
			WithNumSets(16).
			WithNumWays(2).
			WithWordsPerLine(4).
			WithHeapSize(16),
		xramLatency: 10,
		agentBuf:    4,
	}
}

// WithNumAgents sets the number of L1 agents.
func (b Builder) WithNumAgents(n int) Builder {
	b.numAgents = n
	return b
}

// WithCacheBuilder sets how the memory cache is built.
func (b Builder) WithCacheBuilder(cb memcache.Builder) Builder {
	b.cache = cb
	return b
}

// WithXramLatency sets the latency of the external memory.
func (b Builder) WithXramLatency(cycles int) Builder {
	b.xramLatency = cycles
	return b
}

// WithAgentBufferSize sets the port buffer size of the agents.
func (b Builder) WithAgentBufferSize(n int) Builder {
	b.agentBuf = n
	return b
}

// WithMsgLog records every message sent in the platform.
func (b Builder) WithMsgLog(on bool) Builder {
	b.logMsgs = on
	return b
}

// WithDebugLog turns on the debug log of all the components.
func (b Builder) WithDebugLog(on bool) Builder {
	b.debug = on
	return b
}

// Build creates the platform. Agent i has source ID i.
func (b Builder) Build() *Platform {
	p := &Platform{
		Clock: sim.NewClock(1 * sim.GHz),
		Conn:  sim.NewDirectConnection("Conn"),
	}

	p.Xram = idealxram.MakeBuilder().
		WithLatency(b.xramLatency).
		Build("Xram")

	p.Cache = b.cache.
		WithXramPort(p.Xram.TopPort().AsRemote()).
		WithDebugLog(b.debug).
		Build("Cache")

	for i := 0; i < b.numAgents; i++ {
		a := l1agent.MakeBuilder().
			WithSrcID(uint32(i)).
			WithAddressMapping(p.Cache.AddressMapping()).
			WithClock(p.Clock).
			WithTargetPort(p.Cache.TopPort().AsRemote()).
			WithCleanupTarget(p.Cache.CleanupPort().AsRemote()).
			WithPortBufferSize(b.agentBuf).
			WithDebugLog(b.debug).
			Build(fmt.Sprintf("Agent[%d]", i))

		p.Cache.SetCoherenceTarget(a.SrcID, a.CoherencePort().AsRemote())
		p.Agents = append(p.Agents, a)
	}

	p.connect()
	p.register()

	if b.logMsgs {
		p.Log = NewMsgLog(p.Clock)
		for _, port := range p.Ports() {
			port.AcceptHook(p.Log)
		}
	}

	return p
}

func (p *Platform) connect() {
	for _, port := range p.Ports() {
		p.Conn.PlugIn(port)
	}
}

func (p *Platform) register() {
	for _, a := range p.Agents {
		p.Clock.RegisterComponent(a)
	}

	p.Clock.RegisterComponent(p.Cache)
	p.Clock.RegisterComponent(p.Xram)
	p.Clock.RegisterConnection(p.Conn)
}

// Components returns every component of the platform.
func (p *Platform) Components() []sim.Component {
	comps := []sim.Component{p.Cache, p.Xram}
	for _, a := range p.Agents {
		comps = append(comps, a)
	}

	return comps
}

// Ports returns every port of the platform.
func (p *Platform) Ports() []sim.Port {
	var ports []sim.Port

	for _, c := range p.Components() {
		ports = append(ports, c.Ports()...)
	}

	return ports
}

// Quiescent tells if all the scripts are over and nothing is in flight.
func (p *Platform) Quiescent() bool {
	for _, a := range p.Agents {
		if !a.Done() {
			return false
		}
	}

	if !p.Cache.Idle() {
		return false
	}

	for _, port := range p.Ports() {
		if port.PeekIncoming() != nil || port.PeekOutgoing() != nil {
			return false
		}
	}

	return true
}

// Run steps the platform until it is quiescent.
func (p *Platform) Run(maxCycles uint64) error {
	if err := p.Clock.RunUntil(p.Quiescent, maxCycles); err != nil {
		return err
	}

	return p.Cache.Err()
}

// Word returns the current value of a word. The memory cache has the latest
// value if it holds the line.
func (p *Platform) Word(addr uint64) (uint32, error) {
	m := p.Cache.AddressMapping()

	if s, held := p.Cache.Line(m.Line(addr)); held {
		return s.Data[m.WordIndex(addr)], nil
	}

	words, err := p.Xram.Storage.ReadWords(addr, 1)
	if err != nil {
		return 0, err
	}

	return words[0], nil
}

// CheckCoherence verifies that every L1 copy matches the memory cache and
// that the words hold the expected values. It must be called when the
// platform is quiescent.
func (p *Platform) CheckCoherence(expected map[uint64]uint32) error {
	var errs []error

	for _, a := range p.Agents {
		errs = append(errs, p.checkCopies(a)...)
	}

	for addr, want := range expected {
		got, err := p.Word(addr)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if got != want {
			errs = append(errs, fmt.Errorf("word 0x%x is 0x%x, want 0x%x: %w",
				addr, got, want, ErrIncoherent))
		}
	}

	if err := p.Cache.CheckInvariants(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (p *Platform) checkCopies(a *l1agent.Agent) []error {
	var errs []error

	for line, c := range a.Copies() {
		s, held := p.Cache.Line(line)
		if !held {
			errs = append(errs, fmt.Errorf("%s holds line 0x%x, "+
				"which the memory cache does not hold: %w",
				a.Name(), line, ErrIncoherent))

			continue
		}

		for i, w := range c.Data {
			if s.Data[i] != w {
				errs = append(errs, fmt.Errorf("%s has 0x%x at word %d "+
					"of line 0x%x, the memory cache has 0x%x: %w",
					a.Name(), w, i, line, s.Data[i], ErrIncoherent))
			}
		}
	}

	return errs
}
