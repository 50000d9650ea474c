package coherence

import (
	"math/rand"

	"github.com/sarchlab/memcoherence/mem/acceptancetests/l1agent"
)

// StressConfig describes a random run over all the agents.
type StressConfig struct {
	Seed      int64
	Traffic   l1agent.TrafficConfig
	MaxCycles uint64
}

// DefaultStressConfig returns a run that overflows a platform built by
// MakeBuilder, so lines get evicted while shared.
func DefaultStressConfig() StressConfig {
	t := l1agent.DefaultTrafficConfig()
	t.NumLines = 48

	return StressConfig{
		Seed:      1,
		Traffic:   t,
		MaxCycles: 10000000,
	}
}

// GenerateTraffic gives every agent a random script. It returns the number
// of operations that will produce a result, evictions excluded.
func (p *Platform) GenerateTraffic(cfg StressConfig) int {
	rng := rand.New(rand.NewSource(cfg.Seed))
	m := p.Cache.AddressMapping()
	total := 0

	for i, a := range p.Agents {
		t := cfg.Traffic
		t.AgentIndex = i
		t.NumAgents = len(p.Agents)

		ops := l1agent.RandomOps(rng, m, t)
		a.Enqueue(ops...)

		for _, op := range ops {
			if op.Kind != l1agent.OpEvict {
				total++
			}
		}
	}

	return total
}

// NumCompleted returns the number of operations the agents have finished.
func (p *Platform) NumCompleted() int {
	n := 0
	for _, a := range p.Agents {
		n += len(a.Results)
	}

	return n
}

// NumInFlight returns the number of agents waiting for a response.
func (p *Platform) NumInFlight() int {
	n := 0
	for _, a := range p.Agents {
		if a.Busy() {
			n++
		}
	}

	return n
}

// CheckTraffic checks a settled platform against the writes of the agents.
func (p *Platform) CheckTraffic() error {
	return p.CheckCoherence(l1agent.ExpectedWords(nil, p.Agents...))
}

// Stress gives every agent a random script, runs the platform until it
// settles and checks that the memory system is coherent.
func (p *Platform) Stress(cfg StressConfig) error {
	p.GenerateTraffic(cfg)

	if err := p.Run(cfg.MaxCycles); err != nil {
		return err
	}

	return p.CheckTraffic()
}
