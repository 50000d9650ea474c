package l1agent

import (
	"math/rand"

	"github.com/sarchlab/memcoherence/mem/vci"
)

// TrafficConfig describes a random script.
//
// Agents share the lines but not the words they store to. The words of the
// region are dealt out to the agents in turn, so every word has one owner.
// Reads, LLs and evictions go anywhere in the region.
type TrafficConfig struct {
	NumOps      int
	BaseAddress uint64
	NumLines    int
	AgentIndex  int
	NumAgents   int

	// Weights of the operation kinds. A zero weight disables the kind.
	ReadWeight   int
	WriteWeight  int
	LLSCWeight   int
	EvictWeight  int
	UncachedRate float64
}

// DefaultTrafficConfig returns a read-heavy mix.
func DefaultTrafficConfig() TrafficConfig {
	return TrafficConfig{
		NumOps:       200,
		NumLines:     8,
		NumAgents:    1,
		ReadWeight:   5,
		WriteWeight:  3,
		LLSCWeight:   1,
		EvictWeight:  1,
		UncachedRate: 0.1,
	}
}

// OwnsWord tells if the agent of the given index may store to the word.
func OwnsWord(cfg TrafficConfig, addr uint64) bool {
	index := (addr - cfg.BaseAddress) / vci.WordBytes

	return int(index%uint64(cfg.NumAgents)) == cfg.AgentIndex
}

// RandomOps generates a script. An LL/SC weight generates an LL followed by
// an SC on the same word.
func RandomOps(rng *rand.Rand, m vci.AddressMapping, cfg TrafficConfig) []Op {
	total := cfg.ReadWeight + cfg.WriteWeight + cfg.LLSCWeight + cfg.EvictWeight
	if total == 0 {
		return nil
	}

	numWords := cfg.NumLines * m.WordsPerLine
	ops := make([]Op, 0, cfg.NumOps)

	anyWord := func() uint64 {
		return cfg.BaseAddress + uint64(rng.Intn(numWords))*vci.WordBytes
	}

	ownedWord := func() (uint64, bool) {
		owned := (numWords - cfg.AgentIndex + cfg.NumAgents - 1) / cfg.NumAgents
		if owned <= 0 {
			return 0, false
		}

		index := cfg.AgentIndex + rng.Intn(owned)*cfg.NumAgents

		return cfg.BaseAddress + uint64(index)*vci.WordBytes, true
	}

	for len(ops) < cfg.NumOps {
		pick := rng.Intn(total)

		switch {
		case pick < cfg.ReadWeight:
			ops = append(ops, randomRead(rng, cfg, anyWord()))
		case pick < cfg.ReadWeight+cfg.WriteWeight:
			addr, ok := ownedWord()
			if !ok {
				continue
			}

			ops = append(ops, Op{
				Kind:        OpWrite,
				Address:     addr,
				Data:        []uint32{rng.Uint32()},
				ByteEnables: []uint8{randomByteEnable(rng)},
			})
		case pick < cfg.ReadWeight+cfg.WriteWeight+cfg.LLSCWeight:
			addr, ok := ownedWord()
			if !ok {
				continue
			}

			ops = append(ops,
				Op{Kind: OpLL, Address: addr},
				Op{Kind: OpSC, Address: addr, Data: []uint32{rng.Uint32()}},
			)
		default:
			ops = append(ops, Op{Kind: OpEvict, Address: anyWord()})
		}
	}

	return ops[:cfg.NumOps]
}

func randomRead(rng *rand.Rand, cfg TrafficConfig, addr uint64) Op {
	if rng.Float64() < cfg.UncachedRate {
		return Op{Kind: OpReadUncached, Address: addr}
	}

	if rng.Intn(4) == 0 {
		return Op{Kind: OpReadInstruction, Address: addr}
	}

	return Op{Kind: OpRead, Address: addr}
}

func randomByteEnable(rng *rand.Rand) uint8 {
	if rng.Intn(2) == 0 {
		return 0xF
	}

	return uint8(rng.Intn(15) + 1)
}

// ExpectedWords replays the stores of finished scripts. It returns the
// value each stored word must hold once everything has quiesced. Words
// start at the given initial content, which reads as zero when absent.
func ExpectedWords(
	initial map[uint64]uint32,
	agents ...*Agent,
) map[uint64]uint32 {
	words := make(map[uint64]uint32, len(initial))
	for addr, w := range initial {
		words[addr] = w
	}

	for _, a := range agents {
		for _, r := range a.Results {
			switch r.Op.Kind {
			case OpWrite:
				for i, d := range r.Op.Data {
					addr := r.Op.Address + uint64(i)*vci.WordBytes
					words[addr] = vci.MergeWord(words[addr], d, r.Op.byteEnable(i))
				}
			case OpSC:
				if r.Code == vci.SCSuccess {
					words[r.Op.Address] = r.Op.Data[0]
				}
			}
		}
	}

	return words
}

func (op Op) byteEnable(i int) uint8 {
	if op.ByteEnables == nil {
		return 0xF
	}

	return op.ByteEnables[i]
}
