package idealxram

import (
	"github.com/sarchlab/memcoherence/mem/storage"
	"github.com/sarchlab/memcoherence/sim"
)

// Builder builds ideal external memories.
type Builder struct {
	width      int
	latency    int
	capacity   uint64
	topBufSize int
	storage    *storage.Storage
}

// MakeBuilder returns a new Builder
func MakeBuilder() Builder {
	return Builder{
		width:      1,
		latency:    20,
		capacity:   1 << 32,
		topBufSize: 16,
	}
}

// WithWidth sets the number of requests accepted per cycle.
func (b Builder) WithWidth(width int) Builder {
	b.width = width
	return b
}

// WithLatency sets the number of cycles before a request is answered.
func (b Builder) WithLatency(latency int) Builder {
	b.latency = latency
	return b
}

// WithNewStorage sets the capacity of a storage created by Build.
func (b Builder) WithNewStorage(capacity uint64) Builder {
	b.capacity = capacity
	return b
}

// WithStorage sets the storage of the memory.
func (b Builder) WithStorage(s *storage.Storage) Builder {
	b.storage = s
	return b
}

// WithTopBufSize sets the size of the port buffers.
func (b Builder) WithTopBufSize(n int) Builder {
	b.topBufSize = n
	return b
}

// Build builds a new Comp
func (b Builder) Build(name string) *Comp {
	c := &Comp{
		ComponentBase: sim.NewComponentBase(name),
		Latency:       b.latency,
		width:         b.width,
		Storage:       b.storage,
	}

	if c.Storage == nil {
		c.Storage = storage.New(b.capacity)
	}

	c.topPort = sim.NewPort(b.topBufSize, b.topBufSize, name+".TopPort")
	c.AddPort("Top", c.topPort)

	return c
}
