package sim

import (
	"log"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
)

// IDGenerator hands out the IDs of messages and tasks.
type IDGenerator interface {
	Generate() string
}

var idGen struct {
	sync.Mutex
	IDGenerator
}

// UseSequentialIDGenerator makes the IDs the decimal numbers 1, 2, 3 and so
// on, which keeps runs reproducible. It is the default.
func UseSequentialIDGenerator() {
	setIDGenerator(&sequentialIDGenerator{})
}

// UseParallelIDGenerator makes the IDs globally unique xids. They differ
// between runs.
func UseParallelIDGenerator() {
	setIDGenerator(xidGenerator{})
}

// The generator can only be chosen before the first ID is generated.
func setIDGenerator(g IDGenerator) {
	idGen.Lock()
	defer idGen.Unlock()

	if idGen.IDGenerator != nil {
		log.Panic("the ID generator is already in use")
	}

	idGen.IDGenerator = g
}

// GetIDGenerator returns the generator of the process.
func GetIDGenerator() IDGenerator {
	idGen.Lock()
	defer idGen.Unlock()

	if idGen.IDGenerator == nil {
		idGen.IDGenerator = &sequentialIDGenerator{}
	}

	return idGen.IDGenerator
}

type sequentialIDGenerator struct {
	last atomic.Uint64
}

func (g *sequentialIDGenerator) Generate() string {
	return strconv.FormatUint(g.last.Add(1), 10)
}

type xidGenerator struct{}

func (xidGenerator) Generate() string {
	return xid.New().String()
}
