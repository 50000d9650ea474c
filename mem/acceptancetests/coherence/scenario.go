package coherence

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/sarchlab/memcoherence/mem/acceptancetests/l1agent"
	"github.com/sarchlab/memcoherence/mem/memcache"
)

// ErrScenarioFailed is returned when a scenario observes an unexpected
// outcome.
var ErrScenarioFailed = errors.New("scenario failed")

// MaxCycles bounds every phase of a scenario.
const MaxCycles = 100000

// A Scenario is a short script with a known outcome.
type Scenario struct {
	Name  string
	Title string

	builder func() Builder
	run     func(p *Platform) error
}

// Execute builds a platform that logs messages and runs the scenario on it.
func (s Scenario) Execute() (*Platform, error) {
	p := s.builder().WithMsgLog(true).Build()
	err := s.run(p)

	return p, err
}

// Scenarios returns all the scenarios.
func Scenarios() []Scenario {
	return []Scenario{
		{
			Name:    "a",
			Title:   "cold read",
			builder: MakeBuilder,
			run:     runColdRead,
		},
		{
			Name:    "b",
			Title:   "shared read",
			builder: MakeBuilder,
			run:     runSharedRead,
		},
		{
			Name:    "c",
			Title:   "write with two sharers",
			builder: MakeBuilder,
			run:     runMultiUpdate,
		},
		{
			Name:    "d",
			Title:   "load-linked and store-conditional",
			builder: MakeBuilder,
			run:     runLLSC,
		},
		{
			Name:    "e",
			Title:   "eviction of a dirty shared line",
			builder: directMappedBuilder,
			run:     runDirtyEviction,
		},
	}
}

// LookupScenario finds a scenario by name.
func LookupScenario(name string) (Scenario, bool) {
	for _, s := range Scenarios() {
		if s.Name == name {
			return s, true
		}
	}

	return Scenario{}, false
}

func directMappedBuilder() Builder {
	return MakeBuilder().WithCacheBuilder(memcache.MakeBuilder().
		WithNumSets(4).
		WithNumWays(1).
		WithWordsPerLine(4).
		WithHeapSize(8))
}

// phase gives each agent its ops and runs until everything settles.
func (p *Platform) phase(ops map[int][]l1agent.Op) error {
	for i, o := range ops {
		p.Agents[i].Enqueue(o...)
	}

	return p.Run(MaxCycles)
}

func read(addr uint64) l1agent.Op {
	return l1agent.Op{Kind: l1agent.OpRead, Address: addr}
}

func write(addr uint64, data uint32) l1agent.Op {
	return l1agent.Op{
		Kind:    l1agent.OpWrite,
		Address: addr,
		Data:    []uint32{data},
	}
}

type checker struct {
	errs []error
}

func (c *checker) equal(what string, got, want any) {
	if !reflect.DeepEqual(got, want) {
		c.errs = append(c.errs, fmt.Errorf("%s is %v, want %v: %w",
			what, got, want, ErrScenarioFailed))
	}
}

func (c *checker) that(what string, ok bool) {
	if !ok {
		c.errs = append(c.errs, fmt.Errorf("%s: %w", what, ErrScenarioFailed))
	}
}

func (c *checker) err() error {
	return errors.Join(c.errs...)
}

func lastResult(a *l1agent.Agent) l1agent.Result {
	if len(a.Results) == 0 {
		return l1agent.Result{}
	}

	return a.Results[len(a.Results)-1]
}

func (p *Platform) preload(addr uint64, words ...uint32) error {
	return p.Xram.Storage.WriteWords(addr, words)
}

func runColdRead(p *Platform) error {
	if err := p.preload(0x40, 0xA0, 0xA1, 0xA2, 0xA3); err != nil {
		return err
	}

	if err := p.phase(map[int][]l1agent.Op{0: {read(0x44)}}); err != nil {
		return err
	}

	c := &checker{}
	s, held := p.Cache.Line(4)

	c.that("line is installed", held)
	c.equal("read misses", p.Cache.Stats().ReadMisses, uint64(1))
	c.equal("memory reads", p.Log.Count("XramReadReq"), 1)
	c.equal("sharers", s.Sharers, []uint32{0})
	c.equal("copy count", s.Count, 1)
	c.equal("data read", lastResult(p.Agents[0]).Data, []uint32{0xA1})
	c.equal("copy", p.Agents[0].Copies()[4].Data,
		[]uint32{0xA0, 0xA1, 0xA2, 0xA3})

	return c.err()
}

func runSharedRead(p *Platform) error {
	if err := p.preload(0x40, 0xB0, 0xB1, 0xB2, 0xB3); err != nil {
		return err
	}

	if err := p.phase(map[int][]l1agent.Op{0: {read(0x40)}}); err != nil {
		return err
	}

	if err := p.phase(map[int][]l1agent.Op{1: {read(0x48)}}); err != nil {
		return err
	}

	c := &checker{}
	s, _ := p.Cache.Line(4)

	c.equal("memory reads", p.Log.Count("XramReadReq"), 1)
	c.equal("read hits", p.Cache.Stats().ReadHits, uint64(1))
	c.equal("copy count", s.Count, 2)
	c.equal("sharers", s.Sharers, []uint32{0, 1})
	c.equal("data read", lastResult(p.Agents[1]).Data, []uint32{0xB2})

	return c.err()
}

func runMultiUpdate(p *Platform) error {
	readers := map[int][]l1agent.Op{1: {read(0x40)}, 2: {read(0x40)}}
	if err := p.phase(readers); err != nil {
		return err
	}

	if err := p.phase(map[int][]l1agent.Op{0: {write(0x44, 0x77)}}); err != nil {
		return err
	}

	c := &checker{}

	updates := p.Log.Filter("UpdateReq")
	acks := p.Log.Filter("CoherenceAck")
	done, sent := p.Log.Last("WriteDoneRsp")

	c.equal("updates sent", len(updates), 2)
	c.equal("acks received", len(acks), 2)
	c.that("write is acknowledged", sent)

	for _, a := range acks {
		c.that(fmt.Sprintf("ack at cycle %d precedes the write ack at %d",
			a.Cycle, done.Cycle), a.Cycle < done.Cycle)
	}

	for _, i := range []int{1, 2} {
		c.equal(fmt.Sprintf("word 1 held by agent %d", i),
			p.Agents[i].Copies()[4].Data[1], uint32(0x77))
	}

	c.equal("pending acks", p.Cache.PendingAcks(), 0)

	return c.err()
}

func runLLSC(p *Platform) error {
	ll := l1agent.Op{Kind: l1agent.OpLL, Address: 0x80}
	sc := func(v uint32) l1agent.Op {
		return l1agent.Op{Kind: l1agent.OpSC, Address: 0x80, Data: []uint32{v}}
	}

	phases := []map[int][]l1agent.Op{
		{0: {ll}},
		{0: {sc(5)}},
	}

	for _, ph := range phases {
		if err := p.phase(ph); err != nil {
			return err
		}
	}

	c := &checker{}
	c.equal("first SC code", lastResult(p.Agents[0]).Code, uint32(0))

	phases = []map[int][]l1agent.Op{
		{0: {ll}},
		{1: {write(0x84, 9)}},
		{0: {sc(6)}},
	}

	for _, ph := range phases {
		if err := p.phase(ph); err != nil {
			return err
		}
	}

	c.equal("second SC code", lastResult(p.Agents[0]).Code, uint32(1))

	w, err := p.Word(0x80)
	if err != nil {
		return err
	}

	c.equal("reserved word", w, uint32(5))
	c.equal("failed SCs", p.Cache.Stats().SCFailures, uint64(1))

	return c.err()
}

func runDirtyEviction(p *Platform) error {
	phases := []map[int][]l1agent.Op{
		{1: {read(0x00)}, 2: {read(0x00)}},
		{0: {write(0x04, 0xEE)}},
		{0: {read(0x40)}},
	}

	for _, ph := range phases {
		if err := p.phase(ph); err != nil {
			return err
		}
	}

	c := &checker{}
	stats := p.Cache.Stats()

	c.equal("evictions", stats.Evictions, uint64(1))
	c.equal("write-backs", stats.WriteBacks, uint64(1))

	invals := p.Log.Filter("InvalidateReq")
	cleanups := p.Log.Filter("CleanupReq")
	wb, wrote := p.Log.Last("XramWriteReq")
	fill, filled := p.Log.Last("DataReadyRsp")

	c.equal("invalidations", len(invals), 2)
	c.equal("cleanups", len(cleanups), 2)
	c.that("dirty line is written back", wrote)
	c.that("miss is answered", filled)
	c.that("write-back precedes the fill", wb.Cycle < fill.Cycle)

	for _, r := range append(invals, cleanups...) {
		c.that(fmt.Sprintf("%s at cycle %d precedes the fill at %d",
			r.Kind, r.Cycle, fill.Cycle), r.Cycle < fill.Cycle)
	}

	stored, err := p.Xram.Storage.ReadWords(0x04, 1)
	if err != nil {
		return err
	}

	c.equal("written-back word", stored[0], uint32(0xEE))

	for _, i := range []int{1, 2} {
		_, held := p.Agents[i].Copies()[0]
		c.that(fmt.Sprintf("agent %d dropped the victim", i), !held)
	}

	s, held := p.Cache.Line(4)
	c.that("new line is installed", held)
	c.equal("new line sharers", s.Sharers, []uint32{0})

	return c.err()
}
