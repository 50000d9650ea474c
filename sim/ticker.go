package sim

import (
	"errors"
	"fmt"
)

// ErrCycleLimit is returned when a run does not finish within the allowed
// number of cycles.
var ErrCycleLimit = errors.New("cycle limit reached")

// A Ticker is an object that updates states with ticks.
type Ticker interface {
	Tick() bool
}

// A Clock drives a set of components and connections with a single global
// tick. Every step ticks all components in registration order and then lets
// the connections deliver the messages sent during the step.
type Clock struct {
	Freq Freq

	components  []Ticker
	connections []Ticker
	cycle       uint64
}

// NewClock creates a clock that ticks at the given frequency.
func NewClock(freq Freq) *Clock {
	return &Clock{Freq: freq}
}

// RegisterComponent adds a component that ticks every cycle.
func (c *Clock) RegisterComponent(t Ticker) {
	c.components = append(c.components, t)
}

// RegisterConnection adds a connection that delivers messages every cycle.
func (c *Clock) RegisterConnection(conn Connection) {
	c.connections = append(c.connections, conn)
}

// Now returns the number of cycles that have been completed.
func (c *Clock) Now() uint64 {
	return c.cycle
}

// CurrentTime returns the virtual time of the current cycle.
func (c *Clock) CurrentTime() VTimeInSec {
	if c.Freq == 0 {
		return VTimeInSec(c.cycle)
	}

	return c.Freq.TimeAt(c.cycle)
}

// Step runs one cycle. It returns true if any component or connection made
// progress.
func (c *Clock) Step() bool {
	madeProgress := false

	for _, t := range c.components {
		madeProgress = t.Tick() || madeProgress
	}

	for _, t := range c.connections {
		madeProgress = t.Tick() || madeProgress
	}

	c.cycle++

	return madeProgress
}

// RunUntil steps the clock until done returns true. It gives up after
// maxCycles cycles.
func (c *Clock) RunUntil(done func() bool, maxCycles uint64) error {
	start := c.cycle

	for !done() {
		if c.cycle-start >= maxCycles {
			return fmt.Errorf("after %d cycles: %w", maxCycles, ErrCycleLimit)
		}

		c.Step()
	}

	return nil
}

// RunCycles steps the clock n times.
func (c *Clock) RunCycles(n uint64) {
	for i := uint64(0); i < n; i++ {
		c.Step()
	}
}
