// Package monitoring serves the state of a running simulation over HTTP.
package monitoring

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"reflect"
	"strconv"
	"sync"
	"time"
	"unsafe"

	"github.com/sarchlab/memcoherence/sim"
)

// A Snapshotter is a component that can describe its state better than its
// fields do.
type Snapshotter interface {
	Snapshot() any
}

// Monitor serves a simulation over HTTP while it runs and lets the user
// pause it. The simulation must be driven through RunUntil so that the
// requests never observe a half stepped cycle.
type Monitor struct {
	clock      *sim.Clock
	components []sim.Component
	buffers    []sim.Buffer
	portNumber int

	simLock sync.Mutex
	paused  bool
	resumed *sync.Cond

	barsLock sync.Mutex
	bars     []*ProgressBar
}

// NewMonitor creates a Monitor that listens on a random port.
func NewMonitor() *Monitor {
	m := &Monitor{bars: []*ProgressBar{}}
	m.resumed = sync.NewCond(&m.simLock)

	return m
}

// WithPortNumber picks the port of the server. Ports below 1000 are
// refused and replaced by a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"monitor port %d is reserved, using a random port\n", portNumber)

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterClock registers the clock that drives the simulation.
func (m *Monitor) RegisterClock(c *sim.Clock) {
	m.clock = c
}

// RegisterComponent makes a component and the buffers of the component and
// of its ports visible to the server.
func (m *Monitor) RegisterComponent(c sim.Component) {
	m.components = append(m.components, c)

	m.buffers = append(m.buffers, buffersOf(c)...)
	for _, p := range c.Ports() {
		m.buffers = append(m.buffers, buffersOf(p)...)
	}
}

var bufferType = reflect.TypeOf((*sim.Buffer)(nil)).Elem()

// buffersOf finds the sim.Buffer fields of a struct pointer, exported or
// not.
func buffersOf(owner any) []sim.Buffer {
	v := reflect.ValueOf(owner)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return nil
	}

	v = v.Elem()

	var found []sim.Buffer

	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)
		if f.Type() != bufferType || f.IsNil() {
			continue
		}

		b := reflect.NewAt(f.Type(), unsafe.Pointer(f.UnsafeAddr())).
			Elem().Interface().(sim.Buffer)
		found = append(found, b)
	}

	return found
}

// CreateProgressBar adds a bar to the ones the server reports.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        sim.GetIDGenerator().Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.barsLock.Lock()
	m.bars = append(m.bars, bar)
	m.barsLock.Unlock()

	return bar
}

// CompleteProgressBar stops reporting a bar.
func (m *Monitor) CompleteProgressBar(bar *ProgressBar) {
	m.barsLock.Lock()
	defer m.barsLock.Unlock()

	kept := m.bars[:0]
	for _, b := range m.bars {
		if b != bar {
			kept = append(kept, b)
		}
	}

	m.bars = kept
}

// RunUntil steps the registered clock until done returns true, like
// sim.Clock.RunUntil. The requests of the server are served between two
// cycles, and the run blocks while the monitor is paused.
func (m *Monitor) RunUntil(done func() bool, maxCycles uint64) error {
	m.simLock.Lock()
	start := m.clock.Now()
	m.simLock.Unlock()

	for {
		m.simLock.Lock()

		for m.paused {
			m.resumed.Wait()
		}

		if done() {
			m.simLock.Unlock()
			return nil
		}

		if m.clock.Now()-start >= maxCycles {
			m.simLock.Unlock()
			return fmt.Errorf("after %d cycles: %w", maxCycles, sim.ErrCycleLimit)
		}

		m.clock.Step()
		m.simLock.Unlock()
	}
}

// StartServer serves the monitor in the background and returns its URL.
func (m *Monitor) StartServer() string {
	addr := ":0"
	if m.portNumber != 0 {
		addr = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Panic(err)
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	go func() {
		if err := http.Serve(listener, m.router()); err != nil {
			log.Panic(err)
		}
	}()

	return url
}
