package sim

import (
	"log"
	"math"
)

// VTimeInSec is a simulated time in seconds.
type VTimeInSec float64

// Freq is a clock frequency in Hz.
type Freq float64

// Frequency units.
const (
	Hz  Freq = 1
	KHz Freq = 1e3
	MHz Freq = 1e6
	GHz Freq = 1e9
)

// Period is the duration of one cycle.
func (f Freq) Period() VTimeInSec {
	if f == 0 {
		log.Panic("frequency must not be 0")
	}

	return VTimeInSec(1 / float64(f))
}

// Cycle returns the cycle a time falls on, rounding to the nearest cycle so
// that Cycle(TimeAt(n)) is n despite floating point error.
func (f Freq) Cycle(t VTimeInSec) uint64 {
	return uint64(math.Round(float64(t) * float64(f)))
}

// TimeAt returns the start time of a cycle.
func (f Freq) TimeAt(cycle uint64) VTimeInSec {
	return VTimeInSec(float64(cycle) / float64(f))
}

// A TimeTeller reports the current simulated time.
type TimeTeller interface {
	CurrentTime() VTimeInSec
}
