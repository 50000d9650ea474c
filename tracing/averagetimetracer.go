package tracing

import (
	"sync"

	"github.com/sarchlab/memcoherence/sim"
)

// AverageTimeTracer measures how long the tasks that pass its filter take.
type AverageTimeTracer struct {
	sync.Mutex

	timeTeller sim.TimeTeller
	filter     TaskFilter
	startedAt  map[string]sim.VTimeInSec

	count uint64
	total sim.VTimeInSec
	max   sim.VTimeInSec
}

// NewAverageTimeTracer creates an AverageTimeTracer that reads the time from
// the time teller.
func NewAverageTimeTracer(
	timeTeller sim.TimeTeller,
	filter TaskFilter,
) *AverageTimeTracer {
	return &AverageTimeTracer{
		timeTeller: timeTeller,
		filter:     filter,
		startedAt:  make(map[string]sim.VTimeInSec),
	}
}

// AverageTime returns the mean duration of the ended tasks, 0 if none ended.
func (t *AverageTimeTracer) AverageTime() sim.VTimeInSec {
	t.Lock()
	defer t.Unlock()

	if t.count == 0 {
		return 0
	}

	return t.total / sim.VTimeInSec(t.count)
}

// MaxTime returns the longest duration of a single task.
func (t *AverageTimeTracer) MaxTime() sim.VTimeInSec {
	t.Lock()
	defer t.Unlock()

	return t.max
}

// TotalCount returns the number of ended tasks.
func (t *AverageTimeTracer) TotalCount() uint64 {
	t.Lock()
	defer t.Unlock()

	return t.count
}

func (t *AverageTimeTracer) StartTask(task Task) {
	if !t.filter(task) {
		return
	}

	now := t.timeTeller.CurrentTime()

	t.Lock()
	t.startedAt[task.ID] = now
	t.Unlock()
}

func (t *AverageTimeTracer) StepTask(_ Task) {}

func (t *AverageTimeTracer) EndTask(task Task) {
	now := t.timeTeller.CurrentTime()

	t.Lock()
	defer t.Unlock()

	start, ok := t.startedAt[task.ID]
	if !ok {
		return
	}

	delete(t.startedAt, task.ID)

	d := now - start
	t.count++
	t.total += d

	if d > t.max {
		t.max = d
	}
}
