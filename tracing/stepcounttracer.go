package tracing

import (
	"sync"
)

type stepStat struct {
	steps uint64
	tasks uint64
}

// StepCountTracer counts the steps the filtered tasks go through. A step is
// counted every time it is reported, but a task that reports the same step
// several times is counted once in the task count of that step.
type StepCountTracer struct {
	sync.Mutex

	filter   TaskFilter
	seen     map[string]map[string]bool
	order    []string
	stepStat map[string]*stepStat
}

// NewStepCountTracer creates a StepCountTracer.
func NewStepCountTracer(filter TaskFilter) *StepCountTracer {
	return &StepCountTracer{
		filter:   filter,
		seen:     make(map[string]map[string]bool),
		stepStat: make(map[string]*stepStat),
	}
}

// GetStepNames returns the step names in the order they first appeared.
func (t *StepCountTracer) GetStepNames() []string {
	t.Lock()
	defer t.Unlock()

	return append([]string(nil), t.order...)
}

// GetStepCount returns how many times a step was reported.
func (t *StepCountTracer) GetStepCount(stepName string) uint64 {
	t.Lock()
	defer t.Unlock()

	if s, ok := t.stepStat[stepName]; ok {
		return s.steps
	}

	return 0
}

// GetTaskCount returns how many tasks reported a step at least once.
func (t *StepCountTracer) GetTaskCount(stepName string) uint64 {
	t.Lock()
	defer t.Unlock()

	if s, ok := t.stepStat[stepName]; ok {
		return s.tasks
	}

	return 0
}

func (t *StepCountTracer) StartTask(task Task) {
	if !t.filter(task) {
		return
	}

	t.Lock()
	t.seen[task.ID] = make(map[string]bool)
	t.Unlock()
}

func (t *StepCountTracer) StepTask(task Task) {
	t.Lock()
	defer t.Unlock()

	seen, ok := t.seen[task.ID]
	if !ok {
		return
	}

	for _, step := range task.Steps {
		s, ok := t.stepStat[step.What]
		if !ok {
			s = &stepStat{}
			t.stepStat[step.What] = s
			t.order = append(t.order, step.What)
		}

		s.steps++

		if !seen[step.What] {
			seen[step.What] = true
			s.tasks++
		}
	}
}

func (t *StepCountTracer) EndTask(task Task) {
	t.Lock()
	delete(t.seen, task.ID)
	t.Unlock()
}
