package tracing

import (
	"fmt"

	"github.com/sarchlab/memcoherence/sim"
)

// A Tracer is told about the tasks of the domains it collects from. It sees
// a task only at its start, at each step and at its end.
type Tracer interface {
	StartTask(task Task)
	StepTask(task Task)
	EndTask(task Task)
}

// CollectTrace attaches a tracer to a domain. Attaching the same tracer to
// the same domain twice panics, since every task would be counted twice.
func CollectTrace(domain NamedHookable, tracer Tracer) {
	for _, h := range domain.Hooks() {
		if th, ok := h.(*traceHook); ok && th.tracer == tracer {
			panic(fmt.Sprintf("%T already collects the trace of %s",
				tracer, domain.Name()))
		}
	}

	domain.AcceptHook(&traceHook{tracer: tracer})
}

// traceHook forwards the task events of a domain to a tracer and ignores
// every other hook position.
type traceHook struct {
	tracer Tracer
}

func (h *traceHook) Func(ctx sim.HookCtx) {
	task, ok := ctx.Item.(Task)
	if !ok {
		return
	}

	switch ctx.Pos {
	case HookPosTaskStart:
		h.tracer.StartTask(task)
	case HookPosTaskStep:
		h.tracer.StepTask(task)
	case HookPosTaskEnd:
		h.tracer.EndTask(task)
	}
}
