package sim

// HookPos names a point in the code where hooks are invoked.
type HookPos struct {
	Name string
}

// HookCtx describes one invocation. Item is what the hook is about, a
// message for the port positions and a task for the tracing positions.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   any
	Detail any
}

// Hookable is implemented by everything hooks can be attached to.
type Hookable interface {
	AcceptHook(hook Hook)
	NumHooks() int
	Hooks() []Hook
}

// A Hook observes a hookable. It must not modify the simulation state.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc turns a function into a Hook.
type HookFunc func(ctx HookCtx)

func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// HookableBase keeps the hooks of a hookable in registration order. It is
// meant to be embedded.
type HookableBase struct {
	hooks []Hook
}

func (h *HookableBase) AcceptHook(hook Hook) {
	h.hooks = append(h.hooks, hook)
}

func (h *HookableBase) NumHooks() int {
	return len(h.hooks)
}

func (h *HookableBase) Hooks() []Hook {
	return h.hooks
}

// InvokeHook calls every hook in registration order.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hooks {
		hook.Func(ctx)
	}
}
