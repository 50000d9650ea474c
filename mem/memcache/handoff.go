package memcache

import "log"

// A handoff is a bounded FIFO between two engines. Items pushed during a tick
// become visible to the consumer only after the tick is committed, and room
// freed by the consumer can only be reused in the next tick. The order in
// which the engines are evaluated within a tick is thus never observable.
type handoff[T any] struct {
	capacity int
	items    []T
	staged   []T
	startLen int
}

func newHandoff[T any](capacity int) *handoff[T] {
	return &handoff[T]{capacity: capacity}
}

// CanPush tells if the producer can push in this tick.
func (h *handoff[T]) CanPush() bool {
	return h.startLen+len(h.staged) < h.capacity
}

// Push stages an item for the next tick.
func (h *handoff[T]) Push(v T) {
	if !h.CanPush() {
		log.Panicf("handoff overflow, capacity %d", h.capacity)
	}

	h.staged = append(h.staged, v)
}

// Peek returns the oldest visible item.
func (h *handoff[T]) Peek() (T, bool) {
	if len(h.items) == 0 {
		var zero T
		return zero, false
	}

	return h.items[0], true
}

// Pop removes the oldest visible item.
func (h *handoff[T]) Pop() (T, bool) {
	v, ok := h.Peek()
	if ok {
		var zero T
		h.items[0] = zero
		h.items = h.items[1:]
	}

	return v, ok
}

// Len returns the number of visible items.
func (h *handoff[T]) Len() int {
	return len(h.items)
}

// Empty tells if nothing is visible or staged.
func (h *handoff[T]) Empty() bool {
	return len(h.items) == 0 && len(h.staged) == 0
}

func (h *handoff[T]) commit() {
	h.items = append(h.items, h.staged...)
	h.staged = h.staged[:0]
	h.startLen = len(h.items)
}

type committer interface {
	commit()
	Empty() bool
}
