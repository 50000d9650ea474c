// Package arbitration provides the fair mutual-exclusion scheduler that
// guards each shared resource of the memory cache.
package arbitration

import "log"

// RoundRobinArbiter grants a resource to one requester at a time. A grant is
// kept until the holder releases it. When the resource is free, the next
// requester after the previous holder, in construction order, wins.
type RoundRobinArbiter[T comparable] struct {
	name      string
	tags      []T
	index     map[T]int
	requested []bool
	holder    int
	last      int
	grants    []uint64
}

// NewRoundRobinArbiter creates an arbiter among the given requesters.
func NewRoundRobinArbiter[T comparable](
	name string,
	tags ...T,
) *RoundRobinArbiter[T] {
	if len(tags) == 0 {
		log.Panicf("arbiter %s needs at least one requester", name)
	}

	a := &RoundRobinArbiter[T]{
		name:      name,
		tags:      tags,
		index:     make(map[T]int, len(tags)),
		requested: make([]bool, len(tags)),
		holder:    -1,
		last:      len(tags) - 1,
		grants:    make([]uint64, len(tags)),
	}

	for i, t := range tags {
		if _, dup := a.index[t]; dup {
			log.Panicf("arbiter %s: duplicated requester %v", name, t)
		}

		a.index[t] = i
	}

	return a
}

// Name returns the name of the resource.
func (a *RoundRobinArbiter[T]) Name() string {
	return a.name
}

func (a *RoundRobinArbiter[T]) mustFind(tag T) int {
	i, found := a.index[tag]
	if !found {
		log.Panicf("arbiter %s: unknown requester %v", a.name, tag)
	}

	return i
}

// Request asks for the resource. The request stays pending until it is
// granted. Requesting a resource that is already held has no effect.
func (a *RoundRobinArbiter[T]) Request(tag T) {
	i := a.mustFind(tag)
	if a.holder == i {
		return
	}

	a.requested[i] = true
}

// Has tells if the tag is one of the requesters of the arbiter.
func (a *RoundRobinArbiter[T]) Has(tag T) bool {
	_, found := a.index[tag]
	return found
}

// Holds tells if the requester currently owns the resource.
func (a *RoundRobinArbiter[T]) Holds(tag T) bool {
	return a.holder == a.mustFind(tag)
}

// Acquire requests the resource and tells if it is already granted.
func (a *RoundRobinArbiter[T]) Acquire(tag T) bool {
	if a.Holds(tag) {
		return true
	}

	a.Request(tag)

	return false
}

// Release gives the resource back. Only the holder can release it.
func (a *RoundRobinArbiter[T]) Release(tag T) {
	i := a.mustFind(tag)
	if a.holder != i {
		log.Panicf("arbiter %s: %v releases without holding", a.name, tag)
	}

	a.holder = -1
}

// Holder returns the current owner of the resource.
func (a *RoundRobinArbiter[T]) Holder() (T, bool) {
	if a.holder < 0 {
		var zero T
		return zero, false
	}

	return a.tags[a.holder], true
}

// Arbitrate decides the holder for the next tick. It must be called once at
// the end of every tick.
func (a *RoundRobinArbiter[T]) Arbitrate() {
	if a.holder >= 0 {
		return
	}

	n := len(a.tags)
	for k := 1; k <= n; k++ {
		i := (a.last + k) % n
		if a.requested[i] {
			a.requested[i] = false
			a.holder = i
			a.last = i
			a.grants[i]++

			return
		}
	}
}

// Grants returns how many times the requester has been granted the resource.
func (a *RoundRobinArbiter[T]) Grants(tag T) uint64 {
	return a.grants[a.mustFind(tag)]
}
