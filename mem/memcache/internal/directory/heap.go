package directory

import (
	"errors"
	"log"
)

// ErrHeapFull is returned when the heap has no free entry left.
var ErrHeapFull = errors.New("heap is full")

// A HeapEntry holds one sharer of a line and the index of the next sharer.
// The last entry of a chain points to itself.
type HeapEntry struct {
	Owner Owner
	Next  int
}

// A Heap is a fixed-capacity arena of sharer chains. The free entries form a
// chain that starts at nextFree. When full is set, no entry is free and
// nextFree is meaningless.
type Heap struct {
	entries  []HeapEntry
	nextFree int
	full     bool
	numFree  int
}

// NewHeap creates a heap with all the entries free.
func NewHeap(size int) *Heap {
	h := &Heap{
		entries: make([]HeapEntry, size),
	}

	for i := range h.entries {
		h.entries[i].Next = i + 1
	}

	if size == 0 {
		h.full = true
		return h
	}

	h.entries[size-1].Next = size - 1
	h.numFree = size

	return h
}

// Size returns the capacity of the heap.
func (h *Heap) Size() int {
	return len(h.entries)
}

// Full tells if there is no free entry.
func (h *Heap) Full() bool {
	return h.full
}

// FreeCount returns the number of free entries.
func (h *Heap) FreeCount() int {
	return h.numFree
}

// Read returns a heap entry.
func (h *Heap) Read(index int) HeapEntry {
	h.mustBeInRange(index)
	return h.entries[index]
}

func (h *Heap) mustBeInRange(index int) {
	if index < 0 || index >= len(h.entries) {
		log.Panicf("heap index %d out of range", index)
	}
}

// AllocHead takes a free entry for the owner and puts it in front of the
// chain that starts at head. It returns the new head of the chain.
func (h *Heap) AllocHead(head int, owner Owner) (int, error) {
	if h.full {
		return NoHeap, ErrHeapFull
	}

	index := h.nextFree
	next := h.entries[index].Next

	if next == index {
		h.full = true
	} else {
		h.nextFree = next
	}

	h.numFree--

	h.entries[index].Owner = owner
	if head == NoHeap {
		h.entries[index].Next = index
	} else {
		h.entries[index].Next = head
	}

	return index, nil
}

func (h *Heap) free(index int) {
	h.mustBeInRange(index)

	if h.full {
		h.entries[index].Next = index
	} else {
		h.entries[index].Next = h.nextFree
	}

	h.entries[index].Owner = Owner{}
	h.nextFree = index
	h.full = false
	h.numFree++
}

// Chain returns the owners on the chain that starts at head.
func (h *Heap) Chain(head int) []Owner {
	var owners []Owner

	h.walk(head, func(_ int, e HeapEntry) {
		owners = append(owners, e.Owner)
	})

	return owners
}

// ChainLen returns the number of entries on the chain that starts at head.
func (h *Heap) ChainLen(head int) int {
	n := 0

	h.walk(head, func(int, HeapEntry) { n++ })

	return n
}

func (h *Heap) walk(head int, f func(index int, e HeapEntry)) {
	if head == NoHeap {
		return
	}

	cur := head

	for steps := 0; ; steps++ {
		if steps >= len(h.entries) {
			log.Panicf("heap chain starting at %d does not terminate", head)
		}

		e := h.Read(cur)
		f(cur, e)

		if e.Next == cur {
			return
		}

		cur = e.Next
	}
}

// FreeChain gives all the entries on the chain back to the free list.
func (h *Heap) FreeChain(head int) {
	var indexes []int

	h.walk(head, func(i int, _ HeapEntry) {
		indexes = append(indexes, i)
	})

	for _, i := range indexes {
		h.free(i)
	}
}

// Remove deletes one copy held by the owner from the entry. If the owner is
// the directory-level owner, the head of the chain takes its place. If the
// owner is on the chain, it is spliced out. In counter mode, the count is
// decremented since the identities are unknown. Remove reports whether a copy
// was removed.
func (h *Heap) Remove(e *Entry, owner Owner) bool {
	if !e.Valid || e.Count == 0 {
		return false
	}

	if e.CounterMode {
		e.Count--
		if e.Count == 0 {
			e.CounterMode = false
			e.Instruction = false
		}

		return true
	}

	var removed bool
	if e.Owner == owner {
		h.promoteHead(e)
		removed = true
	} else {
		removed = h.spliceOut(e, owner)
	}

	if removed {
		e.Count--
		e.Instruction = h.hasInstructionCopy(*e)
	}

	return removed
}

func (h *Heap) promoteHead(e *Entry) {
	if e.HeapHead == NoHeap {
		e.Owner = Owner{}
		return
	}

	head := h.Read(e.HeapHead)
	e.Owner = head.Owner

	old := e.HeapHead
	if head.Next == old {
		e.HeapHead = NoHeap
	} else {
		e.HeapHead = head.Next
	}

	h.free(old)
}

func (h *Heap) spliceOut(e *Entry, owner Owner) bool {
	prev := NoHeap
	cur := e.HeapHead

	for cur != NoHeap {
		entry := h.Read(cur)
		last := entry.Next == cur

		if entry.Owner == owner {
			switch {
			case prev == NoHeap && last:
				e.HeapHead = NoHeap
			case prev == NoHeap:
				e.HeapHead = entry.Next
			case last:
				h.entries[prev].Next = prev
			default:
				h.entries[prev].Next = entry.Next
			}

			h.free(cur)

			return true
		}

		if last {
			break
		}

		prev = cur
		cur = entry.Next
	}

	return false
}

func (h *Heap) hasInstructionCopy(e Entry) bool {
	if e.Count == 0 {
		return false
	}

	if e.Owner.Instruction {
		return true
	}

	for _, o := range h.Chain(e.HeapHead) {
		if o.Instruction {
			return true
		}
	}

	return false
}
