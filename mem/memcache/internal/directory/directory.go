// Package directory provides the coherence directory of the memory cache, the
// heap that stores the sharers that do not fit in a directory entry, and the
// data array that holds the cached lines.
package directory

import "log"

// NoHeap marks a directory entry without a heap chain.
const NoHeap = -1

// An Owner is an L1 cache that holds a copy of a line.
type Owner struct {
	SrcID       uint32
	Instruction bool
}

// An Entry is the coherence state of one cached line.
//
// When CounterMode is false, the first copy is stored in Owner and all the
// other copies are stored in the heap chain starting at HeapHead, so that
// Count equals 1 plus the length of the chain as long as Count > 0. When
// CounterMode is true, only Count is meaningful.
type Entry struct {
	Valid       bool
	Dirty       bool
	Locked      bool
	CounterMode bool
	Instruction bool
	Tag         uint64
	Count       int
	Owner       Owner
	HeapHead    int
}

// HasOwner tells if the directory-level owner slot is occupied.
func (e Entry) HasOwner() bool {
	return e.Valid && !e.CounterMode && e.Count > 0
}

// HasChain tells if the entry points into the heap.
func (e Entry) HasChain() bool {
	return e.HeapHead != NoHeap
}

// InvalidEntry returns an entry that is not valid.
func InvalidEntry() Entry {
	return Entry{HeapHead: NoHeap}
}

// A Directory is a set-associative array of entries. Each way has a recency
// bit that drives a clock-like replacement policy.
type Directory struct {
	numSets int
	numWays int
	entries []Entry
	recent  []bool
}

// NewDirectory creates a directory with all entries invalid.
func NewDirectory(numSets, numWays int) *Directory {
	if numSets <= 0 || numWays <= 0 {
		log.Panicf("invalid directory geometry %d sets x %d ways",
			numSets, numWays)
	}

	d := &Directory{
		numSets: numSets,
		numWays: numWays,
		entries: make([]Entry, numSets*numWays),
		recent:  make([]bool, numSets*numWays),
	}

	for i := range d.entries {
		d.entries[i] = InvalidEntry()
	}

	return d
}

// NumSets returns the number of sets.
func (d *Directory) NumSets() int {
	return d.numSets
}

// NumWays returns the number of ways.
func (d *Directory) NumWays() int {
	return d.numWays
}

func (d *Directory) index(set, way int) int {
	if set < 0 || set >= d.numSets || way < 0 || way >= d.numWays {
		log.Panicf("directory slot (%d, %d) out of range", set, way)
	}

	return set*d.numWays + way
}

// Lookup searches the set for a valid entry with the tag. On a hit, the way is
// marked as recently used.
func (d *Directory) Lookup(set int, tag uint64) (Entry, int, bool) {
	for way := 0; way < d.numWays; way++ {
		i := d.index(set, way)
		e := d.entries[i]

		if e.Valid && e.Tag == tag {
			d.recent[i] = true
			return e, way, true
		}
	}

	return InvalidEntry(), 0, false
}

// Read returns the entry in a slot without touching the recency bits.
func (d *Directory) Read(set, way int) Entry {
	return d.entries[d.index(set, way)]
}

// Recent tells if the way has been used recently.
func (d *Directory) Recent(set, way int) bool {
	return d.recent[d.index(set, way)]
}

// Write stores the entry in a slot. If all the other ways of the set are
// recent, all the recency bits of the set are cleared. Otherwise only the
// written way becomes recent.
func (d *Directory) Write(set, way int, e Entry) {
	i := d.index(set, way)
	d.entries[i] = e

	allRecent := true

	for w := 0; w < d.numWays; w++ {
		if w != way && !d.recent[d.index(set, w)] {
			allRecent = false
			break
		}
	}

	if !allRecent {
		d.recent[i] = true
		return
	}

	for w := 0; w < d.numWays; w++ {
		d.recent[d.index(set, w)] = false
	}
}

// Invalidate clears a slot. The recency bits are not changed.
func (d *Directory) Invalidate(set, way int) {
	d.entries[d.index(set, way)] = InvalidEntry()
}

// SelectVictim chooses the way to replace in a set. Invalid ways are chosen
// first, then ways that are neither recent nor locked, then ways that are
// not recent, then ways that are not locked. Way 0 is the last resort.
func (d *Directory) SelectVictim(set int) (Entry, int) {
	pass := []func(e Entry, recent bool) bool{
		func(e Entry, _ bool) bool { return !e.Valid },
		func(e Entry, recent bool) bool { return !recent && !e.Locked },
		func(_ Entry, recent bool) bool { return !recent },
		func(e Entry, _ bool) bool { return !e.Locked },
	}

	for _, accept := range pass {
		for way := 0; way < d.numWays; way++ {
			i := d.index(set, way)
			if accept(d.entries[i], d.recent[i]) {
				return d.entries[i], way
			}
		}
	}

	return d.entries[d.index(set, 0)], 0
}
