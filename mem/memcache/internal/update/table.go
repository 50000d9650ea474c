// Package update provides the table of multicast updates and invalidations
// that wait for acknowledgements.
package update

import (
	"errors"
	"fmt"
	"log"

	"github.com/sarchlab/memcoherence/mem/memcache/internal/transaction"
)

// ErrInvalidEntry is returned when an acknowledgement refers to an entry
// that is not waiting for acknowledgements.
var ErrInvalidEntry = errors.New("update table entry is not pending")

// RspKind tells which response is released when all the acknowledgements
// have arrived.
type RspKind int

// The kinds of response that an entry can hold back.
const (
	RspNone RspKind = iota
	RspWrite
	RspSC
)

// An Entry tracks one update or invalidation.
type Entry struct {
	Valid         bool
	IsUpdate      bool
	IsBroadcast   bool
	NeedsResponse bool
	RspKind       RspKind
	Origin        transaction.Origin
	Line          uint64
	Count         int
}

// Table is the update table.
type Table struct {
	entries []Entry
}

// NewTable creates a table with the given number of entries.
func NewTable(depth int) *Table {
	if depth <= 0 {
		log.Panicf("update table depth must be positive, got %d", depth)
	}

	return &Table{entries: make([]Entry, depth)}
}

// Depth returns the number of entries.
func (t *Table) Depth() int {
	return len(t.entries)
}

// Full tells if all the entries are in use.
func (t *Table) Full() bool {
	for _, e := range t.entries {
		if !e.Valid {
			return false
		}
	}

	return true
}

// NumValid returns the number of entries in use.
func (t *Table) NumValid() int {
	n := 0

	for _, e := range t.entries {
		if e.Valid {
			n++
		}
	}

	return n
}

// TryAllocate stores the entry in a free slot. It fails if the table is
// full. The entry must expect at least one acknowledgement.
func (t *Table) TryAllocate(e Entry) (int, bool) {
	if e.Count <= 0 {
		log.Panicf("update table entry must expect acks, got %d", e.Count)
	}

	for i := range t.entries {
		if !t.entries[i].Valid {
			e.Valid = true
			t.entries[i] = e

			return i, true
		}
	}

	return 0, false
}

// Read returns an entry.
func (t *Table) Read(index int) Entry {
	if index < 0 || index >= len(t.entries) {
		log.Panicf("update table index %d out of range", index)
	}

	return t.entries[index]
}

// Decrement records one acknowledgement and returns the number of
// acknowledgements still expected.
func (t *Table) Decrement(index int) (int, error) {
	if index < 0 || index >= len(t.entries) {
		return 0, fmt.Errorf("index %d out of range: %w",
			index, ErrInvalidEntry)
	}

	e := &t.entries[index]
	if !e.Valid || e.Count == 0 {
		return 0, fmt.Errorf("index %d: %w", index, ErrInvalidEntry)
	}

	e.Count--

	return e.Count, nil
}

// Clear releases an entry whose acknowledgements have all arrived.
func (t *Table) Clear(index int) {
	e := t.Read(index)
	if e.Count != 0 {
		log.Panicf("clearing update table entry %d with %d acks pending",
			index, e.Count)
	}

	t.entries[index] = Entry{}
}

// SearchInval finds a pending invalidation of the line.
func (t *Table) SearchInval(line uint64) (int, bool) {
	for i, e := range t.entries {
		if e.Valid && !e.IsUpdate && e.Line == line {
			return i, true
		}
	}

	return 0, false
}
