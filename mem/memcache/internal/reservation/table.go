// Package reservation keeps the load-linked reservations of each requester.
package reservation

// A reservation is the address loaded by the last LL of a requester.
type reservation struct {
	addr uint64
	line uint64
}

// Table holds at most one reservation per requester.
type Table struct {
	lineOf  func(addr uint64) uint64
	entries map[uint32]reservation
}

// NewTable creates an empty table. The function maps addresses to lines.
func NewTable(lineOf func(addr uint64) uint64) *Table {
	return &Table{
		lineOf:  lineOf,
		entries: make(map[uint32]reservation),
	}
}

// Set records a reservation, replacing the previous one of the requester.
func (t *Table) Set(srcID uint32, addr uint64) {
	t.entries[srcID] = reservation{addr: addr, line: t.lineOf(addr)}
}

// IsReserved tells if the requester still holds a reservation on the
// address.
func (t *Table) IsReserved(srcID uint32, addr uint64) bool {
	r, found := t.entries[srcID]
	return found && r.addr == addr
}

// ResetLine drops every reservation on the line, whoever made it.
func (t *Table) ResetLine(line uint64) {
	for id, r := range t.entries {
		if r.line == line {
			delete(t.entries, id)
		}
	}
}

// Len returns the number of reservations.
func (t *Table) Len() int {
	return len(t.entries)
}
