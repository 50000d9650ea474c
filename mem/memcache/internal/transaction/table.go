// Package transaction provides the table of in-flight transactions between
// the memory cache and the external memory.
package transaction

import (
	"errors"
	"fmt"
	"log"

	"github.com/sarchlab/memcoherence/mem/vci"
	"github.com/sarchlab/memcoherence/sim"
)

var (
	// ErrNotPending is returned when data arrives for an entry that is not
	// waiting for data.
	ErrNotPending = errors.New("no pending fetch")

	// ErrWrongLength is returned when the fetched data is not a full line.
	ErrWrongLength = errors.New("wrong number of words")
)

// An Origin identifies a command that waits for the transaction and where
// to send its response.
type Origin struct {
	Requester vci.Requester
	ReqID     string
	Src       sim.RemotePort
}

// A Reader is the read miss that created a fetch.
type Reader struct {
	Origin

	WordIndex   int
	NumWords    int
	Cached      bool
	Instruction bool
}

// An Entry tracks one fetch (IsRead) or one write-back.
type Entry struct {
	Valid    bool
	IsRead   bool
	Line     uint64
	Reader   *Reader
	Writers  []Origin
	Data     []uint32
	Mask     []uint32
	Received bool
}

// Dirty tells if writes have been merged into the fetched line.
func (e Entry) Dirty() bool {
	return len(e.Writers) > 0
}

// Table is the transaction table.
type Table struct {
	wordsPerLine int
	entries      []Entry
}

// NewTable creates a table with the given number of entries.
func NewTable(depth, wordsPerLine int) *Table {
	if depth <= 0 {
		log.Panicf("transaction table depth must be positive, got %d", depth)
	}

	return &Table{
		wordsPerLine: wordsPerLine,
		entries:      make([]Entry, depth),
	}
}

// Depth returns the number of entries.
func (t *Table) Depth() int {
	return len(t.entries)
}

func (t *Table) mustBeInRange(index int) {
	if index < 0 || index >= len(t.entries) {
		log.Panicf("transaction index %d out of range", index)
	}
}

// Valid tells if an index is in range and holds a transaction.
func (t *Table) Valid(index int) bool {
	return index >= 0 && index < len(t.entries) && t.entries[index].Valid
}

// Read returns a copy of an entry.
func (t *Table) Read(index int) Entry {
	t.mustBeInRange(index)

	e := t.entries[index]
	e.Data = append([]uint32(nil), e.Data...)
	e.Mask = append([]uint32(nil), e.Mask...)
	e.Writers = append([]Origin(nil), e.Writers...)

	return e
}

// HasOutstandingRead returns the fetch in progress for the line, if any.
func (t *Table) HasOutstandingRead(line uint64) (int, bool) {
	for i, e := range t.entries {
		if e.Valid && e.IsRead && e.Line == line {
			return i, true
		}
	}

	return 0, false
}

// HasOutstandingWrite tells if a write-back of the line is in progress.
func (t *Table) HasOutstandingWrite(line uint64) bool {
	for _, e := range t.entries {
		if e.Valid && !e.IsRead && e.Line == line {
			return true
		}
	}

	return false
}

// TryAllocate returns a free index. It fails if the table is full.
func (t *Table) TryAllocate() (int, bool) {
	for i, e := range t.entries {
		if !e.Valid {
			return i, true
		}
	}

	return 0, false
}

// Full tells if all the entries are in use.
func (t *Table) Full() bool {
	_, ok := t.TryAllocate()
	return !ok
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

// StartFetch fills a free entry with a fetch of the line. The reader can be
// nil if nobody waits for the data.
func (t *Table) StartFetch(index int, line uint64, reader *Reader) {
	t.mustBeFree(index)

	t.entries[index] = Entry{
		Valid:  true,
		IsRead: true,
		Line:   line,
		Reader: reader,
		Data:   make([]uint32, t.wordsPerLine),
		Mask:   make([]uint32, t.wordsPerLine),
	}
}

// StartWriteBack fills a free entry with a write-back of the line.
func (t *Table) StartWriteBack(index int, line uint64, data []uint32) {
	t.mustBeFree(index)

	t.entries[index] = Entry{
		Valid: true,
		Line:  line,
		Data:  t.fullLine(data),
	}
}

func (t *Table) mustBeFree(index int) {
	t.mustBeInRange(index)

	if t.entries[index].Valid {
		log.Panicf("transaction index %d is already in use", index)
	}
}

func (t *Table) fullLine(data []uint32) []uint32 {
	if len(data) != t.wordsPerLine {
		log.Panicf("line has %d words, %d given", t.wordsPerLine, len(data))
	}

	return append([]uint32(nil), data...)
}

// MergeWrite merges a burst into the buffered line of a fetch. The merged
// bytes take precedence over the data coming from the external memory.
func (t *Table) MergeWrite(
	index, word int,
	data []uint32,
	be []uint8,
	writer Origin,
) {
	t.mustBeInRange(index)

	e := &t.entries[index]
	if !e.Valid || !e.IsRead {
		log.Panicf("cannot merge a write into transaction %d", index)
	}

	for i, d := range data {
		mask := vci.ByteMask(be[i])
		e.Data[word+i] = (e.Data[word+i] &^ mask) | (d & mask)
		e.Mask[word+i] |= mask
	}

	e.Writers = append(e.Writers, writer)
}

// RecordRead stores the line fetched from the external memory without
// overwriting the bytes that were merged from writes.
func (t *Table) RecordRead(index int, words []uint32) error {
	if !t.Valid(index) || !t.entries[index].IsRead {
		return fmt.Errorf("transaction %d: %w", index, ErrNotPending)
	}

	e := &t.entries[index]
	if e.Received {
		return fmt.Errorf("transaction %d already received: %w",
			index, ErrNotPending)
	}

	if len(words) != t.wordsPerLine {
		return fmt.Errorf("transaction %d got %d words: %w",
			index, len(words), ErrWrongLength)
	}

	for i, w := range words {
		e.Data[i] = (e.Data[i] & e.Mask[i]) | (w &^ e.Mask[i])
	}

	e.Received = true

	return nil
}

// ConvertToWriteBack reuses the entry of a completed fetch to write a line
// back.
func (t *Table) ConvertToWriteBack(index int, line uint64, data []uint32) {
	t.mustBeInRange(index)

	e := t.entries[index]
	if !e.Valid || !e.IsRead {
		log.Panicf("transaction %d is not a fetch", index)
	}

	t.entries[index] = Entry{
		Valid: true,
		Line:  line,
		Data:  t.fullLine(data),
	}
}

// CompleteWriteBack releases a write-back entry.
func (t *Table) CompleteWriteBack(index int) error {
	if !t.Valid(index) || t.entries[index].IsRead {
		return fmt.Errorf("transaction %d: no pending write-back: %w",
			index, ErrNotPending)
	}

	t.Erase(index)

	return nil
}

// Erase releases an entry.
func (t *Table) Erase(index int) {
	t.mustBeInRange(index)
	t.entries[index] = Entry{}
}
