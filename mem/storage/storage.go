// Package storage keeps the content of the external memory.
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrOutOfCapacity is returned when an access goes beyond the capacity.
var ErrOutOfCapacity = errors.New("access beyond the storage capacity")

const wordBytes = 4

// A Storage holds little-endian 32-bit words.
//
// The storage is managed in units, similar to pages. A unit that has never
// been touched takes no memory and reads as zeros.
type Storage struct {
	unitSize uint64
	capacity uint64
	data     map[uint64][]byte
}

// New creates a storage with the given capacity in bytes.
func New(capacity uint64) *Storage {
	return &Storage{
		unitSize: 4096,
		capacity: capacity,
		data:     make(map[uint64][]byte),
	}
}

// Capacity returns the capacity in bytes.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

func (s *Storage) unit(addr uint64) []byte {
	base := addr - addr%s.unitSize

	u, ok := s.data[base]
	if !ok {
		u = make([]byte, s.unitSize)
		s.data[base] = u
	}

	return u
}

func (s *Storage) mustFit(addr uint64, n int) error {
	end := addr + uint64(n)*wordBytes
	if addr%wordBytes != 0 || end > s.capacity || end < addr {
		return fmt.Errorf("%d words at 0x%x: %w", n, addr, ErrOutOfCapacity)
	}

	return nil
}

// ReadWords reads n words starting at a word-aligned address.
func (s *Storage) ReadWords(addr uint64, n int) ([]uint32, error) {
	if err := s.mustFit(addr, n); err != nil {
		return nil, err
	}

	words := make([]uint32, n)

	for i := range words {
		a := addr + uint64(i)*wordBytes
		off := a % s.unitSize
		words[i] = binary.LittleEndian.Uint32(s.unit(a)[off : off+wordBytes])
	}

	return words, nil
}

// WriteWords writes words starting at a word-aligned address.
func (s *Storage) WriteWords(addr uint64, words []uint32) error {
	if err := s.mustFit(addr, len(words)); err != nil {
		return err
	}

	for i, w := range words {
		a := addr + uint64(i)*wordBytes
		off := a % s.unitSize
		binary.LittleEndian.PutUint32(s.unit(a)[off:off+wordBytes], w)
	}

	return nil
}
