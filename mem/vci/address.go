package vci

import (
	"fmt"
	"log"
	"math/bits"
)

// WordBytes is the number of bytes in a data word.
const WordBytes = 4

// AddressMapping decomposes byte addresses into lines, sets, tags and word
// indexes. WordsPerLine and NumSets must be powers of two.
type AddressMapping struct {
	WordsPerLine int
	NumSets      int

	wordBits int
	setBits  int
}

// NewAddressMapping creates an AddressMapping.
func NewAddressMapping(wordsPerLine, numSets int) AddressMapping {
	mustBePowerOfTwo("words per line", wordsPerLine)
	mustBePowerOfTwo("number of sets", numSets)

	return AddressMapping{
		WordsPerLine: wordsPerLine,
		NumSets:      numSets,
		wordBits:     bits.TrailingZeros(uint(wordsPerLine)),
		setBits:      bits.TrailingZeros(uint(numSets)),
	}
}

func mustBePowerOfTwo(what string, n int) {
	if n <= 0 || n&(n-1) != 0 {
		log.Panicf("%s must be a power of 2, got %d", what, n)
	}
}

// LineBytes returns the size of a line in bytes.
func (m AddressMapping) LineBytes() uint64 {
	return uint64(m.WordsPerLine * WordBytes)
}

// Line returns the line number of a byte address.
func (m AddressMapping) Line(addr uint64) uint64 {
	return addr >> (m.wordBits + 2)
}

// WordIndex returns the index of the addressed word within its line.
func (m AddressMapping) WordIndex(addr uint64) int {
	return int((addr >> 2) & uint64(m.WordsPerLine-1))
}

// Set returns the directory set of a line.
func (m AddressMapping) Set(line uint64) int {
	return int(line & uint64(m.NumSets-1))
}

// Tag returns the directory tag of a line.
func (m AddressMapping) Tag(line uint64) uint64 {
	return line >> m.setBits
}

// LineOf rebuilds the line number from a set and a tag.
func (m AddressMapping) LineOf(set int, tag uint64) uint64 {
	return tag<<m.setBits | uint64(set)
}

// LineAddress returns the byte address of the first word of a line.
func (m AddressMapping) LineAddress(line uint64) uint64 {
	return line * m.LineBytes()
}

// WordAddress returns the byte address of a word within a line.
func (m AddressMapping) WordAddress(line uint64, word int) uint64 {
	return m.LineAddress(line) + uint64(word*WordBytes)
}

// FitsInLine tells if numWords words starting at addr stay within one line.
func (m AddressMapping) FitsInLine(addr uint64, numWords int) bool {
	if numWords <= 0 || addr%WordBytes != 0 {
		return false
	}

	return m.WordIndex(addr)+numWords <= m.WordsPerLine
}

// A Segment is a contiguous range of byte addresses.
type Segment struct {
	Name string
	Base uint64
	Size uint64
}

// Contains tells if the address falls in the segment.
func (s Segment) Contains(addr uint64) bool {
	return addr >= s.Base && addr-s.Base < s.Size
}

func (s Segment) String() string {
	return fmt.Sprintf("%s[0x%x, 0x%x)", s.Name, s.Base, s.Base+s.Size)
}

// A SegmentTable lists the address ranges that a target owns.
type SegmentTable []Segment

// Contains tells if any segment contains the address.
func (t SegmentTable) Contains(addr uint64) bool {
	for _, s := range t {
		if s.Contains(addr) {
			return true
		}
	}

	return false
}

// ByteMask expands a 4-bit byte enable into a 32-bit mask.
func ByteMask(be uint8) uint32 {
	var mask uint32

	for i := 0; i < WordBytes; i++ {
		if be&(1<<i) != 0 {
			mask |= 0xFF << (8 * i)
		}
	}

	return mask
}

// MergeWord overwrites the enabled bytes of old with the bytes of data.
func MergeWord(old, data uint32, be uint8) uint32 {
	mask := ByteMask(be)
	return (old &^ mask) | (data & mask)
}
