package directory

import (
	"log"

	"github.com/sarchlab/memcoherence/mem/vci"
)

// DataArray stores the words of every directory slot.
type DataArray struct {
	numWays      int
	wordsPerLine int
	words        []uint32
}

// NewDataArray creates a zero-filled data array.
func NewDataArray(numSets, numWays, wordsPerLine int) *DataArray {
	return &DataArray{
		numWays:      numWays,
		wordsPerLine: wordsPerLine,
		words:        make([]uint32, numSets*numWays*wordsPerLine),
	}
}

func (a *DataArray) offset(set, way int) int {
	o := (set*a.numWays + way) * a.wordsPerLine
	if set < 0 || way < 0 || way >= a.numWays || o >= len(a.words) {
		log.Panicf("data slot (%d, %d) out of range", set, way)
	}

	return o
}

// Line returns a copy of the words in a slot.
func (a *DataArray) Line(set, way int) []uint32 {
	o := a.offset(set, way)
	return append([]uint32(nil), a.words[o:o+a.wordsPerLine]...)
}

// Words returns a copy of n words starting at word.
func (a *DataArray) Words(set, way, word, n int) []uint32 {
	o := a.offset(set, way) + word
	return append([]uint32(nil), a.words[o:o+n]...)
}

// WriteLine replaces all the words in a slot.
func (a *DataArray) WriteLine(set, way int, data []uint32) {
	if len(data) != a.wordsPerLine {
		log.Panicf("line has %d words, %d given", a.wordsPerLine, len(data))
	}

	copy(a.words[a.offset(set, way):], data)
}

// WriteWords merges a burst starting at word, honoring the byte enables.
func (a *DataArray) WriteWords(set, way, word int, data []uint32, be []uint8) {
	o := a.offset(set, way) + word

	for i, d := range data {
		a.words[o+i] = vci.MergeWord(a.words[o+i], d, be[i])
	}
}
