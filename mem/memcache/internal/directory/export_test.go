package directory

// SetRecent forces the recency bit of a slot.
func (d *Directory) SetRecent(set, way int, recent bool) {
	d.recent[d.index(set, way)] = recent
}

// Place stores an entry without touching the recency bits.
func (d *Directory) Place(set, way int, e Entry) {
	d.entries[d.index(set, way)] = e
}

// NextFree returns the head of the free list.
func (h *Heap) NextFree() int {
	return h.nextFree
}

// HasInstructionCopy tells if the owner or the chain of e is an instruction
// cache.
func (h *Heap) HasInstructionCopy(e Entry) bool {
	return h.hasInstructionCopy(e)
}
