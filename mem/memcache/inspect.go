package memcache

// LineState is what the memory cache knows about a cached line.
type LineState struct {
	Data        []uint32
	Dirty       bool
	Locked      bool
	CounterMode bool
	Count       int

	// Sharers lists the source IDs of the copies, the directory owner
	// first. It is empty in counter mode.
	Sharers []uint32
}

// Line returns the state of a line if the memory cache holds it.
func (c *Comp) Line(line uint64) (LineState, bool) {
	set := c.addr.Set(line)
	tag := c.addr.Tag(line)

	for way := 0; way < c.dir.NumWays(); way++ {
		e := c.dir.Read(set, way)
		if !e.Valid || e.Tag != tag {
			continue
		}

		s := LineState{
			Data:        append([]uint32(nil), c.data.Line(set, way)...),
			Dirty:       e.Dirty,
			Locked:      e.Locked,
			CounterMode: e.CounterMode,
			Count:       e.Count,
		}

		for _, o := range c.owners(e) {
			s.Sharers = append(s.Sharers, o.SrcID)
		}

		return s, true
	}

	return LineState{}, false
}

// Lines returns the lines held by the memory cache.
func (c *Comp) Lines() []uint64 {
	var lines []uint64

	for set := 0; set < c.dir.NumSets(); set++ {
		for way := 0; way < c.dir.NumWays(); way++ {
			e := c.dir.Read(set, way)
			if e.Valid {
				lines = append(lines, c.addr.LineOf(set, e.Tag))
			}
		}
	}

	return lines
}

// PendingAcks returns the number of acknowledgements that the update table
// still waits for.
func (c *Comp) PendingAcks() int {
	n := 0

	for i := 0; i < c.upt.Depth(); i++ {
		if e := c.upt.Read(i); e.Valid {
			n += e.Count
		}
	}

	return n
}
