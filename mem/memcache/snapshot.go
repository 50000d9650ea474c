package memcache

// A Snapshot is the state of a memory cache at a cycle, as shown by the
// monitor.
type Snapshot struct {
	Cycle         uint64
	Engines       map[string]string
	Holders       map[string]string
	TRTOccupancy  int
	UPTOccupancy  int
	HeapFree      int
	QueueLengths  map[string]int
	Stats         Stats
	HaltedPaths   []string
	Reservations  int
	Idle          bool
	InvariantErrs string
}

// Snapshot captures the state of the memory cache. It returns a *Snapshot.
func (c *Comp) Snapshot() any {
	s := Snapshot{
		Cycle: c.cycle,
		Engines: map[string]string{
			"read":          c.readEngine.stateName(),
			"write":         c.writeEngine.stateName(),
			"llsc":          c.llscEngine.stateName(),
			"cleanup":       c.cleanupEngine.stateName(),
			"xram_rsp":      c.xramRsp.stateName(),
			"init_cmd":      c.initCmd.stateName(),
			"xram_cmd":      c.xramCmd.stateName(),
			"xram_receiver": c.xramReceiver.stateName(),
			"init_rsp":      c.initRsp.stateName(),
		},
		Holders:      make(map[string]string),
		TRTOccupancy: c.trt.NumValid(),
		UPTOccupancy: c.upt.NumValid(),
		HeapFree:     c.heap.FreeCount(),
		QueueLengths: map[string]int{
			"read":  c.readQueue.Len(),
			"write": c.writeQueue.Len(),
			"llsc":  c.llscQueue.Len(),
			"ready": c.readyQueue.Len(),
		},
		Stats:        c.stats,
		Reservations: c.reservations.Len(),
		Idle:         c.Idle(),
	}

	for _, a := range c.arbiters() {
		holder := "none"
		if t, held := a.Holder(); held {
			holder = t.String()
		}

		s.Holders[a.Name()] = holder
	}

	for p := requestPath(0); p < numPaths; p++ {
		if c.halted[p] {
			s.HaltedPaths = append(s.HaltedPaths, p.String())
		}
	}

	if err := c.CheckInvariants(); err != nil {
		s.InvariantErrs = err.Error()
	}

	return &s
}
