package memcache

import (
	"errors"
	"fmt"

	"github.com/sarchlab/memcoherence/mem/memcache/internal/directory"
)

// CheckInvariants verifies the consistency of the directory, the heap and
// the tables. It returns nil, or an error wrapping ErrInvariantViolation for
// each broken rule.
func (c *Comp) CheckInvariants() error {
	var errs []error

	errs = append(errs, c.checkCopies()...)
	errs = append(errs, c.checkTransactions()...)
	errs = append(errs, c.checkUpdates()...)

	return errors.Join(errs...)
}

func (c *Comp) checkCopies() []error {
	var errs []error

	inChains := 0

	for set := 0; set < c.dir.NumSets(); set++ {
		for way := 0; way < c.dir.NumWays(); way++ {
			e := c.dir.Read(set, way)
			if !e.Valid || e.CounterMode {
				continue
			}

			chain := c.heap.ChainLen(e.HeapHead)
			inChains += chain

			want := 0
			if e.Count > 0 {
				want = 1 + chain
			}

			if e.Count != want || (e.Count == 0 && chain > 0) {
				errs = append(errs, fmt.Errorf(
					"set %d way %d has count %d and a chain of %d: %w",
					set, way, e.Count, chain, ErrInvariantViolation))
			}

			if dup, found := duplicateOwner(c.owners(e)); found {
				errs = append(errs, fmt.Errorf(
					"set %d way %d records the copy of %d twice: %w",
					set, way, dup.SrcID, ErrInvariantViolation))
			}
		}
	}

	if c.heap.FreeCount()+inChains != c.heap.Size() {
		errs = append(errs, fmt.Errorf(
			"heap has %d free and %d used entries out of %d: %w",
			c.heap.FreeCount(), inChains, c.heap.Size(),
			ErrInvariantViolation))
	}

	return errs
}

func duplicateOwner(owners []directory.Owner) (directory.Owner, bool) {
	seen := make(map[directory.Owner]bool, len(owners))

	for _, o := range owners {
		if seen[o] {
			return o, true
		}

		seen[o] = true
	}

	return directory.Owner{}, false
}

func (c *Comp) checkTransactions() []error {
	var errs []error

	reads := make(map[uint64]int)

	for i := 0; i < c.trt.Depth(); i++ {
		if !c.trt.Valid(i) {
			continue
		}

		e := c.trt.Read(i)
		if !e.IsRead {
			continue
		}

		if other, dup := reads[e.Line]; dup {
			errs = append(errs, fmt.Errorf(
				"line 0x%x is fetched by transactions %d and %d: %w",
				e.Line, other, i, ErrInvariantViolation))
		}

		reads[e.Line] = i
	}

	return errs
}

func (c *Comp) checkUpdates() []error {
	var errs []error

	for i := 0; i < c.upt.Depth(); i++ {
		e := c.upt.Read(i)
		if e.Valid && e.Count <= 0 {
			errs = append(errs, fmt.Errorf(
				"update table entry %d is valid with %d acks pending: %w",
				i, e.Count, ErrInvariantViolation))
		}
	}

	return errs
}
