package malloc

import "github.com/bnclabs/gomem/api"

// Validate the full arena state, read only. Meant as an acceptance
// gate before certifying a build or a run, not to be called in the
// middle of an operation sequence. Checks, in order: per-pool
// bounds, pairwise pool overlap, per-allocation containment and
// state domain, accounting consistency between the allocation
// tables and the usage meter, history alternation and snapshot
// arithmetic. The first violated invariant's category is returned.
func (arena *Arena) Validate() error {
	arena.mu.Lock()
	defer arena.mu.Unlock()

	if arena.released {
		return ErrorArenaReleased
	}
	if err := arena.validatepools(); err != nil {
		return err
	}
	if err := arena.validateaccounting(); err != nil {
		return err
	}
	if err := arena.history.verify(); err != nil {
		return err
	}
	return arena.usage.verify()
}

// Verifypools re-check pool bounds, overlap and allocation
// containment. Thin facade over the authoritative checker.
func (arena *Arena) Verifypools() error {
	arena.mu.Lock()
	defer arena.mu.Unlock()

	if arena.released {
		return ErrorArenaReleased
	}
	return arena.validatepools()
}

// Verifyalloc spot-check a single allocation's bounds, state and
// size against the caller's expectation.
func (arena *Arena) Verifyalloc(poolname string, addr uint64, size int64) error {
	arena.mu.Lock()
	defer arena.mu.Unlock()

	if arena.released {
		return ErrorArenaReleased
	}
	pool := arena.getpool(poolname)
	if pool == nil {
		return ErrorUnknownPool
	}
	record := pool.lookup(addr)
	if record == nil {
		return ErrorUnknownAlloc
	} else if record.State != api.Allocated {
		return ErrorNotAllocated
	} else if record.Size != size {
		return ErrorSizeMismatch
	} else if !pool.contains(record.Addr, record.Size) {
		return ErrorContainViolation
	}
	return nil
}

// Verifyhistory check the alternation and owner invariants over the
// retained history ring.
func (arena *Arena) Verifyhistory() error {
	arena.mu.Lock()
	defer arena.mu.Unlock()

	if arena.released {
		return ErrorArenaReleased
	}
	return arena.history.verify()
}

func (arena *Arena) validatepools() error {
	for _, pool := range arena.pools {
		if pool.used < 0 || pool.used > pool.capacity {
			return ErrorBoundsViolation
		} else if pool.offset < pool.used || pool.offset > pool.capacity {
			return ErrorBoundsViolation
		}
	}
	for i, pool := range arena.pools {
		for _, other := range arena.pools[i+1:] {
			if overlap(pool.base, pool.capacity, other.base, other.capacity) {
				return ErrorPoolOverlap
			}
		}
	}
	for _, pool := range arena.pools {
		for n := range pool.allocs {
			record := &pool.allocs[n]
			if !record.State.IsValid() {
				return ErrorStateViolation
			} else if !pool.contains(record.Addr, record.Size) {
				return ErrorContainViolation
			}
		}
	}
	return nil
}

func (arena *Arena) validateaccounting() error {
	total := int64(0)
	var percat [api.Ncategories]int64
	for _, pool := range arena.pools {
		if pool.live() != pool.used {
			return ErrorAccountingViolation
		}
		total += pool.used
		percat[pool.category] += pool.used
	}
	if total != arena.usage.used {
		return ErrorAccountingViolation
	}
	for category, used := range percat {
		if used != arena.usage.percat[category] {
			return ErrorAccountingViolation
		}
	}
	return nil
}
