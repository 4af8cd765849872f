package malloc

import "github.com/bnclabs/gomem/api"

// Allocation is a single allocation record. Records are appended to
// the pool's table and stay there for the lifetime of the arena,
// freeing an allocation flips its state but never compacts the
// table, a certification audit can replay the full set.
type Allocation struct {
	ID       uint64
	Addr     uint64
	Size     int64
	Owner    string
	Category api.Category
	State    api.Allocstate
	Born     int64 // clock reading when allocated
}

// Pool is a named, non-overlapping region of the target memory map,
// registered once and never unregistered. Only the arena mutates a
// pool.
type Pool struct {
	name     string
	category api.Category
	base     uint64
	capacity int64
	used     int64 // live bytes, decremented on free
	offset   int64 // bump high-water mark, never rewinds

	allocs    []Allocation   // dense, never compacted
	index     map[uint64]int // address -> allocs offset
	freeslots []int          // flist: table offsets reusable by size
	maxallocs int64
}

func newpool(
	name string, base uint64, capacity int64,
	category api.Category, maxallocs int64) *Pool {

	return &Pool{
		name:      name,
		category:  category,
		base:      base,
		capacity:  capacity,
		allocs:    make([]Allocation, 0, maxallocs),
		index:     make(map[uint64]int),
		maxallocs: maxallocs,
	}
}

// Name of the pool.
func (pool *Pool) Name() string {
	return pool.name
}

// Category of the pool.
func (pool *Pool) Category() api.Category {
	return pool.category
}

// Base address of the pool's region.
func (pool *Pool) Base() uint64 {
	return pool.base
}

// Capacity of the pool's region in bytes.
func (pool *Pool) Capacity() int64 {
	return pool.capacity
}

// Used live bytes in the pool.
func (pool *Pool) Used() int64 {
	return pool.used
}

// Available bytes still allocatable from the pool. With the bump
// strategy freed bytes are not available again, so this can be less
// than capacity minus used.
func (pool *Pool) Available() int64 {
	return pool.capacity - pool.offset
}

func (pool *Pool) contains(addr uint64, size int64) bool {
	limit := pool.base + uint64(pool.capacity)
	return addr >= pool.base && addr+uint64(size) <= limit
}

// pick an exact-fit free slot for reuse, flist strategy only.
func (pool *Pool) reusable(size int64) int {
	for n, off := range pool.freeslots {
		if pool.allocs[off].Size == size {
			last := len(pool.freeslots) - 1
			pool.freeslots[n] = pool.freeslots[last]
			pool.freeslots = pool.freeslots[:last]
			return off
		}
	}
	return -1
}

// allocate from this pool, strategy is "bump" or "flist". Fails
// without touching pool state.
func (pool *Pool) allocate(
	size int64, owner string, category api.Category,
	id uint64, now int64, strategy string) (addr uint64, err error) {

	if strategy == "flist" {
		if off := pool.reusable(size); off >= 0 {
			record := &pool.allocs[off]
			record.ID = id
			record.Owner = owner
			record.State = api.Allocated
			record.Born = now
			pool.used += size
			return record.Addr, nil
		}
	}
	if size > pool.capacity-pool.offset {
		return 0, ErrorPoolExhausted
	} else if int64(len(pool.allocs)) >= pool.maxallocs {
		return 0, ErrorAllocTableFull
	}
	addr = pool.base + uint64(pool.offset)
	pool.allocs = append(pool.allocs, Allocation{
		ID:       id,
		Addr:     addr,
		Size:     size,
		Owner:    owner,
		Category: category,
		State:    api.Allocated,
		Born:     now,
	})
	pool.index[addr] = len(pool.allocs) - 1
	pool.offset += size
	pool.used += size
	return addr, nil
}

// release an allocation back to accounting. Ownership scoped, a
// component cannot free another component's allocation. Fails
// without touching pool state.
func (pool *Pool) release(
	addr uint64, owner string, strategy string) (*Allocation, error) {

	off, ok := pool.index[addr]
	if !ok {
		return nil, ErrorUnknownAlloc
	}
	record := &pool.allocs[off]
	if record.State != api.Allocated {
		return nil, ErrorNotAllocated
	} else if record.Owner != owner {
		return nil, ErrorOwnerMismatch
	}
	record.State = api.Free
	pool.used -= record.Size
	if strategy == "flist" {
		pool.freeslots = append(pool.freeslots, off)
	}
	return record, nil
}

// lookup an allocation record by address.
func (pool *Pool) lookup(addr uint64) *Allocation {
	if off, ok := pool.index[addr]; ok {
		return &pool.allocs[off]
	}
	return nil
}

// live sum of Allocated record sizes, for accounting verification.
func (pool *Pool) live() int64 {
	live := int64(0)
	for n := range pool.allocs {
		if pool.allocs[n].State == api.Allocated {
			live += pool.allocs[n].Size
		}
	}
	return live
}
