package malloc

import "sync"

import "github.com/bnclabs/gomem/api"
import "github.com/bnclabs/gomem/lib"
import s "github.com/bnclabs/gosettings"
import humanize "github.com/dustin/go-humanize"

// Arena is the context object owning the full subsystem state, the
// pool registry, the allocation tables, the operation history ring,
// the leak records and the usage snapshots. Applications create one
// arena per memory map and pass it everywhere, there is no process
// global state.
type Arena struct {
	name  string
	clock api.Clock
	wiper func(addr uint64, size int64)

	mu       sync.Mutex
	released bool
	pools    []*Pool
	poolidx  map[string]int
	nextid   uint64

	history *historylog
	leaks   *leakmonitor
	usage   *usagemeter
	avsize  lib.AverageInt64

	// configuration
	capacity    int64
	maxpools    int64
	maxallocs   int64
	minpoolsize int64
	maxpoolsize int64
	allocator   string
	logprefix   string
}

// NewArena create a new arena. Timestamps come from the supplied
// clock, the arena never reads time on its own. Settings are
// validated once, a misconfigured arena is refused, not cured.
func NewArena(name string, clock api.Clock, setts s.Settings) (*Arena, error) {
	if name == "" || len(name) > Maxpoolname {
		return nil, ErrorBadSettings
	} else if clock == nil {
		return nil, ErrorBadSettings
	} else if err := validatesettings(setts); err != nil {
		return nil, err
	}
	capacity := setts.Int64("capacity")
	arena := &Arena{
		name:    name,
		clock:   clock,
		poolidx: make(map[string]int),
		history: newhistorylog(setts.Int64("history.capacity")),
		leaks: newleakmonitor(
			setts.Int64("leak.suspect"),
			setts.Int64("leak.confirm"),
			setts.Int64("leak.interval"),
		),
		usage: newusagemeter(
			capacity,
			setts.Int64("usage.warnpct"),
			setts.Int64("usage.critpct"),
			setts.Int64("usage.worstcase"),
			setts.Int64("snapshot.capacity"),
		),
		capacity:    capacity,
		maxpools:    setts.Int64("maxpools"),
		maxallocs:   setts.Int64("maxallocs"),
		minpoolsize: setts.Int64("minpoolsize"),
		maxpoolsize: setts.Int64("maxpoolsize"),
		allocator:   setts.String("allocator"),
		logprefix:   "[arena " + name + "]",
	}
	infof("%v started with %v allocator, capacity %v\n",
		arena.logprefix, arena.allocator, capacity)
	return arena, nil
}

// Setwiper install a callback to wipe freed regions on the target.
// The arena does not own backing memory, hosts that do can hook the
// defensive zero-fill here. Install before the first allocation.
func (arena *Arena) Setwiper(wiper func(addr uint64, size int64)) {
	arena.mu.Lock()
	defer arena.mu.Unlock()
	arena.wiper = wiper
}

// Release the arena. Every subsequent operation fails with
// ErrorArenaReleased. Pools cannot be unregistered one by one,
// their lifetime is the arena's lifetime.
func (arena *Arena) Release() {
	arena.mu.Lock()
	defer arena.mu.Unlock()
	arena.released = true
	infof("%v released\n", arena.logprefix)
}

//---- registry

// Register a pool against a caller-supplied region of the target
// memory map. Fails, leaving the registry unchanged, on a full pool
// table, a bad or duplicate name, a zero base, a capacity outside
// the configured bounds, an arena budget overrun, or a region
// overlapping an already registered pool.
func (arena *Arena) Register(
	name string, base uint64, capacity int64, category api.Category) error {

	arena.mu.Lock()
	defer arena.mu.Unlock()

	if arena.released {
		return ErrorArenaReleased
	} else if int64(len(arena.pools)) >= arena.maxpools {
		return ErrorPoolTableFull
	} else if name == "" || len(name) > Maxpoolname {
		return ErrorBadPoolName
	} else if _, ok := arena.poolidx[name]; ok {
		return ErrorDupPoolName
	} else if base == 0 {
		return ErrorBadPoolBase
	} else if capacity < arena.minpoolsize || capacity > arena.maxpoolsize {
		return ErrorBadPoolSize
	} else if base > ^uint64(0)-uint64(capacity) {
		return ErrorBadPoolSize
	} else if !category.IsValid() {
		return ErrorBadCategory
	}
	budget := capacity
	for _, pool := range arena.pools {
		budget += pool.capacity
	}
	if budget > arena.capacity {
		return ErrorExceedsArena
	}
	for _, pool := range arena.pools {
		if overlap(base, capacity, pool.base, pool.capacity) {
			return ErrorPoolOverlap
		}
	}
	pool := newpool(name, base, capacity, category, arena.maxallocs)
	arena.pools = append(arena.pools, pool)
	arena.poolidx[name] = len(arena.pools) - 1
	infof("%v registered %q [%x +%v) category %v\n",
		arena.logprefix, name, base, capacity, category)
	return nil
}

func (arena *Arena) getpool(name string) *Pool {
	if idx, ok := arena.poolidx[name]; ok {
		return arena.pools[idx]
	}
	return nil
}

//---- allocator

// Alloc carve size bytes out of the named pool for owner. The
// returned address is stable for the lifetime of the allocation and
// every transition is recorded in the history ring. Fails, leaving
// all state unchanged, on an unknown pool, a zero size, a bad owner
// tag, an exhausted pool or a full allocation table.
func (arena *Arena) Alloc(
	poolname string, size int64, owner string) (uint64, error) {

	arena.mu.Lock()
	defer arena.mu.Unlock()

	if arena.released {
		return 0, ErrorArenaReleased
	}
	pool := arena.getpool(poolname)
	if pool == nil {
		return 0, ErrorUnknownPool
	} else if size <= 0 {
		return 0, ErrorBadAllocSize
	} else if owner == "" || len(owner) > Maxpoolname {
		return 0, ErrorBadOwner
	}
	now := arena.clock.Now()
	arena.nextid++
	addr, err := pool.allocate(
		size, owner, pool.category, arena.nextid, now, arena.allocator)
	if err != nil {
		arena.nextid--
		return 0, err
	}
	arena.avsize.Add(size)
	arena.usage.account(size, pool.category, now)
	arena.history.append(Histentry{
		ID:       arena.nextid,
		Addr:     addr,
		Size:     size,
		Category: pool.category,
		State:    api.Allocated,
		Owner:    owner,
		Ts:       now,
	})
	debugf("%v alloc %v bytes at %x for %q from %q\n",
		arena.logprefix, size, addr, owner, poolname)
	return addr, nil
}

// Free give an allocation back to accounting. Ownership scoped,
// owner must match the tag recorded at Alloc time. The bytes are
// wiped through the wiper callback when one is installed, the
// record itself is retained, state Free, as audit evidence. With
// the bump strategy the freed offsets are never reissued.
func (arena *Arena) Free(poolname string, addr uint64, owner string) error {
	arena.mu.Lock()
	defer arena.mu.Unlock()

	if arena.released {
		return ErrorArenaReleased
	}
	pool := arena.getpool(poolname)
	if pool == nil {
		return ErrorUnknownPool
	}
	record, err := pool.release(addr, owner, arena.allocator)
	if err != nil {
		return err
	}
	now := arena.clock.Now()
	if arena.wiper != nil {
		arena.wiper(record.Addr, record.Size)
	}
	arena.usage.account(-record.Size, record.Category, now)
	arena.leaks.onfree(addr, now)
	arena.history.append(Histentry{
		ID:       record.ID,
		Addr:     record.Addr,
		Size:     record.Size,
		Category: record.Category,
		State:    api.Free,
		Owner:    owner,
		Ts:       now,
	})
	debugf("%v free %v bytes at %x by %q from %q\n",
		arena.logprefix, record.Size, addr, owner, poolname)
	return nil
}

//---- leak detection

// Checkleaks run a leak scan, at most once per configured polling
// interval, calls inside the interval succeed without scanning.
// Fails closed with ErrorLeakConfirmed while any confirmed leak is
// outstanding. Never frees memory.
func (arena *Arena) Checkleaks() error {
	arena.mu.Lock()
	defer arena.mu.Unlock()

	if arena.released {
		return ErrorArenaReleased
	}
	return arena.leaks.scan(arena.pools, arena.clock.Now(), arena.logprefix)
}

// Recoverleak wipe and reclaim a confirmed leak, last resort
// mitigation invoked explicitly by the operator, never automatic.
// The allocation goes back to Free, accounting and history are
// updated as for a free, and the leak record turns Recovered.
func (arena *Arena) Recoverleak(poolname string, addr uint64) error {
	arena.mu.Lock()
	defer arena.mu.Unlock()

	if arena.released {
		return ErrorArenaReleased
	}
	pool := arena.getpool(poolname)
	if pool == nil {
		return ErrorUnknownPool
	}
	leak := arena.leaks.confirmedrec(addr)
	if leak == nil {
		return ErrorLeakNotConfirmed
	}
	record, err := pool.release(addr, leak.Owner, arena.allocator)
	if err != nil {
		return err
	}
	now := arena.clock.Now()
	if arena.wiper != nil {
		arena.wiper(record.Addr, record.Size)
	}
	arena.usage.account(-record.Size, record.Category, now)
	arena.leaks.onfree(addr, now)
	arena.history.append(Histentry{
		ID:       record.ID,
		Addr:     record.Addr,
		Size:     record.Size,
		Category: record.Category,
		State:    api.Free,
		Owner:    record.Owner,
		Ts:       now,
	})
	warnf("%v recovered leak %v bytes at %x owner %q\n",
		arena.logprefix, record.Size, addr, record.Owner)
	return nil
}

//---- usage analysis

// Checkthresholds fail once total usage crosses the critical
// threshold. Crossing the warning threshold alone logs and sets the
// Warning() accessor but returns nil.
func (arena *Arena) Checkthresholds() error {
	arena.mu.Lock()
	defer arena.mu.Unlock()

	if arena.released {
		return ErrorArenaReleased
	}
	return arena.usage.checkthresholds(arena.logprefix)
}

// Trend direction and magnitude of usage between the two most
// recent snapshots. Fails with ErrorNotEnoughSamples until two
// operations have been recorded.
func (arena *Arena) Trend() (api.Trend, int64, error) {
	arena.mu.Lock()
	defer arena.mu.Unlock()

	if arena.released {
		return api.Flat, 0, ErrorArenaReleased
	}
	return arena.usage.trend()
}

//---- read accessors, consumed by the reporting layer

// Poolcount number of registered pools.
func (arena *Arena) Poolcount() int64 {
	arena.mu.Lock()
	defer arena.mu.Unlock()
	return int64(len(arena.pools))
}

// Used live bytes across all pools.
func (arena *Arena) Used() int64 {
	arena.mu.Lock()
	defer arena.mu.Unlock()
	return arena.usage.used
}

// Peakused high-watermark of Used, never decreases.
func (arena *Arena) Peakused() int64 {
	arena.mu.Lock()
	defer arena.mu.Unlock()
	return arena.usage.peak
}

// Worstcase certified worst-case budget, at least Peakused.
func (arena *Arena) Worstcase() int64 {
	arena.mu.Lock()
	defer arena.mu.Unlock()
	return arena.usage.worstcase
}

// Categoryused live bytes accounted to category.
func (arena *Arena) Categoryused(category api.Category) int64 {
	arena.mu.Lock()
	defer arena.mu.Unlock()
	if !category.IsValid() {
		return 0
	}
	return arena.usage.percat[category]
}

// Warning whether the warning threshold was crossed by the latest
// Checkthresholds call.
func (arena *Arena) Warning() bool {
	arena.mu.Lock()
	defer arena.mu.Unlock()
	return arena.usage.warned
}

// Overwritten number of history entries lost to ring wraparound.
func (arena *Arena) Overwritten() int64 {
	arena.mu.Lock()
	defer arena.mu.Unlock()
	return arena.history.overwritten()
}

// Leaks every leak record ever created, oldest first, recovered
// records included.
func (arena *Arena) Leaks() []Leakinfo {
	arena.mu.Lock()
	defer arena.mu.Unlock()
	return arena.leaks.list()
}

// History retained transition records, oldest first.
func (arena *Arena) History() []Histentry {
	arena.mu.Lock()
	defer arena.mu.Unlock()
	return arena.history.ordered()
}

// Info capacity, used, peak and worst-case for this arena.
func (arena *Arena) Info() (capacity, used, peak, worstcase int64) {
	arena.mu.Lock()
	defer arena.mu.Unlock()
	return arena.capacity, arena.usage.used, arena.usage.peak,
		arena.usage.worstcase
}

// Stats for this arena, consumable by the reporting layer.
func (arena *Arena) Stats() map[string]interface{} {
	arena.mu.Lock()
	defer arena.mu.Unlock()

	stats := map[string]interface{}{
		"name":               arena.name,
		"allocator":          arena.allocator,
		"capacity":           arena.capacity,
		"used":               arena.usage.used,
		"peak":               arena.usage.peak,
		"worstcase":          arena.usage.worstcase,
		"warnbytes":          arena.usage.warnbytes,
		"critbytes":          arena.usage.critbytes,
		"history.total":      arena.history.total,
		"history.overwrites": arena.history.overwritten(),
		"h_allocsize":        arena.avsize.Stats(),
	}
	for category := api.Category(0); category < api.Ncategories; category++ {
		stats["used."+category.String()] = arena.usage.percat[category]
	}
	for _, state := range []api.Leakstate{
		api.Suspected, api.Confirmed, api.Recovered} {
		stats["leaks."+state.String()] = arena.leaks.count(state)
	}
	npools := make(map[string]interface{})
	for _, pool := range arena.pools {
		npools[pool.name] = map[string]interface{}{
			"base":     pool.base,
			"capacity": pool.capacity,
			"used":     pool.used,
			"offset":   pool.offset,
			"category": pool.category.String(),
			"nallocs":  int64(len(pool.allocs)),
		}
	}
	stats["pools"] = npools
	return stats
}

// Log a human readable report for this arena.
func (arena *Arena) Log(what string, human bool) {
	arena.mu.Lock()
	defer arena.mu.Unlock()

	bytes := func(n int64) string {
		if human {
			return humanize.Bytes(uint64(n))
		}
		return humanize.Comma(n)
	}
	switch what {
	case "usage", "all":
		fmsg := "%v usage {capacity: %v, used: %v, peak: %v, worstcase: %v}\n"
		infof(fmsg, arena.logprefix,
			bytes(arena.capacity), bytes(arena.usage.used),
			bytes(arena.usage.peak), bytes(arena.usage.worstcase))
		for _, pool := range arena.pools {
			fmsg := "%v pool %q %v {used: %v of %v, offset: %v}\n"
			infof(fmsg, arena.logprefix, pool.name, pool.category,
				bytes(pool.used), bytes(pool.capacity), bytes(pool.offset))
		}
	}
	switch what {
	case "leaks", "all":
		for _, leak := range arena.leaks.audit {
			fmsg := "%v leak {addr: %x, size: %v, owner: %q, state: %v}\n"
			infof(fmsg, arena.logprefix,
				leak.Addr, bytes(leak.Size), leak.Owner, leak.State)
		}
	}
}
