package malloc

import s "github.com/bnclabs/gosettings"
import "github.com/cloudfoundry/gosigar"

// Maxarenacap maximum capacity manageable by a single arena. Can be
// used as default for the `capacity` setting.
const Maxarenacap = int64(1024 * 1024 * 1024 * 1024) // 1TB

// Maxpools hard limit on the number of pool slots in an arena.
const Maxpools = int64(32)

// Maxallocs hard limit on the number of allocation slots in a pool.
const Maxallocs = int64(65536)

// Maxpoolname maximum length of a pool name or an owner tag.
const Maxpoolname = 31

// Defaultsettings for an arena.
//
// "capacity" (int64, default: free-RAM, clamped to Maxarenacap)
//		Total memory budget of the arena. Sum of registered pool
//		capacities cannot exceed this. Usage thresholds are computed
//		against it, once, when the arena is created.
//
// "maxpools" (int64, default: 16)
//		Number of pool slots, cannot exceed Maxpools.
//
// "maxallocs" (int64, default: 1024)
//		Number of allocation slots per pool, cannot exceed Maxallocs.
//
// "minpoolsize" (int64, default: 64)
//		Pools smaller than this cannot be registered.
//
// "maxpoolsize" (int64, default: "capacity")
//		Pools larger than this cannot be registered.
//
// "allocator" (string, default: "bump")
//		Allocation strategy, can be "bump" or "flist". Bump never
//		reissues freed offsets, flist reuses an exact-fit free slot
//		before bumping.
//
// "history.capacity" (int64, default: 1024)
//		Number of entries in the operation history ring. Oldest
//		entries are overwritten once full, the arena counts how many
//		were lost.
//
// "snapshot.capacity" (int64, default: 128)
//		Number of entries in the usage snapshot ring.
//
// "leak.suspect" (int64, default: 1000)
//		Age, in clock units, past which a live allocation is
//		suspected as leaked.
//
// "leak.confirm" (int64, default: 2 * "leak.suspect")
//		Age past which a suspected allocation is confirmed as
//		leaked.
//
// "leak.interval" (int64, default: 100)
//		Minimum clock distance between two leak scans, calls inside
//		the interval are no-ops.
//
// "usage.warnpct" (int64, default: 75)
//		Percentage of "capacity" past which threshold checks raise
//		a warning.
//
// "usage.critpct" (int64, default: 90)
//		Percentage of "capacity" past which threshold checks fail.
//		Shall be greater than "usage.warnpct", at most 100.
//
// "usage.worstcase" (int64, default: "capacity")
//		Certified worst-case usage budget. Raised to the observed
//		peak if observation ever exceeds it.
func Defaultsettings() s.Settings {
	_, _, free := getsysmem()
	capacity := int64(free)
	if capacity > Maxarenacap {
		capacity = Maxarenacap
	}
	return s.Settings{
		"capacity":          capacity,
		"maxpools":          int64(16),
		"maxallocs":         int64(1024),
		"minpoolsize":       int64(64),
		"maxpoolsize":       capacity,
		"allocator":         "bump",
		"history.capacity":  int64(1024),
		"snapshot.capacity": int64(128),
		"leak.suspect":      int64(1000),
		"leak.confirm":      int64(2000),
		"leak.interval":     int64(100),
		"usage.warnpct":     int64(75),
		"usage.critpct":     int64(90),
		"usage.worstcase":   capacity,
	}
}

func getsysmem() (total, used, free uint64) {
	mem := sigar.Mem{}
	mem.Get()
	return mem.Total, mem.Used, mem.Free
}

func validatesettings(setts s.Settings) error {
	capacity := setts.Int64("capacity")
	if capacity <= 0 || capacity > Maxarenacap {
		return ErrorBadSettings
	}
	maxpools, maxallocs := setts.Int64("maxpools"), setts.Int64("maxallocs")
	if maxpools <= 0 || maxpools > Maxpools {
		return ErrorBadSettings
	} else if maxallocs <= 0 || maxallocs > Maxallocs {
		return ErrorBadSettings
	}
	minpool, maxpool := setts.Int64("minpoolsize"), setts.Int64("maxpoolsize")
	if minpool <= 0 || maxpool < minpool {
		return ErrorBadSettings
	}
	switch setts.String("allocator") {
	case "bump", "flist":
	default:
		return ErrorBadSettings
	}
	if setts.Int64("history.capacity") <= 0 {
		return ErrorBadSettings
	} else if setts.Int64("snapshot.capacity") < 2 {
		return ErrorBadSettings
	}
	suspect, confirm := setts.Int64("leak.suspect"), setts.Int64("leak.confirm")
	if suspect <= 0 || confirm <= suspect {
		return ErrorBadSettings
	} else if setts.Int64("leak.interval") < 0 {
		return ErrorBadSettings
	}
	warnpct, critpct := setts.Int64("usage.warnpct"), setts.Int64("usage.critpct")
	if warnpct <= 0 || warnpct >= critpct || critpct > 100 {
		return ErrorBadSettings
	}
	if setts.Int64("usage.worstcase") <= 0 {
		return ErrorBadSettings
	}
	return nil
}
