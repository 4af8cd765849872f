package malloc

import "github.com/bnclabs/gomem/api"

// Snapshot of arena usage, appended on every allocate and free.
// Opsize is the byte delta of the operation that produced the
// snapshot, verification checks it against the totals of adjacent
// snapshots.
type Snapshot struct {
	Total  int64
	Percat [api.Ncategories]int64
	Ts     int64
	Opsize int64
}

// usagemeter aggregates byte usage per category, tracks the peak
// and the certified worst-case, evaluates warning and critical
// thresholds and keeps a bounded ring of usage snapshots for trend
// analysis. Thresholds are computed once, when the arena is
// created, and never recomputed.
type usagemeter struct {
	capacity  int64
	warnbytes int64
	critbytes int64

	used      int64
	percat    [api.Ncategories]int64
	peak      int64
	worstcase int64
	warned    bool

	snapshots []Snapshot
	snapcap   int64
	snaptotal int64
}

func newusagemeter(capacity, warnpct, critpct, worstcase, snapcap int64) *usagemeter {
	return &usagemeter{
		capacity:  capacity,
		warnbytes: (capacity * warnpct) / 100,
		critbytes: (capacity * critpct) / 100,
		worstcase: worstcase,
		snapshots: make([]Snapshot, 0, snapcap),
		snapcap:   snapcap,
	}
}

// account an allocate (delta > 0) or free (delta < 0) and snapshot
// the result.
func (meter *usagemeter) account(delta int64, category api.Category, now int64) {
	meter.used += delta
	meter.percat[category] += delta
	if meter.used > meter.peak {
		meter.peak = meter.used
	}
	if meter.peak > meter.worstcase {
		meter.worstcase = meter.peak
	}
	opsize := delta
	if opsize < 0 {
		opsize = -opsize
	}
	snapshot := Snapshot{
		Total:  meter.used,
		Percat: meter.percat,
		Ts:     now,
		Opsize: opsize,
	}
	if int64(len(meter.snapshots)) < meter.snapcap {
		meter.snapshots = append(meter.snapshots, snapshot)
	} else {
		meter.snapshots[meter.snaptotal%meter.snapcap] = snapshot
	}
	meter.snaptotal++
}

// checkthresholds fail once used crosses the critical threshold.
// Crossing the warning threshold alone is a caller visible signal,
// logged and exposed through warned, but does not fail the check.
func (meter *usagemeter) checkthresholds(logprefix string) error {
	if meter.used >= meter.critbytes {
		errorf("%v usage %v >= critical %v\n",
			logprefix, meter.used, meter.critbytes)
		return ErrorUsageCritical
	}
	if meter.used >= meter.warnbytes {
		if meter.warned == false {
			warnf("%v usage %v >= warning %v\n",
				logprefix, meter.used, meter.warnbytes)
		}
		meter.warned = true
	} else {
		meter.warned = false
	}
	return nil
}

// latest n'th snapshot counting back from the most recent, 0 is the
// most recent.
func (meter *usagemeter) latest(n int64) Snapshot {
	idx := (meter.snaptotal - 1 - n) % meter.snapcap
	if meter.snaptotal <= meter.snapcap {
		idx = meter.snaptotal - 1 - n
	}
	return meter.snapshots[idx]
}

// trend between the two most recent snapshots.
func (meter *usagemeter) trend() (api.Trend, int64, error) {
	if meter.snaptotal < 2 {
		return api.Flat, 0, ErrorNotEnoughSamples
	}
	prev, last := meter.latest(1), meter.latest(0)
	delta := last.Total - prev.Total
	switch {
	case delta > 0:
		return api.Rising, delta, nil
	case delta < 0:
		return api.Falling, -delta, nil
	}
	return api.Flat, 0, nil
}

// snapshots oldest to newest, for verification.
func (meter *usagemeter) ordered() []Snapshot {
	n := int64(len(meter.snapshots))
	out := make([]Snapshot, 0, n)
	start := int64(0)
	if meter.snaptotal > meter.snapcap {
		start = meter.snaptotal % meter.snapcap
	}
	for i := int64(0); i < n; i++ {
		out = append(out, meter.snapshots[(start+i)%n])
	}
	return out
}

// verify snapshot arithmetic: each snapshot's total equals the sum
// of its category fields, consecutive totals differ by exactly the
// recorded operation size, and peak/worst-case ordering holds.
func (meter *usagemeter) verify() error {
	if meter.peak < meter.used || meter.worstcase < meter.peak {
		return ErrorSnapshotViolation
	}
	ordered := meter.ordered()
	for n, snapshot := range ordered {
		sum := int64(0)
		for _, used := range snapshot.Percat {
			sum += used
		}
		if sum != snapshot.Total {
			return ErrorSnapshotViolation
		}
		if n > 0 {
			delta := snapshot.Total - ordered[n-1].Total
			if delta < 0 {
				delta = -delta
			}
			if delta != snapshot.Opsize {
				return ErrorSnapshotViolation
			}
		}
	}
	if len(ordered) > 0 {
		// newest snapshot shall match live usage.
		if ordered[len(ordered)-1].Total != meter.used {
			return ErrorSnapshotViolation
		}
	}
	return nil
}
