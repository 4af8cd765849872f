package malloc

import "github.com/bnclabs/gomem/api"

// Leakinfo tracks one address through the leak state machine,
// clean, suspected, confirmed, recovered. Records are never
// removed, a recovered record stays behind as audit evidence.
type Leakinfo struct {
	Addr  uint64
	Pool  string
	Size  int64
	Owner string
	State api.Leakstate
	Since int64 // clock reading when the allocation was born
	Seen  int64 // clock reading of the last scan that touched it
}

// leakmonitor is an age based state machine layered on top of
// allocation liveness. It never frees memory on its own, recovery
// is an explicit arena operation.
type leakmonitor struct {
	suspect  int64
	confirm  int64
	interval int64

	lastscan int64
	scanned  bool
	records  map[uint64]*Leakinfo
	audit    []*Leakinfo // every record ever created, in order
}

func newleakmonitor(suspect, confirm, interval int64) *leakmonitor {
	return &leakmonitor{
		suspect:  suspect,
		confirm:  confirm,
		interval: interval,
		records:  make(map[uint64]*Leakinfo),
	}
}

func (monitor *leakmonitor) track(
	pool *Pool, record *Allocation, now int64) *Leakinfo {

	leak, ok := monitor.records[record.Addr]
	if ok && leak.State != api.Recovered {
		return leak
	}
	// no record yet, or the old record is terminal evidence from a
	// previous lifetime at this address.
	leak = &Leakinfo{
		Addr:  record.Addr,
		Pool:  pool.name,
		Size:  record.Size,
		Owner: record.Owner,
		State: api.Suspected,
		Since: record.Born,
		Seen:  now,
	}
	monitor.records[record.Addr] = leak
	monitor.audit = append(monitor.audit, leak)
	return leak
}

// scan all live allocations, escalating by age. Returns
// ErrorLeakConfirmed if any confirmed leak exists after the scan,
// the check fails closed. Calls inside the polling interval are
// no-ops and succeed.
func (monitor *leakmonitor) scan(
	pools []*Pool, now int64, logprefix string) error {

	if monitor.scanned && (now-monitor.lastscan) < monitor.interval {
		return nil
	}
	monitor.lastscan, monitor.scanned = now, true

	confirmed := 0
	for _, pool := range pools {
		for n := range pool.allocs {
			record := &pool.allocs[n]
			if record.State != api.Allocated {
				continue
			}
			age := now - record.Born
			if age <= monitor.suspect {
				continue // clean
			}
			leak := monitor.track(pool, record, now)
			leak.Seen = now
			if age > monitor.confirm && leak.State == api.Suspected {
				leak.State = api.Confirmed
				errorf("%v leak confirmed addr %x owner %q age %v\n",
					logprefix, record.Addr, record.Owner, age)
			}
		}
	}
	for _, leak := range monitor.records {
		if leak.State == api.Confirmed {
			confirmed++
		}
	}
	if confirmed > 0 {
		return ErrorLeakConfirmed
	}
	return nil
}

// onfree transitions a suspected or confirmed record to recovered
// once the allocator observes the address going back to Free.
// Terminal, the record is retained as evidence.
func (monitor *leakmonitor) onfree(addr uint64, now int64) {
	if leak, ok := monitor.records[addr]; ok {
		if leak.State == api.Suspected || leak.State == api.Confirmed {
			leak.State, leak.Seen = api.Recovered, now
		}
	}
}

// confirmedrec return the record for addr if it is a confirmed
// leak.
func (monitor *leakmonitor) confirmedrec(addr uint64) *Leakinfo {
	if leak, ok := monitor.records[addr]; ok {
		if leak.State == api.Confirmed {
			return leak
		}
	}
	return nil
}

// list all records ever created, oldest first.
func (monitor *leakmonitor) list() []Leakinfo {
	out := make([]Leakinfo, 0, len(monitor.audit))
	for _, leak := range monitor.audit {
		out = append(out, *leak)
	}
	return out
}

func (monitor *leakmonitor) count(state api.Leakstate) int64 {
	count := int64(0)
	for _, leak := range monitor.audit {
		if leak.State == state {
			count++
		}
	}
	return count
}
