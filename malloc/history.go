package malloc

import "github.com/bnclabs/gomem/api"

// Histentry records one allocate/free transition for later
// consistency verification.
type Histentry struct {
	ID       uint64
	Addr     uint64
	Size     int64
	Category api.Category
	State    api.Allocstate // resulting state of the transition
	Owner    string
	Ts       int64
}

// historylog fixed-size ring of transition records. Oldest entries
// are overwritten once the ring is full, the number of overwritten
// entries is counted so that verification can tell when evidence
// was lost to wraparound.
type historylog struct {
	entries  []Histentry
	capacity int64
	total    int64 // entries appended since creation
}

func newhistorylog(capacity int64) *historylog {
	return &historylog{
		entries:  make([]Histentry, 0, capacity),
		capacity: capacity,
	}
}

func (hist *historylog) append(entry Histentry) {
	if int64(len(hist.entries)) < hist.capacity {
		hist.entries = append(hist.entries, entry)
	} else {
		hist.entries[hist.total%hist.capacity] = entry
	}
	hist.total++
}

// overwritten number of entries lost to wraparound.
func (hist *historylog) overwritten() int64 {
	if hist.total <= hist.capacity {
		return 0
	}
	return hist.total - hist.capacity
}

// entries oldest to newest.
func (hist *historylog) ordered() []Histentry {
	n := int64(len(hist.entries))
	out := make([]Histentry, 0, n)
	start := int64(0)
	if hist.total > hist.capacity {
		start = hist.total % hist.capacity
	}
	for i := int64(0); i < n; i++ {
		out = append(out, hist.entries[(start+i)%n])
	}
	return out
}

// verify the alternation and owner invariants over the retained
// entries. For every address, recorded transitions shall alternate
// Allocated, Free, Allocated ... and the owner shall not change
// within one allocated lifetime. When entries were lost to
// wraparound an address is allowed to start with a Free transition,
// its Allocated counterpart may be among the lost evidence.
func (hist *historylog) verify() error {
	type lifetime struct {
		state api.Allocstate
		owner string
	}
	lifetimes := make(map[uint64]*lifetime)
	tolerant := hist.overwritten() > 0
	for _, entry := range hist.ordered() {
		life, ok := lifetimes[entry.Addr]
		if !ok {
			if entry.State == api.Free && !tolerant {
				return ErrorHistoryViolation
			}
			lifetimes[entry.Addr] = &lifetime{entry.State, entry.Owner}
			continue
		}
		switch entry.State {
		case api.Allocated:
			if life.state != api.Free {
				return ErrorHistoryViolation
			}
			life.state, life.owner = api.Allocated, entry.Owner
		case api.Free:
			if life.state != api.Allocated {
				return ErrorHistoryViolation
			} else if life.owner != entry.Owner {
				return ErrorHistoryViolation
			}
			life.state = api.Free
		default:
			return ErrorHistoryViolation
		}
	}
	return nil
}
