package api

// Allocstate liveness state of a single allocation record. Records
// are never compacted, a freed allocation stays in the table as
// audit evidence with state Free.
type Allocstate byte

const (
	// Free allocation's bytes are accounted back to the pool.
	Free Allocstate = iota
	// Allocated allocation is live.
	Allocated
	// Corrupted allocation's book-keeping failed verification.
	// An allocation never moves between Free and Corrupted
	// directly.
	Corrupted
)

// IsValid check whether state is within the enumerated domain.
func (state Allocstate) IsValid() bool {
	return state <= Corrupted
}

func (state Allocstate) String() string {
	switch state {
	case Free:
		return "free"
	case Allocated:
		return "allocated"
	case Corrupted:
		return "corrupted"
	}
	return "invalid"
}

// Leakstate escalation state of a tracked address. Clean is implicit,
// a leak record is created only once an allocation outlives the
// suspect threshold. Recovered is terminal and retained as audit
// evidence.
type Leakstate byte

const (
	Clean Leakstate = iota
	Suspected
	Confirmed
	Recovered
)

func (state Leakstate) String() string {
	switch state {
	case Clean:
		return "clean"
	case Suspected:
		return "suspected"
	case Confirmed:
		return "confirmed"
	case Recovered:
		return "recovered"
	}
	return "invalid"
}

// Trend direction of memory usage between the two most recent
// usage snapshots.
type Trend byte

const (
	Flat Trend = iota
	Rising
	Falling
)

func (trend Trend) String() string {
	switch trend {
	case Flat:
		return "flat"
	case Rising:
		return "rising"
	case Falling:
		return "falling"
	}
	return "invalid"
}
