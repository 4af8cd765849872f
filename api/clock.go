package api

import "time"

// Clock to timestamp allocation events. Arena does not read wall-clock
// time on its own, the application supplies a monotonic clock source
// while instantiating an arena. On embedded targets this is typically
// a tick counter.
type Clock interface {
	// Now return current reading of the clock. Readings shall be
	// monotonically non-decreasing.
	Now() int64
}

// Scalarclock is a counting clock, every Now() call ticks it forward
// by one. Useful on hosts without a time source and in tests, where
// age thresholds are expressed in operation counts.
type Scalarclock struct {
	tick int64
}

// Now implement Clock{} interface.
func (clock *Scalarclock) Now() int64 {
	clock.tick++
	return clock.tick
}

// Systemclock reads the host's monotonic clock, in nanoseconds since
// an arbitrary epoch.
type Systemclock struct {
	epoch time.Time
}

// NewSystemclock return a clock backed by time.Now().
func NewSystemclock() *Systemclock {
	return &Systemclock{epoch: time.Now()}
}

// Now implement Clock{} interface.
func (clock *Systemclock) Now() int64 {
	return int64(time.Since(clock.epoch))
}
