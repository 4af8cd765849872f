// Package malloc manages statically laid out memory pools for
// safety-critical targets, with a limited scope:
//
//   - Pools are registered once, against a caller-supplied base
//     address, and live for the lifetime of the arena. There is no
//     way to unregister a pool, the memory layout of a certified
//     build is fully determined up front.
//   - The package tracks and verifies allocations, it does not own
//     the backing memory. Addresses are values in the target's
//     memory map.
//   - All tables are fixed-capacity, no operation allocates or
//     loops over unbounded input, worst-case execution time is a
//     function of the configured table sizes.
//   - Operations are serialized behind a single mutex. The design
//     assumes one thread of control, the mutex only makes a
//     multi-threaded host safe, not fast.
//
// An arena combines a pool registry, an allocator, an operation
// history ring, a leak monitor and a usage meter. The verification
// entry points, Validate(), Verifyhistory(), Checkleaks() and
// Checkthresholds(), never mutate arena state and are meant to gate
// a release rather than crash a process: every failure is an error
// return, never a panic.
//
// The default allocation strategy is a pure bump allocator, freed
// bytes are accounted back to the pool but their offsets are never
// reissued. Non-reclaiming by design. Hosts that cycle allocations
// can opt in to free-slot reuse with the "allocator" setting.
package malloc
