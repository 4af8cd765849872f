package malloc

import "testing"

import "github.com/bnclabs/gomem/api"
import s "github.com/bnclabs/gosettings"
import "github.com/stretchr/testify/require"

// leak thresholds from testsettings: suspect beyond age 10,
// confirm beyond age 20, no polling interval.
func TestLeakLifecycle(t *testing.T) {
	arena, clock := newtestarena(t)
	require.NoError(t, arena.Register("P", 0x1000, 1024, api.Critical))
	addr, err := arena.Alloc("P", 100, "comp")
	require.NoError(t, err)

	clock.now = 5 // young allocation stays clean
	require.NoError(t, arena.Checkleaks())
	require.Len(t, arena.Leaks(), 0)

	clock.now = 15 // past the suspect threshold
	require.NoError(t, arena.Checkleaks())
	leaks := arena.Leaks()
	require.Len(t, leaks, 1)
	require.Equal(t, api.Suspected, leaks[0].State)
	require.Equal(t, addr, leaks[0].Addr)
	require.Equal(t, "comp", leaks[0].Owner)

	clock.now = 25 // past the confirm threshold, check fails closed
	require.Equal(t, ErrorLeakConfirmed, arena.Checkleaks())
	leaks = arena.Leaks()
	require.Len(t, leaks, 1)
	require.Equal(t, api.Confirmed, leaks[0].State)

	// freeing the address recovers the record, terminal state.
	require.NoError(t, arena.Free("P", addr, "comp"))
	leaks = arena.Leaks()
	require.Equal(t, api.Recovered, leaks[0].State)
	clock.now = 30
	require.NoError(t, arena.Checkleaks())
}

func TestLeakRecovery(t *testing.T) {
	arena, clock := newtestarena(t)
	require.NoError(t, arena.Register("P", 0x1000, 1024, api.Critical))
	addr, err := arena.Alloc("P", 100, "comp")
	require.NoError(t, err)

	// recovery is for confirmed leaks only.
	require.Equal(t, ErrorLeakNotConfirmed, arena.Recoverleak("P", addr))

	clock.now = 25
	require.Equal(t, ErrorLeakConfirmed, arena.Checkleaks())
	require.Equal(t, ErrorUnknownPool, arena.Recoverleak("missing", addr))
	require.NoError(t, arena.Recoverleak("P", addr))
	require.Equal(t, int64(0), arena.Used())
	leaks := arena.Leaks()
	require.Len(t, leaks, 1)
	require.Equal(t, api.Recovered, leaks[0].State)

	// reclaimed accounting passes the gate again.
	clock.now = 26
	require.NoError(t, arena.Checkleaks())
	require.NoError(t, arena.Validate())
	require.NoError(t, arena.Verifyhistory())
}

func TestLeakRatelimit(t *testing.T) {
	setts := testsettings().Mixin(s.Settings{"leak.interval": int64(100)})
	clock := &testclock{}
	arena, err := NewArena("test", clock, setts)
	require.NoError(t, err)
	require.NoError(t, arena.Register("P", 0x1000, 1024, api.Critical))
	_, err = arena.Alloc("P", 100, "comp")
	require.NoError(t, err)

	clock.now = 1
	require.NoError(t, arena.Checkleaks()) // first scan, all clean

	clock.now = 50 // past suspect and confirm, but inside the interval
	require.NoError(t, arena.Checkleaks())
	require.Len(t, arena.Leaks(), 0)

	clock.now = 101 // interval elapsed, scan runs and fails closed
	require.Equal(t, ErrorLeakConfirmed, arena.Checkleaks())
}

func TestLeakAudittrail(t *testing.T) {
	arena, clock := newtestarena(t)
	require.NoError(t, arena.Register("P", 0x1000, 1024, api.Critical))
	addr, err := arena.Alloc("P", 100, "comp")
	require.NoError(t, err)

	clock.now = 15
	require.NoError(t, arena.Checkleaks())
	require.NoError(t, arena.Free("P", addr, "comp"))

	// a second lifetime at the same address gets a fresh record,
	// the recovered one stays behind as evidence.
	addr2, err := arena.Alloc("P", 100, "comp")
	require.NoError(t, err)
	require.NotEqual(t, addr, addr2)

	stats := arena.Stats()
	require.Equal(t, int64(0), stats["leaks.suspected"].(int64))
	require.Equal(t, int64(0), stats["leaks.confirmed"].(int64))
	require.Equal(t, int64(1), stats["leaks.recovered"].(int64))
}
