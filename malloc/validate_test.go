package malloc

import "testing"

import "github.com/bnclabs/gomem/api"
import "github.com/stretchr/testify/require"

func TestValidateClean(t *testing.T) {
	arena, _ := newtestarena(t)
	require.NoError(t, arena.Validate())
	require.NoError(t, arena.Register("P", 0x1000, 1024, api.Critical))
	require.NoError(t, arena.Register("Q", 0x2000, 512, api.Debug))
	for i := 0; i < 4; i++ {
		addr, err := arena.Alloc("P", 100, "comp")
		require.NoError(t, err)
		if i%2 == 0 {
			require.NoError(t, arena.Free("P", addr, "comp"))
		}
	}
	_, err := arena.Alloc("Q", 64, "dbg")
	require.NoError(t, err)
	require.NoError(t, arena.Validate())
	require.NoError(t, arena.Verifypools())
	require.NoError(t, arena.Verifyhistory())
}

func TestValidateBounds(t *testing.T) {
	arena, _ := newtestarena(t)
	require.NoError(t, arena.Register("P", 0x1000, 1024, api.Critical))
	pool := arena.getpool("P")
	pool.used = -1
	require.Equal(t, ErrorBoundsViolation, arena.Validate())
	pool.used = 0

	pool.offset = 2048
	require.Equal(t, ErrorBoundsViolation, arena.Validate())
}

func TestValidateContainment(t *testing.T) {
	arena, _ := newtestarena(t)
	require.NoError(t, arena.Register("P", 0x1000, 1024, api.Critical))
	addr, err := arena.Alloc("P", 100, "comp")
	require.NoError(t, err)

	record := arena.getpool("P").lookup(addr)
	record.Addr = 0x8000
	require.Equal(t, ErrorContainViolation, arena.Validate())
}

func TestValidateStatedomain(t *testing.T) {
	arena, _ := newtestarena(t)
	require.NoError(t, arena.Register("P", 0x1000, 1024, api.Critical))
	addr, err := arena.Alloc("P", 100, "comp")
	require.NoError(t, err)

	record := arena.getpool("P").lookup(addr)
	record.State = api.Allocstate(9)
	require.Equal(t, ErrorStateViolation, arena.Validate())

	// a corrupted record is within the state domain but breaks
	// accounting, its bytes are still counted as used.
	record.State = api.Corrupted
	require.Equal(t, ErrorAccountingViolation, arena.Validate())
}

func TestValidateAccounting(t *testing.T) {
	arena, _ := newtestarena(t)
	require.NoError(t, arena.Register("P", 0x1000, 1024, api.Critical))
	_, err := arena.Alloc("P", 100, "comp")
	require.NoError(t, err)

	arena.usage.used = 50
	require.Equal(t, ErrorAccountingViolation, arena.Validate())
}

func TestValidateSnapshots(t *testing.T) {
	arena, _ := newtestarena(t)
	require.NoError(t, arena.Register("P", 0x1000, 1024, api.Critical))
	_, err := arena.Alloc("P", 100, "comp")
	require.NoError(t, err)

	arena.usage.snapshots[0].Percat[api.Standard] += 10
	require.Equal(t, ErrorSnapshotViolation, arena.Validate())
}

func TestValidateOrder(t *testing.T) {
	arena, _ := newtestarena(t)
	require.NoError(t, arena.Register("P", 0x1000, 1024, api.Critical))
	_, err := arena.Alloc("P", 100, "comp")
	require.NoError(t, err)

	// bounds violations win over accounting violations.
	pool := arena.getpool("P")
	pool.used = 2000
	arena.usage.used = 50
	require.Equal(t, ErrorBoundsViolation, arena.Validate())
}
