package malloc

import "testing"

import "github.com/bnclabs/gomem/api"
import s "github.com/bnclabs/gosettings"
import "github.com/stretchr/testify/require"

func newusagearena(t *testing.T) (*Arena, *testclock) {
	t.Helper()
	// tight budget, 1000 bytes, warn at 500, fail at 800.
	setts := testsettings().Mixin(s.Settings{
		"capacity":        int64(1000),
		"maxpoolsize":     int64(1000),
		"usage.warnpct":   int64(50),
		"usage.critpct":   int64(80),
		"usage.worstcase": int64(1000),
	})
	clock := &testclock{}
	arena, err := NewArena("usage", clock, setts)
	require.NoError(t, err)
	require.NoError(t, arena.Register("P", 0x1000, 1000, api.Standard))
	return arena, clock
}

func TestThresholds(t *testing.T) {
	arena, _ := newusagearena(t)
	_, err := arena.Alloc("P", 400, "comp")
	require.NoError(t, err)
	require.NoError(t, arena.Checkthresholds())
	require.False(t, arena.Warning())

	// crossing the warning threshold signals but does not fail.
	_, err = arena.Alloc("P", 200, "comp")
	require.NoError(t, err)
	require.NoError(t, arena.Checkthresholds())
	require.True(t, arena.Warning())

	// crossing the critical threshold fails the check.
	_, err = arena.Alloc("P", 300, "comp")
	require.NoError(t, err)
	require.Equal(t, ErrorUsageCritical, arena.Checkthresholds())
}

func TestThresholdsClear(t *testing.T) {
	arena, _ := newusagearena(t)
	addr, err := arena.Alloc("P", 600, "comp")
	require.NoError(t, err)
	require.NoError(t, arena.Checkthresholds())
	require.True(t, arena.Warning())

	require.NoError(t, arena.Free("P", addr, "comp"))
	require.NoError(t, arena.Checkthresholds())
	require.False(t, arena.Warning())
}

func TestTrend(t *testing.T) {
	arena, _ := newusagearena(t)
	_, _, err := arena.Trend()
	require.Equal(t, ErrorNotEnoughSamples, err)

	addr, err := arena.Alloc("P", 100, "comp")
	require.NoError(t, err)
	_, _, err = arena.Trend()
	require.Equal(t, ErrorNotEnoughSamples, err)

	_, err = arena.Alloc("P", 200, "comp")
	require.NoError(t, err)
	direction, magnitude, err := arena.Trend()
	require.NoError(t, err)
	require.Equal(t, api.Rising, direction)
	require.Equal(t, int64(200), magnitude)

	require.NoError(t, arena.Free("P", addr, "comp"))
	direction, magnitude, err = arena.Trend()
	require.NoError(t, err)
	require.Equal(t, api.Falling, direction)
	require.Equal(t, int64(100), magnitude)
}

func TestPeakMonotonic(t *testing.T) {
	arena, _ := newusagearena(t)
	peaks := []int64{}
	for i := 0; i < 4; i++ {
		addr, err := arena.Alloc("P", 100, "comp")
		require.NoError(t, err)
		peaks = append(peaks, arena.Peakused())
		require.NoError(t, arena.Free("P", addr, "comp"))
		peaks = append(peaks, arena.Peakused())
	}
	prev := int64(0)
	for _, peak := range peaks {
		require.GreaterOrEqual(t, peak, prev)
		prev = peak
	}
	require.GreaterOrEqual(t, arena.Worstcase(), arena.Peakused())
}

// the worst-case budget is raised once observation exceeds it.
func TestWorstcaseRaised(t *testing.T) {
	setts := testsettings().Mixin(s.Settings{
		"capacity":        int64(1000),
		"maxpoolsize":     int64(1000),
		"usage.worstcase": int64(100),
	})
	arena, err := NewArena("usage", &testclock{}, setts)
	require.NoError(t, err)
	require.NoError(t, arena.Register("P", 0x1000, 1000, api.Standard))
	require.Equal(t, int64(100), arena.Worstcase())

	_, err = arena.Alloc("P", 300, "comp")
	require.NoError(t, err)
	require.Equal(t, int64(300), arena.Worstcase())
	require.NoError(t, arena.Validate())
}

func TestSnapshotRing(t *testing.T) {
	setts := testsettings().Mixin(s.Settings{"snapshot.capacity": int64(4)})
	arena, err := NewArena("usage", &testclock{}, setts)
	require.NoError(t, err)
	require.NoError(t, arena.Register("P", 0x1000, 4096, api.Standard))
	for i := 0; i < 8; i++ {
		_, err := arena.Alloc("P", 64, "comp")
		require.NoError(t, err)
	}
	// ring wrapped, trend and verification still work off the
	// retained snapshots.
	direction, magnitude, err := arena.Trend()
	require.NoError(t, err)
	require.Equal(t, api.Rising, direction)
	require.Equal(t, int64(64), magnitude)
	require.NoError(t, arena.Validate())
}
