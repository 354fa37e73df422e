package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() map[string]any {
	return map[string]any{
		"navigation": map[string]any{"currentLayer": 0},
		"user":       map[string]any{"level": 1},
	}
}

func TestGetDotPathReturnsFallbackWhenMissing(t *testing.T) {
	s := New(defaults())
	assert.Equal(t, 0, s.Get("navigation.currentLayer", -1))
	assert.Equal(t, "missing", s.Get("navigation.bogus.deep", "missing"))
}

func TestSetStateDeepMergesByPath(t *testing.T) {
	s := New(defaults())
	s.SetState("navigation.currentLayer", 3, SetOptions{})
	assert.Equal(t, 3, s.Get("navigation.currentLayer", nil))
	assert.Equal(t, 1, s.Get("user.level", nil), "unrelated slice untouched")
}

func TestSetStateObjectFormMergesTopLevelKeys(t *testing.T) {
	s := New(defaults())
	s.SetState("", map[string]any{"user": map[string]any{"level": 5}}, SetOptions{})
	assert.Equal(t, 5, s.Get("user.level", nil))
}

func TestGetStateReturnsIndependentClone(t *testing.T) {
	s := New(defaults())
	snap := s.GetState()
	snap["navigation"].(map[string]any)["currentLayer"] = 999
	assert.Equal(t, 0, s.Get("navigation.currentLayer", nil))
}

func TestWatchFiresOnPrefixIntersection(t *testing.T) {
	s := New(defaults())
	var calls int
	unwatch := s.Watch("navigation", func(prev, cur any) { calls++ }, WatchOptions{})
	defer unwatch()

	s.SetState("navigation.currentLayer", 1, SetOptions{})
	assert.Equal(t, 1, calls)

	s.SetState("user.level", 2, SetOptions{})
	assert.Equal(t, 1, calls, "unrelated top-level key must not notify")
}

func TestWatchOnDeeperPathMatchesShallowUpdate(t *testing.T) {
	s := New(defaults())
	var calls int
	unwatch := s.Watch("navigation.currentLayer", func(prev, cur any) { calls++ }, WatchOptions{})
	defer unwatch()

	s.SetState("", map[string]any{"navigation": map[string]any{"currentLayer": 9}}, SetOptions{})
	assert.Equal(t, 1, calls)
}

func TestSilentSetStateSkipsWatchersAndOnChange(t *testing.T) {
	s := New(defaults())
	var calls int
	s.Watch("navigation", func(prev, cur any) { calls++ }, WatchOptions{})
	var onChangeCalls int
	s.OnChange = func(ChangeEvent) { onChangeCalls++ }

	s.SetState("navigation.currentLayer", 1, SetOptions{Silent: true})
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, onChangeCalls)
}

func TestUnwatchStopsFurtherNotifications(t *testing.T) {
	s := New(defaults())
	var calls int
	unwatch := s.Watch("navigation", func(prev, cur any) { calls++ }, WatchOptions{})

	s.SetState("navigation.currentLayer", 1, SetOptions{})
	unwatch()
	s.SetState("navigation.currentLayer", 2, SetOptions{})

	assert.Equal(t, 1, calls)
}

func TestTimeTravelRestoresPriorSnapshot(t *testing.T) {
	s := New(defaults())
	s.SetState("navigation.currentLayer", 1, SetOptions{})
	s.SetState("navigation.currentLayer", 2, SetOptions{})

	ok := s.TimeTravel(1)
	require.True(t, ok)
	assert.Equal(t, 1, s.Get("navigation.currentLayer", nil))
}

func TestTimeTravelOutOfRangeReturnsFalse(t *testing.T) {
	s := New(defaults())
	assert.False(t, s.TimeTravel(100))
}

func TestResetReturnsToDefaults(t *testing.T) {
	s := New(defaults())
	s.SetState("navigation.currentLayer", 42, SetOptions{})
	s.Reset(false)
	assert.Equal(t, 0, s.Get("navigation.currentLayer", nil))
}

func TestResetFiresOnResetUnlessSilent(t *testing.T) {
	s := New(defaults())
	s.SetState("navigation.currentLayer", 42, SetOptions{})

	var resets int
	s.OnReset = func(ResetEvent) { resets++ }

	s.Reset(true)
	assert.Equal(t, 0, resets, "silent reset must not fire OnReset")

	s.SetState("navigation.currentLayer", 7, SetOptions{})
	s.Reset(false)
	assert.Equal(t, 1, resets)
}

func TestTimeTravelFiresOnTimeTravel(t *testing.T) {
	s := New(defaults())
	s.SetState("navigation.currentLayer", 1, SetOptions{})
	s.SetState("navigation.currentLayer", 2, SetOptions{})

	var got TimeTravelEvent
	s.OnTimeTravel = func(ev TimeTravelEvent) { got = ev }

	ok := s.TimeTravel(1)
	require.True(t, ok)
	assert.Equal(t, 1, got.StepsBack)
	assert.Equal(t, 1, got.Current["navigation"].(map[string]any)["currentLayer"])
}

func TestTimeTravelOutOfRangeDoesNotFireOnTimeTravel(t *testing.T) {
	s := New(defaults())
	var calls int
	s.OnTimeTravel = func(TimeTravelEvent) { calls++ }
	s.TimeTravel(100)
	assert.Equal(t, 0, calls)
}

func TestComputedPropertiesRefreshOnNonSilentSetState(t *testing.T) {
	s := New(defaults())
	s.RegisterComputed("layerSquared", func(data map[string]any) any {
		layer := data["navigation"].(map[string]any)["currentLayer"].(int)
		return layer * layer
	})

	var got ComputedEvent
	s.OnComputedUpdate = func(ev ComputedEvent) { got = ev }

	s.SetState("navigation.currentLayer", 4, SetOptions{})
	assert.Equal(t, 16, got.Computed["layerSquared"])
	assert.Equal(t, 16, s.Get("computed.layerSquared", nil))
}

func TestComputedUpdateFiresEvenWithNoComputedPropertiesRegistered(t *testing.T) {
	s := New(defaults())
	var calls int
	s.OnComputedUpdate = func(ComputedEvent) { calls++ }

	s.SetState("navigation.currentLayer", 1, SetOptions{})
	assert.Equal(t, 1, calls, "refresh step runs even with nothing registered")
}

func TestComputedUpdateSkippedOnSilentSetState(t *testing.T) {
	s := New(defaults())
	var calls int
	s.OnComputedUpdate = func(ComputedEvent) { calls++ }

	s.SetState("navigation.currentLayer", 1, SetOptions{Silent: true})
	assert.Equal(t, 0, calls)
}

func TestPersistRestoreRoundTripsThroughMemoryBackend(t *testing.T) {
	backend := NewMemoryBackend()
	s := New(defaults(), WithBackend(backend))
	s.SetState("navigation.currentLayer", 7, SetOptions{})

	require.NoError(t, s.Persist("fixture"))

	s2 := New(defaults(), WithBackend(backend))
	require.NoError(t, s2.Restore("fixture"))
	assert.Equal(t, 7, s2.Get("navigation.currentLayer", nil))
}

func TestRestoreOnAbsentKeyIsNoOp(t *testing.T) {
	backend := NewMemoryBackend()
	s := New(defaults(), WithBackend(backend))
	require.NoError(t, s.Restore("never-saved"))
	assert.Equal(t, 0, s.Get("navigation.currentLayer", nil))
}

func TestRestoreFiresOnRestoreWithRestoreSource(t *testing.T) {
	backend := NewMemoryBackend()
	s := New(defaults(), WithBackend(backend))
	s.SetState("navigation.currentLayer", 7, SetOptions{})
	require.NoError(t, s.Persist("fixture"))

	s2 := New(defaults(), WithBackend(backend))
	var got RestoreEvent
	s2.OnRestore = func(ev RestoreEvent) { got = ev }

	require.NoError(t, s2.Restore("fixture"))
	assert.Equal(t, "restore", got.Source)
	assert.Equal(t, 7, got.Current["navigation"].(map[string]any)["currentLayer"])
}

func TestRestoreOnAbsentKeyDoesNotFireOnRestore(t *testing.T) {
	backend := NewMemoryBackend()
	s := New(defaults(), WithBackend(backend))
	var calls int
	s.OnRestore = func(RestoreEvent) { calls++ }

	require.NoError(t, s.Restore("never-saved"))
	assert.Equal(t, 0, calls)
}
